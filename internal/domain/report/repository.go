package report

import "context"

// AggregateFilter selects what the aggregator groups by and which invoices it reads
type AggregateFilter struct {
	// Dimension groups rows by product, category or user. CriteriaNone yields one total row.
	Dimension CriteriaType
	// Window restricts invoices to those created inside it. Nil reads all history.
	Window *Window
}

// SalesAggregator computes sales totals from the invoice tables
type SalesAggregator interface {
	// Aggregate returns grouped totals.
	// An ungrouped total with no contributing invoices yields no rows.
	Aggregate(ctx context.Context, filter AggregateFilter) ([]AggregateRow, error)

	// AggregateDays returns ungrouped totals per calendar day over all history
	AggregateDays(ctx context.Context) ([]DayAggregate, error)
}

// ReportStore persists sales report rows
type ReportStore interface {
	// Replace atomically deletes the rows of key and inserts rows
	Replace(ctx context.Context, key ReportKey, rows []*SalesReport) error

	// Find returns the rows of key ordered by start date, then criteria id
	Find(ctx context.Context, key ReportKey) ([]SalesReport, error)
}
