package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SalesReport is one persisted summary row.
// Rows are never updated in place; each generation replaces the rows of its key.
type SalesReport struct {
	ID            int64           `gorm:"primaryKey;autoIncrement"`
	ReportType    ReportType      `gorm:"type:varchar(20);not null;index:idx_sales_reports_key,priority:1"`
	CriteriaType  CriteriaType    `gorm:"type:varchar(20);not null;default:'none';index:idx_sales_reports_key,priority:2"`
	Scope         Scope           `gorm:"type:varchar(20);not null;default:'window';index:idx_sales_reports_key,priority:3"`
	CriteriaID    *int64          `gorm:"index"`
	CriteriaName  *string         `gorm:"type:varchar(255)"`
	StartDate     time.Time       `gorm:"type:date;not null;index:idx_sales_reports_key,priority:4"`
	EndDate       time.Time       `gorm:"type:date;not null;index:idx_sales_reports_key,priority:5"`
	TotalSales    decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"`
	TotalQty      int64           `gorm:"not null;default:0"`
	TotalInvoices int64           `gorm:"not null;default:0"`
	CreatedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesReport) TableName() string {
	return "sales_reports"
}

// AggregateRow is one group produced by the aggregator.
// CriteriaID and CriteriaName are nil for ungrouped totals.
type AggregateRow struct {
	CriteriaID    *int64
	CriteriaName  *string
	TotalSales    decimal.Decimal
	TotalQty      int64
	TotalInvoices int64
}

// DayAggregate is the ungrouped total for one calendar day
type DayAggregate struct {
	Day           time.Time
	TotalSales    decimal.Decimal
	TotalQty      int64
	TotalInvoices int64
}

// ReportKey identifies the set of rows one generation owns.
// A nil Window addresses every row of the type, criteria and scope.
type ReportKey struct {
	ReportType   ReportType
	CriteriaType CriteriaType
	Scope        Scope
	Window       *Window
}

// String renders the key for logs
func (k ReportKey) String() string {
	window := "all"
	if k.Window != nil {
		window = k.Window.Start.Format(DateLayout) + ":" + k.Window.End.Format(DateLayout)
	}
	return fmt.Sprintf("%s:%s:%s:%s", k.ReportType, k.CriteriaType, k.Scope, window)
}

// LockName identifies the row set a generation may touch. A full regeneration
// replaces every window of a report type, so the window is left out and
// windowed and full runs of the same type serialize on one lock.
func (k ReportKey) LockName() string {
	return fmt.Sprintf("%s:%s:%s", k.ReportType, k.CriteriaType, k.Scope)
}

// NewSalesReport builds a row for key covering window from an aggregate
func NewSalesReport(key ReportKey, window Window, row AggregateRow, createdAt time.Time) *SalesReport {
	return &SalesReport{
		ReportType:    key.ReportType,
		CriteriaType:  key.CriteriaType,
		Scope:         key.Scope,
		CriteriaID:    row.CriteriaID,
		CriteriaName:  row.CriteriaName,
		StartDate:     window.Start,
		EndDate:       window.End,
		TotalSales:    row.TotalSales,
		TotalQty:      row.TotalQty,
		TotalInvoices: row.TotalInvoices,
		CreatedAt:     createdAt,
	}
}

// BucketDays folds per-day totals into one row per window of reportType.
// Distinct invoice counts add up across days because an invoice belongs to exactly one day.
// Rows come back ordered by start date.
func BucketDays(key ReportKey, days []DayAggregate, createdAt time.Time) ([]*SalesReport, error) {
	buckets := make(map[time.Time]*SalesReport)
	for _, day := range days {
		if day.TotalInvoices == 0 {
			continue
		}
		window, err := ResolveWindow(key.ReportType, day.Day)
		if err != nil {
			return nil, err
		}
		row, ok := buckets[window.Start]
		if !ok {
			row = NewSalesReport(key, window, AggregateRow{TotalSales: decimal.Zero}, createdAt)
			buckets[window.Start] = row
		}
		row.TotalSales = row.TotalSales.Add(day.TotalSales)
		row.TotalQty += day.TotalQty
		row.TotalInvoices += day.TotalInvoices
	}

	rows := make([]*SalesReport, 0, len(buckets))
	for _, row := range buckets {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].StartDate.Before(rows[j].StartDate)
	})
	return rows, nil
}

// SortReports orders rows by start date, then criteria id
func SortReports(rows []SalesReport) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].StartDate.Equal(rows[j].StartDate) {
			return rows[i].StartDate.Before(rows[j].StartDate)
		}
		return criteriaOrder(rows[i].CriteriaID) < criteriaOrder(rows[j].CriteriaID)
	})
}

func criteriaOrder(id *int64) int64 {
	if id == nil {
		return -1
	}
	return *id
}
