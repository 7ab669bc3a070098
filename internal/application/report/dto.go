package report

import (
	"time"

	"github.com/possales/backend/internal/domain/report"
)

// Scope names accepted by Generate and the HTTP API
const (
	ScopeWindow = "window"
	ScopeFull   = "full"
)

// Request selects one generation
type Request struct {
	Kind report.Kind
	// Full regenerates every window (or all history for criteria kinds) instead of the reference window
	Full bool
	// Reference is the date the window is resolved from. Zero means today in the report time zone.
	Reference time.Time
}

// DefaultFull reports whether kind generates the full variant when the caller does not choose.
// The user report has always been an all-time breakdown.
func DefaultFull(kind report.Kind) bool {
	return kind == report.KindUser
}

// Result is the outcome of one generation
type Result struct {
	Kind  report.Kind `json:"kind"`
	Scope string      `json:"scope"`
	// Window is the generated window; nil for full generations
	Window *report.Window        `json:"-"`
	Rows   []SalesReportResponse `json:"rows"`
}

// SalesReportResponse represents a stored report row in API responses
type SalesReportResponse struct {
	CriteriaID    *int64  `json:"criteria_id,omitempty"`
	CriteriaName  *string `json:"criteria_name,omitempty"`
	TotalSales    float64 `json:"total_sales"`
	TotalQty      int64   `json:"total_qty"`
	TotalInvoices int64   `json:"total_invoices"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
}

// ToSalesReportResponse converts a stored row to its response form
func ToSalesReportResponse(r report.SalesReport) SalesReportResponse {
	return SalesReportResponse{
		CriteriaID:    r.CriteriaID,
		CriteriaName:  r.CriteriaName,
		TotalSales:    r.TotalSales.InexactFloat64(),
		TotalQty:      r.TotalQty,
		TotalInvoices: r.TotalInvoices,
		StartDate:     r.StartDate.UTC().Format(report.DateLayout),
		EndDate:       r.EndDate.UTC().Format(report.DateLayout),
	}
}

// ToSalesReportResponses converts stored rows, keeping their order.
// The result is never nil so empty reports serialize as [].
func ToSalesReportResponses(rows []report.SalesReport) []SalesReportResponse {
	out := make([]SalesReportResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToSalesReportResponse(r))
	}
	return out
}
