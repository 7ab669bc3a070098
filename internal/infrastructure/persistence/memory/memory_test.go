package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/possales/backend/internal/domain/report"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(t *testing.T, s string) report.Window {
	t.Helper()
	d, err := report.ParseDate(s)
	require.NoError(t, err)
	return report.Window{Start: d, End: d}
}

func TestSalesLedger_Aggregate(t *testing.T) {
	ctx := context.Background()
	ledger := NewSalesLedger(time.UTC)
	ledger.AddUser(1, "alice")
	ledger.AddCategory(10, "Drinks")
	cat := int64(10)
	ledger.AddProduct(100, "Cola", &cat)
	ledger.AddProduct(101, "Loose", nil)

	ledger.AddInvoice(1, time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
		Line{ProductID: 100, Qty: 2, Price: price("10.00")},
		Line{ProductID: 101, Qty: 1, Price: price("5.00")})
	ledger.AddInvoice(1, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
		Line{ProductID: 100, Qty: 1, Price: price("10.00")})

	w := day(t, "2024-03-13")
	rows, err := ledger.Aggregate(ctx, report.AggregateFilter{Dimension: report.CriteriaNone, Window: &w})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].TotalSales.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, int64(3), rows[0].TotalQty)
	assert.Equal(t, int64(1), rows[0].TotalInvoices)

	rows, err = ledger.Aggregate(ctx, report.AggregateFilter{Dimension: report.CriteriaCategory})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Drinks", *rows[0].CriteriaName)
	assert.True(t, rows[0].TotalSales.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, int64(2), rows[0].TotalInvoices)

	empty := day(t, "2024-03-12")
	rows, err = ledger.Aggregate(ctx, report.AggregateFilter{Dimension: report.CriteriaNone, Window: &empty})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = ledger.Aggregate(ctx, report.AggregateFilter{Dimension: "warehouse"})
	assert.Error(t, err)
}

func TestSalesLedger_AggregateDays_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+6", 6*3600)
	ledger := NewSalesLedger(loc)
	// 20:00 UTC on the 12th is 02:00 on the 13th at UTC+6
	ledger.AddInvoice(1, time.Date(2024, 3, 12, 20, 0, 0, 0, time.UTC),
		Line{ProductID: 1, Qty: 1, Price: price("2.50")})

	days, err := ledger.AggregateDays(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2024-03-13", days[0].Day.Format(report.DateLayout))
}

func TestReportStore_Replace(t *testing.T) {
	ctx := context.Background()
	store := NewReportStore()

	w := day(t, "2024-03-13")
	key := report.ReportKey{ReportType: report.ReportTypeDaily, CriteriaType: report.CriteriaNone, Scope: report.ScopeWindow, Window: &w}
	other := day(t, "2024-03-12")
	otherKey := key
	otherKey.Window = &other

	row := func(w report.Window, sales int64) *report.SalesReport {
		return report.NewSalesReport(key, w, report.AggregateRow{TotalSales: decimal.NewFromInt(sales), TotalInvoices: 1}, time.Now())
	}

	require.NoError(t, store.Replace(ctx, otherKey, []*report.SalesReport{row(other, 1)}))
	require.NoError(t, store.Replace(ctx, key, []*report.SalesReport{row(w, 2)}))
	require.NoError(t, store.Replace(ctx, key, []*report.SalesReport{row(w, 3)}))

	found, err := store.Find(ctx, key)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].TotalSales.Equal(decimal.NewFromInt(3)))
	assert.Len(t, store.All(), 2)
	assert.Equal(t, 3, store.Replaces())

	boom := errors.New("boom")
	store.FailNextReplace(boom)
	assert.ErrorIs(t, store.Replace(ctx, key, nil), boom)
	found, err = store.Find(ctx, key)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	full := report.ReportKey{ReportType: report.ReportTypeDaily, CriteriaType: report.CriteriaNone, Scope: report.ScopeWindow}
	require.NoError(t, store.Replace(ctx, full, nil))
	assert.Empty(t, store.All())
}
