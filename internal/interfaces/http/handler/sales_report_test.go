package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	reportapp "github.com/possales/backend/internal/application/report"
	"github.com/possales/backend/internal/infrastructure/cache"
	"github.com/possales/backend/internal/infrastructure/persistence/memory"
	"github.com/possales/backend/internal/interfaces/http/dto"
	"github.com/possales/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Wednesday, 2024-03-13
var reportNow = time.Date(2024, 3, 13, 18, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }

func saleLine(productID, qty int64, price string) memory.Line {
	return memory.Line{ProductID: productID, Qty: qty, Price: decimal.RequireFromString(price)}
}

type reportFixture struct {
	store  *memory.ReportStore
	locker *cache.MemoryLocker
	router *gin.Engine
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	middleware.SetupValidator()

	ledger := memory.NewSalesLedger(time.UTC)
	ledger.AddUser(1, "alice")
	ledger.AddUser(2, "bob")
	ledger.AddCategory(1, "Drinks")
	ledger.AddCategory(2, "Snacks")
	ledger.AddProduct(1, "Cola", int64Ptr(1))
	ledger.AddProduct(2, "Chips", int64Ptr(2))
	ledger.AddInvoice(1, time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC), saleLine(1, 1, "10.00"))
	ledger.AddInvoice(2, time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC), saleLine(2, 4, "2.50"))
	ledger.AddInvoice(1, time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC), saleLine(1, 2, "10.00"), saleLine(2, 1, "5.00"))

	f := &reportFixture{
		store:  memory.NewReportStore(),
		locker: cache.NewMemoryLocker(),
	}
	service := reportapp.NewGenerationService(ledger, f.store, f.locker, reportapp.Config{
		Location:         time.UTC,
		LockTTL:          time.Minute,
		LockPollInterval: time.Millisecond,
	}, zap.NewNop(), reportapp.WithClock(func() time.Time { return reportNow }))

	h := NewSalesReportHandler(service)
	f.router = gin.New()
	f.router.GET("/sales_report/generate/:type", h.Generate)
	f.router.GET("/sales_report/window/:type", h.Window)
	return f
}

func (f *reportFixture) get(target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest("GET", target, nil))
	return w
}

func decodeRows(t *testing.T, w *httptest.ResponseRecorder) []reportapp.SalesReportResponse {
	t.Helper()
	var rows []reportapp.SalesReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows), w.Body.String())
	return rows
}

func TestSalesReportHandler_Daily(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/daily")

	require.Equal(t, http.StatusOK, w.Code)
	rows := decodeRows(t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, 25.0, rows[0].TotalSales)
	assert.Equal(t, int64(3), rows[0].TotalQty)
	assert.Equal(t, int64(1), rows[0].TotalInvoices)
	assert.Equal(t, "2024-03-13", rows[0].StartDate)
	assert.Equal(t, "2024-03-13", rows[0].EndDate)
}

func TestSalesReportHandler_DailyEmptyIsEmptyArray(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/daily?date=2024-03-12")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	assert.Empty(t, f.store.All())
}

func TestSalesReportHandler_WeeklyIsSingleObject(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/weekly")

	require.Equal(t, http.StatusOK, w.Code)
	var row reportapp.SalesReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, 35.0, row.TotalSales)
	assert.Equal(t, int64(7), row.TotalQty)
	assert.Equal(t, int64(2), row.TotalInvoices)
	assert.Equal(t, "2024-03-11", row.StartDate)
	assert.Equal(t, "2024-03-17", row.EndDate)
}

func TestSalesReportHandler_EmptyWindowsAre404(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/weekly?date=2024-01-10")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"No data found for this week"}`, w.Body.String())

	w = f.get("/sales_report/generate/monthly?date=2024-01-10")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"message":"No data found for this month"}`, w.Body.String())
}

func TestSalesReportHandler_MonthlyLeapFebruary(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/monthly?date=2024-02-10")

	require.Equal(t, http.StatusOK, w.Code)
	var row reportapp.SalesReportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, "2024-02-01", row.StartDate)
	assert.Equal(t, "2024-02-29", row.EndDate)
	assert.Equal(t, 10.0, row.TotalSales)
}

func TestSalesReportHandler_WeeklyFullIsArray(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/weekly?scope=full")

	require.Equal(t, http.StatusOK, w.Code)
	rows := decodeRows(t, w)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-02-26", rows[0].StartDate)
	assert.Equal(t, "2024-03-11", rows[1].StartDate)
}

func TestSalesReportHandler_Criteria(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/product")
	require.Equal(t, http.StatusOK, w.Code)
	products := decodeRows(t, w)
	require.Len(t, products, 2)

	w = f.get("/sales_report/generate/category")
	require.Equal(t, http.StatusOK, w.Code)
	categories := decodeRows(t, w)
	require.Len(t, categories, 2)

	var productQty, categoryQty int64
	for _, r := range products {
		productQty += r.TotalQty
	}
	for _, r := range categories {
		categoryQty += r.TotalQty
		require.NotNil(t, r.CriteriaName)
	}
	assert.Equal(t, productQty, categoryQty)
}

func TestSalesReportHandler_UserDefaultsToAllTime(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/generate/user")

	require.Equal(t, http.StatusOK, w.Code)
	rows := decodeRows(t, w)
	require.Len(t, rows, 2)
	totals := map[string]float64{}
	for _, r := range rows {
		require.NotNil(t, r.CriteriaName)
		totals[*r.CriteriaName] = r.TotalSales
		assert.Equal(t, "2024-03-13", r.StartDate)
	}
	assert.Equal(t, map[string]float64{"alice": 35, "bob": 10}, totals)

	// The windowed variant only sees today
	w = f.get("/sales_report/generate/user?scope=window")
	require.Equal(t, http.StatusOK, w.Code)
	rows = decodeRows(t, w)
	require.Len(t, rows, 1)
	assert.Equal(t, 25.0, rows[0].TotalSales)
}

func TestSalesReportHandler_Idempotent(t *testing.T) {
	f := newReportFixture(t)

	first := f.get("/sales_report/generate/daily")
	second := f.get("/sales_report/generate/daily")

	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Len(t, f.store.All(), 1)
}

func TestSalesReportHandler_InvalidInput(t *testing.T) {
	f := newReportFixture(t)

	tests := []struct {
		name   string
		target string
		code   string
	}{
		{"unknown type", "/sales_report/generate/yearly", dto.ErrCodeInvalidInput},
		{"bad date", "/sales_report/generate/daily?date=13-03-2024", dto.ErrCodeValidation},
		{"impossible date", "/sales_report/generate/daily?date=2023-02-29", dto.ErrCodeValidation},
		{"bad scope", "/sales_report/generate/daily?scope=forever", dto.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.get(tt.target)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestSalesReportHandler_GenerationInProgress(t *testing.T) {
	f := newReportFixture(t)

	lock, err := f.locker.NewLock("daily:none:window:2024-03-13:2024-03-13", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = lock.Release(context.Background()) }()

	w := f.get("/sales_report/generate/daily")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeGenerationInProgress, decodeError(t, w).Code)
}

func TestSalesReportHandler_StoreFailure(t *testing.T) {
	f := newReportFixture(t)
	f.store.FailNextReplace(errors.New("commit failed"))

	w := f.get("/sales_report/generate/daily")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, dto.ErrCodeInternal, resp.Code)
	assert.Equal(t, "An unexpected error occurred", resp.Error)
	assert.Empty(t, f.store.All())
}

func TestSalesReportHandler_Window(t *testing.T) {
	f := newReportFixture(t)

	w := f.get("/sales_report/window/weekly?date=2024-03-13")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"report_type":"weekly","start_date":"2024-03-11","end_date":"2024-03-17","days":7}`, w.Body.String())

	w = f.get("/sales_report/window/monthly")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"report_type":"monthly","start_date":"2024-03-01","end_date":"2024-03-31","days":31}`, w.Body.String())

	w = f.get("/sales_report/window/product")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"report_type":"criteria","start_date":"2024-03-13","end_date":"2024-03-13","days":1}`, w.Body.String())

	w = f.get("/sales_report/window/yearly")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
