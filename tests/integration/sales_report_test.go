package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogapp "github.com/possales/backend/internal/application/catalog"
	reportapp "github.com/possales/backend/internal/application/report"
	"github.com/possales/backend/internal/domain/catalog"
	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/infrastructure/cache"
	"github.com/possales/backend/internal/infrastructure/migration"
	"github.com/possales/backend/internal/infrastructure/persistence"
	"github.com/possales/backend/internal/infrastructure/scheduler"
	"github.com/possales/backend/internal/interfaces/http/handler"
	"github.com/possales/backend/internal/interfaces/http/middleware"
	"github.com/possales/backend/internal/interfaces/http/router"
	"github.com/possales/backend/migrations"
	"github.com/possales/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

// posFixture holds the IDs of the seeded POS rows
type posFixture struct {
	alice, bob  int64
	drinks      int64
	cola, chips int64
}

// seedSales creates two cashiers, one category and three invoices:
//
//	2024-02-20 alice  chips 4 x 3.50                  = 14.00
//	2024-03-13 alice  cola 2 x 10.00, chips 1 x 3.50  = 23.50
//	2024-03-14 bob    cola 1 x 10.00                  = 10.00
func seedSales(tdb *TestDB) posFixture {
	var f posFixture
	f.alice = tdb.CreateUser("alice")
	f.bob = tdb.CreateUser("bob")
	f.drinks = tdb.CreateCategory("Drinks")
	f.cola = tdb.CreateProduct("Cola", &f.drinks)
	f.chips = tdb.CreateProduct("Chips", nil)

	tdb.CreateInvoice(f.alice, time.Date(2024, 2, 20, 9, 0, 0, 0, time.UTC),
		SaleLine{ProductID: f.chips, Qty: 4, Price: "3.50"})
	tdb.CreateInvoice(f.alice, time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC),
		SaleLine{ProductID: f.cola, Qty: 2, Price: "10.00"},
		SaleLine{ProductID: f.chips, Qty: 1, Price: "3.50"})
	tdb.CreateInvoice(f.bob, time.Date(2024, 3, 14, 11, 0, 0, 0, time.UTC),
		SaleLine{ProductID: f.cola, Qty: 1, Price: "10.00"})
	return f
}

func newGenerationService(tdb *TestDB) *reportapp.GenerationService {
	now := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	return reportapp.NewGenerationService(
		persistence.NewGormSalesAggregator(tdb.DB, time.UTC),
		persistence.NewGormReportStore(tdb.DB),
		cache.NewMemoryLocker(),
		reportapp.DefaultConfig(),
		zap.NewNop(),
		reportapp.WithClock(func() time.Time { return now }),
	)
}

func newEngine(tdb *TestDB, svc *reportapp.GenerationService) *gin.Engine {
	engine := gin.New()
	categoryService := catalogapp.NewCategoryService(persistence.NewGormCategoryRepository(tdb.DB), zap.NewNop())
	router.NewRouter(engine).
		Register(router.SalesReportRoutes(handler.NewSalesReportHandler(svc), nil)).
		Register(router.CategoryRoutes(handler.NewCategoryHandler(categoryService))).
		Setup()
	return engine
}

func TestSalesReportGeneration_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	f := seedSales(tdb)
	svc := newGenerationService(tdb)
	ctx := testutil.ContextWithTimeout(t, 30*time.Second)
	ref := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)

	t.Run("daily window", func(t *testing.T) {
		result, err := svc.Generate(ctx, reportapp.Request{Kind: report.KindDaily, Reference: ref})
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, 23.5, result.Rows[0].TotalSales)
		assert.Equal(t, int64(3), result.Rows[0].TotalQty)
		assert.Equal(t, int64(1), result.Rows[0].TotalInvoices)
		assert.Equal(t, "2024-03-13", result.Rows[0].StartDate)
	})

	t.Run("weekly window spans monday to sunday", func(t *testing.T) {
		result, err := svc.Generate(ctx, reportapp.Request{Kind: report.KindWeekly, Reference: ref})
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		assert.Equal(t, 33.5, result.Rows[0].TotalSales)
		assert.Equal(t, int64(2), result.Rows[0].TotalInvoices)
		assert.Equal(t, "2024-03-11", result.Rows[0].StartDate)
		assert.Equal(t, "2024-03-17", result.Rows[0].EndDate)
	})

	t.Run("category window skips uncategorized products", func(t *testing.T) {
		result, err := svc.Generate(ctx, reportapp.Request{Kind: report.KindCategory, Reference: ref})
		require.NoError(t, err)
		require.Len(t, result.Rows, 1)
		require.NotNil(t, result.Rows[0].CriteriaID)
		assert.Equal(t, f.drinks, *result.Rows[0].CriteriaID)
		assert.Equal(t, "Drinks", *result.Rows[0].CriteriaName)
		assert.Equal(t, 20.0, result.Rows[0].TotalSales)
		assert.Equal(t, int64(2), result.Rows[0].TotalQty)
	})

	t.Run("user report covers all history", func(t *testing.T) {
		result, err := svc.Generate(ctx, reportapp.Request{Kind: report.KindUser, Full: true, Reference: ref})
		require.NoError(t, err)
		require.Len(t, result.Rows, 2)
		assert.Equal(t, f.alice, *result.Rows[0].CriteriaID)
		assert.Equal(t, 37.5, result.Rows[0].TotalSales)
		assert.Equal(t, int64(7), result.Rows[0].TotalQty)
		assert.Equal(t, int64(2), result.Rows[0].TotalInvoices)
		assert.Equal(t, f.bob, *result.Rows[1].CriteriaID)
		assert.Equal(t, 10.0, result.Rows[1].TotalSales)
	})

	t.Run("daily full has one row per day with sales", func(t *testing.T) {
		result, err := svc.Generate(ctx, reportapp.Request{Kind: report.KindDaily, Full: true})
		require.NoError(t, err)
		require.Len(t, result.Rows, 3)
		assert.Equal(t, "2024-02-20", result.Rows[0].StartDate)
		assert.Equal(t, "2024-03-13", result.Rows[1].StartDate)
		assert.Equal(t, "2024-03-14", result.Rows[2].StartDate)
	})

	t.Run("regeneration replaces stored rows", func(t *testing.T) {
		_, err := svc.Generate(ctx, reportapp.Request{Kind: report.KindDaily, Reference: ref})
		require.NoError(t, err)
		_, err = svc.Generate(ctx, reportapp.Request{Kind: report.KindDaily, Reference: ref})
		require.NoError(t, err)

		var count int64
		require.NoError(t, tdb.DB.Model(&report.SalesReport{}).
			Where("report_type = ? AND scope = ? AND start_date = ?", report.ReportTypeDaily, report.ScopeWindow, ref).
			Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("empty month is not found", func(t *testing.T) {
		_, err := svc.Generate(ctx, reportapp.Request{
			Kind:      report.KindMonthly,
			Reference: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		})
		require.Error(t, err)
	})
}

func TestSalesReportAPI_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	seedSales(tdb)
	engine := newEngine(tdb, newGenerationService(tdb))

	testutil.RunHTTPTestCases(t, engine, []testutil.HTTPTestCase{
		{
			Name:           "weekly window is a single object",
			Method:         http.MethodGet,
			Path:           "/sales_report/generate/weekly?date=2024-03-13",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				row := testutil.DecodeJSON[reportapp.SalesReportResponse](t, w)
				assert.Equal(t, 33.5, row.TotalSales)
				assert.Equal(t, "2024-03-11", row.StartDate)
			},
		},
		{
			Name:           "monthly window without sales",
			Method:         http.MethodGet,
			Path:           "/sales_report/generate/monthly?date=2023-06-01",
			ExpectedStatus: http.StatusNotFound,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				body := testutil.DecodeJSON[map[string]any](t, w)
				assert.Contains(t, body, "message")
			},
		},
		{
			Name:           "product report is an array",
			Method:         http.MethodGet,
			Path:           "/sales_report/generate/product?date=2024-03-13",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				rows := testutil.DecodeJSON[[]reportapp.SalesReportResponse](t, w)
				require.Len(t, rows, 2)
				assert.Equal(t, "Cola", *rows[0].CriteriaName)
				assert.Equal(t, "Chips", *rows[1].CriteriaName)
			},
		},
		{
			Name:           "unknown kind",
			Method:         http.MethodGet,
			Path:           "/sales_report/generate/yearly",
			ExpectedStatus: http.StatusBadRequest,
		},
		{
			Name:           "window without data access",
			Method:         http.MethodGet,
			Path:           "/sales_report/window/monthly?date=2024-02-10",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				window := testutil.DecodeJSON[handler.WindowResponse](t, w)
				assert.Equal(t, "2024-02-01", window.StartDate)
				assert.Equal(t, "2024-02-29", window.EndDate)
				assert.Equal(t, 29, window.Days)
			},
		},
	})
}

func TestCategoryAPI_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	f := seedSales(tdb)
	engine := newEngine(tdb, newGenerationService(tdb))

	w := testutil.RunHTTPTestCase(t, engine, testutil.HTTPTestCase{
		Name:           "create",
		Method:         http.MethodPost,
		Path:           "/category/create",
		Body:           map[string]any{"name": "  Snacks "},
		ExpectedStatus: http.StatusOK,
	})
	created := testutil.DecodeJSON[handler.CreateCategoryResponse](t, w)
	assert.Equal(t, "Snacks", created.Product.Name)

	testutil.RunHTTPTestCases(t, engine, []testutil.HTTPTestCase{
		{
			Name:           "list upper-cases names",
			Method:         http.MethodGet,
			Path:           "/category/list",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				list := testutil.DecodeJSON[[]catalogapp.CategoryListResponse](t, w)
				require.Len(t, list, 2)
				assert.Equal(t, "DRINKS", list[0].Name)
				assert.Equal(t, "SNACKS", list[1].Name)
				assert.Equal(t, "true", list[1].Active)
			},
		},
		{
			Name:           "update unknown category",
			Method:         http.MethodPut,
			Path:           "/category/update",
			Body:           map[string]any{"category_id": 999},
			ExpectedStatus: http.StatusNotFound,
		},
		{
			Name:           "rename",
			Method:         http.MethodPut,
			Path:           "/category/update",
			Body:           map[string]any{"category_id": created.Product.ID, "name": "Crisps"},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				resp := testutil.DecodeJSON[handler.UpdateCategoryResponse](t, w)
				assert.Equal(t, "Crisps", resp.Category.Name)
			},
		},
		{
			Name:           "delete uncategorizes products",
			Method:         http.MethodDelete,
			Path:           "/category/delete",
			Body:           map[string]any{"category_id": f.drinks},
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, w *httptest.ResponseRecorder) {
				var product catalog.Product
				require.NoError(t, tdb.DB.First(&product, f.cola).Error)
				assert.Nil(t, product.CategoryID)
			},
		},
	})
}

func TestSchedulerJobRepository_Postgres(t *testing.T) {
	tdb := NewSharedTestDB(t)
	tdb.CleanTables()
	repo := scheduler.NewSchedulerJobRepository(tdb.DB)
	ctx := context.Background()

	job := &scheduler.Job{
		ID:        uuid.New(),
		Kind:      report.KindWeekly,
		Reference: time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	recordID, err := repo.RecordJobStart(ctx, job)
	require.NoError(t, err)
	require.NoError(t, repo.RecordJobComplete(ctx, recordID, false, "lock busy"))

	last, err := repo.GetLastJobStatus(ctx, string(report.KindWeekly))
	require.NoError(t, err)
	assert.Equal(t, job.ID, last.JobID)
	assert.Equal(t, string(scheduler.JobStatusFailed), last.Status)
	assert.Equal(t, "lock busy", last.Error)
	assert.NotNil(t, last.CompletedAt)
}

func TestMigrations_DownAndUp(t *testing.T) {
	tdb := NewTestDB(t)

	countTable := func(name string) int64 {
		var n int64
		require.NoError(t, tdb.DB.Raw(
			`SELECT count(*) FROM pg_tables WHERE schemaname = 'public' AND tablename = ?`, name,
		).Scan(&n).Error)
		return n
	}
	assert.Equal(t, int64(1), countTable("sales_reports"))

	// The CHECK constraint rejects unknown report types
	err := tdb.DB.Exec(`INSERT INTO sales_reports (report_type, criteria_type, scope, start_date, end_date)
		VALUES ('yearly', 'none', 'window', '2024-01-01', '2024-01-01')`).Error
	assert.Error(t, err)

	m, err := migration.New(tdb.SqlDB, migration.Source{FS: migrations.FS}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Down())
	assert.Equal(t, int64(0), countTable("sales_reports"))
	assert.Equal(t, int64(0), countTable("invoices"))

	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)
	assert.Equal(t, int64(1), countTable("report_scheduler_jobs"))
}
