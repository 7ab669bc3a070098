package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestReportMetrics_ObserveGeneration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReportMetrics(reg)

	m.ObserveGeneration("daily", "window", OutcomeSuccess, 250*time.Millisecond, 1)
	m.ObserveGeneration("product", "all_time", OutcomeSuccess, time.Second, 3)
	m.ObserveGeneration("daily", "window", OutcomeConflict, time.Millisecond, 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "pos_report_generations_total", map[string]string{"kind": "daily", "outcome": OutcomeSuccess})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "pos_report_generations_total", map[string]string{"kind": "daily", "outcome": OutcomeConflict})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "pos_report_rows_written_total", map[string]string{"kind": "product"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	sum, err := fetchHistogramSum(mfs, "pos_report_generation_duration_seconds", map[string]string{"kind": "product", "scope": "all_time"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, sum)

	assert.NotNil(t, findMetricFamily(mfs, "pos_report_last_success_timestamp_seconds"))
}

func TestReportMetrics_NilSafe(t *testing.T) {
	var m *ReportMetrics
	assert.NotPanics(t, func() {
		m.ObserveGeneration("daily", "window", OutcomeSuccess, time.Second, 1)
	})
	assert.NotPanics(t, func() {
		NewReportMetrics(nil).ObserveGeneration("daily", "window", OutcomeFailure, time.Second, 0)
	})
}

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	m.ObserveDuration("daily_reports", 250*time.Millisecond)
	m.IncSuccess("daily_reports")
	m.IncFailure("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "pos_job_success_total", map[string]string{"job": "daily_reports"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "pos_job_failure_total", map[string]string{"job": "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	sum, err := fetchHistogramSum(mfs, "pos_job_duration_seconds", map[string]string{"job": "daily_reports"})
	require.NoError(t, err)
	assert.Greater(t, sum, 0.0)

	var nilMetrics *JobMetrics
	assert.NotPanics(t, func() { nilMetrics.IncSuccess("x") })
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.RequestStarted()
	m.RequestFinished("GET", "/sales_report/:report_type", 200, 10*time.Millisecond, 128)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "pos_http_server_request_total",
		map[string]string{"method": "GET", "route": "/sales_report/:report_type", "status_code": "200"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	active := findMetricFamily(mfs, "pos_http_server_active_requests")
	require.NotNil(t, active)
	assert.Equal(t, 0.0, active.GetMetric()[0].GetGauge().GetValue())
}

func TestDBMetrics_RecordQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDBMetrics(reg, nil, "pos", 100*time.Millisecond)

	m.RecordQuery("select", "sales_reports", 10*time.Millisecond, nil)
	m.RecordQuery("select", "categories", 10*time.Millisecond, gorm.ErrRecordNotFound)
	m.RecordQuery("", "invoices", 500*time.Millisecond, errors.New("boom"))

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "pos_db_query_total", map[string]string{"operation": "SELECT", "status": "ok"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)

	got, err = fetchCounterValue(mfs, "pos_db_query_total", map[string]string{"operation": "UNKNOWN", "status": "error"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = fetchCounterValue(mfs, "pos_db_slow_query_total", map[string]string{"table": "invoices"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func TestDBMetricsPlugin(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB, DriverName: "postgres"}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := NewDBMetrics(reg, mockDB, "pos", 0)
	require.NoError(t, db.Use(NewDBMetricsPlugin(metrics, nil)))

	mock.ExpectQuery(`SELECT \* FROM "categories"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "Drinks"))

	type category struct {
		ID   int64
		Name string
	}
	var rows []category
	require.NoError(t, db.Table("categories").Find(&rows).Error)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got, err := fetchCounterValue(mfs, "pos_db_query_total", map[string]string{"operation": "SELECT"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
	assert.NotNil(t, findMetricFamily(mfs, "go_sql_open_connections"))
}

func TestDetectOperationType(t *testing.T) {
	assert.Equal(t, "SELECT", detectOperationType("  select 1"))
	assert.Equal(t, "INSERT", detectOperationType("INSERT INTO x"))
	assert.Equal(t, "UPDATE", detectOperationType("update x"))
	assert.Equal(t, "DELETE", detectOperationType("DELETE FROM x"))
	assert.Equal(t, "OTHER", detectOperationType("VACUUM"))
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	NewReportMetrics(reg).ObserveGeneration("daily", "window", OutcomeSuccess, time.Second, 1)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pos_report_generations_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// matchesLabels reports whether every wanted label is present with the wanted value
func matchesLabels(labels []*dto.LabelPair, want map[string]string) bool {
	for name, value := range want {
		found := false
		for _, label := range labels {
			if label.GetName() == name && label.GetValue() == value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
