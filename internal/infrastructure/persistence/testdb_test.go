package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/possales/backend/internal/domain/catalog"
	"github.com/possales/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupSQLiteDB opens a fresh in-memory database with the full schema
func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every connection to ":memory:" is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

// newMockGormDB creates a GORM postgres session over sqlmock
func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

// salesFixture seeds POS rows for aggregation tests
type salesFixture struct {
	t  *testing.T
	db *gorm.DB
}

func newSalesFixture(t *testing.T, db *gorm.DB) *salesFixture {
	return &salesFixture{t: t, db: db}
}

func (f *salesFixture) user(name string) int64 {
	u := &sales.User{Name: name}
	require.NoError(f.t, f.db.Create(u).Error)
	return u.ID
}

func (f *salesFixture) category(name string) int64 {
	c, err := catalog.NewCategory(name)
	require.NoError(f.t, err)
	require.NoError(f.t, f.db.Create(c).Error)
	return c.ID
}

func (f *salesFixture) product(name string, categoryID *int64) int64 {
	now := time.Now()
	p := &catalog.Product{Name: name, CategoryID: categoryID, CreatedAt: now, UpdatedAt: now}
	require.NoError(f.t, f.db.Create(p).Error)
	return p.ID
}

// line is one invoice line: product, qty, price
type line struct {
	productID int64
	qty       int64
	price     string
}

func (f *salesFixture) invoice(userID int64, at time.Time, lines ...line) int64 {
	inv := &sales.Invoice{UserID: userID, CreateAt: at.UTC()}
	require.NoError(f.t, f.db.Create(inv).Error)
	for _, l := range lines {
		d := &sales.InvoiceDetail{
			InvoiceID: inv.ID,
			ProductID: l.productID,
			Qty:       l.qty,
			Price:     decimal.RequireFromString(l.price),
		}
		require.NoError(f.t, f.db.Create(d).Error)
	}
	return inv.ID
}

func ptr[T any](v T) *T {
	return &v
}

func at(day string, hour int) time.Time {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(hour) * time.Hour)
}
