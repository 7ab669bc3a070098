package persistence

import (
	"fmt"

	"github.com/possales/backend/internal/domain/catalog"
	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/domain/sales"
	"gorm.io/gorm"
)

// Models lists every table the service owns or reads, in dependency order
func Models() []any {
	return []any{
		&sales.User{},
		&catalog.Category{},
		&catalog.Product{},
		&sales.Invoice{},
		&sales.InvoiceDetail{},
		&report.SalesReport{},
	}
}

// AutoMigrate creates or updates the schema with GORM.
// Production deployments run the SQL migrations instead.
func AutoMigrate(db *gorm.DB, extra ...any) error {
	models := append(Models(), extra...)
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
