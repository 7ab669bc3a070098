package persistence

import (
	"context"
	"fmt"

	"github.com/possales/backend/internal/domain/report"
	"gorm.io/gorm"
)

// insertBatchSize bounds the rows per INSERT statement
const insertBatchSize = 500

// GormReportStore implements report.ReportStore on the sales_reports table
type GormReportStore struct {
	db *gorm.DB
}

// NewGormReportStore creates a new GormReportStore
func NewGormReportStore(db *gorm.DB) *GormReportStore {
	return &GormReportStore{db: db}
}

// Replace deletes the rows of key and inserts rows in one transaction.
// Deleting nothing is not an error. Any failure rolls the whole replacement back.
func (s *GormReportStore) Replace(ctx context.Context, key report.ReportKey, rows []*report.SalesReport) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := scopeKey(tx, key).Delete(&report.SalesReport{}).Error; err != nil {
			return fmt.Errorf("delete stale rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Find returns the rows of key ordered by start date, then criteria id
func (s *GormReportStore) Find(ctx context.Context, key report.ReportKey) ([]report.SalesReport, error) {
	var rows []report.SalesReport
	err := scopeKey(s.db.WithContext(ctx), key).
		Order("start_date ASC").
		Order("criteria_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return rows, nil
}

// scopeKey narrows a query to the rows owned by key
func scopeKey(db *gorm.DB, key report.ReportKey) *gorm.DB {
	query := db.Where("report_type = ? AND criteria_type = ? AND scope = ?",
		key.ReportType, key.CriteriaType, key.Scope)
	if key.Window != nil {
		query = query.Where("start_date = ? AND end_date = ?", key.Window.Start, key.Window.End)
	}
	return query
}
