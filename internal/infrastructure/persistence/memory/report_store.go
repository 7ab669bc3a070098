package memory

import (
	"context"
	"sync"

	"github.com/possales/backend/internal/domain/report"
)

// ReportStore is an in-memory report.ReportStore
type ReportStore struct {
	mu     sync.RWMutex
	rows   []report.SalesReport
	nextID int64

	// replaceErr, when set, fails the next Replace without touching stored rows
	replaceErr error
	replaces   int
}

// NewReportStore creates an empty store
func NewReportStore() *ReportStore {
	return &ReportStore{}
}

// FailNextReplace makes the next Replace return err
func (s *ReportStore) FailNextReplace(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceErr = err
}

// Replace implements report.ReportStore
func (s *ReportStore) Replace(ctx context.Context, key report.ReportKey, rows []*report.SalesReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.replaceErr; err != nil {
		s.replaceErr = nil
		return err
	}
	s.replaces++

	kept := s.rows[:0:0]
	for _, r := range s.rows {
		if !matches(key, r) {
			kept = append(kept, r)
		}
	}
	for _, r := range rows {
		s.nextID++
		stored := *r
		stored.ID = s.nextID
		r.ID = s.nextID
		kept = append(kept, stored)
	}
	s.rows = kept
	return nil
}

// Find implements report.ReportStore
func (s *ReportStore) Find(ctx context.Context, key report.ReportKey) ([]report.SalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found []report.SalesReport
	for _, r := range s.rows {
		if matches(key, r) {
			found = append(found, r)
		}
	}
	report.SortReports(found)
	return found, nil
}

// All returns a copy of every stored row
func (s *ReportStore) All() []report.SalesReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]report.SalesReport(nil), s.rows...)
}

// Replaces counts successful Replace calls
func (s *ReportStore) Replaces() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replaces
}

func matches(key report.ReportKey, r report.SalesReport) bool {
	if r.ReportType != key.ReportType || r.CriteriaType != key.CriteriaType || r.Scope != key.Scope {
		return false
	}
	if key.Window == nil {
		return true
	}
	return r.StartDate.Equal(key.Window.Start) && r.EndDate.Equal(key.Window.End)
}
