package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/domain/shared"
	"github.com/possales/backend/internal/infrastructure/logger"
	"github.com/possales/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrGenerationInProgress is returned when another generation holds the report key
var ErrGenerationInProgress = shared.NewDomainError("GENERATION_IN_PROGRESS", "Report generation already in progress, try again later")

// lockReleaseTimeout bounds the release of a lock after its request context ended
const lockReleaseTimeout = 5 * time.Second

// Config holds generation settings
type Config struct {
	// Location defines where calendar days start
	Location *time.Location
	// LockTTL is how long a held lock survives a crashed holder
	LockTTL time.Duration
	// LockWait is how long a generation waits for a busy report key
	LockWait time.Duration
	// LockPollInterval is the delay between acquisition attempts
	LockPollInterval time.Duration
}

// DefaultConfig returns default generation settings
func DefaultConfig() Config {
	return Config{
		Location:         time.UTC,
		LockTTL:          2 * time.Minute,
		LockWait:         10 * time.Second,
		LockPollInterval: 100 * time.Millisecond,
	}
}

// Option configures a GenerationService
type Option func(*GenerationService)

// WithMetrics records generations on m
func WithMetrics(m *telemetry.ReportMetrics) Option {
	return func(s *GenerationService) {
		s.metrics = m
	}
}

// WithClock replaces the wall clock used for "today" and created_at
func WithClock(now func() time.Time) Option {
	return func(s *GenerationService) {
		s.now = now
	}
}

// GenerationService computes sales reports and replaces their stored rows.
// Every generation of one report key runs under that key's lock.
type GenerationService struct {
	aggregator report.SalesAggregator
	store      report.ReportStore
	locker     shared.Locker
	metrics    *telemetry.ReportMetrics
	logger     *zap.Logger
	config     Config
	now        func() time.Time
}

// NewGenerationService creates a new GenerationService
func NewGenerationService(
	aggregator report.SalesAggregator,
	store report.ReportStore,
	locker shared.Locker,
	config Config,
	zapLogger *zap.Logger,
	opts ...Option,
) *GenerationService {
	defaults := DefaultConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaults.LockTTL
	}
	if config.LockWait < 0 {
		config.LockWait = 0
	}
	if config.LockPollInterval <= 0 {
		config.LockPollInterval = defaults.LockPollInterval
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	s := &GenerationService{
		aggregator: aggregator,
		store:      store,
		locker:     locker,
		logger:     zapLogger,
		config:     config,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current date in the report time zone
func (s *GenerationService) Today() time.Time {
	return report.DateOf(s.now().In(s.config.Location))
}

// Generate runs the generation selected by req
func (s *GenerationService) Generate(ctx context.Context, req Request) (*Result, error) {
	reference := req.Reference
	if reference.IsZero() {
		reference = s.Today()
	}
	reference = report.DateOf(reference)

	if req.Full {
		rows, err := s.generateFull(ctx, req.Kind, reference)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: req.Kind, Scope: ScopeFull, Rows: rows}, nil
	}

	window, rows, err := s.generateWindow(ctx, req.Kind, reference)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		switch req.Kind {
		case report.KindWeekly:
			return nil, shared.NewDomainError("NOT_FOUND", "No data found for this week")
		case report.KindMonthly:
			return nil, shared.NewDomainError("NOT_FOUND", "No data found for this month")
		}
	}
	return &Result{Kind: req.Kind, Scope: ScopeWindow, Window: &window, Rows: rows}, nil
}

// GenerateDaily regenerates the daily report of the reference day
func (s *GenerationService) GenerateDaily(ctx context.Context, reference time.Time) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindDaily, Reference: reference}))
}

// GenerateDailyFull regenerates one daily row for every day with sales
func (s *GenerationService) GenerateDailyFull(ctx context.Context) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindDaily, Full: true}))
}

// GenerateWeekly regenerates the report of the reference week.
// An empty week is a not-found error.
func (s *GenerationService) GenerateWeekly(ctx context.Context, reference time.Time) (*SalesReportResponse, error) {
	return s.single(s.Generate(ctx, Request{Kind: report.KindWeekly, Reference: reference}))
}

// GenerateWeeklyFull regenerates one weekly row for every week with sales
func (s *GenerationService) GenerateWeeklyFull(ctx context.Context) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindWeekly, Full: true}))
}

// GenerateMonthly regenerates the report of the reference month.
// An empty month is a not-found error.
func (s *GenerationService) GenerateMonthly(ctx context.Context, reference time.Time) (*SalesReportResponse, error) {
	return s.single(s.Generate(ctx, Request{Kind: report.KindMonthly, Reference: reference}))
}

// GenerateMonthlyFull regenerates one monthly row for every month with sales
func (s *GenerationService) GenerateMonthlyFull(ctx context.Context) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindMonthly, Full: true}))
}

// GenerateByProduct regenerates the per-product breakdown of the reference day
func (s *GenerationService) GenerateByProduct(ctx context.Context, reference time.Time) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindProduct, Reference: reference}))
}

// GenerateByProductFull regenerates the all-time per-product breakdown as of the reference day
func (s *GenerationService) GenerateByProductFull(ctx context.Context, reference time.Time) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindProduct, Full: true, Reference: reference}))
}

// GenerateByCategory regenerates the per-category breakdown of the reference day
func (s *GenerationService) GenerateByCategory(ctx context.Context, reference time.Time) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindCategory, Reference: reference}))
}

// GenerateByCategoryFull regenerates the all-time per-category breakdown as of the reference day
func (s *GenerationService) GenerateByCategoryFull(ctx context.Context, reference time.Time) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindCategory, Full: true, Reference: reference}))
}

// GenerateByUser regenerates the per-user breakdown of the reference day
func (s *GenerationService) GenerateByUser(ctx context.Context, reference time.Time) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindUser, Reference: reference}))
}

// GenerateByUserFull regenerates the all-time per-user breakdown as of the reference day
func (s *GenerationService) GenerateByUserFull(ctx context.Context, reference time.Time) ([]SalesReportResponse, error) {
	return s.rows(s.Generate(ctx, Request{Kind: report.KindUser, Full: true, Reference: reference}))
}

func (s *GenerationService) rows(result *Result, err error) ([]SalesReportResponse, error) {
	if err != nil {
		return nil, err
	}
	return result.Rows, nil
}

func (s *GenerationService) single(result *Result, err error) (*SalesReportResponse, error) {
	if err != nil {
		return nil, err
	}
	return &result.Rows[0], nil
}

// generateWindow regenerates the rows of the window kind covers on reference
func (s *GenerationService) generateWindow(ctx context.Context, kind report.Kind, reference time.Time) (report.Window, []SalesReportResponse, error) {
	window, err := report.ResolveWindow(kind.ReportType(), reference)
	if err != nil {
		return report.Window{}, nil, err
	}
	key := report.ReportKey{
		ReportType:   kind.ReportType(),
		CriteriaType: kind.CriteriaType(),
		Scope:        report.ScopeWindow,
		Window:       &window,
	}

	rows, err := s.run(ctx, kind, key, func(ctx context.Context, createdAt time.Time) ([]*report.SalesReport, error) {
		aggregates, err := s.aggregator.Aggregate(ctx, report.AggregateFilter{
			Dimension: kind.CriteriaType(),
			Window:    &window,
		})
		if err != nil {
			return nil, err
		}
		rows := make([]*report.SalesReport, 0, len(aggregates))
		for _, a := range aggregates {
			rows = append(rows, report.NewSalesReport(key, window, a, createdAt))
		}
		return rows, nil
	})
	if err != nil {
		return report.Window{}, nil, err
	}
	return window, rows, nil
}

// generateFull regenerates every row of kind.
// Period kinds bucket per-day totals into their windows; criteria kinds aggregate all history
// into rows dated reference.
func (s *GenerationService) generateFull(ctx context.Context, kind report.Kind, reference time.Time) ([]SalesReportResponse, error) {
	if !kind.IsCriteria() {
		key := report.ReportKey{
			ReportType:   kind.ReportType(),
			CriteriaType: report.CriteriaNone,
			Scope:        report.ScopeWindow,
		}
		return s.run(ctx, kind, key, func(ctx context.Context, createdAt time.Time) ([]*report.SalesReport, error) {
			days, err := s.aggregator.AggregateDays(ctx)
			if err != nil {
				return nil, err
			}
			return report.BucketDays(key, days, createdAt)
		})
	}

	key := report.ReportKey{
		ReportType:   report.ReportTypeCriteria,
		CriteriaType: kind.CriteriaType(),
		Scope:        report.ScopeAllTime,
	}
	asOf := report.Window{Start: reference, End: reference}
	return s.run(ctx, kind, key, func(ctx context.Context, createdAt time.Time) ([]*report.SalesReport, error) {
		aggregates, err := s.aggregator.Aggregate(ctx, report.AggregateFilter{Dimension: kind.CriteriaType()})
		if err != nil {
			return nil, err
		}
		rows := make([]*report.SalesReport, 0, len(aggregates))
		for _, a := range aggregates {
			rows = append(rows, report.NewSalesReport(key, asOf, a, createdAt))
		}
		return rows, nil
	})
}

type computeFunc func(ctx context.Context, createdAt time.Time) ([]*report.SalesReport, error)

// run computes, replaces and re-reads the rows of key while holding its lock
func (s *GenerationService) run(ctx context.Context, kind report.Kind, key report.ReportKey, compute computeFunc) ([]SalesReportResponse, error) {
	start := time.Now()
	ctx = logger.WithReportKey(ctx, key.String())
	log := logger.FromContextOr(ctx, s.logger).With(
		zap.String("report_key", key.String()),
		zap.String("kind", string(kind)),
	)
	scope := string(key.Scope)
	if key.Window == nil {
		scope = ScopeFull
	}

	lock, err := s.acquire(ctx, key)
	if err != nil {
		outcome := telemetry.OutcomeFailure
		if errors.Is(err, ErrGenerationInProgress) {
			outcome = telemetry.OutcomeConflict
			log.Warn("Report generation already in progress", zap.Duration("waited", time.Since(start)))
		}
		s.metrics.ObserveGeneration(string(kind), scope, outcome, time.Since(start), 0)
		return nil, err
	}
	defer s.release(ctx, lock, log)

	rows, err := compute(ctx, s.now())
	if err != nil {
		s.metrics.ObserveGeneration(string(kind), scope, telemetry.OutcomeFailure, time.Since(start), 0)
		log.Error("Failed to aggregate sales", zap.Error(err))
		return nil, fmt.Errorf("aggregate %s: %w", key, err)
	}

	if err := s.store.Replace(ctx, key, rows); err != nil {
		s.metrics.ObserveGeneration(string(kind), scope, telemetry.OutcomeFailure, time.Since(start), 0)
		log.Error("Failed to replace report rows", zap.Error(err))
		return nil, err
	}

	stored, err := s.store.Find(ctx, key)
	if err != nil {
		s.metrics.ObserveGeneration(string(kind), scope, telemetry.OutcomeFailure, time.Since(start), 0)
		log.Error("Failed to read report rows", zap.Error(err))
		return nil, err
	}

	outcome := telemetry.OutcomeSuccess
	if len(stored) == 0 {
		outcome = telemetry.OutcomeEmpty
	}
	s.metrics.ObserveGeneration(string(kind), scope, outcome, time.Since(start), len(rows))
	log.Info("Report generated",
		zap.Int("rows", len(stored)),
		zap.Duration("duration", time.Since(start)),
	)

	return ToSalesReportResponses(stored), nil
}

// acquire polls for the lock of key until LockWait elapses
func (s *GenerationService) acquire(ctx context.Context, key report.ReportKey) (shared.Lock, error) {
	lock, err := s.locker.NewLock(key.LockName(), s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("create lock %s: %w", key, err)
	}

	deadline := time.Now().Add(s.config.LockWait)
	ticker := time.NewTicker(s.config.LockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return lock, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrGenerationInProgress
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release frees lock even when the request context has already ended
func (s *GenerationService) release(ctx context.Context, lock shared.Lock, log *zap.Logger) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
	defer cancel()
	if err := lock.Release(releaseCtx); err != nil {
		log.Warn("Failed to release report lock", zap.Error(err))
	}
}
