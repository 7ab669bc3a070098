package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/possales/backend/internal/domain/report"
	"go.uber.org/zap"
)

// cronTickerInterval is the interval at which the cron scheduler checks for execution
const cronTickerInterval = 1 * time.Minute

// ReportCronSchedulerConfig holds configuration for the cron-based report scheduler
type ReportCronSchedulerConfig struct {
	// Enabled indicates if the cron scheduler is enabled
	Enabled bool
	// CronHour is the hour (0-23) to run the daily regeneration
	CronHour int
	// CronMinute is the minute (0-59) to run the daily regeneration
	CronMinute int
	// DailyCronSchedule is the cron expression (parsed to extract hour/minute)
	DailyCronSchedule string
	// Location is the time zone the schedule and the reference date are read in
	Location *time.Location
	// FullKinds are regenerated in full instead of for the reference window
	FullKinds []report.Kind
	// JobTimeout is the maximum time a single report job can run
	JobTimeout time.Duration
	// MaxConcurrentJobs is the maximum number of concurrent report jobs
	MaxConcurrentJobs int
	// RetryAttempts is the number of retry attempts for failed jobs
	RetryAttempts int
	// RetryDelay is the delay between retries
	RetryDelay time.Duration
}

// DefaultReportCronSchedulerConfig returns default cron scheduler configuration
// Defaults to running at 2:00 AM daily
func DefaultReportCronSchedulerConfig() ReportCronSchedulerConfig {
	return ReportCronSchedulerConfig{
		Enabled:           true,
		CronHour:          2,
		CronMinute:        0,
		DailyCronSchedule: "0 2 * * *",
		Location:          time.UTC,
		FullKinds:         []report.Kind{report.KindUser},
		JobTimeout:        10 * time.Minute,
		MaxConcurrentJobs: 3,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
	}
}

// ParseCronSchedule parses a cron expression "minute hour * * *" to extract hour and minute
// Returns defaults (2:00) if the expression is empty or too short
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour = 2
	minute = 0

	parts := strings.Fields(cronExpr)
	if len(parts) < 2 {
		return hour, minute, nil
	}

	if parts[0] != "*" {
		val, parseErr := parseIntOrDefault(parts[0], 0)
		if parseErr != nil {
			return 2, 0, fmt.Errorf("minute %q: %w", parts[0], parseErr)
		}
		minute = val
	}

	if parts[1] != "*" {
		val, parseErr := parseIntOrDefault(parts[1], 2)
		if parseErr != nil {
			return 2, 0, fmt.Errorf("hour %q: %w", parts[1], parseErr)
		}
		hour = val
	}

	if minute < 0 || minute > 59 {
		return 2, 0, fmt.Errorf("minute must be 0-59, got %d", minute)
	}
	if hour < 0 || hour > 23 {
		return 2, 0, fmt.Errorf("hour must be 0-23, got %d", hour)
	}

	return hour, minute, nil
}

// parseIntOrDefault parses an int string or returns default
func parseIntOrDefault(s string, defaultVal int) (int, error) {
	if s == "" || s == "*" {
		return defaultVal, nil
	}
	var val int
	for _, c := range s {
		if c < '0' || c > '9' {
			return defaultVal, ErrInvalidConfig
		}
		val = val*10 + int(c-'0')
	}
	return val, nil
}

// JobRecorder persists job attempts
type JobRecorder interface {
	RecordJobStart(ctx context.Context, job *Job) (uuid.UUID, error)
	RecordJobComplete(ctx context.Context, recordID uuid.UUID, success bool, errMsg string) error
}

// recordingExecutor records every attempt of the wrapped executor
type recordingExecutor struct {
	next     JobExecutor
	recorder JobRecorder
	logger   *zap.Logger
}

func (e *recordingExecutor) Execute(ctx context.Context, job *Job) error {
	recordID, recordErr := e.recorder.RecordJobStart(ctx, job)
	if recordErr != nil {
		e.logger.Warn("Failed to record job start",
			zap.String("job", job.Name()),
			zap.Error(recordErr),
		)
	}

	err := e.next.Execute(ctx, job)

	if recordID != uuid.Nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		// The job context may have timed out; the record should still land
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if completeErr := e.recorder.RecordJobComplete(recordCtx, recordID, err == nil, errMsg); completeErr != nil {
			e.logger.Warn("Failed to record job completion",
				zap.String("job", job.Name()),
				zap.Error(completeErr),
			)
		}
	}
	return err
}

// ReportCronScheduler regenerates every report kind once a day
type ReportCronScheduler struct {
	config    ReportCronSchedulerConfig
	logger    *zap.Logger
	scheduler *Scheduler
	now       func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Last execution tracking
	lastRunAt   *time.Time
	lastRunDate string
	nextRunAt   *time.Time
}

// NewReportCronScheduler creates a new cron-based report scheduler.
// recorder may be nil, in which case attempts are only logged.
func NewReportCronScheduler(
	config ReportCronSchedulerConfig,
	executor JobExecutor,
	recorder JobRecorder,
	logger *zap.Logger,
	opts ...SchedulerOption,
) *ReportCronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if recorder != nil {
		executor = &recordingExecutor{next: executor, recorder: recorder, logger: logger}
	}
	schedulerConfig := SchedulerConfig{
		Enabled:           config.Enabled,
		MaxConcurrentJobs: config.MaxConcurrentJobs,
		JobTimeout:        config.JobTimeout,
		RetryAttempts:     config.RetryAttempts,
		RetryDelay:        config.RetryDelay,
	}

	return &ReportCronScheduler{
		config:    config,
		logger:    logger,
		scheduler: NewScheduler(schedulerConfig, executor, logger, opts...),
		now:       time.Now,
	}
}

// Start starts the cron scheduler
func (s *ReportCronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.calculateNextRunTime()

	s.wg.Add(1)
	go s.cronLoop(ctx)

	s.logger.Info("Report cron scheduler started",
		zap.Int("cron_hour", s.config.CronHour),
		zap.Int("cron_minute", s.config.CronMinute),
		zap.String("location", s.config.Location.String()),
		zap.Timep("next_run_at", s.GetNextRunAt()),
	)

	return nil
}

// Stop stops the cron scheduler
func (s *ReportCronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if err := s.scheduler.Stop(ctx); err != nil {
			s.logger.Warn("Error stopping underlying scheduler", zap.Error(err))
		}
		s.logger.Info("Report cron scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Report cron scheduler stop timed out")
		return ctx.Err()
	}
}

// cronLoop runs the main cron loop
func (s *ReportCronScheduler) cronLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(cronTickerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			if s.shouldRun(now) {
				s.runDailyRegeneration(now)
				s.calculateNextRunTime()
			}
		}
	}
}

// shouldRun reports whether now is the scheduled minute of a day not yet run
func (s *ReportCronScheduler) shouldRun(now time.Time) bool {
	local := now.In(s.config.Location)
	if local.Hour() != s.config.CronHour || local.Minute() != s.config.CronMinute {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunDate != local.Format(report.DateLayout)
}

// calculateNextRunTime calculates the next run time
func (s *ReportCronScheduler) calculateNextRunTime() {
	now := s.now().In(s.config.Location)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.config.CronHour, s.config.CronMinute, 0, 0, s.config.Location)

	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}

	s.mu.Lock()
	s.nextRunAt = &next
	s.mu.Unlock()
}

// runDailyRegeneration submits one job per report kind for the day that just closed
func (s *ReportCronScheduler) runDailyRegeneration(now time.Time) int {
	local := now.In(s.config.Location)
	s.mu.Lock()
	s.lastRunAt = &now
	s.lastRunDate = local.Format(report.DateLayout)
	s.mu.Unlock()

	reference := report.DateOf(local).AddDate(0, 0, -1)
	s.logger.Info("Starting daily report regeneration",
		zap.String("reference_date", reference.Format(report.DateLayout)),
	)

	return s.submitAll(reference)
}

func (s *ReportCronScheduler) submitAll(reference time.Time) int {
	submitted := 0
	for _, kind := range report.AllKinds {
		if err := s.scheduler.ScheduleReport(kind, reference, s.isFull(kind)); err != nil {
			s.logger.Error("Failed to submit report job",
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			continue
		}
		submitted++
	}

	s.logger.Info("Report jobs scheduled",
		zap.Int("submitted", submitted),
		zap.Int("report_kinds", len(report.AllKinds)),
	)
	return submitted
}

func (s *ReportCronScheduler) isFull(kind report.Kind) bool {
	for _, k := range s.config.FullKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// TriggerManualRun submits every report kind for reference, or for yesterday when reference is nil.
// Jobs run on the worker pool, detached from the caller's request.
func (s *ReportCronScheduler) TriggerManualRun(reference *time.Time) (int, error) {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return 0, ErrSchedulerNotRunning
	}
	now := s.now()
	s.lastRunAt = &now
	s.mu.Unlock()

	ref := report.DateOf(now.In(s.config.Location)).AddDate(0, 0, -1)
	if reference != nil {
		ref = report.DateOf(*reference)
	}
	return s.submitAll(ref), nil
}

// SchedulerStatus is a snapshot of the cron scheduler state
type SchedulerStatus struct {
	Enabled      bool          `json:"enabled"`
	IsRunning    bool          `json:"is_running"`
	CronHour     int           `json:"cron_hour"`
	CronMinute   int           `json:"cron_minute"`
	CronSchedule string        `json:"cron_schedule"`
	Location     string        `json:"location"`
	LastRunAt    *time.Time    `json:"last_run_at"`
	NextRunAt    *time.Time    `json:"next_run_at"`
	ReportKinds  []report.Kind `json:"report_kinds"`
}

// GetStatus returns the current status of the cron scheduler
func (s *ReportCronScheduler) GetStatus() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStatus{
		Enabled:      s.config.Enabled,
		IsRunning:    s.isRunning,
		CronHour:     s.config.CronHour,
		CronMinute:   s.config.CronMinute,
		CronSchedule: s.config.DailyCronSchedule,
		Location:     s.config.Location.String(),
		LastRunAt:    s.lastRunAt,
		NextRunAt:    s.nextRunAt,
		ReportKinds:  report.AllKinds,
	}
}

// GetNextRunAt returns when the next scheduled run will occur
func (s *ReportCronScheduler) GetNextRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRunAt
}

// GetLastRunAt returns when the last run occurred
func (s *ReportCronScheduler) GetLastRunAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunAt
}
