package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// JobStatus represents the status of a scheduled job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// Job represents one scheduled report generation
type Job struct {
	ID   uuid.UUID
	Kind report.Kind
	// Reference is the date the report window is resolved from
	Reference time.Time
	// Full regenerates every window of the kind instead of the reference window
	Full        bool
	Status      JobStatus
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	NextRetryAt *time.Time
}

// NewJob creates a new job instance
func NewJob(kind report.Kind, reference time.Time, full bool, maxRetries int) *Job {
	return &Job{
		ID:         uuid.New(),
		Kind:       kind,
		Reference:  reference,
		Full:       full,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
	}
}

// Name identifies the job in logs and metrics
func (j *Job) Name() string {
	if j.Full {
		return string(j.Kind) + "_full"
	}
	return string(j.Kind)
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete marks the job as successful
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusSuccess
	j.CompletedAt = &now
}

// Fail marks the job as failed
func (j *Job) Fail(err string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// ShouldRetry returns true if the job should be retried
func (j *Job) ShouldRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry schedules the job for retry
func (j *Job) ScheduleRetry(delay time.Duration) {
	j.RetryCount++
	j.Status = JobStatusPending
	nextRetry := time.Now().Add(delay)
	j.NextRetryAt = &nextRetry
	j.Error = ""
}

// JobExecutor is the interface for executing report jobs
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled           bool
	MaxConcurrentJobs int
	JobTimeout        time.Duration
	RetryAttempts     int
	RetryDelay        time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:           true,
		MaxConcurrentJobs: 3,
		JobTimeout:        10 * time.Minute,
		RetryAttempts:     3,
		RetryDelay:        time.Minute,
	}
}

// SchedulerOption configures a Scheduler
type SchedulerOption func(*Scheduler)

// WithJobMetrics records job durations and outcomes on m
func WithJobMetrics(m *telemetry.JobMetrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// Scheduler runs report jobs on a bounded worker pool
type Scheduler struct {
	config   SchedulerConfig
	executor JobExecutor
	logger   *zap.Logger
	metrics  *telemetry.JobMetrics

	jobs      chan *Job
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config SchedulerConfig, executor JobExecutor, logger *zap.Logger, opts ...SchedulerOption) *Scheduler {
	if config.MaxConcurrentJobs <= 0 {
		config.MaxConcurrentJobs = 1
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultSchedulerConfig().JobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, 100),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	// Start worker pool
	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Report scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop(ctx context.Context) error {
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

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Report scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Report scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the worker pool accepts jobs
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// SubmitJob submits a job for execution
func (s *Scheduler) SubmitJob(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("job", job.Name()),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleReport submits a single report job
func (s *Scheduler) ScheduleReport(kind report.Kind, reference time.Time, full bool) error {
	return s.SubmitJob(NewJob(kind, reference, full, s.config.RetryAttempts))
}

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	// Retries wait in the queue until they are due
	if job.NextRetryAt != nil && time.Now().Before(*job.NextRetryAt) {
		s.requeue(ctx, job)
		return
	}

	job.Start()
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("job", job.Name()),
	)
	log.Info("Processing job")

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := s.executor.Execute(jobCtx, job)
	s.metrics.ObserveDuration(job.Name(), time.Since(start))
	if err != nil {
		job.Fail(err.Error())
		s.metrics.IncFailure(job.Name())
		log.Error("Job failed", zap.Error(err))

		if job.ShouldRetry() && ctx.Err() == nil {
			job.ScheduleRetry(s.config.RetryDelay)
			log.Info("Job scheduled for retry",
				zap.Int("retry_count", job.RetryCount),
				zap.Int("max_retries", job.MaxRetries),
			)
			s.requeue(ctx, job)
		}
		return
	}

	job.Complete()
	s.metrics.IncSuccess(job.Name())
	log.Info("Job completed successfully", zap.Duration("duration", time.Since(start)))
}

// requeue puts a pending retry back on the queue, pausing briefly so a
// worker does not spin on a job that is not yet due
func (s *Scheduler) requeue(ctx context.Context, job *Job) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(requeuePause(job)):
	}

	select {
	case s.jobs <- job:
	default:
		s.logger.Warn("Failed to re-queue job for retry",
			zap.String("job_id", job.ID.String()),
		)
	}
}

func requeuePause(job *Job) time.Duration {
	const maxPause = 100 * time.Millisecond
	if job.NextRetryAt == nil {
		return 0
	}
	wait := time.Until(*job.NextRetryAt)
	if wait <= 0 {
		return 0
	}
	if wait > maxPause {
		return maxPause
	}
	return wait
}
