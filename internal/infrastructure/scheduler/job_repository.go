package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SchedulerJobRecord represents a record of a scheduled job execution
type SchedulerJobRecord struct {
	ID          uuid.UUID  `gorm:"column:id;type:varchar(36);primaryKey"`
	JobID       uuid.UUID  `gorm:"column:job_id;type:varchar(36);not null;index"`
	Kind        string     `gorm:"column:report_type;size:20;not null;index"`
	Full        bool       `gorm:"column:full_run;not null;default:false"`
	Reference   time.Time  `gorm:"column:reference_date;type:date;not null"`
	Attempt     int        `gorm:"column:attempt;not null;default:0"`
	Status      string     `gorm:"column:last_run_status;size:20"`
	Error       string     `gorm:"column:last_error;type:text"`
	StartedAt   *time.Time `gorm:"column:last_run_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

// TableName returns the table name for GORM
func (SchedulerJobRecord) TableName() string {
	return "report_scheduler_jobs"
}

// SchedulerJobRepository handles persistence of scheduler job records
type SchedulerJobRepository struct {
	db *gorm.DB
}

// NewSchedulerJobRepository creates a new SchedulerJobRepository
func NewSchedulerJobRepository(db *gorm.DB) *SchedulerJobRepository {
	return &SchedulerJobRepository{db: db}
}

// RecordJobStart records the start of one job attempt
func (r *SchedulerJobRepository) RecordJobStart(ctx context.Context, job *Job) (uuid.UUID, error) {
	now := time.Now().UTC()
	record := &SchedulerJobRecord{
		ID:        uuid.New(),
		JobID:     job.ID,
		Kind:      string(job.Kind),
		Full:      job.Full,
		Reference: job.Reference,
		Attempt:   job.RetryCount,
		Status:    string(JobStatusRunning),
		StartedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return uuid.Nil, err
	}
	return record.ID, nil
}

// RecordJobComplete records the outcome of a job attempt
func (r *SchedulerJobRepository) RecordJobComplete(ctx context.Context, recordID uuid.UUID, success bool, errMsg string) error {
	now := time.Now().UTC()
	status := string(JobStatusSuccess)
	if !success {
		status = string(JobStatusFailed)
	}
	return r.db.WithContext(ctx).
		Model(&SchedulerJobRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]any{
			"last_run_status": status,
			"last_error":      errMsg,
			"completed_at":    now,
			"updated_at":      now,
		}).Error
}

// GetLastJobStatus gets the most recent attempt for a report kind
func (r *SchedulerJobRepository) GetLastJobStatus(ctx context.Context, kind string) (*SchedulerJobRecord, error) {
	var record SchedulerJobRecord
	err := r.db.WithContext(ctx).
		Where("report_type = ?", kind).
		Order("last_run_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListRecent returns the latest attempts, newest first
func (r *SchedulerJobRepository) ListRecent(ctx context.Context, limit int) ([]SchedulerJobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []SchedulerJobRecord
	err := r.db.WithContext(ctx).
		Order("last_run_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
