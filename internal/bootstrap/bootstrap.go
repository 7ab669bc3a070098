// Package bootstrap wires configuration into the shared runtime pieces used by
// the server and the command line tools.
package bootstrap

import (
	"fmt"

	catalogapp "github.com/possales/backend/internal/application/catalog"
	reportapp "github.com/possales/backend/internal/application/report"
	"github.com/possales/backend/internal/domain/shared"
	"github.com/possales/backend/internal/infrastructure/cache"
	"github.com/possales/backend/internal/infrastructure/config"
	"github.com/possales/backend/internal/infrastructure/logger"
	"github.com/possales/backend/internal/infrastructure/persistence"
	"github.com/possales/backend/internal/infrastructure/scheduler"
	"github.com/possales/backend/internal/infrastructure/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// NewLogger builds the application logger from the log section
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		File: logger.FileConfig{
			Path:       cfg.FilePath,
			MaxSizeMB:  cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAgeDays: cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		},
	})
}

// OpenDatabase connects with a zap-backed GORM logger.
// With a registerer the query metrics plugin is installed.
// With database.auto_migrate the POS and report tables are created.
func OpenDatabase(cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*persistence.Database, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Database.SlowThreshold),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}

	if reg != nil {
		sqlDB, err := db.DB.DB()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		metrics := telemetry.NewDBMetrics(reg, sqlDB, cfg.Database.DBName, cfg.Database.SlowThreshold)
		if err := db.DB.Use(telemetry.NewDBMetricsPlugin(metrics, log)); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to install db metrics plugin: %w", err)
		}
	}

	if cfg.Database.AutoMigrate {
		if err := persistence.AutoMigrate(db.DB, &scheduler.SchedulerJobRecord{}); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("Database schema auto-migrated", zap.String("driver", db.Driver))
	}

	return db, nil
}

// NewLocker creates the report locker named by report.lock_backend.
// Outside production an unreachable Redis degrades to in-process locks.
func NewLocker(cfg *config.Config, log *zap.Logger) (shared.Locker, func() error, error) {
	factory := cache.NewLockerFactory(cfg.Report, cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	return factory.CreateLocker()
}

// Services groups the application services of the POS backend
type Services struct {
	Generation *reportapp.GenerationService
	Category   *catalogapp.CategoryService
}

// NewServices builds the report and category services on db
func NewServices(cfg *config.Config, db *persistence.Database, locker shared.Locker, log *zap.Logger, reg prometheus.Registerer) (*Services, error) {
	loc, err := cfg.Report.Location()
	if err != nil {
		return nil, err
	}

	var opts []reportapp.Option
	if reg != nil {
		opts = append(opts, reportapp.WithMetrics(telemetry.NewReportMetrics(reg)))
	}

	generation := reportapp.NewGenerationService(
		persistence.NewGormSalesAggregator(db.DB, loc),
		persistence.NewGormReportStore(db.DB),
		locker,
		reportapp.Config{
			Location:         loc,
			LockTTL:          cfg.Report.LockTTL,
			LockWait:         cfg.Report.LockWait,
			LockPollInterval: cfg.Report.LockPollInterval,
		},
		logger.Named(log, "report"),
		opts...,
	)

	category := catalogapp.NewCategoryService(
		persistence.NewGormCategoryRepository(db.DB),
		logger.Named(log, "category"),
	)

	return &Services{Generation: generation, Category: category}, nil
}

// NewReportScheduler builds the daily regeneration scheduler.
// Attempts are recorded in report_scheduler_jobs.
func NewReportScheduler(cfg *config.Config, db *persistence.Database, executor scheduler.JobExecutor, log *zap.Logger, reg prometheus.Registerer) (*scheduler.ReportCronScheduler, error) {
	loc, err := cfg.Report.Location()
	if err != nil {
		return nil, err
	}
	hour, minute, err := scheduler.ParseCronSchedule(cfg.Scheduler.DailyCronSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler.daily_cron_schedule: %w", err)
	}

	schedCfg := scheduler.DefaultReportCronSchedulerConfig()
	schedCfg.Enabled = cfg.Scheduler.Enabled
	schedCfg.CronHour = hour
	schedCfg.CronMinute = minute
	schedCfg.DailyCronSchedule = cfg.Scheduler.DailyCronSchedule
	schedCfg.Location = loc
	schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	schedCfg.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
	schedCfg.RetryAttempts = cfg.Scheduler.RetryAttempts
	schedCfg.RetryDelay = cfg.Scheduler.RetryDelay

	var opts []scheduler.SchedulerOption
	if reg != nil {
		opts = append(opts, scheduler.WithJobMetrics(telemetry.NewJobMetrics(reg)))
	}

	return scheduler.NewReportCronScheduler(
		schedCfg,
		executor,
		scheduler.NewSchedulerJobRepository(db.DB),
		logger.Named(log, "scheduler"),
		opts...,
	), nil
}
