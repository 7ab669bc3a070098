package main

import (
	"context"
	"errors"
	"time"

	reportapp "github.com/possales/backend/internal/application/report"
	"github.com/possales/backend/internal/bootstrap"
	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/infrastructure/config"
	"github.com/possales/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// generator is the part of the generation service the commands drive
type generator interface {
	Generate(ctx context.Context, req reportapp.Request) (*reportapp.Result, error)
	Today() time.Time
}

// appRuntime is what a command needs once configuration is loaded
type appRuntime struct {
	generator generator
	location  *time.Location
	close     func() error
}

// runtimeFactory opens a runtime. window only needs the time zone, so withDB
// tells the factory whether to connect to the database.
type runtimeFactory func(withDB bool) (*appRuntime, error)

// newRuntime loads configuration and, when asked, wires the generation service
// the same way the server does.
func newRuntime(withDB bool) (*appRuntime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Report.Location()
	if err != nil {
		return nil, err
	}
	if !withDB {
		return &appRuntime{location: loc, close: func() error { return nil }}, nil
	}

	log, err := bootstrap.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	db, err := bootstrap.OpenDatabase(cfg, log, nil)
	if err != nil {
		return nil, err
	}
	locker, closeLocker, err := bootstrap.NewLocker(cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	services, err := bootstrap.NewServices(cfg, db, locker, log, nil)
	if err != nil {
		_ = closeLocker()
		_ = db.Close()
		return nil, err
	}

	log.Debug("reportctl connected", zap.String("driver", db.Driver))
	return &appRuntime{
		generator: services.Generation,
		location:  loc,
		close: func() error {
			err := errors.Join(closeLocker(), db.Close())
			_ = logger.Sync(log)
			return err
		},
	}, nil
}

// today returns the current date in the report time zone
func (r *appRuntime) today() time.Time {
	if r.generator != nil {
		return r.generator.Today()
	}
	return report.DateOf(time.Now().In(r.location))
}
