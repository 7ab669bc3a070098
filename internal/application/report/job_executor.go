package report

import (
	"context"
	"errors"

	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/domain/shared"
	"github.com/possales/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

// Execute implements scheduler.JobExecutor.
// A week or month without sales is not a failure for a scheduled run.
func (s *GenerationService) Execute(ctx context.Context, job *scheduler.Job) error {
	if _, err := report.ParseKind(string(job.Kind)); err != nil {
		return scheduler.ErrInvalidReportKind
	}

	result, err := s.Generate(ctx, Request{
		Kind:      job.Kind,
		Full:      job.Full,
		Reference: job.Reference,
	})
	if errors.Is(err, shared.ErrNotFound) {
		s.logger.Info("Scheduled report has no sales",
			zap.String("job", job.Name()),
			zap.Time("reference", job.Reference),
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Debug("Scheduled report generated",
		zap.String("job", job.Name()),
		zap.Int("rows", len(result.Rows)),
	)
	return nil
}
