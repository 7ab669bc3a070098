package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/infrastructure/scheduler"
	"github.com/possales/backend/internal/interfaces/http/dto"
)

// ReportScheduler is the part of the cron scheduler the HTTP API drives
type ReportScheduler interface {
	GetStatus() scheduler.SchedulerStatus
	TriggerManualRun(reference *time.Time) (int, error)
}

// SchedulerHandler exposes the scheduled regeneration state
type SchedulerHandler struct {
	BaseHandler
	scheduler ReportScheduler
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(s ReportScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s}
}

// TriggerRunRequest optionally names the reference date of a manual run
type TriggerRunRequest struct {
	Date string `json:"date" binding:"omitempty,report_date"`
}

// TriggerRunResponse is the body of an accepted manual run
type TriggerRunResponse struct {
	Message       string `json:"message"`
	JobsSubmitted int    `json:"jobs_submitted"`
	Reference     string `json:"reference,omitempty"`
}

// Status returns the cron scheduler state
//
//	GET /sales_report/scheduler/status
func (h *SchedulerHandler) Status(c *gin.Context) {
	h.OK(c, h.scheduler.GetStatus())
}

// Run submits every report kind to the worker pool.
// Without a date the run regenerates yesterday's reports.
//
//	POST /sales_report/scheduler/run {"date": "YYYY-MM-DD"}
func (h *SchedulerHandler) Run(c *gin.Context) {
	var req TriggerRunRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "Invalid request body: date must be YYYY-MM-DD")
		return
	}

	var reference *time.Time
	if req.Date != "" {
		ref, err := report.ParseDate(req.Date)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		reference = &ref
	}

	submitted, err := h.scheduler.TriggerManualRun(reference)
	if err != nil {
		if errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Report scheduler is not running")
			return
		}
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, TriggerRunResponse{
		Message:       "Report regeneration scheduled",
		JobsSubmitted: submitted,
		Reference:     req.Date,
	})
}
