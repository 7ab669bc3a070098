package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	reportapp "github.com/possales/backend/internal/application/report"
	"github.com/possales/backend/internal/domain/report"
	"github.com/possales/backend/internal/domain/shared"
	"github.com/possales/backend/internal/interfaces/http/middleware"
)

// SalesReportHandler handles sales report generation endpoints
type SalesReportHandler struct {
	BaseHandler
	generationService *reportapp.GenerationService
}

// NewSalesReportHandler creates a new SalesReportHandler
func NewSalesReportHandler(generationService *reportapp.GenerationService) *SalesReportHandler {
	return &SalesReportHandler{
		generationService: generationService,
	}
}

// GenerateReportQuery holds the optional query parameters of a generation request
type GenerateReportQuery struct {
	Date  string `form:"date" binding:"omitempty,report_date"`
	Scope string `form:"scope" binding:"omitempty,oneof=window full"`
}

// Generate regenerates and returns one report.
//
//	GET /sales_report/generate/:type?date=YYYY-MM-DD&scope=window|full
//
// Windowed weekly and monthly reports are a single object and answer 404
// {"message": ...} when the window has no sales. Everything else is an array.
func (h *SalesReportHandler) Generate(c *gin.Context) {
	kind, err := report.ParseKind(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var query GenerateReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	req := reportapp.Request{Kind: kind, Full: reportapp.DefaultFull(kind)}
	switch query.Scope {
	case reportapp.ScopeWindow:
		req.Full = false
	case reportapp.ScopeFull:
		req.Full = true
	}
	if query.Date != "" {
		ref, err := report.ParseDate(query.Date)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		req.Reference = ref
	}

	result, err := h.generationService.Generate(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			var domainErr *shared.DomainError
			errors.As(err, &domainErr)
			h.Message(c, http.StatusNotFound, domainErr.Message)
			return
		}
		h.HandleError(c, err)
		return
	}

	if !req.Full && (kind == report.KindWeekly || kind == report.KindMonthly) {
		h.OK(c, result.Rows[0])
		return
	}
	h.OK(c, result.Rows)
}

// WindowResponse describes a resolved report window
type WindowResponse struct {
	ReportType string `json:"report_type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	Days       int    `json:"days"`
}

// Window returns the window a report kind covers on a reference date without generating anything.
//
//	GET /sales_report/window/:type?date=YYYY-MM-DD
func (h *SalesReportHandler) Window(c *gin.Context) {
	kind, err := report.ParseKind(c.Param("type"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var query GenerateReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	reference := h.generationService.Today()
	if query.Date != "" {
		ref, err := report.ParseDate(query.Date)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		reference = ref
	}

	reportType := kind.ReportType()
	window, err := report.ResolveWindow(reportType, reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.OK(c, WindowResponse{
		ReportType: string(reportType),
		StartDate:  window.Start.Format(report.DateLayout),
		EndDate:    window.End.Format(report.DateLayout),
		Days:       window.Days(),
	})
}
