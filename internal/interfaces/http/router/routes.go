package router

import (
	"github.com/gin-gonic/gin"
	"github.com/possales/backend/internal/interfaces/http/handler"
)

// SalesReportRoutes builds the /sales_report group.
// sched may be nil when scheduled regeneration is disabled.
func SalesReportRoutes(h *handler.SalesReportHandler, sched *handler.SchedulerHandler, mw ...gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("sales_report", "/sales_report").Use(mw...)
	g.GET("/generate/:type", h.Generate).
		GET("/window/:type", h.Window)

	if sched != nil {
		g.Group("scheduler", "/scheduler").
			GET("/status", sched.Status).
			POST("/run", sched.Run)
	}
	return g
}

// CategoryRoutes builds the /category group
func CategoryRoutes(h *handler.CategoryHandler, mw ...gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("category", "/category").Use(mw...)
	g.GET("", h.List).
		GET("/list", h.List).
		GET("/list/:id", h.GetByID).
		POST("/create", h.Create).
		PUT("/update", h.Update).
		DELETE("/delete", h.Delete)
	return g
}

// SystemRoutes builds the /system group
func SystemRoutes(h *handler.SystemHandler) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", h.GetSystemInfo).
		GET("/ping", h.Ping)
	return g
}
