// Package router sets up the API routes for the application.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/api/handler"
	"github.com/verustcode/stagereport/internal/api/middleware"
	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/database"
	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/notification"
	"github.com/verustcode/stagereport/internal/report/exporter"
	"github.com/verustcode/stagereport/internal/store"
)

// Deps are the components the routes are served from
type Deps struct {
	Config    *config.BootstrapConfig
	Store     store.Store
	Reports   handler.ReportService
	Exporters *exporter.ExportManager
	// Hub is nil when live push is disabled
	Hub *notification.Hub
	// Metrics is the Prometheus scrape handler, nil when export is off
	Metrics http.Handler
}

// reportRoles may request, list and download reports
var reportRoles = []string{
	string(model.UserRoleAdministrator),
	string(model.UserRoleSpecialist),
}

// Setup configures all API routes
func Setup(r *gin.Engine, d Deps) {
	cfg := d.Config

	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(&middleware.LoggerConfig{
		AccessLog: cfg.Logging.AccessLog,
	}))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(otelgin.Middleware(consts.ServiceName))
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler(cfg.Server.Debug))

	// Health check endpoint (public)
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok", "version": consts.Version}
		if err := database.HealthCheck(); err != nil {
			status = http.StatusServiceUnavailable
			body = gin.H{"status": "degraded", "version": consts.Version, "database": err.Error()}
		}
		c.JSON(status, body)
	})

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	authHandler := handler.NewAuthHandler(cfg.Auth, d.Store)
	reportHandler := handler.NewReportHandler(d.Reports, d.Exporters)
	notificationHandler := handler.NewNotificationHandler(d.Store, d.Hub)

	v1 := r.Group("/api/v1")

	// Report types (public endpoint for UI dropdown)
	v1.GET("/report-types", reportHandler.GetReportTypes)

	// Push socket; browsers cannot set headers on the upgrade request
	v1.GET("/ws", middleware.JWTAuth(authHandler, true), notificationHandler.Subscribe)

	api := v1.Group("")
	api.Use(middleware.JWTAuth(authHandler, false))
	{
		api.GET("/auth/me", authHandler.Me)

		reportAccess := middleware.RequireRole(authHandler, reportRoles...)

		reports := api.Group("/reports", reportAccess)
		{
			reports.POST("/generate",
				middleware.RateLimit(cfg.Server.GenerateRateLimit, cfg.Server.GenerateRateLimit),
				reportHandler.GenerateReport)
			reports.GET("/:id", reportHandler.GetReport)
			reports.GET("/:id/download", reportHandler.DownloadReport)
			reports.GET("/:id/logs", reportHandler.GetReportLogs)
		}

		api.GET("/projects/:id/reports", reportAccess, reportHandler.ListProjectReports)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", notificationHandler.ListNotifications)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
		}
	}
}
