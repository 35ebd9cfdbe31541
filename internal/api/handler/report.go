package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/report"
	"github.com/verustcode/stagereport/internal/report/exporter"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/logger"
)

// ReportService is the part of report.Engine the handlers use
type ReportService interface {
	RequestGeneration(ctx context.Context, req report.GenerateRequest, userID uint) (*report.Summary, error)
	DownloadArtifact(ctx context.Context, reportID uint) (*report.Artifact, error)
	ListSummaries(ctx context.Context, projectID uint) ([]report.Summary, error)
	GetReport(ctx context.Context, reportID uint) (*model.Report, error)
	ListLogs(ctx context.Context, reportID uint, limit, offset int) ([]model.ReportLog, int64, error)
}

// ReportHandler handles report-related HTTP requests
type ReportHandler struct {
	reports   ReportService
	exporters *exporter.ExportManager
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports ReportService, exporters *exporter.ExportManager) *ReportHandler {
	return &ReportHandler{
		reports:   reports,
		exporters: exporters,
	}
}

// GenerateReport handles POST /api/v1/reports/generate.
// The report is only queued; clients follow it via GET /reports/:id or notifications.
func (h *ReportHandler) GenerateReport(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req report.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.ErrValidation("Invalid request: "+err.Error()))
		return
	}

	summary, err := h.reports.RequestGeneration(c.Request.Context(), req, userID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Header("Location", "/api/v1/reports/"+strconv.FormatUint(uint64(summary.ReportID), 10))
	c.JSON(http.StatusAccepted, summary)
}

// GetReport handles GET /api/v1/reports/:id
func (h *ReportHandler) GetReport(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	r, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, r)
}

// DownloadReport handles GET /api/v1/reports/:id/download
func (h *ReportHandler) DownloadReport(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	artifact, err := h.reports.DownloadArtifact(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}

	logger.Debug("Serving report artifact",
		zap.Uint(logger.FieldReportID, id),
		zap.String("file", artifact.FileName),
		zap.Int("size", len(artifact.Content)),
	)

	c.Header("Content-Disposition", attachmentDisposition(artifact.FileName))
	c.Data(http.StatusOK, artifact.ContentType, artifact.Content)
}

// GetReportLogs handles GET /api/v1/reports/:id/logs
func (h *ReportHandler) GetReportLogs(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	limit, offset, page := pagination(c)

	logs, total, err := h.reports.ListLogs(c.Request.Context(), id, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      logs,
		"total":     total,
		"page":      page,
		"page_size": limit,
		"report_id": id,
	})
}

// ListProjectReports handles GET /api/v1/projects/:id/reports
func (h *ReportHandler) ListProjectReports(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	summaries, err := h.reports.ListSummaries(c.Request.Context(), projectID)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  summaries,
		"total": len(summaries),
	})
}

// GetReportTypes handles GET /api/v1/report-types
func (h *ReportHandler) GetReportTypes(c *gin.Context) {
	supported := make(map[model.ReportType]bool)
	for _, t := range h.exporters.SupportedTypes() {
		supported[t] = true
	}

	types := make([]gin.H, 0, len(model.AllReportTypes()))
	for _, t := range model.AllReportTypes() {
		types = append(types, gin.H{
			"type":      t,
			"supported": supported[t],
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": types})
}
