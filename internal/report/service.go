package report

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/verustcode/stagereport/internal/contentstore"
	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/notification"
	"github.com/verustcode/stagereport/internal/report/exporter"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/logger"
	"github.com/verustcode/stagereport/pkg/telemetry"
)

// GenerateRequest asks for a new report
type GenerateRequest struct {
	ProjectID  uint   `json:"project_id" binding:"required"`
	ReportType string `json:"report_type" binding:"required"`
	// StageID selects a single stage; StageIDs wins when both are set
	StageID  *uint  `json:"stage_id,omitempty"`
	StageIDs []uint `json:"stage_ids,omitempty"`
	// ReportConfig is a JSON object, or a string holding one
	ReportConfig   json.RawMessage `json:"report_config,omitempty"`
	TargetFileName string          `json:"target_file_name,omitempty"`
}

// Summary is the caller-facing view of a report
type Summary struct {
	ReportID       uint               `json:"report_id"`
	ProjectID      uint               `json:"project_id"`
	ProjectName    string             `json:"project_name"`
	ReportType     model.ReportType   `json:"report_type"`
	Status         model.ReportStatus `json:"status"`
	GeneratedAt    time.Time          `json:"generated_at"`
	TargetFileName string             `json:"target_file_name,omitempty"`
	FileName       string             `json:"file_name,omitempty"`
	ErrorMessage   string             `json:"error_message,omitempty"`
}

// Artifact is a downloadable report document
type Artifact struct {
	Content     []byte
	ContentType string
	FileName    string
}

// NewSummary builds the summary of report
func NewSummary(report *model.Report, projectName string) Summary {
	s := Summary{
		ReportID:     report.ID,
		ProjectID:    report.ProjectID,
		ProjectName:  projectName,
		ReportType:   report.ReportType,
		Status:       report.Status,
		GeneratedAt:  report.GeneratedAt,
		FileName:     path.Base(report.FileName()),
		ErrorMessage: report.ErrorMessage,
	}
	if s.FileName == "." {
		s.FileName = ""
	}
	if report.TargetFileName != nil {
		s.TargetFileName = *report.TargetFileName
	}
	return s
}

// RequestGeneration validates and persists a Pending report and queues it.
// It returns before the document exists; the summary always has status Pending.
func (e *Engine) RequestGeneration(ctx context.Context, req GenerateRequest, userID uint) (*Summary, error) {
	ctx, span := telemetry.StartSpan(ctx, "report.request")
	defer span.End()
	st := e.store.WithContext(ctx)

	project, err := st.Project().GetByID(req.ProjectID)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("project %d", req.ProjectID))
	}

	reportType, err := model.ParseReportType(req.ReportType)
	if err != nil {
		return nil, errors.ErrValidation(err.Error()).
			WithDetails(map[string]string{"report_type": req.ReportType})
	}

	exists, err := st.User().Exists(userID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to check user", err)
	}
	if !exists {
		return nil, errors.ErrNotFound(fmt.Sprintf("user %d", userID))
	}

	cfg := exporter.NormalizeConfig(configString(req.ReportConfig), req.StageID, req.StageIDs)
	if err := e.checkStages(ctx, project.ID, cfg.StageIDs); err != nil {
		return nil, err
	}

	report := &model.Report{
		ProjectID:         project.ID,
		StageID:           req.StageID,
		StageIDs:          model.UintArray(cfg.StageIDs),
		ReportType:        reportType,
		Status:            model.ReportStatusPending,
		GeneratedAt:       time.Now().UTC(),
		GeneratedByUserID: userID,
		ReportConfig:      cfg.ToMap(),
	}
	if name := strings.TrimSpace(req.TargetFileName); name != "" {
		report.TargetFileName = &name
	}

	if err := st.Report().Create(report); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to create report", err)
	}

	telemetry.GetMetrics().RecordReportRequested(ctx, string(reportType))
	span.SetAttributes(telemetry.AttrReportID.Int64(int64(report.ID)))

	e.notifier.Notify(ctx, userID, project.ID, report.ID,
		notification.EventReportRequested,
		fmt.Sprintf("Report #%d (%s) for project %s was queued", report.ID, reportType, project.Name))

	if err := e.Submit(report.ID, nil); err != nil {
		msg := "report queue is full"
		if ferr := st.Report().MarkFailed(report.ID, model.ReportStatusPending, msg, time.Now().UTC()); ferr != nil {
			logger.Error("Failed to mark unscheduled report as failed",
				zap.Uint(logger.FieldReportID, report.ID),
				zap.Error(ferr),
			)
		}
		e.notifier.Notify(ctx, userID, project.ID, report.ID,
			notification.EventReportFailed,
			fmt.Sprintf("Report #%d (%s) failed: %s", report.ID, reportType, msg))
		return nil, errors.New(errors.ErrCodeQueueFull, msg)
	}

	logger.Info("Report generation requested",
		zap.Uint(logger.FieldReportID, report.ID),
		zap.Uint(logger.FieldProjectID, project.ID),
		zap.Uint(logger.FieldUserID, userID),
		zap.String("report_type", string(reportType)),
	)

	summary := NewSummary(report, project.Name)
	return &summary, nil
}

// checkStages verifies every id is a stage of the project
func (e *Engine) checkStages(ctx context.Context, projectID uint, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	known, err := e.store.WithContext(ctx).Project().StageIDs(projectID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeDBQuery, "failed to load project stages", err)
	}
	set := make(map[uint]bool, len(known))
	for _, id := range known {
		set[id] = true
	}
	for _, id := range ids {
		if !set[id] {
			return errors.ErrNotFound(fmt.Sprintf("stage %d in project %d", id, projectID))
		}
	}
	return nil
}

// DownloadArtifact returns the document of a Complete report
func (e *Engine) DownloadArtifact(ctx context.Context, reportID uint) (*Artifact, error) {
	report, err := e.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}

	if report.Status != model.ReportStatusComplete {
		return nil, errors.ErrInvalidState(fmt.Sprintf(
			"report %d is not ready for download (status: %s)", report.ID, report.Status))
	}

	name := report.FileName()
	if name == "" {
		logger.Error("Complete report has no stored file", zap.Uint(logger.FieldReportID, report.ID))
		return nil, errors.New(errors.ErrCodeStorageNotFound,
			fmt.Sprintf("file of report %d is missing", report.ID))
	}

	content, err := e.contents.Read(ctx, name)
	if err != nil {
		if contentstore.IsNotFound(err) {
			logger.Error("Stored file of complete report is missing",
				zap.Uint(logger.FieldReportID, report.ID),
				zap.String("file", name),
				zap.String("backend", e.contents.Backend()),
			)
		}
		return nil, err
	}

	return &Artifact{
		Content:     content,
		ContentType: ContentTypeFor(report.ReportType),
		FileName:    path.Base(name),
	}, nil
}

// ListSummaries returns the reports of a project, most recent first
func (e *Engine) ListSummaries(ctx context.Context, projectID uint) ([]Summary, error) {
	st := e.store.WithContext(ctx)

	project, err := st.Project().GetByID(projectID)
	if err != nil {
		return nil, notFoundOr(err, fmt.Sprintf("project %d", projectID))
	}

	reports, err := st.Report().ListByProject(projectID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to list reports", err)
	}

	summaries := make([]Summary, len(reports))
	for i := range reports {
		summaries[i] = NewSummary(&reports[i], project.Name)
	}
	return summaries, nil
}

// GetReport returns the full report record
func (e *Engine) GetReport(ctx context.Context, reportID uint) (*model.Report, error) {
	report, err := e.store.WithContext(ctx).Report().GetByID(reportID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrCodeReportNotFound, fmt.Sprintf("report %d not found", reportID))
		}
		return nil, errors.Wrap(errors.ErrCodeDBQuery, "failed to load report", err)
	}
	return report, nil
}

// ListLogs returns the captured generation log of a report, oldest first
func (e *Engine) ListLogs(ctx context.Context, reportID uint, limit, offset int) ([]model.ReportLog, int64, error) {
	if _, err := e.GetReport(ctx, reportID); err != nil {
		return nil, 0, err
	}
	logs, total, err := e.store.WithContext(ctx).ReportLog().ListByReport(reportID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(errors.ErrCodeDBQuery, "failed to list report logs", err)
	}
	return logs, total, nil
}

// notFoundOr maps a missing row to NotFound and anything else to a query error
func notFoundOr(err error, resource string) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.ErrNotFound(resource)
	}
	return errors.Wrap(errors.ErrCodeDBQuery, "failed to load "+resource, err)
}

// configString accepts the config either as an object or as a JSON-encoded string
func configString(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
