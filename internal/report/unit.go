package report

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/notification"
	"github.com/verustcode/stagereport/internal/report/exporter"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/logger"
	"github.com/verustcode/stagereport/pkg/telemetry"
)

// Run executes the generation unit for one report.
//
// The unit owns the report from Pending to a terminal status. It is safe to
// run more than once for the same id: a report that is not Pending is left
// alone. Errors and panics end in Failed and are never returned.
func (e *Engine) Run(ctx context.Context, reportID uint) {
	// accepted work completes even when the caller goes away
	ctx = context.WithoutCancel(ctx)
	log := logger.WithReport(reportID)
	st := e.store.WithContext(ctx)

	report, err := st.Report().GetByID(reportID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("Report to generate does not exist")
		} else {
			// stays Pending; recovery picks it up again
			log.Error("Failed to load report", zap.Error(err))
		}
		return
	}

	if report.Status != model.ReportStatusPending {
		log.Debug("Report is not pending, skipping generation",
			zap.String("status", string(report.Status)),
		)
		return
	}

	ctx, span := telemetry.StartSpan(ctx, "report.generate",
		telemetry.WithReportAttributes(report.ID, report.ProjectID, string(report.ReportType)))
	defer span.End()
	st = e.store.WithContext(ctx)

	startedAt := time.Now().UTC()
	if err := st.Report().MarkInProgress(report.ID, startedAt); err != nil {
		if stderrors.Is(err, store.ErrStaleStatus) {
			log.Debug("Report was picked up by another unit")
		} else {
			log.Error("Failed to mark report in progress", zap.Error(err))
		}
		return
	}
	report.Status = model.ReportStatusInProgress
	report.StartedAt = &startedAt

	telemetry.GetMetrics().RecordGenerationStarted(ctx)
	log.Info("Report generation started", zap.String("report_type", string(report.ReportType)))
	e.notifier.Notify(ctx, report.GeneratedByUserID, report.ProjectID, report.ID,
		notification.EventReportStarted,
		fmt.Sprintf("Report #%d (%s) generation started", report.ID, report.ReportType))

	var (
		filePath    string
		projectName string
		runErr      error
	)
	// final persist, also after a panic in a renderer
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic during report generation: %v", r)
			log.Error("Report generation panic",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
		}
		if runErr != nil {
			telemetry.SetSpanError(span, runErr)
		} else {
			telemetry.SetSpanOK(span)
		}
		e.finish(ctx, report, projectName, filePath, runErr)
	}()

	filePath, projectName, runErr = e.generate(ctx, report)
}

// generate renders the document and stores it, returning the stored file name
func (e *Engine) generate(ctx context.Context, report *model.Report) (string, string, error) {
	log := logger.WithReport(report.ID)
	st := e.store.WithContext(ctx)

	// snapshot of the project as it is now
	project, err := st.Project().GetByIDWithStages(report.ProjectID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load project %d: %w", report.ProjectID, err)
	}

	executor, err := st.User().GetByID(report.GeneratedByUserID)
	if err != nil {
		log.Warn("Requesting user not found, rendering without executor name",
			zap.Uint(logger.FieldUserID, report.GeneratedByUserID),
			zap.Error(err),
		)
		executor = &model.User{ID: report.GeneratedByUserID}
	}

	cfg := renderConfigFor(report)
	if len(exporter.SelectStages(project.Stages, cfg.StageIDs)) == 0 {
		log.Warn("No stages selected for report, rendering an empty table",
			zap.Int("project_stages", len(project.Stages)),
			zap.Any("stage_ids", cfg.StageIDs),
		)
	}

	exp, err := e.exporters.GetExporter(report.ReportType)
	if err != nil {
		return "", project.Name, err
	}

	doc := &exporter.Document{
		ReportID:    report.ID,
		ReportType:  report.ReportType,
		GeneratedAt: report.GeneratedAt,
		Project:     *project,
		Stages:      project.Stages,
		Executor:    *executor,
		Config:      cfg,
	}
	content, err := e.exporters.Export(doc)
	if err != nil {
		return "", project.Name, err
	}

	name := ArtifactFileName(report, project.Name, exp.FileExtension())
	err = e.contents.Write(ctx, name, content)
	telemetry.GetMetrics().RecordStorageWrite(ctx, e.contents.Backend(), len(content), err == nil)
	if err != nil {
		return "", project.Name, err
	}

	log.Info("Report artifact stored",
		zap.String("file", name),
		zap.Int("size", len(content)),
		zap.String("backend", e.contents.Backend()),
	)
	return name, project.Name, nil
}

// finish persists the terminal status and sends the outcome notification
func (e *Engine) finish(ctx context.Context, report *model.Report, projectName, filePath string, runErr error) {
	log := logger.WithReport(report.ID)
	reports := e.store.WithContext(ctx).Report()
	completedAt := time.Now().UTC()

	if runErr == nil {
		err := reports.MarkComplete(report.ID, filePath, completedAt)
		if err == nil {
			e.recordFinished(ctx, report, model.ReportStatusComplete, completedAt)
			log.Info("Report generation completed", zap.String("file", filePath))
			e.notifier.Notify(ctx, report.GeneratedByUserID, report.ProjectID, report.ID,
				notification.EventReportCompleted,
				fmt.Sprintf("Report #%d (%s) for project %s is ready", report.ID, report.ReportType, projectName))
			return
		}
		runErr = fmt.Errorf("failed to persist completed report: %w", err)
	}

	msg := runErr.Error()
	if err := reports.MarkFailed(report.ID, model.ReportStatusInProgress, msg, completedAt); err != nil {
		// left InProgress; the stuck-report sweep will fail it
		log.Error("Failed to persist report failure", zap.Error(err), zap.String("cause", msg))
		return
	}

	e.recordFinished(ctx, report, model.ReportStatusFailed, completedAt)
	log.Error("Report generation failed", zap.Error(runErr))
	e.notifier.Notify(ctx, report.GeneratedByUserID, report.ProjectID, report.ID,
		notification.EventReportFailed,
		fmt.Sprintf("Report #%d (%s) failed: %s", report.ID, report.ReportType, msg))
}

func (e *Engine) recordFinished(ctx context.Context, report *model.Report, status model.ReportStatus, at time.Time) {
	var seconds float64
	if report.StartedAt != nil {
		seconds = at.Sub(*report.StartedAt).Seconds()
	}
	telemetry.GetMetrics().RecordGenerationFinished(ctx, string(report.ReportType), string(status), seconds)
}

// renderConfigFor resolves the persisted config, falling back to the stage columns
func renderConfigFor(report *model.Report) exporter.RenderConfig {
	cfg := exporter.ConfigFromMap(report.ReportConfig)
	if len(cfg.StageIDs) == 0 {
		switch {
		case len(report.StageIDs) > 0:
			cfg.StageIDs = []uint(report.StageIDs)
		case report.StageID != nil:
			cfg.StageIDs = []uint{*report.StageID}
		}
	}
	return cfg
}
