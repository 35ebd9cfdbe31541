// Package recovery reconciles reports left unfinished by a crash or restart.
//
// Pending reports never started, so they are re-enqueued. InProgress reports
// found at startup lost their worker and are failed; with a shared store only
// those older than the task timeout are, as younger ones may still be running
// on another instance. While running, a cron sweep fails InProgress reports
// that exceeded the task timeout. Failed reports are never retried automatically.
package recovery

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/notification"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/logger"
)

// Failure messages recorded on reconciled reports
const (
	MsgInterrupted = "generation interrupted by service restart"
	MsgEnqueueFail = "recovery failed: could not enqueue task"
	msgTimeoutFmt  = "generation timed out after %d minutes"
)

const (
	defaultTimeout  = 30
	defaultSchedule = "@every 5m"
)

// TaskEnqueuer allows components to enqueue report tasks for processing.
type TaskEnqueuer interface {
	Enqueue(reportID uint) bool
}

// Service handles recovery of pending and stuck reports.
type Service struct {
	cfg          config.RecoveryConfig
	store        store.Store
	taskEnqueuer TaskEnqueuer
	notifier     notification.ReportNotifier

	mu   sync.Mutex
	cron *cron.Cron
}

// NewService creates a new recovery service; notifier may be nil.
func NewService(cfg config.RecoveryConfig, s store.Store, taskEnqueuer TaskEnqueuer, notifier notification.ReportNotifier) *Service {
	return &Service{
		cfg:          cfg,
		store:        s,
		taskEnqueuer: taskEnqueuer,
		notifier:     notifier,
	}
}

// RecoverToQueue re-queues Pending reports and fails interrupted InProgress ones.
// This is called during engine startup, after the workers are running.
func (s *Service) RecoverToQueue(ctx context.Context) {
	st := s.store.WithContext(ctx)

	var (
		interrupted []model.Report
		err         error
	)
	if s.cfg.SharedStore {
		// another instance may own the younger ones, the sweep gets them if not
		interrupted, err = st.Report().ListStartedBefore(model.ReportStatusInProgress, s.cutoff())
	} else {
		interrupted, err = st.Report().ListByStatus(model.ReportStatusInProgress)
	}
	if err != nil {
		logger.Error("Failed to query in-progress reports for recovery", zap.Error(err))
	}
	failed := 0
	for i := range interrupted {
		if s.fail(ctx, &interrupted[i], model.ReportStatusInProgress, MsgInterrupted) {
			failed++
		}
	}

	pending, err := st.Report().ListByStatus(model.ReportStatusPending)
	if err != nil {
		logger.Error("Failed to query pending reports for recovery", zap.Error(err))
		return
	}

	if len(pending) == 0 && len(interrupted) == 0 {
		logger.Info("No pending reports to recover")
		return
	}

	recovered := 0
	for i := range pending {
		report := &pending[i]
		if s.taskEnqueuer.Enqueue(report.ID) {
			recovered++
			logger.Info("Report recovered to queue",
				zap.Uint(logger.FieldReportID, report.ID),
				zap.String("report_type", string(report.ReportType)),
			)
			continue
		}
		if s.fail(ctx, report, model.ReportStatusPending, MsgEnqueueFail) {
			failed++
		}
	}

	logger.Info("Report recovery completed",
		zap.Int("pending", len(pending)),
		zap.Int("interrupted", len(interrupted)),
		zap.Int("recovered", recovered),
		zap.Int("failed", failed),
	)
}

// SweepStuck fails InProgress reports started longer ago than the task timeout.
// Returns the number of reports failed.
func (s *Service) SweepStuck(ctx context.Context) int {
	stuck, err := s.store.WithContext(ctx).Report().ListStartedBefore(model.ReportStatusInProgress, s.cutoff())
	if err != nil {
		logger.Error("Failed to query stuck reports", zap.Error(err))
		return 0
	}

	failed := 0
	msg := fmt.Sprintf(msgTimeoutFmt, s.timeoutMinutes())
	for i := range stuck {
		if s.fail(ctx, &stuck[i], model.ReportStatusInProgress, msg) {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("Stuck reports marked as failed", zap.Int("count", failed))
	}
	return failed
}

func (s *Service) timeoutMinutes() int {
	if s.cfg.TaskTimeoutMinutes <= 0 {
		return defaultTimeout
	}
	return s.cfg.TaskTimeoutMinutes
}

// cutoff is the start time before which an InProgress report counts as stuck
func (s *Service) cutoff() time.Time {
	return time.Now().UTC().Add(-time.Duration(s.timeoutMinutes()) * time.Minute)
}

// Start schedules the periodic stuck-report sweep
func (s *Service) Start(ctx context.Context) error {
	schedule := s.cfg.SweepSchedule
	if schedule == "" {
		schedule = defaultSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { s.SweepStuck(ctx) }); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c

	logger.Info("Report recovery sweep started", zap.String("schedule", schedule))
	return nil
}

// Stop stops the sweep and waits for a running sweep to finish
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// fail marks a report Failed if it is still in status from and notifies the requester.
func (s *Service) fail(ctx context.Context, report *model.Report, from model.ReportStatus, reason string) bool {
	err := s.store.WithContext(ctx).Report().MarkFailed(report.ID, from, reason, time.Now().UTC())
	if stderrors.Is(err, store.ErrStaleStatus) {
		// the worker finished it in the meantime
		return false
	}
	if err != nil {
		logger.Error("Failed to mark report as failed",
			zap.Uint(logger.FieldReportID, report.ID),
			zap.Error(err),
		)
		return false
	}

	logger.Warn("Report marked as failed by recovery",
		zap.Uint(logger.FieldReportID, report.ID),
		zap.String("status", string(from)),
		zap.String("reason", reason),
	)

	if s.notifier != nil {
		s.notifier.Notify(ctx, report.GeneratedByUserID, report.ProjectID, report.ID,
			notification.EventReportFailed,
			fmt.Sprintf("Report #%d (%s) failed: %s", report.ID, report.ReportType, reason))
	}
	return true
}
