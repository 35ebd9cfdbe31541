// Package report drives asynchronous report generation.
//
// Requests are validated and persisted as Pending reports, then handed to a
// fixed pool of workers through a bounded queue. A worker runs one generation
// unit per report, with its own store handle, and always leaves the report in
// a terminal status.
package report

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/verustcode/stagereport/internal/config"
	"github.com/verustcode/stagereport/internal/contentstore"
	"github.com/verustcode/stagereport/internal/notification"
	"github.com/verustcode/stagereport/internal/report/exporter"
	"github.com/verustcode/stagereport/internal/report/recovery"
	"github.com/verustcode/stagereport/internal/store"
	"github.com/verustcode/stagereport/pkg/logger"
	"github.com/verustcode/stagereport/pkg/telemetry"
)

// Engine orchestrates the report generation process
type Engine struct {
	store     store.Store
	contents  contentstore.Store
	exporters *exporter.ExportManager
	notifier  notification.ReportNotifier
	recovery  *recovery.Service

	// Task management
	taskQueue chan *ReportTask
	workers   int
	wg        sync.WaitGroup

	// queueMu guards taskQueue against sends after Stop closed it
	queueMu sync.RWMutex
	stopped bool

	// Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// ReportTask represents a report generation task
type ReportTask struct {
	ReportID uint
	// Callback runs after the unit finished, whatever the outcome
	Callback func(reportID uint)
}

// NewEngine creates a new report engine.
// notifier may be nil, in which case no notifications are sent.
func NewEngine(cfg *config.BootstrapConfig, s store.Store, contents contentstore.Store, exporters *exporter.ExportManager, notifier notification.ReportNotifier) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	workers := cfg.Report.Workers
	if workers <= 0 {
		workers = 2
	}
	queueSize := cfg.Report.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	if notifier == nil {
		notifier = nopNotifier{}
	} else {
		notifier = guardedNotifier{next: notifier}
	}

	e := &Engine{
		store:     s,
		contents:  contents,
		exporters: exporters,
		notifier:  notifier,
		taskQueue: make(chan *ReportTask, queueSize),
		workers:   workers,
		ctx:       ctx,
		cancel:    cancel,
	}

	e.recovery = recovery.NewService(cfg.Recovery, s, e, notifier)

	return e
}

// Start starts the report engine workers, recovers unfinished reports
// and schedules the stuck-report sweep
func (e *Engine) Start() error {
	logger.Info("Starting report engine",
		zap.Int("workers", e.workers),
		zap.Int("queue_size", cap(e.taskQueue)),
	)

	for i := 0; i < e.workers; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	// Recover pending reports to memory queue
	// This must be done after workers start to ensure tasks are processed
	e.recovery.RecoverToQueue(e.ctx)

	return e.recovery.Start(e.ctx)
}

// Stop stops the report engine.
// Running units finish; queued ones stay Pending and are recovered on next start.
func (e *Engine) Stop() {
	logger.Info("Stopping report engine")
	e.recovery.Stop()
	e.cancel()

	e.queueMu.Lock()
	if !e.stopped {
		e.stopped = true
		close(e.taskQueue)
	}
	e.queueMu.Unlock()

	e.wg.Wait()
	logger.Info("Report engine stopped")
}

// worker processes report tasks
func (e *Engine) worker(id int) {
	defer e.wg.Done()
	logger.Debug("Report worker started", zap.Int("worker_id", id))

	for task := range e.taskQueue {
		telemetry.GetMetrics().RecordQueueDelta(e.ctx, -1)
		select {
		case <-e.ctx.Done():
			continue
		default:
			e.processTask(task)
		}
	}
}

// Submit submits a report for generation
func (e *Engine) Submit(reportID uint, callback func(reportID uint)) error {
	if reportID == 0 {
		return fmt.Errorf("report id cannot be zero")
	}
	if !e.enqueue(&ReportTask{ReportID: reportID, Callback: callback}) {
		return fmt.Errorf("report queue is full")
	}
	logger.Info("Report submitted to queue", zap.Uint(logger.FieldReportID, reportID))
	return nil
}

// Enqueue enqueues a report for processing (implements recovery.TaskEnqueuer interface)
func (e *Engine) Enqueue(reportID uint) bool {
	if reportID == 0 {
		return false
	}
	return e.enqueue(&ReportTask{ReportID: reportID})
}

func (e *Engine) enqueue(task *ReportTask) bool {
	e.queueMu.RLock()
	defer e.queueMu.RUnlock()
	if e.stopped {
		return false
	}

	select {
	case e.taskQueue <- task:
		telemetry.GetMetrics().RecordQueueDelta(e.ctx, 1)
		return true
	default:
		return false
	}
}

// QueueDepth returns the number of reports waiting for a worker
func (e *Engine) QueueDepth() int {
	return len(e.taskQueue)
}

// processTask processes a single report task
func (e *Engine) processTask(task *ReportTask) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Report task panic",
				zap.Uint(logger.FieldReportID, task.ReportID),
				zap.Any("panic", r),
			)
		}
		if task.Callback != nil {
			task.Callback(task.ReportID)
		}
	}()

	e.Run(e.ctx, task.ReportID)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, uint, uint, uint, notification.EventType, string) {}

// guardedNotifier stops a panicking notifier at the call site, so a unit
// always reaches its final persist whatever the notification channels do.
type guardedNotifier struct {
	next notification.ReportNotifier
}

func (g guardedNotifier) Notify(ctx context.Context, userID, projectID, reportID uint, eventType notification.EventType, message string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Report notifier panic",
				zap.Uint(logger.FieldReportID, reportID),
				zap.String("event_type", string(eventType)),
				zap.Any("panic", r),
			)
		}
	}()
	g.next.Notify(ctx, userID, projectID, reportID, eventType, message)
}
