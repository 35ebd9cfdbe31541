package store

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/verustcode/stagereport/pkg/logger"
)

const (
	// DefaultReportLogRetentionDays is the default number of days to retain report logs
	DefaultReportLogRetentionDays = 30
	// ReportLogCleanupSchedule is the cron schedule for report log cleanup (daily at 2 AM)
	ReportLogCleanupSchedule = "0 2 * * *"
)

// ReportLogCleanupService manages periodic cleanup of old report logs
type ReportLogCleanupService struct {
	store         ReportLogStore
	cron          *cron.Cron
	retentionDays int
	entryID       cron.EntryID
	mu            sync.RWMutex
}

// NewReportLogCleanupService creates a new report log cleanup service
func NewReportLogCleanupService(store ReportLogStore, retentionDays int) *ReportLogCleanupService {
	if retentionDays <= 0 {
		retentionDays = DefaultReportLogRetentionDays
	}

	return &ReportLogCleanupService{
		store:         store,
		cron:          cron.New(),
		retentionDays: retentionDays,
	}
}

// Start starts the cleanup service with scheduled cleanup tasks
func (s *ReportLogCleanupService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.cron.AddFunc(ReportLogCleanupSchedule, func() { s.Cleanup() })
	if err != nil {
		logger.Error("Failed to schedule report log cleanup", zap.Error(err))
		return err
	}
	s.entryID = entryID

	s.cron.Start()

	logger.Info("Report log cleanup service started",
		zap.String("schedule", ReportLogCleanupSchedule),
		zap.Int("retention_days", s.retentionDays),
	)

	// Run initial cleanup immediately (non-blocking)
	go s.Cleanup()

	return nil
}

// Stop stops the cleanup service gracefully
func (s *ReportLogCleanupService) Stop() {
	// Not under mu: a running Cleanup holds the read lock until it returns
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Report log cleanup service stopped")
}

// Cleanup deletes report logs older than the retention period and returns the count
func (s *ReportLogCleanupService) Cleanup() int64 {
	s.mu.RLock()
	days := s.retentionDays
	s.mu.RUnlock()

	startTime := time.Now()
	deletedCount, err := s.store.DeleteOlderThan(days)
	if err != nil {
		logger.Error("Failed to cleanup old report logs",
			zap.Int("retention_days", days),
			zap.Error(err),
		)
		return 0
	}

	logger.Info("Report log cleanup completed",
		zap.Int64("deleted_count", deletedCount),
		zap.Int("retention_days", days),
		zap.Duration("duration", time.Since(startTime)),
	)
	return deletedCount
}

// SetRetentionDays updates the retention period (takes effect on next cleanup)
func (s *ReportLogCleanupService) SetRetentionDays(days int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if days <= 0 {
		days = DefaultReportLogRetentionDays
	}
	s.retentionDays = days
}
