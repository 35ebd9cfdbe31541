package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/pkg/logger"
)

// ReportLogStore defines operations for ReportLog model.
// It also implements logger.ReportLogWriter so captured generation logs land here.
type ReportLogStore interface {
	logger.ReportLogWriter

	// BatchCreate creates multiple report log entries in a single statement
	BatchCreate(logs []model.ReportLog) error

	// ListByReport retrieves logs of a report in chronological order with the total count
	ListByReport(reportID uint, limit, offset int) ([]model.ReportLog, int64, error)

	// DeleteOlderThan deletes logs older than a number of days (for cleanup)
	DeleteOlderThan(days int) (int64, error)
}

// reportLogStore implements ReportLogStore using GORM.
type reportLogStore struct {
	db *gorm.DB
}

// NewReportLogStore creates a new ReportLogStore with the provided database connection.
func NewReportLogStore(db *gorm.DB) ReportLogStore {
	return &reportLogStore{db: db}
}

// WriteReportLogs implements logger.ReportLogWriter.
func (s *reportLogStore) WriteReportLogs(entries []logger.ReportLogEntry) error {
	logs := make([]model.ReportLog, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, model.ReportLog{
			CreatedAt: e.Time,
			ReportID:  e.ReportID,
			Level:     model.LogLevel(e.Level),
			Message:   e.Message,
			Fields:    model.JSONMap(e.Fields),
			Caller:    e.Caller,
		})
	}
	return s.BatchCreate(logs)
}

func (s *reportLogStore) BatchCreate(logs []model.ReportLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.Create(&logs).Error
}

func (s *reportLogStore) ListByReport(reportID uint, limit, offset int) ([]model.ReportLog, int64, error) {
	var logs []model.ReportLog
	var total int64

	query := s.db.Model(&model.ReportLog{}).Where("report_id = ?", reportID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	err := query.Order("created_at ASC, id ASC").Find(&logs).Error
	return logs, total, err
}

func (s *reportLogStore) DeleteOlderThan(days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	result := s.db.Where("created_at < ?", cutoff).Delete(&model.ReportLog{})
	return result.RowsAffected, result.Error
}
