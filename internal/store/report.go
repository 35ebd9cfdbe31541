package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/verustcode/stagereport/internal/model"
)

var (
	// ErrInvalidTransition is returned for a status change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid report status transition")
	// ErrStaleStatus is returned when the report is no longer in the expected status.
	ErrStaleStatus = errors.New("report status changed concurrently")
)

// ReportStore defines operations for Report model.
// All status changes are compare-and-set on the current status, so a report
// can never move backwards even with concurrent writers.
type ReportStore interface {
	Create(report *model.Report) error
	GetByID(id uint) (*model.Report, error)

	// Status transitions
	Transition(id uint, from, to model.ReportStatus, fields map[string]interface{}) error
	MarkInProgress(id uint, startedAt time.Time) error
	MarkComplete(id uint, filePath string, completedAt time.Time) error
	MarkFailed(id uint, from model.ReportStatus, errMsg string, completedAt time.Time) error

	// Report queries
	ListByProject(projectID uint) ([]model.Report, error)
	ListByStatus(status model.ReportStatus) ([]model.Report, error)
	ListStartedBefore(status model.ReportStatus, cutoff time.Time) ([]model.Report, error)
	CountByStatus() (map[model.ReportStatus]int64, error)
}

// reportStore implements ReportStore using GORM.
type reportStore struct {
	db *gorm.DB
}

func newReportStore(db *gorm.DB) ReportStore {
	return &reportStore{db: db}
}

func (s *reportStore) Create(report *model.Report) error {
	return s.db.Create(report).Error
}

func (s *reportStore) GetByID(id uint) (*model.Report, error) {
	var report model.Report
	if err := s.db.First(&report, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

// Transition moves a report from one status to another, applying extra column updates.
// Returns ErrStaleStatus if the row is not in status from.
func (s *reportStore) Transition(id uint, from, to model.ReportStatus, fields map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	updates := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["status"] = to

	result := s.db.Model(&model.Report{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: report %d is not %s", ErrStaleStatus, id, from)
	}
	return nil
}

func (s *reportStore) MarkInProgress(id uint, startedAt time.Time) error {
	return s.Transition(id, model.ReportStatusPending, model.ReportStatusInProgress, map[string]interface{}{
		"started_at": startedAt,
	})
}

func (s *reportStore) MarkComplete(id uint, filePath string, completedAt time.Time) error {
	return s.Transition(id, model.ReportStatusInProgress, model.ReportStatusComplete, map[string]interface{}{
		"file_path":     filePath,
		"completed_at":  completedAt,
		"error_message": "",
	})
}

// MarkFailed fails a report that is currently in status from and clears any file path.
func (s *reportStore) MarkFailed(id uint, from model.ReportStatus, errMsg string, completedAt time.Time) error {
	return s.Transition(id, from, model.ReportStatusFailed, map[string]interface{}{
		"file_path":     nil,
		"completed_at":  completedAt,
		"error_message": errMsg,
	})
}

// ListByProject returns the reports of a project, newest first.
func (s *reportStore) ListByProject(projectID uint) ([]model.Report, error) {
	var reports []model.Report
	err := s.db.Where("project_id = ?", projectID).
		Order("generated_at DESC, id DESC").
		Find(&reports).Error
	return reports, err
}

// ListByStatus returns reports in a status, oldest first.
func (s *reportStore) ListByStatus(status model.ReportStatus) ([]model.Report, error) {
	var reports []model.Report
	err := s.db.Where("status = ?", status).Order("id ASC").Find(&reports).Error
	return reports, err
}

// ListStartedBefore returns reports in status whose started_at is before cutoff.
func (s *reportStore) ListStartedBefore(status model.ReportStatus, cutoff time.Time) ([]model.Report, error) {
	var reports []model.Report
	err := s.db.Where("status = ? AND started_at IS NOT NULL AND started_at < ?", status, cutoff).
		Order("id ASC").
		Find(&reports).Error
	return reports, err
}

func (s *reportStore) CountByStatus() (map[model.ReportStatus]int64, error) {
	var rows []struct {
		Status model.ReportStatus
		Count  int64
	}
	err := s.db.Model(&model.Report{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.ReportStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
