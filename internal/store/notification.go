package store

import (
	"gorm.io/gorm"

	"github.com/verustcode/stagereport/internal/model"
)

// NotificationStore defines operations for Notification model.
type NotificationStore interface {
	Create(n *model.Notification) error
	ListByUser(userID uint, unreadOnly bool, limit, offset int) ([]model.Notification, int64, error)
	// MarkRead marks a notification of the given user as read.
	// Returns gorm.ErrRecordNotFound if the user has no such notification.
	MarkRead(id, userID uint) error
	CountUnread(userID uint) (int64, error)
}

// notificationStore implements NotificationStore using GORM.
type notificationStore struct {
	db *gorm.DB
}

func newNotificationStore(db *gorm.DB) NotificationStore {
	return &notificationStore{db: db}
}

func (s *notificationStore) Create(n *model.Notification) error {
	return s.db.Create(n).Error
}

// ListByUser returns a page of notifications, newest first, with the total count.
func (s *notificationStore) ListByUser(userID uint, unreadOnly bool, limit, offset int) ([]model.Notification, int64, error) {
	var items []model.Notification
	var total int64

	query := s.db.Model(&model.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	err := query.Order("created_at DESC, id DESC").Find(&items).Error
	return items, total, err
}

func (s *notificationStore) MarkRead(id, userID uint) error {
	result := s.db.Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *notificationStore) CountUnread(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
