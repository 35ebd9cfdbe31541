package model

import "time"

// Notification is a message delivered to a user's inbox
type Notification struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	UserID    uint   `gorm:"not null;index" json:"user_id"`
	ProjectID uint   `gorm:"index" json:"project_id"`
	ReportID  *uint  `gorm:"index" json:"report_id,omitempty"`
	Event     string `gorm:"size:50" json:"event,omitempty"`
	Message   string `gorm:"type:text;not null" json:"message"`
	IsRead    bool   `gorm:"not null;default:false;index" json:"is_read"`
}
