package model

import (
	"time"
)

// ProjectStatus represents the lifecycle status of a project
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "Planning"
	ProjectStatusActive    ProjectStatus = "Active"
	ProjectStatusOnHold    ProjectStatus = "OnHold"
	ProjectStatusCompleted ProjectStatus = "Completed"
	ProjectStatusCanceled  ProjectStatus = "Canceled"
)

// StageType is the kind of work a stage covers
type StageType string

const (
	StageTypeExploration  StageType = "Exploration"
	StageTypeDesign       StageType = "Design"
	StageTypeInstallation StageType = "Installation"
	StageTypeTesting      StageType = "Testing"
)

// StageStatus represents the execution status of a stage
type StageStatus string

const (
	StageStatusPending    StageStatus = "Pending"
	StageStatusInProgress StageStatus = "InProgress"
	StageStatusCompleted  StageStatus = "Completed"
	StageStatusDelayed    StageStatus = "Delayed"
)

// UserRole is the access role of a user
type UserRole string

const (
	UserRoleAdministrator UserRole = "Administrator"
	UserRoleSpecialist    UserRole = "Specialist"
)

// User is a person who requests reports and receives notifications
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username string   `gorm:"size:100;not null;uniqueIndex" json:"username"`
	FullName string   `gorm:"size:255;not null" json:"full_name"`
	Role     UserRole `gorm:"size:20;not null;default:Specialist" json:"role"`
}

// Project is a construction/engineering project made of stages
type Project struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string        `gorm:"size:255;not null" json:"name"`
	Description string        `gorm:"type:text" json:"description,omitempty"`
	Budget      float64       `json:"budget"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	Status      ProjectStatus `gorm:"size:20;not null;default:Planning" json:"status"`

	CreatedByUserID uint `gorm:"index" json:"created_by_user_id"`

	Stages []Stage `gorm:"foreignKey:ProjectID" json:"stages,omitempty"`
}

// Stage is one unit of work within a project
type Stage struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint        `gorm:"not null;index" json:"project_id"`
	Name      string      `gorm:"size:255;not null" json:"name"`
	StageType StageType   `gorm:"size:20;not null" json:"stage_type"`
	Status    StageStatus `gorm:"size:20;not null;default:Pending" json:"status"`

	// ProgressPercent is an integer percentage in [0, 100]
	ProgressPercent int        `gorm:"not null;default:0" json:"progress_percent"`
	Deadline        *time.Time `json:"deadline,omitempty"`

	SpecialistUserID *uint `gorm:"index" json:"specialist_user_id,omitempty"`
}

// ProgressFraction converts ProgressPercent to a fraction in [0, 1], clamping out-of-range values.
func (s *Stage) ProgressFraction() float64 {
	switch {
	case s.ProgressPercent <= 0:
		return 0
	case s.ProgressPercent >= 100:
		return 1
	default:
		return float64(s.ProgressPercent) / 100.0
	}
}
