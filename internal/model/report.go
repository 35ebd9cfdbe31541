package model

import (
	"fmt"
	"strings"
	"time"
)

// ReportStatus represents the status of a report generation
type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "Pending"
	ReportStatusInProgress ReportStatus = "InProgress"
	ReportStatusComplete   ReportStatus = "Complete"
	ReportStatusFailed     ReportStatus = "Failed"
)

// IsTerminal reports whether no further transition is allowed
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusComplete || s == ReportStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal step.
// Pending may fail directly when the task cannot be scheduled or recovered.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case ReportStatusPending:
		return next == ReportStatusInProgress || next == ReportStatusFailed
	case ReportStatusInProgress:
		return next == ReportStatusComplete || next == ReportStatusFailed
	default:
		return false
	}
}

// ParseReportStatus parses a status string case-insensitively
func ParseReportStatus(s string) (ReportStatus, error) {
	for _, status := range []ReportStatus{
		ReportStatusPending, ReportStatusInProgress, ReportStatusComplete, ReportStatusFailed,
	} {
		if strings.EqualFold(s, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown report status %q", s)
}

// ReportType selects the document produced for a report
type ReportType string

const (
	// ReportTypeCertificate is the PDF certificate of completion
	ReportTypeCertificate ReportType = "CertificateDocument"
	// ReportTypeSpreadsheetKPI is the XLSX KPI export
	ReportTypeSpreadsheetKPI ReportType = "SpreadsheetKpi"
	// ReportTypeProtocol is accepted but has no renderer yet
	ReportTypeProtocol ReportType = "ProtocolDocument"
)

// AllReportTypes lists every report type a request may name
func AllReportTypes() []ReportType {
	return []ReportType{ReportTypeCertificate, ReportTypeSpreadsheetKPI, ReportTypeProtocol}
}

var reportTypeAliases = map[string]ReportType{
	"certificatedocument": ReportTypeCertificate,
	"certificate":         ReportTypeCertificate,
	"pdfact":              ReportTypeCertificate,
	"spreadsheetkpi":      ReportTypeSpreadsheetKPI,
	"excelkpi":            ReportTypeSpreadsheetKPI,
	"kpi":                 ReportTypeSpreadsheetKPI,
	"protocoldocument":    ReportTypeProtocol,
	"pdfprotocol":         ReportTypeProtocol,
	"protocol":            ReportTypeProtocol,
}

// ParseReportType parses a report type name case-insensitively, accepting legacy aliases
func ParseReportType(s string) (ReportType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if t, ok := reportTypeAliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown report type %q", s)
}

// Report is one attempt to generate a document from project and stage data
type Report struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	StageID   *uint     `json:"stage_id,omitempty"`
	StageIDs  UintArray `gorm:"type:text" json:"stage_ids,omitempty"`

	ReportType ReportType   `gorm:"size:50;not null;index" json:"report_type"`
	Status     ReportStatus `gorm:"size:20;not null;default:Pending;index" json:"status"`

	GeneratedAt       time.Time `gorm:"not null;index" json:"generated_at"`
	GeneratedByUserID uint      `gorm:"not null;index" json:"generated_by_user_id"`

	// FilePath is set only when Status is Complete
	FilePath       *string `gorm:"size:1024" json:"file_path,omitempty"`
	TargetFileName *string `gorm:"size:255" json:"target_file_name,omitempty"`

	// ReportConfig holds the normalized rendering configuration
	ReportConfig JSONMap `gorm:"type:text" json:"report_config,omitempty"`

	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
}

// FileName returns the stored file name, or empty when the report has no artifact
func (r *Report) FileName() string {
	if r.FilePath == nil {
		return ""
	}
	return *r.FilePath
}
