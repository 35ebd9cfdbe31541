// Package exporter renders report documents with pluggable exporters.
package exporter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/logger"
)

// Document is the snapshot of project data a renderer works from.
// It is loaded when the generation runs, not when it is requested.
type Document struct {
	ReportID    uint
	ReportType  model.ReportType
	GeneratedAt time.Time
	Project     model.Project
	// Stages holds every stage of the project; exporters apply Config.StageIDs
	Stages   []model.Stage
	Executor model.User
	Config   RenderConfig
}

// ReportExporter defines the interface for report exporters
type ReportExporter interface {
	// Export renders the document to bytes
	Export(doc *Document) ([]byte, error)
	// Name returns the human-readable name of the exporter (e.g., "Certificate")
	Name() string
	// FileExtension returns the file extension without dot (e.g., "pdf")
	FileExtension() string
	// ContentType returns the MIME type of the rendered bytes
	ContentType() string
}

// Options tune rendering for a deployment
type Options struct {
	// City is printed on certificates; empty omits the line
	City string
	// DateLayout formats dates in document text (Go layout)
	DateLayout string
	// Compress enables PDF stream compression
	Compress bool
}

// DefaultOptions returns ISO dates with compression enabled
func DefaultOptions() Options {
	return Options{DateLayout: "2006-01-02", Compress: true}
}

// ExportManager manages all registered exporters
type ExportManager struct {
	exporters map[model.ReportType]ReportExporter
	mu        sync.RWMutex
}

// NewExportManager creates an empty export manager
func NewExportManager() *ExportManager {
	return &ExportManager{
		exporters: make(map[model.ReportType]ReportExporter),
	}
}

// NewDefaultManager registers the certificate and KPI exporters.
// ProtocolDocument is intentionally left without an exporter.
func NewDefaultManager(opts Options) *ExportManager {
	m := NewExportManager()
	m.Register(model.ReportTypeCertificate, NewCertificateExporter(opts))
	m.Register(model.ReportTypeSpreadsheetKPI, NewKPIExporter(opts))
	return m
}

// Register registers an exporter for a report type
func (m *ExportManager) Register(reportType model.ReportType, exporter ReportExporter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.exporters[reportType] = exporter
	logger.Debug("Registered report exporter",
		zap.String("report_type", string(reportType)),
		zap.String("name", exporter.Name()),
	)
}

// GetExporter returns the exporter for a report type.
// Types without an exporter yield ErrCodeReportUnsupported.
func (m *ExportManager) GetExporter(reportType model.ReportType) (ReportExporter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exporter, ok := m.exporters[reportType]
	if !ok {
		return nil, errors.ErrUnsupported(fmt.Sprintf("report type %s is not supported", reportType))
	}
	return exporter, nil
}

// Export renders doc with the exporter registered for its type
func (m *ExportManager) Export(doc *Document) ([]byte, error) {
	exporter, err := m.GetExporter(doc.ReportType)
	if err != nil {
		return nil, err
	}

	content, err := exporter.Export(doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeReportRender,
			fmt.Sprintf("failed to render report with %s exporter", exporter.Name()), err)
	}
	return content, nil
}

// SupportedTypes returns the report types that have an exporter, sorted
func (m *ExportManager) SupportedTypes() []model.ReportType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make([]model.ReportType, 0, len(m.exporters))
	for t := range m.exporters {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// SelectStages filters stages to ids (all when ids is empty) and sorts them by ID.
func SelectStages(stages []model.Stage, ids []uint) []model.Stage {
	var wanted map[uint]bool
	if len(ids) > 0 {
		wanted = make(map[uint]bool, len(ids))
		for _, id := range ids {
			wanted[id] = true
		}
	}

	out := make([]model.Stage, 0, len(stages))
	for _, s := range stages {
		if wanted == nil || wanted[s.ID] {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SanitizeFilename removes characters that are unsafe in file names and object keys
func SanitizeFilename(name string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " ", "\t", "\n", "\r"}
	result := name
	for _, char := range unsafe {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.ReplaceAll(result, "..", "_")

	// Remove consecutive underscores
	for strings.Contains(result, "__") {
		result = strings.ReplaceAll(result, "__", "_")
	}

	result = strings.Trim(result, "_.")

	if len(result) > 100 {
		result = strings.ToValidUTF8(result[:100], "")
	}

	return result
}

// formatDate renders an optional date, empty when nil
func formatDate(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}
