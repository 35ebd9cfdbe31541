package exporter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/pkg/errors"
	"github.com/verustcode/stagereport/pkg/logger"
)

func init() {
	logger.Init(logger.Config{Level: "error", Format: "text"})
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// testDocument returns a project with three stages stored out of ID order
func testDocument(reportType model.ReportType) *Document {
	return &Document{
		ReportID:    42,
		ReportType:  reportType,
		GeneratedAt: time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC),
		Project:     model.Project{ID: 7, Name: "Bridge"},
		Stages: []model.Stage{
			{ID: 12, ProjectID: 7, Name: "Installation", Status: model.StageStatusInProgress, ProgressPercent: 50, Deadline: date(2025, 8, 15)},
			{ID: 10, ProjectID: 7, Name: "Survey", Status: model.StageStatusCompleted, ProgressPercent: 100, Deadline: date(2025, 6, 30)},
			{ID: 11, ProjectID: 7, Name: "Design", Status: model.StageStatusPending, ProgressPercent: 0},
		},
		Executor: model.User{ID: 3, Username: "ivanov", FullName: "Ivan Ivanov"},
		Config:   DefaultRenderConfig(),
	}
}

func TestExportManager_Registry(t *testing.T) {
	m := NewDefaultManager(DefaultOptions())

	assert.Equal(t,
		[]model.ReportType{model.ReportTypeCertificate, model.ReportTypeSpreadsheetKPI},
		m.SupportedTypes())

	exp, err := m.GetExporter(model.ReportTypeCertificate)
	require.NoError(t, err)
	assert.Equal(t, "pdf", exp.FileExtension())
	assert.Equal(t, consts.ContentTypePDF, exp.ContentType())

	exp, err = m.GetExporter(model.ReportTypeSpreadsheetKPI)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", exp.FileExtension())
	assert.Equal(t, consts.ContentTypeSpreadsheet, exp.ContentType())

	_, err = m.GetExporter(model.ReportTypeProtocol)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeReportUnsupported))

	_, err = m.Export(testDocument(model.ReportTypeProtocol))
	assert.True(t, errors.HasCode(err, errors.ErrCodeReportUnsupported))
}

type failingExporter struct{}

func (failingExporter) Export(*Document) ([]byte, error) {
	return nil, assert.AnError
}

func (failingExporter) Name() string { return "failing" }

func (failingExporter) FileExtension() string { return "bin" }

func (failingExporter) ContentType() string { return consts.ContentTypeBinary }

func TestExportManager_ExportWrapsRenderError(t *testing.T) {
	m := NewExportManager()
	m.Register(model.ReportTypeProtocol, failingExporter{})

	_, err := m.Export(testDocument(model.ReportTypeProtocol))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeReportRender))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestSelectStages(t *testing.T) {
	doc := testDocument(model.ReportTypeCertificate)

	all := SelectStages(doc.Stages, nil)
	require.Len(t, all, 3)
	assert.Equal(t, []uint{10, 11, 12}, []uint{all[0].ID, all[1].ID, all[2].ID})

	some := SelectStages(doc.Stages, []uint{12, 10, 99})
	require.Len(t, some, 2)
	assert.Equal(t, uint(10), some[0].ID)
	assert.Equal(t, uint(12), some[1].ID)

	// input order is untouched
	assert.Equal(t, uint(12), doc.Stages[0].ID)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Bridge", "Bridge"},
		{"Bridge over river", "Bridge_over_river"},
		{"../../etc/passwd", "etc_passwd"},
		{"a:b*c?d", "a_b_c_d"},
		{"  spaced  ", "spaced"},
		{"Мост", "Мост"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.input))
		})
	}

	long := SanitizeFilename(string(bytes.Repeat([]byte("x"), 300)))
	assert.Len(t, long, 100)
}
