package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUintArrayValue(t *testing.T) {
	tests := []struct {
		name  string
		input UintArray
		want  string
	}{
		{name: "nil array", input: nil, want: "[]"},
		{name: "empty array", input: UintArray{}, want: "[]"},
		{name: "ordered ids", input: UintArray{3, 1, 2}, want: "[3,1,2]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.input.Value()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUintArrayScan(t *testing.T) {
	var a UintArray
	require.NoError(t, a.Scan([]byte("[2,5]")))
	assert.Equal(t, UintArray{2, 5}, a)

	require.NoError(t, a.Scan("[]"))
	assert.Empty(t, a)

	require.NoError(t, a.Scan(nil))
	assert.Empty(t, a)

	assert.Error(t, a.Scan(42))
}

func TestJSONMapRoundTrip(t *testing.T) {
	m := JSONMap{"include_progress": false}
	v, err := m.Value()
	require.NoError(t, err)

	var out JSONMap
	require.NoError(t, out.Scan(v))
	assert.Equal(t, false, out["include_progress"])
}

func TestReportStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ReportStatus
		want     bool
	}{
		{ReportStatusPending, ReportStatusInProgress, true},
		{ReportStatusPending, ReportStatusFailed, true},
		{ReportStatusPending, ReportStatusComplete, false},
		{ReportStatusInProgress, ReportStatusComplete, true},
		{ReportStatusInProgress, ReportStatusFailed, true},
		{ReportStatusInProgress, ReportStatusPending, false},
		{ReportStatusComplete, ReportStatusFailed, false},
		{ReportStatusFailed, ReportStatusInProgress, false},
		{ReportStatusComplete, ReportStatusInProgress, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, ReportStatusComplete.IsTerminal())
	assert.True(t, ReportStatusFailed.IsTerminal())
	assert.False(t, ReportStatusPending.IsTerminal())
	assert.False(t, ReportStatusInProgress.IsTerminal())
}

func TestParseReportType(t *testing.T) {
	tests := []struct {
		input   string
		want    ReportType
		wantErr bool
	}{
		{input: "CertificateDocument", want: ReportTypeCertificate},
		{input: "pdfact", want: ReportTypeCertificate},
		{input: "SpreadsheetKpi", want: ReportTypeSpreadsheetKPI},
		{input: " EXCELKPI ", want: ReportTypeSpreadsheetKPI},
		{input: "PdfProtocol", want: ReportTypeProtocol},
		{input: "Docx", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseReportType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReportStatus(t *testing.T) {
	got, err := ParseReportStatus("inprogress")
	require.NoError(t, err)
	assert.Equal(t, ReportStatusInProgress, got)

	_, err = ParseReportStatus("Running")
	assert.Error(t, err)
}

func TestStageProgressFraction(t *testing.T) {
	assert.Equal(t, 0.0, (&Stage{ProgressPercent: -5}).ProgressFraction())
	assert.Equal(t, 0.5, (&Stage{ProgressPercent: 50}).ProgressFraction())
	assert.Equal(t, 1.0, (&Stage{ProgressPercent: 140}).ProgressFraction())
}

func TestReportFileName(t *testing.T) {
	r := &Report{}
	assert.Equal(t, "", r.FileName())

	name := "Tower_SpreadsheetKpi_4.xlsx"
	r.FilePath = &name
	assert.Equal(t, name, r.FileName())
}
