package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/verustcode/stagereport/consts"
	"github.com/verustcode/stagereport/internal/model"
	"github.com/verustcode/stagereport/internal/report/exporter"
)

// ArtifactFileName returns "{base}_{id}.{ext}".
// base is the requested target name without extension, or "{project}_{type}".
// The id suffix keeps names unique per report.
func ArtifactFileName(report *model.Report, projectName, ext string) string {
	base := ""
	if report.TargetFileName != nil {
		target := strings.TrimSpace(*report.TargetFileName)
		base = strings.TrimSuffix(target, filepath.Ext(target))
	}
	if base == "" {
		base = fmt.Sprintf("%s_%s", projectName, report.ReportType)
	}

	base = exporter.SanitizeFilename(base)
	if base == "" {
		base = "report"
	}
	return fmt.Sprintf("%s_%d.%s", base, report.ID, ext)
}

// ContentTypeFor maps a report type to the MIME type of its artifact
func ContentTypeFor(reportType model.ReportType) string {
	switch reportType {
	case model.ReportTypeCertificate:
		return consts.ContentTypePDF
	case model.ReportTypeSpreadsheetKPI:
		return consts.ContentTypeSpreadsheet
	default:
		return consts.ContentTypeBinary
	}
}
