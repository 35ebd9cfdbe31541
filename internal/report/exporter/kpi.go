package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/verustcode/stagereport/consts"
)

// KPISheetName is the only sheet of the KPI workbook
const KPISheetName = "KPI Summary"

// Workbook layout
const (
	kpiHeaderRow    = 6
	kpiFirstDataRow = 7
	kpiDateFormat   = "yyyy-mm-dd"
	// built-in number format "0%"
	kpiPercentNumFmt = 9
)

// KPIExporter renders the stage KPI summary as an XLSX workbook
type KPIExporter struct {
	opts Options
}

// NewKPIExporter creates a KPI exporter
func NewKPIExporter(opts Options) *KPIExporter {
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultOptions().DateLayout
	}
	return &KPIExporter{opts: opts}
}

// Name returns the exporter name
func (e *KPIExporter) Name() string {
	return "KPI spreadsheet"
}

// FileExtension returns "xlsx"
func (e *KPIExporter) FileExtension() string {
	return "xlsx"
}

// ContentType returns the XLSX MIME type
func (e *KPIExporter) ContentType() string {
	return consts.ContentTypeSpreadsheet
}

type kpiColumn struct {
	header string
	width  float64
}

func (e *KPIExporter) columns(cfg RenderConfig) []kpiColumn {
	cols := []kpiColumn{
		{"ID", 8},
		{"Name", 40},
		{"Status", 16},
	}
	if cfg.IncludeProgress {
		cols = append(cols, kpiColumn{"Progress, %", 14})
	}
	if cfg.IncludeDeadline {
		cols = append(cols, kpiColumn{"Planned date", 16})
	}
	return cols
}

// Export renders the workbook
func (e *KPIExporter) Export(doc *Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := KPISheetName
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	cols := e.columns(doc.Config)
	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return nil, err
	}

	styles, err := newKPIStyles(f)
	if err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f, sheet: sheet}

	// Title and context
	w.value("A1", "KPI summary")
	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		return nil, fmt.Errorf("failed to merge title: %w", err)
	}
	w.style("A1", lastCol+"1", styles.title)

	w.value("A3", "Project:")
	w.str("B3", doc.Project.Name)
	w.value("A4", "Generated:")
	w.str("B4", doc.GeneratedAt.Format(e.opts.DateLayout))
	w.style("A3", "A4", styles.label)

	// Header
	for i, col := range cols {
		name, _ := excelize.ColumnNumberToName(i + 1)
		w.value(fmt.Sprintf("%s%d", name, kpiHeaderRow), col.header)
		w.width(name, col.width)
	}
	w.style(fmt.Sprintf("A%d", kpiHeaderRow), fmt.Sprintf("%s%d", lastCol, kpiHeaderRow), styles.header)

	// Data
	stages := SelectStages(doc.Stages, doc.Config.StageIDs)
	for i, stage := range stages {
		row := kpiFirstDataRow + i
		w.value(fmt.Sprintf("A%d", row), stage.ID)
		w.str(fmt.Sprintf("B%d", row), stage.Name)
		w.str(fmt.Sprintf("C%d", row), string(stage.Status))

		col := 4
		if doc.Config.IncludeProgress {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			w.float(cell, stage.ProgressFraction())
			w.style(cell, cell, styles.percent)
			col++
		}
		if doc.Config.IncludeDeadline && stage.Deadline != nil {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			w.value(cell, stage.Deadline.UTC())
			w.style(cell, cell, styles.date)
		}
	}
	if w.err != nil {
		return nil, w.err
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:    "KPI summary: " + doc.Project.Name,
		Creator:  consts.ProjectName,
		Created:  doc.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Modified: doc.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}); err != nil {
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type kpiStyles struct {
	title, label, header, percent, date int
}

func newKPIStyles(f *excelize.File) (*kpiStyles, error) {
	var s kpiStyles
	var err error

	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if s.label, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	thin := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
		Border: thin,
	}); err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if s.percent, err = f.NewStyle(&excelize.Style{NumFmt: kpiPercentNumFmt}); err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	dateFmt := kpiDateFormat
	if s.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt}); err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	return &s, nil
}

// sheetWriter keeps the first excelize error; later calls are no-ops
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) value(cell string, v any) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellValue(w.sheet, cell, v); err != nil {
		w.err = fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
}

func (w *sheetWriter) str(cell, v string) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellStr(w.sheet, cell, v); err != nil {
		w.err = fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
}

func (w *sheetWriter) float(cell string, v float64) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellFloat(w.sheet, cell, v, -1, 64); err != nil {
		w.err = fmt.Errorf("failed to set cell %s: %w", cell, err)
	}
}

func (w *sheetWriter) style(from, to string, style int) {
	if w.err != nil {
		return
	}
	if err := w.f.SetCellStyle(w.sheet, from, to, style); err != nil {
		w.err = fmt.Errorf("failed to style %s:%s: %w", from, to, err)
	}
}

func (w *sheetWriter) width(col string, width float64) {
	if w.err != nil {
		return
	}
	if err := w.f.SetColWidth(w.sheet, col, col, width); err != nil {
		w.err = fmt.Errorf("failed to set width of column %s: %w", col, err)
	}
}
