package exporter

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/jung-kurt/gofpdf/v2"

	"github.com/verustcode/stagereport/consts"
)

// Page geometry in millimetres (A4 portrait)
const (
	certMargin     = 15.0
	certLineHeight = 6.0
	certCellPad    = 1.0
)

// certificate table columns: #, stage, status, deadline
var certColumns = []struct {
	title string
	width float64
	align string
}{
	{"#", 9, "C"},
	{"Stage", 99, "L"},
	{"Status", 36, "C"},
	{"Deadline", 36, "C"},
}

const noDeadline = "—"

// certFont is registered from the embedded DejaVu faces so that Cyrillic and
// other non cp1252 names render as text
const certFont = "DejaVu"

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

// CertificateExporter renders a certificate of completion as PDF
type CertificateExporter struct {
	opts Options
}

// NewCertificateExporter creates a certificate exporter
func NewCertificateExporter(opts Options) *CertificateExporter {
	if opts.DateLayout == "" {
		opts.DateLayout = DefaultOptions().DateLayout
	}
	return &CertificateExporter{opts: opts}
}

// Name returns the exporter name
func (e *CertificateExporter) Name() string {
	return "Certificate"
}

// FileExtension returns "pdf"
func (e *CertificateExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the PDF MIME type
func (e *CertificateExporter) ContentType() string {
	return consts.ContentTypePDF
}

// Export renders the certificate.
// The output depends only on doc and the exporter options.
func (e *CertificateExporter) Export(doc *Document) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(certMargin, 20, certMargin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetCatalogSort(true)
	pdf.SetCompression(e.opts.Compress)
	pdf.SetTitle(fmt.Sprintf("Certificate of completion No.%d", doc.ReportID), true)
	pdf.SetCreator(consts.ProjectName, true)

	// gofpdf pads font tables in place, each document gets its own copy
	pdf.AddUTF8FontFromBytes(certFont, "", bytes.Clone(fontRegular))
	pdf.AddUTF8FontFromBytes(certFont, "B", bytes.Clone(fontBold))
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to load certificate font: %w", err)
	}

	pdf.AddPage()
	pageWidth, _ := pdf.GetPageSize()
	contentWidth := pageWidth - 2*certMargin

	// Title block
	pdf.SetLineWidth(0.5)
	pdf.Line(certMargin, pdf.GetY(), pageWidth-certMargin, pdf.GetY())
	pdf.Ln(4)
	pdf.SetFont(certFont, "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Certificate of completion No.%d", doc.ReportID), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont(certFont, "", 11)
	pdf.CellFormat(0, certLineHeight, "Date: "+doc.GeneratedAt.Format(e.opts.DateLayout), "", 1, "R", false, 0, "")
	if e.opts.City != "" {
		pdf.CellFormat(0, certLineHeight, "City: "+e.opts.City, "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	// Parties and subject
	pdf.CellFormat(0, certLineHeight, "Executor: "+executorName(doc), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.CellFormat(0, certLineHeight, "The executor has performed works on the project:", "", 1, "L", false, 0, "")
	pdf.SetFont(certFont, "B", 12)
	pdf.MultiCell(0, 7, doc.Project.Name, "", "C", false)
	pdf.Ln(4)

	e.writeStageTable(pdf, doc)
	pdf.Ln(6)

	pdf.SetFont(certFont, "", 11)
	pdf.MultiCell(contentWidth, certLineHeight,
		"The work has been completed in full and complies with the technical specification. The parties have no claims against each other.",
		"", "J", false)
	pdf.Ln(14)

	e.writeSignatures(pdf, contentWidth)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CertificateExporter) writeStageTable(pdf *gofpdf.Fpdf, doc *Document) {
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()

	writeHeader := func() {
		pdf.SetFont(certFont, "B", 10)
		pdf.SetFillColor(224, 224, 224)
		pdf.SetLineWidth(0.2)
		for _, col := range certColumns {
			pdf.CellFormat(col.width, 8, col.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(certFont, "", 10)
	}
	writeHeader()

	stages := SelectStages(doc.Stages, doc.Config.StageIDs)
	for i, stage := range stages {
		deadline := noDeadline
		if doc.Config.IncludeDeadline && stage.Deadline != nil {
			deadline = formatDate(stage.Deadline, e.opts.DateLayout)
		}
		cells := []string{
			strconv.Itoa(i + 1),
			stage.Name,
			string(stage.Status),
			deadline,
		}

		// the stage name wraps, the row takes the height of the wrapped name
		nameLines := pdf.SplitText(cells[1], certColumns[1].width-2*certCellPad)
		rowHeight := certLineHeight * float64(max(len(nameLines), 1))

		if pdf.GetY()+rowHeight > pageHeight-bottom {
			pdf.AddPage()
			writeHeader()
		}

		x, y := pdf.GetXY()
		for c, col := range certColumns {
			pdf.Rect(x, y, col.width, rowHeight, "D")
			if c == 1 {
				for l, line := range nameLines {
					pdf.SetXY(x+certCellPad, y+float64(l)*certLineHeight)
					pdf.CellFormat(col.width-2*certCellPad, certLineHeight, line, "", 0, col.align, false, 0, "")
				}
			} else {
				pdf.SetXY(x, y)
				pdf.CellFormat(col.width, rowHeight, cells[c], "", 0, col.align, false, 0, "")
			}
			x += col.width
		}
		pdf.SetXY(certMargin, y+rowHeight)
	}
}

func (e *CertificateExporter) writeSignatures(pdf *gofpdf.Fpdf, contentWidth float64) {
	half := contentWidth / 2

	pdf.SetFont(certFont, "B", 11)
	pdf.CellFormat(half, certLineHeight, "Customer:", "", 0, "L", false, 0, "")
	pdf.CellFormat(half, certLineHeight, "Executor:", "", 1, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont(certFont, "", 11)
	signature := "___________________ / (signature)"
	pdf.CellFormat(half, certLineHeight, signature, "", 0, "L", false, 0, "")
	pdf.CellFormat(half, certLineHeight, signature, "", 1, "R", false, 0, "")
}

// executorName prefers the full name and falls back to the login
func executorName(doc *Document) string {
	if doc.Executor.FullName != "" {
		return doc.Executor.FullName
	}
	return doc.Executor.Username
}
