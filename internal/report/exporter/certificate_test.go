package exporter

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verustcode/stagereport/internal/model"
)

// pdfText encodes s the way gofpdf writes a UTF-8 font text run: UTF-16BE
// with PDF string escapes
func pdfText(s string) []byte {
	var b strings.Builder
	for _, u := range utf16.Encode([]rune(s)) {
		b.WriteByte(byte(u >> 8))
		b.WriteByte(byte(u))
	}
	escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`, "\r", `\r`).Replace(b.String())
	return []byte("(" + escaped + ")Tj")
}

// showsText reports whether the uncompressed PDF draws s as a text run
func showsText(pdf []byte, s string) bool {
	return bytes.Contains(pdf, pdfText(s))
}

func renderCertificate(t *testing.T, doc *Document) []byte {
	t.Helper()
	e := NewCertificateExporter(Options{City: "Springfield", DateLayout: "2006-01-02"})
	out, err := e.Export(doc)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	return out
}

func TestCertificateExporter_Layout(t *testing.T) {
	out := renderCertificate(t, testDocument(model.ReportTypeCertificate))

	for _, text := range []string{
		"Certificate of completion No.42",
		"Date: 2025-07-01",
		"City: Springfield",
		"Executor: Ivan Ivanov",
		"Bridge",
		"Survey",
		"Design",
		"Installation",
		"2025-06-30",
		"2025-08-15",
		"Completed",
		"Customer:",
	} {
		assert.True(t, showsText(out, text), "missing %q", text)
	}

	// stage numbering follows ascending stage ID
	survey := bytes.Index(out, pdfText("Survey"))
	design := bytes.Index(out, pdfText("Design"))
	install := bytes.Index(out, pdfText("Installation"))
	assert.True(t, survey >= 0 && survey < design && design < install)
}

func TestCertificateExporter_StageFilterAndDeadline(t *testing.T) {
	doc := testDocument(model.ReportTypeCertificate)
	doc.Config = RenderConfig{IncludeProgress: true, IncludeDeadline: false, StageIDs: []uint{12}}

	out := renderCertificate(t, doc)

	assert.True(t, showsText(out, "Installation"))
	assert.False(t, showsText(out, "Survey"))
	assert.False(t, showsText(out, "Design"))
	assert.False(t, showsText(out, "2025-08-15"))
	assert.True(t, showsText(out, "—"))
	// the deadline column header is kept
	assert.True(t, showsText(out, "Deadline"))
}

func TestCertificateExporter_EmptySelection(t *testing.T) {
	doc := testDocument(model.ReportTypeCertificate)
	doc.Stages = nil

	out := renderCertificate(t, doc)
	assert.True(t, showsText(out, "Certificate of completion No.42"))
}

func TestCertificateExporter_Deterministic(t *testing.T) {
	doc := testDocument(model.ReportTypeCertificate)
	e := NewCertificateExporter(Options{City: "Springfield", Compress: true})

	first, err := e.Export(doc)
	require.NoError(t, err)
	second, err := e.Export(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCertificateExporter_ExecutorFallback(t *testing.T) {
	doc := testDocument(model.ReportTypeCertificate)
	doc.Executor.FullName = ""

	out := renderCertificate(t, doc)
	assert.True(t, showsText(out, "Executor: ivanov"))
}

func TestCertificateExporter_Cyrillic(t *testing.T) {
	doc := testDocument(model.ReportTypeCertificate)
	doc.Project.Name = "Мост через реку"
	doc.Executor.FullName = "Иван Иванов"
	doc.Stages[0].Name = "Монтаж опор"

	out := renderCertificate(t, doc)

	assert.True(t, showsText(out, "Executor: Иван Иванов"))
	assert.True(t, showsText(out, "Мост через реку"))
	assert.True(t, showsText(out, "Монтаж опор"))
	// the subset font carries the glyph to Unicode map for text extraction
	assert.True(t, bytes.Contains(out, []byte("/ToUnicode")))
}

func TestCertificateExporter_ConcurrentExports(t *testing.T) {
	e := NewCertificateExporter(Options{City: "Springfield", Compress: true})
	want, err := e.Export(testDocument(model.ReportTypeCertificate))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = e.Export(testDocument(model.ReportTypeCertificate))
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
