package pdftext

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF erzeugt ein minimales unkomprimiertes PDF mit einer Textzeile pro
// Seite. Die Offsets der Querverweistabelle werden beim Schreiben mitgezählt,
// damit das Dokument strikt valide ist.
func buildPDF(pageTexts ...string) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(s string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(s)
	}

	var kids []string
	for i := range pageTexts {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}

	buf.WriteString("%PDF-1.4\n")
	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), len(pageTexts)))
	obj("3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")
	for i, text := range pageTexts {
		pageObj := 4 + 2*i
		obj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>\nendobj\n",
			pageObj, pageObj+1))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		obj(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			pageObj+1, len(stream), stream))
	}

	xref := buf.Len()
	size := len(offsets) + 1
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n0000000000 65535 f \n", size))
	for _, off := range offsets {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		size, xref))
	return buf.Bytes()
}

func TestExtractLeading_ReadsPageContent(t *testing.T) {
	pdf := buildPDF("Hello Extraction World")

	text, err := ExtractLeading(pdf, 3)
	require.NoError(t, err)
	assert.Contains(t, text, "Hello Extraction World")
}

func TestExtractLeading_CapsAtMaxPages(t *testing.T) {
	pdf := buildPDF("Erste Seite", "Zweite Seite", "Dritte Seite")

	text, err := ExtractLeading(pdf, 2)
	require.NoError(t, err)
	assert.Contains(t, text, "Erste Seite")
	assert.Contains(t, text, "Zweite Seite")
	assert.NotContains(t, text, "Dritte Seite")
}

func TestExtractLeading_PagesInOrder(t *testing.T) {
	pdf := buildPDF("AAA-eins", "BBB-zwei")

	text, err := ExtractLeading(pdf, 8)
	require.NoError(t, err)
	assert.Less(t, strings.Index(text, "AAA-eins"), strings.Index(text, "BBB-zwei"))
}

func TestExtractLeading_GarbageInput(t *testing.T) {
	_, err := ExtractLeading([]byte("definitiv kein PDF"), 3)
	require.Error(t, err)
}
