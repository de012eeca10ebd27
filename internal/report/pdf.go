package report

import (
	"bufio"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders a summary to a minimal A4 PDF. The built-in fonts only
// cover cp1252, so Vietnamese diacritics outside that range are transliterated
// by the descriptor translator; the text file remains the canonical output.
func WritePDF(summary, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	first := true
	scanner := bufio.NewScanner(strings.NewReader(summary))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			pdf.Ln(5)
			continue
		}
		if first {
			pdf.SetFont("Helvetica", "B", 14)
			pdf.CellFormat(0, 8, tr(line), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
			first = false
			continue
		}
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
		pdf.Ln(1)
	}
	return pdf.OutputFileAndClose(outPath)
}
