package app

import (
	"bufio"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"mvdan.cc/xurls/v2"
)

// WritePDF renders a post as a simple A4 PDF: an optional bold title, then
// the text paragraph by paragraph with URLs turned into clickable links.
// Text is translated to cp1252 so German and other Western European
// characters render with the core fonts.
func WritePDF(title, text, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	if t := strings.TrimSpace(title); t != "" {
		pdf.SetFont("Helvetica", "B", 14)
		pdf.MultiCell(0, 8, tr(t), "", "L", false)
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "", 11)
	}

	urlRe := xurls.Strict()
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		s := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(s) == "" {
			pdf.Ln(5)
			continue
		}
		matches := urlRe.FindAllStringIndex(s, -1)
		if len(matches) == 0 {
			pdf.MultiCell(0, 5, tr(s), "", "L", false)
			continue
		}
		pos := 0
		for _, m := range matches {
			if m[0] > pos {
				pdf.Write(5, tr(s[pos:m[0]]))
			}
			u := s[m[0]:m[1]]
			pdf.WriteLinkString(5, u, u)
			pos = m[1]
		}
		if pos < len(s) {
			pdf.Write(5, tr(s[pos:]))
		}
		pdf.Ln(6)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return pdf.OutputFileAndClose(outPath)
}
