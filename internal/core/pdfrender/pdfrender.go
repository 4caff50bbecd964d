// Package pdfrender turns generated markdown into a simple printable PDF.
// It covers the structures the AI backend actually emits: headings, bullet
// and numbered lists, fenced code blocks, rules, and paragraphs.
package pdfrender

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	bulletRe  = regexp.MustCompile(`^\s*[-*+]\s+(.*)$`)
	orderedRe = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.*)$`)
	ruleRe    = regexp.MustCompile(`^\s*(-{3,}|\*{3,}|_{3,})\s*$`)

	linkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	emphasisRe = regexp.MustCompile("[*_`]")
)

var headingSizes = map[int]float64{1: 20, 2: 17, 3: 14, 4: 12, 5: 11, 6: 11}

// Render lays the markdown out on A4 pages and returns the PDF bytes.
func Render(markdown, title string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	inCode := false
	for _, line := range strings.Split(markdown, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCode = !inCode
			if inCode {
				pdf.Ln(2)
			} else {
				pdf.Ln(3)
			}
			continue
		}
		if inCode {
			pdf.SetFont("Courier", "", 9)
			pdf.SetTextColor(60, 60, 60)
			pdf.MultiCell(0, 4.5, tr(line), "", "L", false)
			pdf.SetTextColor(0, 0, 0)
			continue
		}

		switch {
		case headingRe.MatchString(line):
			m := headingRe.FindStringSubmatch(line)
			level := len(m[1])
			pdf.SetFont("Helvetica", "B", headingSizes[level])
			pdf.Ln(3)
			pdf.MultiCell(0, headingSizes[level]*0.5, tr(inline(m[2])), "", "L", false)
			pdf.Ln(1)

		case ruleRe.MatchString(line):
			pdf.Ln(2)
			x, y := pdf.GetX(), pdf.GetY()
			w, _ := pdf.GetPageSize()
			pdf.Line(x, y, w-15, y)
			pdf.Ln(3)

		case bulletRe.MatchString(line):
			m := bulletRe.FindStringSubmatch(line)
			item(pdf, tr, "•", m[1])

		case orderedRe.MatchString(line):
			m := orderedRe.FindStringSubmatch(line)
			item(pdf, tr, m[1]+".", m[2])

		case strings.TrimSpace(line) == "":
			pdf.Ln(3)

		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 5, tr(inline(line)), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func item(pdf *gofpdf.Fpdf, tr func(string) string, marker, text string) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetX(pdf.GetX() + 4)
	pdf.CellFormat(6, 5, tr(marker), "", 0, "L", false, 0, "")
	pdf.MultiCell(0, 5, tr(inline(text)), "", "L", false)
}

// inline strips the markdown span syntax the plain-text layout cannot show.
func inline(s string) string {
	s = linkRe.ReplaceAllString(s, "$1")
	return emphasisRe.ReplaceAllString(s, "")
}
