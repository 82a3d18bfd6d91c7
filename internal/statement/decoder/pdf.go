package decoder

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	minPDFTextRunes       = 20
	minPDFAlnumDensity    = 0.3
	pdfCellGapFontFactor  = 1.5
	pdfFallbackGlyphWidth = 0.5
)

// decodePDF extracts page text and appends every detected table row joined with " | ".
// Scanned or image-only documents produce ErrUnextractablePDF.
func decodePDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: parser panic: %v", ErrUnextractablePDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnextractablePDF, err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err == nil && strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		var table []string
		for _, row := range rows {
			cells := splitCells(row.Content)
			if len(cells) >= 2 {
				table = append(table, strings.Join(cells, " | "))
			}
		}
		if len(table) > 0 {
			parts = append(parts, strings.Join(table, "\n"))
		}
	}

	cleaned := CleanText(strings.Join(parts, "\n"))
	if !looksReadable(cleaned) {
		return "", ErrUnextractablePDF
	}
	return cleaned, nil
}

// splitCells groups the glyph runs of one visual row into cells separated by wide gaps
func splitCells(content pdf.TextHorizontal) []string {
	texts := make([]pdf.Text, 0, len(content))
	for _, t := range content {
		if t.S != "" {
			texts = append(texts, t)
		}
	}
	sort.SliceStable(texts, func(i, j int) bool { return texts[i].X < texts[j].X })

	var cells []string
	var current strings.Builder
	prevEnd := 0.0
	for i, t := range texts {
		width := t.W
		if width <= 0 {
			width = float64(len([]rune(t.S))) * t.FontSize * pdfFallbackGlyphWidth
		}
		gap := t.X - prevEnd
		if i > 0 && gap > t.FontSize*pdfCellGapFontFactor {
			if cellText := strings.TrimSpace(current.String()); cellText != "" {
				cells = append(cells, cellText)
			}
			current.Reset()
		}
		current.WriteString(t.S)
		prevEnd = t.X + width
	}
	if cellText := strings.TrimSpace(current.String()); cellText != "" {
		cells = append(cells, cellText)
	}
	return cells
}

// CleanText collapses whitespace runs inside every line and drops blank lines
func CleanText(raw string) string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if cleaned := strings.Join(strings.Fields(line), " "); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return strings.Join(lines, "\n")
}

func looksReadable(text string) bool {
	total, alnum := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total < minPDFTextRunes {
		return false
	}
	return float64(alnum)/float64(total) >= minPDFAlnumDensity
}
