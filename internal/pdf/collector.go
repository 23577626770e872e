package pdf

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Line-assembly tolerances. ledongthuc emits one Text fragment per
// text-showing operation, so fragments that share a baseline must be
// stitched back into lines before heading analysis is meaningful.
const (
	baselineTolerance = 0.5 // fragments within this Y distance share a line
	wordGapFactor     = 0.3 // gap wider than factor*fontSize inserts a space
)

// Collector extracts ordered positioned text spans from PDF files.
type Collector struct {
	maxFileSize int64
}

// NewCollector creates a new span collector with the specified constraints.
func NewCollector(maxFileSize int64) *Collector {
	return &Collector{maxFileSize: maxFileSize}
}

// CollectSpans extracts one TextSpan per assembled text line for every
// page in document order. Page numbers are 1-based and non-decreasing
// across the returned slice.
func (c *Collector) CollectSpans(path string) ([]TextSpan, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var spans []TextSpan
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		spans = append(spans, assembleLines(content.Text, pageNum)...)
	}

	return spans, nil
}

// assembleLines stitches raw text fragments into line-level spans.
// Fragments are grouped by baseline, ordered top-to-bottom then
// left-to-right, and concatenated with spaces where the horizontal gap
// indicates a word break. Fragments with no usable text or font size
// are skipped rather than failing the page.
func assembleLines(fragments []pdf.Text, pageNum int) []TextSpan {
	var usable []pdf.Text
	for _, fr := range fragments {
		if strings.TrimSpace(fr.S) == "" && fr.S != " " {
			continue
		}
		if fr.FontSize <= 0 {
			continue
		}
		usable = append(usable, fr)
	}
	if len(usable) == 0 {
		return nil
	}

	// Stable sort keeps original stream order for fragments on the
	// same baseline at the same X, which matters for ligature splits.
	sort.SliceStable(usable, func(i, j int) bool {
		if math.Abs(usable[i].Y-usable[j].Y) > baselineTolerance {
			return usable[i].Y > usable[j].Y // PDF Y grows upward
		}
		return usable[i].X < usable[j].X
	})

	var spans []TextSpan
	var (
		builder  strings.Builder
		lineY    float64
		lineSize float64
		lineBold bool
		lastEnd  float64
		open     bool
	)

	flush := func() {
		if !open {
			return
		}
		text := strings.TrimSpace(builder.String())
		if text != "" {
			spans = append(spans, TextSpan{
				Text:     text,
				FontSize: lineSize,
				Bold:     lineBold,
				Page:     pageNum,
				Y:        lineY,
			})
		}
		builder.Reset()
		open = false
	}

	for _, fr := range usable {
		sameLine := open && math.Abs(fr.Y-lineY) <= baselineTolerance
		if !sameLine {
			flush()
			lineY = fr.Y
			lineSize = fr.FontSize
			lineBold = isBoldFont(fr.Font)
			lastEnd = fr.X
			open = true
		} else {
			if fr.X-lastEnd > wordGapFactor*fr.FontSize {
				builder.WriteString(" ")
			}
			// A line keeps the largest font size seen on it and is
			// bold only while every fragment is bold.
			if fr.FontSize > lineSize {
				lineSize = fr.FontSize
			}
			lineBold = lineBold && isBoldFont(fr.Font)
		}
		builder.WriteString(fr.S)
		lastEnd = fr.X + fr.W
	}
	flush()

	return spans
}

// isBoldFont reports whether a PDF font name indicates a bold weight.
func isBoldFont(fontName string) bool {
	name := strings.ToLower(fontName)
	return strings.Contains(name, "bold") ||
		strings.Contains(name, "heavy") ||
		strings.Contains(name, "black")
}
