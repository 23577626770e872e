package toc

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/smarttoc/smarttoc/internal/pdf"
)

// ExtractionConfig holds the tuneable thresholds of the heuristic
// extraction pass.
type ExtractionConfig struct {
	// MinHeadingSize is the minimum font size to even consider a span
	// as a heading candidate.
	MinHeadingSize float64
	// HeadingSizeDelta is how much larger than the body font a span
	// must be unless it is bold.
	HeadingSizeDelta float64
	// MinHeadingChars and MaxHeadingChars bound plausible heading text
	// lengths; shorter is noise, longer is a body paragraph.
	MinHeadingChars int
	MaxHeadingChars int
	// UnknownConfidenceThreshold is the confidence below which a node
	// is flagged as ambiguous.
	UnknownConfidenceThreshold float64
}

// DefaultExtractionConfig returns the default thresholds.
func DefaultExtractionConfig() ExtractionConfig {
	return ExtractionConfig{
		MinHeadingSize:             10,
		HeadingSizeDelta:           1.5,
		MinHeadingChars:            3,
		MaxHeadingChars:            200,
		UnknownConfidenceThreshold: 0.4,
	}
}

// A confidence delta of 8 units over the body size saturates the size
// score at 1.0; bold text earns a fixed bonus on top.
const (
	confidenceSaturationDelta = 8.0
	boldConfidenceBonus       = 0.2
)

// Extractor turns ordered text spans into a heading forest. Extraction
// is a pure pass over the span list: the same input and thresholds
// always produce the same forest, identifiers aside.
type Extractor struct {
	config ExtractionConfig
	newID  IDGenerator
}

// NewExtractor creates an extractor with default thresholds.
func NewExtractor(newID IDGenerator) *Extractor {
	return NewExtractorWithConfig(DefaultExtractionConfig(), newID)
}

// NewExtractorWithConfig creates an extractor with custom thresholds.
func NewExtractorWithConfig(config ExtractionConfig, newID IDGenerator) *Extractor {
	return &Extractor{config: config, newID: newID}
}

// candidate is a span that survived filtering, annotated with its
// cluster-assigned level. It exists only during hierarchy assembly.
type candidate struct {
	span  pdf.TextSpan
	level int
}

// Extract runs the full heuristic pipeline: modal body size, candidate
// filtering, deduplication, level clustering, confidence scoring, and
// depth-stack hierarchy assembly. No candidates is not an error; the
// result is simply an empty forest.
func (e *Extractor) Extract(spans []pdf.TextSpan) []*Node {
	usable := usableSpans(spans)
	if len(usable) == 0 {
		return nil
	}

	bodySize := modalFontSize(usable)
	candidates := e.filterCandidates(usable, bodySize)
	candidates = dedupeCandidates(candidates)
	if len(candidates) == 0 {
		return nil
	}

	leveled := assignLevels(candidates)

	flat := make([]*Node, 0, len(leveled))
	for _, c := range leveled {
		flat = append(flat, e.scoreCandidate(c, bodySize))
	}

	return buildForest(flat)
}

// usableSpans drops malformed spans rather than failing the run.
func usableSpans(spans []pdf.TextSpan) []pdf.TextSpan {
	usable := make([]pdf.TextSpan, 0, len(spans))
	for _, s := range spans {
		if strings.TrimSpace(s.Text) == "" || s.FontSize <= 0 || s.Page < 1 {
			continue
		}
		usable = append(usable, s)
	}
	return usable
}

// modalFontSize determines the body-text baseline: the most frequent
// font size across the document, bucketed to 0.5 units. Ties keep the
// first-seen bucket.
func modalFontSize(spans []pdf.TextSpan) float64 {
	counts := make(map[float64]int)
	var order []float64

	for _, s := range spans {
		bucket := math.Round(s.FontSize*2) / 2
		if _, seen := counts[bucket]; !seen {
			order = append(order, bucket)
		}
		counts[bucket]++
	}

	mode := 12.0
	max := 0
	for _, bucket := range order {
		if counts[bucket] > max {
			max = counts[bucket]
			mode = bucket
		}
	}
	return mode
}

// filterCandidates keeps only spans that pass every heading test. A
// span must pass ALL filters to be included; omission is preferred
// over a noisy TOC.
func (e *Extractor) filterCandidates(spans []pdf.TextSpan, bodySize float64) []pdf.TextSpan {
	var candidates []pdf.TextSpan
	for _, s := range spans {
		if s.FontSize < e.config.MinHeadingSize {
			continue
		}
		if s.FontSize < bodySize+e.config.HeadingSizeDelta && !s.Bold {
			continue
		}
		// Length bounds are character counts, not byte counts; CJK
		// headings would otherwise hit the upper bound three times early.
		chars := utf8.RuneCountInString(s.Text)
		if chars < e.config.MinHeadingChars || chars > e.config.MaxHeadingChars {
			continue
		}
		candidates = append(candidates, s)
	}
	return candidates
}

// dedupeCandidates removes repeated (page, text) occurrences, keeping
// the first. Text layers sometimes emit the same run twice, and running
// headers repeat verbatim down a page.
func dedupeCandidates(candidates []pdf.TextSpan) []pdf.TextSpan {
	seen := make(map[string]struct{}, len(candidates))
	deduped := make([]pdf.TextSpan, 0, len(candidates))

	for _, c := range candidates {
		key := candidateKey(c.Page, c.Text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, c)
	}
	return deduped
}

func candidateKey(page int, text string) string {
	return strconv.Itoa(page) + "::" + strings.ToLower(strings.TrimSpace(text))
}

// assignLevels clusters the distinct candidate font sizes document-wide
// and maps them to heading depths by descending size rank. Equal sizes
// share a level regardless of where in the document they appear.
func assignLevels(candidates []pdf.TextSpan) []candidate {
	distinct := make(map[float64]struct{})
	for _, c := range candidates {
		distinct[c.FontSize] = struct{}{}
	}

	sizes := make([]float64, 0, len(distinct))
	for size := range distinct {
		sizes = append(sizes, size)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sizes)))

	sizeToLevel := make(map[float64]int, len(sizes))
	for i, size := range sizes {
		sizeToLevel[size] = i + 1
	}

	leveled := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		leveled = append(leveled, candidate{span: c, level: sizeToLevel[c.FontSize]})
	}
	return leveled
}

// scoreCandidate computes a confidence score and flags sub-threshold
// nodes as unknown. Ambiguity is surfaced, never hidden: a candidate
// that survived filtering always produces a node.
func (e *Extractor) scoreCandidate(c candidate, bodySize float64) *Node {
	sizeScore := clamp((c.span.FontSize-bodySize)/confidenceSaturationDelta, 0, 1)
	boldBonus := 0.0
	if c.span.Bold {
		boldBonus = boldConfidenceBonus
	}
	confidence := clamp(sizeScore+boldBonus, 0, 1)

	label := c.span.Text
	status := StatusConfirmed
	if confidence < e.config.UnknownConfidenceThreshold {
		label = UnknownLabelPrefix + label
		status = StatusUnknown
	}

	return &Node{
		ID:         e.newID(),
		Label:      label,
		Level:      c.level,
		Page:       c.span.Page,
		Confidence: confidence,
		Status:     status,
		Children:   []*Node{},
		Manual:     false,
	}
}

// buildForest assembles a nested forest from flat leveled nodes using a
// depth stack: a same-or-shallower heading closes every deeper open
// context. A heading with no shallower predecessor becomes a root even
// if its level is greater than 1; no synthetic parents are fabricated.
func buildForest(flat []*Node) []*Node {
	var roots []*Node
	var stack []*Node

	for _, node := range flat {
		for len(stack) > 0 && stack[len(stack)-1].Level >= node.Level {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			top := stack[len(stack)-1]
			top.Children = append(top.Children, node)
		}

		stack = append(stack, node)
	}

	return roots
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
