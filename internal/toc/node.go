package toc

import "github.com/google/uuid"

// Status describes whether a heading is trusted.
type Status string

const (
	// StatusConfirmed marks a heading the extractor is confident about.
	StatusConfirmed Status = "confirmed"
	// StatusUnknown marks an ambiguous heading that needs human review.
	StatusUnknown Status = "unknown"
	// StatusUserConfirmed marks a heading a user explicitly accepted.
	StatusUserConfirmed Status = "user_confirmed"
)

// UnknownLabelPrefix flags ambiguous headings in their label. The
// source text follows the prefix unmodified.
const UnknownLabelPrefix = "Unknown: "

// Node is a single table-of-contents entry. IDs are assigned once at
// creation and never reused; sibling order is document order for
// extracted nodes and user order after manual edits.
type Node struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Level      int     `json:"level"` // heading depth, 1 = top-level
	Page       int     `json:"page"`  // 1-based
	Confidence float64 `json:"confidence"`
	Status     Status  `json:"status"`
	Children   []*Node `json:"children"`
	Manual     bool    `json:"manual"` // true only for user-created entries
}

// IDGenerator produces process-unique node identifiers. Injecting the
// generator keeps extraction output deterministic in tests.
type IDGenerator func() string

// UUIDGenerator returns random UUID identifiers.
func UUIDGenerator() string {
	return uuid.NewString()
}

// SourceText returns the heading text without the ambiguity prefix.
func (n *Node) SourceText() string {
	if len(n.Label) >= len(UnknownLabelPrefix) && n.Label[:len(UnknownLabelPrefix)] == UnknownLabelPrefix {
		return n.Label[len(UnknownLabelPrefix):]
	}
	return n.Label
}
