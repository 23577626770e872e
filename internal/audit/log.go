// Package audit keeps the append-only trail of every TOC mutation.
// Entries are immutable once appended; the only way a log shrinks is
// being replaced wholesale when a new document is loaded or a new
// generation run begins.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an audit event.
type Kind string

const (
	KindGenerated        Kind = "generated"
	KindEditedLabel      Kind = "edited_label"
	KindMoved            Kind = "moved"
	KindAdded            Kind = "added"
	KindDeleted          Kind = "deleted"
	KindSaved            Kind = "saved"
	KindConfirmedUnknown Kind = "confirmed_unknown"
)

// DefaultActor is used when a caller does not identify itself. The
// current scope has a single interactive user.
const DefaultActor = "User"

// Event is a single audit trail entry.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	Actor       string    `json:"actor"`
	Description string    `json:"description"`
	NodeID      string    `json:"node_id,omitempty"`
	NodeLabel   string    `json:"node_label,omitempty"`
}

// NodeRef carries optional node traceability for an event.
type NodeRef struct {
	ID    string
	Label string
}

// Log is an ordered, append-only sequence of events.
type Log struct {
	Entries []Event `json:"entries"`

	now   func() time.Time
	newID func() string
}

// Clock and id generation are injected so tests can assert on exact
// event content.
type Option func(*Log)

// WithNow overrides the timestamp source.
func WithNow(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// WithIDGenerator overrides event id generation.
func WithIDGenerator(gen func() string) Option {
	return func(l *Log) { l.newID = gen }
}

// NewLog creates an empty audit log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		Entries: []Event{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append returns a new log extended with one event. The receiver is
// never modified, so callers holding the previous value keep a stable
// snapshot.
func (l *Log) Append(kind Kind, description string, ref *NodeRef) *Log {
	event := Event{
		ID:          l.newID(),
		Kind:        kind,
		Timestamp:   l.now(),
		Actor:       DefaultActor,
		Description: description,
	}
	if ref != nil {
		event.NodeID = ref.ID
		event.NodeLabel = ref.Label
	}

	entries := make([]Event, 0, len(l.Entries)+1)
	entries = append(entries, l.Entries...)
	entries = append(entries, event)

	return &Log{Entries: entries, now: l.now, newID: l.newID}
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.Entries)
}
