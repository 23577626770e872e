// Package session binds one open document to one heading tree and one
// audit log. Every mutation goes through the session mutex, so the
// tree and the log can never drift apart no matter which transport
// drives them.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/smarttoc/smarttoc/internal/audit"
	"github.com/smarttoc/smarttoc/internal/pdf"
	"github.com/smarttoc/smarttoc/internal/refine"
	"github.com/smarttoc/smarttoc/internal/toc"
)

var (
	// ErrNoDocument is returned when an operation needs an open document.
	ErrNoDocument = errors.New("no document is open")
	// ErrNoTree is returned when an operation needs a generated TOC.
	ErrNoTree = errors.New("no TOC has been generated")
	// ErrNodeNotFound is returned when the named entry does not exist.
	ErrNodeNotFound = errors.New("TOC entry not found")
	// ErrEmptyLabel rejects blank or whitespace-only labels.
	ErrEmptyLabel = errors.New("label cannot be empty")
)

// Session is the single-writer editing context for one PDF document.
type Session struct {
	mu sync.Mutex

	pdfs      *pdf.Service
	extractor *toc.Extractor
	newID     toc.IDGenerator

	unknownThreshold float64
	logOpts          []audit.Option

	doc  *pdf.DocumentInfo
	tree []*toc.Node
	log  *audit.Log
}

// Option configures a Session.
type Option func(*Session)

// WithIDGenerator overrides the id source for manually added entries.
func WithIDGenerator(gen toc.IDGenerator) Option {
	return func(s *Session) { s.newID = gen }
}

// WithAuditOptions passes clock and id overrides to every audit log
// the session creates.
func WithAuditOptions(opts ...audit.Option) Option {
	return func(s *Session) { s.logOpts = opts }
}

// WithUnknownThreshold overrides the confidence below which refined
// entries are flagged ambiguous.
func WithUnknownThreshold(threshold float64) Option {
	return func(s *Session) { s.unknownThreshold = threshold }
}

// New creates a session over the given PDF service and extractor.
func New(pdfs *pdf.Service, extractor *toc.Extractor, opts ...Option) *Session {
	s := &Session{
		pdfs:             pdfs,
		extractor:        extractor,
		newID:            toc.UUIDGenerator,
		unknownThreshold: toc.DefaultExtractionConfig().UnknownConfidenceThreshold,
		log:              audit.NewLog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = audit.NewLog(s.logOpts...)
	return s
}

// Load validates and opens a document, discarding any previous tree
// and audit trail.
func (s *Session) Load(path string) (*pdf.DocumentInfo, error) {
	doc, err := s.pdfs.OpenDocument(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.tree = nil
	s.log = audit.NewLog(s.logOpts...)

	info := *doc
	return &info, nil
}

// Generate runs the heuristic extraction over the open document. The
// previous tree and audit trail are replaced; the fresh log starts
// with a single generation event.
func (s *Session) Generate() ([]*toc.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, ErrNoDocument
	}

	spans, err := s.pdfs.CollectSpans(s.doc.Path)
	if err != nil {
		return nil, fmt.Errorf("collect text spans: %w", err)
	}

	s.tree = s.extractor.Extract(spans)
	s.log = audit.NewLog(s.logOpts...).Append(audit.KindGenerated,
		fmt.Sprintf("Generated %d TOC entries from %s", toc.Count(s.tree), s.doc.Name), nil)

	return toc.Clone(s.tree), nil
}

// Refine sends the current tree out for re-scoring and merges the
// accepted refinements back. Batches that fail keep their heuristic
// scores; cancellation merges whatever completed before it.
func (s *Session) Refine(ctx context.Context, cfg refine.Config, batchSize int, onProgress refine.ProgressFunc) ([]*toc.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, ErrNoDocument
	}
	if s.tree == nil {
		return nil, ErrNoTree
	}

	client, err := refine.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	refiner := refine.NewRefinerWithBatchSize(client, batchSize)
	candidates := refine.CandidatesFromTree(s.tree)
	refinements := refiner.Refine(ctx, candidates, onProgress)

	s.tree = refine.MergeTree(s.tree, refinements, s.unknownThreshold)
	s.log = s.log.Append(audit.KindGenerated,
		fmt.Sprintf("Refined %d of %d entries via %s", len(refinements), len(candidates), cfg.Provider), nil)

	return toc.Clone(s.tree), nil
}

// EditLabel renames an entry. Blank labels are rejected; the audit
// description cites the previous label.
func (s *Session) EditLabel(id, label string) ([]*toc.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(label) == "" {
		return nil, ErrEmptyLabel
	}

	node, err := s.findNode(id)
	if err != nil {
		return nil, err
	}
	previous := node.Label

	s.tree = toc.EditLabel(s.tree, id, label)
	s.log = s.log.Append(audit.KindEditedLabel,
		fmt.Sprintf("Label changed from %q to %q", previous, label),
		&audit.NodeRef{ID: id, Label: label})

	return toc.Clone(s.tree), nil
}

// Delete removes an entry and its whole subtree.
func (s *Session) Delete(id string) ([]*toc.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.findNode(id)
	if err != nil {
		return nil, err
	}

	removed := toc.Count([]*toc.Node{node})
	description := fmt.Sprintf("Deleted %q", node.Label)
	if removed > 1 {
		description = fmt.Sprintf("Deleted %q with %d descendants", node.Label, removed-1)
	}

	s.tree = toc.Delete(s.tree, id)
	s.log = s.log.Append(audit.KindDeleted, description,
		&audit.NodeRef{ID: id, Label: node.Label})

	return toc.Clone(s.tree), nil
}

// Confirm marks an entry as human-verified, exempting it from future
// refinement passes.
func (s *Session) Confirm(id string) ([]*toc.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.findNode(id)
	if err != nil {
		return nil, err
	}

	s.tree = toc.Confirm(s.tree, id)
	s.log = s.log.Append(audit.KindConfirmedUnknown,
		fmt.Sprintf("Confirmed %q as a heading", node.SourceText()),
		&audit.NodeRef{ID: id, Label: node.Label})

	return toc.Clone(s.tree), nil
}

// Reorder rearranges the children of one parent (the root level when
// parentID is empty) into the given id order.
func (s *Session) Reorder(parentID string, orderedIDs []string) ([]*toc.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tree == nil {
		return nil, ErrNoTree
	}

	next, err := toc.Reorder(s.tree, parentID, orderedIDs)
	if err != nil {
		return nil, err
	}
	s.tree = next

	description := fmt.Sprintf("Reordered %d top-level entries", len(orderedIDs))
	if parentID != "" {
		if parent := toc.Find(s.tree, parentID); parent != nil {
			description = fmt.Sprintf("Reordered %d entries under %q", len(orderedIDs), parent.Label)
		}
	}
	s.log = s.log.Append(audit.KindMoved, description, nil)

	return toc.Clone(s.tree), nil
}

// AddEntry inserts a manual entry as the last child of the named
// parent, or as a new root when parentID is empty. Manual entries are
// user-confirmed from the start.
func (s *Session) AddEntry(label string, level, page int, parentID string) ([]*toc.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(label) == "" {
		return nil, ErrEmptyLabel
	}
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	if level < 1 {
		level = 1
	}
	if page < 1 || page > s.doc.PageCount {
		return nil, fmt.Errorf("page %d is out of range 1-%d", page, s.doc.PageCount)
	}

	node := &toc.Node{
		ID:         s.newID(),
		Label:      label,
		Level:      level,
		Page:       page,
		Confidence: 1.0,
		Status:     toc.StatusUserConfirmed,
		Manual:     true,
		Children:   []*toc.Node{},
	}

	next, err := toc.AddChild(s.tree, parentID, node)
	if err != nil {
		return nil, err
	}
	s.tree = next
	s.log = s.log.Append(audit.KindAdded,
		fmt.Sprintf("Added %q on page %d", label, page),
		&audit.NodeRef{ID: node.ID, Label: label})

	return toc.Clone(s.tree), nil
}

// Save writes the current tree into a copy of the source PDF as
// outline bookmarks. Unconfirmed entries are included with their
// flagged labels.
func (s *Session) Save(outPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNoDocument
	}
	if s.tree == nil {
		return ErrNoTree
	}

	if err := s.pdfs.SaveOutline(s.doc.Path, outPath, toOutline(s.tree)); err != nil {
		return fmt.Errorf("save outline: %w", err)
	}

	s.log = s.log.Append(audit.KindSaved,
		fmt.Sprintf("Saved %d entries to %s", toc.Count(s.tree), filepath.Base(outPath)), nil)
	return nil
}

// Tree returns a snapshot of the current forest.
func (s *Session) Tree() []*toc.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toc.Clone(s.tree)
}

// Audit returns a copy of the audit trail in append order.
func (s *Session) Audit() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]audit.Event, len(s.log.Entries))
	copy(entries, s.log.Entries)
	return entries
}

// Document returns the open document's metadata, or nil.
func (s *Session) Document() *pdf.DocumentInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil
	}
	info := *s.doc
	return &info
}

// findNode requires an open tree and an existing node. Callers hold
// the session mutex.
func (s *Session) findNode(id string) (*toc.Node, error) {
	if s.tree == nil {
		return nil, ErrNoTree
	}
	node := toc.Find(s.tree, id)
	if node == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return node, nil
}

// toOutline converts the forest into the flat bookmark shape the PDF
// layer writes.
func toOutline(nodes []*toc.Node) []pdf.Outline {
	outline := make([]pdf.Outline, 0, len(nodes))
	for _, n := range nodes {
		outline = append(outline, pdf.Outline{
			Title: n.Label,
			Page:  n.Page,
			Kids:  toOutline(n.Children),
		})
	}
	return outline
}
