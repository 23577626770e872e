package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttoc/smarttoc/internal/audit"
	"github.com/smarttoc/smarttoc/internal/pdf"
	"github.com/smarttoc/smarttoc/internal/refine"
	"github.com/smarttoc/smarttoc/internal/toc"
)

func seqIDs(prefix string) toc.IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// testSession returns a session with a deterministic clock and id
// source, pre-seeded with an open document and a generated tree.
func testSession(t *testing.T) *Session {
	t.Helper()

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(nil, toc.NewExtractor(seqIDs("gen")),
		WithIDGenerator(seqIDs("manual")),
		WithAuditOptions(
			audit.WithNow(func() time.Time { return fixed }),
			audit.WithIDGenerator(seqIDs("evt")),
		),
	)

	s.doc = &pdf.DocumentInfo{
		Path:      "/docs/report.pdf",
		Name:      "report.pdf",
		PageCount: 40,
	}
	s.tree = []*toc.Node{
		{
			ID: "a", Label: "Chapter 1", Level: 1, Page: 1, Confidence: 0.8, Status: toc.StatusConfirmed,
			Children: []*toc.Node{
				{ID: "b", Label: "1.1 Overview", Level: 2, Page: 2, Confidence: 0.6, Status: toc.StatusConfirmed},
				{ID: "c", Label: toc.UnknownLabelPrefix + "Figure 3", Level: 2, Page: 4, Confidence: 0.3, Status: toc.StatusUnknown},
			},
		},
		{ID: "d", Label: "Chapter 2", Level: 1, Page: 7, Confidence: 0.9, Status: toc.StatusConfirmed},
	}
	return s
}

func lastEvent(t *testing.T, s *Session) audit.Event {
	t.Helper()
	entries := s.Audit()
	require.NotEmpty(t, entries)
	return entries[len(entries)-1]
}

func TestEditLabel(t *testing.T) {
	s := testSession(t)

	tree, err := s.EditLabel("b", "1.1 Introduction")
	require.NoError(t, err)

	b := toc.Find(tree, "b")
	require.NotNil(t, b)
	assert.Equal(t, "1.1 Introduction", b.Label)

	evt := lastEvent(t, s)
	assert.Equal(t, audit.KindEditedLabel, evt.Kind)
	assert.Equal(t, `Label changed from "1.1 Overview" to "1.1 Introduction"`, evt.Description)
	assert.Equal(t, "b", evt.NodeID)
}

func TestEditLabel_RejectsBlankLabel(t *testing.T) {
	s := testSession(t)

	_, err := s.EditLabel("b", "   ")
	assert.ErrorIs(t, err, ErrEmptyLabel)
	assert.Empty(t, s.Audit())
}

func TestEditLabel_MissingNode(t *testing.T) {
	s := testSession(t)

	_, err := s.EditLabel("nope", "New label")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDelete_SubtreeGoesWithIt(t *testing.T) {
	s := testSession(t)

	tree, err := s.Delete("a")
	require.NoError(t, err)

	assert.Nil(t, toc.Find(tree, "a"))
	assert.Nil(t, toc.Find(tree, "b"))
	assert.Equal(t, 1, toc.Count(tree))

	evt := lastEvent(t, s)
	assert.Equal(t, audit.KindDeleted, evt.Kind)
	assert.Equal(t, `Deleted "Chapter 1" with 2 descendants`, evt.Description)
}

func TestDelete_Leaf(t *testing.T) {
	s := testSession(t)

	_, err := s.Delete("d")
	require.NoError(t, err)
	assert.Equal(t, `Deleted "Chapter 2"`, lastEvent(t, s).Description)
}

func TestConfirm(t *testing.T) {
	s := testSession(t)

	tree, err := s.Confirm("c")
	require.NoError(t, err)

	c := toc.Find(tree, "c")
	require.NotNil(t, c)
	assert.Equal(t, toc.StatusUserConfirmed, c.Status)

	evt := lastEvent(t, s)
	assert.Equal(t, audit.KindConfirmedUnknown, evt.Kind)
	assert.Equal(t, `Confirmed "Figure 3" as a heading`, evt.Description)
}

func TestReorder_Roots(t *testing.T) {
	s := testSession(t)

	tree, err := s.Reorder("", []string{"d", "a"})
	require.NoError(t, err)
	assert.Equal(t, "d", tree[0].ID)
	assert.Equal(t, "a", tree[1].ID)

	evt := lastEvent(t, s)
	assert.Equal(t, audit.KindMoved, evt.Kind)
	assert.Equal(t, "Reordered 2 top-level entries", evt.Description)
}

func TestReorder_Children(t *testing.T) {
	s := testSession(t)

	tree, err := s.Reorder("a", []string{"c", "b"})
	require.NoError(t, err)
	assert.Equal(t, "c", tree[0].Children[0].ID)
	assert.Equal(t, `Reordered 2 entries under "Chapter 1"`, lastEvent(t, s).Description)
}

func TestReorder_RejectsForeignIDs(t *testing.T) {
	s := testSession(t)

	_, err := s.Reorder("", []string{"d", "zzz"})
	assert.Error(t, err)
	assert.Empty(t, s.Audit())
}

func TestAddEntry(t *testing.T) {
	s := testSession(t)

	tree, err := s.AddEntry("Appendix A", 2, 30, "d")
	require.NoError(t, err)

	d := toc.Find(tree, "d")
	require.NotNil(t, d)
	require.Len(t, d.Children, 1)
	added := d.Children[0]
	assert.Equal(t, "manual-1", added.ID)
	assert.Equal(t, "Appendix A", added.Label)
	assert.True(t, added.Manual)
	assert.Equal(t, toc.StatusUserConfirmed, added.Status)
	assert.Equal(t, 1.0, added.Confidence)
	// Manual nodes serialize with "children": [], same as extracted ones.
	assert.NotNil(t, added.Children)

	evt := lastEvent(t, s)
	assert.Equal(t, audit.KindAdded, evt.Kind)
	assert.Equal(t, `Added "Appendix A" on page 30`, evt.Description)
	assert.Equal(t, "manual-1", evt.NodeID)
}

func TestAddEntry_AsRoot(t *testing.T) {
	s := testSession(t)

	tree, err := s.AddEntry("Appendix", 1, 35, "")
	require.NoError(t, err)
	assert.Equal(t, "Appendix", tree[len(tree)-1].Label)
}

func TestAddEntry_PageOutOfRange(t *testing.T) {
	s := testSession(t)

	_, err := s.AddEntry("Ghost", 1, 99, "")
	assert.Error(t, err)

	_, err = s.AddEntry("Ghost", 1, 0, "")
	assert.Error(t, err)
}

func TestAddEntry_UnknownParent(t *testing.T) {
	s := testSession(t)

	_, err := s.AddEntry("Orphan", 1, 5, "missing")
	assert.Error(t, err)
}

func TestOperationsRequireState(t *testing.T) {
	s := New(nil, toc.NewExtractor(seqIDs("gen")))

	_, err := s.Generate()
	assert.ErrorIs(t, err, ErrNoDocument)

	_, err = s.EditLabel("a", "x")
	assert.ErrorIs(t, err, ErrNoTree)

	_, err = s.Reorder("", nil)
	assert.ErrorIs(t, err, ErrNoTree)

	err = s.Save("/tmp/out.pdf")
	assert.ErrorIs(t, err, ErrNoDocument)

	assert.Nil(t, s.Document())
	assert.Nil(t, s.Tree())
}

func TestTree_ReturnsSnapshot(t *testing.T) {
	s := testSession(t)

	snapshot := s.Tree()
	snapshot[0].Label = "mutated"

	fresh := s.Tree()
	assert.Equal(t, "Chapter 1", fresh[0].Label)
}

func TestRefine_MergesAndLogs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := `[{"text":"Figure 3","page":4,"confidence":0.05,"level":2,"is_heading":false},` +
			`{"text":"1.1 Overview","page":2,"confidence":0.95,"level":2,"is_heading":true}]`
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	s := testSession(t)
	cfg := refine.Config{Provider: refine.ProviderOpenAI, APIKey: "k", Endpoint: srv.URL}

	tree, err := s.Refine(context.Background(), cfg, 0, nil)
	require.NoError(t, err)

	assert.Nil(t, toc.Find(tree, "c"))
	b := toc.Find(tree, "b")
	require.NotNil(t, b)
	assert.Equal(t, 0.95, b.Confidence)

	evt := lastEvent(t, s)
	assert.Equal(t, "Refined 2 of 4 entries via openai", evt.Description)
}

func TestRefine_InvalidProviderConfig(t *testing.T) {
	s := testSession(t)

	_, err := s.Refine(context.Background(), refine.Config{Provider: "openai"}, 0, nil)
	assert.Error(t, err)
	assert.Empty(t, s.Audit())
}
