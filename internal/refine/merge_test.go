package refine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttoc/smarttoc/internal/toc"
)

const testUnknownThreshold = 0.4

func refineForest() []*toc.Node {
	return []*toc.Node{
		{
			ID: "a", Label: "Chapter 1", Level: 1, Page: 1, Confidence: 0.8, Status: toc.StatusConfirmed,
			Children: []*toc.Node{
				{ID: "b", Label: "1.1 Overview", Level: 2, Page: 2, Confidence: 0.6, Status: toc.StatusConfirmed},
				{ID: "c", Label: toc.UnknownLabelPrefix + "Figure 3", Level: 2, Page: 4, Confidence: 0.3, Status: toc.StatusUnknown},
			},
		},
		{ID: "d", Label: "Chapter 2", Level: 1, Page: 7, Confidence: 0.9, Status: toc.StatusConfirmed},
	}
}

func TestCandidatesFromTree(t *testing.T) {
	got := CandidatesFromTree(refineForest())

	require.Len(t, got, 4)
	// Pre-order, with the ambiguity prefix stripped for the provider.
	assert.Equal(t, Candidate{Text: "Chapter 1", Page: 1, HeuristicConfidence: 0.8, HeuristicLevel: 1}, got[0])
	assert.Equal(t, Candidate{Text: "1.1 Overview", Page: 2, HeuristicConfidence: 0.6, HeuristicLevel: 2}, got[1])
	assert.Equal(t, Candidate{Text: "Figure 3", Page: 4, HeuristicConfidence: 0.3, HeuristicLevel: 2}, got[2])
	assert.Equal(t, Candidate{Text: "Chapter 2", Page: 7, HeuristicConfidence: 0.9, HeuristicLevel: 1}, got[3])
}

func TestMergeTree_UpdatesConfidenceAndLevel(t *testing.T) {
	refs := map[string]Refinement{
		Key(2, "1.1 Overview"): {Text: "1.1 Overview", Page: 2, Confidence: 0.95, Level: 3, IsHeading: true},
	}

	merged := MergeTree(refineForest(), refs, testUnknownThreshold)

	b := toc.Find(merged, "b")
	require.NotNil(t, b)
	assert.Equal(t, 0.95, b.Confidence)
	assert.Equal(t, 3, b.Level)
	assert.Equal(t, toc.StatusConfirmed, b.Status)
	// A refined level never moves the node in the tree.
	assert.Equal(t, "b", merged[0].Children[0].ID)
}

func TestMergeTree_NotAHeadingRemovesSubtree(t *testing.T) {
	forest := refineForest()
	forest[0].Children[1].Children = []*toc.Node{
		{ID: "c1", Label: "Nested", Level: 3, Page: 5, Confidence: 0.5, Status: toc.StatusConfirmed},
	}
	refs := map[string]Refinement{
		Key(4, "Figure 3"): {Text: "Figure 3", Page: 4, Confidence: 0.1, Level: 2, IsHeading: false},
	}

	merged := MergeTree(forest, refs, testUnknownThreshold)

	assert.Nil(t, toc.Find(merged, "c"))
	assert.Nil(t, toc.Find(merged, "c1"))
	assert.Equal(t, 3, toc.Count(merged))
}

func TestMergeTree_DemotesToUnknown(t *testing.T) {
	refs := map[string]Refinement{
		Key(1, "Chapter 1"): {Text: "Chapter 1", Page: 1, Confidence: 0.2, Level: 1, IsHeading: true},
	}

	merged := MergeTree(refineForest(), refs, testUnknownThreshold)

	a := toc.Find(merged, "a")
	require.NotNil(t, a)
	assert.Equal(t, toc.StatusUnknown, a.Status)
	assert.Equal(t, toc.UnknownLabelPrefix+"Chapter 1", a.Label)
	assert.Equal(t, 0.2, a.Confidence)
}

func TestMergeTree_PromotesFromUnknown(t *testing.T) {
	refs := map[string]Refinement{
		Key(4, "Figure 3"): {Text: "Figure 3", Page: 4, Confidence: 0.7, Level: 2, IsHeading: true},
	}

	merged := MergeTree(refineForest(), refs, testUnknownThreshold)

	c := toc.Find(merged, "c")
	require.NotNil(t, c)
	assert.Equal(t, toc.StatusConfirmed, c.Status)
	assert.Equal(t, "Figure 3", c.Label)
}

func TestMergeTree_UserConfirmedIsExempt(t *testing.T) {
	forest := refineForest()
	forest[1].Status = toc.StatusUserConfirmed
	refs := map[string]Refinement{
		Key(7, "Chapter 2"): {Text: "Chapter 2", Page: 7, Confidence: 0.1, Level: 5, IsHeading: false},
	}

	merged := MergeTree(forest, refs, testUnknownThreshold)

	d := toc.Find(merged, "d")
	require.NotNil(t, d)
	assert.Equal(t, toc.StatusUserConfirmed, d.Status)
	assert.Equal(t, 0.9, d.Confidence)
	assert.Equal(t, 1, d.Level)
}

func TestMergeTree_UnmatchedNodesKeepHeuristicValues(t *testing.T) {
	merged := MergeTree(refineForest(), map[string]Refinement{}, testUnknownThreshold)

	b := toc.Find(merged, "b")
	require.NotNil(t, b)
	assert.Equal(t, 0.6, b.Confidence)
	assert.Equal(t, 2, b.Level)

	c := toc.Find(merged, "c")
	require.NotNil(t, c)
	assert.Equal(t, toc.StatusUnknown, c.Status)
	assert.Equal(t, toc.UnknownLabelPrefix+"Figure 3", c.Label)
}

func TestMergeTree_DoesNotMutateInput(t *testing.T) {
	forest := refineForest()
	refs := map[string]Refinement{
		Key(1, "Chapter 1"):    {Text: "Chapter 1", Page: 1, Confidence: 0.1, Level: 2, IsHeading: true},
		Key(2, "1.1 Overview"): {Text: "1.1 Overview", Page: 2, Confidence: 0.1, Level: 2, IsHeading: false},
	}

	MergeTree(forest, refs, testUnknownThreshold)

	assert.Equal(t, 0.8, forest[0].Confidence)
	assert.Equal(t, "Chapter 1", forest[0].Label)
	assert.Len(t, forest[0].Children, 2)
}
