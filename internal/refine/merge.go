package refine

import (
	"strings"

	"github.com/smarttoc/smarttoc/internal/toc"
)

// CandidatesFromTree flattens the current heading forest into the
// candidate list sent out for re-scoring. Labels are stripped of the
// ambiguity prefix so the provider sees the verbatim source text.
func CandidatesFromTree(nodes []*toc.Node) []Candidate {
	flat := toc.Flatten(nodes)
	candidates := make([]Candidate, 0, len(flat))
	for _, n := range flat {
		candidates = append(candidates, Candidate{
			Text:                n.SourceText(),
			Page:                n.Page,
			HeuristicConfidence: n.Confidence,
			HeuristicLevel:      n.Level,
		})
	}
	return candidates
}

// MergeTree folds accepted refinements back into the forest by
// (page, text) identity and returns a new forest:
//
//   - is_heading=false removes the node and its subtree entirely;
//   - otherwise confidence and level are updated in place and the
//     ambiguity status is recomputed against unknownThreshold, which
//     may promote or demote a node;
//   - nodes with no matching refinement keep their heuristic values;
//   - user_confirmed nodes are exempt: an explicit human judgement is
//     never overridden by a machine pass.
//
// Refined levels never re-run hierarchy assembly; the tree shape is
// only ever changed by explicit user actions.
func MergeTree(nodes []*toc.Node, refinements map[string]Refinement, unknownThreshold float64) []*toc.Node {
	return mergeLevel(toc.Clone(nodes), refinements, unknownThreshold)
}

func mergeLevel(nodes []*toc.Node, refinements map[string]Refinement, unknownThreshold float64) []*toc.Node {
	var merged []*toc.Node
	for _, n := range nodes {
		if n.Status != toc.StatusUserConfirmed {
			if ref, ok := refinements[Key(n.Page, n.SourceText())]; ok {
				if !ref.IsHeading {
					continue // drop the node with its subtree
				}
				n.Confidence = ref.Confidence
				n.Level = ref.Level
				reclassify(n, unknownThreshold)
			}
		}
		n.Children = mergeLevel(n.Children, refinements, unknownThreshold)
		merged = append(merged, n)
	}
	return merged
}

// reclassify applies the same ambiguity rule as the extraction pass to
// a node's refreshed confidence, keeping the label prefix in sync.
func reclassify(n *toc.Node, unknownThreshold float64) {
	source := n.SourceText()
	if n.Confidence < unknownThreshold {
		n.Status = toc.StatusUnknown
		if !strings.HasPrefix(n.Label, toc.UnknownLabelPrefix) {
			n.Label = toc.UnknownLabelPrefix + source
		}
	} else {
		n.Status = toc.StatusConfirmed
		n.Label = source
	}
}
