package toc

import "fmt"

// Tree mutations are pure: every operation returns a fresh forest and
// leaves its input untouched, so a caller can still read the previous
// snapshot (for audit descriptions) after computing the next one.
// Mutations on an unknown id are no-ops, not errors; the caller may
// race a delete against a stale reference.

// Clone returns a deep copy of a forest.
func Clone(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	cloned := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		c := *n
		c.Children = Clone(n.Children)
		cloned = append(cloned, &c)
	}
	return cloned
}

// Find returns the first node matching id in depth-first order, or nil.
func Find(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
		if found := Find(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// Flatten returns all nodes of a forest in pre-order.
func Flatten(nodes []*Node) []*Node {
	var flat []*Node
	var walk func(ns []*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			flat = append(flat, n)
			walk(n.Children)
		}
	}
	walk(nodes)
	return flat
}

// Count returns the total number of nodes in a forest.
func Count(nodes []*Node) int {
	return len(Flatten(nodes))
}

// EditLabel replaces the label of the node matching id.
func EditLabel(nodes []*Node, id, label string) []*Node {
	next := Clone(nodes)
	if n := Find(next, id); n != nil {
		n.Label = label
	}
	return next
}

// Delete removes the node matching id together with its entire
// subtree. Children are not reparented or promoted.
func Delete(nodes []*Node, id string) []*Node {
	var filtered []*Node
	for _, n := range nodes {
		if n.ID == id {
			continue
		}
		c := *n
		c.Children = Delete(n.Children, id)
		filtered = append(filtered, &c)
	}
	return filtered
}

// Confirm promotes the node matching id to user_confirmed. Confirmation
// is a manual override and is not gated on the current status; the
// confidence score is left untouched.
func Confirm(nodes []*Node, id string) []*Node {
	next := Clone(nodes)
	if n := Find(next, id); n != nil {
		n.Status = StatusUserConfirmed
	}
	return next
}

// Reorder replaces the immediate children of the parent matching
// parentID (the root level when parentID is empty) with a permutation
// of themselves in the given order. The ids must be exactly the
// existing children set; reorder never adds or removes nodes.
func Reorder(nodes []*Node, parentID string, orderedIDs []string) ([]*Node, error) {
	next := Clone(nodes)

	if parentID == "" {
		reordered, err := permute(next, orderedIDs)
		if err != nil {
			return nil, err
		}
		return reordered, nil
	}

	parent := Find(next, parentID)
	if parent == nil {
		return nil, fmt.Errorf("parent node not found: %s", parentID)
	}
	reordered, err := permute(parent.Children, orderedIDs)
	if err != nil {
		return nil, err
	}
	parent.Children = reordered
	return next, nil
}

// permute rearranges siblings into the given id order, rejecting any
// order that is not an exact permutation of the existing set.
func permute(siblings []*Node, orderedIDs []string) ([]*Node, error) {
	if len(orderedIDs) != len(siblings) {
		return nil, fmt.Errorf("reorder expects %d ids, got %d", len(siblings), len(orderedIDs))
	}

	byID := make(map[string]*Node, len(siblings))
	for _, n := range siblings {
		byID[n.ID] = n
	}

	reordered := make([]*Node, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		n, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("id %s is not among the existing siblings", id)
		}
		delete(byID, id)
		reordered = append(reordered, n)
	}
	return reordered, nil
}

// AddChild inserts a node as the last child of the parent matching
// parentID, or as the last root when parentID is empty. Unlike the
// other mutations a missing parent is an error: the caller named a
// destination that does not exist.
func AddChild(nodes []*Node, parentID string, child *Node) ([]*Node, error) {
	next := Clone(nodes)

	if parentID == "" {
		return append(next, child), nil
	}

	parent := Find(next, parentID)
	if parent == nil {
		return nil, fmt.Errorf("parent node not found: %s", parentID)
	}
	parent.Children = append(parent.Children, child)
	return next, nil
}
