package mergetree

import "github.com/katalvlaran/amrtree/vertex"

// Pair is a (from, through, to) persistence triple: a node, the saddle it
// merged through, and the root it merged into (§4.7).
type Pair struct {
	From    vertex.ID
	Through vertex.ID
	To      vertex.ID
}

// Persistence returns one Pair per node whose own saddle is non-trivial
// (it was the losing side of a real Union); non-root pass-through nodes,
// whose saddle is themselves, have no Pair. Roots (unpaired extrema) are
// not included here; callers emit
// them separately as infinite rays (§4.7).
func (t *Tree) Persistence() []Pair {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var pairs []Pair
	for id := range t.value {
		if t.saddle[id] == id {
			continue // root or pass-through with no merge event
		}
		pairs = append(pairs, Pair{From: id, Through: t.saddle[id], To: t.rootOf(id)})
	}
	return pairs
}

// Roots returns every current root (component representative) in the
// tree.
func (t *Tree) Roots() []vertex.ID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var roots []vertex.ID
	for id := range t.value {
		if t.parent[id] == id {
			roots = append(roots, id)
		}
	}
	return roots
}

// rootOf is Root without taking the lock or compressing, for callers
// already holding t.mu.
func (t *Tree) rootOf(id vertex.ID) vertex.ID {
	root := id
	for t.parent[root] != root {
		root = t.parent[root]
	}
	return root
}
