package mergetree

import "github.com/katalvlaran/amrtree/vertex"

// Sparsify drops every degree-2 interior node: one whose own saddle is
// trivial (it was never the losing side of a Union, so it carries no
// persistence information) and which is not the root of its component,
// not marked special, and not recorded as any other node's saddle (§4.3).
// Dropping such a node is always safe here, because Union/Root only ever
// reference a node's *current root*, path compression guarantees a
// pass-through node is never anyone's recorded root or parent target, and
// every saddle Persistence reports stays in the tree.
//
// Callers that need the pre-sparsification tree for output (original_tree)
// must Clone before calling Sparsify.
func (t *Tree) Sparsify() {
	t.mu.Lock()
	defer t.mu.Unlock()

	isSaddle := make(map[vertex.ID]bool)
	for id, s := range t.saddle {
		if s != id {
			isSaddle[s] = true
		}
	}

	for id := range t.value {
		if isSaddle[id] { // where branches meet: not degree-2, keep
			continue
		}
		if t.saddle[id] != id { // was the losing side of a real merge: keep
			continue
		}
		if t.parent[id] == id { // root: keep
			continue
		}
		if t.special[id] { // outgoing-edge endpoint: keep
			continue
		}
		delete(t.value, id)
		delete(t.saddle, id)
		delete(t.parent, id)
	}
}
