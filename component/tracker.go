// Package component implements C5: the per-block table of connected
// Components, each rooted at a deepest AmrVertexId, together with the
// disjoint-set forest used to track re-keying as components merge across
// exchange rounds (§3 "Component (per block, per round)", §4.5).
package component

import (
	"sort"

	"github.com/katalvlaran/amrtree/edges"
	"github.com/katalvlaran/amrtree/mergetree"
	"github.com/katalvlaran/amrtree/vertex"
)

// Component is the per-block record for one connected component, keyed at
// any instant by its current deepest vertex (its disjoint-set root).
type Component struct {
	CurrentNeighbors   map[int]bool
	ProcessedNeighbors map[int]bool
	OutgoingEdges      map[int][]edges.Edge
}

func newComponent() *Component {
	return &Component{
		CurrentNeighbors:   make(map[int]bool),
		ProcessedNeighbors: make(map[int]bool),
		OutgoingEdges:      make(map[int][]edges.Edge),
	}
}

// Done reports current_neighbors ⊆ processed_neighbors (§4.6 termination).
func (c *Component) Done() bool {
	for gid := range c.CurrentNeighbors {
		if !c.ProcessedNeighbors[gid] {
			return false
		}
	}
	return true
}

// Tracker is a block's disjoint-set forest over component roots
// (components_disjoint_set_parent / components_disjoint_set_size) plus the
// live Component record at each current root.
type Tracker struct {
	parent     map[vertex.ID]vertex.ID
	size       map[vertex.ID]int
	components map[vertex.ID]*Component
}

// NewTracker returns an empty component tracker.
func NewTracker() *Tracker {
	return &Tracker{
		parent:     make(map[vertex.ID]vertex.ID),
		size:       make(map[vertex.ID]int),
		components: make(map[vertex.ID]*Component),
	}
}

// Ensure registers root as a singleton component if it is not already
// known, and returns its current (possibly path-compressed) representative.
func (t *Tracker) Ensure(root vertex.ID) vertex.ID {
	if _, ok := t.parent[root]; !ok {
		t.parent[root] = root
		t.size[root] = 1
		t.components[root] = newComponent()
	}
	return t.Find(root)
}

// Find returns the current representative of id's component, compressing
// the path as it walks.
func (t *Tracker) Find(id vertex.ID) vertex.ID {
	root, ok := t.parent[id]
	if !ok {
		return id
	}
	if root == id {
		return id
	}
	final := t.Find(root)
	t.parent[id] = final
	return final
}

// Component returns the live Component record for id's current root, or nil
// if id is not tracked.
func (t *Tracker) Component(id vertex.ID) *Component {
	return t.components[t.Find(id)]
}

// Union merges loser's component into survivor's, re-keying the disjoint
// set so survivor becomes (or remains) the representative of both. Callers
// in C6 decide which side is the semantic survivor (the deeper vertex under
// the active polarity, per the tree merge that triggered this union); this
// deliberately does not union purely by size, since the representative
// carries meaning (the component's deepest vertex) that balance cannot
// override. Returns survivor's representative.
func (t *Tracker) Union(survivor, loser vertex.ID) vertex.ID {
	rs := t.Ensure(survivor)
	rl := t.Ensure(loser)
	if rs == rl {
		return rs
	}

	cs := t.components[rs]
	cl := t.components[rl]

	for gid := range cl.CurrentNeighbors {
		cs.CurrentNeighbors[gid] = true
	}
	for gid := range cl.ProcessedNeighbors {
		cs.ProcessedNeighbors[gid] = true
	}
	for gid, es := range cl.OutgoingEdges {
		cs.OutgoingEdges[gid] = append(cs.OutgoingEdges[gid], es...)
	}

	t.parent[rl] = rs
	t.size[rs] += t.size[rl]
	delete(t.components, rl)

	return rs
}

// MarkProcessed records that id's component has now heard back from gid.
func (t *Tracker) MarkProcessed(id vertex.ID, gid int) {
	if c := t.Component(id); c != nil {
		c.ProcessedNeighbors[gid] = true
	}
}

// Roots returns every live component root, sorted for deterministic
// iteration (ordering & edge cases, §4.6).
func (t *Tracker) Roots() []vertex.ID {
	roots := make([]vertex.ID, 0, len(t.components))
	for r := range t.components {
		roots = append(roots, r)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Less(roots[j]) })
	return roots
}

// AllDone reports whether every tracked component has current_neighbors ⊆
// processed_neighbors — the per-block half of the global termination test.
func (t *Tracker) AllDone() bool {
	for _, c := range t.components {
		if !c.Done() {
			return false
		}
	}
	return true
}

// RestoreEntry is the full persisted state of one component, keyed by its
// root vertex at snapshot time.
type RestoreEntry struct {
	Root               vertex.ID
	CurrentNeighbors   map[int]bool
	ProcessedNeighbors map[int]bool
	OutgoingEdges      map[int][]edges.Edge
}

// RestoreTracker rebuilds a Tracker from a full snapshot of its components,
// bypassing FormComponents' edge-derived reconstruction. Each entry becomes
// exactly the component it was when snapshotted — current_neighbors,
// processed_neighbors and outgoing_edges all round-trip verbatim, unlike
// re-deriving from the initial edge map, which only knows current_neighbors
// as they stood before any exchange round ran.
func RestoreTracker(entries []RestoreEntry) *Tracker {
	t := NewTracker()
	for _, e := range entries {
		t.parent[e.Root] = e.Root
		t.size[e.Root] = 1
		t.components[e.Root] = &Component{
			CurrentNeighbors:   copyBoolSet(e.CurrentNeighbors),
			ProcessedNeighbors: copyBoolSet(e.ProcessedNeighbors),
			OutgoingEdges:      copyEdgeMap(e.OutgoingEdges),
		}
	}
	return t
}

func copyBoolSet(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyEdgeMap(m map[int][]edges.Edge) map[int][]edges.Edge {
	out := make(map[int][]edges.Edge, len(m))
	for k, v := range m {
		out[k] = append([]edges.Edge(nil), v...)
	}
	return out
}

// FormComponents builds the initial per-block component table from a local
// tree and its outgoing-edge map (gid_to_outgoing_edges from C4): every
// deepest vertex reached by at least one outgoing edge becomes a component
// root, sharing a root with every other edge whose "from" endpoint sits in
// the same local-tree subtree (§4.5).
func FormComponents(tree *mergetree.Tree, edgesByGID map[int][]edges.Edge) *Tracker {
	t := NewTracker()

	for gid, edgeList := range edgesByGID {
		for _, e := range edgeList {
			deepest := tree.Root(e.From)
			root := t.Ensure(deepest)
			c := t.components[root]
			c.CurrentNeighbors[gid] = true
			c.OutgoingEdges[gid] = append(c.OutgoingEdges[gid], e)
		}
	}

	return t
}
