package field

// Grid is a dense scalar sample of a field over a Box3. It is a read-only
// view for the lifetime of local-tree construction and outgoing-edge
// detection (§9 Ownership); callers that need to retain it for integral
// computation (C7) keep their own reference.
type Grid struct {
	Bounds Box3
	Values []float64
}

// NewGrid allocates a Grid of zeros over bounds.
func NewGrid(bounds Box3) *Grid {
	return &Grid{Bounds: bounds, Values: make([]float64, bounds.Size())}
}

// Get returns the value at cell p, which must lie within Bounds: a p
// outside Bounds either panics or, when its LocalIndex still falls inside
// Values, reads some other cell, following the teacher's convention that
// out-of-range access is a programmer error, not a runtime condition to
// recover from.
func (g *Grid) Get(p [3]int) float64 {
	return g.Values[g.Bounds.LocalIndex(p)]
}

// Set stores the value at cell p.
func (g *Grid) Set(p [3]int, v float64) {
	g.Values[g.Bounds.LocalIndex(p)] = v
}

// GetIndex returns the value at a precomputed index into Values (the index
// this Grid's own Bounds.LocalIndex assigns), avoiding a coordinate
// round-trip.
func (g *Grid) GetIndex(idx int64) float64 {
	return g.Values[idx]
}
