package ir

// Edge connects two blocks in the control-flow graph. It is held by pointer on both
// endpoints' Preds/Succs slices, so splitting an edge only needs to retarget the two
// slice entries that reference it, grounded on original_source/SSA.h's
// doubly-referenced edge representation.
type Edge struct {
	Pred, Succ *Block
	id         int // Stable identity, used by reach and interference as a bitset index.
}

// ID returns a stable, dense index for e suitable for use as a bitset position.
func (e *Edge) ID() int { return e.id }

// AddEdge creates an edge from pred to succ and appends it to both blocks' adjacency
// lists.
func AddEdge(pred, succ *Block) *Edge {
	e := &Edge{Pred: pred, Succ: succ}
	pred.Succs = append(pred.Succs, e)
	succ.Preds = append(succ.Preds, e)
	return e
}

// RemoveEdge deletes e from both endpoints' adjacency lists.
func RemoveEdge(e *Edge) {
	e.Pred.Succs = removeEdge(e.Pred.Succs, e)
	e.Succ.Preds = removeEdge(e.Succ.Preds, e)
}

func removeEdge(s []*Edge, e *Edge) []*Edge {
	for i, x := range s {
		if x == e {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// Retarget rewires e's successor endpoint from its current block to nb, used when a
// split inserts a new block in the middle of e.
func (e *Edge) Retarget(nb *Block) {
	e.Succ.Preds = removeEdge(e.Succ.Preds, e)
	e.Succ = nb
	nb.Preds = append(nb.Preds, e)
}
