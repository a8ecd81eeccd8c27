package ir

import "github.com/bits-and-blooms/bitset"

// Block is one basic block of the control-flow graph: a sequence of instructions
// with a single entry and single exit, wired to the rest of the graph through Preds
// and Succs. LiveIn/LiveOut/Depth are consumed, not computed, here - produced by the
// external liveness and loop-nesting analyses the allocator core assumes upstream.
type Block struct {
	ID    int
	Name  string // Assembler label, e.g. the function entry block's name.
	Preds []*Edge
	Succs []*Edge
	Phis  []*Phi

	insts instList

	Preorder int // Index in the procedure's preorder traversal; used for tie-breaking.
	Depth    int // Loop nesting depth, consumed by the loop-depth-weighted priority function.

	LiveIn  *bitset.BitSet // Bitset over Variable tags, live on entry to the block.
	LiveOut *bitset.BitSet // Bitset over Variable tags, live on exit from the block.

	synthetic bool // True for blocks the spiller inserts on a split edge.
}

// NewBlock returns an empty block with id as its identity.
func NewBlock(id int, name string) *Block {
	b := &Block{ID: id, Name: name, insts: newInstList()}
	b.insts.owner = b
	b.insts.sentinel.next = &b.insts.sentinel
	b.insts.sentinel.prev = &b.insts.sentinel
	return b
}

// Synthetic reports whether b was inserted by edge splitting rather than present in
// the input program.
func (b *Block) Synthetic() bool { return b.synthetic }

// First returns the block's first instruction, or nil if empty.
func (b *Block) First() *Inst { return b.insts.First() }

// Last returns the block's last instruction, or nil if empty.
func (b *Block) Last() *Inst { return b.insts.Last() }

// Len returns the number of instructions in b.
func (b *Block) Len() int { return b.insts.Len() }

// Append adds op as a new instruction at the end of b and returns it.
func (b *Block) Append(op *Operation) *Inst { return b.insts.PushBack(op) }

// Prepend adds op as a new instruction at the start of b and returns it.
func (b *Block) Prepend(op *Operation) *Inst { return b.insts.PushFront(op) }

// InsertBefore inserts op immediately before mark.
func (b *Block) InsertBefore(op *Operation, mark *Inst) *Inst {
	return b.insts.InsertBefore(op, mark)
}

// InsertAfter inserts op immediately after mark.
func (b *Block) InsertAfter(op *Operation, mark *Inst) *Inst {
	return b.insts.InsertAfter(op, mark)
}

// Remove deletes i from b.
func (b *Block) Remove(i *Inst) { b.insts.Remove(i) }

// Each calls fn for every instruction in b, in program order.
func (b *Block) Each(fn func(*Inst)) { b.insts.Each(fn) }

// EachReverse calls fn for every instruction in b, in reverse program order.
func (b *Block) EachReverse(fn func(*Inst)) { b.insts.EachReverse(fn) }

// Terminator returns the block's last real instruction if it is a branch, else nil.
func (b *Block) Terminator() *Inst {
	last := b.Last()
	if last != nil && last.Op.Op.IsBranch() {
		return last
	}
	return nil
}

// IsLoopHeader reports whether any predecessor edge is a back edge into b, i.e. its
// predecessor's preorder index is not smaller than b's own - the standard preorder
// test for a natural loop header.
func (b *Block) IsLoopHeader() bool {
	for _, e := range b.Preds {
		if e.Pred.Preorder >= b.Preorder {
			return true
		}
	}
	return false
}

// SplitEdge inserts a new, empty synthetic block in the middle of e and returns it.
// The new block's sole instruction list is left for the caller (the spiller) to
// populate with the moved loads, stores or copies.
func SplitEdge(e *Edge, newID int, label string) *Block {
	nb := NewBlock(newID, label)
	nb.synthetic = true
	pred, succ := e.Pred, e.Succ
	e.Succ.Preds = removeEdge(succ.Preds, e)
	e.Succ = nb
	nb.Preds = append(nb.Preds, e)
	AddEdge(nb, succ)
	_ = pred
	return nb
}
