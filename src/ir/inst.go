package ir

// Inst wraps one Operation in a circular, doubly linked list threaded through its
// owning Block - mirroring original_source/SSA.h's Inst struct, whose instructions
// form a ring anchored at the block's sentinel so insertion before/after any
// instruction, including the first and last, needs no special case.
type Inst struct {
	Op    *Operation
	next  *Inst
	prev  *Inst
	block *Block

	Label string // Non-empty only for the first real Inst of a block that is a branch target.
}

// Block returns the block i belongs to.
func (i *Inst) Block() *Block { return i.block }

// Next returns the instruction following in following order, or nil at the block's
// sentinel boundary.
func (i *Inst) Next() *Inst {
	if i.next != nil && i.next.Op == nil {
		return nil
	}
	return i.next
}

// Prev returns the instruction preceding i, or nil at the block's sentinel boundary.
func (i *Inst) Prev() *Inst {
	if i.prev != nil && i.prev.Op == nil {
		return nil
	}
	return i.prev
}

// instList is the circular list anchor embedded in Block. The sentinel node (Op ==
// nil) is never visited by Next/Prev and never visible outside this package.
type instList struct {
	sentinel Inst
	n        int
	owner    *Block
}

func newInstList() instList {
	l := instList{}
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
	return l
}

// First returns the first real instruction, or nil if the list is empty.
func (l *instList) First() *Inst {
	if l.sentinel.next == &l.sentinel {
		return nil
	}
	return l.sentinel.next
}

// Last returns the last real instruction, or nil if the list is empty.
func (l *instList) Last() *Inst {
	if l.sentinel.prev == &l.sentinel {
		return nil
	}
	return l.sentinel.prev
}

// Len returns the number of real instructions.
func (l *instList) Len() int { return l.n }

// PushBack appends op as a new Inst at the end of the list and returns it.
func (l *instList) PushBack(op *Operation) *Inst {
	return l.insertBefore(op, &l.sentinel)
}

// PushFront prepends op as a new Inst at the start of the list and returns it.
func (l *instList) PushFront(op *Operation) *Inst {
	return l.insertBefore(op, l.sentinel.next)
}

// InsertBefore inserts op immediately before mark and returns the new Inst.
func (l *instList) InsertBefore(op *Operation, mark *Inst) *Inst {
	return l.insertBefore(op, mark)
}

// InsertAfter inserts op immediately after mark and returns the new Inst.
func (l *instList) InsertAfter(op *Operation, mark *Inst) *Inst {
	return l.insertBefore(op, mark.next)
}

func (l *instList) insertBefore(op *Operation, mark *Inst) *Inst {
	n := &Inst{Op: op, next: mark, prev: mark.prev, block: l.owner}
	mark.prev.next = n
	mark.prev = n
	l.n++
	return n
}

// Remove unlinks i from the list. i must belong to l.
func (l *instList) Remove(i *Inst) {
	i.prev.next = i.next
	i.next.prev = i.prev
	i.next, i.prev = nil, nil
	l.n--
}

// Each calls fn for every real instruction in list order.
func (l *instList) Each(fn func(*Inst)) {
	for i := l.sentinel.next; i != &l.sentinel; i = i.next {
		fn(i)
	}
}

// EachReverse calls fn for every real instruction in reverse list order.
func (l *instList) EachReverse(fn func(*Inst)) {
	for i := l.sentinel.prev; i != &l.sentinel; i = i.prev {
		fn(i)
	}
}
