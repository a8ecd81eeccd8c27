// Package unionfind implements disjoint-set union-find with path compression and
// union-by-rank, grounded on original_source/union_find.cc's UFSet/UFSet_Find/
// UFSet_Union trio. The allocator core uses it to collapse phi-connected SSA names
// into the live ranges interference.Build constructs.
package unionfind

// set is one disjoint-set node, identified by the SSA tag it was created for.
type set struct {
	id     int
	parent *set
	rank   int
}

// Forest is a collection of disjoint sets, one per SSA tag in [0, n).
type Forest struct {
	sets []*set
}

// New returns a Forest with n singleton sets, one per tag 0..n-1.
func New(n int) *Forest {
	f := &Forest{sets: make([]*set, n)}
	for i := range f.sets {
		f.sets[i] = &set{id: i}
	}
	return f
}

// Find returns the canonical representative tag of the set containing v, compressing
// the path from v to the root as it walks up.
func (f *Forest) Find(v int) int {
	return f.find(f.sets[v]).id
}

func (f *Forest) find(s *set) *set {
	root := s
	for root.parent != nil {
		root = root.parent
	}
	for s != root {
		next := s.parent
		s.parent = root
		s = next
	}
	return root
}

// Union merges the sets containing a and b and returns the tag of the resulting
// representative. A no-op, returning the shared representative, if a and b are
// already in the same set.
func (f *Forest) Union(a, b int) int {
	s1 := f.find(f.sets[a])
	s2 := f.find(f.sets[b])
	if s1 == s2 {
		return s1.id
	}
	var top *set
	switch {
	case s1.rank > s2.rank:
		s2.parent = s1
		top = s1
	case s1.rank < s2.rank:
		s1.parent = s2
		top = s2
	default:
		s1.parent = s2
		s2.rank++
		top = s2
	}
	return top.id
}

// Same reports whether a and b belong to the same set.
func (f *Forest) Same(a, b int) bool {
	return f.find(f.sets[a]) == f.find(f.sets[b])
}
