package lr

// PriorityFunc computes one live unit's contribution to its live range's priority,
// grounded on original_source/live_range.cc's LiveUnit_ComputePriority. The five
// strategy variants (classic, no-normal, square-normal, gnu, gnu-square-normal) the
// allocator core selects between all implement this same signature; concrete
// implementations live in package alloc so lr stays independent of coloring policy.
type PriorityFunc func(u *LiveUnit, depth int, loadLoopDepth int) float64
