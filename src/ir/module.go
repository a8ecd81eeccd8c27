package ir

// Module is the whole compilation unit handed to the allocator: an independent set
// of Functions, each processed by its own goroutine in the pipeline's per-procedure
// fan-out.
type Module struct {
	Functions []*Function
}

// NewModule returns an empty Module.
func NewModule() *Module { return &Module{} }

// AddFunction appends fn to the module.
func (m *Module) AddFunction(fn *Function) { m.Functions = append(m.Functions, fn) }
