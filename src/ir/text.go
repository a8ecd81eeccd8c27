package ir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse and WriteTo implement the small line-oriented textual form the allocator
// reads and rewrites iloc in. Control-flow transfer is carried by explicit "succ"
// lines rather than branch-operand targets, so the CFG survives a round trip even
// after the spiller inserts new synthetic blocks with fresh, unparsed labels.
//
// function <name>
// frame %<n> <initial-size>
// block <label>
//   succ <label> [<label>]
//   phi %<n> = phi(%<a>, %<b>, ...)
//   %<n> = <opcode> [<const>...] [%<use>...]
//   <opcode> [<const>...] [%<use>...]        (no def, e.g. store/branch/call)

var mnemonics = map[string]Opcode{
	"nop": OpNop, "add": OpAdd, "sub": OpSub, "mult": OpMult, "div": OpDiv,
	"loadI": OpLdi, "loadAI": OpLoadAI, "loadAO": OpLoadAO,
	"storeAI": OpStoreAI, "storeAO": OpStoreAO,
	"i2i": OpI2I, "f2f": OpF2F, "d2d": OpD2D, "comp": OpCmp,
	"cbr": OpCBR, "jumpI": OpJump, "jumpr": OpJumpR, "frame": OpFrame,
	"iJSR": OpJSR, "iJSRarg": OpIJSR, "fJSR": OpFJSR, "dJSR": OpDJSR,
	"cJSR": OpCJSR, "qJSR": OpQJSR, "ret": OpRet,
}

// Parse reads a Module from the small textual form documented above.
func Parse(r io.Reader) (*Module, error) {
	m := NewModule()
	sc := bufio.NewScanner(r)

	var fn *Function
	var blk *Block
	blocksByName := map[string]*Block{}
	type pendingSucc struct {
		from  *Block
		names []string
	}
	var succs []pendingSucc
	maxName := map[*Function]Variable{}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch {
		case fields[0] == "function":
			fn = NewFunction(fields[1])
			m.AddFunction(fn)
			blocksByName = map[string]*Block{}
		case fields[0] == "frame":
			if fn == nil {
				return nil, fmt.Errorf("ir: frame line outside function")
			}
			v, err := parseVar(fields[1])
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, err
			}
			fn.Frame = NewFrame(v, n, 4)
		case fields[0] == "block":
			if fn == nil {
				return nil, fmt.Errorf("ir: block line outside function")
			}
			blk = NewBlock(len(fn.Blocks), fields[1])
			fn.AddBlock(blk)
			blocksByName[fields[1]] = blk
		case fields[0] == "succ":
			if blk == nil {
				return nil, fmt.Errorf("ir: succ line outside block")
			}
			succs = append(succs, pendingSucc{from: blk, names: fields[1:]})
		case fields[0] == "phi":
			if blk == nil {
				return nil, fmt.Errorf("ir: phi line outside block")
			}
			phi, err := parsePhi(fields[1:])
			if err != nil {
				return nil, err
			}
			blk.Phis = append(blk.Phis, phi)
			trackMax(maxName, fn, phi.NewName)
			for _, o := range phi.Operands {
				trackMax(maxName, fn, o)
			}
		default:
			if blk == nil {
				return nil, fmt.Errorf("ir: instruction line outside block")
			}
			op, err := parseInst(fields)
			if err != nil {
				return nil, err
			}
			blk.Append(op)
			for _, v := range op.Defs {
				trackMax(maxName, fn, v)
			}
			for _, v := range op.Uses {
				trackMax(maxName, fn, v)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, ps := range succs {
		for _, n := range ps.names {
			to, ok := blocksByName[n]
			if !ok {
				return nil, fmt.Errorf("ir: undefined block label %q", n)
			}
			AddEdge(ps.from, to)
		}
	}
	for _, f := range m.Functions {
		f.nextName = maxName[f] + 1
		for i, e := range allEdges(f) {
			e.id = i
		}
		f.nextEdge = len(allEdges(f))
	}
	return m, nil
}

func allEdges(f *Function) []*Edge {
	var es []*Edge
	seen := map[*Edge]bool{}
	for _, b := range f.Blocks {
		for _, e := range b.Succs {
			if !seen[e] {
				seen[e] = true
				es = append(es, e)
			}
		}
	}
	return es
}

func trackMax(m map[*Function]Variable, f *Function, v Variable) {
	if v > m[f] {
		m[f] = v
	}
}

func parseVar(s string) (Variable, error) {
	s = strings.TrimPrefix(s, "%")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("ir: bad variable %q: %w", s, err)
	}
	return Variable(n), nil
}

func parsePhi(fields []string) (*Phi, error) {
	// %<n> = phi(%<a>, %<b>, ...)
	joined := strings.Join(fields, " ")
	eq := strings.SplitN(joined, "=", 2)
	if len(eq) != 2 {
		return nil, fmt.Errorf("ir: malformed phi %q", joined)
	}
	def, err := parseVar(strings.TrimSpace(eq[0]))
	if err != nil {
		return nil, err
	}
	rhs := strings.TrimSpace(eq[1])
	rhs = strings.TrimPrefix(rhs, "phi(")
	rhs = strings.TrimSuffix(rhs, ")")
	var ops []Variable
	for _, p := range strings.Split(rhs, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := parseVar(p)
		if err != nil {
			return nil, err
		}
		ops = append(ops, v)
	}
	return &Phi{NewName: def, Operands: ops}, nil
}

func parseInst(fields []string) (*Operation, error) {
	var defs []Variable
	if len(fields) >= 2 && fields[1] == "=" {
		d, err := parseVar(fields[0])
		if err != nil {
			return nil, err
		}
		defs = []Variable{d}
		fields = fields[2:]
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("ir: empty instruction")
	}
	op, ok := mnemonics[fields[0]]
	if !ok {
		return nil, fmt.Errorf("ir: unknown opcode %q", fields[0])
	}
	var consts []int
	var uses []Variable
	for _, f := range fields[1:] {
		f = strings.TrimSuffix(f, ",")
		if f == "->" {
			continue
		}
		if strings.HasPrefix(f, "%") {
			v, err := parseVar(f)
			if err != nil {
				return nil, err
			}
			uses = append(uses, v)
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			continue // branch target labels fall through here; CFG comes from "succ" lines.
		}
		consts = append(consts, n)
	}
	return NewOperation(op, consts, uses, defs), nil
}

// WriteTo writes m back out in the same textual form Parse accepts.
func (m *Module) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, fn := range m.Functions {
		writeFunction(bw, fn)
	}
	return bw.Flush()
}

// WriteString renders fn alone in the same textual form Parse accepts,
// used by the allocator's per-procedure output writers (util.Writer) so
// each worker goroutine can flush its own rewritten procedure as soon as
// it finishes, rather than waiting for every other procedure to land
// first.
func (fn *Function) WriteString() string {
	var sb strings.Builder
	bw := bufio.NewWriter(&sb)
	writeFunction(bw, fn)
	bw.Flush()
	return sb.String()
}

func writeFunction(bw *bufio.Writer, fn *Function) {
	fmt.Fprintf(bw, "function %s\n", fn.Name)
	if fn.Frame != nil {
		fmt.Fprintf(bw, "frame %%%d %d\n", fn.Frame.PointerName, fn.Frame.Size)
	}
	for _, b := range fn.Blocks {
		fmt.Fprintf(bw, "block %s\n", blockLabel(b))
		if len(b.Succs) > 0 {
			names := make([]string, len(b.Succs))
			for i, e := range b.Succs {
				names[i] = blockLabel(e.Succ)
			}
			fmt.Fprintf(bw, "  succ %s\n", strings.Join(names, " "))
		}
		for _, p := range b.Phis {
			ops := make([]string, len(p.Operands))
			for i, v := range p.Operands {
				ops[i] = fmt.Sprintf("%%%d", v)
			}
			fmt.Fprintf(bw, "  phi %%%d = phi(%s)\n", p.NewName, strings.Join(ops, ", "))
		}
		b.Each(func(i *Inst) {
			writeInst(bw, i.Op)
		})
	}
}

func blockLabel(b *Block) string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("L%d", b.ID)
}

func writeInst(bw *bufio.Writer, op *Operation) {
	var sb strings.Builder
	if len(op.Defs) == 1 {
		fmt.Fprintf(&sb, "%%%d = ", op.Defs[0])
	}
	sb.WriteString(op.Op.String())
	for _, c := range op.Consts {
		fmt.Fprintf(&sb, " %d", c)
	}
	for _, v := range op.Uses {
		fmt.Fprintf(&sb, " %%%d", v)
	}
	fmt.Fprintf(bw, "  %s\n", sb.String())
}
