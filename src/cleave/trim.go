package cleave

import "chowra/src/ir"

// TrimUseless removes empty blocks with exactly one predecessor and one
// successor edge by splicing their predecessor directly to their
// successor, folding away the fallthrough blocks splitting and motion
// leave behind once no load, store or copy ever landed in them. Grounded
// on original_source/cleave.c's companion trim pass invoked by the `-t`
// flag.
func TrimUseless(fn *ir.Function) int {
	trimmed := 0
	for _, blk := range fn.Blocks {
		if blk == fn.Entry() {
			continue
		}
		if blk.Len() != 0 || len(blk.Preds) != 1 || len(blk.Succs) != 1 {
			continue
		}
		in, out := blk.Preds[0], blk.Succs[0]
		in.Succ = out.Succ
		out.Succ.Preds = replacePred(out.Succ.Preds, out, in)
		blk.Preds, blk.Succs = nil, nil
		trimmed++
	}
	return trimmed
}

func replacePred(preds []*ir.Edge, old, with *ir.Edge) []*ir.Edge {
	out := make([]*ir.Edge, 0, len(preds))
	for _, p := range preds {
		if p == old {
			out = append(out, with)
		} else {
			out = append(out, p)
		}
	}
	return out
}
