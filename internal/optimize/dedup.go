package optimize

import "github.com/pearProgrammr/mil-tools/internal/mil"

// Duplicate coalescing. Definitions are grouped by summary; within a
// bucket, alpha-equivalent definitions merge. The first (in
// declaration order) survives; later blocks become forwarders to it,
// later top-levels re-export its components, and references to merged
// closure definitions are redirected program-wide.

// DedupPass scans definitions in declaration order and merges
// alpha-equivalent ones.
func (o *Optimizer) DedupPass(p *mil.Program) {
	blocks := make(map[uint32][]*mil.Block)
	tops := make(map[uint32][]*mil.TopLevel)
	closures := make(map[uint32][]*mil.ClosureDefn)
	closRepl := make(map[*mil.ClosureDefn]*mil.ClosureDefn)

	for _, d := range p.Defns {
		switch d := d.(type) {
		case *mil.Block:
			h := d.Summary()
			merged := false
			for _, keep := range blocks[h] {
				if keep != d && d.AlphaDefn(keep) && !isForwarder(d, keep) {
					as := make([]mil.Atom, len(d.Params))
					for i, pm := range d.Params {
						as[i] = pm
					}
					d.Body = &mil.Done{T: &mil.BlockCall{B: keep, As: as}}
					o.note()
					merged = true
					break
				}
			}
			if !merged {
				blocks[h] = append(blocks[h], d)
			}

		case *mil.TopLevel:
			h := d.Summary()
			merged := false
			for _, keep := range tops[h] {
				if keep != d && d.AlphaDefn(keep) && !isReexport(d, keep) {
					as := make([]mil.Atom, len(d.Lhs))
					for i := range d.Lhs {
						as[i] = &mil.TopDef{Top: keep, Index: i}
					}
					d.T = &mil.Return{As: as}
					d.IsStatic = keep.IsStatic
					o.note()
					merged = true
					break
				}
			}
			if !merged {
				tops[h] = append(tops[h], d)
			}

		case *mil.ClosureDefn:
			h := d.Summary()
			merged := false
			for _, keep := range closures[h] {
				if keep != d && d.AlphaDefn(keep) {
					closRepl[d] = keep
					merged = true
					break
				}
			}
			if !merged {
				closures[h] = append(closures[h], d)
			}
		}
	}

	if len(closRepl) > 0 {
		o.note()
		eachTail(p, func(t mil.Tail) mil.Tail {
			if ca, ok := t.(*mil.ClosAlloc); ok {
				if keep, ok := closRepl[ca.K]; ok {
					return &mil.ClosAlloc{K: keep, As: ca.As}
				}
			}
			return t
		})
	}
}

// isForwarder reports whether d already just forwards to keep,
// so re-merging would loop the change flag forever.
func isForwarder(d, keep *mil.Block) bool {
	done, ok := d.Body.(*mil.Done)
	if !ok {
		return false
	}
	bc, ok := done.T.(*mil.BlockCall)
	return ok && bc.B == keep
}

func isReexport(d, keep *mil.TopLevel) bool {
	ret, ok := d.T.(*mil.Return)
	if !ok || len(ret.As) == 0 {
		return false
	}
	td, ok := ret.As[0].(*mil.TopDef)
	return ok && td.Top == keep
}
