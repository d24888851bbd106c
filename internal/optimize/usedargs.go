package optimize

import "github.com/pearProgrammr/mil-tools/internal/mil"

// Unused-argument elimination. For each Block and ClosureDefn the
// pass computes a usedArgs bitmap: a parameter is used when it occurs
// free in the body and is not a later duplicate of an earlier
// parameter. The analysis runs to fixpoint across definitions because
// a caller's free-variable set depends on its callees' bitmaps.
// Afterwards parameter lists and every call site are rewritten in
// lockstep, and a closure's declared layout is filtered through the
// same bitmap.

// UsedArgsPass runs the analysis and, when any parameter turned out
// unused, the rewrite. Blocks that serve as Case alternative targets
// are exempt: they are invoked implicitly with every constructor
// field, so their parameter lists cannot shrink.
func (o *Optimizer) UsedArgsPass(p *mil.Program) {
	exempt := altTargets(p)
	for changed := true; changed; {
		changed = false
		for _, d := range p.Defns {
			switch d := d.(type) {
			case *mil.Block:
				if exempt[d] {
					continue
				}
				vs := mil.TempSet{}
				d.Body.UsedVars(vs)
				used, n := usedBitmap(d.Params, vs)
				if !sameBitmap(d.UsedArgs, used) {
					d.UsedArgs, d.NumUsed = used, n
					changed = true
				}
			case *mil.ClosureDefn:
				vs := mil.TempSet{}
				d.Tail.UsedVars(vs)
				used, n := usedBitmap(d.Params, vs)
				if !sameBitmap(d.UsedArgs, used) {
					d.UsedArgs, d.NumUsed = used, n
					changed = true
				}
			}
		}
	}

	needRewrite := false
	for _, d := range p.Defns {
		switch d := d.(type) {
		case *mil.Block:
			if d.UsedArgs != nil && d.NumUsed < len(d.Params) {
				needRewrite = true
			}
		case *mil.ClosureDefn:
			if d.UsedArgs != nil && d.NumUsed < len(d.Params) {
				needRewrite = true
			}
		}
	}
	if needRewrite {
		o.note()
		rewriteUsedArgs(p)
	}
}

// altTargets collects the blocks reached implicitly through Case
// alternatives anywhere in the program.
func altTargets(p *mil.Program) map[*mil.Block]bool {
	targets := make(map[*mil.Block]bool)
	var scan func(c mil.Code)
	scan = func(c mil.Code) {
		switch c := c.(type) {
		case *mil.Bind:
			scan(c.Rest)
		case *mil.Case:
			for _, alt := range c.Alts {
				targets[alt.B] = true
			}
		}
	}
	for _, d := range p.Defns {
		if b, ok := d.(*mil.Block); ok {
			scan(b.Body)
		}
	}
	return targets
}

// usedBitmap marks each parameter that the body reads, dropping later
// duplicates of an earlier parameter.
func usedBitmap(params []*mil.Temp, free mil.TempSet) ([]bool, int) {
	used := make([]bool, len(params))
	n := 0
	for i, pm := range params {
		if pm.IsWildcard() || !free.Has(pm) {
			continue
		}
		dup := false
		for j := 0; j < i; j++ {
			if params[j] == pm {
				dup = true
				break
			}
		}
		if !dup {
			used[i] = true
			n++
		}
	}
	return used, n
}

func sameBitmap(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rewriteUsedArgs drops unused positions from every parameter list
// and every caller's argument list, then clears the bitmaps.
func rewriteUsedArgs(p *mil.Program) {
	// Callers first: the filter consults the callee bitmaps, which
	// must still describe the old parameter lists.
	eachTail(p, func(t mil.Tail) mil.Tail {
		switch t := t.(type) {
		case *mil.BlockCall:
			if t.B.UsedArgs != nil && t.B.NumUsed < len(t.As) {
				return &mil.BlockCall{B: t.B, As: filterAtoms(t.As, t.B.UsedArgs)}
			}
		case *mil.ClosAlloc:
			if t.K.UsedArgs != nil && t.K.NumUsed < len(t.As) {
				return &mil.ClosAlloc{K: t.K, As: filterAtoms(t.As, t.K.UsedArgs)}
			}
		}
		return t
	})

	for _, d := range p.Defns {
		switch d := d.(type) {
		case *mil.Block:
			if d.UsedArgs != nil && d.NumUsed < len(d.Params) {
				d.Params = filterTemps(d.Params, d.UsedArgs)
			}
			d.UsedArgs, d.NumUsed = nil, len(d.Params)
		case *mil.ClosureDefn:
			if d.UsedArgs != nil && d.NumUsed < len(d.Params) {
				if d.Alloc != nil {
					d.Alloc = d.Alloc.SelectStored(d.UsedArgs)
				}
				d.Params = filterTemps(d.Params, d.UsedArgs)
			}
			d.UsedArgs, d.NumUsed = nil, len(d.Params)
		}
	}
}

func filterAtoms(as []mil.Atom, keep []bool) []mil.Atom {
	out := make([]mil.Atom, 0, len(as))
	for i, a := range as {
		if i < len(keep) && keep[i] {
			out = append(out, a)
		}
	}
	return out
}

func filterTemps(ts []*mil.Temp, keep []bool) []*mil.Temp {
	out := make([]*mil.Temp, 0, len(ts))
	for i, t := range ts {
		if i < len(keep) && keep[i] {
			out = append(out, t)
		}
	}
	return out
}
