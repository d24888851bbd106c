package optimize

import "github.com/pearProgrammr/mil-tools/internal/mil"

// Facts maps a temp to the repeatable, non-self-referential tail that
// produced it. Facts thread downward through bind chains; a fact is
// safe to consult anywhere below its bind because repeatable tails
// have no effects and temps are never rebound.
type Facts map[*mil.Temp]mil.Tail

// factAlloc resolves an atom to the DataAlloc that produced it, if
// the fact set (or a static top-level) knows one.
func (f Facts) factAlloc(a mil.Atom) *mil.DataAlloc {
	switch a := a.(type) {
	case *mil.Temp:
		if t, ok := f[a].(*mil.DataAlloc); ok {
			return t
		}
	case *mil.TopDef:
		if a.Top.IsStatic {
			if t, ok := a.Top.T.(*mil.DataAlloc); ok {
				return t
			}
		}
	}
	return nil
}

// factClos resolves an atom to the ClosAlloc that produced it.
func (f Facts) factClos(a mil.Atom) *mil.ClosAlloc {
	switch a := a.(type) {
	case *mil.Temp:
		if t, ok := f[a].(*mil.ClosAlloc); ok {
			return t
		}
	case *mil.TopDef:
		if a.Top.IsStatic {
			if t, ok := a.Top.T.(*mil.ClosAlloc); ok {
				return t
			}
		}
	}
	return nil
}

// FlowPass propagates facts through every body, shorting cases,
// enters, and selects whose subject is a known allocator, and
// specialising calls with known-constructor arguments.
func (o *Optimizer) FlowPass(p *mil.Program) {
	for _, d := range p.Defns {
		switch d := d.(type) {
		case *mil.Block:
			d.Body = o.flowCode(d.Body, Facts{})
		case *mil.ClosureDefn:
			d.Tail = o.flowTail(d.Tail, Facts{})
		case *mil.TopLevel:
			d.T = o.flowTail(d.T, Facts{})
		}
	}
}

func (o *Optimizer) flowCode(c mil.Code, facts Facts) mil.Code {
	switch c := c.(type) {
	case *mil.Bind:
		t := o.flowTail(c.T, facts)

		// A bind of a Return is pure renaming: substitute the yielded
		// atoms for the bound temps and drop the bind.
		if ret, ok := t.(*mil.Return); ok && len(ret.As) == len(c.Vs) {
			var s *mil.TempSubst
			for i, v := range c.Vs {
				if !v.IsWildcard() {
					s = s.Extend(v, ret.As[i])
				}
			}
			o.note()
			return o.flowCode(mil.SubstCode(c.Rest, s), facts)
		}

		// Dead binding of an effect-free tail.
		if t.IsPure() && deadBind(c.Vs, c.Rest) {
			o.note()
			return o.flowCode(c.Rest, facts)
		}

		if len(c.Vs) == 1 && !c.Vs[0].IsWildcard() && t.IsRepeatable() && !selfRef(c.Vs[0], t) {
			facts[c.Vs[0]] = t
		}
		return &mil.Bind{Vs: c.Vs, T: t, Rest: o.flowCode(c.Rest, facts)}

	case *mil.Done:
		return &mil.Done{T: o.flowTail(c.T, facts)}

	case *mil.Case:
		// Case shorting: a scrutinee with a DataAlloc fact selects its
		// alternative at compile time, passing the allocator's fields.
		if alloc := facts.factAlloc(c.A); alloc != nil {
			for _, alt := range c.Alts {
				if alt.C == alloc.C {
					o.note()
					return &mil.Done{T: &mil.BlockCall{B: alt.B, As: alloc.As}}
				}
			}
			if c.Def != nil {
				o.note()
				return &mil.Done{T: o.flowTail(c.Def, facts)}
			}
		}
		return c

	case *mil.If:
		if w, ok := c.A.(*mil.Word); ok {
			o.note()
			if w.Val != 0 {
				return &mil.Done{T: o.flowTail(c.T, facts)}
			}
			return &mil.Done{T: o.flowTail(c.F, facts)}
		}
		if t, ok := c.A.(*mil.Temp); ok {
			if ret, ok := facts[t].(*mil.Return); ok && len(ret.As) == 1 {
				if w, ok := ret.As[0].(*mil.Word); ok {
					o.note()
					if w.Val != 0 {
						return &mil.Done{T: o.flowTail(c.T, facts)}
					}
					return &mil.Done{T: o.flowTail(c.F, facts)}
				}
			}
		}
		return c
	}
	return c
}

func (o *Optimizer) flowTail(t mil.Tail, facts Facts) mil.Tail {
	switch t := t.(type) {
	case *mil.Enter:
		// Entering a known closure expands to the callee's tail with
		// stored and supplied arguments substituted.
		if alloc := facts.factClos(t.F); alloc != nil {
			k := alloc.K
			if len(alloc.As) == len(k.Params) && len(t.As) == len(k.Args) {
				var s *mil.TempSubst
				s = s.ExtendAll(k.Params, alloc.As)
				s = s.ExtendAll(k.Args, t.As)
				o.note()
				return o.flowTail(k.Tail.Subst(s), facts)
			}
		}
		return t

	case *mil.Sel:
		if alloc := facts.factAlloc(t.A); alloc != nil && alloc.C == t.C && t.N < len(alloc.As) {
			o.note()
			return &mil.Return{As: []mil.Atom{alloc.As[t.N]}}
		}
		return t

	case *mil.BlockCall:
		if out, ok := o.specialiseBlockCall(t.B, t.As, facts); ok {
			o.note()
			return out
		}
		return t

	case *mil.ClosAlloc:
		if out, ok := o.specialiseClosAlloc(t.K, t.As, facts); ok {
			o.note()
			return out
		}
		return t
	}
	return t
}

// deadBind reports whether none of the bound temps are read below.
func deadBind(vs []*mil.Temp, rest mil.Code) bool {
	used := mil.TempSet{}
	rest.UsedVars(used)
	for _, v := range vs {
		if !v.IsWildcard() && used.Has(v) {
			return false
		}
	}
	return true
}

// selfRef reports whether the tail reads the temp it would define.
func selfRef(v *mil.Temp, t mil.Tail) bool {
	vs := mil.TempSet{}
	t.UsedVars(vs)
	return vs.Has(v)
}
