package mil

// CopyCode builds an alpha-fresh copy of a code sequence: bound temps
// are renamed through ctx and the substitution is threaded to every
// leaf. The incoming substitution carries parameter-to-argument
// replacements from the call site being expanded.
func CopyCode(ctx *Context, c Code, s *TempSubst) Code {
	switch c := c.(type) {
	case *Bind:
		tail := c.T.Subst(s)
		vs := make([]*Temp, len(c.Vs))
		for i, v := range c.Vs {
			vs[i] = ctx.FreshTempLike(v)
			if !v.IsWildcard() {
				s = s.Extend(v, vs[i])
			}
		}
		return &Bind{Vs: vs, T: tail, Rest: CopyCode(ctx, c.Rest, s)}
	case *Done:
		return &Done{T: c.T.Subst(s)}
	case *Case:
		var def *BlockCall
		if c.Def != nil {
			def = c.Def.Subst(s).(*BlockCall)
		}
		alts := make([]Alt, len(c.Alts))
		copy(alts, c.Alts)
		return &Case{A: s.Apply(c.A), Alts: alts, Def: def}
	case *If:
		return &If{
			A: s.Apply(c.A),
			T: c.T.Subst(s).(*BlockCall),
			F: c.F.Subst(s).(*BlockCall),
		}
	}
	return c
}

// SubstCode rebuilds a code sequence with the substitution applied at
// every leaf, keeping bound temps intact. The substitution domain
// must be disjoint from the temps bound inside c.
func SubstCode(c Code, s *TempSubst) Code {
	switch c := c.(type) {
	case *Bind:
		return &Bind{Vs: c.Vs, T: c.T.Subst(s), Rest: SubstCode(c.Rest, s)}
	case *Done:
		return &Done{T: c.T.Subst(s)}
	case *Case:
		var def *BlockCall
		if c.Def != nil {
			def = c.Def.Subst(s).(*BlockCall)
		}
		return &Case{A: s.Apply(c.A), Alts: c.Alts, Def: def}
	case *If:
		return &If{A: s.Apply(c.A), T: c.T.Subst(s).(*BlockCall), F: c.F.Subst(s).(*BlockCall)}
	}
	return c
}

// MapTails rebuilds a code sequence with f applied to every tail,
// including the block calls inside Case defaults and If branches.
func MapTails(c Code, f func(Tail) Tail) Code {
	mapCall := func(bc *BlockCall) *BlockCall {
		if bc == nil {
			return nil
		}
		if out, ok := f(bc).(*BlockCall); ok {
			return out
		}
		return bc
	}
	switch c := c.(type) {
	case *Bind:
		return &Bind{Vs: c.Vs, T: f(c.T), Rest: MapTails(c.Rest, f)}
	case *Done:
		return &Done{T: f(c.T)}
	case *Case:
		return &Case{A: c.A, Alts: c.Alts, Def: mapCall(c.Def)}
	case *If:
		return &If{A: c.A, T: mapCall(c.T), F: mapCall(c.F)}
	}
	return c
}
