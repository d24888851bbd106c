package types

// BitPat describes which bit patterns are legal values of a type, as
// an ordered binary decision diagram over bit positions, most
// significant bit first.
type BitPat interface {
	Width() int
	// Accepts tests a concrete value against the pattern; only the low
	// Width bits of v are consulted.
	Accepts(v uint64) bool
}

// PatAll accepts every pattern of the given width.
type PatAll struct {
	W int
}

func (p PatAll) Width() int            { return p.W }
func (p PatAll) Accepts(v uint64) bool { return true }

// PatNone rejects every pattern of the given width.
type PatNone struct {
	W int
}

func (p PatNone) Width() int            { return p.W }
func (p PatNone) Accepts(v uint64) bool { return false }

// PatSplit branches on the most significant remaining bit.
type PatSplit struct {
	Hi BitPat
	Lo BitPat
}

func (p PatSplit) Width() int { return p.Lo.Width() + 1 }
func (p PatSplit) Accepts(v uint64) bool {
	w := p.Lo.Width()
	if v&(1<<uint(w)) != 0 {
		return p.Hi.Accepts(v)
	}
	return p.Lo.Accepts(v)
}

// BitPatOf computes the legal-pattern diagram for a type, or false
// when the type has no bit-level representation.
func BitPatOf(t Type, env *TyconEnv) (BitPat, bool) {
	head, args := Spine(t)
	if s := synonymHead(head); s != nil {
		if expanded, ok := s.Expand(args); ok {
			return BitPatOf(expanded, env)
		}
	}
	switch h := head.(type) {
	case *TCon:
		switch con := h.Con.(type) {
		case *PrimCon:
			switch con {
			case env.BitCon:
				if n, ok := natArg(args, 0); ok {
					return PatAll{W: int(n)}, true
				}
			case env.IxCon:
				if n, ok := natArg(args, 0); ok {
					return lessPat(int(ixBits(n)), n), true
				}
			case env.WordCon:
				return PatAll{W: int(env.WordBits)}, true
			case env.FlagCon:
				return PatAll{W: 1}, true
			}
		case *TupleCon:
			pat := BitPat(PatAll{W: 0})
			for i := len(args) - 1; i >= 0; i-- {
				p, ok := BitPatOf(args[i], env)
				if !ok {
					return nil, false
				}
				pat = concatPat(p, pat)
			}
			return pat, true
		}
	}
	return nil, false
}

// lessPat accepts the w-bit patterns whose value is strictly below
// bound.
func lessPat(w int, bound uint64) BitPat {
	if w == 0 {
		if bound > 0 {
			return PatAll{W: 0}
		}
		return PatNone{W: 0}
	}
	half := uint64(1) << uint(w-1)
	if bound >= half {
		// Low half fully legal; high half carries the remainder.
		return PatSplit{Hi: lessPat(w-1, bound-half), Lo: PatAll{W: w - 1}}
	}
	return PatSplit{Hi: PatNone{W: w - 1}, Lo: lessPat(w-1, bound)}
}

// concatPat appends q below every accepting leaf of p. Shared
// subtrees keep the result linear in the widths.
func concatPat(p, q BitPat) BitPat {
	switch p := p.(type) {
	case PatNone:
		return PatNone{W: p.W + q.Width()}
	case PatAll:
		if p.W == 0 {
			return q
		}
		below := concatPat(PatAll{W: p.W - 1}, q)
		return PatSplit{Hi: below, Lo: below}
	case PatSplit:
		return PatSplit{Hi: concatPat(p.Hi, q), Lo: concatPat(p.Lo, q)}
	}
	return q
}
