package optimize

import "github.com/pearProgrammr/mil-tools/internal/mil"

// inlineNodeBudget is the body-size threshold under which a callee is
// always worth expanding; larger bodies inline only for single-use
// callees.
const inlineNodeBudget = 16

// InlinePass performs prefix inlining (a BlockCall on the right-hand
// side of a bind) and suffix inlining (a tail-position BlockCall),
// expanding renamed copies of non-recursive callees.
func (o *Optimizer) InlinePass(p *mil.Program) {
	callers := countCallers(p)
	eachBody(p, func(c mil.Code) mil.Code {
		// A body that is nothing but a forwarding call stays as it is:
		// dedup mints such bodies deliberately, and callers inline
		// through them anyway.
		if d, ok := c.(*mil.Done); ok {
			if _, ok := d.T.(*mil.BlockCall); ok {
				return c
			}
		}
		return o.inlineCode(c, callers)
	})
}

func (o *Optimizer) inlineCode(c mil.Code, callers map[*mil.Block]int) mil.Code {
	switch c := c.(type) {
	case *mil.Bind:
		rest := o.inlineCode(c.Rest, callers)
		if bc, ok := c.T.(*mil.BlockCall); ok && o.shouldInline(bc.B, callers) {
			if inlined, ok := o.prefixInline(bc, c.Vs, rest); ok {
				o.note()
				return inlined
			}
		}
		return &mil.Bind{Vs: c.Vs, T: c.T, Rest: rest}

	case *mil.Done:
		if bc, ok := c.T.(*mil.BlockCall); ok && o.shouldInline(bc.B, callers) {
			o.note()
			var s *mil.TempSubst
			s = s.ExtendAll(bc.B.Params, bc.As)
			return mil.CopyCode(o.Ctx, bc.B.Body, s)
		}
		return c
	}
	return c
}

func (o *Optimizer) shouldInline(b *mil.Block, callers map[*mil.Block]int) bool {
	if guarded(b) {
		return false
	}
	return nodeCount(b.Body) <= inlineNodeBudget || callers[b] == 1
}

// prefixInline splices a renamed copy of the callee before the bind's
// continuation. Only linear bodies (bind chains ending in Done) can
// be spliced; a body ending in Return substitutes the yielded atoms
// directly, any other final tail keeps the bind.
func (o *Optimizer) prefixInline(bc *mil.BlockCall, vs []*mil.Temp, rest mil.Code) (mil.Code, bool) {
	if !linearCode(bc.B.Body) {
		return nil, false
	}
	var s *mil.TempSubst
	s = s.ExtendAll(bc.B.Params, bc.As)
	renamed := mil.CopyCode(o.Ctx, bc.B.Body, s)
	return spliceOnto(renamed, vs, rest), true
}

func linearCode(c mil.Code) bool {
	for {
		switch cc := c.(type) {
		case *mil.Bind:
			c = cc.Rest
		case *mil.Done:
			return true
		default:
			return false
		}
	}
}

func spliceOnto(c mil.Code, vs []*mil.Temp, rest mil.Code) mil.Code {
	switch c := c.(type) {
	case *mil.Bind:
		return &mil.Bind{Vs: c.Vs, T: c.T, Rest: spliceOnto(c.Rest, vs, rest)}
	case *mil.Done:
		if ret, ok := c.T.(*mil.Return); ok && len(ret.As) == len(vs) {
			var s *mil.TempSubst
			for i, v := range vs {
				if !v.IsWildcard() {
					s = s.Extend(v, ret.As[i])
				}
			}
			return mil.SubstCode(rest, s)
		}
		return &mil.Bind{Vs: vs, T: c.T, Rest: rest}
	}
	return c
}

// guarded reports whether a path of block calls (tail calls, calls
// bound in a Bind, Case alternatives and If branches) leads from b's
// entry back to b itself; such loops disqualify the block from
// inlining.
func guarded(b *mil.Block) bool {
	visited := make(map[*mil.Block]bool)
	var visit func(c mil.Code) bool
	var visitBlock func(t *mil.Block) bool

	visitBlock = func(t *mil.Block) bool {
		if t == b {
			return true
		}
		if visited[t] {
			return false
		}
		visited[t] = true
		return visit(t.Body)
	}

	visit = func(c mil.Code) bool {
		switch c := c.(type) {
		case *mil.Bind:
			if bc, ok := c.T.(*mil.BlockCall); ok && visitBlock(bc.B) {
				return true
			}
			return visit(c.Rest)
		case *mil.Done:
			if bc, ok := c.T.(*mil.BlockCall); ok {
				return visitBlock(bc.B)
			}
		case *mil.Case:
			for _, alt := range c.Alts {
				if visitBlock(alt.B) {
					return true
				}
			}
			if c.Def != nil {
				return visitBlock(c.Def.B)
			}
		case *mil.If:
			return visitBlock(c.T.B) || visitBlock(c.F.B)
		}
		return false
	}
	return visit(b.Body)
}

// nodeCount measures a body for the inline budget: every code node
// and every operand counts one.
func nodeCount(c mil.Code) int {
	switch c := c.(type) {
	case *mil.Bind:
		return 1 + tailSize(c.T) + nodeCount(c.Rest)
	case *mil.Done:
		return 1 + tailSize(c.T)
	case *mil.Case:
		return 1 + 2*len(c.Alts)
	case *mil.If:
		return 3
	}
	return 1
}

func tailSize(t mil.Tail) int {
	switch t := t.(type) {
	case *mil.Return:
		return len(t.As)
	case *mil.Enter:
		return 1 + len(t.As)
	case *mil.BlockCall:
		return 1 + len(t.As)
	case *mil.PrimCall:
		return 1 + len(t.As)
	case *mil.Sel:
		return 2
	case *mil.DataAlloc:
		return 1 + len(t.As)
	case *mil.ClosAlloc:
		return 1 + len(t.As)
	}
	return 1
}

// countCallers counts BlockCall references per block across the whole
// program.
func countCallers(p *mil.Program) map[*mil.Block]int {
	counts := make(map[*mil.Block]int)
	count := func(t mil.Tail) mil.Tail {
		if bc, ok := t.(*mil.BlockCall); ok {
			counts[bc.B]++
		}
		return t
	}
	eachTail(p, count)
	// Case alternatives transfer control without a BlockCall node.
	for _, d := range p.Defns {
		if b, ok := d.(*mil.Block); ok {
			countAltCallers(b.Body, counts)
		}
	}
	return counts
}

func countAltCallers(c mil.Code, counts map[*mil.Block]int) {
	switch c := c.(type) {
	case *mil.Bind:
		countAltCallers(c.Rest, counts)
	case *mil.Case:
		for _, alt := range c.Alts {
			counts[alt.B]++
		}
	}
}
