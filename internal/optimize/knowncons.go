package optimize

import "github.com/pearProgrammr/mil-tools/internal/mil"

// Known-constructor specialisation. When a fact identifies a call or
// closure argument as a particular DataAlloc, a specialised callee is
// derived whose parameters are the remaining unknown arguments plus
// the fields of the eliminated allocators. The derived body rebuilds
// the allocators first, so the original code sees the same values.
// Derived definitions are cached on the original, keyed by the
// pattern of known constructors; a request where every argument is
// unknown declines.

// callPattern inspects the arguments and splits them into the known
// constructor pattern and field vectors.
func callPattern(as []mil.Atom, facts Facts) (pat []*mil.Cfun, fields [][]mil.Atom, any bool) {
	pat = make([]*mil.Cfun, len(as))
	fields = make([][]mil.Atom, len(as))
	for i, a := range as {
		if alloc := facts.factAlloc(a); alloc != nil {
			pat[i] = alloc.C
			fields[i] = alloc.As
			any = true
		}
	}
	return pat, fields, any
}

// specialisedArgs builds the argument list for a derived callee:
// unknown arguments in order, then the fields of each known argument.
func specialisedArgs(as []mil.Atom, pat []*mil.Cfun, fields [][]mil.Atom) []mil.Atom {
	out := make([]mil.Atom, 0, len(as))
	for i, a := range as {
		if pat[i] == nil {
			out = append(out, a)
		}
	}
	for i := range as {
		if pat[i] != nil {
			out = append(out, fields[i]...)
		}
	}
	return out
}

func (o *Optimizer) specialiseBlockCall(b *mil.Block, as []mil.Atom, facts Facts) (mil.Tail, bool) {
	if len(as) != len(b.Params) {
		return nil, false
	}
	pat, fields, any := callPattern(as, facts)
	if !any {
		return nil, false
	}
	derived := b.FindDerived(pat)
	if derived == nil {
		derived = o.deriveBlock(b, pat, fields)
		b.AddDerived(pat, derived)
	}
	return &mil.BlockCall{B: derived, As: specialisedArgs(as, pat, fields)}, true
}

// deriveBlock builds the specialised block: unknown parameters first,
// then fresh field parameters per known argument; the body rebuilds
// the eliminated allocators and continues with a renamed copy of the
// original body.
func (o *Optimizer) deriveBlock(b *mil.Block, pat []*mil.Cfun, fields [][]mil.Atom) *mil.Block {
	var params []*mil.Temp
	var s *mil.TempSubst

	for i, p := range b.Params {
		if pat[i] == nil {
			np := o.Ctx.FreshTempLike(p)
			params = append(params, np)
			s = s.Extend(p, np)
		}
	}

	type rebuild struct {
		orig   *mil.Temp
		c      *mil.Cfun
		fields []*mil.Temp
	}
	var rebuilds []rebuild
	for i, p := range b.Params {
		if pat[i] == nil {
			continue
		}
		fts := make([]*mil.Temp, len(fields[i]))
		for j := range fields[i] {
			if ft, ok := fields[i][j].(*mil.Temp); ok {
				fts[j] = o.Ctx.FreshTempLike(ft)
			} else {
				fts[j] = o.Ctx.FreshTemp(nil)
			}
		}
		params = append(params, fts...)
		rebuilt := o.Ctx.FreshTempLike(p)
		s = s.Extend(p, rebuilt)
		rebuilds = append(rebuilds, rebuild{orig: rebuilt, c: pat[i], fields: fts})
	}

	body := mil.CopyCode(o.Ctx, b.Body, s)
	for i := len(rebuilds) - 1; i >= 0; i-- {
		r := rebuilds[i]
		as := make([]mil.Atom, len(r.fields))
		for j, ft := range r.fields {
			as[j] = ft
		}
		body = &mil.Bind{Vs: []*mil.Temp{r.orig}, T: &mil.DataAlloc{C: r.c, As: as}, Rest: body}
	}

	return &mil.Block{Id: o.Ctx.FreshBlockId(), Params: params, Body: body}
}

func (o *Optimizer) specialiseClosAlloc(k *mil.ClosureDefn, as []mil.Atom, facts Facts) (mil.Tail, bool) {
	if len(as) != len(k.Params) {
		return nil, false
	}
	pat, fields, any := callPattern(as, facts)
	if !any {
		return nil, false
	}
	derived := k.FindDerived(pat)
	if derived == nil {
		derived = o.deriveClosure(k, pat, fields)
		k.AddDerived(pat, derived)
	}
	return &mil.ClosAlloc{K: derived, As: specialisedArgs(as, pat, fields)}, true
}

// deriveClosure builds the specialised closure definition. The
// derived copy references the original body through a newly minted
// block that rebuilds the eliminated allocators before entering a
// renamed copy of the original tail.
func (o *Optimizer) deriveClosure(k *mil.ClosureDefn, pat []*mil.Cfun, fields [][]mil.Atom) *mil.ClosureDefn {
	var stored []*mil.Temp
	var blockParams []*mil.Temp
	var s *mil.TempSubst

	for i, p := range k.Params {
		if pat[i] == nil {
			np := o.Ctx.FreshTempLike(p)
			stored = append(stored, np)
			bp := o.Ctx.FreshTempLike(p)
			blockParams = append(blockParams, bp)
			s = s.Extend(p, bp)
		}
	}

	type rebuild struct {
		orig   *mil.Temp
		c      *mil.Cfun
		fields []*mil.Temp
	}
	var rebuilds []rebuild
	for i, p := range k.Params {
		if pat[i] == nil {
			continue
		}
		storedFts := make([]*mil.Temp, len(fields[i]))
		blockFts := make([]*mil.Temp, len(fields[i]))
		for j := range fields[i] {
			if ft, ok := fields[i][j].(*mil.Temp); ok {
				storedFts[j] = o.Ctx.FreshTempLike(ft)
				blockFts[j] = o.Ctx.FreshTempLike(ft)
			} else {
				storedFts[j] = o.Ctx.FreshTemp(nil)
				blockFts[j] = o.Ctx.FreshTemp(nil)
			}
		}
		stored = append(stored, storedFts...)
		blockParams = append(blockParams, blockFts...)
		rebuilt := o.Ctx.FreshTempLike(p)
		s = s.Extend(p, rebuilt)
		rebuilds = append(rebuilds, rebuild{orig: rebuilt, c: pat[i], fields: blockFts})
	}

	args := make([]*mil.Temp, len(k.Args))
	argParams := make([]*mil.Temp, len(k.Args))
	for i, a := range k.Args {
		args[i] = o.Ctx.FreshTempLike(a)
		argParams[i] = o.Ctx.FreshTempLike(a)
		s = s.Extend(a, argParams[i])
	}

	body := mil.Code(&mil.Done{T: k.Tail.Subst(s)})
	for i := len(rebuilds) - 1; i >= 0; i-- {
		r := rebuilds[i]
		fas := make([]mil.Atom, len(r.fields))
		for j, ft := range r.fields {
			fas[j] = ft
		}
		body = &mil.Bind{Vs: []*mil.Temp{r.orig}, T: &mil.DataAlloc{C: r.c, As: fas}, Rest: body}
	}
	block := &mil.Block{
		Id:     o.Ctx.FreshBlockId(),
		Params: append(append([]*mil.Temp{}, blockParams...), argParams...),
		Body:   body,
	}

	callAs := make([]mil.Atom, 0, len(stored)+len(args))
	for _, t := range stored {
		callAs = append(callAs, t)
	}
	for _, t := range args {
		callAs = append(callAs, t)
	}

	var alloc = k.Alloc
	if alloc != nil {
		keep := make([]bool, len(k.Params))
		for i := range k.Params {
			keep[i] = pat[i] == nil
		}
		// Field components of eliminated allocators are appended
		// untyped; the declared layout keeps only surviving stored
		// slots, matching the parameter rewrite.
		alloc = alloc.SelectStored(keep)
	}

	return &mil.ClosureDefn{
		Id:     o.Ctx.FreshClosureId(),
		Params: stored,
		Args:   args,
		Tail:   &mil.BlockCall{B: block, As: callAs},
		Alloc:  alloc,
	}
}
