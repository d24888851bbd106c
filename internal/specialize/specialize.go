// Package specialize monomorphises a MIL program. Driven by the
// entry points and their declared monomorphic types, it walks the
// reachable definitions and, for each polymorphic callee, emits a
// fresh copy instantiated at the call-site types. Instances are
// memoised on (original, canonical instantiated type).
package specialize

import (
	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Entry names an entry point and its declared type. The type must be
// monomorphic; a polymorphic entry point is an error.
type Entry struct {
	Name string
	Type types.Type
}

type instKey struct {
	orig mil.Defn
	ty   types.Type // canonical
}

// Specializer carries the instance memo of one run.
type Specializer struct {
	Ctx  *mil.Context
	TEnv *types.TyconEnv
	TSet *types.TypeSet

	memo map[instKey]mil.Defn
}

func New(ctx *mil.Context, tenv *types.TyconEnv, tset *types.TypeSet) *Specializer {
	return &Specializer{Ctx: ctx, TEnv: tenv, TSet: tset, memo: make(map[instKey]mil.Defn)}
}

// Run specialises the program for the given entry points and returns
// the root definitions for emission. The program's definition list is
// narrowed to the live set.
func (s *Specializer) Run(p *mil.Program, entries []Entry) ([]mil.Defn, error) {
	var roots []mil.Defn
	for _, e := range entries {
		d := p.FindDefn(e.Name)
		if d == nil {
			return nil, diagnostics.NewFailure(diagnostics.ErrScope, diagnostics.Pos{},
				"entry point %s is not defined", e.Name)
		}
		if e.Type != nil && len(types.UnboundVars(e.Type, nil)) > 0 {
			return nil, diagnostics.NewFailure(diagnostics.ErrPolyEntrypoint, diagnostics.Pos{},
				"entry point %s has a polymorphic type %s", e.Name, e.Type)
		}
		root, err := s.entryInstance(d, e)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}

	// Specialise call sites inside every root, transitively.
	seen := make(map[mil.Defn]bool)
	var walk func(d mil.Defn)
	walk = func(d mil.Defn) {
		if seen[d] {
			return
		}
		seen[d] = true
		s.rewriteDefn(d)
		for _, dep := range d.Deps() {
			walk(dep)
		}
	}
	for _, r := range roots {
		walk(r)
	}

	p.Defns = p.LiveDefns(roots)
	return roots, nil
}

// entryInstance resolves the instance of an entry definition at its
// declared type. Monomorphic definitions are used as-is; a
// polymorphic definition without a declared entry type is an error.
func (s *Specializer) entryInstance(d mil.Defn, e Entry) (mil.Defn, error) {
	scheme := schemeOf(d)
	if scheme == nil || scheme.IsMonomorphic() {
		return d, nil
	}
	if e.Type == nil {
		return nil, diagnostics.NewFailure(diagnostics.ErrPolyEntrypoint, diagnostics.Pos{},
			"entry point %s has the polymorphic type %s and no declared instantiation", e.Name, scheme)
	}
	fresh := make([]*types.TVar, len(scheme.Kinds))
	vmap := make(map[*types.TVar]types.Type, len(scheme.Kinds))
	args := make([]types.Type, len(scheme.Kinds))
	for i, k := range scheme.Kinds {
		fresh[i] = s.Ctx.FreshTVar(k)
		args[i] = fresh[i]
	}
	body, err := scheme.InstantiateWith(args)
	if err != nil {
		return nil, err
	}
	if err := types.Match(body, e.Type); err != nil {
		return nil, diagnostics.NewFailure(diagnostics.ErrTypeMismatch, diagnostics.Pos{},
			"entry point %s: declared type %s does not instantiate %s", e.Name, e.Type, scheme)
	}
	for i, g := range scheme.Gens {
		vmap[g] = types.Resolve(fresh[i])
	}
	return s.instance(d, vmap), nil
}

// instance returns the memoised monomorphic copy of d at the given
// variable instantiation.
func (s *Specializer) instance(d mil.Defn, vmap map[*types.TVar]types.Type) mil.Defn {
	scheme := schemeOf(d)
	key := instKey{orig: d, ty: s.canonInst(scheme, vmap)}
	if inst, ok := s.memo[key]; ok {
		return inst
	}
	var inst mil.Defn
	switch d := d.(type) {
	case *mil.Block:
		inst = s.blockInstance(d, vmap)
	case *mil.TopLevel:
		inst = s.topInstance(d, vmap)
	default:
		inst = d
	}
	s.memo[key] = inst
	return inst
}

// canonInst keys the memo by the canonical instantiated scheme body.
func (s *Specializer) canonInst(scheme *types.Scheme, vmap map[*types.TVar]types.Type) types.Type {
	if scheme == nil {
		return nil
	}
	return s.TSet.Canon(types.ApplyVars(bodyWithGens(scheme), vmap))
}

// bodyWithGens rebuilds the scheme body over the original variables,
// so ApplyVars can substitute the instantiation.
func bodyWithGens(scheme *types.Scheme) types.Type {
	args := make([]types.Type, len(scheme.Gens))
	for i, g := range scheme.Gens {
		args[i] = g
	}
	t, err := scheme.InstantiateWith(args)
	if err != nil {
		return scheme.Body
	}
	return t
}

func (s *Specializer) blockInstance(b *mil.Block, vmap map[*types.TVar]types.Type) *mil.Block {
	var sub *mil.TempSubst
	params := make([]*mil.Temp, len(b.Params))
	for i, pm := range b.Params {
		params[i] = s.Ctx.FreshTempLike(pm)
		params[i].TypeVal = types.ApplyVars(pm.TypeVal, vmap)
		sub = sub.Extend(pm, params[i])
	}
	body := mil.CopyCode(s.Ctx, b.Body, sub)
	retypeCode(body, vmap)
	inst := &mil.Block{Id: s.Ctx.FreshBlockId(), Params: params, Body: body}
	if b.Scheme != nil {
		inst.Scheme = types.MonoScheme(types.ApplyVars(bodyWithGens(b.Scheme), vmap))
	}
	return inst
}

func (s *Specializer) topInstance(t *mil.TopLevel, vmap map[*types.TVar]types.Type) *mil.TopLevel {
	inst := &mil.TopLevel{
		Lhs:      append([]string(nil), t.Lhs...),
		T:        t.T.Subst(nil),
		IsStatic: t.IsStatic,
	}
	inst.Lhs[0] = inst.Lhs[0] + "$" + s.Ctx.FreshTopId()
	if t.Scheme != nil {
		inst.Scheme = types.MonoScheme(types.ApplyVars(bodyWithGens(t.Scheme), vmap))
	}
	return inst
}

// retypeCode applies the type instantiation to the temps bound inside
// a freshly copied body. The copies are unshared, so mutating their
// types is safe.
func retypeCode(c mil.Code, vmap map[*types.TVar]types.Type) {
	switch c := c.(type) {
	case *mil.Bind:
		for _, v := range c.Vs {
			if v.TypeVal != nil {
				v.TypeVal = types.ApplyVars(v.TypeVal, vmap)
			}
		}
		retypeCode(c.Rest, vmap)
	}
}

// rewriteDefn retargets polymorphic call sites inside d to memoised
// monomorphic instances.
func (s *Specializer) rewriteDefn(d mil.Defn) {
	retarget := func(t mil.Tail) mil.Tail {
		if bc, ok := t.(*mil.BlockCall); ok {
			if inst, ok := s.calleeInstance(bc.B, bc.As); ok {
				return &mil.BlockCall{B: inst, As: bc.As}
			}
		}
		return t
	}
	switch d := d.(type) {
	case *mil.Block:
		d.Body = mil.MapTails(d.Body, retarget)
	case *mil.ClosureDefn:
		d.Tail = retarget(d.Tail)
	case *mil.TopLevel:
		d.T = retarget(d.T)
	}
}

// calleeInstance determines the instantiation of a polymorphic callee
// from the call-site argument types and returns its instance. It
// declines when the instantiation cannot be fully determined.
func (s *Specializer) calleeInstance(b *mil.Block, as []mil.Atom) (*mil.Block, bool) {
	if b.Scheme == nil || b.Scheme.IsMonomorphic() || len(as) != len(b.Params) {
		return nil, false
	}
	fresh := make(map[*types.TVar]types.Type, len(b.Scheme.Gens))
	fv := make([]*types.TVar, len(b.Scheme.Gens))
	for i, g := range b.Scheme.Gens {
		fv[i] = s.Ctx.FreshTVar(b.Scheme.Kinds[i])
		fresh[g] = fv[i]
	}
	for i, pm := range b.Params {
		at := atomTypeOf(as[i])
		if at == nil || pm.TypeVal == nil {
			continue
		}
		generic := types.ApplyVars(pm.TypeVal, fresh)
		if err := types.Match(generic, at); err != nil {
			return nil, false
		}
	}
	vmap := make(map[*types.TVar]types.Type, len(fv))
	for i, g := range b.Scheme.Gens {
		r := types.Resolve(fv[i])
		if _, unbound := r.(*types.TVar); unbound {
			return nil, false
		}
		vmap[g] = r
	}
	inst := s.instance(b, vmap)
	ib, ok := inst.(*mil.Block)
	if !ok {
		return nil, false
	}
	s.rewriteDefn(ib)
	return ib, true
}

func atomTypeOf(a mil.Atom) types.Type {
	if t, ok := a.(*mil.Temp); ok {
		return t.TypeVal
	}
	return nil
}

func schemeOf(d mil.Defn) *types.Scheme {
	switch d := d.(type) {
	case *mil.Block:
		return d.Scheme
	case *mil.TopLevel:
		return d.Scheme
	}
	return nil
}
