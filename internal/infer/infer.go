// Package infer assigns types to the temporaries of a MIL program. A
// skeleton pass gives every untyped temp a fresh variable, a
// unification pass threads the constraints each tail form imposes,
// and generalisation turns the surviving variables of block and
// top-level signatures into quantified schemes.
package infer

import (
	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Inferencer holds the shared state of one inference run.
type Inferencer struct {
	Ctx  *mil.Context
	TEnv *types.TyconEnv
	Sink diagnostics.Sink

	// results caches the inferred result-type vector per block, so
	// mutually recursive calls agree on one signature.
	results map[*mil.Block][]types.Type
}

func New(ctx *mil.Context, tenv *types.TyconEnv, sink diagnostics.Sink) *Inferencer {
	return &Inferencer{Ctx: ctx, TEnv: tenv, Sink: sink, results: make(map[*mil.Block][]types.Type)}
}

// Program infers types for every definition. A definition whose types
// are all explicitly declared recovers from failure (the failure is
// reported and checking continues); otherwise the first failure
// aborts.
func (inf *Inferencer) Program(p *mil.Program) error {
	for _, d := range p.Defns {
		if err := inf.defn(d); err != nil {
			f, ok := err.(*diagnostics.Failure)
			if !ok {
				f = diagnostics.NewFailure(diagnostics.ErrInternal, diagnostics.Pos{}, "%s", err)
			}
			inf.Sink.Report(f)
			if !declaredDefn(d) {
				return f
			}
		}
	}
	return nil
}

func (inf *Inferencer) defn(d mil.Defn) error {
	switch d := d.(type) {
	case *mil.Block:
		if err := inf.scopeCheck(d.DefnId(), d.Body, d.Params); err != nil {
			return err
		}
		inf.skeletonTemps(d.Params)
		rs, err := inf.code(d.Body)
		if err != nil {
			return err
		}
		if d.Scheme == nil {
			d.Scheme = inf.generalizeBlock(d, rs)
		}
		return nil

	case *mil.ClosureDefn:
		inf.skeletonTemps(d.Params)
		inf.skeletonTemps(d.Args)
		vs := mil.TempSet{}
		d.Tail.UsedVars(vs)
		for v := range vs {
			if !inBinding(v, d.Params, d.Args) {
				return diagnostics.NewFailure(diagnostics.ErrScope, diagnostics.Pos{},
					"%s: unbound temporary %s", d.Id, v)
			}
		}
		_, err := inf.tail(d.Tail)
		return err

	case *mil.TopLevel:
		rs, err := inf.tail(d.T)
		if err != nil {
			return err
		}
		if d.Scheme == nil && len(rs) > 0 {
			scheme := types.Generalize(inf.TEnv.TupleOf(rs...))
			d.Scheme = scheme
			inf.warnAmbiguous(d.DefnId(), rs, scheme)
		}
		return nil
	}
	return nil
}

// skeletonTemps gives fresh type variables to untyped temps.
// Wildcards are shared objects and never typed.
func (inf *Inferencer) skeletonTemps(ts []*mil.Temp) {
	for _, t := range ts {
		if t.TypeVal == nil && !t.IsWildcard() {
			t.TypeVal = inf.Ctx.FreshTVar(types.Star)
		}
	}
}

// scopeCheck verifies every free temp of a body is a parameter.
func (inf *Inferencer) scopeCheck(id string, body mil.Code, params []*mil.Temp) error {
	vs := mil.TempSet{}
	body.UsedVars(vs)
	for v := range vs {
		if !inBinding(v, params, nil) {
			return diagnostics.NewFailure(diagnostics.ErrScope, diagnostics.Pos{},
				"%s: unbound temporary %s", id, v)
		}
	}
	return nil
}

func inBinding(v *mil.Temp, as, bs []*mil.Temp) bool {
	for _, p := range as {
		if p == v {
			return true
		}
	}
	for _, p := range bs {
		if p == v {
			return true
		}
	}
	return false
}

// code infers the result-type vector of a code sequence.
func (inf *Inferencer) code(c mil.Code) ([]types.Type, error) {
	switch c := c.(type) {
	case *mil.Bind:
		ts, err := inf.tail(c.T)
		if err != nil {
			return nil, err
		}
		inf.skeletonTemps(c.Vs)
		if len(ts) == len(c.Vs) {
			for i, v := range c.Vs {
				if v.IsWildcard() {
					continue
				}
				if err := inf.unify(v.TypeVal, ts[i]); err != nil {
					return nil, err
				}
			}
		}
		return inf.code(c.Rest)

	case *mil.Done:
		return inf.tail(c.T)

	case *mil.Case:
		var rs []types.Type
		for _, alt := range c.Alts {
			inf.skeletonTemps(alt.B.Params)
			if alt.C.Alloc != nil && len(alt.B.Params) == alt.C.Arity {
				stored, result, err := inf.instAlloc(alt.C.Alloc)
				if err != nil {
					return nil, err
				}
				if err := inf.unifyAtom(c.A, result); err != nil {
					return nil, err
				}
				for i, pm := range alt.B.Params {
					if err := inf.unify(pm.TypeVal, stored[i]); err != nil {
						return nil, err
					}
				}
			}
			if rs == nil {
				rs = inf.blockResults(alt.B)
			}
		}
		if c.Def != nil {
			ts, err := inf.tail(c.Def)
			if err != nil {
				return nil, err
			}
			if rs == nil {
				rs = ts
			}
		}
		return rs, nil

	case *mil.If:
		if err := inf.unifyAtom(c.A, types.Con(inf.TEnv.FlagCon)); err != nil {
			return nil, err
		}
		rs, err := inf.tail(c.T)
		if err != nil {
			return nil, err
		}
		if _, err := inf.tail(c.F); err != nil {
			return nil, err
		}
		return rs, nil
	}
	return nil, nil
}

// tail infers the result-type vector of a tail.
func (inf *Inferencer) tail(t mil.Tail) ([]types.Type, error) {
	switch t := t.(type) {
	case *mil.Return:
		ts := make([]types.Type, len(t.As))
		for i, a := range t.As {
			ts[i] = inf.atomType(a)
		}
		return ts, nil

	case *mil.Enter:
		res := inf.Ctx.FreshTVar(types.Star)
		argTys := make([]types.Type, len(t.As))
		for i, a := range t.As {
			argTys[i] = inf.atomType(a)
		}
		fn := inf.TEnv.FunOf(inf.TEnv.TupleOf(argTys...), res)
		if err := inf.unifyAtom(t.F, fn); err != nil {
			return nil, err
		}
		return []types.Type{res}, nil

	case *mil.BlockCall:
		inf.skeletonTemps(t.B.Params)
		if len(t.As) == len(t.B.Params) {
			for i, a := range t.As {
				if err := inf.unifyAtom(a, t.B.Params[i].TypeVal); err != nil {
					return nil, err
				}
			}
		}
		return inf.blockResults(t.B), nil

	case *mil.PrimCall:
		if t.P.Sig != nil {
			body := t.P.Sig.Instantiate(inf.Ctx.FreshTVar)
			res := inf.Ctx.FreshTVar(types.Star)
			argTys := make([]types.Type, len(t.As))
			for i, a := range t.As {
				argTys[i] = inf.atomType(a)
			}
			fn := inf.TEnv.FunOf(inf.TEnv.TupleOf(argTys...), res)
			if err := inf.unify(body, fn); err != nil {
				return nil, err
			}
			return []types.Type{res}, nil
		}
		return []types.Type{inf.Ctx.FreshTVar(types.Star)}, nil

	case *mil.Sel:
		if t.C.Alloc != nil && t.N < len(t.C.Alloc.Stored) {
			stored, result, err := inf.instAlloc(t.C.Alloc)
			if err != nil {
				return nil, err
			}
			if err := inf.unifyAtom(t.A, result); err != nil {
				return nil, err
			}
			return []types.Type{stored[t.N]}, nil
		}
		return []types.Type{inf.Ctx.FreshTVar(types.Star)}, nil

	case *mil.DataAlloc:
		if t.C.Alloc != nil && len(t.As) == len(t.C.Alloc.Stored) {
			stored, result, err := inf.instAlloc(t.C.Alloc)
			if err != nil {
				return nil, err
			}
			for i, a := range t.As {
				if err := inf.unifyAtom(a, stored[i]); err != nil {
					return nil, err
				}
			}
			return []types.Type{result}, nil
		}
		return []types.Type{inf.Ctx.FreshTVar(types.Star)}, nil

	case *mil.ClosAlloc:
		inf.skeletonTemps(t.K.Params)
		if len(t.As) == len(t.K.Params) {
			for i, a := range t.As {
				if err := inf.unifyAtom(a, t.K.Params[i].TypeVal); err != nil {
					return nil, err
				}
			}
		}
		if t.K.Alloc != nil {
			_, result, err := inf.instAlloc(t.K.Alloc)
			if err != nil {
				return nil, err
			}
			return []types.Type{result}, nil
		}
		return []types.Type{inf.Ctx.FreshTVar(types.Star)}, nil
	}
	return nil, nil
}

// blockResults returns the shared result-type vector of a block,
// minting it on first use. The vector's arity follows the block's
// final tail where that is syntactically evident, defaulting to one.
func (inf *Inferencer) blockResults(b *mil.Block) []types.Type {
	if rs, ok := inf.results[b]; ok {
		return rs
	}
	n := resultArity(b.Body)
	rs := make([]types.Type, n)
	for i := range rs {
		rs[i] = inf.Ctx.FreshTVar(types.Star)
	}
	inf.results[b] = rs
	return rs
}

// resultArity reads the statically known result arity off the final
// tail of a code sequence.
func resultArity(c mil.Code) int {
	for {
		switch cc := c.(type) {
		case *mil.Bind:
			c = cc.Rest
		case *mil.Done:
			if ret, ok := cc.T.(*mil.Return); ok {
				return len(ret.As)
			}
			return 1
		default:
			return 1
		}
	}
}

func (inf *Inferencer) instAlloc(a *types.AllocType) ([]types.Type, types.Type, error) {
	args := make([]types.Type, len(a.Kinds))
	for i, k := range a.Kinds {
		args[i] = inf.Ctx.FreshTVar(k)
	}
	return a.InstantiateWith(args)
}

// atomType reads or assigns an atom's type.
func (inf *Inferencer) atomType(a mil.Atom) types.Type {
	switch a := a.(type) {
	case *mil.Temp:
		if a.TypeVal == nil {
			a.TypeVal = inf.Ctx.FreshTVar(types.Star)
		}
		return a.TypeVal
	case *mil.Word:
		return inf.TEnv.WordType()
	case *mil.TopDef:
		if a.Top.Scheme != nil {
			// Component types come from the top-level's tuple scheme.
			body := a.Top.Scheme.Instantiate(inf.Ctx.FreshTVar)
			if head, args := types.Spine(body); len(args) > a.Index {
				if _, ok := types.Resolve(head).(*types.TCon); ok {
					return args[a.Index]
				}
			}
			return body
		}
		return inf.Ctx.FreshTVar(types.Star)
	case *mil.ConAtom:
		if a.C.Alloc != nil {
			_, result, err := inf.instAlloc(a.C.Alloc)
			if err == nil {
				return result
			}
		}
		return inf.Ctx.FreshTVar(types.Star)
	}
	return inf.Ctx.FreshTVar(types.Star)
}

func (inf *Inferencer) unifyAtom(a mil.Atom, want types.Type) error {
	return inf.unify(inf.atomType(a), want)
}

// unify wraps types.Unify, translating its structured errors into
// failures with the matching diagnostic code.
func (inf *Inferencer) unify(a, b types.Type) error {
	err := types.Unify(a, b)
	if err == nil {
		return nil
	}
	switch e := err.(type) {
	case *types.MismatchError:
		return diagnostics.NewFailure(diagnostics.ErrTypeMismatch, diagnostics.Pos{},
			"expected %s, found %s", e.Expected, e.Actual)
	case *types.OccursError:
		return diagnostics.NewFailure(diagnostics.ErrOccursCheck, diagnostics.Pos{},
			"%s occurs in %s", e.Var, e.In)
	case *types.KindError:
		return diagnostics.NewFailure(diagnostics.ErrKindMismatch, diagnostics.Pos{},
			"%s vs %s", e.Left, e.Right)
	}
	return diagnostics.NewFailure(diagnostics.ErrInternal, diagnostics.Pos{}, "%s", err)
}

// generalizeBlock quantifies a block's signature: parameter types to
// result types.
func (inf *Inferencer) generalizeBlock(b *mil.Block, rs []types.Type) *types.Scheme {
	ps := make([]types.Type, len(b.Params))
	for i, pm := range b.Params {
		ps[i] = pm.TypeVal
	}
	sig := inf.TEnv.FunOf(inf.TEnv.TupleOf(ps...), inf.TEnv.TupleOf(rs...))
	return types.Generalize(sig)
}

// warnAmbiguous reports variables that stay free in the defining tail
// but were not captured by the signature.
func (inf *Inferencer) warnAmbiguous(id string, rs []types.Type, scheme *types.Scheme) {
	inSig := make(map[*types.TVar]bool, len(scheme.Gens))
	for _, g := range scheme.Gens {
		inSig[g] = true
	}
	var free []*types.TVar
	for _, t := range rs {
		free = types.UnboundVars(t, free)
	}
	for _, v := range free {
		if !inSig[v] {
			inf.Sink.Report(diagnostics.NewWarning(diagnostics.ErrAmbiguousTypeVar, diagnostics.Pos{},
				"%s: type variable %s is free in the body but not in the signature", id, v))
		}
	}
}

// declaredDefn reports whether every type in the definition is
// explicitly declared, which is what allows per-definition recovery.
func declaredDefn(d mil.Defn) bool {
	switch d := d.(type) {
	case *mil.Block:
		if d.Scheme == nil {
			return false
		}
		for _, pm := range d.Params {
			if pm.TypeVal == nil {
				return false
			}
		}
		return true
	case *mil.ClosureDefn:
		return d.Alloc != nil
	case *mil.TopLevel:
		return d.Scheme != nil
	}
	return true
}
