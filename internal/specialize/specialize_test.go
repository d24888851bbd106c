package specialize

import (
	"testing"

	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

func newSpec() (*Specializer, *mil.Context, *types.TyconEnv) {
	ctx := mil.NewContext()
	env := types.NewTyconEnv(64)
	return New(ctx, env, types.NewTypeSet()), ctx, env
}

// identity builds a polymorphic identity block: id[x] = return [x].
func identity(ctx *mil.Context, env *types.TyconEnv) *mil.Block {
	v := ctx.FreshTVar(types.Star)
	x := ctx.FreshTemp(v)
	b := &mil.Block{Id: "id", Params: []*mil.Temp{x}, Body: &mil.Done{T: &mil.Return{As: []mil.Atom{x}}}}
	b.Scheme = types.Generalize(env.FunOf(env.TupleOf(v), env.TupleOf(v)))
	return b
}

func TestPolymorphicEntryRejected(t *testing.T) {
	sp, ctx, env := newSpec()
	b := identity(ctx, env)
	p := &mil.Program{Defns: []mil.Defn{b}, TEnv: env}

	_, err := sp.Run(p, []Entry{{Name: "id"}})
	f, ok := err.(*diagnostics.Failure)
	if !ok || f.Code != diagnostics.ErrPolyEntrypoint {
		t.Fatalf("err = %v, want a %s failure", err, diagnostics.ErrPolyEntrypoint)
	}
}

func TestMonomorphicInstance(t *testing.T) {
	sp, ctx, env := newSpec()
	b := identity(ctx, env)
	p := &mil.Program{Defns: []mil.Defn{b}, TEnv: env}

	word := env.WordType()
	entryTy := env.FunOf(env.TupleOf(word), env.TupleOf(word))
	roots, err := sp.Run(p, []Entry{{Name: "id", Type: entryTy}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	inst, ok := roots[0].(*mil.Block)
	if !ok || inst == b {
		t.Fatalf("entry was not instantiated to a fresh block")
	}
	if inst.Scheme == nil || !inst.Scheme.IsMonomorphic() {
		t.Errorf("instance keeps a quantified type: %s", inst.Scheme)
	}
	if !types.Same(inst.Params[0].TypeVal, word) {
		t.Errorf("instance parameter type = %s, want Word", inst.Params[0].TypeVal)
	}
}

func TestInstancesMemoised(t *testing.T) {
	sp, ctx, env := newSpec()
	b := identity(ctx, env)
	p := &mil.Program{Defns: []mil.Defn{b}, TEnv: env}

	word := env.WordType()
	entryTy := env.FunOf(env.TupleOf(word), env.TupleOf(word))
	roots1, err := sp.Run(p, []Entry{{Name: "id", Type: entryTy}, {Name: "id", Type: entryTy}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(roots1) != 2 || roots1[0] != roots1[1] {
		t.Errorf("repeated instantiation at one type should share the instance")
	}
}

func TestMissingEntry(t *testing.T) {
	sp, _, env := newSpec()
	p := &mil.Program{Defns: nil, TEnv: env}
	_, err := sp.Run(p, []Entry{{Name: "nope"}})
	f, ok := err.(*diagnostics.Failure)
	if !ok || f.Code != diagnostics.ErrScope {
		t.Fatalf("err = %v, want a scope failure", err)
	}
}
