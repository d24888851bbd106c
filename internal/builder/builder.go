// Package builder supplies constructors for every IR node. The parser
// consumes this interface so it never touches fresh-name state
// directly.
package builder

import (
	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Builder constructs IR nodes against one compilation context.
type Builder struct {
	Ctx  *mil.Context
	TEnv *types.TyconEnv
}

func New(ctx *mil.Context, tenv *types.TyconEnv) *Builder {
	return &Builder{Ctx: ctx, TEnv: tenv}
}

// Wildcard is the shared dead-binding temp.
var wildcard = &mil.Temp{Id: "_"}

// Atoms.

func (b *Builder) Temp(id string, ty types.Type) *mil.Temp {
	if id == "_" {
		return wildcard
	}
	t := b.Ctx.FreshTemp(ty)
	t.Id = id
	return t
}

func (b *Builder) Wildcard() *mil.Temp { return wildcard }

func (b *Builder) Word(v int64) *mil.Word { return &mil.Word{Val: v} }

func (b *Builder) TopRef(top *mil.TopLevel, index int) *mil.TopDef {
	return &mil.TopDef{Top: top, Index: index}
}

func (b *Builder) ConData(c *mil.Cfun) *mil.ConAtom { return &mil.ConAtom{C: c} }

// Tails.

func (b *Builder) Return(as ...mil.Atom) *mil.Return { return &mil.Return{As: as} }

func (b *Builder) Enter(f mil.Atom, as ...mil.Atom) *mil.Enter {
	return &mil.Enter{F: f, As: as}
}

func (b *Builder) BlockCall(blk *mil.Block, as ...mil.Atom) *mil.BlockCall {
	return &mil.BlockCall{B: blk, As: as}
}

func (b *Builder) PrimCall(p *mil.Prim, as ...mil.Atom) *mil.PrimCall {
	return &mil.PrimCall{P: p, As: as}
}

func (b *Builder) Sel(c *mil.Cfun, n int, a mil.Atom) *mil.Sel {
	return &mil.Sel{C: c, N: n, A: a}
}

func (b *Builder) DataAlloc(c *mil.Cfun, as ...mil.Atom) *mil.DataAlloc {
	return &mil.DataAlloc{C: c, As: as}
}

func (b *Builder) ClosAlloc(k *mil.ClosureDefn, as ...mil.Atom) *mil.ClosAlloc {
	return &mil.ClosAlloc{K: k, As: as}
}

// Code.

func (b *Builder) Bind(vs []*mil.Temp, t mil.Tail, rest mil.Code) *mil.Bind {
	return &mil.Bind{Vs: vs, T: t, Rest: rest}
}

func (b *Builder) Done(t mil.Tail) *mil.Done { return &mil.Done{T: t} }

func (b *Builder) Alt(c *mil.Cfun, blk *mil.Block) mil.Alt { return mil.Alt{C: c, B: blk} }

func (b *Builder) Case(a mil.Atom, alts []mil.Alt, def *mil.BlockCall) *mil.Case {
	return &mil.Case{A: a, Alts: alts, Def: def}
}

func (b *Builder) If(a mil.Atom, t, f *mil.BlockCall) *mil.If {
	return &mil.If{A: a, T: t, F: f}
}

// Definitions.

func (b *Builder) Block(id string, params []*mil.Temp, body mil.Code) *mil.Block {
	if id == "" {
		id = b.Ctx.FreshBlockId()
	}
	return &mil.Block{Id: id, Params: params, Body: body}
}

func (b *Builder) ClosureDefn(id string, params, args []*mil.Temp, tail mil.Tail, alloc *types.AllocType) *mil.ClosureDefn {
	if id == "" {
		id = b.Ctx.FreshClosureId()
	}
	return &mil.ClosureDefn{Id: id, Params: params, Args: args, Tail: tail, Alloc: alloc}
}

func (b *Builder) TopLevel(lhs []string, t mil.Tail) *mil.TopLevel {
	return &mil.TopLevel{Lhs: lhs, T: t}
}

func (b *Builder) External(id string, ty types.Type, k types.Kind) *mil.External {
	return &mil.External{Id: id, TypeVal: ty, KindVal: k}
}

// DeclareTycon interns a type constructor, failing when the name has
// already been declared.
func (b *Builder) DeclareTycon(tc types.Tycon) error {
	if !b.TEnv.Declare(tc) {
		return diagnostics.NewFailure(diagnostics.ErrMultipleDecls, diagnostics.Pos{},
			"type %s declared more than once", tc.Name())
	}
	return nil
}

// Constructors and primitives.

func (b *Builder) Cfun(id string, num, arity int, data *types.DataName, alloc *types.AllocType) *mil.Cfun {
	return &mil.Cfun{Id: id, Num: num, Arity: arity, DataOf: data, Alloc: alloc}
}

func (b *Builder) Prim(id string, pure bool, sig *types.Scheme) *mil.Prim {
	return &mil.Prim{Id: id, Pure: pure, Sig: sig}
}

// Program assembles the definition list.
func (b *Builder) Program(defns ...mil.Defn) *mil.Program {
	return &mil.Program{Defns: defns, TEnv: b.TEnv}
}
