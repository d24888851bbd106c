// Package reptran performs representation transformation: a logical
// argument whose type is wider than the target word splits into a
// vector of word-sized slots, and parameters, arguments, and selects
// are rewritten consistently. Slots are ordered lo,hi.
package reptran

import (
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// RepCalc computes the flat representation vector of a type: nil
// means the type is represented as itself; otherwise the returned
// slice lists the slot types in lo,hi order.
func RepCalc(t types.Type, env *types.TyconEnv, tg *Target) []types.Type {
	if t == nil {
		return nil
	}
	bits, ok := types.BitSize(t, env)
	if !ok || bits <= tg.WordBits {
		return nil
	}
	slots := (bits + tg.WordBits - 1) / tg.WordBits
	out := make([]types.Type, slots)
	for i := range out {
		out[i] = env.WordType()
	}
	return out
}

// RepEnv maps a split temp to its representation vector.
type RepEnv map[*mil.Temp][]*mil.Temp

// Transformer rewrites a program for a target.
type Transformer struct {
	Ctx  *mil.Context
	TEnv *types.TyconEnv
	Tg   *Target

	env RepEnv
}

func NewTransformer(ctx *mil.Context, tenv *types.TyconEnv, tg *Target) *Transformer {
	return &Transformer{Ctx: ctx, TEnv: tenv, Tg: tg, env: RepEnv{}}
}

// Run splits every over-wide temp in the program.
func (tr *Transformer) Run(p *mil.Program) {
	for _, d := range p.Defns {
		switch d := d.(type) {
		case *mil.Block:
			d.Params = tr.splitParams(d.Params)
			d.Body = tr.code(d.Body)
		case *mil.ClosureDefn:
			d.Params = tr.splitParams(d.Params)
			d.Args = tr.splitParams(d.Args)
			d.Tail = tr.tail(d.Tail)
		case *mil.TopLevel:
			d.T = tr.tail(d.T)
		}
	}
}

// splitParams expands each parameter with a non-trivial rep into its
// slot temps, recording the split in the RepEnv.
func (tr *Transformer) splitParams(params []*mil.Temp) []*mil.Temp {
	out := make([]*mil.Temp, 0, len(params))
	for _, pm := range params {
		if reps, ok := tr.split(pm); ok {
			out = append(out, reps...)
		} else {
			out = append(out, pm)
		}
	}
	return out
}

// split returns the representation vector of a temp, minting it on
// first sight.
func (tr *Transformer) split(t *mil.Temp) ([]*mil.Temp, bool) {
	if reps, ok := tr.env[t]; ok {
		return reps, true
	}
	slots := RepCalc(t.TypeVal, tr.TEnv, tr.Tg)
	if slots == nil {
		return nil, false
	}
	reps := make([]*mil.Temp, len(slots))
	for i, st := range slots {
		reps[i] = tr.Ctx.FreshTemp(st)
	}
	tr.env[t] = reps
	return reps, true
}

// expand rewrites an atom list, replacing each split temp by its
// vector.
func (tr *Transformer) expand(as []mil.Atom) []mil.Atom {
	out := make([]mil.Atom, 0, len(as))
	for _, a := range as {
		if t, ok := a.(*mil.Temp); ok {
			if reps, ok := tr.split(t); ok {
				for _, r := range reps {
					out = append(out, r)
				}
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

func (tr *Transformer) code(c mil.Code) mil.Code {
	switch c := c.(type) {
	case *mil.Bind:
		t := tr.tail(c.T)
		vs := c.Vs
		// Binding a split value: the bound temp becomes its slots. A
		// word literal wider than the target word splits into lo,hi
		// halves here as well.
		if len(c.Vs) == 1 {
			if reps, ok := tr.split(c.Vs[0]); ok {
				vs = reps
				if ret, rok := t.(*mil.Return); rok && len(ret.As) == 1 {
					if w, wok := ret.As[0].(*mil.Word); wok {
						t = &mil.Return{As: tr.splitWord(w, len(reps))}
					}
				}
			}
		}
		return &mil.Bind{Vs: vs, T: t, Rest: tr.code(c.Rest)}
	case *mil.Done:
		return &mil.Done{T: tr.tail(c.T)}
	case *mil.Case:
		var def *mil.BlockCall
		if c.Def != nil {
			def = tr.tail(c.Def).(*mil.BlockCall)
		}
		return &mil.Case{A: c.A, Alts: c.Alts, Def: def}
	case *mil.If:
		return &mil.If{
			A: c.A,
			T: tr.tail(c.T).(*mil.BlockCall),
			F: tr.tail(c.F).(*mil.BlockCall),
		}
	}
	return c
}

func (tr *Transformer) tail(t mil.Tail) mil.Tail {
	switch t := t.(type) {
	case *mil.Return:
		return &mil.Return{As: tr.expand(t.As)}
	case *mil.Enter:
		return &mil.Enter{F: t.F, As: tr.expand(t.As)}
	case *mil.BlockCall:
		return &mil.BlockCall{B: t.B, As: tr.expand(t.As)}
	case *mil.PrimCall:
		return &mil.PrimCall{P: t.P, As: tr.expand(t.As)}
	case *mil.Sel:
		// A select whose source was split is a no-op on the slots: the
		// projection reduces to returning the slice of the vector the
		// field occupies.
		if src, ok := t.A.(*mil.Temp); ok {
			if reps, rok := tr.env[src]; rok {
				lo, hi := tr.fieldSlots(t, len(reps))
				as := make([]mil.Atom, 0, hi-lo)
				for _, r := range reps[lo:hi] {
					as = append(as, r)
				}
				return &mil.Return{As: as}
			}
		}
		return t
	case *mil.DataAlloc:
		return &mil.DataAlloc{C: t.C, As: tr.expand(t.As)}
	case *mil.ClosAlloc:
		return &mil.ClosAlloc{K: t.K, As: tr.expand(t.As)}
	}
	return t
}

// fieldSlots computes which slots of a split value a field occupies.
// With word-sized fields the layout does not disperse: field N is
// slot N.
func (tr *Transformer) fieldSlots(sel *mil.Sel, slots int) (int, int) {
	lo := sel.N
	if lo >= slots {
		lo = slots - 1
	}
	return lo, lo + 1
}

// splitWord cuts a wide literal into word-sized halves, lo first.
func (tr *Transformer) splitWord(w *mil.Word, slots int) []mil.Atom {
	out := make([]mil.Atom, slots)
	v := uint64(w.Val)
	for i := 0; i < slots; i++ {
		out[i] = &mil.Word{Val: int64(v & ((1 << tr.Tg.WordBits) - 1))}
		v >>= tr.Tg.WordBits
	}
	return out
}
