// Package optimize implements the MIL shape-changing passes:
// inlining, fact propagation with case shorting, known-constructor
// specialisation, unused-argument elimination, duplicate coalescing,
// and static-allocator hoisting. Passes mutate the definition graph
// in place and never raise user-visible errors; a transformation that
// cannot apply simply declines.
package optimize

import (
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// maxRounds bounds the fixpoint loop against pathological inputs; in
// practice the pipeline settles within a handful of rounds.
const maxRounds = 20

// Optimizer drives the pass pipeline over a program.
type Optimizer struct {
	Ctx  *mil.Context
	TSet *types.TypeSet

	changed bool
}

func New(ctx *mil.Context, tset *types.TypeSet) *Optimizer {
	return &Optimizer{Ctx: ctx, TSet: tset}
}

// note records that a pass changed the program, keeping the fixpoint
// loop alive for another round.
func (o *Optimizer) note() { o.changed = true }

// Run applies {inline, flow, unused-args, dedup, hoist} until no pass
// reports a change.
func (o *Optimizer) Run(p *mil.Program) {
	p.SortDefns()
	for round := 0; round < maxRounds; round++ {
		o.changed = false
		o.InlinePass(p)
		o.FlowPass(p)
		o.UsedArgsPass(p)
		o.DedupPass(p)
		o.HoistPass(p)
		if !o.changed {
			return
		}
		p.SortDefns()
	}
}

// eachBody applies f to every code body in the program, storing the
// result back.
func eachBody(p *mil.Program, f func(mil.Code) mil.Code) {
	for _, d := range p.Defns {
		if b, ok := d.(*mil.Block); ok {
			b.Body = f(b.Body)
		}
	}
}

// eachTail applies f to every tail in the program: block bodies,
// closure tails, and top-level defining tails.
func eachTail(p *mil.Program, f func(mil.Tail) mil.Tail) {
	for _, d := range p.Defns {
		switch d := d.(type) {
		case *mil.Block:
			d.Body = mil.MapTails(d.Body, f)
		case *mil.ClosureDefn:
			d.Tail = f(d.Tail)
		case *mil.TopLevel:
			d.T = f(d.T)
		}
	}
}
