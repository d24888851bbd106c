// Package compile is the entry point of the back-end: given a program
// and its entry points, it runs inference, the optimisation fixpoint,
// specialisation, representation transformation, and lowering, and
// returns the emitted LLVM module or the first fatal diagnostic.
package compile

import (
	"github.com/google/uuid"
	"github.com/llir/llvm/ir"
	"github.com/pkg/errors"

	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/infer"
	"github.com/pearProgrammr/mil-tools/internal/lower"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/optimize"
	"github.com/pearProgrammr/mil-tools/internal/pipeline"
	"github.com/pearProgrammr/mil-tools/internal/reptran"
	"github.com/pearProgrammr/mil-tools/internal/specialize"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Compile transforms the program and emits an LLVM module. The
// returned error is the first fatal failure; warnings and recovered
// failures reach the sink only.
func Compile(prog *mil.Program, entries []pipeline.EntryPoint, target *reptran.Target, sink diagnostics.Sink) (*ir.Module, error) {
	if target == nil {
		target = reptran.W64
	}
	if sink == nil {
		sink = &diagnostics.CollectorSink{}
	}

	ctx := &pipeline.Context{
		Prog:    prog,
		Ctx:     mil.NewContext(),
		TSet:    types.NewTypeSet(),
		Target:  target,
		Entries: entries,
		Sink:    sink,
	}

	pipe := pipeline.New(
		&inferStage{},
		&optimizeStage{},
		&specializeStage{},
		&repTransformStage{},
		&lowerStage{id: uuid.New()},
	)
	ctx = pipe.Run(ctx)

	if ctx.HasErrors() {
		return nil, ctx.Failures[0]
	}
	if ctx.Module == nil {
		return nil, errors.New("compilation produced no module")
	}
	return ctx.Module, nil
}

type inferStage struct{}

func (s *inferStage) Process(ctx *pipeline.Context) *pipeline.Context {
	inf := infer.New(ctx.Ctx, ctx.Prog.TEnv, ctx.Sink)
	if err := inf.Program(ctx.Prog); err != nil {
		ctx.Failures = append(ctx.Failures, asFailure(err))
	}
	return ctx
}

type optimizeStage struct{}

func (s *optimizeStage) Process(ctx *pipeline.Context) *pipeline.Context {
	if ctx.HasErrors() {
		return ctx
	}
	optimize.New(ctx.Ctx, ctx.TSet).Run(ctx.Prog)
	return ctx
}

type specializeStage struct{}

func (s *specializeStage) Process(ctx *pipeline.Context) *pipeline.Context {
	if ctx.HasErrors() {
		return ctx
	}
	entries := make([]specialize.Entry, len(ctx.Entries))
	for i, e := range ctx.Entries {
		entries[i] = specialize.Entry{Name: e.Name, Type: e.Type}
	}
	sp := specialize.New(ctx.Ctx, ctx.Prog.TEnv, ctx.TSet)
	roots, err := sp.Run(ctx.Prog, entries)
	if err != nil {
		ctx.Fail(asFailure(err))
		return ctx
	}
	ctx.Roots = roots
	return ctx
}

type repTransformStage struct{}

func (s *repTransformStage) Process(ctx *pipeline.Context) *pipeline.Context {
	if ctx.HasErrors() {
		return ctx
	}
	reptran.NewTransformer(ctx.Ctx, ctx.Prog.TEnv, ctx.Target).Run(ctx.Prog)
	return ctx
}

type lowerStage struct {
	id uuid.UUID
}

func (s *lowerStage) Process(ctx *pipeline.Context) *pipeline.Context {
	if ctx.HasErrors() {
		return ctx
	}
	tmap := lower.NewTypeMap(ctx.TSet, ctx.Prog.TEnv, ctx.Target)
	defns := ctx.Prog.Defns
	if ctx.Roots != nil {
		defns = ctx.Prog.LiveDefns(ctx.Roots)
	}
	m, err := lower.New(tmap).Lower(defns)
	if err != nil {
		ctx.Fail(diagnostics.NewFailure(diagnostics.ErrInternal, diagnostics.Pos{}, "%s", err))
		return ctx
	}
	m.SourceFilename = "mil:" + s.id.String()
	ctx.Module = m
	return ctx
}

func asFailure(err error) *diagnostics.Failure {
	if f, ok := err.(*diagnostics.Failure); ok {
		return f
	}
	return diagnostics.NewFailure(diagnostics.ErrInternal, diagnostics.Pos{}, "%s", err)
}
