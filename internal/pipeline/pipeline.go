// Package pipeline schedules the compilation passes. Each stage is a
// Processor transforming a shared Context; failures accumulate on the
// context so later stages can still run and report.
package pipeline

import (
	"github.com/llir/llvm/ir"

	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/reptran"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// EntryPoint names an exported definition and its declared
// monomorphic type.
type EntryPoint struct {
	Name string
	Type types.Type
}

// Context carries the state threaded through the passes.
type Context struct {
	Prog    *mil.Program
	Ctx     *mil.Context
	TSet    *types.TypeSet
	Target  *reptran.Target
	Entries []EntryPoint

	// Roots is the live-definition list established by
	// specialisation; lowering consumes it.
	Roots []mil.Defn

	Module *ir.Module

	Failures []*diagnostics.Failure
	Sink     diagnostics.Sink
}

// Fail records a failure on the context and forwards it to the sink.
func (c *Context) Fail(f *diagnostics.Failure) {
	c.Failures = append(c.Failures, f)
	if c.Sink != nil {
		c.Sink.Report(f)
	}
}

// HasErrors reports whether any recorded failure is error-severity.
func (c *Context) HasErrors() bool {
	for _, f := range c.Failures {
		if f.Severity == diagnostics.SeverityError {
			return true
		}
	}
	return false
}

// Processor is one pipeline stage.
type Processor interface {
	Process(*Context) *Context
}

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline.
func (p *Pipeline) Run(initialCtx *Context) *Context {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
		// Continue on errors to collect diagnostics from all stages;
		// stages that cannot proceed check HasErrors themselves.
	}
	return ctx
}
