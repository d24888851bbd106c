package compile

import (
	"strings"
	"testing"

	"github.com/pearProgrammr/mil-tools/internal/builder"
	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/pipeline"
	"github.com/pearProgrammr/mil-tools/internal/reptran"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

func TestCompileSmallProgram(t *testing.T) {
	ctx := mil.NewContext()
	env := types.NewTyconEnv(64)
	bld := builder.New(ctx, env)

	maybe := &types.DataName{Id: "Maybe", KindVal: types.Star}
	alloc := &types.AllocType{Stored: []types.Type{env.WordType()}, Result: types.Con(maybe)}
	just := bld.Cfun("Just", 0, 1, maybe, alloc)
	v := bld.Temp("v", nil)
	main := bld.Block("main", nil, bld.Bind(
		[]*mil.Temp{v},
		bld.DataAlloc(just, bld.Word(7)),
		bld.Done(bld.Return(v)),
	))
	prog := bld.Program(main)

	sink := &diagnostics.CollectorSink{}
	m, err := Compile(prog, []pipeline.EntryPoint{{Name: "main"}}, reptran.W64, sink)
	if err != nil {
		t.Fatalf("Compile: %v (failures: %v)", err, sink.Failures)
	}
	if m == nil {
		t.Fatalf("Compile returned no module")
	}
	if !strings.HasPrefix(m.SourceFilename, "mil:") {
		t.Errorf("module identity missing: %q", m.SourceFilename)
	}
	text := m.String()
	if !strings.Contains(text, "main") {
		t.Errorf("emitted module lacks the entry function:\n%s", text)
	}
	if !strings.Contains(text, "alloc") {
		t.Errorf("emitted module never declares alloc")
	}
}

func TestCompileReportsMissingEntry(t *testing.T) {
	ctx := mil.NewContext()
	env := types.NewTyconEnv(64)
	bld := builder.New(ctx, env)
	prog := bld.Program()

	sink := &diagnostics.CollectorSink{}
	_, err := Compile(prog, []pipeline.EntryPoint{{Name: "missing"}}, reptran.W64, sink)
	if err == nil {
		t.Fatalf("Compile accepted an undefined entry point")
	}
	f, ok := err.(*diagnostics.Failure)
	if !ok || f.Code != diagnostics.ErrScope {
		t.Errorf("err = %v, want a scope failure", err)
	}
}
