package lower

import (
	"strings"
	"testing"

	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/reptran"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

func newLowerer() *Lowerer {
	env := types.NewTyconEnv(64)
	return New(NewTypeMap(types.NewTypeSet(), env, reptran.W64))
}

func TestLowerBlockAndInit(t *testing.T) {
	ctx := mil.NewContext()
	nilCfun := &mil.Cfun{Id: "Nil", Num: 1, Arity: 0}
	consCfun := &mil.Cfun{Id: "Cons", Num: 0, Arity: 2}

	// Two static list cells (the Cons cell references Nil) and a
	// runtime-initialised global.
	nilTop := &mil.TopLevel{Lhs: []string{"nil_top"}, T: &mil.DataAlloc{C: nilCfun, As: nil}, IsStatic: true}
	consTop := &mil.TopLevel{
		Lhs: []string{"one_list"},
		T: &mil.DataAlloc{C: consCfun, As: []mil.Atom{
			&mil.Word{Val: 1}, &mil.TopDef{Top: nilTop, Index: 0},
		}},
		IsStatic: true,
	}
	prim := &mil.Prim{Id: "readConfig", Pure: false}
	rtTop := &mil.TopLevel{Lhs: []string{"config"}, T: &mil.PrimCall{P: prim, As: nil}}

	x := ctx.FreshTemp(nil)
	entry := &mil.Block{
		Id:     "entry",
		Params: []*mil.Temp{x},
		Body: &mil.Done{T: &mil.Return{As: []mil.Atom{
			&mil.TopDef{Top: consTop, Index: 0},
		}}},
	}

	m, err := newLowerer().Lower([]mil.Defn{nilTop, consTop, rtTop, entry})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}

	var names []string
	for _, f := range m.Funcs {
		names = append(names, f.Name())
	}
	for _, want := range []string{"alloc", "entry", "mil_init", "readConfig"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("module lacks function %s (have %v)", want, names)
		}
	}

	// Static top-levels emit private constants plus aliases.
	if len(m.Aliases) != 2 {
		t.Errorf("module has %d aliases, want 2", len(m.Aliases))
	}
	// The runtime global gets a mutable cell.
	foundCell := false
	for _, g := range m.Globals {
		if g.Name() == "config" {
			foundCell = true
		}
	}
	if !foundCell {
		t.Errorf("runtime top-level has no global cell")
	}

	// The printed module parses as textual IR shapes we rely on.
	text := m.String()
	for _, want := range []string{"define", "declare", "mil_init", "call"} {
		if !strings.Contains(text, want) {
			t.Errorf("emitted module lacks %q", want)
		}
	}
}

func TestCaseLowering(t *testing.T) {
	ctx := mil.NewContext()
	just := &mil.Cfun{Id: "Just", Num: 0, Arity: 1}
	nothing := &mil.Cfun{Id: "Nothing", Num: 1, Arity: 0}

	y := ctx.FreshTemp(nil)
	b1 := &mil.Block{Id: "onJust", Params: []*mil.Temp{y}, Body: &mil.Done{T: &mil.Return{As: []mil.Atom{y}}}}
	b2 := &mil.Block{Id: "onNothing", Body: &mil.Done{T: &mil.Return{As: []mil.Atom{&mil.Word{Val: 0}}}}}

	scrut := ctx.FreshTemp(nil)
	disp := &mil.Block{
		Id:     "dispatch",
		Params: []*mil.Temp{scrut},
		Body: &mil.Case{
			A:    scrut,
			Alts: []mil.Alt{{C: just, B: b1}, {C: nothing, B: b2}},
		},
	}

	m, err := newLowerer().Lower([]mil.Defn{b1, b2, disp})
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	text := m.String()
	if !strings.Contains(text, "switch") {
		t.Errorf("case lowering produced no switch:\n%s", text)
	}
	if !strings.Contains(text, "unreachable") {
		t.Errorf("defaultless case should fall into unreachable")
	}
	if !strings.Contains(text, "tail call") {
		t.Errorf("alternatives should transfer control via tail calls")
	}
}

func TestTopOrderAsserted(t *testing.T) {
	later := &mil.TopLevel{Lhs: []string{"later"}, T: &mil.Return{As: []mil.Atom{&mil.Word{Val: 1}}}, IsStatic: true}
	earlier := &mil.TopLevel{
		Lhs:      []string{"earlier"},
		T:        &mil.Return{As: []mil.Atom{&mil.TopDef{Top: later, Index: 0}}},
		IsStatic: true,
	}
	_, err := newLowerer().Lower([]mil.Defn{earlier, later})
	if err == nil {
		t.Fatalf("unsorted top-levels should be rejected")
	}
}
