package mil

import (
	"testing"

	"github.com/pearProgrammr/mil-tools/internal/types"
)

func testCfuns() (*Cfun, *Cfun) {
	data := &types.DataName{Id: "Maybe", KindVal: types.MakeKFun(types.Star, types.Star)}
	just := &Cfun{Id: "Just", Num: 0, Arity: 1, DataOf: data}
	nothing := &Cfun{Id: "Nothing", Num: 1, Arity: 0, DataOf: data}
	return just, nothing
}

// chain builds v <- DataAlloc(just, [x]); return [v].
func chain(ctx *Context, just *Cfun, x *Temp) Code {
	v := ctx.FreshTemp(nil)
	return &Bind{
		Vs:   []*Temp{v},
		T:    &DataAlloc{C: just, As: []Atom{x}},
		Rest: &Done{T: &Return{As: []Atom{v}}},
	}
}

func TestSummaryStableUnderRenaming(t *testing.T) {
	ctx := NewContext()
	just, _ := testCfuns()
	x := ctx.FreshTemp(nil)
	c := chain(ctx, just, x)

	// Alpha-rename: fresh parameter, fresh bound temps.
	y := ctx.FreshTemp(nil)
	var s *TempSubst
	renamed := CopyCode(ctx, c, s.Extend(x, y))

	if c.Summary() != renamed.Summary() {
		t.Errorf("summary changed under alpha renaming: %#x vs %#x", c.Summary(), renamed.Summary())
	}

	var le, re *AlphaEnv
	if !c.AlphaCode(le.Extend(x), renamed, re.Extend(y)) {
		t.Errorf("alpha-renamed copy is not alpha equivalent")
	}
}

func TestAlphaImpliesEqualSummary(t *testing.T) {
	ctx := NewContext()
	just, _ := testCfuns()
	x1 := ctx.FreshTemp(nil)
	x2 := ctx.FreshTemp(nil)
	c1 := chain(ctx, just, x1)
	c2 := chain(ctx, just, x2)

	var le, re *AlphaEnv
	if !c1.AlphaCode(le.Extend(x1), c2, re.Extend(x2)) {
		t.Fatalf("independently built chains should be alpha equivalent")
	}
	if c1.Summary() != c2.Summary() {
		t.Errorf("alpha-equal codes have different summaries")
	}
}

func TestAlphaDistinguishesStructure(t *testing.T) {
	ctx := NewContext()
	just, _ := testCfuns()
	x := ctx.FreshTemp(nil)
	c1 := chain(ctx, just, x)

	// Same shape but returning the parameter instead of the binding.
	v := ctx.FreshTemp(nil)
	c2 := Code(&Bind{
		Vs:   []*Temp{v},
		T:    &DataAlloc{C: just, As: []Atom{x}},
		Rest: &Done{T: &Return{As: []Atom{x}}},
	})

	var le, re *AlphaEnv
	if c1.AlphaCode(le.Extend(x), c2, re.Extend(x)) {
		t.Errorf("codes with different data flow compare alpha equal")
	}
}

func TestUsedVarsWithinBindings(t *testing.T) {
	ctx := NewContext()
	just, _ := testCfuns()
	x := ctx.FreshTemp(nil)
	c := chain(ctx, just, x)

	vs := TempSet{}
	c.UsedVars(vs)
	if len(vs) != 1 || !vs.Has(x) {
		t.Errorf("free variables = %v, want exactly the parameter", vs)
	}
}

func TestUsedVarsFiltersByCalleeBitmap(t *testing.T) {
	ctx := NewContext()
	p1 := ctx.FreshTemp(nil)
	p2 := ctx.FreshTemp(nil)
	callee := &Block{Id: "cal", Params: []*Temp{p1, p2}, Body: &Done{T: &Return{As: []Atom{p1}}}}
	callee.UsedArgs = []bool{true, false}
	callee.NumUsed = 1

	a1 := ctx.FreshTemp(nil)
	a2 := ctx.FreshTemp(nil)
	call := &BlockCall{B: callee, As: []Atom{a1, a2}}

	vs := TempSet{}
	call.UsedVars(vs)
	if !vs.Has(a1) || vs.Has(a2) {
		t.Errorf("bitmap filtering failed: %v", vs)
	}
}

func TestWildcard(t *testing.T) {
	w := &Temp{Id: "_"}
	if !w.IsWildcard() {
		t.Fatalf("temp with id _ should be a wildcard")
	}
	ctx := NewContext()
	if ctx.FreshTempLike(w) != w {
		t.Errorf("renaming a wildcard should keep the shared wildcard")
	}
}

func TestSortDefnsLeavesFirst(t *testing.T) {
	ctx := NewContext()
	leafP := ctx.FreshTemp(nil)
	leaf := &Block{Id: "leaf", Params: []*Temp{leafP}, Body: &Done{T: &Return{As: []Atom{leafP}}}}
	rootP := ctx.FreshTemp(nil)
	root := &Block{Id: "root", Params: []*Temp{rootP}, Body: &Done{T: &BlockCall{B: leaf, As: []Atom{rootP}}}}

	p := &Program{Defns: []Defn{root, leaf}}
	p.SortDefns()
	if len(p.Defns) != 2 || p.Defns[0] != leaf || p.Defns[1] != root {
		t.Errorf("definitions not leaves-first: %v", p.Defns)
	}
}

func TestSubstChains(t *testing.T) {
	ctx := NewContext()
	a := ctx.FreshTemp(nil)
	b := ctx.FreshTemp(nil)
	w := &Word{Val: 7}

	var s *TempSubst
	s = s.Extend(a, b)
	s = s.Extend(b, w)
	if got := s.Apply(a); got != Atom(w) {
		t.Errorf("Apply did not follow the temp chain: got %s", got)
	}
}
