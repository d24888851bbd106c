package optimize

import (
	"testing"

	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

func newOpt() (*Optimizer, *mil.Context) {
	ctx := mil.NewContext()
	return New(ctx, types.NewTypeSet()), ctx
}

func maybeCfuns() (*mil.Cfun, *mil.Cfun) {
	data := &types.DataName{Id: "Maybe", KindVal: types.Star}
	return &mil.Cfun{Id: "Just", Num: 0, Arity: 1, DataOf: data},
		&mil.Cfun{Id: "Nothing", Num: 1, Arity: 0, DataOf: data}
}

func listCfuns() (*mil.Cfun, *mil.Cfun) {
	data := &types.DataName{Id: "List", KindVal: types.Star}
	return &mil.Cfun{Id: "Cons", Num: 0, Arity: 2, DataOf: data},
		&mil.Cfun{Id: "Nil", Num: 1, Arity: 0, DataOf: data}
}

// finalTail walks a bind chain to its terminal tail.
func finalTail(c mil.Code) mil.Tail {
	for {
		switch cc := c.(type) {
		case *mil.Bind:
			c = cc.Rest
		case *mil.Done:
			return cc.T
		default:
			return nil
		}
	}
}

func TestCaseShorting(t *testing.T) {
	o, ctx := newOpt()
	just, nothing := maybeCfuns()

	y := ctx.FreshTemp(nil)
	b1 := &mil.Block{Id: "B1", Params: []*mil.Temp{y}, Body: &mil.Done{T: &mil.Return{As: []mil.Atom{y}}}}
	b2 := &mil.Block{Id: "B2", Params: nil, Body: &mil.Done{T: &mil.Return{As: []mil.Atom{&mil.Word{Val: 0}}}}}

	v := ctx.FreshTemp(nil)
	main := &mil.Block{
		Id: "main",
		Body: &mil.Bind{
			Vs: []*mil.Temp{v},
			T:  &mil.DataAlloc{C: just, As: []mil.Atom{&mil.Word{Val: 7}}},
			Rest: &mil.Case{
				A:    v,
				Alts: []mil.Alt{{C: just, B: b1}, {C: nothing, B: b2}},
			},
		},
	}
	p := &mil.Program{Defns: []mil.Defn{b1, b2, main}}
	o.FlowPass(p)

	bc, ok := finalTail(main.Body).(*mil.BlockCall)
	if !ok || bc.B != b1 {
		t.Fatalf("case did not short to B1: %s", main.Body)
	}
	if len(bc.As) != 1 {
		t.Fatalf("shorted call has %d args, want 1", len(bc.As))
	}
	if w, ok := bc.As[0].(*mil.Word); !ok || w.Val != 7 {
		t.Errorf("shorted call argument = %s, want 7", bc.As[0])
	}
}

func TestEnterKnownClosure(t *testing.T) {
	o, ctx := newOpt()

	x := ctx.FreshTemp(nil)
	k := &mil.ClosureDefn{Id: "k", Args: []*mil.Temp{x}, Tail: &mil.Return{As: []mil.Atom{x}}}

	v := ctx.FreshTemp(nil)
	main := &mil.Block{
		Id: "main",
		Body: &mil.Bind{
			Vs:   []*mil.Temp{v},
			T:    &mil.ClosAlloc{K: k, As: nil},
			Rest: &mil.Done{T: &mil.Enter{F: v, As: []mil.Atom{&mil.Word{Val: 42}}}},
		},
	}
	p := &mil.Program{Defns: []mil.Defn{k, main}}
	o.Run(p)

	ret, ok := finalTail(main.Body).(*mil.Return)
	if !ok || len(ret.As) != 1 {
		t.Fatalf("enter did not reduce to a return: %s", main.Body)
	}
	if w, ok := ret.As[0].(*mil.Word); !ok || w.Val != 42 {
		t.Errorf("result = %s, want 42", ret.As[0])
	}
}

func TestStaticHoistChain(t *testing.T) {
	o, ctx := newOpt()
	cons, nil_ := listCfuns()

	t1 := ctx.FreshTemp(nil)
	t2 := ctx.FreshTemp(nil)
	main := &mil.Block{
		Id: "main",
		Body: &mil.Bind{
			Vs: []*mil.Temp{t1},
			T:  &mil.DataAlloc{C: cons, As: []mil.Atom{&mil.Word{Val: 2}, &mil.ConAtom{C: nil_}}},
			Rest: &mil.Bind{
				Vs:   []*mil.Temp{t2},
				T:    &mil.DataAlloc{C: cons, As: []mil.Atom{&mil.Word{Val: 1}, t1}},
				Rest: &mil.Done{T: &mil.Return{As: []mil.Atom{t2}}},
			},
		},
	}
	p := &mil.Program{Defns: []mil.Defn{main}}
	o.Run(p)

	// The nested constant collapses into static top-levels and main
	// returns the outermost reference.
	statics := 0
	for _, d := range p.Defns {
		if top, ok := d.(*mil.TopLevel); ok && top.IsStatic {
			statics++
		}
	}
	if statics < 2 {
		t.Fatalf("hoisting produced %d static top-levels, want at least 2", statics)
	}
	ret, ok := finalTail(main.Body).(*mil.Return)
	if !ok || len(ret.As) != 1 {
		t.Fatalf("main does not end in a single return: %s", main.Body)
	}
	td, ok := ret.As[0].(*mil.TopDef)
	if !ok || !td.IsStatic() {
		t.Fatalf("main returns %s, want a static top-level reference", ret.As[0])
	}

	// No allocator anywhere keeps all-static arguments in a body.
	for _, d := range p.Defns {
		if b, ok := d.(*mil.Block); ok {
			mil.MapTails(b.Body, func(tl mil.Tail) mil.Tail {
				if staticAlloc(tl) {
					t.Errorf("all-static allocator survives in %s: %s", b.Id, tl)
				}
				return tl
			})
		}
	}
}

func TestUnusedArgs(t *testing.T) {
	o, ctx := newOpt()
	f := &mil.Prim{Id: "f", Pure: false}

	x := ctx.FreshTemp(nil)
	y := ctx.FreshTemp(nil)
	z := ctx.FreshTemp(nil)
	b := &mil.Block{
		Id:     "b",
		Params: []*mil.Temp{x, y, z},
		Body:   &mil.Done{T: &mil.PrimCall{P: f, As: []mil.Atom{x, z}}},
	}

	caller := &mil.Block{
		Id: "caller",
		Body: &mil.Done{T: &mil.BlockCall{B: b, As: []mil.Atom{
			&mil.Word{Val: 1}, &mil.Word{Val: 2}, &mil.Word{Val: 3},
		}}},
	}
	p := &mil.Program{Defns: []mil.Defn{b, caller}}
	o.UsedArgsPass(p)

	if len(b.Params) != 2 || b.Params[0] != x || b.Params[1] != z {
		t.Fatalf("params = %v, want [x z]", b.Params)
	}
	bc, ok := finalTail(caller.Body).(*mil.BlockCall)
	if !ok || len(bc.As) != 2 {
		t.Fatalf("caller args not rewritten: %s", caller.Body)
	}
	if w1, _ := bc.As[0].(*mil.Word); w1 == nil || w1.Val != 1 {
		t.Errorf("first surviving arg = %s, want 1", bc.As[0])
	}
	if w2, _ := bc.As[1].(*mil.Word); w2 == nil || w2.Val != 3 {
		t.Errorf("second surviving arg = %s, want 3", bc.As[1])
	}
}

func TestUnusedStoredComponentShrinksLayout(t *testing.T) {
	o, ctx := newOpt()
	f := &mil.Prim{Id: "f", Pure: false}

	sx := ctx.FreshTemp(nil)
	sy := ctx.FreshTemp(nil)
	sz := ctx.FreshTemp(nil)
	arg := ctx.FreshTemp(nil)
	word := types.Con(types.NewTyconEnv(64).WordCon)
	k := &mil.ClosureDefn{
		Id:     "k",
		Params: []*mil.Temp{sx, sy, sz},
		Args:   []*mil.Temp{arg},
		Tail:   &mil.PrimCall{P: f, As: []mil.Atom{sx, sz, arg}},
		Alloc:  &types.AllocType{Stored: []types.Type{word, word, word}, Result: word},
	}

	maker := &mil.Block{
		Id: "maker",
		Body: &mil.Done{T: &mil.ClosAlloc{K: k, As: []mil.Atom{
			&mil.Word{Val: 1}, &mil.Word{Val: 2}, &mil.Word{Val: 3},
		}}},
	}
	p := &mil.Program{Defns: []mil.Defn{k, maker}}
	o.UsedArgsPass(p)

	if len(k.Params) != 2 {
		t.Fatalf("stored params = %d, want 2", len(k.Params))
	}
	if len(k.Alloc.Stored) != 2 {
		t.Fatalf("layout has %d stored slots, want 2", len(k.Alloc.Stored))
	}
	ca, ok := finalTail(maker.Body).(*mil.ClosAlloc)
	if !ok || len(ca.As) != 2 {
		t.Fatalf("allocation site not rewritten: %s", maker.Body)
	}
}

func TestDedupMergesAlphaEquivalentBlocks(t *testing.T) {
	o, ctx := newOpt()
	f := &mil.Prim{Id: "f", Pure: true}

	mk := func(id string) *mil.Block {
		x := ctx.FreshTemp(nil)
		return &mil.Block{
			Id:     id,
			Params: []*mil.Temp{x},
			Body:   &mil.Done{T: &mil.PrimCall{P: f, As: []mil.Atom{x}}},
		}
	}
	b1 := mk("b1")
	b2 := mk("b2")
	p := &mil.Program{Defns: []mil.Defn{b1, b2}}
	o.DedupPass(p)

	done, ok := b2.Body.(*mil.Done)
	if !ok {
		t.Fatalf("b2 body is %s, want a forwarder", b2.Body)
	}
	bc, ok := done.T.(*mil.BlockCall)
	if !ok || bc.B != b1 {
		t.Fatalf("b2 does not forward to b1: %s", done.T)
	}

	// No two surviving (non-forwarder) definitions are alpha equal.
	if b1.AlphaDefn(b2) {
		t.Errorf("b1 and b2 still alpha equal after dedup")
	}
}

func TestPrefixInline(t *testing.T) {
	o, ctx := newOpt()
	f := &mil.Prim{Id: "f", Pure: false}

	x := ctx.FreshTemp(nil)
	small := &mil.Block{
		Id:     "small",
		Params: []*mil.Temp{x},
		Body:   &mil.Done{T: &mil.Return{As: []mil.Atom{x}}},
	}

	r := ctx.FreshTemp(nil)
	caller := &mil.Block{
		Id: "caller",
		Body: &mil.Bind{
			Vs:   []*mil.Temp{r},
			T:    &mil.BlockCall{B: small, As: []mil.Atom{&mil.Word{Val: 9}}},
			Rest: &mil.Done{T: &mil.PrimCall{P: f, As: []mil.Atom{r}}},
		},
	}
	p := &mil.Program{Defns: []mil.Defn{small, caller}}
	o.InlinePass(p)

	pc, ok := finalTail(caller.Body).(*mil.PrimCall)
	if !ok {
		t.Fatalf("caller body = %s", caller.Body)
	}
	if w, ok := pc.As[0].(*mil.Word); !ok || w.Val != 9 {
		t.Errorf("inlined argument = %s, want 9", pc.As[0])
	}
}

func TestRecursiveBlockNotInlined(t *testing.T) {
	o, ctx := newOpt()

	x := ctx.FreshTemp(nil)
	loop := &mil.Block{Id: "loop", Params: []*mil.Temp{x}}
	loop.Body = &mil.Done{T: &mil.BlockCall{B: loop, As: []mil.Atom{x}}}

	caller := &mil.Block{
		Id:   "caller",
		Body: &mil.Done{T: &mil.BlockCall{B: loop, As: []mil.Atom{&mil.Word{Val: 1}}}},
	}
	p := &mil.Program{Defns: []mil.Defn{loop, caller}}
	o.InlinePass(p)

	bc, ok := finalTail(caller.Body).(*mil.BlockCall)
	if !ok || bc.B != loop {
		t.Errorf("recursive callee was inlined: %s", caller.Body)
	}
}

func TestKnownConsSpecialisationShared(t *testing.T) {
	o, ctx := newOpt()
	just, _ := maybeCfuns()
	f := &mil.Prim{Id: "f", Pure: false}

	pm := ctx.FreshTemp(nil)
	sel := ctx.FreshTemp(nil)
	callee := &mil.Block{
		Id:     "callee",
		Params: []*mil.Temp{pm},
		Body: &mil.Bind{
			Vs:   []*mil.Temp{sel},
			T:    &mil.Sel{C: just, N: 0, A: pm},
			Rest: &mil.Done{T: &mil.PrimCall{P: f, As: []mil.Atom{sel}}},
		},
	}

	mkCaller := func(id string, val int64) *mil.Block {
		v := ctx.FreshTemp(nil)
		return &mil.Block{
			Id: id,
			Body: &mil.Bind{
				Vs:   []*mil.Temp{v},
				T:    &mil.DataAlloc{C: just, As: []mil.Atom{&mil.Word{Val: val}}},
				Rest: &mil.Done{T: &mil.BlockCall{B: callee, As: []mil.Atom{v}}},
			},
		}
	}
	c1 := mkCaller("c1", 1)
	c2 := mkCaller("c2", 2)
	p := &mil.Program{Defns: []mil.Defn{callee, c1, c2}}
	o.FlowPass(p)

	bc1, ok1 := finalTail(c1.Body).(*mil.BlockCall)
	bc2, ok2 := finalTail(c2.Body).(*mil.BlockCall)
	if !ok1 || !ok2 {
		t.Fatalf("calls not specialised: %s / %s", c1.Body, c2.Body)
	}
	if bc1.B == callee || bc2.B == callee {
		t.Fatalf("calls still target the generic callee")
	}
	if bc1.B != bc2.B {
		t.Errorf("equal patterns produced distinct derived callees")
	}
	if w, ok := bc1.As[0].(*mil.Word); !ok || w.Val != 1 {
		t.Errorf("derived call receives %s, want the field 1", bc1.As[0])
	}
}

func TestAllUnknownDeclines(t *testing.T) {
	o, ctx := newOpt()

	pm := ctx.FreshTemp(nil)
	callee := &mil.Block{
		Id:     "callee",
		Params: []*mil.Temp{pm},
		Body:   &mil.Done{T: &mil.Return{As: []mil.Atom{pm}}},
	}
	arg := ctx.FreshTemp(nil)
	caller := &mil.Block{
		Id:     "caller",
		Params: []*mil.Temp{arg},
		Body:   &mil.Done{T: &mil.BlockCall{B: callee, As: []mil.Atom{arg}}},
	}
	p := &mil.Program{Defns: []mil.Defn{callee, caller}}

	if _, ok := o.specialiseBlockCall(callee, []mil.Atom{arg}, Facts{}); ok {
		t.Errorf("specialisation with no known constructors should decline")
	}
	_ = p
}
