package types

import "testing"

func testEnv() *TyconEnv { return NewTyconEnv(32) }

func intCon() *DataName { return &DataName{Id: "Int", KindVal: Star} }

func TestSynonymLevels(t *testing.T) {
	env := testEnv()
	intTy := Con(intCon())

	// type Id a = a at level 0; type Wrap a = Id a at level 1.
	idSyn := &Synonym{Id: "Id", KindVal: MakeKFun(Star, Star), Arity: 1, Level: 0, Expansion: TGen{Index: 0}}
	wrapSyn := &Synonym{
		Id: "Wrap", KindVal: MakeKFun(Star, Star), Arity: 1, Level: 1,
		Expansion: Ap(Con(idSyn), TGen{Index: 0}),
	}
	env.Declare(idSyn)
	env.Declare(wrapSyn)

	wrapped := Ap(Con(wrapSyn), intTy)
	if !Same(wrapped, intTy) {
		t.Errorf("Same(Wrap Int, Int) = false, want true")
	}
	if !Same(Ap(Con(idSyn), intTy), intTy) {
		t.Errorf("Same(Id Int, Int) = false, want true")
	}

	ts := NewTypeSet()
	c1 := ts.Canon(wrapped)
	c2 := ts.Canon(intTy)
	if c1 != c2 {
		t.Errorf("canon(Wrap Int) and canon(Int) are distinct representatives")
	}
}

func TestSameStructural(t *testing.T) {
	listCon := &DataName{Id: "List", KindVal: MakeKFun(Star, Star)}
	ic := intCon()

	tests := []struct {
		name string
		t1   Type
		t2   Type
		want bool
	}{
		{"identical constructors", Con(ic), Con(ic), true},
		{"distinct constructors", Con(ic), Con(&DataName{Id: "Bool"}), false},
		{"equal applications", Ap(Con(listCon), Con(ic)), Ap(Con(listCon), Con(ic)), true},
		{"nat literals by value", TNat{Val: 8}, TNat{Val: 8}, true},
		{"nat literals differ", TNat{Val: 8}, TNat{Val: 16}, false},
		{"lab literals", TLab{Sym: "x"}, TLab{Sym: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Same(tt.t1, tt.t2); got != tt.want {
				t.Errorf("Same(%s, %s) = %v, want %v", tt.t1, tt.t2, got, tt.want)
			}
		})
	}
}

func TestSameCanonAgree(t *testing.T) {
	listCon := &DataName{Id: "List", KindVal: MakeKFun(Star, Star)}
	ic := intCon()
	ts := NewTypeSet()

	pairs := []struct {
		name string
		t1   Type
		t2   Type
	}{
		{"constructor", Con(ic), Con(ic)},
		{"application", Ap(Con(listCon), Con(ic)), Ap(Con(listCon), Con(ic))},
		{"nested", Ap(Con(listCon), Ap(Con(listCon), Con(ic))), Ap(Con(listCon), Ap(Con(listCon), Con(ic)))},
	}
	for _, tt := range pairs {
		t.Run(tt.name, func(t *testing.T) {
			same := Same(tt.t1, tt.t2)
			ptrEq := ts.Canon(tt.t1) == ts.Canon(tt.t2)
			if same != ptrEq {
				t.Errorf("Same = %v but canonical pointer equality = %v", same, ptrEq)
			}
		})
	}
}

func TestUnify(t *testing.T) {
	ic := intCon()
	listCon := &DataName{Id: "List", KindVal: MakeKFun(Star, Star)}

	t.Run("binds a variable", func(t *testing.T) {
		v := &TVar{Num: 1, KindVal: Star}
		if err := Unify(v, Con(ic)); err != nil {
			t.Fatalf("Unify: %v", err)
		}
		if !Same(v, Con(ic)) {
			t.Errorf("variable did not resolve to Int")
		}
	})

	t.Run("symmetric and idempotent", func(t *testing.T) {
		v := &TVar{Num: 2, KindVal: Star}
		a := Ap(Con(listCon), v)
		b := Ap(Con(listCon), Con(ic))
		if err := Unify(a, b); err != nil {
			t.Fatalf("Unify forward: %v", err)
		}
		if err := Unify(b, a); err != nil {
			t.Errorf("Unify backward after success: %v", err)
		}
	})

	t.Run("mismatch", func(t *testing.T) {
		err := Unify(Con(ic), Con(&DataName{Id: "Bool"}))
		if _, ok := err.(*MismatchError); !ok {
			t.Errorf("got %v, want *MismatchError", err)
		}
	})

	t.Run("occurs check", func(t *testing.T) {
		v := &TVar{Num: 3, KindVal: Star}
		err := Unify(v, Ap(Con(listCon), v))
		if _, ok := err.(*OccursError); !ok {
			t.Errorf("got %v, want *OccursError", err)
		}
	})

	t.Run("kind mismatch", func(t *testing.T) {
		v := &TVar{Num: 4, KindVal: MakeKFun(Star, Star)}
		err := Unify(v, Con(ic))
		if _, ok := err.(*KindError); !ok {
			t.Errorf("got %v, want *KindError", err)
		}
	})
}

func TestMatchOneDirectional(t *testing.T) {
	ic := intCon()
	v := &TVar{Num: 1, KindVal: Star}

	// Receiver-side variable binds.
	if err := Match(v, Con(ic)); err != nil {
		t.Fatalf("Match: %v", err)
	}

	// A variable on the other side must not bind.
	w := &TVar{Num: 2, KindVal: Star}
	if err := Match(Con(ic), w); err == nil {
		t.Errorf("Match bound a variable on the non-receiver side")
	}
	if w.Bound != nil {
		t.Errorf("non-receiver variable was mutated")
	}
}

func TestBitSize(t *testing.T) {
	env := testEnv()
	tests := []struct {
		name string
		typ  Type
		want uint64
		ok   bool
	}{
		{"Bit 8", Ap(Con(env.BitCon), TNat{Val: 8}), 8, true},
		{"Ix 8", Ap(Con(env.IxCon), TNat{Val: 8}), 3, true},
		{"Ix 9", Ap(Con(env.IxCon), TNat{Val: 9}), 4, true},
		{"Word", Con(env.WordCon), 32, true},
		{"Flag", Con(env.FlagCon), 1, true},
		{"pair of bits", Ap(Con(env.Tuple(2)), Ap(Con(env.BitCon), TNat{Val: 4}), Con(env.FlagCon)), 5, true},
		{"data type", Con(intCon()), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BitSize(tt.typ, env)
			if ok != tt.ok || got != tt.want {
				t.Errorf("BitSize(%s) = %d, %v; want %d, %v", tt.typ, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestByteSize(t *testing.T) {
	env := testEnv()
	got, ok := ByteSize(Ap(Con(env.BitCon), TNat{Val: 12}), env, 4)
	if !ok || got != 2 {
		t.Errorf("ByteSize(Bit 12) = %d, %v; want 2, true", got, ok)
	}
	got, ok = ByteSize(Con(intCon()), env, 4)
	if !ok || got != 4 {
		t.Errorf("ByteSize(Int) = %d, %v; want pointer size 4", got, ok)
	}
}

func TestBitPat(t *testing.T) {
	env := testEnv()

	pat, ok := BitPatOf(Ap(Con(env.IxCon), TNat{Val: 5}), env)
	if !ok {
		t.Fatalf("BitPatOf(Ix 5) has no pattern")
	}
	if pat.Width() != 3 {
		t.Fatalf("width = %d, want 3", pat.Width())
	}
	for v := uint64(0); v < 8; v++ {
		want := v < 5
		if pat.Accepts(v) != want {
			t.Errorf("Accepts(%d) = %v, want %v", v, pat.Accepts(v), want)
		}
	}

	all, ok := BitPatOf(Ap(Con(env.BitCon), TNat{Val: 4}), env)
	if !ok || all.Width() != 4 || !all.Accepts(15) {
		t.Errorf("Bit 4 should accept every 4-bit pattern")
	}
}

func TestGeneralize(t *testing.T) {
	listCon := &DataName{Id: "List", KindVal: MakeKFun(Star, Star)}
	v := &TVar{Num: 1, KindVal: Star}
	s := Generalize(Ap(Con(listCon), v))
	if len(s.Kinds) != 1 {
		t.Fatalf("quantified %d variables, want 1", len(s.Kinds))
	}
	ic := intCon()
	inst, err := s.InstantiateWith([]Type{Con(ic)})
	if err != nil {
		t.Fatalf("InstantiateWith: %v", err)
	}
	if !Same(inst, Ap(Con(listCon), Con(ic))) {
		t.Errorf("instantiation = %s, want List Int", inst)
	}
}
