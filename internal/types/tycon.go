package types

import "fmt"

// Tycon is a type constructor head: a data type name, the tuple or
// arrow constructor, a synonym, or a primitive with bit-level
// behavior. Tycons are interned by the TyconEnv, so heads compare by
// pointer identity.
type Tycon interface {
	Name() string
	KindOf() Kind
}

// DataName is a user-declared algebraic data type.
type DataName struct {
	Id      string
	KindVal Kind
	Arity   int
}

func (d *DataName) Name() string { return d.Id }
func (d *DataName) KindOf() Kind {
	if d.KindVal == nil {
		return Star
	}
	return d.KindVal
}

// TupleCon is the n-ary tuple constructor.
type TupleCon struct {
	N int
}

func (t *TupleCon) Name() string { return fmt.Sprintf("Tuple%d", t.N) }
func (t *TupleCon) KindOf() Kind {
	ks := make([]Kind, t.N+1)
	for i := range ks {
		ks[i] = Star
	}
	return MakeKFun(ks...)
}

// ArrowCon is the function arrow.
type ArrowCon struct{}

func (a *ArrowCon) Name() string { return "->" }
func (a *ArrowCon) KindOf() Kind { return MakeKFun(Star, Star, Star) }

// Synonym is a type synonym with an expansion. Level breaks expansion
// ties during equality: of two synonym heads, the one with the
// greater level is expanded first, so lower-level synonyms encode the
// user's preferred normal form.
type Synonym struct {
	Id        string
	KindVal   Kind
	Arity     int
	Level     int
	Expansion Type // body with TGen indices for the parameters
}

func (s *Synonym) Name() string { return s.Id }
func (s *Synonym) KindOf() Kind {
	if s.KindVal == nil {
		return Star
	}
	return s.KindVal
}

// Expand instantiates the synonym at the given arguments. It returns
// false when there are not enough arguments to saturate the synonym
// (partial applications do not expand).
func (s *Synonym) Expand(args []Type) (Type, bool) {
	if len(args) < s.Arity {
		return nil, false
	}
	body := instGen(s.Expansion, args[:s.Arity])
	return applySpine(body, args[s.Arity:]), true
}

// PrimCon is a built-in type constructor with specialised size and
// bit-pattern behavior (Bit, Ix, ARef, Word, ...).
type PrimCon struct {
	Id      string
	KindVal Kind
}

func (p *PrimCon) Name() string { return p.Id }
func (p *PrimCon) KindOf() Kind {
	if p.KindVal == nil {
		return Star
	}
	return p.KindVal
}

// TyconEnv interns the type constructors of a program and carries the
// target word size consulted by size queries.
type TyconEnv struct {
	WordBits uint64
	cons     map[string]Tycon
	tuples   map[int]*TupleCon

	Arrow   *ArrowCon
	BitCon  *PrimCon
	IxCon   *PrimCon
	ARefCon *PrimCon
	WordCon *PrimCon
	FlagCon *PrimCon
}

// NewTyconEnv creates an environment populated with the primitive
// constructors for the given word size.
func NewTyconEnv(wordBits uint64) *TyconEnv {
	env := &TyconEnv{
		WordBits: wordBits,
		cons:     make(map[string]Tycon),
		tuples:   make(map[int]*TupleCon),
		Arrow:    &ArrowCon{},
		BitCon:   &PrimCon{Id: "Bit", KindVal: MakeKFun(Nat, Star)},
		IxCon:    &PrimCon{Id: "Ix", KindVal: MakeKFun(Nat, Star)},
		ARefCon:  &PrimCon{Id: "ARef", KindVal: MakeKFun(Area, Star)},
		WordCon:  &PrimCon{Id: "Word", KindVal: Star},
		FlagCon:  &PrimCon{Id: "Flag", KindVal: Star},
	}
	for _, p := range []*PrimCon{env.BitCon, env.IxCon, env.ARefCon, env.WordCon, env.FlagCon} {
		env.cons[p.Id] = p
	}
	return env
}

// Tuple interns the n-ary tuple constructor.
func (e *TyconEnv) Tuple(n int) *TupleCon {
	tc, ok := e.tuples[n]
	if !ok {
		tc = &TupleCon{N: n}
		e.tuples[n] = tc
	}
	return tc
}

// TupleOf builds the tuple type of the given components.
func (e *TyconEnv) TupleOf(ts ...Type) Type {
	return Ap(Con(e.Tuple(len(ts))), ts...)
}

// FunOf builds the function type dom -> cod.
func (e *TyconEnv) FunOf(dom, cod Type) Type {
	return Ap(Con(e.Arrow), dom, cod)
}

// WordType is the machine word type.
func (e *TyconEnv) WordType() Type { return Con(e.WordCon) }

// Lookup finds an interned constructor by name.
func (e *TyconEnv) Lookup(name string) (Tycon, bool) {
	tc, ok := e.cons[name]
	return tc, ok
}

// Declare interns a constructor. Declaring the same name twice is the
// MultipleDeclarations error; the caller turns the false return into a
// diagnostic.
func (e *TyconEnv) Declare(tc Tycon) bool {
	if _, dup := e.cons[tc.Name()]; dup {
		return false
	}
	e.cons[tc.Name()] = tc
	return true
}
