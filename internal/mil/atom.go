package mil

import (
	"fmt"

	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Atom is a leaf operand: a temporary, a literal, a reference to a
// top-level value, or a constructor used as data. Atoms never have
// side effects.
type Atom interface {
	String() string
	atom()
}

// Temp is a variable binding introduced by a parameter or a Bind. The
// id "_" marks a wildcard: a binding position whose value is dead.
// Temps compare by pointer identity; Num disambiguates printed names.
type Temp struct {
	Id      string
	Num     int
	TypeVal types.Type
}

func (t *Temp) atom() {}
func (t *Temp) String() string {
	if t.Id == "_" {
		return "_"
	}
	return fmt.Sprintf("%s%d", t.Id, t.Num)
}

// IsWildcard reports whether this temp is a dead binding position.
func (t *Temp) IsWildcard() bool { return t.Id == "_" }

// Word is a machine-word literal.
type Word struct {
	Val int64
}

func (w *Word) atom()          {}
func (w *Word) String() string { return fmt.Sprintf("%d", w.Val) }

// TopDef references one component of a TopLevel definition.
type TopDef struct {
	Top   *TopLevel
	Index int
}

func (t *TopDef) atom() {}
func (t *TopDef) String() string {
	return t.Top.Lhs[t.Index]
}

// IsStatic reports whether the referenced top-level has been reduced
// to a static value by hoisting.
func (t *TopDef) IsStatic() bool { return t.Top.IsStatic }

// ConAtom is a nullary constructor used as a data value.
type ConAtom struct {
	C *Cfun
}

func (c *ConAtom) atom()          {}
func (c *ConAtom) String() string { return c.C.Id }

// Cfun describes a data constructor: its datatype, declaration-order
// tag, arity, and allocator type.
type Cfun struct {
	Id     string
	Num    int // tag, following declaration order
	Arity  int
	DataOf *types.DataName
	Alloc  *types.AllocType
}

func (c *Cfun) String() string { return c.Id }

// Prim describes a primitive operation. Pure primitives may be
// reordered and repeated; impure ones pin their position.
type Prim struct {
	Id   string
	Pure bool
	Sig  *types.Scheme
}

func (p *Prim) String() string { return p.Id }

// TempSet is a set of temporaries, used for free-variable and
// liveness bookkeeping.
type TempSet map[*Temp]struct{}

func (s TempSet) Add(t *Temp)       { s[t] = struct{}{} }
func (s TempSet) Remove(t *Temp)    { delete(s, t) }
func (s TempSet) Has(t *Temp) bool  { _, ok := s[t]; return ok }

// addAtom records a read of a into the set. Only temps count;
// wildcards never appear as reads.
func (s TempSet) addAtom(a Atom) {
	if t, ok := a.(*Temp); ok {
		s.Add(t)
	}
}
