package mil

import (
	"fmt"
	"strings"
)

// Tail is a terminal expression producing a tuple of atoms. The seven
// forms are Return, Enter, BlockCall, PrimCall, Sel, DataAlloc, and
// ClosAlloc.
type Tail interface {
	String() string

	// Deps appends the definitions this tail mentions.
	Deps(ds []Defn) []Defn

	// UsedVars adds the temps this tail reads. Calls to a definition
	// with a used-args bitmap contribute only the arguments at used
	// positions.
	UsedVars(vs TempSet)

	// Liveness adds this tail's reads to the live set flowing
	// backwards from the successor.
	Liveness(vs TempSet)

	// Summary is an alpha-stable hash of the tail's shape.
	Summary() uint32

	// AlphaTail compares with another tail of any form under the two
	// positional environments.
	AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool

	// Subst rebuilds the tail with its atoms resolved through s.
	Subst(s *TempSubst) Tail

	// IsRepeatable reports whether evaluating twice gives the same
	// result with no effects; repeatable tails may become facts.
	IsRepeatable() bool

	// IsPure reports freedom from side effects.
	IsPure() bool
}

func atomsString(as []Atom) string {
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Return yields its atoms.
type Return struct {
	As []Atom
}

func (t *Return) String() string { return fmt.Sprintf("return [%s]", atomsString(t.As)) }
func (t *Return) Deps(ds []Defn) []Defn {
	return depsAtoms(ds, t.As)
}
func (t *Return) UsedVars(vs TempSet) {
	for _, a := range t.As {
		vs.addAtom(a)
	}
}
func (t *Return) Liveness(vs TempSet) { t.UsedVars(vs) }
func (t *Return) Summary() uint32 {
	return hashAtoms(hashAdd(hashInit(), 1), t.As)
}
func (t *Return) AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool {
	o, ok := other.(*Return)
	return ok && alphaAtoms(le, t.As, re, o.As)
}
func (t *Return) Subst(s *TempSubst) Tail { return &Return{As: s.applyAll(t.As)} }
func (t *Return) IsRepeatable() bool      { return true }
func (t *Return) IsPure() bool            { return true }

// Enter applies a closure to arguments.
type Enter struct {
	F  Atom
	As []Atom
}

func (t *Enter) String() string {
	return fmt.Sprintf("%s @ [%s]", t.F, atomsString(t.As))
}
func (t *Enter) Deps(ds []Defn) []Defn {
	ds = depsAtom(ds, t.F)
	return depsAtoms(ds, t.As)
}
func (t *Enter) UsedVars(vs TempSet) {
	vs.addAtom(t.F)
	for _, a := range t.As {
		vs.addAtom(a)
	}
}
func (t *Enter) Liveness(vs TempSet) { t.UsedVars(vs) }
func (t *Enter) Summary() uint32 {
	h := hashAdd(hashInit(), 2)
	h = hashAtom(h, t.F)
	return hashAtoms(h, t.As)
}
func (t *Enter) AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool {
	o, ok := other.(*Enter)
	return ok && alphaAtom(le, t.F, re, o.F) && alphaAtoms(le, t.As, re, o.As)
}
func (t *Enter) Subst(s *TempSubst) Tail {
	return &Enter{F: s.Apply(t.F), As: s.applyAll(t.As)}
}
func (t *Enter) IsRepeatable() bool { return false }
func (t *Enter) IsPure() bool       { return false }

// BlockCall jumps to a block with arguments.
type BlockCall struct {
	B  *Block
	As []Atom
}

func (t *BlockCall) String() string {
	return fmt.Sprintf("%s[%s]", t.B.Id, atomsString(t.As))
}
func (t *BlockCall) Deps(ds []Defn) []Defn {
	ds = addDep(ds, t.B)
	return depsAtoms(ds, t.As)
}
func (t *BlockCall) UsedVars(vs TempSet) {
	for i, a := range t.As {
		if t.B.ArgUsed(i) {
			vs.addAtom(a)
		}
	}
}
func (t *BlockCall) Liveness(vs TempSet) { t.UsedVars(vs) }
func (t *BlockCall) Summary() uint32 {
	h := hashAdd(hashInit(), 3)
	h = hashString(h, t.B.Id)
	return hashAtoms(h, t.As)
}
func (t *BlockCall) AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool {
	o, ok := other.(*BlockCall)
	return ok && t.B == o.B && alphaAtoms(le, t.As, re, o.As)
}
func (t *BlockCall) Subst(s *TempSubst) Tail {
	return &BlockCall{B: t.B, As: s.applyAll(t.As)}
}
func (t *BlockCall) IsRepeatable() bool { return false }
func (t *BlockCall) IsPure() bool       { return false }

// PrimCall invokes a primitive.
type PrimCall struct {
	P  *Prim
	As []Atom
}

func (t *PrimCall) String() string {
	return fmt.Sprintf("%s((%s))", t.P.Id, atomsString(t.As))
}
func (t *PrimCall) Deps(ds []Defn) []Defn { return depsAtoms(ds, t.As) }
func (t *PrimCall) UsedVars(vs TempSet) {
	for _, a := range t.As {
		vs.addAtom(a)
	}
}
func (t *PrimCall) Liveness(vs TempSet) { t.UsedVars(vs) }
func (t *PrimCall) Summary() uint32 {
	h := hashAdd(hashInit(), 4)
	h = hashString(h, t.P.Id)
	return hashAtoms(h, t.As)
}
func (t *PrimCall) AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool {
	o, ok := other.(*PrimCall)
	return ok && t.P == o.P && alphaAtoms(le, t.As, re, o.As)
}
func (t *PrimCall) Subst(s *TempSubst) Tail {
	return &PrimCall{P: t.P, As: s.applyAll(t.As)}
}
func (t *PrimCall) IsRepeatable() bool { return t.P.Pure }
func (t *PrimCall) IsPure() bool       { return t.P.Pure }

// Sel projects field N of constructor C out of an allocated value.
type Sel struct {
	C *Cfun
	N int
	A Atom
}

func (t *Sel) String() string {
	return fmt.Sprintf("%s %d %s", t.C.Id, t.N, t.A)
}
func (t *Sel) Deps(ds []Defn) []Defn { return depsAtom(ds, t.A) }
func (t *Sel) UsedVars(vs TempSet)   { vs.addAtom(t.A) }
func (t *Sel) Liveness(vs TempSet)   { t.UsedVars(vs) }
func (t *Sel) Summary() uint32 {
	h := hashAdd(hashInit(), 5)
	h = hashString(h, t.C.Id)
	h = hashAdd(h, uint32(t.N))
	return hashAtom(h, t.A)
}
func (t *Sel) AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool {
	o, ok := other.(*Sel)
	return ok && t.C == o.C && t.N == o.N && alphaAtom(le, t.A, re, o.A)
}
func (t *Sel) Subst(s *TempSubst) Tail {
	return &Sel{C: t.C, N: t.N, A: s.Apply(t.A)}
}
func (t *Sel) IsRepeatable() bool { return true }
func (t *Sel) IsPure() bool       { return true }

// DataAlloc allocates a data value for constructor C.
type DataAlloc struct {
	C  *Cfun
	As []Atom
}

func (t *DataAlloc) String() string {
	return fmt.Sprintf("%s(%s)", t.C.Id, atomsString(t.As))
}
func (t *DataAlloc) Deps(ds []Defn) []Defn { return depsAtoms(ds, t.As) }
func (t *DataAlloc) UsedVars(vs TempSet) {
	for _, a := range t.As {
		vs.addAtom(a)
	}
}
func (t *DataAlloc) Liveness(vs TempSet) { t.UsedVars(vs) }
func (t *DataAlloc) Summary() uint32 {
	h := hashAdd(hashInit(), 6)
	h = hashString(h, t.C.Id)
	return hashAtoms(h, t.As)
}
func (t *DataAlloc) AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool {
	o, ok := other.(*DataAlloc)
	return ok && t.C == o.C && alphaAtoms(le, t.As, re, o.As)
}
func (t *DataAlloc) Subst(s *TempSubst) Tail {
	return &DataAlloc{C: t.C, As: s.applyAll(t.As)}
}
func (t *DataAlloc) IsRepeatable() bool { return true }
func (t *DataAlloc) IsPure() bool       { return true }

// ClosAlloc allocates a closure for definition K, capturing the
// stored arguments.
type ClosAlloc struct {
	K  *ClosureDefn
	As []Atom
}

func (t *ClosAlloc) String() string {
	return fmt.Sprintf("%s{%s}", t.K.Id, atomsString(t.As))
}
func (t *ClosAlloc) Deps(ds []Defn) []Defn {
	ds = addDep(ds, t.K)
	return depsAtoms(ds, t.As)
}
func (t *ClosAlloc) UsedVars(vs TempSet) {
	for i, a := range t.As {
		if t.K.ArgUsed(i) {
			vs.addAtom(a)
		}
	}
}
func (t *ClosAlloc) Liveness(vs TempSet) { t.UsedVars(vs) }
func (t *ClosAlloc) Summary() uint32 {
	h := hashAdd(hashInit(), 7)
	h = hashString(h, t.K.Id)
	return hashAtoms(h, t.As)
}
func (t *ClosAlloc) AlphaTail(le *AlphaEnv, other Tail, re *AlphaEnv) bool {
	o, ok := other.(*ClosAlloc)
	return ok && t.K == o.K && alphaAtoms(le, t.As, re, o.As)
}
func (t *ClosAlloc) Subst(s *TempSubst) Tail {
	return &ClosAlloc{K: t.K, As: s.applyAll(t.As)}
}
func (t *ClosAlloc) IsRepeatable() bool { return true }
func (t *ClosAlloc) IsPure() bool       { return true }

func depsAtom(ds []Defn, a Atom) []Defn {
	if td, ok := a.(*TopDef); ok {
		ds = addDep(ds, td.Top)
	}
	return ds
}

func depsAtoms(ds []Defn, as []Atom) []Defn {
	for _, a := range as {
		ds = depsAtom(ds, a)
	}
	return ds
}

func addDep(ds []Defn, d Defn) []Defn {
	for _, e := range ds {
		if e == d {
			return ds
		}
	}
	return append(ds, d)
}
