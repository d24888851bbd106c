package mil

import (
	"fmt"
	"strings"
)

// Code is a sequence of monadic binds ending in a terminal: a Done
// tail, a Case dispatch, or an If branch.
type Code interface {
	String() string

	// UsedVars adds the temps free in this code.
	UsedVars(vs TempSet)

	// Deps appends the definitions mentioned anywhere in the code.
	Deps(ds []Defn) []Defn

	// Summary is an alpha-stable hash of the code's shape.
	Summary() uint32

	// AlphaCode compares with another code under the two positional
	// environments.
	AlphaCode(le *AlphaEnv, other Code, re *AlphaEnv) bool
}

// Bind evaluates a tail and binds its results: vs <- t; rest.
type Bind struct {
	Vs   []*Temp
	T    Tail
	Rest Code
}

func (c *Bind) String() string {
	vs := make([]string, len(c.Vs))
	for i, v := range c.Vs {
		vs[i] = v.String()
	}
	return fmt.Sprintf("[%s] <- %s; %s", strings.Join(vs, ", "), c.T, c.Rest)
}

func (c *Bind) UsedVars(vs TempSet) {
	c.Rest.UsedVars(vs)
	for _, v := range c.Vs {
		vs.Remove(v)
	}
	c.T.UsedVars(vs)
}

func (c *Bind) Deps(ds []Defn) []Defn {
	ds = c.T.Deps(ds)
	return c.Rest.Deps(ds)
}

func (c *Bind) Summary() uint32 {
	h := hashAdd(hashInit(), 11)
	h = hashAdd(h, uint32(len(c.Vs)))
	h = hashAdd(h, c.T.Summary())
	return hashAdd(h, c.Rest.Summary())
}

func (c *Bind) AlphaCode(le *AlphaEnv, other Code, re *AlphaEnv) bool {
	o, ok := other.(*Bind)
	if !ok || len(c.Vs) != len(o.Vs) {
		return false
	}
	if !c.T.AlphaTail(le, o.T, re) {
		return false
	}
	return c.Rest.AlphaCode(le.ExtendAll(c.Vs), o.Rest, re.ExtendAll(o.Vs))
}

// Done finishes the sequence with a tail.
type Done struct {
	T Tail
}

func (c *Done) String() string { return c.T.String() }

func (c *Done) UsedVars(vs TempSet) { c.T.UsedVars(vs) }

func (c *Done) Deps(ds []Defn) []Defn { return c.T.Deps(ds) }

func (c *Done) Summary() uint32 {
	return hashAdd(hashAdd(hashInit(), 12), c.T.Summary())
}

func (c *Done) AlphaCode(le *AlphaEnv, other Code, re *AlphaEnv) bool {
	o, ok := other.(*Done)
	return ok && c.T.AlphaTail(le, o.T, re)
}

// Alt is one alternative of a Case: on constructor C, jump to block B
// passing the constructor's fields as arguments.
type Alt struct {
	C *Cfun
	B *Block
}

// Case dispatches on the constructor of an allocated value.
// Alternatives are considered in lexical order; Def, when non-nil, is
// taken when no alternative matches.
type Case struct {
	A    Atom
	Alts []Alt
	Def  *BlockCall
}

func (c *Case) String() string {
	parts := make([]string, len(c.Alts))
	for i, alt := range c.Alts {
		parts[i] = fmt.Sprintf("%s -> %s", alt.C.Id, alt.B.Id)
	}
	s := fmt.Sprintf("case %s of %s", c.A, strings.Join(parts, " | "))
	if c.Def != nil {
		s += fmt.Sprintf(" | _ -> %s", c.Def)
	}
	return s
}

func (c *Case) UsedVars(vs TempSet) {
	vs.addAtom(c.A)
	if c.Def != nil {
		c.Def.UsedVars(vs)
	}
}

func (c *Case) Deps(ds []Defn) []Defn {
	ds = depsAtom(ds, c.A)
	for _, alt := range c.Alts {
		ds = addDep(ds, alt.B)
	}
	if c.Def != nil {
		ds = c.Def.Deps(ds)
	}
	return ds
}

func (c *Case) Summary() uint32 {
	h := hashAdd(hashInit(), 13)
	h = hashAtom(h, c.A)
	for _, alt := range c.Alts {
		h = hashString(h, alt.C.Id)
		h = hashString(h, alt.B.Id)
	}
	if c.Def != nil {
		h = hashAdd(h, c.Def.Summary())
	}
	return h
}

func (c *Case) AlphaCode(le *AlphaEnv, other Code, re *AlphaEnv) bool {
	o, ok := other.(*Case)
	if !ok || len(c.Alts) != len(o.Alts) {
		return false
	}
	if !alphaAtom(le, c.A, re, o.A) {
		return false
	}
	for i := range c.Alts {
		if c.Alts[i].C != o.Alts[i].C || c.Alts[i].B != o.Alts[i].B {
			return false
		}
	}
	if (c.Def == nil) != (o.Def == nil) {
		return false
	}
	if c.Def != nil && !c.Def.AlphaTail(le, o.Def, re) {
		return false
	}
	return true
}

// If branches on a boolean atom.
type If struct {
	A Atom
	T *BlockCall
	F *BlockCall
}

func (c *If) String() string {
	return fmt.Sprintf("if %s then %s else %s", c.A, c.T, c.F)
}

func (c *If) UsedVars(vs TempSet) {
	vs.addAtom(c.A)
	c.T.UsedVars(vs)
	c.F.UsedVars(vs)
}

func (c *If) Deps(ds []Defn) []Defn {
	ds = depsAtom(ds, c.A)
	ds = c.T.Deps(ds)
	return c.F.Deps(ds)
}

func (c *If) Summary() uint32 {
	h := hashAdd(hashInit(), 14)
	h = hashAtom(h, c.A)
	h = hashAdd(h, c.T.Summary())
	return hashAdd(h, c.F.Summary())
}

func (c *If) AlphaCode(le *AlphaEnv, other Code, re *AlphaEnv) bool {
	o, ok := other.(*If)
	if !ok {
		return false
	}
	return alphaAtom(le, c.A, re, o.A) &&
		c.T.AlphaTail(le, o.T, re) &&
		c.F.AlphaTail(le, o.F, re)
}
