package mil

import (
	"fmt"
	"strings"

	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Defn is a top-level definition: a Block, a ClosureDefn, a TopLevel
// binding, or an External. Definitions refer to one another freely;
// passes never delete in place, they export a live-defn list instead.
type Defn interface {
	DefnId() string
	String() string
	Summary() uint32
	Deps() []Defn
}

// Block is a parameterised code sequence, callable by BlockCall.
type Block struct {
	Id     string
	Params []*Temp
	Body   Code

	// UsedArgs marks which parameters the body actually reads; nil
	// until the unused-argument analysis has run.
	UsedArgs []bool
	NumUsed  int

	Scheme *types.Scheme

	// Derived heads a linked list of specialised copies produced by
	// known-constructor specialisation; each copy records the pattern
	// it serves and links onward through NextDerived.
	Derived     *Block
	NextDerived *Block
	pat         []*Cfun
}

func (b *Block) DefnId() string { return b.Id }

func (b *Block) String() string {
	ps := make([]string, len(b.Params))
	for i, p := range b.Params {
		ps[i] = p.String()
	}
	return fmt.Sprintf("%s[%s] = %s", b.Id, strings.Join(ps, ", "), b.Body)
}

func (b *Block) Summary() uint32 {
	h := hashAdd(hashInit(), 21)
	h = hashAdd(h, uint32(len(b.Params)))
	return hashAdd(h, b.Body.Summary())
}

func (b *Block) Deps() []Defn { return b.Body.Deps(nil) }

// ArgUsed reports whether parameter i survives the unused-argument
// analysis. Before the analysis runs every position counts as used.
func (b *Block) ArgUsed(i int) bool {
	if b.UsedArgs == nil {
		return true
	}
	return i < len(b.UsedArgs) && b.UsedArgs[i]
}

// AlphaDefn compares two blocks up to renaming of parameters and
// bound temps.
func (b *Block) AlphaDefn(o *Block) bool {
	if len(b.Params) != len(o.Params) {
		return false
	}
	var le, re *AlphaEnv
	return b.Body.AlphaCode(le.ExtendAll(b.Params), o.Body, re.ExtendAll(o.Params))
}

// FindDerived returns the specialised copy serving pat, if one has
// been derived before.
func (b *Block) FindDerived(pat []*Cfun) *Block {
	for d := b.Derived; d != nil; d = d.NextDerived {
		if samePat(d.pat, pat) {
			return d
		}
	}
	return nil
}

// AddDerived records a specialised copy for pat.
func (b *Block) AddDerived(pat []*Cfun, d *Block) {
	d.pat = pat
	d.NextDerived = b.Derived
	b.Derived = d
}

// ClosureDefn defines how to enter a closure: Params are the stored
// (captured) components, Args the invocation arguments, and Tail the
// code entered when the closure is applied.
type ClosureDefn struct {
	Id     string
	Params []*Temp
	Args   []*Temp
	Tail   Tail

	Alloc *types.AllocType

	// UsedArgs marks which stored components the tail reads.
	UsedArgs []bool
	NumUsed  int

	Derived     *ClosureDefn
	NextDerived *ClosureDefn
	pat         []*Cfun
}

func (k *ClosureDefn) DefnId() string { return k.Id }

func (k *ClosureDefn) String() string {
	ps := make([]string, len(k.Params))
	for i, p := range k.Params {
		ps[i] = p.String()
	}
	as := make([]string, len(k.Args))
	for i, a := range k.Args {
		as[i] = a.String()
	}
	return fmt.Sprintf("%s{%s} [%s] = %s", k.Id, strings.Join(ps, ", "), strings.Join(as, ", "), k.Tail)
}

func (k *ClosureDefn) Summary() uint32 {
	h := hashAdd(hashInit(), 22)
	h = hashAdd(h, uint32(len(k.Params)))
	h = hashAdd(h, uint32(len(k.Args)))
	return hashAdd(h, k.Tail.Summary())
}

func (k *ClosureDefn) Deps() []Defn { return k.Tail.Deps(nil) }

// ArgUsed reports whether stored component i survives the
// unused-argument analysis.
func (k *ClosureDefn) ArgUsed(i int) bool {
	if k.UsedArgs == nil {
		return true
	}
	return i < len(k.UsedArgs) && k.UsedArgs[i]
}

// AlphaDefn compares two closure definitions up to renaming.
func (k *ClosureDefn) AlphaDefn(o *ClosureDefn) bool {
	if len(k.Params) != len(o.Params) || len(k.Args) != len(o.Args) {
		return false
	}
	var le, re *AlphaEnv
	le = le.ExtendAll(k.Params).ExtendAll(k.Args)
	re = re.ExtendAll(o.Params).ExtendAll(o.Args)
	return k.Tail.AlphaTail(le, o.Tail, re)
}

func (k *ClosureDefn) FindDerived(pat []*Cfun) *ClosureDefn {
	for d := k.Derived; d != nil; d = d.NextDerived {
		if samePat(d.pat, pat) {
			return d
		}
	}
	return nil
}

func (k *ClosureDefn) AddDerived(pat []*Cfun, d *ClosureDefn) {
	d.pat = pat
	d.NextDerived = k.Derived
	k.Derived = d
}

// TopLevel is a module-scope binding whose value tuple is produced by
// a tail at initialisation.
type TopLevel struct {
	Lhs []string
	T   Tail

	Scheme *types.Scheme

	// IsStatic is set once hoisting reduces the value to a literal or
	// constant allocator; a static top-level is immutable afterwards.
	IsStatic bool
}

func (t *TopLevel) DefnId() string { return strings.Join(t.Lhs, ",") }

func (t *TopLevel) String() string {
	return fmt.Sprintf("%s <- %s", t.DefnId(), t.T)
}

func (t *TopLevel) Summary() uint32 {
	h := hashAdd(hashInit(), 23)
	h = hashAdd(h, uint32(len(t.Lhs)))
	return hashAdd(h, t.T.Summary())
}

func (t *TopLevel) Deps() []Defn { return t.T.Deps(nil) }

// AlphaDefn compares the defining tails of two top-levels.
func (t *TopLevel) AlphaDefn(o *TopLevel) bool {
	if len(t.Lhs) != len(o.Lhs) {
		return false
	}
	return t.T.AlphaTail(nil, o.T, nil)
}

// External declares a symbol supplied by a collaborator.
type External struct {
	Id      string
	TypeVal types.Type
	KindVal types.Kind
}

func (e *External) DefnId() string  { return e.Id }
func (e *External) String() string  { return fmt.Sprintf("external %s :: %s", e.Id, e.TypeVal) }
func (e *External) Summary() uint32 { return hashString(hashAdd(hashInit(), 24), e.Id) }
func (e *External) Deps() []Defn    { return nil }

func samePat(a, b []*Cfun) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
