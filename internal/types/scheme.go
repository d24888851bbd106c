package types

import (
	"fmt"
	"strings"
)

// Scheme is a universally quantified type. TGen indices in the body
// refer to positions of the Kinds vector.
type Scheme struct {
	Kinds []Kind
	Body  Type

	// Gens records the variables Generalize abstracted, position for
	// position with Kinds. The specialiser uses them to substitute
	// concrete instantiations back into the definition the scheme was
	// inferred for.
	Gens []*TVar
}

// MonoScheme wraps an unquantified type.
func MonoScheme(t Type) *Scheme { return &Scheme{Body: t} }

// IsMonomorphic reports whether the scheme binds no variables.
func (s *Scheme) IsMonomorphic() bool { return len(s.Kinds) == 0 }

// Instantiate replaces the quantified variables with fresh ones
// minted by the supplied function.
func (s *Scheme) Instantiate(fresh func(Kind) *TVar) Type {
	if len(s.Kinds) == 0 {
		return s.Body
	}
	args := make([]Type, len(s.Kinds))
	for i, k := range s.Kinds {
		args[i] = fresh(k)
	}
	return instGen(s.Body, args)
}

// InstantiateWith replaces the quantified variables with the given
// argument types, used by the specialiser when the instantiation is
// dictated by a call site.
func (s *Scheme) InstantiateWith(args []Type) (Type, error) {
	if len(args) != len(s.Kinds) {
		return nil, fmt.Errorf("scheme expects %d type arguments, got %d", len(s.Kinds), len(args))
	}
	for i, k := range s.Kinds {
		if !k.Same(args[i].Kind()) {
			return nil, &KindError{Left: k, Right: args[i].Kind()}
		}
	}
	return instGen(s.Body, args), nil
}

func (s *Scheme) String() string {
	if len(s.Kinds) == 0 {
		return s.Body.String()
	}
	vars := make([]string, len(s.Kinds))
	for i, k := range s.Kinds {
		vars[i] = fmt.Sprintf("(g%d :: %s)", i, k)
	}
	return fmt.Sprintf("forall %s. %s", strings.Join(vars, " "), s.Body)
}

// Generalize quantifies the unbound variables of t, in first-use
// order.
func Generalize(t Type) *Scheme {
	var gens []*TVar
	var kinds []Kind
	index := make(map[*TVar]int)
	var walk func(Type) Type
	walk = func(t Type) Type {
		switch t := Resolve(t).(type) {
		case *TVar:
			i, ok := index[t]
			if !ok {
				i = len(gens)
				index[t] = i
				gens = append(gens, t)
				kinds = append(kinds, t.Kind())
			}
			return TGen{Index: i}
		case *TAp:
			return &TAp{Fun: walk(t.Fun), Arg: walk(t.Arg)}
		default:
			return t
		}
	}
	body := walk(t)
	return &Scheme{Kinds: kinds, Body: body, Gens: gens}
}

// ApplyVars rebuilds t with the given variables replaced. Bound
// variables resolve first, so the map only needs entries for the
// variables being instantiated.
func ApplyVars(t Type, m map[*TVar]Type) Type {
	switch t := Resolve(t).(type) {
	case *TVar:
		if r, ok := m[t]; ok {
			return r
		}
		return t
	case *TAp:
		fun := ApplyVars(t.Fun, m)
		arg := ApplyVars(t.Arg, m)
		if fun == t.Fun && arg == t.Arg {
			return t
		}
		return &TAp{Fun: fun, Arg: arg}
	default:
		return t
	}
}

// UnboundVars collects the unbound variables of t in first-use order.
func UnboundVars(t Type, acc []*TVar) []*TVar {
	switch t := Resolve(t).(type) {
	case *TVar:
		for _, v := range acc {
			if v == t {
				return acc
			}
		}
		return append(acc, t)
	case *TAp:
		acc = UnboundVars(t.Fun, acc)
		return UnboundVars(t.Arg, acc)
	default:
		return acc
	}
}

// AllocType describes an allocator: the types of the stored
// (closure-captured) components and the type of the callable result.
// Like Scheme, TGen indices refer to the Kinds vector.
type AllocType struct {
	Kinds  []Kind
	Stored []Type
	Result Type
}

// InstantiateWith instantiates the quantified variables at the given
// arguments, returning the stored component types and result type.
func (a *AllocType) InstantiateWith(args []Type) ([]Type, Type, error) {
	if len(args) != len(a.Kinds) {
		return nil, nil, fmt.Errorf("alloc type expects %d type arguments, got %d", len(a.Kinds), len(args))
	}
	stored := make([]Type, len(a.Stored))
	for i, t := range a.Stored {
		stored[i] = instGen(t, args)
	}
	return stored, instGen(a.Result, args), nil
}

// SelectStored keeps only the stored components whose position is
// marked in keep. Unused-argument elimination filters a closure's
// declared layout through the same bitmap that filters its parameter
// list.
func (a *AllocType) SelectStored(keep []bool) *AllocType {
	stored := make([]Type, 0, len(a.Stored))
	for i, t := range a.Stored {
		if i < len(keep) && keep[i] {
			stored = append(stored, t)
		}
	}
	return &AllocType{Kinds: a.Kinds, Stored: stored, Result: a.Result}
}

func (a *AllocType) String() string {
	parts := make([]string, len(a.Stored))
	for i, t := range a.Stored {
		parts[i] = t.String()
	}
	return fmt.Sprintf("{%s} %s", strings.Join(parts, ", "), a.Result)
}
