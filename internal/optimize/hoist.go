package optimize

import "github.com/pearProgrammr/mil-tools/internal/mil"

// Static-allocator hoisting. An allocator whose every argument is
// static (a literal, a constructor constant, or a reference to an
// already-hoisted top-level) is extracted into a fresh TopLevel; the
// original tail becomes a Return of the new reference. The outer
// fixpoint loop collapses nested constants.

// HoistPass extracts static allocators from every body and marks
// top-levels that have become static.
func (o *Optimizer) HoistPass(p *mil.Program) {
	var hoisted []mil.Defn

	extract := func(t mil.Tail) mil.Tail {
		if !staticAlloc(t) {
			return t
		}
		top := &mil.TopLevel{Lhs: []string{o.Ctx.FreshTopId()}, T: t, IsStatic: true}
		hoisted = append(hoisted, top)
		o.note()
		return &mil.Return{As: []mil.Atom{&mil.TopDef{Top: top, Index: 0}}}
	}

	for _, d := range p.Defns {
		switch d := d.(type) {
		case *mil.Block:
			d.Body = mil.MapTails(d.Body, extract)
		case *mil.ClosureDefn:
			d.Tail = extract(d.Tail)
		case *mil.TopLevel:
			// A top-level is already at module scope; when its own
			// tail is a static allocator it is marked rather than
			// re-extracted.
			if !d.IsStatic && staticTopLevel(d.T) {
				d.IsStatic = true
				o.note()
			}
		}
	}
	p.Defns = append(p.Defns, hoisted...)
}

// staticAlloc reports whether t is an allocator with all-static
// arguments.
func staticAlloc(t mil.Tail) bool {
	switch t := t.(type) {
	case *mil.DataAlloc:
		return allStatic(t.As)
	case *mil.ClosAlloc:
		return allStatic(t.As)
	}
	return false
}

// staticTopLevel additionally accepts a Return whose atoms are all
// static as a static definition.
func staticTopLevel(t mil.Tail) bool {
	if staticAlloc(t) {
		return true
	}
	if ret, ok := t.(*mil.Return); ok {
		return allStatic(ret.As)
	}
	return false
}

func allStatic(as []mil.Atom) bool {
	for _, a := range as {
		if !staticAtom(a) {
			return false
		}
	}
	return true
}

func staticAtom(a mil.Atom) bool {
	switch a := a.(type) {
	case *mil.Word:
		return true
	case *mil.ConAtom:
		return true
	case *mil.TopDef:
		return a.Top.IsStatic
	}
	return false
}
