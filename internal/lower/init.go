package lower

import (
	"fmt"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/pearProgrammr/mil-tools/internal/mil"
)

// InitVarMap threads the initialiser list through the init function:
// a chain of (topLevel, index, local) bindings that lets later
// initialisers read earlier results without re-evaluating their
// defining tails.
type InitVarMap struct {
	prev  *InitVarMap
	top   *mil.TopLevel
	index int
	local value.Value
}

// Extend records one initialised component. The receiver may be nil.
func (m *InitVarMap) Extend(top *mil.TopLevel, index int, local value.Value) *InitVarMap {
	return &InitVarMap{prev: m, top: top, index: index, local: local}
}

// Lookup finds the local holding an already-initialised component.
func (m *InitVarMap) Lookup(top *mil.TopLevel, index int) (value.Value, bool) {
	for e := m; e != nil; e = e.prev {
		if e.top == top && e.index == index {
			return e.local, true
		}
	}
	return nil, false
}

// emitStatic lowers a static top-level to a private constant with a
// bitcast alias to the generic object pointer type.
func (l *Lowerer) emitStatic(top *mil.TopLevel) error {
	tm := l.TMap
	switch t := top.T.(type) {
	case *mil.DataAlloc:
		layout := tm.DataLayout(len(t.As))
		fields := make([]constant.Constant, len(t.As)+1)
		fields[0] = constant.NewInt(tm.Word(), int64(t.C.Num))
		for i, a := range t.As {
			c, err := l.staticAtom(a)
			if err != nil {
				return err
			}
			fields[i+1] = c
		}
		l.addStatic(top, 0, layout, fields)
		return nil

	case *mil.ClosAlloc:
		layout := tm.ClosureLayout(len(t.As))
		fields := make([]constant.Constant, len(t.As)+1)
		fields[0] = constant.NewBitCast(l.funcs[t.K], tm.ObjPtr())
		for i, a := range t.As {
			c, err := l.staticAtom(a)
			if err != nil {
				return err
			}
			fields[i+1] = c
		}
		l.addStatic(top, 0, layout, fields)
		return nil

	case *mil.Return:
		for i, a := range t.As {
			c, err := l.staticAtom(a)
			if err != nil {
				return err
			}
			l.statics[topKey{top: top, index: i}] = c
		}
		return nil
	}
	return fmt.Errorf("top-level %s marked static but its tail is %s", top.DefnId(), top.T)
}

func (l *Lowerer) addStatic(top *mil.TopLevel, index int, layout *lltypes.StructType, fields []constant.Constant) {
	g := l.M.NewGlobalDef(l.freshName(top.Lhs[index]), constant.NewStruct(layout, fields...))
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	alias := l.M.NewAlias(top.Lhs[index], constant.NewBitCast(g, l.TMap.ObjPtr()))
	l.statics[topKey{top: top, index: index}] = alias
}

// staticAtom lowers an atom of a static allocator to a constant.
func (l *Lowerer) staticAtom(a mil.Atom) (constant.Constant, error) {
	tm := l.TMap
	switch a := a.(type) {
	case *mil.Word:
		return constant.NewIntToPtr(constant.NewInt(tm.Word(), a.Val), tm.ObjPtr()), nil
	case *mil.ConAtom:
		return l.conStatic(a.C), nil
	case *mil.TopDef:
		c, ok := l.statics[topKey{top: a.Top, index: a.Index}]
		if !ok {
			return nil, fmt.Errorf("static reference %s lowered before its definition", a)
		}
		return c, nil
	}
	return nil, fmt.Errorf("non-static atom %s in a static allocator", a)
}

// declareCells creates a mutable global per component of a runtime
// top-level.
func (l *Lowerer) declareCells(top *mil.TopLevel) {
	for i, lhs := range top.Lhs {
		g := l.M.NewGlobalDef(lhs, constant.NewNull(l.TMap.ObjPtr()))
		l.cells[topKey{top: top, index: i}] = g
	}
}

// emitInit builds the ordered init function, evaluating each runtime
// top-level's defining tail once and storing the results into the
// cells. Later initialisers reuse earlier locals through the
// InitVarMap.
func (l *Lowerer) emitInit(defns []mil.Defn) error {
	fn := l.M.NewFunc("mil_init", lltypes.Void)
	fl := newFnLowerer(l, fn)
	blk := fn.NewBlock("entry")

	var ivm *InitVarMap
	for _, d := range defns {
		top, ok := d.(*mil.TopLevel)
		if !ok || top.IsStatic {
			continue
		}
		fl.initVars = ivm
		vals, err := fl.tailValues(blk, top.T)
		if err != nil {
			return err
		}
		if len(vals) != len(top.Lhs) {
			return fmt.Errorf("initialiser %s produced %d values for %d components", top.DefnId(), len(vals), len(top.Lhs))
		}
		for i, v := range vals {
			blk.NewStore(v, l.cells[topKey{top: top, index: i}])
			ivm = ivm.Extend(top, i, v)
		}
	}
	blk.NewRet(nil)
	return nil
}
