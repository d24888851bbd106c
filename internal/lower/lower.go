// Package lower emits a MIL program as an LLVM module. Each Block
// and ClosureDefn becomes a function with a CFG rooted at its entry;
// control transfers out of the CFG are tail calls or returns.
// Allocators expand to calls of the external alloc symbol; static
// top-levels become private constants with bitcast aliases, and the
// remaining top-levels are filled in by an ordered init function.
package lower

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"github.com/pearProgrammr/mil-tools/internal/mil"
)

// Lowerer accumulates the module under construction.
type Lowerer struct {
	M    *ir.Module
	TMap *TypeMap

	allocFn *ir.Func
	funcs   map[mil.Defn]*ir.Func
	prims   map[*mil.Prim]*ir.Func

	// statics maps a static top-level component to the constant that
	// represents it; cells maps a runtime top-level component to its
	// mutable global.
	statics map[topKey]constant.Constant
	cells   map[topKey]*ir.Global

	// cons interns the singleton objects of nullary constructors.
	cons map[*mil.Cfun]constant.Constant

	nameNum int
}

type topKey struct {
	top   *mil.TopLevel
	index int
}

// New creates a lowerer with the alloc symbol declared.
func New(tmap *TypeMap) *Lowerer {
	m := ir.NewModule()
	l := &Lowerer{
		M:       m,
		TMap:    tmap,
		funcs:   make(map[mil.Defn]*ir.Func),
		prims:   make(map[*mil.Prim]*ir.Func),
		statics: make(map[topKey]constant.Constant),
		cells:   make(map[topKey]*ir.Global),
		cons:    make(map[*mil.Cfun]constant.Constant),
	}
	l.allocFn = m.NewFunc("alloc", tmap.ObjPtr(), ir.NewParam("size", tmap.Word()))
	return l
}

// freshName mints a module-private symbol name.
func (l *Lowerer) freshName(stem string) string {
	l.nameNum++
	return fmt.Sprintf("%s.%d", stem, l.nameNum)
}

// Lower emits the definitions, which must arrive leaves-first. The
// topological precondition is asserted for top-level initialisers,
// whose ordering the init function depends on.
func (l *Lowerer) Lower(defns []mil.Defn) (*ir.Module, error) {
	if err := assertTopOrder(defns); err != nil {
		return nil, err
	}

	// Declare every function first so mutually recursive bodies can
	// reference each other.
	for _, d := range defns {
		switch d := d.(type) {
		case *mil.Block:
			l.declareBlock(d)
		case *mil.ClosureDefn:
			l.declareClosure(d)
		case *mil.External:
			l.M.NewFunc(d.Id, l.TMap.ObjPtr())
		}
	}

	// Static top-levels become constants; the rest get mutable cells.
	for _, d := range defns {
		if top, ok := d.(*mil.TopLevel); ok {
			if top.IsStatic {
				if err := l.emitStatic(top); err != nil {
					return nil, err
				}
			} else {
				l.declareCells(top)
			}
		}
	}

	for _, d := range defns {
		switch d := d.(type) {
		case *mil.Block:
			if err := l.emitBlockBody(d); err != nil {
				return nil, errors.Wrapf(err, "lowering block %s", d.Id)
			}
		case *mil.ClosureDefn:
			if err := l.emitClosureBody(d); err != nil {
				return nil, errors.Wrapf(err, "lowering closure %s", d.Id)
			}
		}
	}

	if err := l.emitInit(defns); err != nil {
		return nil, errors.Wrap(err, "lowering global initialisers")
	}
	return l.M, nil
}

// assertTopOrder checks that every top-level's top-level dependencies
// precede it in the list.
func assertTopOrder(defns []mil.Defn) error {
	pos := make(map[mil.Defn]int, len(defns))
	for i, d := range defns {
		pos[d] = i
	}
	for i, d := range defns {
		top, ok := d.(*mil.TopLevel)
		if !ok {
			continue
		}
		for _, dep := range top.Deps() {
			if _, isTop := dep.(*mil.TopLevel); !isTop {
				continue
			}
			j, known := pos[dep]
			if !known || j >= i {
				return fmt.Errorf("definitions are not topologically sorted: %s before %s", d.DefnId(), dep.DefnId())
			}
		}
	}
	return nil
}

// resultArity computes the statically known result arity of a block,
// following forwarding tails; recursion defaults to one.
func resultArity(b *mil.Block, visiting map[*mil.Block]bool) int {
	if visiting[b] {
		return 1
	}
	visiting[b] = true
	defer delete(visiting, b)

	c := b.Body
	for {
		switch cc := c.(type) {
		case *mil.Bind:
			c = cc.Rest
		case *mil.Done:
			switch t := cc.T.(type) {
			case *mil.Return:
				return len(t.As)
			case *mil.BlockCall:
				return resultArity(t.B, visiting)
			default:
				return 1
			}
		case *mil.Case:
			if len(cc.Alts) > 0 {
				return resultArity(cc.Alts[0].B, visiting)
			}
			if cc.Def != nil {
				return resultArity(cc.Def.B, visiting)
			}
			return 1
		case *mil.If:
			return resultArity(cc.T.B, visiting)
		default:
			return 1
		}
	}
}

// retType maps a result arity onto a function return type.
func (l *Lowerer) retType(arity int) lltypes.Type {
	switch {
	case arity == 0:
		return lltypes.Void
	case arity == 1:
		return l.TMap.ObjPtr()
	default:
		fields := make([]lltypes.Type, arity)
		for i := range fields {
			fields[i] = l.TMap.ObjPtr()
		}
		return lltypes.NewStruct(fields...)
	}
}

func (l *Lowerer) declareBlock(b *mil.Block) {
	params := make([]*ir.Param, len(b.Params))
	for i, pm := range b.Params {
		params[i] = ir.NewParam(pm.String(), l.TMap.ObjPtr())
	}
	fn := l.M.NewFunc(b.Id, l.retType(resultArity(b, map[*mil.Block]bool{})), params...)
	fn.Linkage = enum.LinkagePrivate
	l.funcs[b] = fn
}

// declareClosure declares the entry function of a closure definition:
// the closure pointer plus the invocation arguments.
func (l *Lowerer) declareClosure(k *mil.ClosureDefn) {
	params := make([]*ir.Param, len(k.Args)+1)
	params[0] = ir.NewParam("clo", l.TMap.ObjPtr())
	for i, a := range k.Args {
		params[i+1] = ir.NewParam(a.String(), l.TMap.ObjPtr())
	}
	fn := l.M.NewFunc(k.Id, l.TMap.ObjPtr(), params...)
	fn.Linkage = enum.LinkagePrivate
	l.funcs[k] = fn
}

// conStatic interns the singleton object of a nullary constructor, so
// scrutinising one behaves like scrutinising any other allocation.
func (l *Lowerer) conStatic(c *mil.Cfun) constant.Constant {
	if x, ok := l.cons[c]; ok {
		return x
	}
	layout := l.TMap.DataLayout(0)
	g := l.M.NewGlobalDef(l.freshName(c.Id),
		constant.NewStruct(layout, constant.NewInt(l.TMap.Word(), int64(c.Num))))
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	x := constant.NewBitCast(g, l.TMap.ObjPtr())
	l.cons[c] = x
	return x
}

// primFunc declares a primitive on first use.
func (l *Lowerer) primFunc(p *mil.Prim, arity int) *ir.Func {
	if fn, ok := l.prims[p]; ok {
		return fn
	}
	params := make([]*ir.Param, arity)
	for i := range params {
		params[i] = ir.NewParam(fmt.Sprintf("a%d", i), l.TMap.ObjPtr())
	}
	fn := l.M.NewFunc(p.Id, l.TMap.ObjPtr(), params...)
	l.prims[p] = fn
	return fn
}

func (l *Lowerer) emitBlockBody(b *mil.Block) error {
	fn := l.funcs[b]
	fl := newFnLowerer(l, fn)
	for i, pm := range b.Params {
		fl.vals[pm] = fn.Params[i]
	}
	entry := fn.NewBlock("entry")
	return fl.code(entry, b.Body)
}

// emitClosureBody loads the stored parameters from offsets 1..N of
// the closure layout before lowering the tail; offset 0 holds the
// code pointer.
func (l *Lowerer) emitClosureBody(k *mil.ClosureDefn) error {
	fn := l.funcs[k]
	fl := newFnLowerer(l, fn)
	entry := fn.NewBlock("entry")

	layout := l.TMap.ClosureLayout(len(k.Params))
	clo := entry.NewBitCast(fn.Params[0], lltypes.NewPointer(layout))
	for i, pm := range k.Params {
		slot := entry.NewGetElementPtr(layout, clo,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(i+1)))
		fl.vals[pm] = entry.NewLoad(l.TMap.ObjPtr(), slot)
	}
	for i, a := range k.Args {
		fl.vals[a] = fn.Params[i+1]
	}
	return fl.code(entry, &mil.Done{T: k.Tail})
}
