package lower

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/pearProgrammr/mil-tools/internal/mil"
)

// fnLowerer emits one function's CFG.
type fnLowerer struct {
	l  *Lowerer
	fn *ir.Func

	vals     map[*mil.Temp]value.Value
	initVars *InitVarMap
	blockNum int
}

func newFnLowerer(l *Lowerer, fn *ir.Func) *fnLowerer {
	return &fnLowerer{l: l, fn: fn, vals: make(map[*mil.Temp]value.Value)}
}

func (fl *fnLowerer) newBlock(stem string) *ir.Block {
	fl.blockNum++
	return fl.fn.NewBlock(fmt.Sprintf("%s.%d", stem, fl.blockNum))
}

// atom resolves an atom to an LLVM value inside blk.
func (fl *fnLowerer) atom(blk *ir.Block, a mil.Atom) (value.Value, error) {
	switch a := a.(type) {
	case *mil.Temp:
		v, ok := fl.vals[a]
		if !ok {
			return nil, fmt.Errorf("temporary %s has no lowered value", a)
		}
		return v, nil
	case *mil.Word:
		return constant.NewIntToPtr(constant.NewInt(fl.l.TMap.Word(), a.Val), fl.l.TMap.ObjPtr()), nil
	case *mil.ConAtom:
		return fl.l.conStatic(a.C), nil
	case *mil.TopDef:
		key := topKey{top: a.Top, index: a.Index}
		if c, ok := fl.l.statics[key]; ok {
			return c, nil
		}
		if fl.initVars != nil {
			if local, ok := fl.initVars.Lookup(a.Top, a.Index); ok {
				return local, nil
			}
		}
		cell, ok := fl.l.cells[key]
		if !ok {
			return nil, fmt.Errorf("top-level %s has neither constant nor cell", a)
		}
		return blk.NewLoad(fl.l.TMap.ObjPtr(), cell), nil
	}
	return nil, fmt.Errorf("unsupported atom %s", a)
}

func (fl *fnLowerer) atoms(blk *ir.Block, as []mil.Atom) ([]value.Value, error) {
	out := make([]value.Value, len(as))
	for i, a := range as {
		v, err := fl.atom(blk, a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// tailValues emits a tail as straight-line code and returns its
// result values.
func (fl *fnLowerer) tailValues(blk *ir.Block, t mil.Tail) ([]value.Value, error) {
	tm := fl.l.TMap
	switch t := t.(type) {
	case *mil.Return:
		return fl.atoms(blk, t.As)

	case *mil.Enter:
		f, err := fl.atom(blk, t.F)
		if err != nil {
			return nil, err
		}
		args, err := fl.atoms(blk, t.As)
		if err != nil {
			return nil, err
		}
		// The code pointer sits at offset 0 of the closure layout.
		layout := tm.ClosureLayout(0)
		clo := blk.NewBitCast(f, lltypes.NewPointer(layout))
		slot := blk.NewGetElementPtr(layout, clo,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 0))
		code := blk.NewLoad(tm.ObjPtr(), slot)
		sig := enterSig(tm, len(t.As))
		fptr := blk.NewBitCast(code, lltypes.NewPointer(sig))
		callArgs := append([]value.Value{f}, args...)
		return []value.Value{blk.NewCall(fptr, callArgs...)}, nil

	case *mil.BlockCall:
		fn := fl.l.funcs[t.B]
		args, err := fl.atoms(blk, t.As)
		if err != nil {
			return nil, err
		}
		call := blk.NewCall(fn, args...)
		return fl.callResults(blk, call, fn), nil

	case *mil.PrimCall:
		fn := fl.l.primFunc(t.P, len(t.As))
		args, err := fl.atoms(blk, t.As)
		if err != nil {
			return nil, err
		}
		return []value.Value{blk.NewCall(fn, args...)}, nil

	case *mil.Sel:
		src, err := fl.atom(blk, t.A)
		if err != nil {
			return nil, err
		}
		layout := tm.DataLayout(t.C.Arity)
		obj := blk.NewBitCast(src, lltypes.NewPointer(layout))
		slot := blk.NewGetElementPtr(layout, obj,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(t.N+1)))
		return []value.Value{blk.NewLoad(tm.ObjPtr(), slot)}, nil

	case *mil.DataAlloc:
		layout := tm.DataLayout(len(t.As))
		obj, raw := fl.alloc(blk, layout)
		tag := blk.NewGetElementPtr(layout, obj,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 0))
		blk.NewStore(constant.NewInt(tm.Word(), int64(t.C.Num)), tag)
		if err := fl.storeFields(blk, layout, obj, t.As); err != nil {
			return nil, err
		}
		return []value.Value{raw}, nil

	case *mil.ClosAlloc:
		layout := tm.ClosureLayout(len(t.As))
		obj, raw := fl.alloc(blk, layout)
		code := blk.NewGetElementPtr(layout, obj,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 0))
		blk.NewStore(constant.NewBitCast(fl.l.funcs[t.K], tm.ObjPtr()), code)
		if err := fl.storeFields(blk, layout, obj, t.As); err != nil {
			return nil, err
		}
		return []value.Value{raw}, nil
	}
	return nil, fmt.Errorf("unsupported tail %s", t)
}

// alloc emits the external alloc call, sizing the layout with the
// getelementptr-from-null idiom. It returns both the typed object
// pointer and the raw object pointer.
func (fl *fnLowerer) alloc(blk *ir.Block, layout *lltypes.StructType) (value.Value, value.Value) {
	tm := fl.l.TMap
	null := constant.NewNull(lltypes.NewPointer(layout))
	szPtr := blk.NewGetElementPtr(layout, null, constant.NewInt(lltypes.I32, 1))
	sz := blk.NewPtrToInt(szPtr, tm.Word())
	raw := blk.NewCall(fl.l.allocFn, sz)
	obj := blk.NewBitCast(raw, lltypes.NewPointer(layout))
	return obj, raw
}

func (fl *fnLowerer) storeFields(blk *ir.Block, layout *lltypes.StructType, obj value.Value, as []mil.Atom) error {
	for i, a := range as {
		v, err := fl.atom(blk, a)
		if err != nil {
			return err
		}
		slot := blk.NewGetElementPtr(layout, obj,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(i+1)))
		blk.NewStore(v, slot)
	}
	return nil
}

// callResults splits a call's result according to the callee's return
// type.
func (fl *fnLowerer) callResults(blk *ir.Block, call value.Value, fn *ir.Func) []value.Value {
	switch rt := fn.Sig.RetType.(type) {
	case *lltypes.VoidType:
		return nil
	case *lltypes.StructType:
		out := make([]value.Value, len(rt.Fields))
		for i := range rt.Fields {
			out[i] = blk.NewExtractValue(call, uint64(i))
		}
		return out
	default:
		return []value.Value{call}
	}
}

// enterSig is the function type a closure's code pointer is cast to:
// the closure pointer followed by the invocation arguments.
func enterSig(tm *TypeMap, argc int) *lltypes.FuncType {
	params := make([]lltypes.Type, argc+1)
	for i := range params {
		params[i] = tm.ObjPtr()
	}
	return lltypes.NewFunc(tm.ObjPtr(), params...)
}

// code lowers a code sequence into blk, growing the CFG as Case and
// If introduce successors.
func (fl *fnLowerer) code(blk *ir.Block, c mil.Code) error {
	tm := fl.l.TMap
	switch c := c.(type) {
	case *mil.Bind:
		vals, err := fl.tailValues(blk, c.T)
		if err != nil {
			return err
		}
		if len(vals) != len(c.Vs) {
			return fmt.Errorf("bind arity mismatch: %d values for %d temps", len(vals), len(c.Vs))
		}
		for i, v := range c.Vs {
			if !v.IsWildcard() {
				fl.vals[v] = vals[i]
			}
		}
		return fl.code(blk, c.Rest)

	case *mil.Done:
		switch t := c.T.(type) {
		case *mil.Return:
			vals, err := fl.atoms(blk, t.As)
			if err != nil {
				return err
			}
			return fl.ret(blk, vals)
		case *mil.BlockCall:
			return fl.tailCall(blk, fl.l.funcs[t.B], t.As)
		default:
			vals, err := fl.tailValues(blk, c.T)
			if err != nil {
				return err
			}
			return fl.ret(blk, vals)
		}

	case *mil.Case:
		scrut, err := fl.atom(blk, c.A)
		if err != nil {
			return err
		}
		tagLayout := tm.DataLayout(0)
		obj := blk.NewBitCast(scrut, lltypes.NewPointer(tagLayout))
		tagSlot := blk.NewGetElementPtr(tagLayout, obj,
			constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, 0))
		tag := blk.NewLoad(tm.Word(), tagSlot)

		defBlk := fl.newBlock("default")
		if c.Def != nil {
			if err := fl.tailCall(defBlk, fl.l.funcs[c.Def.B], c.Def.As); err != nil {
				return err
			}
		} else {
			defBlk.NewUnreachable()
		}

		cases := make([]*ir.Case, len(c.Alts))
		for i, alt := range c.Alts {
			altBlk := fl.newBlock("alt")
			layout := tm.DataLayout(alt.C.Arity)
			altObj := altBlk.NewBitCast(scrut, lltypes.NewPointer(layout))
			fields := make([]value.Value, alt.C.Arity)
			for j := 0; j < alt.C.Arity; j++ {
				slot := altBlk.NewGetElementPtr(layout, altObj,
					constant.NewInt(lltypes.I32, 0), constant.NewInt(lltypes.I32, int64(j+1)))
				fields[j] = altBlk.NewLoad(tm.ObjPtr(), slot)
			}
			if err := fl.tailCallValues(altBlk, fl.l.funcs[alt.B], fields); err != nil {
				return err
			}
			cases[i] = ir.NewCase(constant.NewInt(tm.Word(), int64(alt.C.Num)), altBlk)
		}
		blk.NewSwitch(tag, defBlk, cases...)
		return nil

	case *mil.If:
		cond, err := fl.atom(blk, c.A)
		if err != nil {
			return err
		}
		asInt := blk.NewPtrToInt(cond, tm.Word())
		isTrue := blk.NewICmp(enum.IPredNE, asInt, constant.NewInt(tm.Word(), 0))
		tBlk := fl.newBlock("then")
		fBlk := fl.newBlock("else")
		if err := fl.tailCall(tBlk, fl.l.funcs[c.T.B], c.T.As); err != nil {
			return err
		}
		if err := fl.tailCall(fBlk, fl.l.funcs[c.F.B], c.F.As); err != nil {
			return err
		}
		blk.NewCondBr(isTrue, tBlk, fBlk)
		return nil
	}
	return fmt.Errorf("unsupported code form %T", c)
}

// ret terminates blk, aggregating multi-value results into a struct.
func (fl *fnLowerer) ret(blk *ir.Block, vals []value.Value) error {
	switch rt := fl.fn.Sig.RetType.(type) {
	case *lltypes.VoidType:
		blk.NewRet(nil)
		return nil
	case *lltypes.StructType:
		if len(vals) != len(rt.Fields) {
			return fmt.Errorf("return arity mismatch: %d values for %d fields", len(vals), len(rt.Fields))
		}
		var agg value.Value = constant.NewUndef(rt)
		for i, v := range vals {
			agg = blk.NewInsertValue(agg, v, uint64(i))
		}
		blk.NewRet(agg)
		return nil
	default:
		if len(vals) != 1 {
			return fmt.Errorf("return arity mismatch: %d values for scalar return", len(vals))
		}
		blk.NewRet(vals[0])
		return nil
	}
}

// tailCall transfers control out of the CFG: the call is marked tail
// and its result is returned.
func (fl *fnLowerer) tailCall(blk *ir.Block, fn *ir.Func, as []mil.Atom) error {
	args, err := fl.atoms(blk, as)
	if err != nil {
		return err
	}
	return fl.tailCallValues(blk, fn, args)
}

func (fl *fnLowerer) tailCallValues(blk *ir.Block, fn *ir.Func, args []value.Value) error {
	call := blk.NewCall(fn, args...)
	call.Tail = enum.TailTail
	if _, void := fl.fn.Sig.RetType.(*lltypes.VoidType); void {
		blk.NewRet(nil)
		return nil
	}
	blk.NewRet(call)
	return nil
}
