package lower

import (
	lltypes "github.com/llir/llvm/ir/types"

	"github.com/pearProgrammr/mil-tools/internal/reptran"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

// TypeMap specialises the shared TypeSet for lowering: it memoises
// the LLVM type of each canonical MIL type. Bit-level types no wider
// than a word keep their integer width; everything else is the
// generic object pointer.
type TypeMap struct {
	TSet *types.TypeSet
	TEnv *types.TyconEnv
	Tg   *reptran.Target

	objPtr *lltypes.PointerType
	wordTy *lltypes.IntType
	cache  map[types.Type]lltypes.Type
}

func NewTypeMap(tset *types.TypeSet, tenv *types.TyconEnv, tg *reptran.Target) *TypeMap {
	return &TypeMap{
		TSet:   tset,
		TEnv:   tenv,
		Tg:     tg,
		objPtr: lltypes.NewPointer(lltypes.I8),
		wordTy: lltypes.NewInt(tg.WordBits),
		cache:  make(map[types.Type]lltypes.Type),
	}
}

// ObjPtr is the generic object pointer type.
func (tm *TypeMap) ObjPtr() *lltypes.PointerType { return tm.objPtr }

// Word is the target integer word type.
func (tm *TypeMap) Word() *lltypes.IntType { return tm.wordTy }

// Lower maps a MIL type to its LLVM type.
func (tm *TypeMap) Lower(t types.Type) lltypes.Type {
	if t == nil {
		return tm.objPtr
	}
	canon := tm.TSet.Canon(t)
	if lt, ok := tm.cache[canon]; ok {
		return lt
	}
	var lt lltypes.Type
	if bits, ok := types.BitSize(canon, tm.TEnv); ok && bits > 0 && bits <= tm.Tg.WordBits {
		lt = lltypes.NewInt(bits)
	} else {
		lt = tm.objPtr
	}
	tm.cache[canon] = lt
	return lt
}

// DataLayout is the in-memory shape of a data value: a tag word
// followed by the constructor's fields, each one object pointer.
func (tm *TypeMap) DataLayout(arity int) *lltypes.StructType {
	fields := make([]lltypes.Type, arity+1)
	fields[0] = tm.wordTy
	for i := 1; i <= arity; i++ {
		fields[i] = tm.objPtr
	}
	return lltypes.NewStruct(fields...)
}

// ClosureLayout is the in-memory shape of a closure: the code pointer
// at offset 0 followed by the stored components.
func (tm *TypeMap) ClosureLayout(stored int) *lltypes.StructType {
	fields := make([]lltypes.Type, stored+1)
	fields[0] = tm.objPtr
	for i := 1; i <= stored; i++ {
		fields[i] = tm.objPtr
	}
	return lltypes.NewStruct(fields...)
}
