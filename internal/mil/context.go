package mil

import (
	"strconv"

	"github.com/pearProgrammr/mil-tools/internal/types"
)

// Context mints the fresh identifiers a compilation needs. One
// context lives per compilation; creating a new one resets every
// counter, so multiple compilations can run in one process.
type Context struct {
	tempNum  int
	blockNum int
	closNum  int
	topNum   int
	tvarNum  int
}

func NewContext() *Context { return &Context{} }

// FreshTemp mints a temp with the given type.
func (c *Context) FreshTemp(ty types.Type) *Temp {
	c.tempNum++
	return &Temp{Id: "t", Num: c.tempNum, TypeVal: ty}
}

// FreshTempLike mints a temp sharing t's printed name stem and type.
func (c *Context) FreshTempLike(t *Temp) *Temp {
	if t.IsWildcard() {
		return t
	}
	c.tempNum++
	return &Temp{Id: t.Id, Num: c.tempNum, TypeVal: t.TypeVal}
}

// FreshBlockId mints a block name.
func (c *Context) FreshBlockId() string {
	c.blockNum++
	return fmtId("b", c.blockNum)
}

// FreshClosureId mints a closure definition name.
func (c *Context) FreshClosureId() string {
	c.closNum++
	return fmtId("k", c.closNum)
}

// FreshTopId mints a top-level name.
func (c *Context) FreshTopId() string {
	c.topNum++
	return fmtId("tl", c.topNum)
}

// FreshTVar mints a unification variable of the given kind.
func (c *Context) FreshTVar(k types.Kind) *types.TVar {
	c.tvarNum++
	return &types.TVar{Num: c.tvarNum, KindVal: k}
}

func fmtId(stem string, n int) string {
	return stem + strconv.Itoa(n)
}
