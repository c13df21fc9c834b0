package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
)

// memAccess moves data between a register and guest memory. fp selects
// the floating register bank for the register side.
type memAccess struct {
	fp   bool
	emit func(c *Context, reg, addr ir.Value)
}

func (m memAccess) operand(inst *insts.Instruction) Operand {
	if m.fp {
		return opFa(inst)
	}
	return opRa(inst)
}

// address returns rb + disp, aligned down to a quadword when clear is set.
func (c *Context) address(rb Operand, disp int64, clear bool) ir.Value {
	if rb.IsZero() {
		if clear {
			disp &^= 7
		}
		return ir.ConstInt(disp)
	}

	t := c.Temp()
	c.b.Add(t, c.Read(rb), ir.ConstInt(disp))
	if clear {
		c.b.And(t, t, ir.Const(^uint64(7)))
	}
	return t
}

func intLoad(w ir.Width, signed bool) memAccess {
	return memAccess{emit: func(c *Context, reg, addr ir.Value) {
		c.b.Load(reg, addr, w, signed, c.mode.MemIndex)
	}}
}

// lockedLoad records the address in the lock global before loading.
func lockedLoad(w ir.Width) memAccess {
	return memAccess{emit: func(c *Context, reg, addr ir.Value) {
		c.b.Mov(Lock(), addr)
		c.b.Load(reg, addr, w, w == ir.W32, c.mode.MemIndex)
	}}
}

// fpLoad loads w bits and converts them from the memory format with
// helper. An empty helper loads the register image directly.
func fpLoad(helper string, w ir.Width) memAccess {
	return memAccess{fp: true, emit: func(c *Context, reg, addr ir.Value) {
		if helper == "" {
			c.b.Load(reg, addr, w, false, c.mode.MemIndex)
			return
		}

		t := c.Temp()
		c.b.Load(t, addr, w, false, c.mode.MemIndex)
		c.b.Call(helper, reg, t)
	}}
}

func intStore(w ir.Width) memAccess {
	return memAccess{emit: func(c *Context, reg, addr ir.Value) {
		c.b.Store(reg, addr, w, c.mode.MemIndex)
	}}
}

// fpStore converts the register to the memory format with helper and
// stores w bits of the result.
func fpStore(helper string, w ir.Width) memAccess {
	return memAccess{fp: true, emit: func(c *Context, reg, addr ir.Value) {
		if helper == "" {
			c.b.Store(reg, addr, w, c.mode.MemIndex)
			return
		}

		t := c.Temp()
		c.b.Call(helper, t, reg)
		c.b.Store(t, addr, w, c.mode.MemIndex)
	}}
}

// load emits nothing at all for a zero destination, not even the access.
func load(m memAccess, clear bool) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(m.operand(inst))
		if !ok {
			return Continue
		}

		addr := c.address(opRb(inst), int64(inst.Disp16), clear)
		m.emit(c, dst, addr)

		return Continue
	}
}

// store writes a zero source as the constant 0.
func store(m memAccess, clear bool) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		addr := c.address(opRb(inst), int64(inst.Disp16), clear)
		m.emit(c, c.Read(m.operand(inst)), addr)

		return Continue
	}
}

// storeConditional stores ra only when the lock global still holds the
// address, sets ra to 1 on success and 0 on failure, and clears the lock.
func storeConditional(w ir.Width) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		ra := opRa(inst)
		addr := c.address(opRb(inst), int64(inst.Disp16), false)
		dst, ok := c.Dest(ra)

		lFail := c.b.NewLabel()
		lDone := c.b.NewLabel()

		c.b.BrCond(ir.CondNE, Lock(), addr, lFail)
		c.b.Store(c.Read(ra), addr, w, c.mode.MemIndex)
		if ok {
			c.b.MovI(dst, 1)
		}
		c.b.Br(lDone)
		c.b.SetLabel(lFail)
		if ok {
			c.b.MovI(dst, 0)
		}
		c.b.SetLabel(lDone)
		c.b.MovI(Lock(), ^uint64(0))

		return Continue
	}
}

func lda(c *Context, inst *insts.Instruction) Termination {
	if dst, ok := c.Dest(opRa(inst)); ok {
		c.b.Add(dst, c.Read(opRb(inst)), ir.ConstInt(int64(inst.Disp16)))
	}
	return Continue
}

func ldah(c *Context, inst *insts.Instruction) Termination {
	if dst, ok := c.Dest(opRa(inst)); ok {
		c.b.Add(dst, c.Read(opRb(inst)), ir.ConstInt(int64(inst.Disp16)<<16))
	}
	return Continue
}
