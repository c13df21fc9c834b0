package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
)

// pcLoad sets pc to the fallthrough address, or to the branch target when
// control reaches lTrue.
func (c *Context) pcLoad(disp int32, lTrue ir.Label) {
	lOver := c.b.NewLabel()

	c.b.MovI(PC(), c.pc)
	c.b.Br(lOver)
	c.b.SetLabel(lTrue)
	c.b.MovI(PC(), c.target(disp))
	c.b.SetLabel(lOver)
}

// fbcondInternal branches to lTrue when src cond 0.0 holds, with -0.0
// comparing equal to +0.0.
func (c *Context) fbcondInternal(cond ir.Cond, src ir.Value, lTrue ir.Label) {
	switch cond {
	case ir.CondLE, ir.CondGT:
		c.b.BrCond(cond, src, ir.Const(0), lTrue)

	case ir.CondEQ, ir.CondNE:
		c.b.BrCond(cond, c.andConst(src, signBit-1), ir.Const(0), lTrue)

	case ir.CondGE:
		c.b.BrCond(cond, src, ir.Const(0), lTrue)
		c.b.BrCond(ir.CondEQ, src, ir.Const(signBit), lTrue)

	case ir.CondLT:
		lFalse := c.b.NewLabel()
		c.b.BrCond(ir.CondEQ, src, ir.Const(signBit), lFalse)
		c.b.BrCond(cond, src, ir.Const(0), lTrue)
		c.b.SetLabel(lFalse)

	default:
		panic("fbcond: unsupported condition " + cond.String())
	}
}

func (c *Context) bcondOn(cond ir.Cond, a ir.Value, disp int32, lowBit bool) Termination {
	if lowBit {
		a = c.andConst(a, 1)
	}

	lTrue := c.b.NewLabel()
	c.b.BrCond(cond, a, ir.Const(0), lTrue)
	c.pcLoad(disp, lTrue)

	return ControlTransfer
}

// bcond branches on integer ra compared with zero, or on its low bit.
func bcond(cond ir.Cond, lowBit bool) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		return c.bcondOn(cond, c.Read(opRa(inst)), inst.Disp21, lowBit)
	}
}

// fbcond branches on floating fa compared with 0.0. fa == f31 reduces to
// the integer comparison of constant 0.
func fbcond(cond ir.Cond) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		fa := opFa(inst)
		if fa.IsZero() {
			return c.bcondOn(cond, ir.Const(0), inst.Disp21, false)
		}

		lTrue := c.b.NewLabel()
		c.fbcondInternal(cond, c.Read(fa), lTrue)
		c.pcLoad(inst.Disp21, lTrue)

		return ControlTransfer
	}
}

// branch implements BR and BSR, which differ only in the prediction hint.
func branch(c *Context, inst *insts.Instruction) Termination {
	if dst, ok := c.Dest(opRa(inst)); ok {
		c.b.MovI(dst, c.pc)
	}
	c.b.MovI(PC(), c.target(inst.Disp21))

	return ControlTransfer
}

// jump implements JMP, JSR, RET and JSR_COROUTINE. The target is read
// before ra receives the return address.
func jump(c *Context, inst *insts.Instruction) Termination {
	c.b.And(PC(), c.Read(opRb(inst)), ir.Const(^uint64(3)))
	if dst, ok := c.Dest(opRa(inst)); ok {
		c.b.MovI(dst, c.pc)
	}

	return ControlTransfer
}

func jumpTable() map[uint16]entry {
	return map[uint16]entry{
		0: leaf("jmp", jump),
		1: leaf("jsr", jump),
		2: leaf("ret", jump),
		3: leaf("jsr_coroutine", jump),
	}
}
