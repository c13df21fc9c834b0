package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
	"github.com/sarchlab/alphatx/models"
)

// cmov copies B into rc unless ra (or its low bit) satisfies skip, the
// inverse of the move condition.
func cmov(skip ir.Cond, lowBit bool) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		a := c.Read(opRa(inst))
		if lowBit {
			a = c.andConst(a, 1)
		}

		l := c.b.NewLabel()
		c.b.BrCond(skip, a, ir.Const(0), l)
		c.b.Mov(dst, c.OperandB(inst))
		c.b.SetLabel(l)

		return Continue
	}
}

// amask clears the bits of B that name extensions the model implements.
// The 2106x family predates AMASK and returns B unchanged.
func amask(c *Context, inst *insts.Instruction) Termination {
	dst, ok := c.Dest(opRc(inst))
	if !ok {
		return Continue
	}

	if c.model.ImplVer == models.ImplVer2106x {
		c.b.Mov(dst, c.OperandB(inst))
		return Continue
	}

	c.b.And(dst, c.OperandB(inst), ir.Const(^uint64(c.model.Features)))

	return Continue
}

func implver(c *Context, inst *insts.Instruction) Termination {
	if dst, ok := c.Dest(opRc(inst)); ok {
		c.b.MovI(dst, uint64(c.model.ImplVer))
	}
	return Continue
}

func intLogicTable() map[uint16]entry {
	return map[uint16]entry{
		0x00: leaf("and", arith((*ir.Builder).And, 0)),
		0x08: leaf("bic", arith((*ir.Builder).AndC, 0)),
		0x14: leaf("cmovlbs", cmov(ir.CondEQ, true)),
		0x16: leaf("cmovlbc", cmov(ir.CondNE, true)),
		0x20: leaf("bis", arith((*ir.Builder).Or, 0)),
		0x24: leaf("cmoveq", cmov(ir.CondNE, false)),
		0x26: leaf("cmovne", cmov(ir.CondEQ, false)),
		0x28: leaf("ornot", arith((*ir.Builder).OrC, 0)),
		0x40: leaf("xor", arith((*ir.Builder).Xor, 0)),
		0x44: leaf("cmovlt", cmov(ir.CondGE, false)),
		0x46: leaf("cmovge", cmov(ir.CondLT, false)),
		0x48: leaf("eqv", arith((*ir.Builder).Eqv, 0)),
		0x61: leaf("amask", amask),
		0x64: leaf("cmovle", cmov(ir.CondGT, false)),
		0x66: leaf("cmovgt", cmov(ir.CondLE, false)),
		0x6C: leaf("implver", implver),
	}
}
