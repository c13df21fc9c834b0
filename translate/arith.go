package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
)

type binaryEmitter func(b *ir.Builder, dst, x, y ir.Value)

// arith emits rc = (ra << scale) op B.
func arith(op binaryEmitter, scale uint64) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		a := c.Read(opRa(inst))
		if scale != 0 {
			a = c.shlConst(a, scale)
		}
		op(c.b, dst, a, c.OperandB(inst))

		return Continue
	}
}

// checkedArith emits an overflow-trapping add, sub or mul.
func checkedArith(code ir.Opcode, w ir.Width) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		a := c.Read(opRa(inst))
		b := c.OperandB(inst)
		switch code {
		case ir.OpAddV:
			c.b.AddV(dst, a, b, w)
		case ir.OpSubV:
			c.b.SubV(dst, a, b, w)
		default:
			c.b.MulV(dst, a, b, w)
		}

		return Continue
	}
}

// helper3 calls a two-operand helper on ra and B.
func helper3(name string) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		c.b.Call(name, dst, c.Read(opRa(inst)), c.OperandB(inst))

		return Continue
	}
}

// compare sets rc to 1 when ra cond B holds, 0 otherwise.
func compare(cond ir.Cond) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		lTrue := c.b.NewLabel()
		lDone := c.b.NewLabel()

		c.b.BrCond(cond, c.Read(opRa(inst)), c.OperandB(inst), lTrue)
		c.b.MovI(dst, 0)
		c.b.Br(lDone)
		c.b.SetLabel(lTrue)
		c.b.MovI(dst, 1)
		c.b.SetLabel(lDone)

		return Continue
	}
}

func intArithTable() map[uint16]entry {
	return map[uint16]entry{
		0x00: leaf("addl", arith((*ir.Builder).Add32, 0)),
		0x02: leaf("s4addl", arith((*ir.Builder).Add32, 2)),
		0x09: leaf("subl", arith((*ir.Builder).Sub32, 0)),
		0x0B: leaf("s4subl", arith((*ir.Builder).Sub32, 2)),
		0x0F: leaf("cmpbge", helper3("cmpbge")),
		0x12: leaf("s8addl", arith((*ir.Builder).Add32, 3)),
		0x1B: leaf("s8subl", arith((*ir.Builder).Sub32, 3)),
		0x1D: leaf("cmpult", compare(ir.CondLTU)),
		0x20: leaf("addq", arith((*ir.Builder).Add, 0)),
		0x22: leaf("s4addq", arith((*ir.Builder).Add, 2)),
		0x29: leaf("subq", arith((*ir.Builder).Sub, 0)),
		0x2B: leaf("s4subq", arith((*ir.Builder).Sub, 2)),
		0x2D: leaf("cmpeq", compare(ir.CondEQ)),
		0x32: leaf("s8addq", arith((*ir.Builder).Add, 3)),
		0x3B: leaf("s8subq", arith((*ir.Builder).Sub, 3)),
		0x3D: leaf("cmpule", compare(ir.CondLEU)),
		0x40: leaf("addl/v", checkedArith(ir.OpAddV, ir.W32)),
		0x49: leaf("subl/v", checkedArith(ir.OpSubV, ir.W32)),
		0x4D: leaf("cmplt", compare(ir.CondLT)),
		0x60: leaf("addq/v", checkedArith(ir.OpAddV, ir.W64)),
		0x69: leaf("subq/v", checkedArith(ir.OpSubV, ir.W64)),
		0x6D: leaf("cmple", compare(ir.CondLE)),
	}
}

func intMulTable() map[uint16]entry {
	return map[uint16]entry{
		0x00: leaf("mull", arith((*ir.Builder).Mul32, 0)),
		0x20: leaf("mulq", arith((*ir.Builder).Mul, 0)),
		0x30: leaf("umulh", helper3("umulh")),
		0x40: leaf("mull/v", checkedArith(ir.OpMulV, ir.W32)),
		0x60: leaf("mulq/v", checkedArith(ir.OpMulV, ir.W64)),
	}
}
