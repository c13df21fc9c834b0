package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
)

// Byte masks of the byte, word, longword and quadword variants.
const (
	maskByte uint8 = 0x01
	maskWord uint8 = 0x03
	maskLong uint8 = 0x0f
	maskQuad uint8 = 0xff
)

// zapnotMask expands a byte-select mask to a 64-bit mask keeping the
// selected bytes.
func zapnotMask(lit uint8) uint64 {
	var mask uint64
	for i := 0; i < 8; i++ {
		if (lit>>i)&1 != 0 {
			mask |= 0xff << (i * 8)
		}
	}
	return mask
}

// zapnoti emits dst = src with the bytes not selected by lit cleared.
func (c *Context) zapnoti(dst, src ir.Value, lit uint8) {
	switch lit {
	case 0x00:
		c.b.MovI(dst, 0)
	case 0x01:
		c.b.Ext(dst, src, ir.W8, false)
	case 0x03:
		c.b.Ext(dst, src, ir.W16, false)
	case 0x0f:
		c.b.Ext(dst, src, ir.W32, false)
	case 0xff:
		c.b.Mov(dst, src)
	default:
		c.b.And(dst, src, ir.Const(zapnotMask(lit)))
	}
}

// byteShift returns (rb & 7) * 8.
func (c *Context) byteShift(inst *insts.Instruction) ir.Value {
	t := c.Temp()
	c.b.And(t, c.Read(opRb(inst)), ir.Const(7))
	c.b.Shl(t, t, ir.Const(3))
	return t
}

// splitShift returns ~((rb & 7) * 8) & 63. Shifting by it and then by one
// more bit yields zero for a byte offset of 0 instead of a 64-bit shift.
func (c *Context) splitShift(inst *insts.Instruction) ir.Value {
	t := c.byteShift(inst)
	c.b.Not(t, t)
	c.b.And(t, t, ir.Const(0x3f))
	return t
}

// byteOp wraps the handlers of the shift/byte group: rc is suppressed
// and ra == r31 produces zero.
func byteOp(emit func(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8), mask uint8) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		ra := opRa(inst)
		if ra.IsZero() {
			c.b.MovI(dst, 0)
			return Continue
		}

		emit(c, inst, dst, c.Read(ra), mask)

		return Continue
	}
}

// extLow implements EXTxL.
func extLow(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	if inst.IsLit {
		c.b.Shr(dst, a, ir.Const(uint64(inst.Lit&7)*8))
	} else {
		c.b.Shr(dst, a, c.byteShift(inst))
	}
	c.zapnoti(dst, dst, mask)
}

// extHigh implements EXTxH.
func extHigh(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	if inst.IsLit {
		c.b.Shl(dst, a, ir.Const((64-uint64(inst.Lit&7)*8)&0x3f))
	} else {
		t := c.byteShift(inst)
		c.b.Neg(t, t)
		c.b.And(t, t, ir.Const(0x3f))
		c.b.Shl(dst, a, t)
	}
	c.zapnoti(dst, dst, mask)
}

// insLow implements INSxL.
func insLow(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	t := c.Temp()
	c.zapnoti(t, a, mask)

	if inst.IsLit {
		c.b.Shl(dst, t, ir.Const(uint64(inst.Lit&7)*8))
		return
	}
	c.b.Shl(dst, t, c.byteShift(inst))
}

// insHigh implements INSxH.
func insHigh(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	if inst.IsLit && inst.Lit&7 == 0 {
		c.b.MovI(dst, 0)
		return
	}

	t := c.Temp()
	c.zapnoti(t, a, mask)

	if inst.IsLit {
		c.b.Shr(dst, t, ir.Const(64-uint64(inst.Lit&7)*8))
		return
	}
	c.b.Shr(dst, t, c.splitShift(inst))
	c.b.Shr(dst, dst, ir.Const(1))
}

// mskLow implements MSKxL.
func mskLow(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	if inst.IsLit {
		c.zapnoti(dst, a, ^(mask << (inst.Lit & 7)))
		return
	}

	shift := c.byteShift(inst)
	m := c.Temp()
	c.b.MovI(m, zapnotMask(mask))
	c.b.Shl(m, m, shift)
	c.b.AndC(dst, a, m)
}

// mskHigh implements MSKxH.
func mskHigh(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	if inst.IsLit {
		c.zapnoti(dst, a, ^uint8((uint16(mask)<<(inst.Lit&7))>>8))
		return
	}

	shift := c.splitShift(inst)
	m := c.Temp()
	c.b.MovI(m, zapnotMask(mask))
	c.b.Shr(m, m, shift)
	c.b.Shr(m, m, ir.Const(1))
	c.b.AndC(dst, a, m)
}

// zap implements ZAP (invert set) and ZAPNOT.
func zap(invert bool) func(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	helper := "zapnot"
	if invert {
		helper = "zap"
	}

	return func(c *Context, inst *insts.Instruction, dst, a ir.Value, _ uint8) {
		if !inst.IsLit {
			c.b.Call(helper, dst, a, c.Read(opRb(inst)))
			return
		}

		lit := inst.Lit
		if invert {
			lit = ^lit
		}
		c.zapnoti(dst, a, lit)
	}
}

// shift implements SRL, SLL and SRA with the amount taken modulo 64.
func shift(op binaryEmitter) func(c *Context, inst *insts.Instruction, dst, a ir.Value, mask uint8) {
	return func(c *Context, inst *insts.Instruction, dst, a ir.Value, _ uint8) {
		if inst.IsLit {
			op(c.b, dst, a, ir.Const(uint64(inst.Lit&0x3f)))
			return
		}

		t := c.Temp()
		c.b.And(t, c.Read(opRb(inst)), ir.Const(0x3f))
		op(c.b, dst, a, t)
	}
}

func intShiftTable() map[uint16]entry {
	return map[uint16]entry{
		0x02: leaf("mskbl", byteOp(mskLow, maskByte)),
		0x06: leaf("extbl", byteOp(extLow, maskByte)),
		0x0B: leaf("insbl", byteOp(insLow, maskByte)),
		0x12: leaf("mskwl", byteOp(mskLow, maskWord)),
		0x16: leaf("extwl", byteOp(extLow, maskWord)),
		0x1B: leaf("inswl", byteOp(insLow, maskWord)),
		0x22: leaf("mskll", byteOp(mskLow, maskLong)),
		0x26: leaf("extll", byteOp(extLow, maskLong)),
		0x2B: leaf("insll", byteOp(insLow, maskLong)),
		0x30: leaf("zap", byteOp(zap(true), 0)),
		0x31: leaf("zapnot", byteOp(zap(false), 0)),
		0x32: leaf("mskql", byteOp(mskLow, maskQuad)),
		0x34: leaf("srl", byteOp(shift((*ir.Builder).Shr), 0)),
		0x36: leaf("extql", byteOp(extLow, maskQuad)),
		0x39: leaf("sll", byteOp(shift((*ir.Builder).Shl), 0)),
		0x3B: leaf("insql", byteOp(insLow, maskQuad)),
		0x3C: leaf("sra", byteOp(shift((*ir.Builder).Sar), 0)),
		0x52: leaf("mskwh", byteOp(mskHigh, maskWord)),
		0x57: leaf("inswh", byteOp(insHigh, maskWord)),
		0x5A: leaf("extwh", byteOp(extHigh, maskWord)),
		0x62: leaf("msklh", byteOp(mskHigh, maskLong)),
		0x67: leaf("inslh", byteOp(insHigh, maskLong)),
		0x6A: leaf("extlh", byteOp(extHigh, maskLong)),
		0x72: leaf("mskqh", byteOp(mskHigh, maskQuad)),
		0x77: leaf("insqh", byteOp(insHigh, maskQuad)),
		0x7A: leaf("extqh", byteOp(extHigh, maskQuad)),
	}
}
