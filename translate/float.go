package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
)

const signBit = uint64(1) << 63

// fpUnary calls helper(fb) into fc.
func fpUnary(helper string) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opFc(inst))
		if !ok {
			return Continue
		}

		c.b.Call(helper, dst, c.Read(opFb(inst)))

		return Continue
	}
}

// fpBinary calls helper(fa, fb) into fc.
func fpBinary(helper string) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opFc(inst))
		if !ok {
			return Continue
		}

		c.b.Call(helper, dst, c.Read(opFa(inst)), c.Read(opFb(inst)))

		return Continue
	}
}

// itof moves the low longword of integer ra into fc through a memory
// format conversion helper.
func itof(helper string) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opFc(inst))
		if !ok {
			return Continue
		}

		ra := opRa(inst)
		if ra.IsZero() {
			c.b.MovI(dst, 0)
			return Continue
		}

		t := c.Temp()
		c.b.Ext(t, c.Read(ra), ir.W32, false)
		c.b.Call(helper, dst, t)

		return Continue
	}
}

func itoft(c *Context, inst *insts.Instruction) Termination {
	if dst, ok := c.Dest(opFc(inst)); ok {
		c.b.Mov(dst, c.Read(opRa(inst)))
	}
	return Continue
}

// cvtsOrTs picks CVTST or CVTTS, which share a function code and differ
// only in the qualifier bits of fn11.
func cvtsOrTs(c *Context, inst *insts.Instruction) Termination {
	if inst.Fn11 == 0x2AC || inst.Fn11 == 0x6AC {
		return fpUnary("cvtst")(c, inst)
	}
	return fpUnary("cvtts")(c, inst)
}

// cpys covers FMOV, the CPYS form with fa == fb.
func cpys(c *Context, inst *insts.Instruction) Termination {
	dst, ok := c.Dest(opFc(inst))
	if !ok {
		return Continue
	}

	if inst.Ra == inst.Rb {
		c.b.Mov(dst, c.Read(opFa(inst)))
		return Continue
	}

	c.b.Call("cpys", dst, c.Read(opFa(inst)), c.Read(opFb(inst)))

	return Continue
}

func mtFPCR(c *Context, inst *insts.Instruction) Termination {
	c.b.Call("store_fpcr", ir.None, c.Read(opFa(inst)))
	return Continue
}

func mfFPCR(c *Context, inst *insts.Instruction) Termination {
	if dst, ok := c.Dest(opFa(inst)); ok {
		c.b.Call("load_fpcr", dst)
	}
	return Continue
}

// fcmov copies fb into fc unless fa compared with 0.0 satisfies skip.
func fcmov(skip ir.Cond) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opFc(inst))
		if !ok {
			return Continue
		}

		l := c.b.NewLabel()
		c.fbcondInternal(skip, c.Read(opFa(inst)), l)
		c.b.Mov(dst, c.Read(opFb(inst)))
		c.b.SetLabel(l)

		return Continue
	}
}

func itfpTable() map[uint16]entry {
	return map[uint16]entry{
		0x04: leaf("itofs", itof("memory_to_s")),
		0x0A: leaf("sqrtf", fpUnary("sqrtf")),
		0x0B: leaf("sqrts", fpUnary("sqrts")),
		0x14: leaf("itoff", itof("memory_to_f")),
		0x24: leaf("itoft", itoft),
		0x2A: leaf("sqrtg", fpUnary("sqrtg")),
		0x2B: leaf("sqrtt", fpUnary("sqrtt")),
	}
}

// vaxTable leaves CVTDG (0x1E) and CVTGD (0x2D) unimplemented.
func vaxTable() map[uint16]entry {
	return map[uint16]entry{
		0x00: leaf("addf", fpBinary("addf")),
		0x01: leaf("subf", fpBinary("subf")),
		0x02: leaf("mulf", fpBinary("mulf")),
		0x03: leaf("divf", fpBinary("divf")),
		0x20: leaf("addg", fpBinary("addg")),
		0x21: leaf("subg", fpBinary("subg")),
		0x22: leaf("mulg", fpBinary("mulg")),
		0x23: leaf("divg", fpBinary("divg")),
		0x25: leaf("cmpgeq", fpBinary("cmpgeq")),
		0x26: leaf("cmpglt", fpBinary("cmpglt")),
		0x27: leaf("cmpgle", fpBinary("cmpgle")),
		0x2C: leaf("cvtgf", fpUnary("cvtgf")),
		0x2F: leaf("cvtgq", fpUnary("cvtgq")),
		0x3C: leaf("cvtqf", fpUnary("cvtqf")),
		0x3E: leaf("cvtqg", fpUnary("cvtqg")),
	}
}

func ieeeTable() map[uint16]entry {
	return map[uint16]entry{
		0x00: leaf("adds", fpBinary("adds")),
		0x01: leaf("subs", fpBinary("subs")),
		0x02: leaf("muls", fpBinary("muls")),
		0x03: leaf("divs", fpBinary("divs")),
		0x20: leaf("addt", fpBinary("addt")),
		0x21: leaf("subt", fpBinary("subt")),
		0x22: leaf("mult", fpBinary("mult")),
		0x23: leaf("divt", fpBinary("divt")),
		0x24: leaf("cmptun", fpBinary("cmptun")),
		0x25: leaf("cmpteq", fpBinary("cmpteq")),
		0x26: leaf("cmptlt", fpBinary("cmptlt")),
		0x27: leaf("cmptle", fpBinary("cmptle")),
		0x2C: leaf("cvtts", cvtsOrTs),
		0x2F: leaf("cvttq", fpUnary("cvttq")),
		0x3C: leaf("cvtqs", fpUnary("cvtqs")),
		0x3E: leaf("cvtqt", fpUnary("cvtqt")),
	}
}

func fpMiscTable() map[uint16]entry {
	return map[uint16]entry{
		0x010: leaf("cvtlq", fpUnary("cvtlq")),
		0x020: leaf("cpys", cpys),
		0x021: leaf("cpysn", fpBinary("cpysn")),
		0x022: leaf("cpyse", fpBinary("cpyse")),
		0x024: leaf("mt_fpcr", mtFPCR),
		0x025: leaf("mf_fpcr", mfFPCR),
		0x02A: leaf("fcmoveq", fcmov(ir.CondNE)),
		0x02B: leaf("fcmovne", fcmov(ir.CondEQ)),
		0x02C: leaf("fcmovlt", fcmov(ir.CondGE)),
		0x02D: leaf("fcmovge", fcmov(ir.CondLT)),
		0x02E: leaf("fcmovle", fcmov(ir.CondGT)),
		0x02F: leaf("fcmovgt", fcmov(ir.CondLE)),
		0x030: leaf("cvtql", fpUnary("cvtql")),
		0x130: leaf("cvtql/v", fpUnary("cvtqlv")),
		0x530: leaf("cvtql/sv", fpUnary("cvtqlsv")),
	}
}

// ftoi moves fa into integer rc: FTOIT copies the raw bits, FTOIS goes
// through the S memory format and sign-extends the longword.
func ftoi(single bool) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		fa := c.Read(opFa(inst))
		if !single {
			c.b.Mov(dst, fa)
			return Continue
		}

		t := c.Temp()
		c.b.Call("s_to_memory", t, fa)
		c.b.Ext(dst, t, ir.W32, true)

		return Continue
	}
}
