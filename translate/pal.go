package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
)

// PAL function codes handled inline in user-only mode.
const (
	palRdUnique = 0x9E
	palWrUnique = 0x9F
)

// callPAL raises the PAL entry exception of the call. Unprivileged calls
// are 0x80..0xBF; privileged calls below 0x40 are only legal in kernel
// mode of a full-system guest.
func callPAL(c *Context, inst *insts.Instruction) Termination {
	p := inst.PALCode

	if c.mode.UserOnly {
		switch p {
		case palRdUnique:
			c.b.Mov(IR(RegV0), Uniq())
			return Continue
		case palWrUnique:
			c.b.Mov(Uniq(), IR(RegA0))
			return Continue
		}
	}

	if p >= 0x80 && p < 0xC0 {
		c.excp(ExcpCallPAL+(p&0x3F)<<6, 0)
		return Trap
	}

	if !c.mode.UserOnly && p < 0x40 {
		if c.mode.MemIndex&1 != 0 {
			return c.invalid()
		}
		c.excp(ExcpCallPALP+(p&0x3F)<<6, 0)
		return Trap
	}

	return c.invalid()
}

func hwMFPR(c *Context, inst *insts.Instruction) Termination {
	if dst, ok := c.Dest(opRa(inst)); ok {
		c.b.Call("mfpr", dst, ir.Const(uint64(inst.IPR)), dst)
	}
	return Continue
}

func hwMTPR(c *Context, inst *insts.Instruction) Termination {
	c.b.Call("mtpr", ir.None, ir.Const(uint64(inst.IPR)), c.Read(opRa(inst)))
	return Barrier
}

// hwREI returns from PALcode. The helpers write pc and leave PAL mode.
// With rb set, the target is rb plus the displacement when ra is set and
// the bare displacement otherwise.
func hwREI(c *Context, inst *insts.Instruction) Termination {
	rb := opRb(inst)
	if rb.IsZero() {
		c.b.Call("hw_rei", ir.None)
		return ControlTransfer
	}

	disp := ir.ConstInt(inst.HWRetDisp)
	if opRa(inst).IsZero() {
		c.b.Call("hw_ret", ir.None, disp)
		return ControlTransfer
	}

	t := c.Temp()
	c.b.Add(t, c.Read(rb), disp)
	c.b.Call("hw_ret", ir.None, t)

	return ControlTransfer
}

// hwAddress returns rb + disp12 in a temporary; helpers may rewrite it.
func (c *Context) hwAddress(inst *insts.Instruction) ir.Value {
	t := c.Temp()
	c.b.Add(t, c.Read(opRb(inst)), ir.ConstInt(int64(inst.Disp12)))
	return t
}

type hwStep func(c *Context, reg, addr ir.Value)

func callInto(helper string) hwStep {
	return func(c *Context, reg, addr ir.Value) { c.b.Call(helper, reg, addr) }
}

func callStore(helper string) hwStep {
	return func(c *Context, reg, addr ir.Value) { c.b.Call(helper, ir.None, reg, addr) }
}

func callStoreCond(helper string) hwStep {
	return func(c *Context, reg, addr ir.Value) { c.b.Call(helper, reg, reg, addr) }
}

func virtLoad(w ir.Width) hwStep {
	return func(c *Context, reg, addr ir.Value) {
		c.b.Load(reg, addr, w, w == ir.W32, 0)
	}
}

func toPhys(c *Context, _, addr ir.Value) { c.b.Call("st_virt_to_phys", addr, addr) }

func setAltMode(c *Context, _, _ ir.Value) { c.b.Call("set_alt_mode", ir.None) }

func restoreMode(c *Context, _, _ ir.Value) { c.b.Call("restore_mode", ir.None) }

// hwLoad runs steps against ra and the computed address. A zero ra emits
// nothing.
func hwLoad(steps ...hwStep) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRa(inst))
		if !ok {
			return Continue
		}

		addr := c.hwAddress(inst)
		for _, s := range steps {
			s(c, dst, addr)
		}

		return Continue
	}
}

// hwStore runs steps against the value of ra, copied to a temporary when
// ra is r31 so that the conditional forms have somewhere to write status.
func hwStore(steps ...hwStep) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		addr := c.hwAddress(inst)

		val, ok := c.Dest(opRa(inst))
		if !ok {
			val = c.Temp()
			c.b.MovI(val, 0)
		}

		for _, s := range steps {
			s(c, val, addr)
		}

		return Continue
	}
}

func hwLoadTable() map[uint16]entry {
	return map[uint16]entry{
		0x0: leaf("hw_ldl/p", hwLoad(callInto("ldl_raw"))),
		0x1: leaf("hw_ldq/p", hwLoad(callInto("ldq_raw"))),
		0x2: leaf("hw_ldl_l/p", hwLoad(callInto("ldl_l_raw"))),
		0x3: leaf("hw_ldq_l/p", hwLoad(callInto("ldq_l_raw"))),
		0x4: leaf("hw_ldl/v", hwLoad(virtLoad(ir.W32))),
		0x5: leaf("hw_ldq/v", hwLoad(virtLoad(ir.W64))),
		0x8: leaf("hw_ldl", hwLoad(toPhys, callInto("ldl_raw"))),
		0x9: leaf("hw_ldq", hwLoad(toPhys, callInto("ldq_raw"))),
		0xA: leaf("hw_ldl/w", hwLoad(virtLoad(ir.W32))),
		0xB: leaf("hw_ldq/w", hwLoad(virtLoad(ir.W64))),
		0xC: leaf("hw_ldl/a", hwLoad(setAltMode, toPhys, callInto("ldl_raw"), restoreMode)),
		0xD: leaf("hw_ldq/a", hwLoad(setAltMode, toPhys, callInto("ldq_raw"), restoreMode)),
		0xE: leaf("hw_ldl/wa", hwLoad(setAltMode, callInto("ldl_data"), restoreMode)),
		0xF: leaf("hw_ldq/wa", hwLoad(setAltMode, callInto("ldq_data"), restoreMode)),
	}
}

func hwStoreTable() map[uint16]entry {
	return map[uint16]entry{
		0x0: leaf("hw_stl/p", hwStore(callStore("stl_raw"))),
		0x1: leaf("hw_stq/p", hwStore(callStore("stq_raw"))),
		0x2: leaf("hw_stl_c/p", hwStore(callStoreCond("stl_c_raw"))),
		0x3: leaf("hw_stq_c/p", hwStore(callStoreCond("stq_c_raw"))),
		0x4: leaf("hw_stl", hwStore(toPhys, callStore("stl_raw"))),
		0x5: leaf("hw_stq", hwStore(toPhys, callStore("stq_raw"))),
		0xC: leaf("hw_stl/a", hwStore(setAltMode, toPhys, callStore("stl_raw"), restoreMode)),
		0xD: leaf("hw_stq/a", hwStore(setAltMode, toPhys, callStore("stq_raw"), restoreMode)),
	}
}
