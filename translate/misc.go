package translate

import (
	"math/bits"

	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
	"github.com/sarchlab/alphatx/models"
)

func barrier(*Context, *insts.Instruction) Termination { return Barrier }

func nop(*Context, *insts.Instruction) Termination { return Continue }

// readCounter calls a no-argument helper into ra.
func readCounter(helper string) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		if dst, ok := c.Dest(opRa(inst)); ok {
			c.b.Call(helper, dst)
		}
		return Continue
	}
}

func miscTable() map[uint16]entry {
	return map[uint16]entry{
		0x0000: leaf("trapb", barrier),
		0x0400: leaf("excb", barrier),
		0x4000: leaf("mb", barrier),
		0x4400: leaf("wmb", barrier),
		0x8000: leaf("fetch", nop),
		0xA000: leaf("fetch_m", nop),
		0xC000: leaf("rpcc", readCounter("load_pcc")),
		0xE000: leaf("rc", readCounter("rc")),
		0xE800: leaf("ecb", nop),
		0xF000: leaf("rs", readCounter("rs")),
		0xF800: leaf("wh64", nop),
	}
}

// sext sign-extends the low w bits of B.
func sext(w ir.Width) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		if dst, ok := c.Dest(opRc(inst)); ok {
			c.b.Ext(dst, c.OperandB(inst), w, true)
		}
		return Continue
	}
}

// count emits a bit count of B, computed at translation time for a
// literal.
func count(helper string, eval func(uint64) int) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		if inst.IsLit {
			c.b.MovI(dst, uint64(eval(uint64(inst.Lit))))
			return Continue
		}
		c.b.Call(helper, dst, c.Read(opRb(inst)))

		return Continue
	}
}

// pack implements the MVI pack/unpack group, which has no literal form
// and requires ra == r31.
func pack(helper string) handler {
	return func(c *Context, inst *insts.Instruction) Termination {
		if inst.RawLit || inst.Ra != insts.ZeroReg {
			return c.invalid()
		}

		dst, ok := c.Dest(opRc(inst))
		if !ok {
			return Continue
		}

		rb := opRb(inst)
		if rb.IsZero() {
			c.b.MovI(dst, 0)
			return Continue
		}
		c.b.Call(helper, dst, c.Read(rb))

		return Continue
	}
}

func extTable() map[uint16]entry {
	mvi := func(name string, fn handler) entry {
		return leaf(name, fn).needs(models.FeatureMVI)
	}

	return map[uint16]entry{
		0x00: leaf("sextb", sext(ir.W8)).needs(models.FeatureBWX),
		0x01: leaf("sextw", sext(ir.W16)).needs(models.FeatureBWX),
		0x30: leaf("ctpop", count("ctpop", bits.OnesCount64)).needs(models.FeatureCIX),
		0x31: mvi("perr", helper3("perr")),
		0x32: leaf("ctlz", count("ctlz", bits.LeadingZeros64)).needs(models.FeatureCIX),
		0x33: leaf("cttz", count("cttz", bits.TrailingZeros64)).needs(models.FeatureCIX),
		0x34: mvi("unpkbw", pack("unpkbw")),
		0x35: mvi("unpkbl", pack("unpkbl")),
		0x36: mvi("pkwb", pack("pkwb")),
		0x37: mvi("pklb", pack("pklb")),
		0x38: mvi("minsb8", helper3("minsb8")),
		0x39: mvi("minsw4", helper3("minsw4")),
		0x3A: mvi("minub8", helper3("minub8")),
		0x3B: mvi("minuw4", helper3("minuw4")),
		0x3C: mvi("maxub8", helper3("maxub8")),
		0x3D: mvi("maxuw4", helper3("maxuw4")),
		0x3E: mvi("maxsb8", helper3("maxsb8")),
		0x3F: mvi("maxsw4", helper3("maxsw4")),
		0x70: leaf("ftoit", ftoi(false)).needs(models.FeatureFIX),
		0x78: leaf("ftois", ftoi(true)).needs(models.FeatureFIX),
	}
}
