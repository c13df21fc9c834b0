package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
	"github.com/sarchlab/alphatx/models"
)

// handler emits the IR of one instruction.
type handler func(c *Context, inst *insts.Instruction) Termination

// entry is one slot of a dispatch table: either a leaf handler or a
// secondary table keyed by a function code.
type entry struct {
	name    string
	feature models.Feature
	pal     bool
	fn      handler
	sub     *subtable
}

type subtable struct {
	key    func(inst *insts.Instruction) uint16
	leaves map[uint16]entry
}

func leaf(name string, fn handler) entry {
	return entry{name: name, fn: fn}
}

func group(name string, key func(inst *insts.Instruction) uint16, leaves map[uint16]entry) entry {
	return entry{name: name, sub: &subtable{key: key, leaves: leaves}}
}

// needs gates the entry on a model feature.
func (e entry) needs(f models.Feature) entry {
	e.feature |= f
	return e
}

// privileged restricts the entry to PAL mode of a full-system guest.
func (e entry) privileged() entry {
	e.pal = true
	return e
}

func byFn7(inst *insts.Instruction) uint16  { return uint16(inst.Fn7) }
func byFpFn(inst *insts.Instruction) uint16 { return uint16(inst.FpFn) }
func byFn11(inst *insts.Instruction) uint16 { return inst.Fn11 }
func byFn16(inst *insts.Instruction) uint16 { return inst.Fn16 }
func byFn2(inst *insts.Instruction) uint16  { return uint16(inst.Fn2) }
func byHWFn(inst *insts.Instruction) uint16 { return uint16(inst.HWFn) }

var primary [64]entry

func buildTables() {
	primary[0x00] = leaf("call_pal", callPAL)

	primary[0x08] = leaf("lda", lda)
	primary[0x09] = leaf("ldah", ldah)
	primary[0x0A] = leaf("ldbu", load(intLoad(8, false), false)).needs(models.FeatureBWX)
	primary[0x0B] = leaf("ldq_u", load(intLoad(64, false), true))
	primary[0x0C] = leaf("ldwu", load(intLoad(16, false), false)).needs(models.FeatureBWX)
	primary[0x0D] = leaf("stw", store(intStore(16), false)).needs(models.FeatureBWX)
	primary[0x0E] = leaf("stb", store(intStore(8), false)).needs(models.FeatureBWX)
	primary[0x0F] = leaf("stq_u", store(intStore(64), true))

	primary[0x10] = group("inta", byFn7, intArithTable())
	primary[0x11] = group("intl", byFn7, intLogicTable())
	primary[0x12] = group("ints", byFn7, intShiftTable())
	primary[0x13] = group("intm", byFn7, intMulTable())
	primary[0x14] = group("itfp", byFpFn, itfpTable()).needs(models.FeatureFIX)
	primary[0x15] = group("fltv", byFpFn, vaxTable())
	primary[0x16] = group("flti", byFpFn, ieeeTable())
	primary[0x17] = group("fltl", byFn11, fpMiscTable())
	primary[0x18] = group("misc", byFn16, miscTable())
	primary[0x19] = leaf("hw_mfpr", hwMFPR).privileged()
	primary[0x1A] = group("jsr", byFn2, jumpTable())
	primary[0x1B] = group("hw_ld", byHWFn, hwLoadTable()).privileged()
	primary[0x1C] = group("fpti", byFn7, extTable())
	primary[0x1D] = leaf("hw_mtpr", hwMTPR).privileged()
	primary[0x1E] = leaf("hw_rei", hwREI).privileged()
	primary[0x1F] = group("hw_st", byHWFn, hwStoreTable()).privileged()

	primary[0x20] = leaf("ldf", load(fpLoad("memory_to_f", 32), false))
	primary[0x21] = leaf("ldg", load(fpLoad("memory_to_g", 64), false))
	primary[0x22] = leaf("lds", load(fpLoad("memory_to_s", 32), false))
	primary[0x23] = leaf("ldt", load(fpLoad("", 64), false))
	primary[0x24] = leaf("stf", store(fpStore("f_to_memory", 32), false))
	primary[0x25] = leaf("stg", store(fpStore("g_to_memory", 64), false))
	primary[0x26] = leaf("sts", store(fpStore("s_to_memory", 32), false))
	primary[0x27] = leaf("stt", store(fpStore("", 64), false))
	primary[0x28] = leaf("ldl", load(intLoad(32, true), false))
	primary[0x29] = leaf("ldq", load(intLoad(64, false), false))
	primary[0x2A] = leaf("ldl_l", load(lockedLoad(32), false))
	primary[0x2B] = leaf("ldq_l", load(lockedLoad(64), false))
	primary[0x2C] = leaf("stl", store(intStore(32), false))
	primary[0x2D] = leaf("stq", store(intStore(64), false))
	primary[0x2E] = leaf("stl_c", storeConditional(32))
	primary[0x2F] = leaf("stq_c", storeConditional(64))

	primary[0x30] = leaf("br", branch)
	primary[0x31] = leaf("fbeq", fbcond(ir.CondEQ))
	primary[0x32] = leaf("fblt", fbcond(ir.CondLT))
	primary[0x33] = leaf("fble", fbcond(ir.CondLE))
	primary[0x34] = leaf("bsr", branch)
	primary[0x35] = leaf("fbne", fbcond(ir.CondNE))
	primary[0x36] = leaf("fbge", fbcond(ir.CondGE))
	primary[0x37] = leaf("fbgt", fbcond(ir.CondGT))
	primary[0x38] = leaf("blbc", bcond(ir.CondEQ, true))
	primary[0x39] = leaf("beq", bcond(ir.CondEQ, false))
	primary[0x3A] = leaf("blt", bcond(ir.CondLT, false))
	primary[0x3B] = leaf("ble", bcond(ir.CondLE, false))
	primary[0x3C] = leaf("blbs", bcond(ir.CondNE, true))
	primary[0x3D] = leaf("bne", bcond(ir.CondNE, false))
	primary[0x3E] = leaf("bge", bcond(ir.CondGE, false))
	primary[0x3F] = leaf("bgt", bcond(ir.CondGT, false))
}

// lookup resolves the handler of inst. ok is false when no table entry
// matches.
func lookup(inst *insts.Instruction) (e entry, ok bool) {
	e = primary[inst.Opcode]
	if e.sub != nil {
		l, found := e.sub.leaves[e.sub.key(inst)]
		if !found {
			return e, false
		}
		l.feature |= e.feature
		l.pal = l.pal || e.pal
		e = l
	}

	return e, e.fn != nil
}

// Mnemonic returns the instruction name, or "invalid" when no handler
// matches the encoding.
func Mnemonic(inst *insts.Instruction) string {
	Init()

	e, ok := lookup(inst)
	if !ok {
		return "invalid"
	}
	return e.name
}

func (c *Context) allowed(e entry) bool {
	if e.feature != 0 && !c.model.Has(e.feature) {
		return false
	}
	if e.pal && (c.mode.UserOnly || !c.mode.PALMode) {
		return false
	}
	return true
}

// dispatch runs the handler of inst inside a fresh temporary scope.
func (c *Context) dispatch(inst *insts.Instruction) (Termination, string) {
	e, ok := lookup(inst)
	if !ok {
		return c.invalid(), "invalid"
	}
	if !c.allowed(e) {
		return c.invalid(), e.name
	}

	s := c.b.OpenScope()
	c.scope = s
	defer func() {
		s.Close()
		c.scope = nil
	}()

	return e.fn(c, inst), e.name
}
