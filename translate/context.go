package translate

import (
	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
	"github.com/sarchlab/alphatx/models"
)

// Bank selects the integer or the floating register file.
type Bank uint8

// Register banks.
const (
	BankInt Bank = iota
	BankFloat
)

// Operand is a register reference. Index 31 is the zero register of
// either bank.
type Operand struct {
	Bank  Bank
	Index uint8
}

// IntReg returns an integer register operand.
func IntReg(i uint8) Operand { return Operand{Bank: BankInt, Index: i} }

// FPReg returns a floating register operand.
func FPReg(i uint8) Operand { return Operand{Bank: BankFloat, Index: i} }

// IsZero reports whether o is the zero register.
func (o Operand) IsZero() bool { return o.Index == insts.ZeroReg }

func (o Operand) global() ir.Value {
	if o.Bank == BankFloat {
		return FIR(int(o.Index))
	}
	return IR(int(o.Index))
}

// Context is the per-block translation state.
type Context struct {
	// pc is the address of the instruction after the one being translated.
	pc    uint64
	mode  Mode
	model models.Model
	b     *ir.Builder
	scope *ir.Scope
}

func newContext(pc uint64, mode Mode, model models.Model) *Context {
	return &Context{
		pc:    pc,
		mode:  mode,
		model: model,
		b:     ir.NewBuilder(),
	}
}

// PC returns the fallthrough address of the current instruction.
func (c *Context) PC() uint64 { return c.pc }

// Builder returns the emission buffer.
func (c *Context) Builder() *ir.Builder { return c.b }

// Read returns the value of o. The zero register reads as constant 0.
func (c *Context) Read(o Operand) ir.Value {
	if o.IsZero() {
		return ir.Const(0)
	}
	return o.global()
}

// Dest returns the global written through o. ok is false for the zero
// register, in which case the handler must emit nothing for the result.
func (c *Context) Dest(o Operand) (v ir.Value, ok bool) {
	if o.IsZero() {
		return ir.None, false
	}
	return o.global(), true
}

// OperandB returns the second source of an operate instruction: the
// literal when the instruction selects one, otherwise integer rb.
func (c *Context) OperandB(inst *insts.Instruction) ir.Value {
	if inst.IsLit {
		return ir.Const(uint64(inst.Lit))
	}
	return c.Read(IntReg(inst.Rb))
}

// Temp allocates a temporary released when the current handler returns.
func (c *Context) Temp() ir.Value {
	return c.scope.Temp()
}

// andConst returns v & m, folded when v is constant.
func (c *Context) andConst(v ir.Value, m uint64) ir.Value {
	if v.IsConst() {
		return ir.Const(v.Imm & m)
	}
	t := c.Temp()
	c.b.And(t, v, ir.Const(m))
	return t
}

// shlConst returns v << n, folded when v is constant.
func (c *Context) shlConst(v ir.Value, n uint64) ir.Value {
	if v.IsConst() {
		return ir.Const(v.Imm << n)
	}
	t := c.Temp()
	c.b.Shl(t, v, ir.Const(n))
	return t
}

// excp stores the fallthrough pc and raises an exception.
func (c *Context) excp(exception, errorCode uint32) {
	c.b.MovI(PC(), c.pc)
	c.b.Raise(exception, errorCode)
}

// invalid raises the illegal instruction exception.
func (c *Context) invalid() Termination {
	c.excp(ExcpOpcDec, 0)
	return Trap
}

func (c *Context) target(disp int32) uint64 {
	return c.pc + uint64(int64(disp)<<2)
}

func opRa(inst *insts.Instruction) Operand { return IntReg(inst.Ra) }
func opRb(inst *insts.Instruction) Operand { return IntReg(inst.Rb) }
func opRc(inst *insts.Instruction) Operand { return IntReg(inst.Rc) }
func opFa(inst *insts.Instruction) Operand { return FPReg(inst.Ra) }
func opFb(inst *insts.Instruction) Operand { return FPReg(inst.Rb) }
func opFc(inst *insts.Instruction) Operand { return FPReg(inst.Rc) }
