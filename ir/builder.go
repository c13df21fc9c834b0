package ir

import "fmt"

// Builder appends ops to one translation unit.
//
// Temporaries are handed out by scopes. Every temporary allocated through a
// Scope is released when the scope is closed, and released temporary numbers
// are reused by later scopes.
type Builder struct {
	ops []Op

	nextLabel Label
	labelSet  []bool

	free     []int
	live     int
	numTemps int
	scopes   []*Scope
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns the number of ops emitted so far.
func (b *Builder) Len() int { return len(b.ops) }

// Ops returns the emitted ops. The slice is owned by the builder.
func (b *Builder) Ops() []Op { return b.ops }

// NumTemps returns the number of distinct temporary slots ever allocated.
func (b *Builder) NumTemps() int { return b.numTemps }

// NumLabels returns the number of labels created.
func (b *Builder) NumLabels() int { return int(b.nextLabel) }

// LiveTemps returns the number of temporaries not yet released.
func (b *Builder) LiveTemps() int { return b.live }

// OpenScopes returns the number of scopes not yet closed.
func (b *Builder) OpenScopes() int { return len(b.scopes) }

// Scope owns the temporaries allocated during one instruction.
type Scope struct {
	b      *Builder
	temps  []int
	closed bool
}

// OpenScope starts a new temporary scope. Scopes nest and must be closed in
// reverse order of opening.
func (b *Builder) OpenScope() *Scope {
	s := &Scope{b: b}
	b.scopes = append(b.scopes, s)
	return s
}

// Temp allocates a temporary owned by the scope.
func (s *Scope) Temp() Value {
	if s.closed {
		panic("ir: temporary allocated from a closed scope")
	}

	b := s.b
	var id int
	if n := len(b.free); n > 0 {
		id = b.free[n-1]
		b.free = b.free[:n-1]
	} else {
		id = b.numTemps
		b.numTemps++
	}

	b.live++
	s.temps = append(s.temps, id)

	return Value{Kind: KindTemp, ID: id}
}

// Close releases every temporary of the scope. Closing twice is a no-op.
func (s *Scope) Close() {
	if s.closed {
		return
	}

	b := s.b
	if n := len(b.scopes); n == 0 || b.scopes[n-1] != s {
		panic("ir: scopes closed out of order")
	}
	b.scopes = b.scopes[:len(b.scopes)-1]

	for i := len(s.temps) - 1; i >= 0; i-- {
		b.free = append(b.free, s.temps[i])
	}
	b.live -= len(s.temps)
	s.temps = nil
	s.closed = true
}

// NewLabel creates a label that is not yet placed.
func (b *Builder) NewLabel() Label {
	l := b.nextLabel
	b.nextLabel++
	b.labelSet = append(b.labelSet, false)
	return l
}

// SetLabel places l at the current position.
func (b *Builder) SetLabel(l Label) {
	if int(l) >= len(b.labelSet) {
		panic(fmt.Sprintf("ir: unknown label %d", l))
	}
	if b.labelSet[l] {
		panic(fmt.Sprintf("ir: label %d placed twice", l))
	}
	b.labelSet[l] = true
	b.emit(Op{Code: OpLabel, Label: l})
}

// UnplacedLabels lists the labels that were created but never placed.
func (b *Builder) UnplacedLabels() []Label {
	var out []Label
	for i, set := range b.labelSet {
		if !set {
			out = append(out, Label(i))
		}
	}
	return out
}

func (b *Builder) emit(op Op) {
	b.ops = append(b.ops, op)
}

// MovI sets dst to a constant.
func (b *Builder) MovI(dst Value, imm uint64) {
	b.emit(Op{Code: OpMovI, Dst: dst, A: Const(imm)})
}

// Mov copies src to dst. A constant source becomes a MovI and a self move
// emits nothing.
func (b *Builder) Mov(dst, src Value) {
	if src.IsConst() {
		b.MovI(dst, src.Imm)
		return
	}
	if src == dst {
		return
	}
	b.emit(Op{Code: OpMov, Dst: dst, A: src})
}

// Add emits dst = x + y.
func (b *Builder) Add(dst, x, y Value) { b.Binary(OpAdd, dst, x, y) }

// Sub emits dst = x - y.
func (b *Builder) Sub(dst, x, y Value) { b.Binary(OpSub, dst, x, y) }

// Mul emits dst = x * y.
func (b *Builder) Mul(dst, x, y Value) { b.Binary(OpMul, dst, x, y) }

// Add32 emits dst = sext32(x + y).
func (b *Builder) Add32(dst, x, y Value) { b.Binary(OpAdd32, dst, x, y) }

// Sub32 emits dst = sext32(x - y).
func (b *Builder) Sub32(dst, x, y Value) { b.Binary(OpSub32, dst, x, y) }

// Mul32 emits dst = sext32(x * y).
func (b *Builder) Mul32(dst, x, y Value) { b.Binary(OpMul32, dst, x, y) }

// And emits dst = x & y.
func (b *Builder) And(dst, x, y Value) { b.Binary(OpAnd, dst, x, y) }

// Or emits dst = x | y.
func (b *Builder) Or(dst, x, y Value) { b.Binary(OpOr, dst, x, y) }

// Xor emits dst = x ^ y.
func (b *Builder) Xor(dst, x, y Value) { b.Binary(OpXor, dst, x, y) }

// AndC emits dst = x & ^y.
func (b *Builder) AndC(dst, x, y Value) { b.Binary(OpAndC, dst, x, y) }

// OrC emits dst = x | ^y.
func (b *Builder) OrC(dst, x, y Value) { b.Binary(OpOrC, dst, x, y) }

// Eqv emits dst = x ^ ^y.
func (b *Builder) Eqv(dst, x, y Value) { b.Binary(OpEqv, dst, x, y) }

// Shl emits dst = x << y.
func (b *Builder) Shl(dst, x, y Value) { b.Binary(OpShl, dst, x, y) }

// Shr emits dst = x >> y (logical).
func (b *Builder) Shr(dst, x, y Value) { b.Binary(OpShr, dst, x, y) }

// Sar emits dst = x >> y (arithmetic).
func (b *Builder) Sar(dst, x, y Value) { b.Binary(OpSar, dst, x, y) }

// Binary emits a two-operand op, folding constants where the result does
// not depend on a runtime value.
func (b *Builder) Binary(code Opcode, dst, x, y Value) {
	if x.IsConst() && y.IsConst() {
		b.MovI(dst, EvalBinary(code, x.Imm, y.Imm))
		return
	}

	if x.IsConst() && isCommutative(code) {
		x, y = y, x
	}

	if y.IsConst() && b.foldRight(code, dst, x, y.Imm) {
		return
	}
	if x.IsConst() && b.foldLeft(code, dst, x.Imm, y) {
		return
	}

	b.emit(Op{Code: code, Dst: dst, A: x, B: y})
}

func (b *Builder) foldRight(code Opcode, dst, x Value, c uint64) bool {
	switch code {
	case OpAdd, OpSub, OpOr, OpXor, OpAndC, OpShl, OpShr, OpSar:
		if c == 0 {
			b.Mov(dst, x)
			return true
		}
	case OpAnd:
		switch c {
		case 0:
			b.MovI(dst, 0)
			return true
		case ^uint64(0):
			b.Mov(dst, x)
			return true
		}
	case OpMul:
		switch c {
		case 0:
			b.MovI(dst, 0)
			return true
		case 1:
			b.Mov(dst, x)
			return true
		}
	case OpOrC:
		if c == ^uint64(0) {
			b.Mov(dst, x)
			return true
		}
	case OpEqv:
		if c == ^uint64(0) {
			b.Mov(dst, x)
			return true
		}
		if c == 0 {
			b.Not(dst, x)
			return true
		}
	case OpAdd32, OpSub32:
		if c == 0 {
			b.Ext(dst, x, W32, true)
			return true
		}
	case OpMul32:
		switch c {
		case 0:
			b.MovI(dst, 0)
			return true
		case 1:
			b.Ext(dst, x, W32, true)
			return true
		}
	}

	return false
}

func (b *Builder) foldLeft(code Opcode, dst Value, c uint64, y Value) bool {
	switch code {
	case OpSub:
		if c == 0 {
			b.Neg(dst, y)
			return true
		}
	case OpShl, OpShr, OpAndC:
		if c == 0 {
			b.MovI(dst, 0)
			return true
		}
	case OpSar:
		if c == 0 || c == ^uint64(0) {
			b.MovI(dst, c)
			return true
		}
	case OpOrC:
		if c == 0 {
			b.Not(dst, y)
			return true
		}
	}

	return false
}

// Neg emits dst = -x.
func (b *Builder) Neg(dst, x Value) {
	if x.IsConst() {
		b.MovI(dst, EvalUnary(OpNeg, x.Imm))
		return
	}
	b.emit(Op{Code: OpNeg, Dst: dst, A: x})
}

// Not emits dst = ^x.
func (b *Builder) Not(dst, x Value) {
	if x.IsConst() {
		b.MovI(dst, EvalUnary(OpNot, x.Imm))
		return
	}
	b.emit(Op{Code: OpNot, Dst: dst, A: x})
}

// Ext emits a sign or zero extension of the low w bits of x.
func (b *Builder) Ext(dst, x Value, w Width, signed bool) {
	if x.IsConst() {
		b.MovI(dst, EvalExt(x.Imm, w, signed))
		return
	}
	if w == W64 {
		b.Mov(dst, x)
		return
	}
	b.emit(Op{Code: OpExt, Dst: dst, A: x, Width: w, Signed: signed})
}

// AddV emits an add that raises an overflow trap at run time.
func (b *Builder) AddV(dst, x, y Value, w Width) { b.checked(OpAddV, dst, x, y, w) }

// SubV emits a subtract that raises an overflow trap at run time.
func (b *Builder) SubV(dst, x, y Value, w Width) { b.checked(OpSubV, dst, x, y, w) }

// MulV emits a multiply that raises an overflow trap at run time.
func (b *Builder) MulV(dst, x, y Value, w Width) { b.checked(OpMulV, dst, x, y, w) }

func (b *Builder) checked(code Opcode, dst, x, y Value, w Width) {
	b.emit(Op{Code: code, Dst: dst, A: x, B: y, Width: w})
}

// SetCond emits dst = (x cond y) ? 1 : 0.
func (b *Builder) SetCond(cond Cond, dst, x, y Value) {
	if x.IsConst() && y.IsConst() {
		var v uint64
		if cond.Eval(x.Imm, y.Imm) {
			v = 1
		}
		b.MovI(dst, v)
		return
	}
	if x.IsConst() {
		x, y, cond = y, x, cond.Swap()
	}
	b.emit(Op{Code: OpSetCond, Dst: dst, A: x, B: y, Cond: cond})
}

// BrCond emits a conditional branch to l. A condition known at translation
// time becomes an unconditional branch or nothing.
func (b *Builder) BrCond(cond Cond, x, y Value, l Label) {
	if x.IsConst() && y.IsConst() {
		if cond.Eval(x.Imm, y.Imm) {
			b.Br(l)
		}
		return
	}
	switch cond {
	case CondAlways:
		b.Br(l)
		return
	case CondNever:
		return
	}
	if x.IsConst() {
		x, y, cond = y, x, cond.Swap()
	}
	b.emit(Op{Code: OpBrCond, A: x, B: y, Cond: cond, Label: l})
}

// Br emits an unconditional branch to l.
func (b *Builder) Br(l Label) {
	b.emit(Op{Code: OpBr, Label: l})
}

// Call emits a helper call. dst may be None.
func (b *Builder) Call(helper string, dst Value, args ...Value) {
	b.emit(Op{Code: OpCall, Dst: dst, Helper: helper, Args: args})
}

// Load emits dst = mem[addr].
func (b *Builder) Load(dst, addr Value, w Width, signed bool, memIdx int) {
	b.emit(Op{Code: OpLoad, Dst: dst, A: addr, Width: w, Signed: signed, MemIdx: memIdx})
}

// Store emits mem[addr] = src.
func (b *Builder) Store(src, addr Value, w Width, memIdx int) {
	b.emit(Op{Code: OpStore, A: src, B: addr, Width: w, MemIdx: memIdx})
}

// Raise emits a guest exception.
func (b *Builder) Raise(exception, errorCode uint32) {
	b.emit(Op{Code: OpRaise, Exception: exception, ErrorCode: errorCode})
}
