package ir

import "fmt"

// Cond is a comparison predicate for SetCond and BrCond.
type Cond uint8

// Comparison predicates. Signed predicates compare the operands as int64.
const (
	CondNever Cond = iota
	CondAlways
	CondEQ
	CondNE
	CondLT
	CondGE
	CondLE
	CondGT
	CondLTU
	CondGEU
	CondLEU
	CondGTU
)

var condNames = [...]string{
	CondNever:  "never",
	CondAlways: "always",
	CondEQ:     "eq",
	CondNE:     "ne",
	CondLT:     "lt",
	CondGE:     "ge",
	CondLE:     "le",
	CondGT:     "gt",
	CondLTU:    "ltu",
	CondGEU:    "geu",
	CondLEU:    "leu",
	CondGTU:    "gtu",
}

func (c Cond) String() string {
	if int(c) < len(condNames) {
		return condNames[c]
	}
	return fmt.Sprintf("cond(%d)", uint8(c))
}

// Invert returns the predicate that holds exactly when c does not.
func (c Cond) Invert() Cond {
	switch c {
	case CondNever:
		return CondAlways
	case CondAlways:
		return CondNever
	case CondEQ:
		return CondNE
	case CondNE:
		return CondEQ
	case CondLT:
		return CondGE
	case CondGE:
		return CondLT
	case CondLE:
		return CondGT
	case CondGT:
		return CondLE
	case CondLTU:
		return CondGEU
	case CondGEU:
		return CondLTU
	case CondLEU:
		return CondGTU
	case CondGTU:
		return CondLEU
	}
	panic(fmt.Sprintf("ir: invalid condition %d", c))
}

// Swap returns the predicate with the operands exchanged, so that
// a c b == b c.Swap() a.
func (c Cond) Swap() Cond {
	switch c {
	case CondLT:
		return CondGT
	case CondGT:
		return CondLT
	case CondLE:
		return CondGE
	case CondGE:
		return CondLE
	case CondLTU:
		return CondGTU
	case CondGTU:
		return CondLTU
	case CondLEU:
		return CondGEU
	case CondGEU:
		return CondLEU
	}
	return c
}

// Eval evaluates the predicate.
func (c Cond) Eval(a, b uint64) bool {
	switch c {
	case CondNever:
		return false
	case CondAlways:
		return true
	case CondEQ:
		return a == b
	case CondNE:
		return a != b
	case CondLT:
		return int64(a) < int64(b)
	case CondGE:
		return int64(a) >= int64(b)
	case CondLE:
		return int64(a) <= int64(b)
	case CondGT:
		return int64(a) > int64(b)
	case CondLTU:
		return a < b
	case CondGEU:
		return a >= b
	case CondLEU:
		return a <= b
	case CondGTU:
		return a > b
	}
	panic(fmt.Sprintf("ir: invalid condition %d", c))
}

// EvalBinary computes an unchecked two-operand op. Shift amounts use their
// low six bits.
func EvalBinary(code Opcode, a, b uint64) uint64 {
	switch code {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpAdd32:
		return SignExtend(a+b, W32)
	case OpSub32:
		return SignExtend(a-b, W32)
	case OpMul32:
		return SignExtend(a*b, W32)
	case OpAnd:
		return a & b
	case OpOr:
		return a | b
	case OpXor:
		return a ^ b
	case OpAndC:
		return a &^ b
	case OpOrC:
		return a | ^b
	case OpEqv:
		return a ^ ^b
	case OpShl:
		return a << (b & 63)
	case OpShr:
		return a >> (b & 63)
	case OpSar:
		return uint64(int64(a) >> (b & 63))
	}
	panic(fmt.Sprintf("ir: %v is not a binary op", code))
}

// EvalUnary computes Neg and Not.
func EvalUnary(code Opcode, a uint64) uint64 {
	switch code {
	case OpNeg:
		return -a
	case OpNot:
		return ^a
	}
	panic(fmt.Sprintf("ir: %v is not a unary op", code))
}

// EvalExt computes an extension from width w.
func EvalExt(a uint64, w Width, signed bool) uint64 {
	if signed {
		return SignExtend(a, w)
	}
	return ZeroExtend(a, w)
}

// SignExtend sign-extends the low w bits of a.
func SignExtend(a uint64, w Width) uint64 {
	switch w {
	case W8:
		return uint64(int64(int8(a)))
	case W16:
		return uint64(int64(int16(a)))
	case W32:
		return uint64(int64(int32(a)))
	}
	return a
}

// ZeroExtend clears every bit above the low w bits of a.
func ZeroExtend(a uint64, w Width) uint64 {
	switch w {
	case W8:
		return a & 0xFF
	case W16:
		return a & 0xFFFF
	case W32:
		return a & 0xFFFFFFFF
	}
	return a
}

// EvalChecked computes an overflow-checked op. ok is false on signed
// overflow at the given width. 32-bit results are sign-extended.
func EvalChecked(code Opcode, a, b uint64, w Width) (result uint64, ok bool) {
	if w == W32 {
		x, y := int64(int32(a)), int64(int32(b))
		var r int64
		switch code {
		case OpAddV:
			r = x + y
		case OpSubV:
			r = x - y
		case OpMulV:
			r = x * y
		default:
			panic(fmt.Sprintf("ir: %v is not a checked op", code))
		}
		return uint64(int64(int32(r))), r == int64(int32(r))
	}

	x, y := int64(a), int64(b)
	switch code {
	case OpAddV:
		r := x + y
		return uint64(r), !((x >= 0) == (y >= 0) && (r >= 0) != (x >= 0))
	case OpSubV:
		r := x - y
		return uint64(r), !((x >= 0) != (y >= 0) && (r >= 0) != (x >= 0))
	case OpMulV:
		r := x * y
		if x != 0 && (r/x != y || (x == -1 && y == -1<<63)) {
			return uint64(r), false
		}
		return uint64(r), true
	}
	panic(fmt.Sprintf("ir: %v is not a checked op", code))
}

func isCommutative(code Opcode) bool {
	switch code {
	case OpAdd, OpMul, OpAdd32, OpMul32, OpAnd, OpOr, OpXor, OpEqv:
		return true
	}
	return false
}
