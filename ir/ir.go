// Package ir defines the architecture-neutral intermediate representation
// produced by the translator and consumed by an executor or code generator.
//
// A translation unit is an ordered list of Op values. Operands are Values,
// which name a guest state slot (a global), a block-local temporary, or a
// constant. Any source operand may be a constant; this is how the IR
// expresses the immediate forms of arithmetic, logical and shift operations.
//
// Ops are appended through a Builder, which folds constant operands the way
// a code generator front end would (x+0 becomes a move, two constants become
// a move-immediate, and so on).
package ir

import "fmt"

// ValueKind tells what a Value refers to.
type ValueKind uint8

// Value kinds.
const (
	KindNone ValueKind = iota
	KindGlobal
	KindTemp
	KindConst
)

// Value is an IR operand.
type Value struct {
	Kind ValueKind
	// ID is the global slot or temporary number.
	ID int
	// Imm is the constant for KindConst.
	Imm uint64
}

// None is the absent value, used for calls without a result.
var None = Value{}

// Const returns a constant value.
func Const(v uint64) Value {
	return Value{Kind: KindConst, Imm: v}
}

// ConstInt returns a constant holding the two's-complement bits of v.
func ConstInt(v int64) Value {
	return Const(uint64(v))
}

// Global returns the value naming guest state slot id.
func Global(id int) Value {
	return Value{Kind: KindGlobal, ID: id}
}

// IsConst reports whether v is a constant.
func (v Value) IsConst() bool { return v.Kind == KindConst }

// IsNone reports whether v is the absent value.
func (v Value) IsNone() bool { return v.Kind == KindNone }

// IsConstValue reports whether v is the constant c.
func (v Value) IsConstValue(c uint64) bool {
	return v.Kind == KindConst && v.Imm == c
}

// Opcode identifies an IR operation.
type Opcode uint8

// IR opcodes.
const (
	OpInvalid Opcode = iota

	OpMovI // Dst = A (constant)
	OpMov  // Dst = A

	OpAdd
	OpSub
	OpMul
	OpNeg
	OpAdd32 // Dst = sext32(A + B)
	OpSub32 // Dst = sext32(A - B)
	OpMul32 // Dst = sext32(A * B)
	OpAddV  // overflow-checked add, Width 32 or 64
	OpSubV  // overflow-checked subtract
	OpMulV  // overflow-checked multiply

	OpAnd
	OpOr
	OpXor
	OpAndC // A & ^B
	OpOrC  // A | ^B
	OpEqv  // A ^ ^B
	OpNot

	OpShl
	OpShr
	OpSar

	OpExt // Dst = extend(A) from Width, Signed selects sign extension

	OpSetCond // Dst = A cond B ? 1 : 0
	OpBrCond  // if A cond B goto Label
	OpBr      // goto Label
	OpLabel   // Label:

	OpCall  // Dst = Helper(Args...), Dst may be None
	OpLoad  // Dst = mem[A] with Width/Signed/MemIdx
	OpStore // mem[B] = A with Width/MemIdx

	OpRaise // raise Exception with ErrorCode
)

var opcodeNames = [...]string{
	OpInvalid: "invalid",
	OpMovI:    "movi",
	OpMov:     "mov",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpNeg:     "neg",
	OpAdd32:   "add32",
	OpSub32:   "sub32",
	OpMul32:   "mul32",
	OpAddV:    "addv",
	OpSubV:    "subv",
	OpMulV:    "mulv",
	OpAnd:     "and",
	OpOr:      "or",
	OpXor:     "xor",
	OpAndC:    "andc",
	OpOrC:     "orc",
	OpEqv:     "eqv",
	OpNot:     "not",
	OpShl:     "shl",
	OpShr:     "shr",
	OpSar:     "sar",
	OpExt:     "ext",
	OpSetCond: "setcond",
	OpBrCond:  "brcond",
	OpBr:      "br",
	OpLabel:   "label",
	OpCall:    "call",
	OpLoad:    "ld",
	OpStore:   "st",
	OpRaise:   "raise",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) && opcodeNames[o] != "" {
		return opcodeNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Width is an access or extension width in bits.
type Width uint8

// Widths.
const (
	W8  Width = 8
	W16 Width = 16
	W32 Width = 32
	W64 Width = 64
)

// Bytes returns the width in bytes.
func (w Width) Bytes() int { return int(w) / 8 }

// Label is a forward branch target inside one translation unit.
type Label int

// Op is one IR operation. Fields not used by an opcode are zero.
type Op struct {
	Code Opcode
	Dst  Value
	A    Value
	B    Value
	Args []Value

	Cond   Cond
	Label  Label
	Width  Width
	Signed bool
	MemIdx int
	Helper string

	Exception uint32
	ErrorCode uint32
}

// WritesGlobal reports whether the op assigns to the given global slot.
func (o Op) WritesGlobal(id int) bool {
	return o.Dst.Kind == KindGlobal && o.Dst.ID == id
}
