package insts

import "fmt"

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatPAL       Format = iota // CALL_PAL
	FormatMemory                  // loads, stores, LDA, jumps
	FormatBranch                  // 21-bit displacement branches
	FormatOperate                 // integer operate
	FormatFPOperate               // floating-point operate
	FormatMisc                    // memory format with a 16-bit function code
	FormatHW                      // PAL-mode hardware instructions
	FormatReserved                // reserved opcodes
)

var formatNames = [...]string{
	FormatPAL:       "pal",
	FormatMemory:    "memory",
	FormatBranch:    "branch",
	FormatOperate:   "operate",
	FormatFPOperate: "fp-operate",
	FormatMisc:      "misc",
	FormatHW:        "hw",
	FormatReserved:  "reserved",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

// Instruction represents a decoded Alpha instruction word.
//
// Every field is extracted regardless of format; the translator picks the
// ones that the opcode defines.
type Instruction struct {
	Word   uint32 // Raw instruction word
	Opcode uint8  // Primary opcode, bits [31:26]
	Format Format // Encoding format implied by the opcode

	Ra uint8 // bits [25:21]
	Rb uint8 // bits [20:16]
	Rc uint8 // bits [4:0]

	// RawLit is the literal selector bit as encoded. IsLit is the effective
	// selector: an Rb of 31 with the bit clear still reads as literal 0.
	RawLit bool
	IsLit  bool
	Lit    uint8 // bits [20:13], unsigned

	Disp16 int32 // bits [15:0], sign-extended
	Disp21 int32 // bits [20:0], sign-extended
	Disp12 int32 // bits [11:0], sign-extended

	// HWRetDisp is the HW_REI displacement.
	HWRetDisp int64

	PALCode uint32 // bits [25:0]
	Fn16    uint16 // bits [15:0]
	Fn11    uint16 // bits [15:5]
	FpFn    uint8  // bits [10:5]
	Fn7     uint8  // bits [11:5]
	Fn2     uint8  // bits [15:14], jump hint
	HWFn    uint8  // bits [15:12]
	IPR     uint8  // bits [7:0]
}

// Decoder decodes Alpha machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new Alpha instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit Alpha instruction word.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Word: word}

	inst.Opcode = uint8(word >> 26)      // bits [31:26]
	inst.Ra = uint8((word >> 21) & 0x1F) // bits [25:21]
	inst.Rb = uint8((word >> 16) & 0x1F) // bits [20:16]
	inst.Rc = uint8(word & 0x1F)         // bits [4:0]

	d.decodeOperand(word, inst)
	d.decodeDisplacements(word, inst)
	d.decodeFunctions(word, inst)

	inst.Format = classify(inst.Opcode)

	return inst
}

// decodeOperand extracts the second operand selector.
// Operate format: opcode | ra | rb | 000 | 0 | fn7 | rc
// Literal format: opcode | ra | lit[7:0] | 1 | fn7 | rc
func (d *Decoder) decodeOperand(word uint32, inst *Instruction) {
	inst.RawLit = (word>>12)&1 == 1 // bit 12

	if inst.Rb == ZeroReg && !inst.RawLit {
		inst.IsLit = true
		inst.Lit = 0
		return
	}

	inst.IsLit = inst.RawLit
	inst.Lit = uint8((word >> 13) & 0xFF) // bits [20:13]
}

// decodeDisplacements sign-extends every displacement field by shifting its
// top bit into bit 31 (or 63) and shifting back arithmetically.
func (d *Decoder) decodeDisplacements(word uint32, inst *Instruction) {
	inst.Disp16 = int32(int16(word))    // bits [15:0]
	inst.Disp21 = int32(word<<11) >> 11 // bits [20:0]
	inst.Disp12 = int32(word<<20) >> 20 // bits [11:0]

	// TODO: confirm the HW_REI displacement width against the 21264 PALcode
	// manual; the 51-bit shift pair keeps bits [12:0] rather than [11:0].
	inst.HWRetDisp = (int64(word) << 51) >> 51
}

func (d *Decoder) decodeFunctions(word uint32, inst *Instruction) {
	inst.PALCode = word & 0x3FFFFFF         // bits [25:0]
	inst.Fn16 = uint16(word)                // bits [15:0]
	inst.Fn11 = uint16((word >> 5) & 0x7FF) // bits [15:5]
	inst.FpFn = uint8(inst.Fn11 & 0x3F)     // bits [10:5]
	inst.Fn7 = uint8((word >> 5) & 0x7F)    // bits [11:5]
	inst.Fn2 = uint8((word >> 14) & 0x3)    // bits [15:14]
	inst.HWFn = uint8((word >> 12) & 0xF)   // bits [15:12]
	inst.IPR = uint8(word)                  // bits [7:0]
}

func classify(opcode uint8) Format {
	switch {
	case opcode == 0x00:
		return FormatPAL
	case opcode >= 0x01 && opcode <= 0x07:
		return FormatReserved
	case opcode == 0x10, opcode == 0x11, opcode == 0x12, opcode == 0x13, opcode == 0x1C:
		return FormatOperate
	case opcode == 0x14, opcode == 0x15, opcode == 0x16, opcode == 0x17:
		return FormatFPOperate
	case opcode == 0x18:
		return FormatMisc
	case opcode == 0x19, opcode == 0x1B, opcode == 0x1D, opcode == 0x1E, opcode == 0x1F:
		return FormatHW
	case opcode >= 0x30:
		return FormatBranch
	default:
		return FormatMemory
	}
}
