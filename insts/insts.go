// Package insts provides Alpha instruction field definitions and decoding.
//
// This package extracts the fixed bit fields of a 32-bit Alpha instruction
// word. Decoding never fails: every word yields an Instruction, and deciding
// whether the opcode or function code is legal is left to the translator.
//
// The fields cover every encoding format:
//   - PALcode: opcode | palcode[25:0]
//   - Branch: opcode | ra | disp[20:0]
//   - Memory: opcode | ra | rb | disp[15:0]
//   - Operate: opcode | ra | rb or literal | fn7 | rc
//   - FP operate: opcode | fa | fb | fn11 | fc
//   - PAL-mode hardware forms with 12-bit displacements and IPR numbers
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x40220401) // ADDQ r1, r2, r1
//	fmt.Printf("Opcode: 0x%x, Ra: %d, Rb: %d, Rc: %d\n", inst.Opcode, inst.Ra, inst.Rb, inst.Rc)
package insts

// ZeroReg is the register index that reads as zero and discards writes, in
// both the integer and the floating bank.
const ZeroReg = 31
