// Package emu executes translation units against Alpha guest state.
package emu

import "github.com/sarchlab/alphatx/translate"

// ZeroReg is the register number that reads as zero in both banks.
const ZeroReg = 31

// RegFile represents the Alpha register file.
// It contains 31 integer registers (R0-R30), 31 floating registers
// (F0-F30), the program counter and the translator's auxiliary state.
type RegFile struct {
	// IR holds the integer registers. IR[31] is never written.
	IR [32]uint64

	// FIR holds the floating registers in register (T) format.
	FIR [32]uint64

	// PC is the program counter.
	PC uint64

	// Lock holds the address of the last locked load, or all ones.
	Lock uint64

	// Uniq is the process unique value of RDUNIQUE and WRUNIQUE.
	Uniq uint64

	// FPCR is the floating-point control register.
	FPCR uint64

	// IntrFlag is the flag read and cleared by RC and set by RS.
	IntrFlag uint64
}

// NewRegFile returns a register file with no lock held.
func NewRegFile() *RegFile {
	return &RegFile{Lock: ^uint64(0)}
}

// ReadReg reads an integer register. Register 31 returns 0.
func (r *RegFile) ReadReg(reg uint8) uint64 {
	if reg >= ZeroReg {
		return 0
	}
	return r.IR[reg]
}

// WriteReg writes an integer register. Writes to register 31 are ignored.
func (r *RegFile) WriteReg(reg uint8, value uint64) {
	if reg >= ZeroReg {
		return
	}
	r.IR[reg] = value
}

// ReadFReg reads a floating register. F31 returns +0.0.
func (r *RegFile) ReadFReg(reg uint8) uint64 {
	if reg >= ZeroReg {
		return 0
	}
	return r.FIR[reg]
}

// WriteFReg writes a floating register. Writes to F31 are ignored.
func (r *RegFile) WriteFReg(reg uint8, value uint64) {
	if reg >= ZeroReg {
		return
	}
	r.FIR[reg] = value
}

// Slot reads the guest state slot named by a translator global.
func (r *RegFile) Slot(id int) uint64 {
	switch {
	case id >= translate.SlotIR0 && id < translate.SlotIR0+ZeroReg:
		return r.IR[id-translate.SlotIR0]
	case id >= translate.SlotFIR0 && id < translate.SlotFIR0+ZeroReg:
		return r.FIR[id-translate.SlotFIR0]
	case id == translate.SlotPC:
		return r.PC
	case id == translate.SlotLock:
		return r.Lock
	case id == translate.SlotUniq:
		return r.Uniq
	}
	return 0
}

// SetSlot writes the guest state slot named by a translator global.
func (r *RegFile) SetSlot(id int, value uint64) {
	switch {
	case id >= translate.SlotIR0 && id < translate.SlotIR0+ZeroReg:
		r.IR[id-translate.SlotIR0] = value
	case id >= translate.SlotFIR0 && id < translate.SlotFIR0+ZeroReg:
		r.FIR[id-translate.SlotFIR0] = value
	case id == translate.SlotPC:
		r.PC = value
	case id == translate.SlotLock:
		r.Lock = value
	case id == translate.SlotUniq:
		r.Uniq = value
	}
}
