package translate

import (
	"fmt"
	"sync"

	"github.com/sarchlab/alphatx/ir"
)

// Guest state slots. The executor keeps one 64-bit value per slot.
const (
	SlotIR0    = 0  // ir0..ir30
	SlotFIR0   = 31 // fir0..fir30
	SlotPC     = 62
	SlotLock   = 63
	SlotUniq   = 64
	NumSlots   = 65
	numIntRegs = 31
)

// Register aliases used by the user-mode PAL calls.
const (
	RegV0 = 0
	RegA0 = 16
)

var (
	initOnce    sync.Once
	globalNames [NumSlots]string
	irRegs      [numIntRegs]ir.Value
	firRegs     [numIntRegs]ir.Value
	pcReg       ir.Value
	lockReg     ir.Value
	uniqReg     ir.Value
)

// Init builds the register binding table and the dispatch tables. It is
// idempotent and safe to call from several goroutines; the tables are
// read-only once it returns.
func Init() {
	initOnce.Do(func() {
		for i := 0; i < numIntRegs; i++ {
			irRegs[i] = ir.Global(SlotIR0 + i)
			globalNames[SlotIR0+i] = fmt.Sprintf("ir%d", i)

			firRegs[i] = ir.Global(SlotFIR0 + i)
			globalNames[SlotFIR0+i] = fmt.Sprintf("fir%d", i)
		}

		pcReg = ir.Global(SlotPC)
		globalNames[SlotPC] = "pc"
		lockReg = ir.Global(SlotLock)
		globalNames[SlotLock] = "lock"
		uniqReg = ir.Global(SlotUniq)
		globalNames[SlotUniq] = "uniq"

		buildTables()
	})
}

// IR returns the global bound to integer register i (0..30).
func IR(i int) ir.Value { return irRegs[i] }

// FIR returns the global bound to floating register i (0..30).
func FIR(i int) ir.Value { return firRegs[i] }

// PC returns the program counter global.
func PC() ir.Value { return pcReg }

// Lock returns the global holding the locked-load address.
func Lock() ir.Value { return lockReg }

// Uniq returns the global holding the process unique value.
func Uniq() ir.Value { return uniqReg }

// GlobalName returns the printable name of a slot.
func GlobalName(id int) string {
	if id < 0 || id >= NumSlots || globalNames[id] == "" {
		return fmt.Sprintf("g%d", id)
	}
	return globalNames[id]
}
