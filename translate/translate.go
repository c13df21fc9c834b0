// Package translate turns Alpha guest code into IR translation units.
//
// A Translator fetches instruction words through a CodeReader, decodes them
// with insts.Decoder and dispatches each one through a two-level table of
// handlers. Handlers append IR through a per-block Context and report how
// the block should continue. The block loop stops on a control transfer, a
// trap, a barrier, a breakpoint, single-step, the instruction cap, a page
// boundary or a full IR buffer.
//
// Usage:
//
//	t := translate.NewTranslator(mem, translate.WithModel(models.Default()))
//	unit, err := t.TranslateBlock(0x120000000)
//	fmt.Print(unit.Listing())
package translate

import (
	"fmt"
	"math/bits"

	"github.com/sarchlab/alphatx/insts"
	"github.com/sarchlab/alphatx/ir"
	"github.com/sarchlab/alphatx/models"
)

// Termination is the signal a handler returns to the block loop.
type Termination uint8

// Termination signals.
const (
	// Continue decodes the next instruction.
	Continue Termination = iota
	// ControlTransfer means the handler wrote the next pc.
	ControlTransfer
	// Barrier ends the block; the next pc is the fallthrough address.
	Barrier
	// Trap means the IR already raises an exception.
	Trap
)

func (t Termination) String() string {
	switch t {
	case Continue:
		return "continue"
	case ControlTransfer:
		return "control-transfer"
	case Barrier:
		return "barrier"
	case Trap:
		return "trap"
	}
	return fmt.Sprintf("termination(%d)", uint8(t))
}

// StopReason records why the block loop ended.
type StopReason uint8

// Stop reasons in the order the loop checks them.
const (
	StopNone StopReason = iota
	StopControlTransfer
	StopTrap
	StopBarrier
	StopBreakpoint
	StopDebugStep
	StopSingleStep
	StopInsnCap
	StopPageBoundary
	StopIRCapacity
)

var stopNames = [...]string{
	StopNone:            "none",
	StopControlTransfer: "control-transfer",
	StopTrap:            "trap",
	StopBarrier:         "barrier",
	StopBreakpoint:      "breakpoint",
	StopDebugStep:       "debug-step",
	StopSingleStep:      "single-step",
	StopInsnCap:         "insn-cap",
	StopPageBoundary:    "page-boundary",
	StopIRCapacity:      "ir-capacity",
}

func (s StopReason) String() string {
	if int(s) < len(stopNames) {
		return stopNames[s]
	}
	return fmt.Sprintf("stop(%d)", uint8(s))
}

// CodeReader fetches guest instruction words.
type CodeReader interface {
	ReadCode32(addr uint64) (uint32, error)
}

// Mode is the privilege state a block is translated under.
type Mode struct {
	// MemIndex is passed through to every load and store for the
	// executor's address translation.
	MemIndex int
	// PALMode enables the hardware PALcode instructions.
	PALMode bool
	// UserOnly translates for user-mode emulation, where RDUNIQUE and
	// WRUNIQUE are handled inline and privileged instructions are illegal.
	UserOnly bool
}

// Default limits.
const (
	DefaultMaxInsns   = 0x7FFF
	DefaultPageSize   = 8192
	DefaultIRCapacity = 512
)

// Options configures a Translator.
type Options struct {
	Model       models.Model
	Mode        Mode
	MaxInsns    int
	PageSize    uint64
	IRCapacity  int
	SingleStep  bool
	DebugStep   bool
	Breakpoints []uint64
	SearchPC    bool
}

// Option is a functional option for configuring a Translator.
type Option func(*Options)

// WithModel selects the CPU model whose features gate instructions.
func WithModel(m models.Model) Option {
	return func(o *Options) { o.Model = m }
}

// WithMode sets the privilege mode.
func WithMode(m Mode) Option {
	return func(o *Options) { o.Mode = m }
}

// WithMaxInsns caps the number of instructions per block.
func WithMaxInsns(n int) Option {
	return func(o *Options) { o.MaxInsns = n }
}

// WithPageSize sets the boundary that blocks never cross. The size must be
// a power of two; any other value is rounded down to one, and sizes below
// one instruction are raised to 4.
func WithPageSize(size uint64) Option {
	return func(o *Options) { o.PageSize = size }
}

// WithIRCapacity sets the op count after which a block is closed.
func WithIRCapacity(n int) Option {
	return func(o *Options) { o.IRCapacity = n }
}

// WithSingleStep ends every block after one instruction.
func WithSingleStep(enabled bool) Option {
	return func(o *Options) { o.SingleStep = enabled }
}

// WithDebugStep raises the debug exception after every instruction.
func WithDebugStep(enabled bool) Option {
	return func(o *Options) { o.DebugStep = enabled }
}

// WithBreakpoints sets the guest addresses that raise the debug exception
// before the instruction there is translated.
func WithBreakpoints(pcs ...uint64) Option {
	return func(o *Options) { o.Breakpoints = append([]uint64(nil), pcs...) }
}

// WithSearchPC records the guest pc of every instruction start.
func WithSearchPC(enabled bool) Option {
	return func(o *Options) { o.SearchPC = enabled }
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Model:      models.Default(),
		MaxInsns:   DefaultMaxInsns,
		PageSize:   DefaultPageSize,
		IRCapacity: DefaultIRCapacity,
	}
}

// Translator builds translation units. It holds no per-block state and is
// safe for concurrent use.
type Translator struct {
	reader      CodeReader
	decoder     *insts.Decoder
	opts        Options
	breakpoints map[uint64]struct{}
}

// NewTranslator creates a translator reading code from reader.
func NewTranslator(reader CodeReader, opts ...Option) *Translator {
	Init()

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxInsns <= 0 {
		o.MaxInsns = DefaultMaxInsns
	}
	switch {
	case o.PageSize == 0:
		o.PageSize = DefaultPageSize
	case o.PageSize < 4:
		o.PageSize = 4
	default:
		o.PageSize = 1 << (63 - bits.LeadingZeros64(o.PageSize))
	}
	if o.IRCapacity <= 0 {
		o.IRCapacity = DefaultIRCapacity
	}

	t := &Translator{
		reader:      reader,
		decoder:     insts.NewDecoder(),
		opts:        o,
		breakpoints: make(map[uint64]struct{}, len(o.Breakpoints)),
	}
	for _, pc := range o.Breakpoints {
		t.breakpoints[pc] = struct{}{}
	}

	return t
}

// Options returns the effective options.
func (t *Translator) Options() Options {
	return t.opts
}

// PCEntry maps an op offset to the instruction that starts there.
type PCEntry struct {
	Offset    int
	PC        uint64
	InsnIndex int
}

// Unit is a finished translation unit. The caller owns it.
type Unit struct {
	StartPC  uint64
	Size     uint64
	NumInsns int

	Ops       []ir.Op
	NumTemps  int
	NumLabels int

	Termination Termination
	Stop        StopReason

	// PCIndex is filled when the translator runs with WithSearchPC.
	PCIndex []PCEntry
}

// PCAt returns the guest pc of the instruction that emitted the op at
// offset.
func (u *Unit) PCAt(offset int) (uint64, bool) {
	if offset < 0 || offset >= len(u.Ops) || len(u.PCIndex) == 0 {
		return 0, false
	}

	pc, found := uint64(0), false
	for _, e := range u.PCIndex {
		if e.Offset > offset {
			break
		}
		pc, found = e.PC, true
	}

	return pc, found
}

// InsnsThrough returns how many guest instructions had started by the op
// at offset. Without a pc index, or for an offset past the end, it returns
// NumInsns.
func (u *Unit) InsnsThrough(offset int) int {
	if offset < 0 || offset >= len(u.Ops) || len(u.PCIndex) == 0 {
		return u.NumInsns
	}

	n := 0
	for _, e := range u.PCIndex {
		if e.Offset > offset {
			break
		}
		n = e.InsnIndex + 1
	}

	return n
}

// Listing renders the unit with guest register names.
func (u *Unit) Listing() ir.Listing {
	marks := make(map[int]uint64, len(u.PCIndex))
	for _, e := range u.PCIndex {
		marks[e.Offset] = e.PC
	}

	return ir.Listing{
		Ops:   u.Ops,
		Names: GlobalName,
		Marks: marks,
		Title: fmt.Sprintf("block 0x%x (%d insns, %s)", u.StartPC, u.NumInsns, u.Stop),
	}
}
