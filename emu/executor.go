package emu

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/sarchlab/alphatx/cache"
	"github.com/sarchlab/alphatx/ir"
	"github.com/sarchlab/alphatx/translate"
)

// callsys is the PAL function of the Linux system call entry.
const callsys = 0x83

// StepResult represents the result of executing one translation unit.
type StepResult struct {
	// Unit is the translation unit that ran.
	Unit *translate.Unit

	// Exited is true if the program terminated (via exit syscall).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Exception is the guest exception the unit raised and the executor
	// did not handle itself.
	Exception *Exception

	// Err is set if a host-side error stopped execution.
	Err error
}

// Executor runs guest code by translating one block at a time and
// interpreting the IR against a register file and memory.
type Executor struct {
	regFile        *RegFile
	memory         *Memory
	dcache         *cache.Cache
	cacheConfig    *cache.Config
	translator     *translate.Translator
	tOpts          []translate.Option
	helpers        map[string]Helper
	syscallHandler SyscallHandler

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	unitCount        uint64
}

// ExecutorOption is a functional option for configuring the Executor.
type ExecutorOption func(*Executor)

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) ExecutorOption {
	return func(x *Executor) {
		x.stdout = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) ExecutorOption {
	return func(x *Executor) {
		x.stderr = w
	}
}

// WithStdin sets the reader behind guest file descriptor 0.
func WithStdin(r io.Reader) ExecutorOption {
	return func(x *Executor) {
		x.stdin = r
	}
}

// WithSyscallHandler sets a custom syscall handler.
func WithSyscallHandler(handler SyscallHandler) ExecutorOption {
	return func(x *Executor) {
		x.syscallHandler = handler
	}
}

// WithMaxInstructions sets the maximum number of guest instructions to
// execute. A value of 0 means no limit.
func WithMaxInstructions(max uint64) ExecutorOption {
	return func(x *Executor) {
		x.maxInstructions = max
	}
}

// WithCache routes guest loads and stores through a data cache.
func WithCache(config cache.Config) ExecutorOption {
	return func(x *Executor) {
		x.cacheConfig = &config
	}
}

// WithHelper registers or replaces a helper.
func WithHelper(name string, fn Helper) ExecutorOption {
	return func(x *Executor) {
		x.helpers[name] = fn
	}
}

// WithTranslatorOptions configures the translator the executor uses.
func WithTranslatorOptions(opts ...translate.Option) ExecutorOption {
	return func(x *Executor) {
		x.tOpts = append(x.tOpts, opts...)
	}
}

// WithMemory makes the executor run against an existing memory.
func WithMemory(m *Memory) ExecutorOption {
	return func(x *Executor) {
		x.memory = m
	}
}

// NewExecutor creates a new executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	x := &Executor{
		regFile: NewRegFile(),
		memory:  NewMemory(),
		helpers: helperTable(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}

	for _, opt := range opts {
		opt(x)
	}

	if x.cacheConfig != nil {
		x.dcache = cache.New(*x.cacheConfig, x.memory)
	}

	// The pc index lets Step count the instructions of a unit that faults
	// part-way through.
	x.tOpts = append(x.tOpts, translate.WithSearchPC(true))
	x.translator = translate.NewTranslator(x.memory, x.tOpts...)

	if x.syscallHandler == nil {
		h := NewDefaultSyscallHandler(x.regFile, x.memory, x.stdout, x.stderr)
		h.SetStdin(x.stdin)
		x.syscallHandler = h
	}

	return x
}

// RegFile returns the executor's register file.
func (x *Executor) RegFile() *RegFile {
	return x.regFile
}

// Memory returns the executor's memory.
func (x *Executor) Memory() *Memory {
	return x.memory
}

// Cache returns the data cache, or nil when none is configured.
func (x *Executor) Cache() *cache.Cache {
	return x.dcache
}

// Translator returns the translator the executor uses.
func (x *Executor) Translator() *translate.Translator {
	return x.translator
}

// InstructionCount returns the number of guest instructions executed.
func (x *Executor) InstructionCount() uint64 {
	return x.instructionCount
}

// UnitCount returns the number of translation units executed.
func (x *Executor) UnitCount() uint64 {
	return x.unitCount
}

// LoadProgram copies program into memory and sets the entry point.
func (x *Executor) LoadProgram(entry uint64, program []byte) error {
	if err := x.memory.LoadProgram(entry, program); err != nil {
		return err
	}
	x.regFile.PC = entry
	return nil
}

// Step translates the block at pc and executes it.
func (x *Executor) Step() StepResult {
	if x.maxInstructions > 0 && x.instructionCount >= x.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	unit, err := x.translate(x.regFile.PC)
	if err != nil {
		return StepResult{Err: err}
	}

	excp, stopped, err := x.execute(unit)
	if stopped < 0 {
		x.instructionCount += uint64(unit.NumInsns)
	} else {
		x.instructionCount += uint64(unit.InsnsThrough(stopped))
		if excp != nil && unit.Ops[stopped].Code != ir.OpRaise {
			x.faultAt(unit, stopped, excp)
		}
	}
	x.unitCount++

	result := StepResult{Unit: unit, Exception: excp, Err: err}
	if excp != nil {
		x.handleException(&result)
	}

	return result
}

// faultAt points pc and the exception at the instruction that faulted
// while executing, since the unit has not stored pc at that point.
func (x *Executor) faultAt(unit *translate.Unit, offset int, excp *Exception) {
	if pc, ok := unit.PCAt(offset); ok {
		x.regFile.PC = pc
		excp.PC = pc
	}
}

// translate caps the block at the remaining instruction budget.
func (x *Executor) translate(pc uint64) (*translate.Unit, error) {
	t := x.translator
	if x.maxInstructions > 0 {
		remaining := x.maxInstructions - x.instructionCount
		if remaining < uint64(t.Options().MaxInsns) {
			opts := append(append([]translate.Option(nil), x.tOpts...),
				translate.WithMaxInsns(int(remaining)))
			t = translate.NewTranslator(x.memory, opts...)
		}
	}

	return t.TranslateBlock(pc)
}

// handleException services the system call entry in user-only mode.
func (x *Executor) handleException(result *StepResult) {
	excp := result.Exception

	pal, ok := excp.CallPAL()
	if !ok || pal != callsys || !x.translator.Options().Mode.UserOnly {
		slog.Debug("guest exception",
			"kind", ExceptionName(excp.Kind),
			"code", excp.Code,
			"pc", fmt.Sprintf("0x%x", excp.PC))
		return
	}

	result.Exception = nil
	sys := x.syscallHandler.Handle()
	result.Exited = sys.Exited
	result.ExitCode = sys.ExitCode
}

// Run executes until the program exits, raises an exception the executor
// does not handle, or fails.
func (x *Executor) Run() StepResult {
	for {
		result := x.Step()
		if result.Exited || result.Exception != nil || result.Err != nil {
			if err := x.flush(); err != nil && result.Err == nil {
				result.Err = err
			}
			return result
		}
	}
}

func (x *Executor) flush() error {
	if x.dcache == nil {
		return nil
	}
	return x.dcache.Flush()
}

// frame is the per-unit interpreter state.
type frame struct {
	x      *Executor
	temps  []uint64
	labels []int
}

func (f *frame) read(v ir.Value) uint64 {
	switch v.Kind {
	case ir.KindConst:
		return v.Imm
	case ir.KindTemp:
		return f.temps[v.ID]
	case ir.KindGlobal:
		return f.x.regFile.Slot(v.ID)
	}
	return 0
}

func (f *frame) write(v ir.Value, value uint64) {
	switch v.Kind {
	case ir.KindTemp:
		f.temps[v.ID] = value
	case ir.KindGlobal:
		f.x.regFile.SetSlot(v.ID, value)
	}
}

// Execute interprets a translation unit. A raised guest exception ends the
// unit and is returned; the pc global already holds the value the unit
// stored before raising.
func (x *Executor) Execute(u *translate.Unit) (*Exception, error) {
	excp, _, err := x.execute(u)
	return excp, err
}

// execute also returns the offset of the op that ended the unit early,
// or -1 when it ran to the end.
func (x *Executor) execute(u *translate.Unit) (*Exception, int, error) {
	f := &frame{
		x:      x,
		temps:  make([]uint64, u.NumTemps),
		labels: make([]int, u.NumLabels),
	}
	for i, op := range u.Ops {
		if op.Code == ir.OpLabel {
			f.labels[op.Label] = i
		}
	}

	for i := 0; i < len(u.Ops); i++ {
		op := u.Ops[i]

		switch op.Code {
		case ir.OpMovI, ir.OpMov:
			f.write(op.Dst, f.read(op.A))

		case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpAdd32, ir.OpSub32, ir.OpMul32,
			ir.OpAnd, ir.OpOr, ir.OpXor, ir.OpAndC, ir.OpOrC, ir.OpEqv,
			ir.OpShl, ir.OpShr, ir.OpSar:
			f.write(op.Dst, ir.EvalBinary(op.Code, f.read(op.A), f.read(op.B)))

		case ir.OpNeg, ir.OpNot:
			f.write(op.Dst, ir.EvalUnary(op.Code, f.read(op.A)))

		case ir.OpExt:
			f.write(op.Dst, ir.EvalExt(f.read(op.A), op.Width, op.Signed))

		case ir.OpAddV, ir.OpSubV, ir.OpMulV:
			r, ok := ir.EvalChecked(op.Code, f.read(op.A), f.read(op.B), op.Width)
			if !ok {
				return x.raise(translate.ExcpArith, translate.ExcIOV), i, nil
			}
			f.write(op.Dst, r)

		case ir.OpSetCond:
			var v uint64
			if op.Cond.Eval(f.read(op.A), f.read(op.B)) {
				v = 1
			}
			f.write(op.Dst, v)

		case ir.OpBrCond:
			if op.Cond.Eval(f.read(op.A), f.read(op.B)) {
				i = f.labels[op.Label]
			}

		case ir.OpBr:
			i = f.labels[op.Label]

		case ir.OpLabel:

		case ir.OpCall:
			excp, err := x.call(f, op)
			if excp != nil || err != nil {
				return excp, i, err
			}

		case ir.OpLoad:
			v, excp := x.load(f.read(op.A), op.Width)
			if excp != nil {
				return excp, i, nil
			}
			if op.Signed {
				v = ir.SignExtend(v, op.Width)
			}
			f.write(op.Dst, v)

		case ir.OpStore:
			if excp := x.store(f.read(op.B), op.Width, f.read(op.A)); excp != nil {
				return excp, i, nil
			}

		case ir.OpRaise:
			return x.raise(op.Exception, op.ErrorCode), i, nil

		default:
			return nil, i, fmt.Errorf("unit 0x%x: op %d: unknown opcode %v", u.StartPC, i, op.Code)
		}
	}

	return nil, -1, nil
}

func (x *Executor) raise(kind, code uint32) *Exception {
	return &Exception{Kind: kind, Code: code, PC: x.regFile.PC}
}

func (x *Executor) call(f *frame, op ir.Op) (*Exception, error) {
	fn, ok := x.helpers[op.Helper]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedHelper, op.Helper)
	}

	args := make([]uint64, len(op.Args))
	for i, a := range op.Args {
		args[i] = f.read(a)
	}

	v, err := fn(x, args)
	if err != nil {
		var excp *Exception
		if errors.As(err, &excp) {
			excp.PC = x.regFile.PC
			return excp, nil
		}
		return nil, fmt.Errorf("helper %s: %w", op.Helper, err)
	}

	if !op.Dst.IsNone() {
		f.write(op.Dst, v)
	}

	return nil, nil
}

// load reads w bits at addr. Misaligned addresses raise the unaligned
// access exception; addresses outside memory raise a data fault.
func (x *Executor) load(addr uint64, w ir.Width) (uint64, *Exception) {
	size := w.Bytes()
	if addr%uint64(size) != 0 {
		return 0, x.raise(translate.ExcpUnalign, 0)
	}

	if x.dcache != nil {
		res, err := x.dcache.Read(addr, size)
		if err != nil {
			return 0, x.raise(translate.ExcpDFault, 0)
		}
		return res.Data, nil
	}

	v, err := x.memory.ReadUint(addr, size)
	if err != nil {
		return 0, x.raise(translate.ExcpDFault, 0)
	}
	return v, nil
}

func (x *Executor) store(addr uint64, w ir.Width, value uint64) *Exception {
	size := w.Bytes()
	if addr%uint64(size) != 0 {
		return x.raise(translate.ExcpUnalign, 1)
	}

	var err error
	if x.dcache != nil {
		_, err = x.dcache.Write(addr, size, value)
	} else {
		err = x.memory.WriteUint(addr, size, value)
	}
	if err != nil {
		return x.raise(translate.ExcpDFault, 1)
	}
	return nil
}
