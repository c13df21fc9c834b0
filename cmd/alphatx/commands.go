package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/alphatx/config"
	"github.com/sarchlab/alphatx/emu"
	"github.com/sarchlab/alphatx/loader"
	"github.com/sarchlab/alphatx/models"
	"github.com/sarchlab/alphatx/translate"
)

// Alpha calling-convention registers set up before entry.
const (
	regPV = 27
	regSP = 30
)

func listModels(stdout io.Writer) int {
	t := table.NewWriter()
	t.SetTitle("CPU models")
	t.AppendHeader(table.Row{"Name", "Implver", "Features"})
	for _, m := range models.All() {
		t.AppendRow(table.Row{m.Name, m.ImplVer, m.Features})
	}

	fmt.Fprintln(stdout, t.Render())
	return 0
}

// loadProgram loads the ELF named by args into a fresh memory.
func loadProgram(args []string, stderr io.Writer) (*loader.Program, string, bool) {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "Error: expected one program path\n")
		return nil, "", false
	}

	prog, err := loader.Load(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return nil, "", false
	}

	slog.Debug("loaded program",
		"path", args[0],
		"entry", fmt.Sprintf("0x%x", prog.EntryPoint),
		"segments", len(prog.Segments))

	return prog, args[0], true
}

func translateBlock(cfg *config.Config, opts *options, args []string, stdout, stderr io.Writer) int {
	prog, _, ok := loadProgram(args, stderr)
	if !ok {
		return 1
	}

	memory := emu.NewMemory()
	if err := prog.LoadInto(memory); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	tOpts, err := cfg.TranslatorOptions()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	tOpts = append(tOpts, translate.WithSearchPC(true))

	pc := prog.EntryPoint
	if opts.pc != 0 {
		pc = opts.pc
	}

	u, err := translate.NewTranslator(memory, tOpts...).TranslateBlock(pc)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, u.Listing().Table())
	fmt.Fprintf(stdout, "Termination: %s\n", u.Termination)
	return 0
}

func runProgram(cfg *config.Config, opts *options, args []string, stdout, stderr io.Writer) int {
	prog, path, ok := loadProgram(args, stderr)
	if !ok {
		return 1
	}

	xOpts, err := cfg.ExecutorOptions()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	xOpts = append(xOpts, emu.WithStdout(stdout), emu.WithStderr(stderr))

	x := emu.NewExecutor(xOpts...)
	if err := prog.LoadInto(x.Memory()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	rf := x.RegFile()
	rf.PC = prog.EntryPoint
	rf.WriteReg(regPV, prog.EntryPoint)
	rf.WriteReg(regSP, prog.InitialSP)

	result := x.Run()

	if opts.verbose {
		fmt.Fprintf(stdout, "\nProgram: %s\n", path)
		fmt.Fprintln(stdout, statsTable(x))
		fmt.Fprintln(stdout, registerTable(rf))
	}

	switch {
	case result.Err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", result.Err)
		return 1
	case result.Exception != nil:
		fmt.Fprintf(stderr, "Error: %v\n", result.Exception)
		return 1
	}

	if opts.verbose {
		fmt.Fprintf(stdout, "Exit code: %d\n", result.ExitCode)
	}
	return int(result.ExitCode)
}

func statsTable(x *emu.Executor) string {
	t := table.NewWriter()
	t.SetTitle("Execution")
	t.AppendRow(table.Row{"Instructions", x.InstructionCount()})
	t.AppendRow(table.Row{"Units", x.UnitCount()})

	if c := x.Cache(); c != nil {
		s := c.Stats()
		t.AppendSeparator()
		t.AppendRow(table.Row{"Cache hits", s.Hits})
		t.AppendRow(table.Row{"Cache misses", s.Misses})
		t.AppendRow(table.Row{"Cache writebacks", s.Writebacks})
		t.AppendRow(table.Row{"Cache hit rate", fmt.Sprintf("%.1f%%", 100*s.HitRate())})
	}

	return t.Render()
}

// registerTable lays the integer registers out in 8 rows of 4.
func registerTable(rf *emu.RegFile) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Registers (pc 0x%x)", rf.PC))
	t.AppendHeader(table.Row{"", "+0", "+1", "+2", "+3"})

	for row := 0; row < 8; row++ {
		r := table.Row{fmt.Sprintf("r%d", row*4)}
		for col := 0; col < 4; col++ {
			r = append(r, fmt.Sprintf("0x%016x", rf.ReadReg(uint8(row*4+col))))
		}
		t.AppendRow(r)
	}

	return t.Render()
}
