package ir

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// NameFunc returns the printable name of a global slot.
type NameFunc func(id int) string

// Listing renders ops as text.
type Listing struct {
	Ops []Op
	// Names resolves global slots. When nil, globals print as g<id>.
	Names NameFunc
	// Marks annotates op offsets with the guest address of the instruction
	// that starts there.
	Marks map[int]uint64
	Title string
}

// FormatValue renders one operand.
func (l Listing) FormatValue(v Value) string {
	switch v.Kind {
	case KindGlobal:
		if l.Names != nil {
			return l.Names(v.ID)
		}
		return fmt.Sprintf("g%d", v.ID)
	case KindTemp:
		return fmt.Sprintf("t%d", v.ID)
	case KindConst:
		return fmt.Sprintf("$0x%x", v.Imm)
	}
	return "_"
}

// FormatOp renders one op, e.g. "add ir1, ir2, $0x8".
func (l Listing) FormatOp(op Op) string {
	v := l.FormatValue
	switch op.Code {
	case OpMovI, OpMov, OpNeg, OpNot:
		return fmt.Sprintf("%s %s, %s", op.Code, v(op.Dst), v(op.A))
	case OpExt:
		sign := "u"
		if op.Signed {
			sign = "s"
		}
		return fmt.Sprintf("ext%d%s %s, %s", op.Width, sign, v(op.Dst), v(op.A))
	case OpAddV, OpSubV, OpMulV:
		return fmt.Sprintf("%s/%d %s, %s, %s", op.Code, op.Width, v(op.Dst), v(op.A), v(op.B))
	case OpSetCond:
		return fmt.Sprintf("setcond.%s %s, %s, %s", op.Cond, v(op.Dst), v(op.A), v(op.B))
	case OpBrCond:
		return fmt.Sprintf("brcond.%s %s, %s, L%d", op.Cond, v(op.A), v(op.B), op.Label)
	case OpBr:
		return fmt.Sprintf("br L%d", op.Label)
	case OpLabel:
		return fmt.Sprintf("L%d:", op.Label)
	case OpCall:
		args := make([]string, len(op.Args))
		for i, a := range op.Args {
			args[i] = v(a)
		}
		call := fmt.Sprintf("call %s(%s)", op.Helper, strings.Join(args, ", "))
		if op.Dst.IsNone() {
			return call
		}
		return fmt.Sprintf("%s -> %s", call, v(op.Dst))
	case OpLoad:
		sign := "u"
		if op.Signed {
			sign = "s"
		}
		return fmt.Sprintf("ld%d%s %s, [%s] mmu%d", op.Width, sign, v(op.Dst), v(op.A), op.MemIdx)
	case OpStore:
		return fmt.Sprintf("st%d %s, [%s] mmu%d", op.Width, v(op.A), v(op.B), op.MemIdx)
	case OpRaise:
		return fmt.Sprintf("raise 0x%x, 0x%x", op.Exception, op.ErrorCode)
	}
	return fmt.Sprintf("%s %s, %s, %s", op.Code, v(op.Dst), v(op.A), v(op.B))
}

// String renders one op per line. Marked offsets get a guest address
// comment line.
func (l Listing) String() string {
	var sb strings.Builder
	for i, op := range l.Ops {
		if pc, ok := l.Marks[i]; ok {
			fmt.Fprintf(&sb, "---- %016x\n", pc)
		}
		sb.WriteString(l.FormatOp(op))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Table renders the listing as a table with offset, guest address and op
// columns.
func (l Listing) Table() string {
	t := table.NewWriter()
	if l.Title != "" {
		t.SetTitle(l.Title)
	}
	t.AppendHeader(table.Row{"#", "Guest PC", "Op"})

	for i, op := range l.Ops {
		pc := ""
		if addr, ok := l.Marks[i]; ok {
			pc = fmt.Sprintf("0x%x", addr)
		}
		t.AppendRow(table.Row{i, pc, l.FormatOp(op)})
	}

	return t.Render()
}
