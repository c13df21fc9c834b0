package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrTempLeak reports a handler that returned with live temporaries.
	ErrTempLeak = errors.New("temporaries leaked")
	// ErrUnplacedLabel reports a branch to a label that was never placed.
	ErrUnplacedLabel = errors.New("label never placed")
)

// TranslateBlock translates guest code starting at pc until a stop
// condition holds. Guest faults become IR; only host-side problems, such
// as a failed code fetch, are returned as errors.
func (t *Translator) TranslateBlock(pc uint64) (*Unit, error) {
	c := newContext(pc, t.opts.Mode, t.opts.Model)
	u := &Unit{StartPC: pc}

	term := Continue
	stop := StopNone

	for stop == StopNone {
		if t.opts.SearchPC {
			u.PCIndex = append(u.PCIndex, PCEntry{
				Offset:    c.b.Len(),
				PC:        c.pc,
				InsnIndex: u.NumInsns,
			})
		}

		// The breakpoint instruction is counted so that the unit covers
		// its address.
		if _, hit := t.breakpoints[c.pc]; hit {
			c.excp(ExcpDebug, 0)
			u.NumInsns++
			c.pc += 4
			term, stop = Trap, StopBreakpoint
			break
		}

		insnPC := c.pc
		word, err := t.reader.ReadCode32(insnPC)
		if err != nil {
			return nil, fmt.Errorf("fetch at 0x%x: %w", insnPC, err)
		}

		inst := t.decoder.Decode(word)
		u.NumInsns++
		c.pc += 4

		var name string
		term, name = c.dispatch(inst)

		if traceEnabled() {
			Trace("translate",
				"pc", fmt.Sprintf("0x%x", insnPC),
				"word", fmt.Sprintf("0x%08x", word),
				"insn", name,
				"term", term.String())
		}

		if live := c.b.LiveTemps(); live != 0 {
			return nil, fmt.Errorf("%s at 0x%x: %d %w", name, insnPC, live, ErrTempLeak)
		}

		term, stop = t.stopAfter(c, term, u.NumInsns)
	}

	if term != ControlTransfer && term != Trap {
		c.b.MovI(PC(), c.pc)
	}

	if unplaced := c.b.UnplacedLabels(); len(unplaced) != 0 {
		return nil, fmt.Errorf("block 0x%x: L%d: %w", pc, unplaced[0], ErrUnplacedLabel)
	}

	u.Size = c.pc - pc
	u.Ops = c.b.Ops()
	u.NumTemps = c.b.NumTemps()
	u.NumLabels = c.b.NumLabels()
	u.Termination = term
	u.Stop = stop

	return u, nil
}

// stopAfter applies the stop conditions checked at an instruction
// boundary, in priority order.
func (t *Translator) stopAfter(c *Context, term Termination, numInsns int) (Termination, StopReason) {
	switch term {
	case ControlTransfer:
		return term, StopControlTransfer
	case Trap:
		return term, StopTrap
	case Barrier:
		return term, StopBarrier
	}

	switch {
	case t.opts.DebugStep:
		c.excp(ExcpDebug, 0)
		return Trap, StopDebugStep
	case t.opts.SingleStep:
		return term, StopSingleStep
	case numInsns >= t.opts.MaxInsns:
		return term, StopInsnCap
	case c.pc&(t.opts.PageSize-1) == 0:
		return term, StopPageBoundary
	case c.b.Len() >= t.opts.IRCapacity:
		return term, StopIRCapacity
	}

	return term, StopNone
}
