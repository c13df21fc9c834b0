package emu

import (
	"fmt"
	"math/bits"
)

// Helper implements a named IR call. It returns the value written to the
// call's destination, if it has one. A helper raises a guest exception by
// returning an *Exception.
type Helper func(x *Executor, args []uint64) (uint64, error)

// helperTable maps helper names to implementations. Executors start from
// a copy and may override entries with WithHelper.
func helperTable() map[string]Helper {
	h := map[string]Helper{
		"cmpbge": binaryOp(cmpbge),
		"umulh": binaryOp(func(a, b uint64) uint64 {
			hi, _ := bits.Mul64(a, b)
			return hi
		}),
		"zap":    binaryOp(func(a, b uint64) uint64 { return a &^ byteMask(uint8(b)) }),
		"zapnot": binaryOp(func(a, b uint64) uint64 { return a & byteMask(uint8(b)) }),

		"ctpop": unary(func(a uint64) uint64 { return uint64(bits.OnesCount64(a)) }),
		"ctlz":  unary(func(a uint64) uint64 { return uint64(bits.LeadingZeros64(a)) }),
		"cttz":  unary(func(a uint64) uint64 { return uint64(bits.TrailingZeros64(a)) }),

		"perr":   binaryOp(perr),
		"minub8": binaryOp(lanes(8, false, minLane)),
		"minsb8": binaryOp(lanes(8, true, minLane)),
		"minuw4": binaryOp(lanes(16, false, minLane)),
		"minsw4": binaryOp(lanes(16, true, minLane)),
		"maxub8": binaryOp(lanes(8, false, maxLane)),
		"maxsb8": binaryOp(lanes(8, true, maxLane)),
		"maxuw4": binaryOp(lanes(16, false, maxLane)),
		"maxsw4": binaryOp(lanes(16, true, maxLane)),
		"pkwb":   unary(pkwb),
		"pklb":   unary(pklb),
		"unpkbw": unary(unpkbw),
		"unpkbl": unary(unpkbl),

		"load_pcc": func(x *Executor, _ []uint64) (uint64, error) {
			return x.instructionCount & 0xFFFFFFFF, nil
		},
		"rc": func(x *Executor, _ []uint64) (uint64, error) {
			old := x.regFile.IntrFlag
			x.regFile.IntrFlag = 0
			return old, nil
		},
		"rs": func(x *Executor, _ []uint64) (uint64, error) {
			old := x.regFile.IntrFlag
			x.regFile.IntrFlag = 1
			return old, nil
		},
	}

	for name, fn := range fpHelpers() {
		h[name] = fn
	}

	return h
}

func unary(f func(a uint64) uint64) Helper {
	return func(_ *Executor, args []uint64) (uint64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("want 1 argument, got %d", len(args))
		}
		return f(args[0]), nil
	}
}

func binaryOp(f func(a, b uint64) uint64) Helper {
	return func(_ *Executor, args []uint64) (uint64, error) {
		if len(args) != 2 {
			return 0, fmt.Errorf("want 2 arguments, got %d", len(args))
		}
		return f(args[0], args[1]), nil
	}
}

// byteMask expands a byte-select mask to a 64-bit mask.
func byteMask(sel uint8) uint64 {
	var m uint64
	for i := 0; i < 8; i++ {
		if sel&(1<<i) != 0 {
			m |= 0xFF << (8 * i)
		}
	}
	return m
}

func cmpbge(a, b uint64) uint64 {
	var r uint64
	for i := 0; i < 8; i++ {
		if uint8(a>>(8*i)) >= uint8(b>>(8*i)) {
			r |= 1 << i
		}
	}
	return r
}

func perr(a, b uint64) uint64 {
	var sum uint64
	for i := 0; i < 8; i++ {
		x, y := uint8(a>>(8*i)), uint8(b>>(8*i))
		if x > y {
			sum += uint64(x - y)
		} else {
			sum += uint64(y - x)
		}
	}
	return sum
}

func minLane(x, y int64) int64 {
	if x < y {
		return x
	}
	return y
}

func maxLane(x, y int64) int64 {
	if x > y {
		return x
	}
	return y
}

// lanes applies f to each width-bit lane of a and b.
func lanes(width uint, signed bool, f func(x, y int64) int64) func(a, b uint64) uint64 {
	mask := uint64(1)<<width - 1
	return func(a, b uint64) uint64 {
		var r uint64
		for shift := uint(0); shift < 64; shift += width {
			x, y := (a>>shift)&mask, (b>>shift)&mask
			var v int64
			if signed {
				v = f(signExtend(x, width), signExtend(y, width))
			} else {
				v = f(int64(x), int64(y))
			}
			r |= (uint64(v) & mask) << shift
		}
		return r
	}
}

func signExtend(v uint64, width uint) int64 {
	return int64(v<<(64-width)) >> (64 - width)
}

func pkwb(a uint64) uint64 {
	return a&0xFF | (a>>8)&0xFF00 | (a>>16)&0xFF0000 | (a>>24)&0xFF000000
}

func pklb(a uint64) uint64 {
	return a&0xFF | (a>>24)&0xFF00
}

func unpkbw(a uint64) uint64 {
	return a&0xFF | (a&0xFF00)<<8 | (a&0xFF0000)<<16 | (a&0xFF000000)<<24
}

func unpkbl(a uint64) uint64 {
	return a&0xFF | (a&0xFF00)<<24
}
