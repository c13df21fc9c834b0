package emu

import (
	"math"
	"math/big"

	"github.com/sarchlab/alphatx/translate"
)

// fpTrue is the T-format 2.0 written by the IEEE compares when the
// relation holds.
const fpTrue = 0x4000000000000000

// fpHelpers implements the IEEE S and T helpers with round-to-nearest
// arithmetic. VAX F, G and D formats have no implementation.
func fpHelpers() map[string]Helper {
	return map[string]Helper{
		"adds": fpS(func(a, b float32) float32 { return a + b }),
		"subs": fpS(func(a, b float32) float32 { return a - b }),
		"muls": fpS(func(a, b float32) float32 { return a * b }),
		"divs": fpS(func(a, b float32) float32 { return a / b }),
		"addt": fpT(func(a, b float64) float64 { return a + b }),
		"subt": fpT(func(a, b float64) float64 { return a - b }),
		"mult": fpT(func(a, b float64) float64 { return a * b }),
		"divt": fpT(func(a, b float64) float64 { return a / b }),

		"cmptun": fpCmp(func(a, b float64) bool { return math.IsNaN(a) || math.IsNaN(b) }),
		"cmpteq": fpCmp(func(a, b float64) bool { return a == b }),
		"cmptlt": fpCmp(func(a, b float64) bool { return a < b }),
		"cmptle": fpCmp(func(a, b float64) bool { return a <= b }),

		"sqrts": unary(func(a uint64) uint64 {
			return sToReg(float32(math.Sqrt(float64(regToS(a)))))
		}),
		"sqrtt": unary(func(a uint64) uint64 {
			return math.Float64bits(math.Sqrt(math.Float64frombits(a)))
		}),

		"cvtts": unary(func(a uint64) uint64 { return sToReg(float32(math.Float64frombits(a))) }),
		"cvtst": unary(func(a uint64) uint64 { return a }),
		"cvtqs": unary(func(a uint64) uint64 { return sToReg(float32(int64(a))) }),
		"cvtqt": unary(func(a uint64) uint64 { return math.Float64bits(float64(int64(a))) }),
		"cvttq": unary(cvttq),

		"cvtlq":   unary(cvtlq),
		"cvtql":   unary(cvtql),
		"cvtqlv":  cvtqlChecked,
		"cvtqlsv": cvtqlChecked,

		"cpys":  binaryOp(func(a, b uint64) uint64 { return a&signMask | b&^signMask }),
		"cpysn": binaryOp(func(a, b uint64) uint64 { return ^a&signMask | b&^signMask }),
		"cpyse": binaryOp(func(a, b uint64) uint64 { return a&signExpMask | b&^signExpMask }),

		"memory_to_s": unary(func(a uint64) uint64 { return sToReg(math.Float32frombits(uint32(a))) }),
		"s_to_memory": unary(func(a uint64) uint64 { return uint64(math.Float32bits(regToS(a))) }),

		"load_fpcr": func(x *Executor, _ []uint64) (uint64, error) {
			return x.regFile.FPCR, nil
		},
		"store_fpcr": func(x *Executor, args []uint64) (uint64, error) {
			x.regFile.FPCR = args[0]
			return 0, nil
		},
	}
}

const (
	signMask    = uint64(1) << 63
	signExpMask = uint64(0xFFF) << 52
)

// S values live in registers in T format.
func regToS(a uint64) float32 { return float32(math.Float64frombits(a)) }

func sToReg(f float32) uint64 { return math.Float64bits(float64(f)) }

func fpS(f func(a, b float32) float32) Helper {
	return binaryOp(func(a, b uint64) uint64 { return sToReg(f(regToS(a), regToS(b))) })
}

func fpT(f func(a, b float64) float64) Helper {
	return binaryOp(func(a, b uint64) uint64 {
		return math.Float64bits(f(math.Float64frombits(a), math.Float64frombits(b)))
	})
}

func fpCmp(f func(a, b float64) bool) Helper {
	return binaryOp(func(a, b uint64) uint64 {
		if f(math.Float64frombits(a), math.Float64frombits(b)) {
			return fpTrue
		}
		return 0
	})
}

// cvttq truncates toward zero and keeps the low 64 bits of the integer.
// NaN and infinity convert to 0.
func cvttq(a uint64) uint64 {
	f := math.Float64frombits(a)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}

	f = math.Trunc(f)
	if f >= -(1<<63) && f < 1<<63 {
		return uint64(int64(f))
	}

	i, _ := big.NewFloat(f).Int(nil)
	return new(big.Int).And(i, new(big.Int).SetUint64(math.MaxUint64)).Uint64()
}

func cvtlq(a uint64) uint64 {
	lo := (a >> 29) & 0x3FFFFFFF
	hi := (a >> 32) & 0xC0000000
	return uint64(int64(int32(uint32(hi | lo))))
}

func cvtql(a uint64) uint64 {
	return (a&0xC0000000)<<32 | (a&0x3FFFFFFF)<<29
}

// cvtqlChecked is CVTQL/V, which traps when the quadword does not fit in
// a longword.
func cvtqlChecked(_ *Executor, args []uint64) (uint64, error) {
	a := args[0]
	if int64(a) != int64(int32(a)) {
		return 0, &Exception{Kind: translate.ExcpArith, Code: translate.ExcIOV}
	}
	return cvtql(a), nil
}
