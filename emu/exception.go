package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/alphatx/translate"
)

var (
	// ErrUnsupportedHelper is returned for a helper call the executor has
	// no implementation for.
	ErrUnsupportedHelper = errors.New("unsupported helper")
	// ErrMaxInstructions is returned when the instruction budget is spent.
	ErrMaxInstructions = errors.New("max instructions reached")
)

// Exception is a guest exception raised by translated code or a helper.
type Exception struct {
	Kind uint32
	Code uint32
	// PC is the pc value stored before the raise.
	PC uint64
}

func (e *Exception) Error() string {
	return fmt.Sprintf("guest exception %s (code 0x%x) at pc 0x%x", ExceptionName(e.Kind), e.Code, e.PC)
}

// CallPAL returns the PAL function of a CALL_PAL entry exception and
// whether the exception is one.
func (e *Exception) CallPAL() (uint32, bool) {
	switch {
	case e.Kind >= translate.ExcpCallPAL && e.Kind < translate.ExcpCallPALP:
		return 0x80 | (e.Kind-translate.ExcpCallPAL)>>6, true
	case e.Kind >= translate.ExcpCallPALP && e.Kind < translate.ExcpCallPALE:
		return (e.Kind - translate.ExcpCallPALP) >> 6, true
	}
	return 0, false
}

// ExceptionName returns the short name of an exception kind.
func ExceptionName(kind uint32) string {
	switch kind {
	case translate.ExcpReset:
		return "reset"
	case translate.ExcpMCheck:
		return "mcheck"
	case translate.ExcpArith:
		return "arith"
	case translate.ExcpHWInterrupt:
		return "interrupt"
	case translate.ExcpDFault:
		return "dfault"
	case translate.ExcpITBMiss:
		return "itb_miss"
	case translate.ExcpITBACV:
		return "itb_acv"
	case translate.ExcpDTBMissNative:
		return "dtb_miss_native"
	case translate.ExcpDTBMissPAL:
		return "dtb_miss_pal"
	case translate.ExcpUnalign:
		return "unalign"
	case translate.ExcpOpcDec:
		return "opcdec"
	case translate.ExcpFEN:
		return "fen"
	case translate.ExcpDebug:
		return "debug"
	}

	e := &Exception{Kind: kind}
	if p, ok := e.CallPAL(); ok {
		return fmt.Sprintf("call_pal(0x%02x)", p)
	}
	return fmt.Sprintf("excp(0x%x)", kind)
}
