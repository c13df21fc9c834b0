package translate

// Exception kinds raised by translated code.
const (
	ExcpReset         = 0x0000
	ExcpMCheck        = 0x0020
	ExcpArith         = 0x0060
	ExcpHWInterrupt   = 0x00E0
	ExcpDFault        = 0x01E0
	ExcpITBMiss       = 0x03E0
	ExcpITBACV        = 0x07E0
	ExcpDTBMissNative = 0x08E0
	ExcpDTBMissPAL    = 0x09E0
	ExcpUnalign       = 0x11E0
	ExcpOpcDec        = 0x13E0
	ExcpFEN           = 0x17E0
	ExcpCallPAL       = 0x2000
	ExcpCallPALP      = 0x3000
	ExcpCallPALE      = 0x4000
	ExcpDebug         = 0x10002
)

// Arithmetic exception summary bits, passed as the error code of
// ExcpArith.
const (
	ExcSWC = 0x01
	ExcINV = 0x02
	ExcDZE = 0x04
	ExcFOV = 0x08
	ExcUNF = 0x10
	ExcINE = 0x20
	ExcIOV = 0x40
)
