package emu

import (
	"errors"
	"io"
	"io/fs"
	"os"
)

// Alpha Linux syscall numbers.
const (
	SyscallExit      uint64 = 1   // exit(status)
	SyscallRead      uint64 = 3   // read(fd, buf, count)
	SyscallWrite     uint64 = 4   // write(fd, buf, count)
	SyscallClose     uint64 = 6   // close(fd)
	SyscallLseek     uint64 = 19  // lseek(fd, offset, whence)
	SyscallGetPID    uint64 = 20  // getpid()
	SyscallOpen      uint64 = 45  // open(path, flags, mode)
	SyscallExitGroup uint64 = 405 // exit_group(status)
)

// Linux error codes.
const (
	ENOENT = 2  // No such file or directory
	EIO    = 5  // I/O error
	EBADF  = 9  // Bad file descriptor
	EFAULT = 14 // Bad address
	EINVAL = 22 // Invalid argument
	ENOSYS = 38 // Function not implemented
)

// Alpha register conventions of the callsys PAL call.
const (
	regV0 = 0  // syscall number and return value
	regA0 = 16 // first argument
	regA3 = 19 // error flag on return
)

// Alpha Linux open flags that differ from the host's.
const (
	alphaOCreat  = 0x200
	alphaOTrunc  = 0x400
	alphaOAppend = 0x8
)

// maxPathLen bounds the guest string read for open.
const maxPathLen = 4096

// SyscallResult represents the result of a syscall execution.
type SyscallResult struct {
	// Exited is true if the syscall caused program termination.
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64
}

// SyscallHandler handles the callsys PAL call.
type SyscallHandler interface {
	// Handle executes the syscall indicated by the register file state.
	// Alpha Linux syscall convention:
	//   - Syscall number in v0 (R0)
	//   - Arguments in a0-a5 (R16-R21)
	//   - Return value in v0, error flag in a3 (R19)
	Handle() SyscallResult
}

// DefaultSyscallHandler provides a basic syscall handler implementation.
type DefaultSyscallHandler struct {
	regFile *RegFile
	memory  *Memory
	fdTable *FDTable
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// NewDefaultSyscallHandler creates a default syscall handler.
func NewDefaultSyscallHandler(regFile *RegFile, memory *Memory, stdout, stderr io.Writer) *DefaultSyscallHandler {
	return &DefaultSyscallHandler{
		regFile: regFile,
		memory:  memory,
		fdTable: NewFDTable(),
		stdout:  stdout,
		stderr:  stderr,
	}
}

// SetStdin sets the stdin reader for the syscall handler.
func (h *DefaultSyscallHandler) SetStdin(stdin io.Reader) {
	h.stdin = stdin
}

// FDTable returns the handler's descriptor table.
func (h *DefaultSyscallHandler) FDTable() *FDTable {
	return h.fdTable
}

func (h *DefaultSyscallHandler) arg(i int) uint64 {
	return h.regFile.ReadReg(uint8(regA0 + i))
}

// Handle executes the syscall indicated by the register file state.
func (h *DefaultSyscallHandler) Handle() SyscallResult {
	switch h.regFile.ReadReg(regV0) {
	case SyscallExit, SyscallExitGroup:
		return SyscallResult{Exited: true, ExitCode: int64(h.arg(0))}
	case SyscallRead:
		h.handleRead()
	case SyscallWrite:
		h.handleWrite()
	case SyscallOpen:
		h.handleOpen()
	case SyscallClose:
		h.handleClose()
	case SyscallLseek:
		h.handleLseek()
	case SyscallGetPID:
		h.setResult(uint64(os.Getpid()))
	default:
		h.setError(ENOSYS)
	}
	return SyscallResult{}
}

func (h *DefaultSyscallHandler) handleRead() {
	fd, bufPtr, count := h.arg(0), h.arg(1), h.arg(2)

	buf := make([]byte, count)
	var (
		n   int
		err error
	)
	switch {
	case fd == 0 && h.stdin == nil:
		n = 0
	case fd == 0:
		n, err = h.stdin.Read(buf)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		if !h.fdTable.IsOpen(fd) {
			h.setError(EBADF)
			return
		}
		n, err = h.fdTable.Read(fd, buf)
	}
	if err != nil {
		h.setError(EIO)
		return
	}

	if err := h.memory.Write(bufPtr, buf[:n]); err != nil {
		h.setError(EFAULT)
		return
	}
	h.setResult(uint64(n))
}

func (h *DefaultSyscallHandler) handleWrite() {
	fd, bufPtr, count := h.arg(0), h.arg(1), h.arg(2)

	buf, err := h.memory.Read(bufPtr, int(count))
	if err != nil {
		h.setError(EFAULT)
		return
	}

	var n int
	switch fd {
	case 1:
		n, err = h.stdout.Write(buf)
	case 2:
		n, err = h.stderr.Write(buf)
	default:
		if !h.fdTable.IsOpen(fd) {
			h.setError(EBADF)
			return
		}
		n, err = h.fdTable.Write(fd, buf)
	}
	if err != nil {
		h.setError(EIO)
		return
	}

	h.setResult(uint64(n))
}

func (h *DefaultSyscallHandler) handleOpen() {
	path, err := h.readString(h.arg(0))
	if err != nil {
		h.setError(EFAULT)
		return
	}

	fd, err := h.fdTable.Open(path, hostOpenFlags(h.arg(1)), os.FileMode(h.arg(2)&0o777))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.setError(ENOENT)
		} else {
			h.setError(EIO)
		}
		return
	}

	h.setResult(fd)
}

func (h *DefaultSyscallHandler) handleClose() {
	if err := h.fdTable.Close(h.arg(0)); err != nil {
		h.setError(EBADF)
		return
	}
	h.setResult(0)
}

func (h *DefaultSyscallHandler) handleLseek() {
	fd := h.arg(0)
	if !h.fdTable.IsOpen(fd) || fd <= 2 {
		h.setError(EBADF)
		return
	}

	off, err := h.fdTable.Seek(fd, int64(h.arg(1)), int(h.arg(2)))
	if err != nil {
		h.setError(EINVAL)
		return
	}
	h.setResult(uint64(off))
}

// readString reads a NUL-terminated guest string.
func (h *DefaultSyscallHandler) readString(addr uint64) (string, error) {
	var buf []byte
	for i := uint64(0); i < maxPathLen; i++ {
		b, err := h.memory.Read(addr+i, 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			return string(buf), nil
		}
		buf = append(buf, b[0])
	}
	return "", os.ErrInvalid
}

func hostOpenFlags(flags uint64) int {
	host := int(flags & 3) // O_RDONLY, O_WRONLY, O_RDWR share values
	if flags&alphaOCreat != 0 {
		host |= os.O_CREATE
	}
	if flags&alphaOTrunc != 0 {
		host |= os.O_TRUNC
	}
	if flags&alphaOAppend != 0 {
		host |= os.O_APPEND
	}
	return host
}

func (h *DefaultSyscallHandler) setResult(v uint64) {
	h.regFile.WriteReg(regV0, v)
	h.regFile.WriteReg(regA3, 0)
}

// setError stores the positive errno in v0 and sets the a3 error flag.
func (h *DefaultSyscallHandler) setError(errno int) {
	h.regFile.WriteReg(regV0, uint64(errno))
	h.regFile.WriteReg(regA3, 1)
}
