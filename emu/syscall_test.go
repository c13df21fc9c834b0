package emu_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/alphatx/emu"
)

var _ = Describe("Syscall Handler", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		stdout  *bytes.Buffer
		stderr  *bytes.Buffer
		handler *emu.DefaultSyscallHandler
	)

	// syscall sets v0 and a0.. before calling the handler.
	syscall := func(num uint64, args ...uint64) emu.SyscallResult {
		regFile.WriteReg(0, num)
		for i, a := range args {
			regFile.WriteReg(uint8(16+i), a)
		}
		return handler.Handle()
	}

	expectErrno := func(errno int) {
		Expect(regFile.ReadReg(0)).To(Equal(uint64(errno)))
		Expect(regFile.ReadReg(19)).To(Equal(uint64(1)))
	}

	expectResult := func(v uint64) {
		Expect(regFile.ReadReg(0)).To(Equal(v))
		Expect(regFile.ReadReg(19)).To(BeZero())
	}

	writeString := func(s string, addr uint64) {
		Expect(memory.Write(addr, append([]byte(s), 0))).To(Succeed())
	}

	BeforeEach(func() {
		regFile = emu.NewRegFile()
		memory = emu.NewMemory()
		stdout = new(bytes.Buffer)
		stderr = new(bytes.Buffer)
		handler = emu.NewDefaultSyscallHandler(regFile, memory, stdout, stderr)
	})

	Describe("Unknown syscall", func() {
		It("should return ENOSYS with the error flag set", func() {
			result := syscall(999)

			Expect(result.Exited).To(BeFalse())
			expectErrno(emu.ENOSYS)
		})

		It("should treat syscall 0 as unknown", func() {
			syscall(0)

			expectErrno(emu.ENOSYS)
		})
	})

	Describe("Exit syscalls", func() {
		DescribeTable("should exit with the status in a0",
			func(num uint64, status uint64) {
				result := syscall(num, status)

				Expect(result.Exited).To(BeTrue())
				Expect(result.ExitCode).To(Equal(int64(status)))
			},
			Entry("exit", emu.SyscallExit, uint64(42)),
			Entry("exit with zero", emu.SyscallExit, uint64(0)),
			Entry("exit_group", emu.SyscallExitGroup, uint64(3)),
		)
	})

	Describe("Write syscall", func() {
		It("should write a buffer to stdout", func() {
			Expect(memory.Write(0x1000, []byte("hello"))).To(Succeed())

			result := syscall(emu.SyscallWrite, 1, 0x1000, 5)

			Expect(result.Exited).To(BeFalse())
			Expect(stdout.String()).To(Equal("hello"))
			expectResult(5)
		})

		It("should write a buffer to stderr", func() {
			Expect(memory.Write(0x2000, []byte("err"))).To(Succeed())

			syscall(emu.SyscallWrite, 2, 0x2000, 3)

			Expect(stderr.String()).To(Equal("err"))
			expectResult(3)
		})

		It("should return EBADF for a descriptor that is not open", func() {
			syscall(emu.SyscallWrite, 42, 0x1000, 5)

			expectErrno(emu.EBADF)
		})

		It("should return EFAULT for a buffer outside memory", func() {
			memory = emu.NewMemoryWithCapacity(0x1000)
			handler = emu.NewDefaultSyscallHandler(regFile, memory, stdout, stderr)

			syscall(emu.SyscallWrite, 1, 0x2000, 4)

			expectErrno(emu.EFAULT)
			Expect(stdout.Len()).To(BeZero())
		})
	})

	Describe("Read syscall", func() {
		It("should read stdin into guest memory", func() {
			handler.SetStdin(strings.NewReader("abc"))

			syscall(emu.SyscallRead, 0, 0x3000, 8)

			expectResult(3)
			data, err := memory.Read(0x3000, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("abc"))
		})

		It("should return 0 at end of input", func() {
			handler.SetStdin(strings.NewReader(""))

			syscall(emu.SyscallRead, 0, 0x3000, 8)

			expectResult(0)
		})

		It("should return 0 without a stdin reader", func() {
			syscall(emu.SyscallRead, 0, 0x3000, 8)

			expectResult(0)
		})
	})

	Describe("Close syscall", func() {
		DescribeTable("should close a standard stream",
			func(fd uint64) {
				syscall(emu.SyscallClose, fd)

				expectResult(0)
				Expect(handler.FDTable().IsOpen(fd)).To(BeFalse())
			},
			Entry("stdin", uint64(0)),
			Entry("stdout", uint64(1)),
			Entry("stderr", uint64(2)),
		)

		It("should return EBADF for an invalid descriptor", func() {
			syscall(emu.SyscallClose, 999)

			expectErrno(emu.EBADF)
		})

		It("should return EBADF when closing twice", func() {
			syscall(emu.SyscallClose, 0)
			syscall(emu.SyscallClose, 0)

			expectErrno(emu.EBADF)
		})
	})

	Describe("Getpid syscall", func() {
		It("should return the host pid", func() {
			syscall(emu.SyscallGetPID)

			expectResult(uint64(os.Getpid()))
		})
	})

	Describe("File syscalls", func() {
		var tempDir string

		BeforeEach(func() {
			tempDir = GinkgoT().TempDir()
		})

		AfterEach(func() {
			handler.FDTable().CloseAll()
		})

		It("should open, read and seek an existing file", func() {
			testFile := filepath.Join(tempDir, "test.txt")
			Expect(os.WriteFile(testFile, []byte("hello"), 0o644)).To(Succeed())
			writeString(testFile, 0x1000)

			syscall(emu.SyscallOpen, 0x1000, 0, 0)
			fd := regFile.ReadReg(0)
			Expect(regFile.ReadReg(19)).To(BeZero())
			Expect(fd).To(BeNumerically(">=", 3))

			syscall(emu.SyscallRead, fd, 0x2000, 5)
			expectResult(5)
			data, _ := memory.Read(0x2000, 5)
			Expect(string(data)).To(Equal("hello"))

			syscall(emu.SyscallLseek, fd, 1, 0)
			expectResult(1)

			syscall(emu.SyscallRead, fd, 0x2000, 5)
			expectResult(4)
		})

		It("should return ENOENT for a missing file", func() {
			writeString("/nonexistent/file.txt", 0x1000)

			syscall(emu.SyscallOpen, 0x1000, 0, 0)

			expectErrno(emu.ENOENT)
		})

		It("should map the guest creation flags", func() {
			newFile := filepath.Join(tempDir, "newfile.txt")
			writeString(newFile, 0x1000)
			Expect(memory.Write(0x2000, []byte("data"))).To(Succeed())

			syscall(emu.SyscallOpen, 0x1000, 1|0x200, 0o644) // O_WRONLY|O_CREAT
			fd := regFile.ReadReg(0)
			Expect(regFile.ReadReg(19)).To(BeZero())

			syscall(emu.SyscallWrite, fd, 0x2000, 4)
			expectResult(4)
			syscall(emu.SyscallClose, fd)
			expectResult(0)

			content, err := os.ReadFile(newFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("data"))
		})

		It("should allocate sequential descriptors", func() {
			for i, name := range []string{"a.txt", "b.txt"} {
				path := filepath.Join(tempDir, name)
				Expect(os.WriteFile(path, []byte(name), 0o644)).To(Succeed())
				writeString(path, uint64(0x1000+0x1000*i))
			}

			syscall(emu.SyscallOpen, 0x1000, 0, 0)
			fd1 := regFile.ReadReg(0)
			syscall(emu.SyscallOpen, 0x2000, 0, 0)
			fd2 := regFile.ReadReg(0)

			Expect(fd2).To(Equal(fd1 + 1))
		})

		It("should refuse to seek a standard stream", func() {
			syscall(emu.SyscallLseek, 1, 0, 0)

			expectErrno(emu.EBADF)
		})
	})
})
