package emu_test

import (
	"bytes"
	"math"
	"math/bits"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/alphatx/cache"
	"github.com/sarchlab/alphatx/emu"
	"github.com/sarchlab/alphatx/translate"
)

const (
	codeBase = 0x1000
	dataBase = 0x2000
)

var _ = Describe("Executor", func() {
	var (
		stdout *bytes.Buffer
		x      *emu.Executor
	)

	build := func(opts ...emu.ExecutorOption) {
		all := append([]emu.ExecutorOption{
			emu.WithStdout(stdout),
			emu.WithTranslatorOptions(translate.WithMode(translate.Mode{UserOnly: true})),
		}, opts...)
		x = emu.NewExecutor(all...)
	}

	load := func(words ...uint32) {
		Expect(x.Memory().LoadWords(codeBase, words...)).To(Succeed())
		x.RegFile().PC = codeBase
	}

	BeforeEach(func() {
		stdout = &bytes.Buffer{}
		build()
	})

	Describe("system calls", func() {
		It("should exit with the status in a0", func() {
			load(lda(16, 42), lda(0, 1), callsys)

			result := x.Run()

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Exited).To(BeTrue())
			Expect(result.ExitCode).To(Equal(int64(42)))
			Expect(x.InstructionCount()).To(Equal(uint64(3)))
		})

		It("should write a buffer to stdout", func() {
			Expect(x.Memory().Write(dataBase, []byte("hello\n"))).To(Succeed())
			load(
				lda(16, 1), lda(17, dataBase), lda(18, 6), lda(0, 4), callsys,
				lda(16, 0), lda(0, 1), callsys,
			)

			result := x.Run()

			Expect(result.Exited).To(BeTrue())
			Expect(stdout.String()).To(Equal("hello\n"))
		})

		It("should report callsys as an exception outside user-only mode", func() {
			x = emu.NewExecutor(emu.WithStdout(stdout))
			load(lda(0, 1), callsys)

			result := x.Run()

			Expect(result.Exception).NotTo(BeNil())
			pal, ok := result.Exception.CallPAL()
			Expect(ok).To(BeTrue())
			Expect(pal).To(Equal(uint32(0x83)))
		})
	})

	Describe("control flow", func() {
		It("should run a counted loop across several units", func() {
			load(
				lda(1, 5),
				operateLit(0x10, 0x29, 1, 1, 1), // SUBQ r1, #1, r1
				operateLit(0x10, 0x20, 2, 3, 2), // ADDQ r2, #3, r2
				branchWord(0x3D, 1, -3),         // BNE r1, loop
				bpt,
			)

			result := x.Run()

			Expect(result.Err).NotTo(HaveOccurred())
			pal, ok := result.Exception.CallPAL()
			Expect(ok).To(BeTrue())
			Expect(pal).To(Equal(uint32(0x80)))
			Expect(result.Exception.PC).To(Equal(uint64(0x1014)))
			Expect(x.RegFile().ReadReg(2)).To(Equal(uint64(15)))
			Expect(x.InstructionCount()).To(Equal(uint64(17)))
			Expect(x.UnitCount()).To(Equal(uint64(6)))
		})

		It("should link and return through a register", func() {
			load(
				branchWord(0x34, 26, 2),   // 0x1000 BSR r26, 0x100c
				lda(0, 7),                 // 0x1004
				bpt,                       // 0x1008
				lda(1, 9),                 // 0x100c
				0x6BFA8001,                // 0x1010 RET (r26)
			)

			result := x.Run()

			Expect(result.Exception).NotTo(BeNil())
			Expect(x.RegFile().ReadReg(26)).To(Equal(uint64(0x1004)))
			Expect(x.RegFile().ReadReg(0)).To(Equal(uint64(7)))
			Expect(x.RegFile().ReadReg(1)).To(Equal(uint64(9)))
		})

		It("should stop when the instruction budget is spent", func() {
			build(emu.WithMaxInstructions(10))
			load(branchWord(0x30, 31, -1))

			result := x.Run()

			Expect(result.Err).To(MatchError(emu.ErrMaxInstructions))
			Expect(x.InstructionCount()).To(Equal(uint64(10)))
		})

		DescribeTable("should count only the instructions up to a fault",
			func(fault uint32, setup func(*emu.RegFile)) {
				load(lda(1, 1), lda(2, 2), fault, lda(4, 4), bpt)
				setup(x.RegFile())

				result := x.Run()

				Expect(result.Exception).NotTo(BeNil())
				Expect(result.Exception.PC).To(Equal(uint64(0x1008)))
				Expect(x.RegFile().PC).To(Equal(uint64(0x1008)))
				Expect(x.InstructionCount()).To(Equal(uint64(3)))
				Expect(x.RegFile().ReadReg(4)).To(BeZero())
			},
			Entry("unaligned load", memory(0x29, 3, 31, 4), func(*emu.RegFile) {}),
			Entry("data fault", memory(0x29, 3, 31, -8), func(*emu.RegFile) {}),
			Entry("integer overflow", operateLit(0x10, 0x60, 5, 1, 3), func(rf *emu.RegFile) {
				rf.WriteReg(5, math.MaxInt64)
			}),
		)

		It("should cap a block at the remaining budget", func() {
			build(emu.WithMaxInstructions(3))
			add := operateLit(0x10, 0x20, 1, 1, 1)
			load(add, add, add, add, add, bpt)

			result := x.Run()

			Expect(result.Err).To(MatchError(emu.ErrMaxInstructions))
			Expect(x.RegFile().ReadReg(1)).To(Equal(uint64(3)))
			Expect(x.RegFile().PC).To(Equal(uint64(0x100c)))
		})

		It("should stop at a breakpoint", func() {
			build(emu.WithTranslatorOptions(translate.WithBreakpoints(0x1004)))
			load(lda(1, 1), lda(2, 2))

			result := x.Run()

			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpDebug)))
			Expect(x.RegFile().ReadReg(1)).To(Equal(uint64(1)))
			Expect(x.RegFile().ReadReg(2)).To(BeZero())
		})
	})

	Describe("floating-point branches", func() {
		DescribeTable("should treat -0.0 as equal to +0.0",
			func(opcode uint32, value float64, taken bool) {
				x.RegFile().WriteFReg(1, math.Float64bits(value))
				load(branchWord(opcode, 1, 1), lda(2, 1), bpt)

				result := x.Run()

				Expect(result.Exception).NotTo(BeNil())
				if taken {
					Expect(x.RegFile().ReadReg(2)).To(BeZero())
				} else {
					Expect(x.RegFile().ReadReg(2)).To(Equal(uint64(1)))
				}
			},
			Entry("FBEQ -0.0", uint32(0x31), math.Copysign(0, -1), true),
			Entry("FBEQ +0.0", uint32(0x31), 0.0, true),
			Entry("FBEQ 1.0", uint32(0x31), 1.0, false),
			Entry("FBNE -0.0", uint32(0x35), math.Copysign(0, -1), false),
			Entry("FBLT -0.0", uint32(0x32), math.Copysign(0, -1), false),
			Entry("FBLT -1.0", uint32(0x32), -1.0, true),
			Entry("FBGE -0.0", uint32(0x36), math.Copysign(0, -1), true),
			Entry("FBLE -0.0", uint32(0x33), math.Copysign(0, -1), true),
			Entry("FBGT -0.0", uint32(0x37), math.Copysign(0, -1), false),
		)
	})

	Describe("exceptions", func() {
		It("should trap on signed quadword overflow without writing rc", func() {
			x.RegFile().WriteReg(1, math.MaxInt64)
			x.RegFile().WriteReg(2, 5)
			load(operateLit(0x10, 0x60, 1, 1, 2), bpt)

			result := x.Run()

			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpArith)))
			Expect(result.Exception.Code).To(Equal(uint32(translate.ExcIOV)))
			Expect(x.RegFile().ReadReg(2)).To(Equal(uint64(5)))
		})

		It("should wrap without /V", func() {
			x.RegFile().WriteReg(1, math.MaxInt64)
			load(operateLit(0x10, 0x20, 1, 1, 2), bpt)

			x.Run()

			Expect(x.RegFile().ReadReg(2)).To(Equal(uint64(1) << 63))
		})

		It("should trap on longword overflow", func() {
			x.RegFile().WriteReg(1, 0x7FFFFFFF)
			load(operateLit(0x10, 0x40, 1, 1, 2), bpt)

			result := x.Run()

			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpArith)))
		})

		It("should raise the illegal instruction exception after the fetch", func() {
			load(0x04000000)

			result := x.Run()

			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpOpcDec)))
			Expect(result.Exception.PC).To(Equal(uint64(0x1004)))
			Expect(x.RegFile().PC).To(Equal(uint64(0x1004)))
		})

		It("should raise the unaligned access exception", func() {
			load(memory(0x29, 1, 31, 4), bpt)

			result := x.Run()

			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpUnalign)))
		})

		It("should raise a data fault outside memory", func() {
			x = emu.NewExecutor(
				emu.WithMemory(emu.NewMemoryWithCapacity(0x4000)),
				emu.WithStdout(stdout))
			load(memory(0x09, 2, 31, 1), memory(0x29, 1, 2, 0), bpt) // LDAH r2, 1; LDQ r1, 0(r2)

			result := x.Run()

			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpDFault)))
		})

		It("should raise a data fault for an address that wraps around", func() {
			load(memory(0x29, 1, 31, -8), bpt) // LDQ r1, -8(r31)
			x.RegFile().WriteReg(1, 0x55)

			result := x.Run()

			Expect(result.Exception).NotTo(BeNil())
			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpDFault)))
			Expect(x.RegFile().ReadReg(1)).To(Equal(uint64(0x55)))
		})

		It("should raise a data fault at the end of memory", func() {
			x = emu.NewExecutor(
				emu.WithMemory(emu.NewMemoryWithCapacity(0x10000)),
				emu.WithStdout(stdout))
			load(memory(0x09, 2, 31, 1), memory(0x2D, 1, 2, 0), bpt) // LDAH r2, 1; STQ r1, 0(r2)

			result := x.Run()

			Expect(result.Exception).NotTo(BeNil())
			Expect(result.Exception.Kind).To(Equal(uint32(translate.ExcpDFault)))
			Expect(result.Exception.Code).To(Equal(uint32(1)))
		})

		It("should fail on a helper it does not implement", func() {
			load(fpOperate(0x15, 0x080, 1, 2, 3), bpt) // ADDF

			result := x.Run()

			Expect(result.Err).To(MatchError(emu.ErrUnsupportedHelper))
			Expect(result.Err.Error()).To(ContainSubstring("addf"))
		})

		It("should use a registered helper", func() {
			build(emu.WithHelper("addf", func(_ *emu.Executor, args []uint64) (uint64, error) {
				return args[0] + args[1], nil
			}))
			x.RegFile().WriteFReg(1, 3)
			x.RegFile().WriteFReg(2, 4)
			load(fpOperate(0x15, 0x080, 1, 2, 3), bpt)

			x.Run()

			Expect(x.RegFile().ReadFReg(3)).To(Equal(uint64(7)))
		})
	})

	Describe("memory access", func() {
		It("should convert S-format loads to register format", func() {
			Expect(x.Memory().WriteUint(dataBase, 4, uint64(math.Float32bits(1.5)))).To(Succeed())
			load(
				memory(0x22, 1, 31, dataBase),   // LDS f1
				memory(0x27, 1, 31, dataBase+8), // STT f1
				bpt,
			)

			x.Run()

			Expect(x.RegFile().ReadFReg(1)).To(Equal(math.Float64bits(1.5)))
			Expect(x.Memory().Read64(dataBase + 8)).To(Equal(math.Float64bits(1.5)))
		})

		It("should sign-extend LDL and zero-extend LDBU", func() {
			x.Memory().Write64(dataBase, 0x00000000_8000_00F0)
			load(
				memory(0x28, 1, 31, dataBase), // LDL r1
				memory(0x0A, 2, 31, dataBase), // LDBU r2
				bpt,
			)

			x.Run()

			Expect(x.RegFile().ReadReg(1)).To(Equal(uint64(0xFFFFFFFF800000F0)))
			Expect(x.RegFile().ReadReg(2)).To(Equal(uint64(0xF0)))
		})

		It("should succeed a store-conditional only while the lock is held", func() {
			x.Memory().Write64(dataBase, 41)
			x.RegFile().WriteReg(3, 99)
			load(
				lda(2, dataBase),
				memory(0x2B, 1, 2, 0),           // LDQ_L r1
				operateLit(0x10, 0x20, 1, 1, 1), // ADDQ r1, #1, r1
				memory(0x2F, 1, 2, 0),           // STQ_C r1
				memory(0x2F, 3, 2, 0),           // STQ_C r3
				bpt,
			)

			x.Run()

			Expect(x.Memory().Read64(dataBase)).To(Equal(uint64(42)))
			Expect(x.RegFile().ReadReg(1)).To(Equal(uint64(1)))
			Expect(x.RegFile().ReadReg(3)).To(BeZero())
			Expect(x.RegFile().Lock).To(Equal(^uint64(0)))
		})

		It("should go through the data cache and flush at the end", func() {
			build(emu.WithCache(cache.DefaultL1DConfig()))
			load(
				lda(2, dataBase),
				lda(1, 5),
				memory(0x2D, 1, 2, 0), // STQ r1
				memory(0x29, 3, 2, 0), // LDQ r3
				bpt,
			)

			x.Run()

			Expect(x.RegFile().ReadReg(3)).To(Equal(uint64(5)))
			stats := x.Cache().Stats()
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(1)))
			Expect(x.Memory().Read64(dataBase)).To(Equal(uint64(5)))
		})
	})

	Describe("helpers", func() {
		It("should keep the unique value in user-only mode", func() {
			load(lda(16, 77), 0x0000009F, lda(16, 0), 0x0000009E, bpt)

			x.Run()

			Expect(x.RegFile().Uniq).To(Equal(uint64(77)))
			Expect(x.RegFile().ReadReg(0)).To(Equal(uint64(77)))
		})

		It("should compute the byte and multimedia operations", func() {
			a, b := uint64(0x0102030405060708), uint64(0x0807060504030201)
			x.RegFile().WriteReg(1, a)
			x.RegFile().WriteReg(2, b)
			load(
				operate(0x1C, 0x3A, 1, 2, 3), // MINUB8
				operate(0x1C, 0x31, 1, 2, 4), // PERR
				operate(0x10, 0x0F, 1, 2, 5), // CMPBGE
				operate(0x13, 0x30, 1, 2, 6), // UMULH
				operate(0x1C, 0x30, 31, 1, 7), // CTPOP
				operate(0x12, 0x31, 1, 2, 8),  // ZAPNOT
				bpt,
			)

			x.Run()

			hi, _ := bits.Mul64(a, b)
			Expect(x.RegFile().ReadReg(3)).To(Equal(uint64(0x0102030404030201)))
			Expect(x.RegFile().ReadReg(4)).To(Equal(uint64(32)))
			Expect(x.RegFile().ReadReg(5)).To(Equal(uint64(0x0F)))
			Expect(x.RegFile().ReadReg(6)).To(Equal(hi))
			Expect(x.RegFile().ReadReg(7)).To(Equal(uint64(bits.OnesCount64(a))))
			Expect(x.RegFile().ReadReg(8)).To(Equal(uint64(0x08)))
		})

		It("should move integers through the IEEE pipeline", func() {
			load(
				lda(1, 3),
				fpOperate(0x14, 0x024, 1, 31, 1), // ITOFT r1, f1
				fpOperate(0x16, 0x0BE, 31, 1, 2), // CVTQT f1, f2
				fpOperate(0x16, 0x0A0, 2, 2, 3),  // ADDT f2, f2, f3
				fpOperate(0x16, 0x02F, 31, 3, 4), // CVTTQ/C f3, f4
				operate(0x1C, 0x70, 4, 31, 5),    // FTOIT f4, r5
				bpt,
			)

			x.Run()

			Expect(x.RegFile().ReadFReg(3)).To(Equal(math.Float64bits(6)))
			Expect(x.RegFile().ReadReg(5)).To(Equal(uint64(6)))
		})

		It("should write 2.0 for a true IEEE compare", func() {
			x.RegFile().WriteFReg(1, math.Float64bits(1))
			x.RegFile().WriteFReg(2, math.Float64bits(2))
			load(
				fpOperate(0x16, 0x0A6, 1, 2, 3), // CMPTLT
				fpOperate(0x16, 0x0A6, 2, 1, 4), // CMPTLT
				bpt,
			)

			x.Run()

			Expect(x.RegFile().ReadFReg(3)).To(Equal(math.Float64bits(2)))
			Expect(x.RegFile().ReadFReg(4)).To(BeZero())
		})
	})
})
