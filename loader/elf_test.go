package loader_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/alphatx/emu"
	"github.com/sarchlab/alphatx/loader"
)

const (
	machineAlpha    = 0x9026
	machineAlphaStd = 41
	machineX86      = 62
)

// testSegment describes one PT_LOAD entry of a generated ELF.
type testSegment struct {
	addr    uint64
	data    []byte
	memSize uint64
	flags   uint32
	typ     uint32
}

func codeSegment(addr uint64, code []byte) testSegment {
	return testSegment{addr: addr, data: code, memSize: uint64(len(code)), flags: 0x5, typ: 1}
}

// writeELF writes a little-endian ELF64 executable with one program
// header per segment, followed by the segment contents.
func writeELF(path string, machine uint16, entry uint64, segs ...testSegment) {
	const ehSize, phSize = 64, 56

	header := make([]byte, ehSize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2 // ELFCLASS64
	header[5] = 1 // little endian
	header[6] = 1 // version
	binary.LittleEndian.PutUint16(header[16:18], 2) // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint64(header[24:32], entry)
	binary.LittleEndian.PutUint64(header[32:40], ehSize)
	binary.LittleEndian.PutUint16(header[52:54], ehSize)
	binary.LittleEndian.PutUint16(header[54:56], phSize)
	binary.LittleEndian.PutUint16(header[56:58], uint16(len(segs)))
	binary.LittleEndian.PutUint16(header[58:60], 64)

	out := append([]byte(nil), header...)
	offset := uint64(ehSize + phSize*len(segs))
	for _, s := range segs {
		ph := make([]byte, phSize)
		binary.LittleEndian.PutUint32(ph[0:4], s.typ)
		binary.LittleEndian.PutUint32(ph[4:8], s.flags)
		binary.LittleEndian.PutUint64(ph[8:16], offset)
		binary.LittleEndian.PutUint64(ph[16:24], s.addr)
		binary.LittleEndian.PutUint64(ph[24:32], s.addr)
		binary.LittleEndian.PutUint64(ph[32:40], uint64(len(s.data)))
		binary.LittleEndian.PutUint64(ph[40:48], s.memSize)
		binary.LittleEndian.PutUint64(ph[48:56], 0x2000)
		out = append(out, ph...)
		offset += uint64(len(s.data))
	}
	for _, s := range segs {
		out = append(out, s.data...)
	}

	Expect(os.WriteFile(path, out, 0o644)).To(Succeed())
}

type failingWriter struct{}

func (failingWriter) Write(uint64, []byte) error { return errors.New("bus error") }

var _ = Describe("ELF Loader", func() {
	var (
		tempDir string
		elfPath string
		// lda r16, 42(r31); lda r0, 1(r31); callsys
		exitCode = []byte{
			0x2a, 0x00, 0x1f, 0x22,
			0x01, 0x00, 0x1f, 0x20,
			0x83, 0x00, 0x00, 0x00,
		}
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
		elfPath = filepath.Join(tempDir, "test.elf")
	})

	Describe("Load", func() {
		Context("with a valid Alpha ELF binary", func() {
			BeforeEach(func() {
				writeELF(elfPath, machineAlpha, 0x120000010,
					codeSegment(0x120000000, exitCode))
			})

			It("should extract the entry point", func() {
				prog, err := loader.Load(elfPath)

				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint64(0x120000010)))
			})

			It("should read the segment contents and permissions", func() {
				prog, err := loader.Load(elfPath)

				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))
				seg := prog.Segments[0]
				Expect(seg.VirtAddr).To(Equal(uint64(0x120000000)))
				Expect(seg.Data).To(Equal(exitCode))
				Expect(seg.Flags & loader.SegmentFlagExecute).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagRead).NotTo(BeZero())
				Expect(seg.Flags & loader.SegmentFlagWrite).To(BeZero())
			})

			It("should place the stack below the text base", func() {
				prog, err := loader.Load(elfPath)

				Expect(err).NotTo(HaveOccurred())
				Expect(prog.InitialSP).To(Equal(uint64(loader.DefaultStackTop)))
				Expect(prog.InitialSP).To(BeNumerically("<", prog.Segments[0].VirtAddr))
			})
		})

		It("should accept the standard Alpha machine number", func() {
			writeELF(elfPath, machineAlphaStd, 0x120000000, codeSegment(0x120000000, exitCode))

			_, err := loader.Load(elfPath)

			Expect(err).NotTo(HaveOccurred())
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				Expect(os.WriteFile(elfPath, []byte("not an elf file"), 0o644)).To(Succeed())

				_, err := loader.Load(elfPath)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should return error for empty file", func() {
				Expect(os.WriteFile(elfPath, nil, 0o644)).To(Succeed())

				_, err := loader.Load(elfPath)

				Expect(err).To(HaveOccurred())
			})

			It("should reject other machines", func() {
				writeELF(elfPath, machineX86, 0, codeSegment(0x400000, exitCode))

				_, err := loader.Load(elfPath)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not an Alpha"))
			})

			It("should reject 32-bit files", func() {
				header := make([]byte, 52)
				copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
				header[4] = 1 // ELFCLASS32
				header[5] = 1
				header[6] = 1
				binary.LittleEndian.PutUint16(header[16:18], 2)
				binary.LittleEndian.PutUint16(header[18:20], machineAlphaStd)
				binary.LittleEndian.PutUint32(header[20:24], 1)
				Expect(os.WriteFile(elfPath, header, 0o644)).To(Succeed())

				_, err := loader.Load(elfPath)

				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a 64-bit"))
			})
		})

		It("should load several PT_LOAD segments and skip the rest", func() {
			data := []byte{1, 2, 3, 4}
			note := testSegment{addr: 0, data: []byte{9, 9}, memSize: 2, flags: 0x4, typ: 4}
			writeELF(elfPath, machineAlpha, 0x120000000,
				codeSegment(0x120000000, exitCode),
				note,
				testSegment{addr: 0x140000000, data: data, memSize: 0x400, flags: 0x6, typ: 1})

			prog, err := loader.Load(elfPath)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))
			Expect(prog.Segments[1].Data).To(Equal(data))
			Expect(prog.Segments[1].MemSize).To(Equal(uint64(0x400)))
			Expect(prog.Segments[1].Flags & loader.SegmentFlagWrite).NotTo(BeZero())
		})

		It("should handle segments with zero file size", func() {
			writeELF(elfPath, machineAlpha, 0x120000000,
				testSegment{addr: 0x140000000, memSize: 4096, flags: 0x6, typ: 1})

			prog, err := loader.Load(elfPath)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments[0].Data).To(BeEmpty())
			Expect(prog.Segments[0].MemSize).To(Equal(uint64(4096)))
		})

		It("should return no segments for an ELF without PT_LOAD", func() {
			writeELF(elfPath, machineAlpha, 0x120000000)

			prog, err := loader.Load(elfPath)

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
			Expect(prog.EntryPoint).To(Equal(uint64(0x120000000)))
		})
	})

	Describe("LoadInto", func() {
		It("should copy segments and clear the BSS tail", func() {
			m := emu.NewMemory()
			Expect(m.Write(0x140000004, []byte{0xFF, 0xFF})).To(Succeed())
			prog := &loader.Program{Segments: []loader.Segment{
				{VirtAddr: 0x140000000, Data: []byte{1, 2, 3, 4}, MemSize: 16},
			}}

			Expect(prog.LoadInto(m)).To(Succeed())

			data, err := m.Read(0x140000000, 8)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{1, 2, 3, 4, 0, 0, 0, 0}))
		})

		It("should run a loaded program", func() {
			writeELF(elfPath, machineAlpha, 0x120000000, codeSegment(0x120000000, exitCode))
			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			x := emu.NewExecutor()
			Expect(prog.LoadInto(x.Memory())).To(Succeed())
			x.RegFile().PC = prog.EntryPoint

			result := x.Run()

			Expect(result.Exception).NotTo(BeNil())
			pal, _ := result.Exception.CallPAL()
			Expect(pal).To(Equal(uint32(0x83)))
			Expect(x.RegFile().ReadReg(16)).To(Equal(uint64(42)))
		})

		It("should wrap memory errors", func() {
			prog := &loader.Program{Segments: []loader.Segment{{VirtAddr: 0x1000, Data: []byte{1}, MemSize: 1}}}

			err := prog.LoadInto(failingWriter{})

			Expect(err).To(MatchError(ContainSubstring("bus error")))
			Expect(err.Error()).To(ContainSubstring("0x1000"))
		})
	})
})
