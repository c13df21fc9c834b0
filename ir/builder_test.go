package ir_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/alphatx/ir"
)

var _ = Describe("Builder", func() {
	var (
		b  *ir.Builder
		r1 ir.Value
		r2 ir.Value
	)

	BeforeEach(func() {
		b = ir.NewBuilder()
		r1 = ir.Global(1)
		r2 = ir.Global(2)
	})

	Describe("constant folding", func() {
		It("should fold two constants into a move-immediate", func() {
			b.Add(r1, ir.Const(3), ir.Const(4))

			Expect(b.Ops()).To(HaveLen(1))
			Expect(b.Ops()[0].Code).To(Equal(ir.OpMovI))
			Expect(b.Ops()[0].A.Imm).To(Equal(uint64(7)))
		})

		It("should turn x+0 into a move", func() {
			b.Add(r1, r2, ir.Const(0))

			Expect(b.Ops()).To(HaveLen(1))
			Expect(b.Ops()[0].Code).To(Equal(ir.OpMov))
			Expect(b.Ops()[0].A).To(Equal(r2))
		})

		It("should swap a constant to the right of a commutative op", func() {
			b.And(r1, ir.Const(0xFF), r2)

			op := b.Ops()[0]
			Expect(op.Code).To(Equal(ir.OpAnd))
			Expect(op.A).To(Equal(r2))
			Expect(op.B).To(Equal(ir.Const(0xFF)))
		})

		It("should turn x&0 into zero", func() {
			b.And(r1, r2, ir.Const(0))

			Expect(b.Ops()[0].Code).To(Equal(ir.OpMovI))
			Expect(b.Ops()[0].A.Imm).To(BeZero())
		})

		It("should turn 0-x into a negation", func() {
			b.Sub(r1, ir.Const(0), r2)

			Expect(b.Ops()[0].Code).To(Equal(ir.OpNeg))
		})

		It("should turn a 32-bit add of zero into a sign extension", func() {
			b.Add32(r1, ir.Const(0), r2)

			op := b.Ops()[0]
			Expect(op.Code).To(Equal(ir.OpExt))
			Expect(op.Width).To(Equal(ir.W32))
			Expect(op.Signed).To(BeTrue())
		})

		It("should drop a self move", func() {
			b.Mov(r1, r1)
			b.Or(r2, r2, ir.Const(0))

			Expect(b.Len()).To(BeZero())
		})

		It("should keep overflow-checked ops even with constants", func() {
			b.AddV(r1, ir.Const(1), ir.Const(2), ir.W64)

			Expect(b.Ops()[0].Code).To(Equal(ir.OpAddV))
		})

		It("should resolve constant branches at build time", func() {
			l := b.NewLabel()
			b.BrCond(ir.CondEQ, ir.Const(1), ir.Const(2), l)
			Expect(b.Len()).To(BeZero())

			b.BrCond(ir.CondNE, ir.Const(1), ir.Const(2), l)
			Expect(b.Ops()[0].Code).To(Equal(ir.OpBr))
		})

		It("should swap the predicate when the constant is on the left", func() {
			l := b.NewLabel()
			b.BrCond(ir.CondLT, ir.Const(0), r1, l)

			op := b.Ops()[0]
			Expect(op.A).To(Equal(r1))
			Expect(op.Cond).To(Equal(ir.CondGT))
		})
	})

	Describe("scopes", func() {
		It("should release temporaries on close", func() {
			s := b.OpenScope()
			t0 := s.Temp()
			t1 := s.Temp()
			Expect(t0).NotTo(Equal(t1))
			Expect(b.LiveTemps()).To(Equal(2))

			s.Close()
			Expect(b.LiveTemps()).To(BeZero())
			Expect(b.OpenScopes()).To(BeZero())
		})

		It("should reuse released slots", func() {
			s := b.OpenScope()
			s.Temp()
			s.Temp()
			s.Close()

			s = b.OpenScope()
			s.Temp()
			s.Close()

			Expect(b.NumTemps()).To(Equal(2))
		})

		It("should tolerate a double close", func() {
			s := b.OpenScope()
			s.Temp()
			s.Close()
			s.Close()

			Expect(b.LiveTemps()).To(BeZero())
		})

		It("should reject out of order closes", func() {
			outer := b.OpenScope()
			b.OpenScope()

			Expect(outer.Close).To(Panic())
		})
	})

	Describe("labels", func() {
		It("should track unplaced labels", func() {
			l0 := b.NewLabel()
			l1 := b.NewLabel()
			b.SetLabel(l0)

			Expect(b.UnplacedLabels()).To(ConsistOf(l1))
		})

		It("should reject placing a label twice", func() {
			l := b.NewLabel()
			b.SetLabel(l)

			Expect(func() { b.SetLabel(l) }).To(Panic())
		})
	})
})

var _ = Describe("Evaluation", func() {
	DescribeTable("predicates",
		func(c ir.Cond, a, b uint64, want bool) {
			Expect(c.Eval(a, b)).To(Equal(want))
			Expect(c.Invert().Eval(a, b)).To(Equal(!want))
			Expect(c.Swap().Eval(b, a)).To(Equal(want))
		},
		Entry("signed lt", ir.CondLT, ^uint64(0), uint64(1), true),
		Entry("unsigned lt", ir.CondLTU, ^uint64(0), uint64(1), false),
		Entry("le equal", ir.CondLE, uint64(5), uint64(5), true),
		Entry("gtu", ir.CondGTU, uint64(6), uint64(5), true),
		Entry("eq", ir.CondEQ, uint64(6), uint64(5), false),
	)

	It("should detect signed overflow", func() {
		_, ok := ir.EvalChecked(ir.OpAddV, 1<<63-1, 1, ir.W64)
		Expect(ok).To(BeFalse())

		r, ok := ir.EvalChecked(ir.OpAddV, 0x7FFFFFFF, 1, ir.W32)
		Expect(ok).To(BeFalse())
		Expect(r).To(Equal(uint64(0xFFFFFFFF80000000)))

		r, ok = ir.EvalChecked(ir.OpSubV, 5, 7, ir.W64)
		Expect(ok).To(BeTrue())
		Expect(int64(r)).To(Equal(int64(-2)))

		_, ok = ir.EvalChecked(ir.OpMulV, 1<<62, 4, ir.W64)
		Expect(ok).To(BeFalse())
	})

	It("should extend values", func() {
		Expect(ir.EvalExt(0x80, ir.W8, true)).To(Equal(^uint64(0x7F)))
		Expect(ir.EvalExt(0x1_8000_0000, ir.W32, false)).To(Equal(uint64(0x8000_0000)))
	})
})

var _ = Describe("Listing", func() {
	It("should render ops with names and guest addresses", func() {
		b := ir.NewBuilder()
		b.Add(ir.Global(0), ir.Global(1), ir.Const(8))
		b.Raise(0x13E0, 0)

		l := ir.Listing{
			Ops:   b.Ops(),
			Names: func(id int) string { return []string{"v0", "t0"}[id] },
			Marks: map[int]uint64{0: 0x1000},
		}

		Expect(l.String()).To(Equal(
			"---- 0000000000001000\nadd v0, t0, $0x8\nraise 0x13e0, 0x0\n"))
		Expect(l.Table()).To(ContainSubstring("0x1000"))
	})
})
