package models_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/alphatx/models"
)

var _ = Describe("Model table", func() {
	DescribeTable("lookup by name",
		func(name string, implver models.ImplVer, features models.Feature) {
			m, err := models.Lookup(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Name).To(Equal(name))
			Expect(m.ImplVer).To(Equal(implver))
			Expect(m.Features).To(Equal(features))
		},
		Entry("ev4", "ev4", models.ImplVer2106x, models.FeatureNone),
		Entry("ev5", "ev5", models.ImplVer21164, models.FeatureNone),
		Entry("ev56", "ev56", models.ImplVer21164, models.FeatureBWX),
		Entry("pca56", "pca56", models.ImplVer21164, models.FeatureBWX|models.FeatureMVI),
		Entry("ev6", "ev6", models.ImplVer21264,
			models.FeatureBWX|models.FeatureFIX|models.FeatureMVI|models.FeatureTrap),
		Entry("21264a", "21264a", models.ImplVer21264,
			models.FeatureBWX|models.FeatureFIX|models.FeatureCIX|
				models.FeatureMVI|models.FeatureTrap|models.FeaturePrefetch),
	)

	It("should report unknown models", func() {
		_, err := models.Lookup("ev99")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, models.ErrUnknownModel)).To(BeTrue())
	})

	It("should default to ev67 with every extension", func() {
		m := models.Default()
		Expect(m.Name).To(Equal("ev67"))
		Expect(m.Has(models.FeatureBWX | models.FeatureCIX | models.FeatureMVI)).To(BeTrue())
	})

	It("should not let callers mutate the table", func() {
		all := models.All()
		Expect(all).To(HaveLen(13))
		all[0].Features = models.FeatureMVI

		m, err := models.Lookup("ev4")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Features).To(Equal(models.FeatureNone))
	})

	It("should format feature masks", func() {
		Expect(models.FeatureNone.String()).To(Equal("none"))
		Expect((models.FeatureBWX | models.FeatureMVI).String()).To(Equal("BWX|MVI"))
		Expect(models.ImplVer21164.String()).To(Equal("21164"))
	})
})
