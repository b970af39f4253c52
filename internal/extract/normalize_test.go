package extract

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Normalize", func() {
	var (
		raw string
		doc Document
	)

	JustBeforeEach(func() {
		doc = Normalize(raw)
	})

	When("text uses real line breaks", func() {
		BeforeEach(func() {
			raw = "WALMART\r\n  123   MAIN ST  \n\n\nMilk\t\t2.99\n"
		})

		It("splits, trims and collapses whitespace", func() {
			Expect(doc.Lines).To(Equal([]string{"WALMART", "123 MAIN ST", "Milk 2.99"}))
		})

		It("joins the lines back into the text", func() {
			Expect(doc.Text).To(Equal("WALMART\n123 MAIN ST\nMilk 2.99"))
		})
	})

	When("text uses escaped line breaks", func() {
		BeforeEach(func() {
			raw = `TARGET\nSoap 3.49\r\nTOTAL 3.49`
		})

		It("splits on the escape sequences", func() {
			Expect(doc.Lines).To(Equal([]string{"TARGET", "Soap 3.49", "TOTAL 3.49"}))
		})
	})

	When("text mixes both styles", func() {
		BeforeEach(func() {
			raw = "KROGER\\nEggs 2.49\nTOTAL 2.49"
		})

		It("keeps the original order", func() {
			Expect(doc.Lines).To(Equal([]string{"KROGER", "Eggs 2.49", "TOTAL 2.49"}))
		})
	})

	When("text is blank", func() {
		BeforeEach(func() {
			raw = " \n\t \\n "
		})

		It("produces no lines", func() {
			Expect(doc.Lines).To(BeEmpty())
			Expect(doc.Empty()).To(BeTrue())
		})

		It("produces empty text", func() {
			Expect(doc.Text).To(BeEmpty())
		})
	})
})
