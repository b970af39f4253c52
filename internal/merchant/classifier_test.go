package merchant

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Classifier", func() {
	var (
		classifier *Classifier
		input      string
		result     Classification
	)

	BeforeEach(func() {
		classifier = NewClassifier(DefaultTable())
	})

	JustBeforeEach(func() {
		result = classifier.Classify(input)
	})

	When("the merchant matches a table key exactly", func() {
		BeforeEach(func() {
			input = "walmart"
		})

		It("returns the canonical record", func() {
			Expect(result).To(Equal(Classification{
				CanonicalName: "Walmart",
				Category:      Shopping,
				Confidence:    95,
				Match:         MatchExact,
			}))
		})
	})

	When("the merchant carries punctuation and a store number", func() {
		BeforeEach(func() {
			input = "WAL-MART #4521"
		})

		It("matches partially", func() {
			Expect(result.Match).To(Equal(MatchPartial))
			Expect(result.CanonicalName).To(Equal("Walmart"))
			Expect(result.Category).To(Equal(Shopping))
		})
	})

	When("the merchant name is truncated", func() {
		BeforeEach(func() {
			input = "WALGRE"
		})

		It("matches the longer key", func() {
			Expect(result.Match).To(Equal(MatchPartial))
			Expect(result.CanonicalName).To(Equal("Walgreens"))
			Expect(result.Category).To(Equal(Healthcare))
		})
	})

	When("the merchant has a prefix", func() {
		BeforeEach(func() {
			input = "THE HOME DEPOT 0412"
		})

		It("matches the multi-word key", func() {
			Expect(result.CanonicalName).To(Equal("Home Depot"))
		})
	})

	When("the merchant is unknown but looks like a fuel station", func() {
		BeforeEach(func() {
			input = "Speedy Gas & Go"
		})

		It("uses the transportation heuristic", func() {
			Expect(result).To(Equal(Classification{
				CanonicalName: "Speedy Gas & Go",
				Category:      Transportation,
				Confidence:    75,
				Match:         MatchKeyword,
			}))
		})
	})

	When("the merchant is unknown but looks like a restaurant", func() {
		BeforeEach(func() {
			input = "Luigi's Cafe"
		})

		It("uses the food heuristic", func() {
			Expect(result.Category).To(Equal(FoodAndDining))
			Expect(result.Confidence).To(Equal(80))
		})
	})

	When("the merchant is unknown but looks like a shop", func() {
		BeforeEach(func() {
			input = "Farmers Market"
		})

		It("uses the retail heuristic", func() {
			Expect(result.Category).To(Equal(Shopping))
			Expect(result.Confidence).To(Equal(70))
		})
	})

	When("nothing matches", func() {
		BeforeEach(func() {
			input = "Zebra Holdings"
		})

		It("falls back to Other with the input unchanged", func() {
			Expect(result).To(Equal(Classification{
				CanonicalName: "Zebra Holdings",
				Category:      Other,
				Confidence:    60,
				Match:         MatchNone,
			}))
		})
	})

	When("the input is empty", func() {
		BeforeEach(func() {
			input = ""
		})

		It("returns the fallback with an empty name", func() {
			Expect(result.CanonicalName).To(BeEmpty())
			Expect(result.Category).To(Equal(Other))
			Expect(result.Confidence).To(Equal(60))
		})
	})

	When("the input is too short to be a truncated key", func() {
		BeforeEach(func() {
			input = "WA"
		})

		It("does not match any merchant", func() {
			Expect(result.Match).To(Equal(MatchNone))
		})
	})

	Describe("ladder priority", func() {
		It("prefers an exact key over an earlier partial one", func() {
			t, err := NewTable([]Record{
				{Key: "SHELL", CanonicalName: "Shell", Category: Transportation, BaseConfidence: 89},
				{Key: "SHELL BEACH CAFE", CanonicalName: "Shell Beach Cafe", Category: FoodAndDining, BaseConfidence: 90},
			})
			Expect(err).NotTo(HaveOccurred())
			r := NewClassifier(t).Classify("Shell Beach Cafe")
			Expect(r.Match).To(Equal(MatchExact))
			Expect(r.CanonicalName).To(Equal("Shell Beach Cafe"))
		})

		It("prefers a partial table match over keywords", func() {
			r := classifier.Classify("PIZZA HUT EXPRESS")
			Expect(r.Match).To(Equal(MatchPartial))
			Expect(r.CanonicalName).To(Equal("Pizza Hut"))
			Expect(r.Confidence).To(Equal(84))
		})

		It("prefers keywords over the fallback", func() {
			Expect(classifier.Classify("Joe's Pizza").Match).To(Equal(MatchKeyword))
		})
	})
})
