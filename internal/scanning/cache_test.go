package scanning

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// countingScanner is a Scanner stub that counts calls
type countingScanner struct {
	calls  int
	text   string
	err    error
	closed bool
}

func (c *countingScanner) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

func (c *countingScanner) Close() error {
	c.closed = true
	return nil
}

var _ = Describe("Cached", func() {
	var (
		next   *countingScanner
		cached *Cached
	)

	BeforeEach(func() {
		next = &countingScanner{text: "TOTAL 1.00"}
		cached = NewCached(next, time.Minute)
	})

	It("reads each image once", func() {
		for i := 0; i < 3; i++ {
			text, err := cached.ExtractText(context.Background(), []byte("image-a"), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("TOTAL 1.00"))
		}
		Expect(next.calls).To(Equal(1))
	})

	It("keys by image content", func() {
		_, _ = cached.ExtractText(context.Background(), []byte("image-a"), "image/png")
		_, _ = cached.ExtractText(context.Background(), []byte("image-b"), "image/png")
		Expect(next.calls).To(Equal(2))
	})

	It("does not cache failures", func() {
		next.err = errors.New("ocr down")
		_, err := cached.ExtractText(context.Background(), []byte("image-a"), "image/png")
		Expect(err).To(HaveOccurred())

		next.err = nil
		text, err := cached.ExtractText(context.Background(), []byte("image-a"), "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(text).To(Equal("TOTAL 1.00"))
		Expect(next.calls).To(Equal(2))
	})

	It("closes the wrapped scanner", func() {
		Expect(cached.Close()).To(Succeed())
		Expect(next.closed).To(BeTrue())
	})
})
