package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img
}

var _ = Describe("detectFormat", func() {
	DescribeTable("by magic bytes and MIME type",
		func(data []byte, mimeType string, expected imageFormat) {
			Expect(detectFormat(data, mimeType)).To(Equal(expected))
		},
		Entry("PDF magic", []byte("%PDF-1.4 ..."), "application/octet-stream", formatPDF),
		Entry("PNG magic", []byte("\x89PNG\r\n\x1a\nrest"), "image/jpeg", formatPNG),
		Entry("HEIC brand", []byte("\x00\x00\x00\x18ftypheic0000"), "application/octet-stream", formatHEIC),
		Entry("HEIC MIME type", []byte("not magic"), "image/heic", formatHEIC),
		Entry("PDF MIME type", []byte("not magic"), "application/pdf", formatPDF),
		Entry("anything else", []byte("not magic"), "image/jpeg", formatOther),
	)
})

var _ = Describe("prepareImage", func() {
	When("the image is already PNG", func() {
		It("passes the bytes through", func() {
			var buf bytes.Buffer
			Expect(png.Encode(&buf, sampleImage())).To(Succeed())

			out, err := prepareImage(buf.Bytes(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(buf.Bytes()))
		})
	})

	When("the image is JPEG", func() {
		It("converts it to PNG", func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, sampleImage(), nil)).To(Succeed())

			out, err := prepareImage(buf.Bytes(), " Image/JPEG ")
			Expect(err).NotTo(HaveOccurred())
			_, format, err := image.Decode(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		})
	})

	When("the data is not an image", func() {
		It("returns an unsupported format error", func() {
			_, err := prepareImage([]byte("fake image data"), "image/jpeg")
			Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
		})
	})
})
