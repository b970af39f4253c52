package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("OCRSpace", func() {
	var (
		server  *ghttp.Server
		scanner *OCRSpace
		ctx     context.Context
		cancel  context.CancelFunc
		image       []byte
		contentType string
		text        string
		err         error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		scanner, newErr = NewOCRSpace(server.URL()+"/parse/image", "test-key")
		Expect(newErr).NotTo(HaveOccurred())
		scanner.delay = time.Millisecond
		image = []byte("fake image data")
		contentType = "image/jpeg"
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	})

	AfterEach(func() {
		cancel()
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = scanner.ExtractText(ctx, image, contentType)
	})

	When("the API returns text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/parse/image"),
				ghttp.VerifyContentType("application/x-www-form-urlencoded"),
				ghttp.VerifyForm(map[string][]string{
					"apikey":            {"test-key"},
					"language":          {"eng"},
					"isOverlayRequired": {"false"},
					"base64Image":       {"data:image/jpeg;base64,ZmFrZSBpbWFnZSBkYXRh"},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"ParsedResults":         []map[string]any{{"ParsedText": "WALMART\r\nTOTAL 5.38"}},
					"IsErroredOnProcessing": false,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the parsed text", func() {
			Expect(text).To(ContainSubstring("WALMART\r\nTOTAL 5.38"))
		})
	})

	Describe("image preparation", func() {
		var posted string

		BeforeEach(func() {
			posted = ""
			server.AppendHandlers(ghttp.CombineHandlers(
				func(w http.ResponseWriter, r *http.Request) {
					posted = r.FormValue("base64Image")
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"ParsedResults": []map[string]any{{"ParsedText": "TOTAL 1.00"}},
				}),
			))
		})

		When("a HEIC-labelled photo is already PNG inside", func() {
			var pngData []byte

			BeforeEach(func() {
				var buf bytes.Buffer
				Expect(png.Encode(&buf, sampleImage())).To(Succeed())
				pngData = buf.Bytes()
				image = pngData
				contentType = "image/heic"
			})

			It("sends it as PNG", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(posted).To(Equal("data:image/png;base64," + encodeBase64(pngData)))
			})
		})

		When("an unlabelled GIF is uploaded", func() {
			BeforeEach(func() {
				var buf bytes.Buffer
				Expect(gif.Encode(&buf, sampleImage(), nil)).To(Succeed())
				image = buf.Bytes()
				contentType = "application/octet-stream"
			})

			It("converts it to PNG", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(posted).To(HavePrefix("data:image/png;base64,"))

				decoded, decodeErr := base64.StdEncoding.DecodeString(strings.TrimPrefix(posted, "data:image/png;base64,"))
				Expect(decodeErr).NotTo(HaveOccurred())
				Expect(decoded).To(HavePrefix("\x89PNG"))
			})
		})

		When("an unlabelled JPEG is uploaded", func() {
			BeforeEach(func() {
				var buf bytes.Buffer
				Expect(jpeg.Encode(&buf, sampleImage(), nil)).To(Succeed())
				image = buf.Bytes()
				contentType = ""
			})

			It("sends the JPEG untouched", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(posted).To(Equal("data:image/jpeg;base64," + encodeBase64(image)))
			})
		})

		When("a PDF is uploaded", func() {
			BeforeEach(func() {
				image = []byte("%PDF-1.4 receipt")
				contentType = "application/pdf"
			})

			It("sends the PDF untouched", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(posted).To(Equal("data:application/pdf;base64," + encodeBase64(image)))
			})
		})
	})

	When("a HEIC photo cannot be decoded", func() {
		BeforeEach(func() {
			image = []byte("\x00\x00\x00\x18ftypheic not really a photo")
			contentType = "image/heic"
		})

		It("fails without sending the raw HEIC bytes", func() {
			Expect(err).To(MatchError(ContainSubstring("decoding HEIC/HEIF image")))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})

	When("the API reports a processing error", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"IsErroredOnProcessing": true,
				"ErrorMessage":          []string{"Unable to recognize the file type"},
			}))
		})

		It("returns the error message", func() {
			Expect(err).To(MatchError(ContainSubstring("Unable to recognize the file type")))
		})

		It("does not retry", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the API finds no text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"ParsedResults":         []map[string]any{{"ParsedText": "  \r\n"}},
				"IsErroredOnProcessing": false,
			}))
		})

		It("returns ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the API fails transiently", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusBadGateway, "upstream down"),
				ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
					"ParsedResults": []map[string]any{{"ParsedText": "TOTAL 1.00"}},
				}),
			)
		})

		It("retries and succeeds", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(ContainSubstring("TOTAL 1.00"))
			Expect(server.ReceivedRequests()).To(HaveLen(2))
		})
	})

	When("the API keeps failing", func() {
		BeforeEach(func() {
			server.AppendHandlers(
				ghttp.RespondWith(http.StatusServiceUnavailable, "down"),
				ghttp.RespondWith(http.StatusServiceUnavailable, "down"),
				ghttp.RespondWith(http.StatusServiceUnavailable, "down"),
			)
		})

		It("gives up after three attempts", func() {
			Expect(err).To(MatchError(ContainSubstring("status 503")))
			Expect(server.ReceivedRequests()).To(HaveLen(3))
		})
	})

	When("the API rejects the key", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusForbidden, "bad key"))
		})

		It("does not retry", func() {
			Expect(err).To(MatchError(ContainSubstring("status 403")))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})
})

var _ = Describe("NewOCRSpace", func() {
	It("requires an API key", func() {
		_, err := NewOCRSpace("", "")
		Expect(err).To(HaveOccurred())
	})

	It("defaults the endpoint", func() {
		s, err := NewOCRSpace("", "key")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.endpoint).To(Equal(DefaultOCRSpaceURL))
	})
})
