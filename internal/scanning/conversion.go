package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// imageFormat is the source format of an uploaded receipt
type imageFormat int

const (
	formatPNG imageFormat = iota
	formatPDF
	formatHEIC
	formatOther
)

// detectFormat inspects magic bytes first and falls back to the declared MIME type,
// since phones often upload HEIC photos as application/octet-stream
func detectFormat(data []byte, mimeType string) imageFormat {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return formatPDF
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return formatPNG
	case isHEICFormat(data):
		return formatHEIC
	}

	switch {
	case mimeType == "application/pdf":
		return formatPDF
	case strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif"):
		return formatHEIC
	case mimeType == "image/png":
		return formatPNG
	}
	return formatOther
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// renderPDF renders the first page of a PDF (receipts are nearly always single page)
func renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes HEIC with the pure Go decoder and everything else with the standard image package
func decodeImage(data []byte, format imageFormat) (image.Image, error) {
	if format == formatHEIC {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// prepareImage converts any supported upload to PNG so every provider sees a single format.
// PNG input is passed through untouched.
func prepareImage(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	format := detectFormat(data, mimeType)
	if format == formatPNG {
		return data, nil
	}

	var (
		img image.Image
		err error
	)
	if format == formatPDF {
		img, err = renderPDF(data)
	} else {
		img, err = decodeImage(data, format)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
