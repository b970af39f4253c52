package receipt

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-scanner/internal/confidence"
	"github.com/zombor/receipt-scanner/internal/extract"
	"github.com/zombor/receipt-scanner/internal/merchant"
	"github.com/zombor/receipt-scanner/internal/scanning"
)

// DefaultOCRTimeout bounds a single OCR call
const DefaultOCRTimeout = 8 * time.Second

// ErrInvalidImage is returned for missing or undecodable image payloads
var ErrInvalidImage = errors.New("invalid image")

// IDGenerator generates unique IDs for scans
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Option configures a Service
type Option func(*Service)

// WithIDGenerator replaces the UUID scan ID generator
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.idGenerator = g }
}

// WithTimeSource replaces the wall clock
func WithTimeSource(t TimeSource) Option {
	return func(s *Service) { s.timeSource = t }
}

// WithOCRTimeout sets how long an OCR call may take before the fallback record is used
func WithOCRTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ocrTimeout = d
		}
	}
}

// WithAnalyzer reads fields with an Analyzer before falling back to the pattern extractor
func WithAnalyzer(a scanning.Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

// JobStatus reports the progress of a scan. Scans are synchronous so a known
// scan is always complete.
type JobStatus struct {
	Status                 string `json:"status"`
	Progress               int    `json:"progress"`
	EstimatedTimeRemaining int    `json:"estimatedTimeRemaining"`
}

// Service runs the receipt pipeline and keeps the scan history
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	classifier  *merchant.Classifier
	analyzer    scanning.Analyzer
	idGenerator IDGenerator
	timeSource  TimeSource
	ocrTimeout  time.Duration
}

// NewService creates a new Service with UUID IDs, the wall clock and the default OCR timeout
func NewService(db DB, scanner scanning.Scanner, storage Storage, classifier *merchant.Classifier, opts ...Option) *Service {
	s := &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		classifier:  classifier,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
		ocrTimeout:  DefaultOCRTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ocrOutcome is the result of one OCR call: either text or the reason there is none
type ocrOutcome struct {
	text string
	err  error
}

func (o ocrOutcome) failed() bool {
	return o.err != nil
}

// read calls the scanner, bounded by the OCR timeout. Blank text counts as failure.
func (s *Service) read(ctx context.Context, image []byte, contentType string) ocrOutcome {
	ctx, cancel := context.WithTimeout(ctx, s.ocrTimeout)
	defer cancel()

	done := make(chan ocrOutcome, 1)
	go func() {
		text, err := s.scanner.ExtractText(ctx, image, contentType)
		if err == nil && strings.TrimSpace(text) == "" {
			err = scanning.ErrNoText
		}
		done <- ocrOutcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		return out
	case <-ctx.Done():
		return ocrOutcome{err: fmt.Errorf("ocr call: %w", ctx.Err())}
	}
}

// Interpret turns OCR text into a Result. Blank text yields the fallback record.
func (s *Service) Interpret(ctx context.Context, text string) *Result {
	doc := extract.Normalize(text)
	if doc.Empty() {
		slog.Warn("No receipt text, using fallback record")
		return Fallback(s.timeSource.Now())
	}
	return s.assemble(s.fields(ctx, doc))
}

// Scan reads an image and interprets its text. OCR failures and timeouts yield the fallback record.
func (s *Service) Scan(ctx context.Context, image []byte, contentType string) *Result {
	result, _ := s.scan(ctx, image, contentType)
	return result
}

func (s *Service) scan(ctx context.Context, image []byte, contentType string) (*Result, ocrOutcome) {
	out := s.read(ctx, image, contentType)
	if out.failed() {
		slog.Error("Failed to read receipt text, using fallback record",
			"content_type", contentType,
			"file_size", len(image),
			"error", out.err,
		)
		return Fallback(s.timeSource.Now()), out
	}
	return s.Interpret(ctx, out.text), out
}

// fields reads receipt fields with the analyzer if one is configured, else with the pattern extractor
func (s *Service) fields(ctx context.Context, doc extract.Document) extract.Fields {
	if s.analyzer != nil {
		f, err := s.analyzer.Analyze(ctx, doc.Text)
		if err == nil && f != nil {
			extract.Reconcile(f)
			return *f
		}
		slog.Warn("Analyzer failed, extracting fields from text", "error", err)
	}
	return extract.Extract(doc)
}

// assemble classifies the merchant, fills derived fields and scores the result
func (s *Service) assemble(f extract.Fields) *Result {
	c := s.classifier.Classify(f.Merchant)

	// Items are settled before tax falls back to total minus subtotal.
	tax := f.Tax
	if !f.TaxFound {
		tax = f.Total.Sub(f.Subtotal).NonNegative()
	}

	// A missing date becomes the processing date before scoring, so it still earns the date bonus.
	inferred := f.Date == ""
	if inferred {
		f.Date = s.timeSource.Now().Format(time.DateOnly)
	}

	items := f.Items
	if items == nil {
		items = []extract.LineItem{}
	}

	result := &Result{
		Merchant:      c.CanonicalName,
		Total:         f.Total,
		Date:          f.Date,
		DateInferred:  inferred,
		Items:         items,
		Category:      c.Category,
		Confidence:    confidence.Score(f, c.Confidence),
		Tax:           tax,
		Subtotal:      f.Subtotal,
		ReceiptNumber: f.ReceiptNumber,
		Address:       f.Address,
	}
	slog.Debug("Interpreted receipt",
		"merchant", result.Merchant,
		"match", c.Match.String(),
		"total", result.Total.String(),
		"items", len(result.Items),
		"confidence", result.Confidence,
	)
	return result
}

var (
	reFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	reFilenameSpace = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	ext = reFilenameChars.ReplaceAllString(ext[min(1, len(ext)):], "")
	if ext != "" {
		ext = "." + ext
	}

	base = reFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(reFilenameSpace.ReplaceAllString(base, " "))

	// Phone cameras produce long names
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// ProcessUpload stores an image, scans it and records the scan.
// OCR failure is not an error: the scan carries the fallback record.
func (s *Service) ProcessUpload(ctx context.Context, filename string, image []byte, contentType string) (*Scan, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image data is required", ErrInvalidImage)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), image)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	result, out := s.scan(ctx, image, contentType)
	scan := &Scan{
		ID:          id,
		Filename:    savedName,
		ContentType: contentType,
		Text:        out.text,
		Fallback:    out.failed(),
		Result:      result,
		CreatedAt:   now,
	}

	if err := s.db.SaveScan(scan); err != nil {
		if delErr := s.storage.Delete(savedName); delErr != nil {
			slog.Warn("Failed to delete file", "filename", savedName, "error", delErr)
		}
		return nil, fmt.Errorf("saving scan to database: %w", err)
	}

	slog.Info("Scanned receipt", "id", id, "merchant", result.Merchant, "confidence", result.Confidence)
	return scan, nil
}

// ScanBase64 decodes a base64 image, optionally wrapped in a data URI, and processes it as an upload
func (s *Service) ScanBase64(ctx context.Context, payload string) (*Scan, error) {
	payload = strings.TrimSpace(payload)
	contentType := ""
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found {
			return nil, fmt.Errorf("%w: malformed data URI", ErrInvalidImage)
		}
		contentType, _, _ = strings.Cut(header, ";")
		payload = data
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: image data is required", ErrInvalidImage)
	}

	image, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding base64: %v", ErrInvalidImage, err)
	}
	if contentType == "" {
		contentType = http.DetectContentType(image)
	}
	return s.ProcessUpload(ctx, "receipt"+extensionFor(contentType), image, contentType)
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	case "image/heic":
		return ".heic"
	case "image/heif":
		return ".heif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

// GetScan retrieves a scan by ID
func (s *Service) GetScan(id string) (*Scan, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, fmt.Errorf("getting scan: %w", err)
	}
	return scan, nil
}

// ListScans returns all scans, newest first
func (s *Service) ListScans() ([]*Scan, error) {
	scans, err := s.db.ListScans()
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return scans, nil
}

// DeleteScan removes a scan and its image
func (s *Service) DeleteScan(id string) error {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return fmt.Errorf("getting scan for deletion: %w", err)
	}

	if err := s.storage.Delete(scan.Filename); err != nil {
		slog.Warn("Failed to delete file", "filename", scan.Filename, "error", err)
	}

	if err := s.db.DeleteScan(id); err != nil {
		return fmt.Errorf("deleting scan from database: %w", err)
	}
	return nil
}

// GetScanFile retrieves the stored image for a scan
func (s *Service) GetScanFile(id string) ([]byte, string, error) {
	scan, err := s.db.GetScan(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan: %w", err)
	}

	data, err := s.storage.Get(scan.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting scan file: %w", err)
	}
	return data, scan.ContentType, nil
}

// ScanStatus reports the status of a scan job
func (s *Service) ScanStatus(id string) (*JobStatus, error) {
	if _, err := s.db.GetScan(id); err != nil {
		return nil, fmt.Errorf("getting scan status: %w", err)
	}
	return &JobStatus{Status: "completed", Progress: 100, EstimatedTimeRemaining: 0}, nil
}
