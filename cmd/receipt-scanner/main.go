package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-scanner/internal/logging"
	"github.com/zombor/receipt-scanner/internal/merchant"
	"github.com/zombor/receipt-scanner/internal/receipt"
	"github.com/zombor/receipt-scanner/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	fs := ff.NewFlagSet("receipt-scanner")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "receipt-scanner.db", "Scan history database file path")
		storagePath   = fs.StringLong("storage", "./scans", "Scanned image storage directory")
		scannerType   = fs.StringLong("scanner", "ocrspace", "OCR provider: 'ocrspace', 'gemini' or 'ollama'")
		ocrTimeout    = fs.DurationLong("ocr-timeout", receipt.DefaultOCRTimeout, "Maximum time for one OCR call before the fallback record is used")
		ocrSpaceKey   = fs.StringLong("ocrspace-key", "", "OCR.space API key (or set OCR_SPACE_API_KEY env var)")
		ocrSpaceURL   = fs.StringLong("ocrspace-url", scanning.DefaultOCRSpaceURL, "OCR.space parse endpoint")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		analyze       = fs.BoolLong("analyze", "Read receipt fields with Gemini before falling back to pattern extraction")
		merchantsPath = fs.StringLong("merchants", "", "YAML merchant table (optional, replaces the built-in table)")
		cacheTTL      = fs.DurationLong("cache-ttl", time.Hour, "How long OCR text is remembered per image (0 disables caching)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logJSON       = fs.BoolLong("log-json", "Write logs as JSON")
		_             = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_SCANNER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(logging.Config{Level: level, JSON: *logJSON})

	ctx := context.Background()

	table := merchant.DefaultTable()
	if *merchantsPath != "" {
		table, err = merchant.LoadTable(*merchantsPath)
		if err != nil {
			slog.Error("Failed to load merchant table", "path", *merchantsPath, "error", err)
			os.Exit(1)
		}
	}
	slog.Info("Loaded merchant table", "merchants", table.Len())

	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	geminiAPIKey := firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY"))

	var scanner scanning.Scanner
	switch *scannerType {
	case "ocrspace":
		apiKey := firstNonEmpty(*ocrSpaceKey, os.Getenv("OCR_SPACE_API_KEY"))
		slog.Info("Initializing OCR.space scanner...", "url", *ocrSpaceURL)
		scanner, err = scanning.NewOCRSpace(*ocrSpaceURL, apiKey)
		if err != nil {
			slog.Error("Failed to initialize OCR.space. Set --ocrspace-key flag or OCR_SPACE_API_KEY environment variable", "error", err)
			os.Exit(1)
		}
	case "gemini":
		if geminiAPIKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(ctx, geminiAPIKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "ocrspace, gemini or ollama")
		os.Exit(1)
	}
	if *cacheTTL > 0 {
		scanner = scanning.NewCached(scanner, *cacheTTL)
	}
	defer scanner.Close()

	opts := []receipt.Option{receipt.WithOCRTimeout(*ocrTimeout)}
	if *analyze {
		analyzer, err := geminiAnalyzer(ctx, scanner, geminiAPIKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize analyzer", "error", err)
			os.Exit(1)
		}
		defer analyzer.Close()
		opts = append(opts, receipt.WithAnalyzer(analyzer))
		slog.Info("Field analysis enabled", "model", *geminiModel)
	}

	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	service := receipt.NewService(db, scanner, store, merchant.NewClassifier(table), opts...)

	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(service, basicAuth)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if basicAuth.Enabled() {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down server", "error", err)
	}
}

// analyzerCloser is an Analyzer owning resources of its own
type analyzerCloser interface {
	scanning.Analyzer
	Close() error
}

// nopCloser keeps the scanner's Close as the only release of a shared Gemini client
type nopCloser struct {
	scanning.Analyzer
}

func (nopCloser) Close() error { return nil }

// geminiAnalyzer reuses a Gemini scanner as the analyzer, or opens a separate Gemini client
func geminiAnalyzer(ctx context.Context, scanner scanning.Scanner, apiKey, model string) (analyzerCloser, error) {
	if cached, ok := scanner.(*scanning.Cached); ok {
		scanner = cached.Unwrap()
	}
	if g, ok := scanner.(*scanning.Gemini); ok {
		return nopCloser{g}, nil
	}
	if apiKey == "" {
		return nil, errors.New("--analyze needs a Gemini API key: set --gemini-key or GEMINI_API_KEY")
	}
	return scanning.NewGemini(ctx, apiKey, model)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
