package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bartosicilia/TaxlexIA/constants"
)

// DefaultNativeTextThreshold is the number of characters the trimmed native
// text layer must exceed before OCR is skipped.
const DefaultNativeTextThreshold = 100

// Method reports which strategy produced the extraction text.
type Method string

const (
	MethodNative Method = "native"
	MethodOCR    Method = "ocr"
	MethodFailed Method = "failed"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit
	TessdataDir   string

	NativeThreshold int  // default DefaultNativeTextThreshold
	EnhancePages    bool // grayscale/contrast/sharpen rendered pages before OCR

	TempDir string // parent for per-file scratch dirs; "" = os.TempDir()
}

type ExtractionResult struct {
	FileName string
	Text     string
	Method   Method
	Pages    int
	Duration time.Duration
	Warnings []string
}

// ErrUnreadable is returned when OCR ran but produced no text.
var ErrUnreadable = errors.New("no text recognized")

// ExtractionError reports a failed extraction. Text holds the sentinel text
// that downstream stages receive in place of invoice content.
type ExtractionError struct {
	FileName string
	Text     string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %q: %v", e.FileName, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

type Extractor struct {
	cfg    Config
	runner Runner
	native NativeReader
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner swaps the command runner used for pdftoppm and tesseract.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithNativeReader swaps the embedded text layer reader.
func WithNativeReader(n NativeReader) Option {
	return func(e *Extractor) { e.native = n }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.NativeThreshold <= 0 {
		cfg.NativeThreshold = DefaultNativeTextThreshold
	}
	e := &Extractor{
		cfg:    cfg,
		runner: execRunner{logger: logger},
		native: pdfReader{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text of a PDF, preferring the embedded text layer and
// falling back to page OCR. The result always carries text: on failure the
// error is an *ExtractionError and Text is the sentinel handed to analysis.
func (e *Extractor) Extract(ctx context.Context, data []byte, fileName string) (ExtractionResult, error) {
	start := time.Now()
	res := ExtractionResult{FileName: fileName}

	text, pages, err := e.nativeText(data)
	switch {
	case err != nil:
		e.logger.Warn("ocr.native.failed", "file", fileName, "error", err)
		res.Warnings = append(res.Warnings, "native text: "+err.Error())
	case utf8.RuneCountInString(strings.TrimSpace(text)) > e.cfg.NativeThreshold:
		res.Text, res.Method, res.Pages = text, MethodNative, pages
		res.Duration = time.Since(start)
		e.logger.Info("ocr.native.ok", "file", fileName, "pages", pages, "chars", len(text))
		return res, nil
	default:
		e.logger.Info("ocr.native.insufficient", "file", fileName, "pages", pages,
			"threshold", e.cfg.NativeThreshold)
	}

	ocrText, pages, recognized, warns, err := e.ocrPDF(ctx, data, fileName)
	res.Pages = pages
	res.Warnings = append(res.Warnings, warns...)
	res.Duration = time.Since(start)
	if err != nil {
		res.Text, res.Method = constants.OCRErrorPrefix+err.Error(), MethodFailed
		e.logger.Error("ocr.fallback.failed", "file", fileName, "error", err,
			"elapsed_ms", res.Duration.Milliseconds())
		return res, &ExtractionError{FileName: fileName, Text: res.Text, Err: err}
	}
	if !recognized {
		res.Text, res.Method = constants.UnreadableText, MethodFailed
		e.logger.Warn("ocr.fallback.empty", "file", fileName, "pages", pages)
		return res, &ExtractionError{FileName: fileName, Text: res.Text, Err: ErrUnreadable}
	}

	res.Text, res.Method = ocrText, MethodOCR
	e.logger.Info("ocr.fallback.ok", "file", fileName, "pages", pages,
		"chars", len(ocrText), "elapsed_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) nativeText(data []byte) (string, int, error) {
	pages, err := e.native.PageTexts(data)
	if err != nil {
		return "", 0, err
	}
	var b strings.Builder
	for _, p := range pages {
		if p == "" {
			continue
		}
		b.WriteString(p)
		b.WriteString("\n")
	}
	return b.String(), len(pages), nil
}
