package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/bartosicilia/TaxlexIA/constants"
)

// Kind classifies the outcome of analyzing one invoice.
type Kind string

const (
	KindOK         Kind = "ok"
	KindFileError  Kind = "file_error"
	KindModelError Kind = "model_error"
)

// Analysis is the outcome of analyzing one invoice. Fields is set only for
// KindOK; Message carries the error text otherwise.
type Analysis struct {
	Kind    Kind
	Fields  *Fields
	Message string
}

// Record converts the analysis into the field map written as a table row.
func (a Analysis) Record() *Fields {
	switch a.Kind {
	case KindOK:
		return a.Fields.Clone()
	case KindFileError:
		return sentinelRecord(a.Message, constants.VendorFileError)
	default:
		return sentinelRecord(a.Message, constants.VendorAIError)
	}
}

func sentinelRecord(msg, vendor string) *Fields {
	f := NewFields()
	f.Set(constants.FieldError, msg)
	f.Set(constants.FieldVendor, vendor)
	f.Set(constants.FieldTotalAmount, 0)
	return f
}

type AnalyzerConfig struct {
	MaxTextChars int  // default DefaultMaxTextChars
	Lenient      bool // flatten nested values instead of failing validation
}

// Analyzer turns extraction text into an invoice field map using a chat model.
type Analyzer struct {
	completer Completer
	cfg       AnalyzerConfig
	logger    *slog.Logger
}

func NewAnalyzer(c Completer, cfg AnalyzerConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = DefaultMaxTextChars
	}
	return &Analyzer{completer: c, cfg: cfg, logger: logger}
}

// IsErrorText reports whether extraction text is a failure sentinel rather
// than invoice content.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, constants.ErrorTextPrefix) || text == constants.UnreadableText
}

// Analyze never returns an error: failures are reported through Kind.
func (a *Analyzer) Analyze(ctx context.Context, req Request) Analysis {
	start := time.Now()
	if IsErrorText(req.Text) {
		a.logger.Warn("llm.analyze.file_error", "file", req.FileName, "text", req.Text)
		return Analysis{Kind: KindFileError, Message: req.Text}
	}
	if a.completer == nil {
		return a.modelError(req, errors.New("no model client configured"), start)
	}

	a.logger.Info("llm.analyze.start",
		"file", req.FileName,
		"text_chars", len(req.Text),
		"fields", len(req.Schema),
		"buyer_location", req.BuyerLocation,
		"business_type", req.BusinessType,
	)

	content, err := a.completer.Complete(ctx, BuildPrompt(req, a.cfg.MaxTextChars))
	if err != nil {
		return a.modelError(req, err, start)
	}
	content = strings.TrimSpace(content)

	fields, err := ParseFields([]byte(content))
	if err != nil {
		return a.modelError(req, err, start)
	}

	contract := req.Contract
	if contract == nil {
		if contract, err = CompileOutputContract(req.Schema.Headers()); err != nil {
			return a.modelError(req, err, start)
		}
	}
	if err := contract.Validate([]byte(content)); err != nil {
		if !a.cfg.Lenient {
			return a.modelError(req, err, start)
		}
		flat, changed, fErr := FlattenNonScalars(fields, contract.Headers())
		if fErr != nil {
			return a.modelError(req, fErr, start)
		}
		raw, mErr := json.Marshal(flat)
		if mErr != nil {
			return a.modelError(req, mErr, start)
		}
		if vErr := contract.Validate(raw); vErr != nil {
			return a.modelError(req, vErr, start)
		}
		a.logger.Warn("llm.analyze.lenient_flatten_applied", "file", req.FileName, "fields", changed)
		fields = flat
	}

	a.logger.Info("llm.analyze.ok",
		"file", req.FileName,
		"keys", fields.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Analysis{Kind: KindOK, Fields: fields}
}

func (a *Analyzer) modelError(req Request, err error, start time.Time) Analysis {
	a.logger.Error("llm.analyze.model_error",
		"file", req.FileName,
		"error", err,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Analysis{Kind: KindModelError, Message: err.Error()}
}
