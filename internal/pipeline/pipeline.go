package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bartosicilia/TaxlexIA/constants"
	"github.com/bartosicilia/TaxlexIA/internal/common"
	"github.com/bartosicilia/TaxlexIA/internal/entity"
	"github.com/bartosicilia/TaxlexIA/internal/llm"
	"github.com/bartosicilia/TaxlexIA/internal/metrics"
	"github.com/bartosicilia/TaxlexIA/internal/ocr"
	"github.com/bartosicilia/TaxlexIA/internal/vendors"
)

// TextExtractor is implemented by *ocr.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, fileName string) (ocr.ExtractionResult, error)
}

// InvoiceAnalyzer is implemented by *llm.Analyzer.
type InvoiceAnalyzer interface {
	Analyze(ctx context.Context, req llm.Request) llm.Analysis
}

// File is one uploaded invoice. Err is set when the file could not be
// loaded; the file then yields a FILE_ERROR row without extraction.
type File struct {
	Name string
	Data []byte
	Err  error
}

// FileResult is the per-file outcome of a batch run.
type FileResult struct {
	Index    int
	Name     string
	Method   ocr.Method
	Pages    int
	Analysis llm.Analysis
	Duration time.Duration
	Err      error // extraction error or recovered panic; informational
}

type Result struct {
	BatchID string
	Files   []FileResult
	Table   *Table
}

// Observer is notified after each file finishes. With concurrency above
// one it is called from several goroutines.
type Observer interface {
	FileDone(done, total int, r FileResult)
}

type ObserverFunc func(done, total int, r FileResult)

func (f ObserverFunc) FileDone(done, total int, r FileResult) { f(done, total, r) }

// Pipeline runs extraction and analysis over a batch of invoices for one entity.
type Pipeline struct {
	extractor   TextExtractor
	analyzer    InvoiceAnalyzer
	logger      *slog.Logger
	concurrency int
	fileTimeout time.Duration
	observer    Observer
	metrics     *metrics.Pipeline
}

type Option func(*Pipeline)

// WithConcurrency processes up to n files at once. Vendor history and rows
// are still applied in input order.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithFileTimeout bounds extraction plus analysis of a single file.
func WithFileTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.fileTimeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(extractor TextExtractor, analyzer InvoiceAnalyzer, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		extractor:   extractor,
		analyzer:    analyzer,
		logger:      logger,
		concurrency: 1,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes files in order and returns one table row per file. The
// entity's vendor history is updated for every successful analysis; its
// export schema is read once at the start of the run.
func (p *Pipeline) Run(ctx context.Context, ent *entity.Entity, files []File) (*Result, error) {
	if ent == nil {
		return nil, common.NewAppError("INVALID_ENTITY", "entity is required", common.ErrInvalidInput)
	}
	if ent.Vendors == nil {
		ent.Vendors = vendors.NewStore()
	}

	batchID := uuid.New().String()
	ctx = common.WithBatchID(ctx, batchID)
	logger := p.logger.With("batch_id", batchID, "entity", ent.Name)
	start := time.Now()

	schema := ent.Schema.Clone()
	contract, err := llm.CompileOutputContract(schema.Headers())
	if err != nil {
		return nil, fmt.Errorf("output contract: %w", err)
	}
	base := llm.Request{
		BuyerLocation: ent.BuyerLocation(),
		BusinessType:  ent.BusinessTypeOrDefault(),
		Schema:        schema,
		Contract:      contract,
	}
	logger.Info("pipeline.batch.start",
		"files", len(files),
		"concurrency", p.concurrency,
		"columns", len(schema),
	)

	results := make([]FileResult, len(files))
	records := make([]*llm.Fields, len(files))
	apply := func(i int) {
		records[i] = p.finishFile(logger, ent.Vendors, results[i])
	}

	if p.concurrency <= 1 || len(files) <= 1 {
		for i, f := range files {
			results[i] = p.processFile(ctx, logger, i, f, base)
			apply(i)
			p.notify(i+1, len(files), results[i])
		}
	} else {
		var done atomic.Int64
		var g errgroup.Group
		g.SetLimit(p.concurrency)
		for i, f := range files {
			i, f := i, f
			g.Go(func() error {
				results[i] = p.processFile(ctx, logger, i, f, base)
				p.notify(int(done.Add(1)), len(files), results[i])
				return nil
			})
		}
		_ = g.Wait()
		for i := range files {
			apply(i)
		}
	}

	table := Materialize(records, schema.Headers())
	logger.Info("pipeline.batch.done",
		"files", len(files),
		"columns", len(table.Columns),
		"vendors", ent.Vendors.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Result{BatchID: batchID, Files: results, Table: table}, nil
}

func (p *Pipeline) processFile(ctx context.Context, logger *slog.Logger, idx int, f File, base llm.Request) (fr FileResult) {
	start := time.Now()
	fr = FileResult{Index: idx, Name: f.Name}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%s%v", constants.OCRErrorPrefix, r)
			fr.Method = ocr.MethodFailed
			fr.Analysis = llm.Analysis{Kind: llm.KindFileError, Message: msg}
			fr.Err = fmt.Errorf("process %s: panic: %v", f.Name, r)
			logger.Error("pipeline.file.panic", "file", f.Name, "panic", r)
		}
		fr.Duration = time.Since(start)
		p.metrics.ObserveFile(string(fr.Method), string(fr.Analysis.Kind), fr.Duration)
	}()

	if p.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.fileTimeout)
		defer cancel()
	}

	var text string
	if f.Err != nil {
		fr.Err, fr.Method = f.Err, ocr.MethodFailed
		text = constants.OCRErrorPrefix + f.Err.Error()
		logger.Warn("pipeline.file.read_failed", "file", f.Name, "error", f.Err)
	} else {
		text = p.extract(ctx, logger, f, &fr)
	}

	req := base
	req.FileName = f.Name
	req.Text = text
	fr.Analysis = p.analyzer.Analyze(ctx, req)
	return fr
}

func (p *Pipeline) extract(ctx context.Context, logger *slog.Logger, f File, fr *FileResult) string {
	ex, err := p.extractor.Extract(ctx, f.Data, f.Name)
	fr.Method, fr.Pages = ex.Method, ex.Pages
	text := ex.Text
	if err != nil {
		fr.Err = err
		logger.Warn("pipeline.file.extract_failed", "file", f.Name, "error", err)
		if text == "" {
			text = constants.OCRErrorPrefix + err.Error()
			fr.Method = ocr.MethodFailed
		}
	}
	return text
}

// finishFile builds the row for a processed file and records the vendor
// when the analysis succeeded.
func (p *Pipeline) finishFile(logger *slog.Logger, store *vendors.Store, fr FileResult) *llm.Fields {
	rec := fr.Analysis.Record()
	rec.Set(constants.FieldFileName, fr.Name)

	if fr.Analysis.Kind == llm.KindOK {
		tax, ok := rec.Get(constants.FieldTaxApplied)
		if !ok {
			tax = 0
		}
		vr := store.Upsert(
			fieldText(rec, constants.FieldVendor),
			fieldText(rec, constants.FieldShipFrom),
			fieldText(rec, constants.FieldWhatSold),
			tax,
		)
		p.metrics.VendorUpserted()
		logger.Debug("pipeline.vendor.upsert", "vendor", vr.Vendor, "location", vr.Location, "charged_tax", vr.HasChargedTaxBefore)
	}

	logger.Info("pipeline.file.done",
		"file", fr.Name,
		"method", fr.Method,
		"outcome", fr.Analysis.Kind,
		"elapsed_ms", fr.Duration.Milliseconds(),
	)
	return rec
}

func (p *Pipeline) notify(done, total int, fr FileResult) {
	if p.observer != nil {
		p.observer.FileDone(done, total, fr)
	}
}

func fieldText(rec *llm.Fields, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return constants.UnknownValue
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
