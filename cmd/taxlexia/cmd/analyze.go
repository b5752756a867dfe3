package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/bartosicilia/TaxlexIA/constants"
	"github.com/bartosicilia/TaxlexIA/internal/common"
	"github.com/bartosicilia/TaxlexIA/internal/entity"
	"github.com/bartosicilia/TaxlexIA/internal/export"
	"github.com/bartosicilia/TaxlexIA/internal/llm"
	"github.com/bartosicilia/TaxlexIA/internal/llm/openai"
	"github.com/bartosicilia/TaxlexIA/internal/metrics"
	"github.com/bartosicilia/TaxlexIA/internal/ocr"
	"github.com/bartosicilia/TaxlexIA/internal/pipeline"
)

var (
	outFile     string
	historyFile string
	metricsAddr string
	skipHidden  bool
	fileTimeout time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [files or directories...]",
	Short: "Extract and audit a batch of PDF invoices",
	Long: `Runs text extraction and model analysis over every PDF given (directories
are walked), updates the entity's vendor history, and writes the results
workbook. When --history names an existing workbook it is loaded first and
rewritten with the updated history afterwards.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVarP(&outFile, "out", "o", "", "results workbook path (default Tax_Audit_OCR_HHMM.xlsx)")
	addBatchFlags(analyzeCmd)
}

// addBatchFlags registers the flags shared by analyze and watch.
func addBatchFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringVar(&historyFile, "history", "", "vendor history workbook to load and update")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	f.BoolVar(&skipHidden, "skip-hidden", true, "skip hidden files and directories")
	f.DurationVar(&fileTimeout, "file-timeout", 0, "limit for extracting and analyzing a single file (0 = none)")
	f.Int("concurrency", 1, "files processed at once")
	f.String("model", "", "chat model name")
	f.Bool("enhance", false, "enhance page images before OCR")
	f.Int("max-pages", 0, "OCR at most this many pages per file (0 = all)")
}

// batchRunner is the wiring shared by analyze and watch.
type batchRunner struct {
	ent      *entity.Entity
	pipeline *pipeline.Pipeline
	stop     func()
}

func newBatchRunner(ctx context.Context, cmd *cobra.Command) (*batchRunner, context.Context, error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return nil, ctx, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, ctx, err
	}

	ent, err := loadEntity()
	if err != nil {
		return nil, ctx, err
	}
	if err := loadHistory(ent, historyFile); err != nil {
		return nil, ctx, err
	}

	stderr := cmd.ErrOrStderr()
	opts := []pipeline.Option{
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithFileTimeout(fileTimeout),
		pipeline.WithObserver(progressPrinter(stderr)),
	}
	stop := func() {}
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		m, err := metrics.NewPipeline(reg)
		if err != nil {
			return nil, ctx, err
		}
		opts = append(opts, pipeline.WithMetrics(m))
		stop = serveMetrics(ctx, reg, metricsAddr, logger)
	}

	ctx = ocr.WithProgress(ctx, func(name string, page, pages int) {
		fmt.Fprintf(stderr, "  %s: OCR page %d/%d\n", name, page, pages)
	})

	p := pipeline.New(newExtractor(cfg, logger), newAnalyzer(cfg, logger), logger, opts...)
	return &batchRunner{ent: ent, pipeline: p, stop: stop}, ctx, nil
}

// run processes paths as one batch and writes the results to out and, when
// configured, the vendor history workbook.
func (b *batchRunner) run(ctx context.Context, w io.Writer, paths []string, out string) error {
	res, err := b.pipeline.Run(ctx, b.ent, pipeline.ReadFiles(paths))
	if err != nil {
		return err
	}

	data, err := export.ResultsXLSX(res.Table)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if historyFile != "" {
		hb, err := export.VendorHistoryXLSX(b.ent.Vendors.Records())
		if err != nil {
			return err
		}
		if err := os.WriteFile(historyFile, hb, 0o644); err != nil {
			return fmt.Errorf("write vendor history: %w", err)
		}
	}

	printSummary(w, res, out)
	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	br, ctx, err := newBatchRunner(ctx, cmd)
	if err != nil {
		return err
	}
	defer br.stop()

	paths, err := expandInputs(args, skipHidden)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no PDF files found")
	}

	out := outFile
	if out == "" {
		out = export.DefaultFileName(time.Now())
	}
	return br.run(ctx, cmd.OutOrStdout(), paths, out)
}

// modelConfig maps settings onto the OpenAI client. Temperature stays at 0
// so repeated audits of the same invoice agree.
func modelConfig(cfg *common.Config) openai.Config {
	return openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: 0,
		Timeout:     cfg.LLM.Timeout,
	}
}

func newAnalyzer(cfg *common.Config, logger *slog.Logger) *llm.Analyzer {
	client := openai.NewClient(modelConfig(cfg), logger)
	return llm.NewAnalyzer(client, llm.AnalyzerConfig{
		MaxTextChars: cfg.LLM.MaxTextChars,
		Lenient:      cfg.LLM.Lenient,
	}, logger)
}

// expandInputs turns file and directory arguments into PDF paths, keeping
// argument order.
func expandInputs(args []string, skipHidden bool) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := pipeline.CollectFiles(a, skipHidden)
			if err != nil {
				return nil, err
			}
			paths = append(paths, found...)
			continue
		}
		if !constants.IsAllowedExt(filepath.Ext(a)) {
			return nil, fmt.Errorf("%s: only PDF files are supported", a)
		}
		paths = append(paths, a)
	}
	return paths, nil
}

func loadHistory(ent *entity.Entity, path string) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vendor history: %w", err)
	}
	recs, err := export.ReadVendorHistoryXLSX(bytes.NewReader(b))
	if err != nil {
		return err
	}
	for _, r := range recs {
		ent.Vendors.Put(r)
	}
	return nil
}

func progressPrinter(w io.Writer) pipeline.Observer {
	return pipeline.ObserverFunc(func(done, total int, r pipeline.FileResult) {
		fmt.Fprintf(w, "[%d/%d] %s: %s (%s)\n", done, total, r.Name, r.Analysis.Kind, r.Method)
	})
}

func printSummary(w io.Writer, res *pipeline.Result, out string) {
	counts := map[llm.Kind]int{}
	for _, f := range res.Files {
		counts[f.Analysis.Kind]++
	}
	fmt.Fprintf(w, "batch %s: %d files, %d ok, %d file errors, %d model errors\n",
		res.BatchID, len(res.Files), counts[llm.KindOK], counts[llm.KindFileError], counts[llm.KindModelError])
	fmt.Fprintf(w, "results written to %s\n", out)
}

func serveMetrics(ctx context.Context, reg *prometheus.Registry, addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics.server.start", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics.server.failed", "addr", addr, "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
