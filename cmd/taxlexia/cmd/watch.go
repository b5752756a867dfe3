package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bartosicilia/TaxlexIA/internal/export"
	"github.com/bartosicilia/TaxlexIA/internal/ingest"
)

var (
	outDir   string
	debounce time.Duration
	scanNow  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <directories...>",
	Short: "Audit PDF invoices as they appear in directories",
	Long: `Watches directories recursively. Every burst of new or changed PDFs is
processed as one batch and written to its own results workbook in --out-dir.
Vendor history carries over between batches.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		br, ctx, err := newBatchRunner(ctx, cmd)
		if err != nil {
			return err
		}
		defer br.stop()

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
		batches, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
			Roots:       args,
			SkipHidden:  skipHidden,
			InitialScan: scanNow,
			Debounce:    debounce,
		}, nil)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "watching %s\n", strings.Join(args, ", "))
		for {
			select {
			case <-ctx.Done():
				return nil
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "watch error:", err)
			case paths, ok := <-batches:
				if !ok {
					return nil
				}
				dest := uniquePath(filepath.Join(outDir, export.DefaultFileName(time.Now())))
				if err := br.run(ctx, out, paths, dest); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "batch failed:", err)
				}
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	f := watchCmd.Flags()
	f.StringVar(&outDir, "out-dir", ".", "directory for results workbooks")
	f.DurationVar(&debounce, "debounce", 2*time.Second, "wait this long after the last change before starting a batch")
	f.BoolVar(&scanNow, "initial-scan", false, "process PDFs already present at startup")
	addBatchFlags(watchCmd)
}

// uniquePath appends -2, -3, ... before the extension until path is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		p := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
	}
}
