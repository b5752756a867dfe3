package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartosicilia/TaxlexIA/internal/common"
	"github.com/bartosicilia/TaxlexIA/internal/entity"
	"github.com/bartosicilia/TaxlexIA/internal/ocr"
)

// Version is set by main.
var Version = "dev"

var (
	entityFiles  []string
	activeEntity string
)

var rootCmd = &cobra.Command{
	Use:           "taxlexia",
	Short:         "Use and sales tax auditing for PDF invoices",
	Long:          `TaxlexIA extracts text from PDF invoices, asks a language model for the audit fields of the active entity, and exports the results as a spreadsheet.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringArrayVar(&entityFiles, "entity", nil, "entity definition file (yaml, json or toml); repeatable")
	pf.StringVar(&activeEntity, "active", "", "name of the entity to audit for (default: first --entity)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
}

// setup loads configuration and builds the logger for a command.
func setup(cmd *cobra.Command) (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := common.NewLogger(cfg.Log, cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// loadRegistry reads every --entity file into a registry and applies
// --active. Without entity files the registry holds a single "Default".
func loadRegistry() (*entity.Registry, error) {
	reg := entity.NewRegistry()
	if len(entityFiles) == 0 {
		if _, err := reg.Create("Default"); err != nil {
			return nil, err
		}
	}
	for _, path := range entityFiles {
		ent, err := entity.LoadFile(path)
		if err != nil {
			return nil, err
		}
		if err := reg.Add(ent); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if activeEntity != "" {
		if err := reg.SetActive(activeEntity); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func loadEntity() (*entity.Entity, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return reg.Active(), nil
}

func newExtractor(cfg *common.Config, logger *slog.Logger) *ocr.Extractor {
	return ocr.NewExtractor(ocr.Config{
		Pdftoppm:        cfg.OCR.Pdftoppm,
		Tesseract:       cfg.OCR.Tesseract,
		TesseractLang:   cfg.OCR.Lang,
		DPI:             cfg.OCR.DPI,
		MaxPages:        cfg.OCR.MaxPages,
		TessdataDir:     cfg.OCR.TessdataDir,
		NativeThreshold: cfg.OCR.NativeThreshold,
		EnhancePages:    cfg.OCR.EnhancePages,
	}, logger)
}
