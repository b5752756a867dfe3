package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ocrPDF rasterizes data and OCRs each page. recognized reports whether any
// page produced non-blank text; the page headers alone do not count.
func (e *Extractor) ocrPDF(ctx context.Context, data []byte, fileName string) (text string, pages int, recognized bool, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp(e.cfg.TempDir, "taxlexia-ocr-*")
	if err != nil {
		return "", 0, false, nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			e.logger.Warn("ocr.tempdir.cleanup_failed", "dir", tmpDir, "error", rmErr)
		}
	}()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return "", 0, false, nil, fmt.Errorf("write temp pdf: %w", err)
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return "", 0, false, []string{string(errb)}, fmt.Errorf("pdftoppm: %w", err)
	}

	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sortPages(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		warnings = append(warnings, fmt.Sprintf("only first %d of %d pages processed", e.cfg.MaxPages, len(matches)))
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, false, warnings, fmt.Errorf("pdftoppm produced no images")
	}

	progress := progressFromCtx(ctx)
	pages = len(matches)
	var b strings.Builder
	for i, img := range matches {
		if err := ctx.Err(); err != nil {
			return "", pages, false, warnings, err
		}
		if progress != nil {
			progress(fileName, i+1, pages)
		}
		if e.cfg.EnhancePages {
			enhanced, err := enhancePage(img)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("page %d enhance: %v", i+1, err))
			} else {
				img = enhanced
			}
		}
		txt, err := e.tesseract(ctx, img)
		if err != nil {
			return "", pages, false, warnings, fmt.Errorf("page %d: %w", i+1, err)
		}
		if strings.TrimSpace(txt) != "" {
			recognized = true
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", i+1, txt)
	}
	return b.String(), pages, recognized, warnings, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return string(out), nil
}

// sortPages orders pdftoppm outputs by page number.
func sortPages(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[i+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}
