package ocr

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// enhancePage writes a grayscale, contrast-boosted, sharpened copy of a
// rendered page next to the original and returns its path.
func enhancePage(path string) (string, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return "", fmt.Errorf("open page image: %w", err)
	}
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.2)

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".enhanced.png"
	if err := imaging.Save(img, out); err != nil {
		return "", fmt.Errorf("save page image: %w", err)
	}
	return out, nil
}
