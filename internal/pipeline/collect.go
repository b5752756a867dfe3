package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bartosicilia/TaxlexIA/constants"
)

// CollectFiles walks root and returns the paths of invoice files, sorted.
// Hidden files and directories are skipped when skipHidden is set.
func CollectFiles(root string, skipHidden bool) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !constants.IsAllowedExt(filepath.Ext(path)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadFiles loads paths into batch inputs named by base name, in order.
// A path that cannot be read keeps its slot with Err set.
func ReadFiles(paths []string) []File {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f := File{Name: filepath.Base(p)}
		b, err := os.ReadFile(p)
		if err != nil {
			f.Err = fmt.Errorf("read %s: %w", f.Name, err)
		}
		f.Data = b
		files = append(files, f)
	}
	return files
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
