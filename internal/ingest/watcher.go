package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bartosicilia/TaxlexIA/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	SkipHidden  bool          // ignore dot files and dot directories
	InitialScan bool          // emit files already present as the first batch
	Debounce    time.Duration // coalesce bursts of events into one batch
}

// Watch emits batches of new or changed invoice paths under cfg.Roots. Each
// batch is sorted. Both channels are closed when ctx is done.
func Watch(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan []string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	pending := map[string]struct{}{}
	skip := func(path string) bool {
		return cfg.SkipHidden && strings.HasPrefix(filepath.Base(path), ".")
	}
	addTree := func(root string, scan bool) error {
		return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if path != root && skip(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if scan && constants.IsAllowedExt(filepath.Ext(path)) {
				pending[path] = struct{}{}
			}
			return nil
		})
	}
	for _, r := range cfg.Roots {
		if err := addTree(r, cfg.InitialScan); err != nil {
			_ = w.Close()
			return nil, nil, err
		}
	}

	batches := make(chan []string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(batches)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("ingest.watch.close_failed", "error", err)
			}
		}()

		flush := func() {
			if len(pending) == 0 {
				return
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			clear(pending)
			sort.Strings(batch)
			select {
			case batches <- batch:
			case <-ctx.Done():
			}
		}
		flush()

		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if skip(e.Name) {
					continue
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := addTree(e.Name, true); err != nil {
							logger.Warn("ingest.watch.add_dir_failed", "path", e.Name, "error", err)
						}
					}
				}
				if constants.IsAllowedExt(filepath.Ext(e.Name)) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					if _, err := os.Stat(e.Name); err == nil {
						pending[e.Name] = struct{}{}
					}
				}
				if cfg.Debounce <= 0 {
					flush()
					continue
				}
				if len(pending) > 0 {
					if timer == nil {
						timer = time.NewTimer(cfg.Debounce)
					} else {
						timer.Reset(cfg.Debounce)
					}
					timerC = timer.C
				}
			case <-timerC:
				timerC = nil
				flush()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("ingest.watch.error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return batches, errCh, nil
}
