package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-imports a catalog file whenever its content changes.
//
// The parent directory is watched rather than the file itself, so editors
// that save by writing a temp file and renaming it are still seen. Bursts of
// events are collapsed: an import runs once no event has arrived for the
// debounce delay.
type Watcher struct {
	path     string
	debounce time.Duration
	importer *Importer
	logger   *slog.Logger

	lastHash string

	// OnImport, when set, is called after every import attempt.
	OnImport func(report *ImportReport, err error)
}

func NewWatcher(path string, debounce time.Duration, importer *Importer, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		importer: importer,
		logger:   logger,
	}
}

// Run imports the file once, then watches it until ctx is cancelled. It
// returns nil on cancellation. A failing import is logged and reported
// through OnImport; it does not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("Catalog watcher started", "path", w.path, "debounce", w.debounce)
	w.reload(ctx)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Catalog watcher stopped", "path", w.path)
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("Catalog change detected", "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-timer.C:
			w.reload(ctx)
		}
	}
}

// reload imports the file unless its content is unchanged since the last
// successful import.
func (w *Watcher) reload(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// A rename leaves the file briefly missing; the next event retries.
		w.logger.Warn("Failed to read catalog", "path", w.path, "error", err)
		return
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if hash == w.lastHash {
		w.logger.Debug("Catalog unchanged, skipping import", "path", w.path)
		return
	}

	report, err := w.importFile(ctx, data)
	if err != nil {
		w.logger.Error("Catalog import failed", "path", w.path, "error", err)
	} else {
		w.lastHash = hash
	}
	if w.OnImport != nil {
		w.OnImport(report, err)
	}
}

func (w *Watcher) importFile(ctx context.Context, data []byte) (*ImportReport, error) {
	cat, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return w.importer.Import(ctx, cat)
}
