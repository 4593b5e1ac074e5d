// Package watch emits PDF files dropped into a directory tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Config controls a Watcher
type Config struct {
	Roots       []string      // Directories to watch recursively
	InitialScan bool          // Emit PDFs already present at start
	Debounce    time.Duration // Quiet period before a changed file is emitted
	Logger      *zap.Logger
}

// Watcher delivers paths of new or rewritten .pdf files
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	logger  *zap.Logger
	events  chan string
	pending map[string]time.Time
}

// New creates a watcher and registers every directory under cfg.Roots
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("no roots provided")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		cfg:     cfg,
		fsw:     fsw,
		logger:  logger,
		events:  make(chan string, 256),
		pending: make(map[string]time.Time),
	}

	for _, root := range cfg.Roots {
		if err := w.addTree(root, cfg.InitialScan); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
	}
	return w, nil
}

// Events returns the channel of settled PDF paths. It closes when Run
// returns.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run processes filesystem events until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer func() { _ = w.fsw.Close() }()

	tick := time.NewTicker(max(w.cfg.Debounce/2, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(e)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case now := <-tick.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handle(e fsnotify.Event) {
	if e.Has(fsnotify.Create) {
		if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
			if err := w.addTree(e.Name, true); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", e.Name), zap.Error(err))
			}
			return
		}
	}
	if !IsPDF(e.Name) {
		return
	}
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename) {
		w.pending[e.Name] = time.Now()
	}
	if e.Has(fsnotify.Remove) {
		delete(w.pending, e.Name)
	}
}

// flush emits files that have been quiet for the debounce period
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		select {
		case w.events <- path:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) addTree(root string, emitExisting bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		if emitExisting && IsPDF(path) {
			w.pending[path] = time.Time{}
		}
		return nil
	})
}

// IsPDF reports whether path has a .pdf extension, case-insensitively
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
