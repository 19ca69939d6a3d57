// Package watch uploads photos as they land in a folder, for tethered shooting.
//
// A [Watcher] collects newly created or rewritten image files and, once the folder
// has been quiet for the debounce window, hands the group to a [BatchFunc] as one batch.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Opts.Debounce is zero.
const DefaultDebounce = 2 * time.Second

// BatchFunc uploads one debounced group of files.
type BatchFunc func(ctx context.Context, files []services.LocalFile) error

// Opts configures a [Watcher].
type Opts struct {
	Dir        string
	Extensions []string // empty accepts any extension
	Debounce   time.Duration
	Logger     *log.Logger
}

// Watcher turns folder events into upload batches. Batches run one at a time,
// in the order they were debounced.
type Watcher struct {
	opts    Opts
	handle  BatchFunc
	logger  *log.Logger
	pending map[string]struct{}
	seen    map[string]struct{}
}

// New creates a watcher for opts.Dir.
func New(opts Opts, handle BatchFunc) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("%w: watch directory", shared.ErrMissingArgument)
	}
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", shared.ErrInvalidArgument, opts.Dir)
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: no batch handler", shared.ErrInvalidInput)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Watcher{
		opts:    opts,
		handle:  handle,
		logger:  shared.WithLogger(logger, "dir", opts.Dir),
		pending: map[string]struct{}{},
		seen:    map[string]struct{}{},
	}, nil
}

// Run watches until ctx is done. Files still pending at shutdown are dropped,
// queued batches are skipped, and a batch already running is cancelled through
// ctx and awaited.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Dir, err)
	}
	w.logger.Info("Watching for new photos", "debounce", w.opts.Debounce)

	batches := make(chan []services.LocalFile, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for files := range batches {
			if ctx.Err() != nil {
				w.logger.Warn("Dropping queued batch", "files", len(files))
				continue
			}
			if err := w.handle(ctx, files); err != nil {
				w.logger.Error("batch upload failed", "files", len(files), "error", err)
			}
		}
	}()
	defer func() {
		close(batches)
		<-done
	}()

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := len(w.pending); n > 0 {
				w.logger.Warn("Dropping pending files", "count", n)
			}
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.accept(event) {
				w.pending[event.Name] = struct{}{}
				timer.Reset(w.opts.Debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			if files := w.flush(); len(files) > 0 {
				w.logger.Info("Queueing batch", "files", len(files))
				select {
				case batches <- files:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// accept filters events down to new or rewritten photos not uploaded yet.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !services.HasExtension(name, w.opts.Extensions) {
		return false
	}
	_, done := w.seen[event.Name]
	return !done
}

// flush turns pending paths into files in name order. Vanished, empty and
// directory entries are skipped.
func (w *Watcher) flush() []services.LocalFile {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	clear(w.pending)

	files := make([]services.LocalFile, 0, len(paths))
	for _, p := range paths {
		f, err := services.NewLocalFile(p)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				w.logger.Debug("skipping", "path", p, "error", err)
			}
			continue
		}
		if f.Size == 0 {
			w.logger.Debug("skipping empty file", "path", p)
			continue
		}
		w.seen[p] = struct{}{}
		files = append(files, f)
	}
	return files
}
