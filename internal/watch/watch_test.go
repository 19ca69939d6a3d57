package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	tu "github.com/desertthunder/proofs/internal/testing"
	"github.com/fsnotify/fsnotify"
)

// collector records every batch handed to it.
type collector struct {
	mu      sync.Mutex
	batches [][]string
	got     chan struct{}
}

func newCollector() *collector { return &collector{got: make(chan struct{}, 16)} }

func (c *collector) handle(ctx context.Context, files []services.LocalFile) error {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	c.mu.Lock()
	c.batches = append(c.batches, names)
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func (c *collector) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a batch")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[len(c.batches)-1]
}

func startWatcher(t *testing.T, opts Opts, handle BatchFunc) (cancel func()) {
	t.Helper()
	w, err := New(opts, handle)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)

	return func() {
		stop()
		select {
		case err := <-errc:
			if err != nil {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not stop")
		}
	}
}

func TestNew(t *testing.T) {
	noop := func(context.Context, []services.LocalFile) error { return nil }

	t.Run("missing directory", func(t *testing.T) {
		if _, err := New(Opts{}, noop); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("not a directory", func(t *testing.T) {
		file := tu.MustWriteFile(t, t.TempDir(), "a.jpg", 10)
		if _, err := New(Opts{Dir: file}, noop); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("nonexistent directory", func(t *testing.T) {
		if _, err := New(Opts{Dir: filepath.Join(t.TempDir(), "nope")}, noop); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("nil handler", func(t *testing.T) {
		if _, err := New(Opts{Dir: t.TempDir()}, nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("default debounce", func(t *testing.T) {
		w, err := New(Opts{Dir: t.TempDir()}, noop)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if w.opts.Debounce != DefaultDebounce {
			t.Errorf("expected %v, got %v", DefaultDebounce, w.opts.Debounce)
		}
	})
}

func TestWatcher(t *testing.T) {
	t.Run("debounced files arrive as one batch", func(t *testing.T) {
		dir := t.TempDir()
		c := newCollector()
		stop := startWatcher(t, Opts{Dir: dir, Extensions: []string{".jpg"}, Debounce: 300 * time.Millisecond}, c.handle)
		defer stop()

		tu.MustWriteImage(t, dir, "b.jpg", 64)
		tu.MustWriteImage(t, dir, "a.jpg", 64)
		tu.MustWriteFile(t, dir, "notes.txt", 10)
		tu.MustWriteFile(t, dir, ".hidden.jpg", 10)

		got := c.wait(t)
		if len(got) != 2 || got[0] != "a.jpg" || got[1] != "b.jpg" {
			t.Errorf("expected [a.jpg b.jpg], got %v", got)
		}
	})

	t.Run("later files form a new batch", func(t *testing.T) {
		dir := t.TempDir()
		c := newCollector()
		stop := startWatcher(t, Opts{Dir: dir, Debounce: 150 * time.Millisecond}, c.handle)
		defer stop()

		tu.MustWriteImage(t, dir, "one.jpg", 32)
		if got := c.wait(t); len(got) != 1 || got[0] != "one.jpg" {
			t.Fatalf("unexpected first batch %v", got)
		}

		tu.MustWriteImage(t, dir, "two.jpg", 32)
		if got := c.wait(t); len(got) != 1 || got[0] != "two.jpg" {
			t.Errorf("unexpected second batch %v", got)
		}
	})

	t.Run("queued batches are skipped after cancel", func(t *testing.T) {
		dir := t.TempDir()
		started := make(chan struct{}, 1)
		release := make(chan struct{})
		var mu sync.Mutex
		calls := 0
		handle := func(ctx context.Context, files []services.LocalFile) error {
			mu.Lock()
			calls++
			first := calls == 1
			mu.Unlock()
			if first {
				started <- struct{}{}
				<-release
			}
			return nil
		}
		stop := startWatcher(t, Opts{Dir: dir, Debounce: 100 * time.Millisecond}, handle)

		tu.MustWriteImage(t, dir, "first.jpg", 32)
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for the first batch")
		}

		tu.MustWriteImage(t, dir, "second.jpg", 32)
		time.Sleep(400 * time.Millisecond)
		tu.MustWriteImage(t, dir, "third.jpg", 32)
		time.Sleep(400 * time.Millisecond)

		go func() {
			time.Sleep(100 * time.Millisecond)
			close(release)
		}()
		stop()

		mu.Lock()
		defer mu.Unlock()
		if calls != 1 {
			t.Errorf("expected only the running batch to be handled, got %d calls", calls)
		}
	})

	t.Run("stops on cancel", func(t *testing.T) {
		stop := startWatcher(t, Opts{Dir: t.TempDir(), Debounce: time.Hour}, newCollector().handle)
		stop()
	})
}

func TestAccept(t *testing.T) {
	w, err := New(Opts{Dir: t.TempDir(), Extensions: []string{".jpg", ".png"}}, func(context.Context, []services.LocalFile) error { return nil })
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w.seen["/x/done.jpg"] = struct{}{}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"create image", fsnotify.Event{Name: "/x/a.jpg", Op: fsnotify.Create}, true},
		{"write image", fsnotify.Event{Name: "/x/a.PNG", Op: fsnotify.Write}, true},
		{"remove", fsnotify.Event{Name: "/x/a.jpg", Op: fsnotify.Remove}, false},
		{"chmod", fsnotify.Event{Name: "/x/a.jpg", Op: fsnotify.Chmod}, false},
		{"wrong extension", fsnotify.Event{Name: "/x/a.txt", Op: fsnotify.Create}, false},
		{"hidden", fsnotify.Event{Name: "/x/.a.jpg", Op: fsnotify.Create}, false},
		{"already uploaded", fsnotify.Event{Name: "/x/done.jpg", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.accept(tt.event); got != tt.want {
				t.Errorf("accept(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestFlush(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Opts{Dir: dir}, func(context.Context, []services.LocalFile) error { return nil })
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	full := tu.MustWriteImage(t, dir, "z.jpg", 40)
	empty := filepath.Join(dir, "empty.jpg")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "sub.jpg")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{full, empty, sub, filepath.Join(dir, "gone.jpg")} {
		w.pending[p] = struct{}{}
	}

	files := w.flush()
	if len(files) != 1 || files[0].Name != "z.jpg" || files[0].Size != 40 {
		t.Errorf("unexpected flush result %+v", files)
	}
	if len(w.pending) != 0 {
		t.Errorf("pending should be cleared, got %d", len(w.pending))
	}
	if _, ok := w.seen[full]; !ok {
		t.Error("flushed file should be marked seen")
	}
	if _, ok := w.seen[empty]; ok {
		t.Error("empty file should stay eligible")
	}
}
