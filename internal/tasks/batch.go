package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"golang.org/x/time/rate"
)

// tracker holds the per-task loaded bytes of one batch.
type tracker struct {
	mu      sync.Mutex
	sizes   []int64
	loaded  []int64
	total   int64
	sum     int64
	settled int
	sink    ProgressSink
}

func newTracker(files []services.LocalFile, sink ProgressSink) *tracker {
	t := &tracker{
		sizes:  make([]int64, len(files)),
		loaded: make([]int64, len(files)),
		sink:   sink,
	}
	for i, f := range files {
		size := max(f.Size, 0)
		t.sizes[i] = size
		t.total += size
	}
	return t
}

// update records the absolute bytes sent for task i. Values are clamped to the
// file size and never move backwards.
func (t *tracker) update(i int, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n = min(n, t.sizes[i])
	if n <= t.loaded[i] {
		return
	}
	t.sum += n - t.loaded[i]
	t.loaded[i] = n
	t.emit()
}

// settle marks task i finished. A successful task counts as fully sent.
func (t *tracker) settle(i int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok && t.loaded[i] < t.sizes[i] {
		t.sum += t.sizes[i] - t.loaded[i]
		t.loaded[i] = t.sizes[i]
	}
	t.settled++
	t.emit()
}

func (t *tracker) report() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit()
}

// emit must be called with mu held.
func (t *tracker) emit() {
	if t.sink == nil {
		return
	}
	t.sink(t.snapshot())
}

func (t *tracker) snapshot() Progress {
	p := Progress{Loaded: t.sum, Total: t.total, Settled: t.settled, Tasks: len(t.sizes), Percent: 100}
	if t.total > 0 {
		p.Percent = min(100*float64(t.sum)/float64(t.total), 100)
	}
	return p
}

// Run uploads every file to dest concurrently and waits for all of them.
//
// The sink sees the aggregate percentage after every progress event and every
// settlement; an empty batch reports 100 immediately. A failed file never stops
// the others, and the batch is PartiallyFailed when any file failed. Cancelling
// ctx aborts in-flight uploads, which then settle with [CancelledError].
//
// The returned error is only for batches that cannot start.
func (e *UploadEngine) Run(ctx context.Context, files []services.LocalFile, dest Destination, sink ProgressSink) (*BatchOutcome, error) {
	if len(files) == 0 {
		return nil, shared.ErrNoFiles
	}
	if e.uploader == nil {
		return nil, fmt.Errorf("%w: uploader not initialized", shared.ErrServiceUnavailable)
	}

	start := time.Now()
	tr := newTracker(files, sink)
	logger := shared.WithLogger(e.logger, "endpoint", dest.Endpoint, "target", dest.Target())
	logger.Info("upload batch started", "files", len(files), "bytes", tr.total)
	tr.report()

	workers := e.opts.MaxConcurrent
	if workers <= 0 || workers > len(files) {
		workers = len(files)
	}

	var limiter *rate.Limiter
	if e.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.opts.RateLimit), 1)
	}

	jobs := make(chan int, len(files))
	results := make(chan TaskResult, len(files))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go e.uploadWorker(ctx, &wg, jobs, results, files, dest, limiter, tr)
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := &BatchOutcome{Tasks: make([]TaskResult, len(files)), TotalBytes: tr.total}
	for res := range results {
		out.Tasks[res.Index] = res
		tr.settle(res.Index, res.Err == nil)

		if res.Err != nil {
			if out.FirstError == nil {
				out.FirstError = res.Err
			}
			logger.Warn("upload failed", "file", res.File.Name, "kind", Classify(res.Err), "error", res.Err)
			continue
		}
		logger.Debug("upload finished", "file", res.File.Name, "id", res.Receipt.ID)
	}

	if out.FirstError != nil {
		out.Status = PartiallyFailed
	}
	out.Elapsed = time.Since(start)
	logger.Info("upload batch finished", "status", out.Status, "succeeded", out.SucceededCount(), "files", len(files), "elapsed", out.Elapsed)
	return out, nil
}

// uploadWorker uploads the files whose indices arrive on jobs.
func (e *UploadEngine) uploadWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan int,
	results chan<- TaskResult,
	files []services.LocalFile,
	dest Destination,
	limiter *rate.Limiter,
	tr *tracker,
) {
	defer wg.Done()

	for i := range jobs {
		res := TaskResult{Index: i, File: files[i]}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					res.Err = &CancelledError{Err: ctx.Err()}
				} else {
					res.Err = &services.TransportError{Op: "wait", URL: dest.Endpoint, Err: err}
				}
				results <- res
				continue
			}
		}
		res.Receipt, res.Err = e.uploadOne(ctx, i, files[i], dest, tr)
		results <- res
	}
}

// uploadOne runs a single upload under the per-task deadline and maps context
// failures onto the batch error kinds.
func (e *UploadEngine) uploadOne(ctx context.Context, i int, file services.LocalFile, dest Destination, tr *tracker) (*services.UploadReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &CancelledError{Err: err}
	}

	taskCtx := ctx
	if e.opts.TaskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, e.opts.TaskTimeout)
		defer cancel()
	}

	receipt, err := e.uploader.Upload(taskCtx, dest.Endpoint, file, dest.Fields, func(n int64) {
		tr.update(i, n)
	})
	if err == nil {
		if receipt == nil {
			receipt = &services.UploadReceipt{}
		}
		return receipt, nil
	}

	switch {
	case ctx.Err() != nil:
		return nil, &CancelledError{Err: ctx.Err()}
	case taskCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded):
		var transport *services.TransportError
		if errors.As(err, &transport) {
			return nil, err
		}
		return nil, &services.TransportError{
			Op:  "upload",
			URL: dest.Endpoint,
			Err: fmt.Errorf("%s timed out after %s: %w", file.Name, e.opts.TaskTimeout, err),
		}
	}
	return nil, err
}
