package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/desertthunder/proofs/internal/formatter"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/desertthunder/proofs/internal/tasks"
	"github.com/desertthunder/proofs/internal/watch"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

const progressBarWidth = 30

// progressPrinter draws a one-line text progress bar. The engine serializes
// sink calls, so no locking is needed.
type progressPrinter struct {
	w       io.Writer
	width   int
	tenths  int
	settled int
	drawn   bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, width: progressBarWidth, tenths: -1}
}

func (p *progressPrinter) sink(pr tasks.Progress) {
	tenths := int(pr.Percent * 10)
	if tenths == p.tenths && pr.Settled == p.settled {
		return
	}
	p.tenths, p.settled, p.drawn = tenths, pr.Settled, true
	fmt.Fprintf(p.w, "\r%s %5.1f%%  %s / %s  %d/%d files",
		renderBar(pr.Percent, p.width), pr.Percent,
		humanize.Bytes(uint64(pr.Loaded)), humanize.Bytes(uint64(pr.Total)),
		pr.Settled, pr.Tasks)
}

// finish ends the bar line and resets the printer for the next batch.
func (p *progressPrinter) finish() {
	if p.drawn {
		fmt.Fprintln(p.w)
	}
	p.tenths, p.settled, p.drawn = -1, 0, false
}

func renderBar(percent float64, width int) string {
	filled := int(math.Round(percent / 100 * float64(width)))
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + "]"
}

// batchFlags are shared by every command that uploads files.
func batchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "concurrency", Usage: "Maximum uploads in flight (0 = all at once)"},
		&cli.FloatFlag{Name: "rate", Usage: "Upload starts per second (0 = unpaced)"},
		&cli.DurationFlag{Name: "timeout", Usage: "Per-file deadline, e.g. 2m (0 = none)", Validator: nonNegative("timeout")},
		&cli.StringFlag{Name: "manifest", Usage: "Write a JSON manifest of the batch to this path"},
		&cli.BoolFlag{Name: "no-lock", Usage: "Allow concurrent batches into the same destination"},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Hide the progress bar"},
		&cli.BoolFlag{Name: "json", Usage: "Print the outcome as JSON"},
	}
}

func nonNegative(name string) func(time.Duration) error {
	return func(d time.Duration) error {
		if d < 0 {
			return fmt.Errorf("%w: --%s must not be negative", shared.ErrInvalidFlag, name)
		}
		return nil
	}
}

// engineFor applies per-command overrides to the configured engine.
func (r *Runner) engineFor(cmd *cli.Command) *tasks.UploadEngine {
	opts := r.engine.Opts()
	if cmd.IsSet("concurrency") {
		opts.MaxConcurrent = int(cmd.Int("concurrency"))
	}
	if cmd.IsSet("rate") {
		opts.RateLimit = cmd.Float("rate")
	}
	if cmd.IsSet("timeout") {
		opts.TaskTimeout = cmd.Duration("timeout")
	}
	opts.Logger = r.logger
	return tasks.NewUploadEngine(r.studio, opts)
}

// runBatch is the single upload path used by every command: it locks the
// destination, runs the engine with history recording, and reports the outcome.
func (r *Runner) runBatch(ctx context.Context, cmd *cli.Command, files []services.LocalFile, dest tasks.Destination) (*tasks.BatchOutcome, error) {
	if err := r.requireStudio(); err != nil {
		return nil, err
	}

	if !cmd.Bool("no-lock") {
		lock, err := shared.AcquireDestinationLock(r.lockDir, dest.LockKey())
		if err != nil {
			return nil, err
		}
		defer lock.Release()
	}

	var sink tasks.ProgressSink
	printer := newProgressPrinter(r.progress)
	if !cmd.Bool("quiet") && !cmd.Bool("json") {
		sink = printer.sink
	}

	r.logger.Debug("starting batch", "kind", dest.Kind, "destination", dest.Target(), "files", len(files))
	out, batchID, err := r.engineFor(cmd).RunRecorded(ctx, r.recorder(), files, dest, sink)
	printer.finish()
	if err != nil {
		return nil, err
	}

	manifest := formatter.NewUploadManifest(batchID, dest, out)
	if path := cmd.String("manifest"); path != "" {
		if err := formatter.WriteUploadManifest(manifest, path); err != nil {
			r.logger.Warn("failed to write manifest", "path", path, "error", err)
		} else {
			r.logger.Info("manifest written", "path", path)
		}
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(manifest, true); err != nil {
			return out, err
		}
	} else {
		r.writeOutcome(out, batchID)
	}
	return out, out.Err()
}

func (r *Runner) writeOutcome(out *tasks.BatchOutcome, batchID string) {
	rows := make([][]string, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		status, detail := "✓", ""
		if t.Err != nil {
			status, detail = "✗", fmt.Sprintf("[%s] %v", tasks.Classify(t.Err), t.Err)
		} else if t.Receipt != nil {
			detail = t.Receipt.ID
			if t.Receipt.URL != "" {
				detail += " " + t.Receipt.URL
			}
		}
		rows = append(rows, []string{fmt.Sprint(t.Index + 1), t.File.Name, humanize.Bytes(uint64(t.File.Size)), status, detail})
	}
	r.writeTable([]string{"#", "File", "Size", "", "Result"}, rows, alignRight, alignLeft, alignRight)

	r.writePlain("%s\n", tasks.CompleteUpdate(out).Message)
	if batchID != "" {
		r.writePlain("History: %s\n", batchID)
	}
}

// UploadWatch uploads photos from a folder in debounced batches until interrupted.
func (r *Runner) UploadWatch(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("%w: directory to watch", shared.ErrMissingArgument)
	}
	if err := r.requireStudio(); err != nil {
		return err
	}

	dest := r.sessionDestination(cmd)
	if category := cmd.String("category"); category != "" {
		dest = tasks.PortfolioDestination(category)
	}

	debounce := r.config.Watch.DebounceInterval()
	if cmd.IsSet("debounce") {
		debounce = cmd.Duration("debounce")
	}

	handle := func(ctx context.Context, files []services.LocalFile) error {
		r.writePlain("%s: uploading %d new files\n", time.Now().Format("15:04:05"), len(files))
		_, err := r.runBatch(ctx, cmd, files, dest)
		return err
	}

	w, err := watch.New(watch.Opts{
		Dir:        dir,
		Extensions: r.config.Watch.Extensions,
		Debounce:   debounce,
		Logger:     r.logger,
	}, handle)
	if err != nil {
		return err
	}

	r.writePlain("Watching %s → %s %s (Ctrl+C to stop)\n", dir, dest.Kind, dest.Target())
	return w.Run(ctx)
}
