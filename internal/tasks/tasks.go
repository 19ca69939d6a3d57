package tasks

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
)

// Uploader sends one file to the backend. [services.StudioService] implements it.
type Uploader interface {
	Upload(ctx context.Context, endpoint string, file services.LocalFile, fields map[string]string, progress services.ProgressFunc) (*services.UploadReceipt, error)
}

// Destination is where a batch goes: an upload endpoint plus the extra form
// fields sent with every file.
type Destination struct {
	Kind     models.UploadKind
	Endpoint string
	Fields   map[string]string
}

// SessionDestination uploads into a client session.
func SessionDestination(sessionID, customerName string) Destination {
	return Destination{
		Kind:     models.UploadToSession,
		Endpoint: services.SessionUploadPath,
		Fields:   map[string]string{"sessionId": sessionID, "customerName": customerName},
	}
}

// PortfolioDestination uploads portfolio items into category.
func PortfolioDestination(category string) Destination {
	return Destination{
		Kind:     models.UploadToPortfolio,
		Endpoint: services.PortfolioUploadPath,
		Fields:   map[string]string{"category": category},
	}
}

// Target names the destination: the session ID or the portfolio category.
func (d Destination) Target() string {
	if d.Kind == models.UploadToPortfolio {
		return d.Fields["category"]
	}
	return d.Fields["sessionId"]
}

// LockKey identifies the destination for cross-process batch locking.
func (d Destination) LockKey() string { return string(d.Kind) + "-" + d.Target() }

// Progress is one observation of a running batch.
type Progress struct {
	Percent float64 // 100 * Loaded / Total, or 100 for an empty batch
	Loaded  int64
	Total   int64
	Settled int // tasks finished, successfully or not
	Tasks   int
}

// ProgressSink receives aggregate progress. Calls never overlap.
type ProgressSink func(Progress)

// EngineOpts tunes an [UploadEngine]. Zero values mean no limit.
type EngineOpts struct {
	MaxConcurrent int           // in-flight uploads; 0 starts every file at once
	RateLimit     float64       // upload starts per second
	TaskTimeout   time.Duration // deadline for each file
	Logger        *log.Logger
}

// UploadEngine runs batches of concurrent uploads against one [Uploader].
//
// An engine holds no per-batch state and may run several batches at once.
type UploadEngine struct {
	uploader Uploader
	opts     EngineOpts
	logger   *log.Logger
}

// NewUploadEngine creates an engine. A nil logger discards output.
func NewUploadEngine(uploader Uploader, opts EngineOpts) *UploadEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	if opts.MaxConcurrent < 0 {
		opts.MaxConcurrent = 0
	}
	if opts.RateLimit < 0 {
		opts.RateLimit = 0
	}
	return &UploadEngine{uploader: uploader, opts: opts, logger: logger}
}

// Opts returns the engine's settings.
func (e *UploadEngine) Opts() EngineOpts { return e.opts }

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
