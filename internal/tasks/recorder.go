package tasks

import (
	"context"

	"github.com/desertthunder/proofs/internal/services"
)

// Recorder persists upload batches.
type Recorder interface {
	// Begin stores a running batch and returns its ID.
	Begin(dest Destination, files []services.LocalFile) (string, error)
	// Finish stores the outcome of the batch started by Begin.
	Finish(batchID string, outcome *BatchOutcome) error
}

// RunRecorded runs the batch and records it. A recording failure is logged and
// never changes the upload outcome.
func (e *UploadEngine) RunRecorded(ctx context.Context, rec Recorder, files []services.LocalFile, dest Destination, sink ProgressSink) (*BatchOutcome, string, error) {
	if rec == nil || len(files) == 0 {
		out, err := e.Run(ctx, files, dest, sink)
		return out, "", err
	}

	batchID, err := rec.Begin(dest, files)
	if err != nil {
		e.logger.Warn("failed to record upload batch", "error", err)
	}

	out, err := e.Run(ctx, files, dest, sink)
	if err != nil {
		return nil, batchID, err
	}

	if batchID != "" {
		if err := rec.Finish(batchID, out); err != nil {
			e.logger.Warn("failed to record upload outcome", "batch", batchID, "error", err)
		}
	}
	return out, batchID, nil
}
