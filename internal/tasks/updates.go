package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/proofs/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Prepare Phase = iota
	Transfer
	Settle
	Complete
)

func (p Phase) String() string {
	switch p {
	case Prepare:
		return "prepare"
	case Transfer:
		return "transfer"
	case Settle:
		return "settle"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

// ChannelSink adapts a progress channel into a [ProgressSink]. Sends never
// block, so a slow reader only misses intermediate updates.
func ChannelSink(ch chan<- ProgressUpdate) ProgressSink {
	settled := 0
	return func(p Progress) {
		if p.Settled != settled {
			settled = p.Settled
			sendProgress(ch, settledUpdate(p))
			return
		}
		sendProgress(ch, transferUpdate(p))
	}
}

// CompleteUpdate summarizes a finished batch for channel consumers.
func CompleteUpdate(o *BatchOutcome) ProgressUpdate {
	msg := fmt.Sprintf("Uploaded %d/%d files (%s) in %s", o.SucceededCount(), len(o.Tasks), shared.FormatBytes(o.TotalBytes), o.Elapsed.Round(time.Millisecond))
	if !o.Succeeded() {
		msg = fmt.Sprintf("%d of %d files failed: %v", len(o.Tasks)-o.SucceededCount(), len(o.Tasks), o.FirstError)
	}
	return ProgressUpdate{
		Phase:   Complete,
		Step:    len(o.Tasks),
		Total:   len(o.Tasks),
		Message: msg,
		Data:    o,
	}
}

func preparingUpdate(files int, bytes int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Prepare,
		Step:    0,
		Total:   files,
		Message: fmt.Sprintf("Preparing %d files (%s)...", files, shared.FormatBytes(bytes)),
	}
}

func transferUpdate(p Progress) ProgressUpdate {
	if p.Loaded == 0 && p.Settled == 0 && p.Total > 0 {
		return preparingUpdate(p.Tasks, p.Total)
	}
	return ProgressUpdate{
		Phase:   Transfer,
		Step:    p.Settled,
		Total:   p.Tasks,
		Message: fmt.Sprintf("%.1f%% (%s / %s)", p.Percent, shared.FormatBytes(p.Loaded), shared.FormatBytes(p.Total)),
		Data:    p,
	}
}

func settledUpdate(p Progress) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Settle,
		Step:    p.Settled,
		Total:   p.Tasks,
		Message: fmt.Sprintf("[%d/%d] %.1f%%", p.Settled, p.Tasks, p.Percent),
		Data:    p,
	}
}
