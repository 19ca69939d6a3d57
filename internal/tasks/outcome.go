package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
)

// BatchStatus is the batch-level verdict.
type BatchStatus int

const (
	AllSucceeded BatchStatus = iota
	PartiallyFailed
)

func (s BatchStatus) String() string {
	switch s {
	case AllSucceeded:
		return "all_succeeded"
	case PartiallyFailed:
		return "partially_failed"
	default:
		return ""
	}
}

// TaskResult is the settled state of one file.
type TaskResult struct {
	Index   int
	File    services.LocalFile
	Receipt *services.UploadReceipt // nil on failure
	Err     error
}

// TaskFailure names one failed file and why.
type TaskFailure struct {
	Index int
	Name  string
	Kind  string
	Err   error
}

// BatchOutcome is the result of [UploadEngine.Run].
//
// Tasks is ordered by task index, never by completion order. FirstError is the
// failure the collector recorded first.
type BatchOutcome struct {
	Status     BatchStatus
	Tasks      []TaskResult
	FirstError error
	TotalBytes int64
	Elapsed    time.Duration
}

// Succeeded reports whether every file was accepted.
func (o *BatchOutcome) Succeeded() bool { return o.Status == AllSucceeded }

// Results returns the receipts in task order, or nil unless every file succeeded.
func (o *BatchOutcome) Results() []*services.UploadReceipt {
	if !o.Succeeded() {
		return nil
	}
	out := make([]*services.UploadReceipt, len(o.Tasks))
	for i, t := range o.Tasks {
		out[i] = t.Receipt
	}
	return out
}

// Failures lists every failed file in task order.
func (o *BatchOutcome) Failures() []TaskFailure {
	var out []TaskFailure
	for _, t := range o.Tasks {
		if t.Err != nil {
			out = append(out, TaskFailure{Index: t.Index, Name: t.File.Name, Kind: Classify(t.Err), Err: t.Err})
		}
	}
	return out
}

// SucceededCount is the number of accepted files.
func (o *BatchOutcome) SucceededCount() int {
	n := 0
	for _, t := range o.Tasks {
		if t.Err == nil {
			n++
		}
	}
	return n
}

// Err is nil for a fully successful batch, otherwise
// "some or all uploads failed: <first reason>" wrapping [shared.ErrUploadFailed]
// and the first error.
func (o *BatchOutcome) Err() error {
	if o.Succeeded() {
		return nil
	}
	return fmt.Errorf("%w: %w", shared.ErrUploadFailed, o.FirstError)
}
