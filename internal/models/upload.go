package models

import (
	"fmt"
	"time"
)

// UploadKind names the destination family of a batch.
type UploadKind string

const (
	UploadToSession   UploadKind = "session"
	UploadToPortfolio UploadKind = "portfolio"
)

// BatchStatus tracks a batch (or a single file within it).
type BatchStatus string

const (
	BatchPending   BatchStatus = "pending"
	BatchRunning   BatchStatus = "running"
	BatchSucceeded BatchStatus = "succeeded"
	BatchFailed    BatchStatus = "failed"
)

func (s BatchStatus) valid() bool {
	switch s {
	case BatchPending, BatchRunning, BatchSucceeded, BatchFailed:
		return true
	}
	return false
}

// UploadBatch records one run of the upload orchestrator.
//
// Destination is the session ID for session uploads and the category for portfolio uploads.
type UploadBatch struct {
	entity
	kind         UploadKind
	destination  string
	customerName string
	status       BatchStatus
	fileCount    int
	totalBytes   int64
	errorMessage string
	startedAt    *time.Time
	completedAt  *time.Time
}

// NewUploadBatch creates a pending batch.
func NewUploadBatch(sequence int, kind UploadKind, destination string) *UploadBatch {
	return &UploadBatch{
		entity:      newEntity(sequence),
		kind:        kind,
		destination: destination,
		status:      BatchPending,
	}
}

func (b *UploadBatch) Kind() UploadKind        { return b.kind }
func (b *UploadBatch) Destination() string     { return b.destination }
func (b *UploadBatch) CustomerName() string    { return b.customerName }
func (b *UploadBatch) Status() BatchStatus     { return b.status }
func (b *UploadBatch) FileCount() int          { return b.fileCount }
func (b *UploadBatch) TotalBytes() int64       { return b.totalBytes }
func (b *UploadBatch) ErrorMessage() string    { return b.errorMessage }
func (b *UploadBatch) StartedAt() *time.Time   { return b.startedAt }
func (b *UploadBatch) CompletedAt() *time.Time { return b.completedAt }

func (b *UploadBatch) SetCustomerName(name string) { b.customerName = name }
func (b *UploadBatch) SetStatus(s BatchStatus)     { b.status = s }
func (b *UploadBatch) SetErrorMessage(msg string)  { b.errorMessage = msg }
func (b *UploadBatch) SetStartedAt(t *time.Time)   { b.startedAt = t }
func (b *UploadBatch) SetCompletedAt(t *time.Time) { b.completedAt = t }

// SetTotals records the file count and byte total of the batch.
func (b *UploadBatch) SetTotals(files int, bytes int64) {
	b.fileCount = files
	b.totalBytes = bytes
}

// Start marks the batch running.
func (b *UploadBatch) Start(now time.Time) {
	b.status = BatchRunning
	b.startedAt = &now
}

// Finish settles the batch; a nil error means every file succeeded.
func (b *UploadBatch) Finish(now time.Time, err error) {
	b.completedAt = &now
	if err != nil {
		b.status = BatchFailed
		b.errorMessage = err.Error()
		return
	}
	b.status = BatchSucceeded
	b.errorMessage = ""
}

// Duration is the wall time of a settled batch.
func (b *UploadBatch) Duration() time.Duration {
	if b.startedAt == nil || b.completedAt == nil {
		return 0
	}
	return b.completedAt.Sub(*b.startedAt)
}

func (b *UploadBatch) Validate() error {
	if b.kind != UploadToSession && b.kind != UploadToPortfolio {
		return fmt.Errorf("invalid upload kind: %q", b.kind)
	}
	if b.destination == "" {
		return fmt.Errorf("destination is required")
	}
	if !b.status.valid() {
		return fmt.Errorf("invalid batch status: %q", b.status)
	}
	if b.fileCount < 0 || b.totalBytes < 0 {
		return fmt.Errorf("file count and total bytes must not be negative")
	}
	return nil
}

// UploadFile is one task of a recorded batch.
type UploadFile struct {
	entity
	batchID      string
	taskIndex    int
	name         string
	size         int64
	status       BatchStatus
	remoteID     string
	remoteURL    string
	errorMessage string
}

// NewUploadFile creates a pending file row for the task at index.
func NewUploadFile(sequence int, batchID string, index int, name string, size int64) *UploadFile {
	return &UploadFile{
		entity:    newEntity(sequence),
		batchID:   batchID,
		taskIndex: index,
		name:      name,
		size:      size,
		status:    BatchPending,
	}
}

func (f *UploadFile) BatchID() string      { return f.batchID }
func (f *UploadFile) TaskIndex() int       { return f.taskIndex }
func (f *UploadFile) Name() string         { return f.name }
func (f *UploadFile) Size() int64          { return f.size }
func (f *UploadFile) Status() BatchStatus  { return f.status }
func (f *UploadFile) RemoteID() string     { return f.remoteID }
func (f *UploadFile) RemoteURL() string    { return f.remoteURL }
func (f *UploadFile) ErrorMessage() string { return f.errorMessage }

// Succeed records the backend identity of the uploaded file.
func (f *UploadFile) Succeed(remoteID, remoteURL string) {
	f.status = BatchSucceeded
	f.remoteID = remoteID
	f.remoteURL = remoteURL
	f.errorMessage = ""
}

// Fail records why the file did not upload.
func (f *UploadFile) Fail(err error) {
	f.status = BatchFailed
	if err != nil {
		f.errorMessage = err.Error()
	}
}

func (f *UploadFile) Validate() error {
	if f.batchID == "" {
		return fmt.Errorf("batch id is required")
	}
	if f.name == "" {
		return fmt.Errorf("file name is required")
	}
	if f.taskIndex < 0 {
		return fmt.Errorf("task index must not be negative")
	}
	if f.size < 0 {
		return fmt.Errorf("size must not be negative")
	}
	if f.status == BatchRunning || !f.status.valid() {
		return fmt.Errorf("invalid file status: %q", f.status)
	}
	return nil
}

var (
	_ Model = (*UploadBatch)(nil)
	_ Model = (*UploadFile)(nil)
)
