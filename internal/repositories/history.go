package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/tasks"
)

// HistoryRecorder stores upload batches and their files. It implements [tasks.Recorder].
type HistoryRecorder struct {
	batches *UploadBatchRepository
	files   *UploadFileRepository
	now     func() time.Time
}

// NewHistoryRecorder creates a recorder over db.
func NewHistoryRecorder(db *sql.DB) *HistoryRecorder {
	return &HistoryRecorder{
		batches: NewUploadBatchRepository(db),
		files:   NewUploadFileRepository(db),
		now:     time.Now,
	}
}

// Batches exposes the batch repository for listings.
func (h *HistoryRecorder) Batches() *UploadBatchRepository { return h.batches }

// Begin stores a running batch with one pending row per file.
func (h *HistoryRecorder) Begin(dest tasks.Destination, files []services.LocalFile) (string, error) {
	batch := models.NewUploadBatch(0, dest.Kind, dest.Target())
	batch.SetCustomerName(dest.Fields["customerName"])

	var total int64
	for _, f := range files {
		total += f.Size
	}
	batch.SetTotals(len(files), total)
	batch.Start(h.now())

	if err := h.batches.Create(batch); err != nil {
		return "", fmt.Errorf("failed to record batch: %w", err)
	}

	for i, f := range files {
		row := models.NewUploadFile(0, batch.ID(), i, f.Name, f.Size)
		if err := h.files.Create(row); err != nil {
			return batch.ID(), fmt.Errorf("failed to record file %s: %w", f.Name, err)
		}
	}
	return batch.ID(), nil
}

// Finish settles the batch and each file row from the outcome.
func (h *HistoryRecorder) Finish(batchID string, outcome *tasks.BatchOutcome) error {
	batch, err := h.batches.Get(batchID)
	if err != nil {
		return err
	}

	rows, err := h.files.ListByBatch(batchID)
	if err != nil {
		return err
	}
	byIndex := make(map[int]*models.UploadFile, len(rows))
	for _, r := range rows {
		byIndex[r.TaskIndex()] = r
	}

	for _, t := range outcome.Tasks {
		row, ok := byIndex[t.Index]
		if !ok {
			continue
		}
		if t.Err != nil {
			row.Fail(t.Err)
		} else if t.Receipt != nil {
			row.Succeed(t.Receipt.ID, t.Receipt.URL)
		} else {
			row.Succeed("", "")
		}
		if err := h.files.Update(row); err != nil {
			return fmt.Errorf("failed to record file %s: %w", row.Name(), err)
		}
	}

	batch.Finish(h.now(), outcome.FirstError)
	return h.batches.Update(batch)
}

// BatchDetail is a stored batch with its files in task order.
type BatchDetail struct {
	Batch *models.UploadBatch
	Files []*models.UploadFile
}

// Show loads a batch by ID or unique ID prefix.
func (h *HistoryRecorder) Show(idOrPrefix string) (*BatchDetail, error) {
	batch, err := h.batches.Get(idOrPrefix)
	if err != nil {
		batch, err = h.batches.FindByPrefix(idOrPrefix)
		if err != nil {
			return nil, err
		}
	}
	files, err := h.files.ListByBatch(batch.ID())
	if err != nil {
		return nil, err
	}
	return &BatchDetail{Batch: batch, Files: files}, nil
}

// List returns recent batches; see [UploadBatchRepository.List] for criteria.
func (h *HistoryRecorder) List(criteria map[string]any) ([]*models.UploadBatch, error) {
	return h.batches.List(criteria)
}

// Delete soft-deletes a batch by ID or unique prefix.
func (h *HistoryRecorder) Delete(idOrPrefix string) error {
	detail, err := h.Show(idOrPrefix)
	if err != nil {
		return err
	}
	return h.batches.Delete(detail.Batch.ID())
}

var _ tasks.Recorder = (*HistoryRecorder)(nil)
