package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/shared"
)

const batchColumns = `id, sequence, kind, destination, customer_name, status, file_count, total_bytes,
	error_message, started_at, completed_at, created_at, updated_at, deleted_at`

// UploadBatchRepository implements models.Repository[*models.UploadBatch] for upload history.
type UploadBatchRepository struct {
	db *sql.DB
}

// NewUploadBatchRepository creates a new UploadBatchRepository with the given database connection
func NewUploadBatchRepository(db *sql.DB) *UploadBatchRepository {
	return &UploadBatchRepository{db: db}
}

// Create inserts a new batch with a generated ID and sequence
func (r *UploadBatchRepository) Create(batch *models.UploadBatch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "upload_batches")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	batch.SetID(id)
	batch.SetSequence(sequence)

	query := `
		INSERT INTO upload_batches (id, sequence, kind, destination, customer_name, status, file_count, total_bytes,
			error_message, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		string(batch.Kind()),
		batch.Destination(),
		batch.CustomerName(),
		string(batch.Status()),
		batch.FileCount(),
		batch.TotalBytes(),
		batch.ErrorMessage(),
		batch.StartedAt(),
		batch.CompletedAt(),
		batch.CreatedAt(),
		batch.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload batch: %w", err)
	}
	return nil
}

// Get retrieves a batch by ID, excluding soft-deleted batches
func (r *UploadBatchRepository) Get(id string) (*models.UploadBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM upload_batches WHERE id = ? AND deleted_at IS NULL`
	return scanBatch(r.db.QueryRow(query, id))
}

// FindByPrefix resolves a unique ID prefix, so short IDs from listings work on the command line.
func (r *UploadBatchRepository) FindByPrefix(prefix string) (*models.UploadBatch, error) {
	if prefix == "" {
		return nil, fmt.Errorf("%w: batch id", shared.ErrMissingArgument)
	}
	rows, err := r.db.Query(`SELECT `+batchColumns+` FROM upload_batches WHERE substr(id, 1, ?) = ? AND deleted_at IS NULL LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload batches: %w", err)
	}
	defer rows.Close()

	var found []*models.UploadBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", shared.ErrBatchNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("%w: batch id prefix %q is ambiguous", shared.ErrInvalidArgument, prefix)
	}
}

// Update writes the mutable fields of a batch
func (r *UploadBatchRepository) Update(batch *models.UploadBatch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	batch.SetUpdatedAt(now)

	query := `
		UPDATE upload_batches
		SET customer_name = ?, status = ?, file_count = ?, total_bytes = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		batch.CustomerName(),
		string(batch.Status()),
		batch.FileCount(),
		batch.TotalBytes(),
		batch.ErrorMessage(),
		batch.StartedAt(),
		batch.CompletedAt(),
		now,
		batch.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update upload batch: %w", err)
	}
	return expectRow(result, batch.ID())
}

// Delete soft-deletes a batch by ID
func (r *UploadBatchRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE upload_batches SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete upload batch: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves batches newest first, excluding soft-deleted ones.
//
// Supported criteria: "kind", "destination", "status" (strings) and "limit" (int).
func (r *UploadBatchRepository) List(criteria map[string]any) ([]*models.UploadBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM upload_batches WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"kind", "destination", "status"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload batches: %w", err)
	}
	defer rows.Close()

	var batches []*models.UploadBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return batches, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(s scanner) (*models.UploadBatch, error) {
	var (
		id, kind, destination, status string
		customerName, errorMessage    sql.NullString
		sequence, fileCount           int
		totalBytes                    int64
		startedAt, completedAt        sql.NullTime
		createdAt, updatedAt          time.Time
		deletedAt                     sql.NullTime
	)

	err := s.Scan(&id, &sequence, &kind, &destination, &customerName, &status, &fileCount, &totalBytes,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrBatchNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan upload batch: %w", err)
	}

	batch := models.NewUploadBatch(sequence, models.UploadKind(kind), destination)
	batch.SetID(id)
	batch.SetCustomerName(customerName.String)
	batch.SetStatus(models.BatchStatus(status))
	batch.SetTotals(fileCount, totalBytes)
	batch.SetErrorMessage(errorMessage.String)
	batch.SetStartedAt(nullTime(startedAt))
	batch.SetCompletedAt(nullTime(completedAt))
	batch.SetCreatedAt(createdAt)
	batch.SetUpdatedAt(updatedAt)
	batch.SetDeletedAt(nullTime(deletedAt))
	return batch, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// expectRow turns a zero-row update into [shared.ErrBatchNotFound].
func expectRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrBatchNotFound, id)
	}
	return nil
}

var _ models.Repository[*models.UploadBatch] = (*UploadBatchRepository)(nil)
