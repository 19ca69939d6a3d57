package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/proofs/internal/models"
	"github.com/desertthunder/proofs/internal/shared"
)

const fileColumns = `id, sequence, batch_id, task_index, name, size, status, remote_id, remote_url,
	error_message, created_at, updated_at, deleted_at`

// UploadFileRepository implements models.Repository[*models.UploadFile] for the per-file rows of a batch.
type UploadFileRepository struct {
	db *sql.DB
}

// NewUploadFileRepository creates a new UploadFileRepository with the given database connection
func NewUploadFileRepository(db *sql.DB) *UploadFileRepository {
	return &UploadFileRepository{db: db}
}

// Create inserts a file row with a generated ID and sequence
func (r *UploadFileRepository) Create(file *models.UploadFile) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	sequence, err := NextSequence(r.db, "upload_files")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	file.SetID(id)
	file.SetSequence(sequence)

	query := `
		INSERT INTO upload_files (id, sequence, batch_id, task_index, name, size, status, remote_id, remote_url,
			error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		file.BatchID(),
		file.TaskIndex(),
		file.Name(),
		file.Size(),
		string(file.Status()),
		file.RemoteID(),
		file.RemoteURL(),
		file.ErrorMessage(),
		file.CreatedAt(),
		file.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload file: %w", err)
	}
	return nil
}

// Get retrieves a file row by ID
func (r *UploadFileRepository) Get(id string) (*models.UploadFile, error) {
	query := `SELECT ` + fileColumns + ` FROM upload_files WHERE id = ? AND deleted_at IS NULL`
	return scanFile(r.db.QueryRow(query, id))
}

// Update writes the outcome fields of a file row
func (r *UploadFileRepository) Update(file *models.UploadFile) error {
	if err := file.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	now := time.Now()
	file.SetUpdatedAt(now)

	query := `
		UPDATE upload_files
		SET status = ?, remote_id = ?, remote_url = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.Exec(query,
		string(file.Status()),
		file.RemoteID(),
		file.RemoteURL(),
		file.ErrorMessage(),
		now,
		file.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update upload file: %w", err)
	}
	return expectRow(result, file.ID())
}

// Delete soft-deletes a file row by ID
func (r *UploadFileRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE upload_files SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete upload file: %w", err)
	}
	return expectRow(result, id)
}

// List retrieves file rows. Supported criteria: "batch_id" and "status".
func (r *UploadFileRepository) List(criteria map[string]any) ([]*models.UploadFile, error) {
	query := `SELECT ` + fileColumns + ` FROM upload_files WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"batch_id", "status"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}
	query += " ORDER BY batch_id, task_index ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload files: %w", err)
	}
	defer rows.Close()

	var files []*models.UploadFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return files, nil
}

// ListByBatch returns the files of one batch in task order.
func (r *UploadFileRepository) ListByBatch(batchID string) ([]*models.UploadFile, error) {
	return r.List(map[string]any{"batch_id": batchID})
}

func scanFile(s scanner) (*models.UploadFile, error) {
	var (
		id, batchID, name, status         string
		remoteID, remoteURL, errorMessage sql.NullString
		sequence, taskIndex               int
		size                              int64
		createdAt, updatedAt              time.Time
		deletedAt                         sql.NullTime
	)

	err := s.Scan(&id, &sequence, &batchID, &taskIndex, &name, &size, &status, &remoteID, &remoteURL,
		&errorMessage, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: upload file not found", shared.ErrBatchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan upload file: %w", err)
	}

	file := models.NewUploadFile(sequence, batchID, taskIndex, name, size)
	file.SetID(id)
	switch models.BatchStatus(status) {
	case models.BatchSucceeded:
		file.Succeed(remoteID.String, remoteURL.String)
	case models.BatchFailed:
		file.Fail(errors.New(errorMessage.String))
	}
	file.SetCreatedAt(createdAt)
	file.SetUpdatedAt(updatedAt)
	file.SetDeletedAt(nullTime(deletedAt))
	return file, nil
}

var _ models.Repository[*models.UploadFile] = (*UploadFileRepository)(nil)
