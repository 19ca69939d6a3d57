// package models defines the data model for the studio proofing client
package models

import (
	"time"
)

// Model defines the base interface for all persistent models.
// Implementations include UploadBatch and UploadFile.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// entity carries the identity and lifecycle fields shared by persisted models.
type entity struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func newEntity(sequence int) entity {
	now := time.Now()
	return entity{sequence: sequence, createdAt: now, updatedAt: now}
}

func (e *entity) ID() string               { return e.id }
func (e *entity) Sequence() int            { return e.sequence }
func (e *entity) CreatedAt() time.Time     { return e.createdAt }
func (e *entity) UpdatedAt() time.Time     { return e.updatedAt }
func (e *entity) DeletedAt() *time.Time    { return e.deletedAt }
func (e *entity) IsDeleted() bool          { return e.deletedAt != nil }
func (e *entity) SetID(id string)          { e.id = id }
func (e *entity) SetSequence(seq int)      { e.sequence = seq }
func (e *entity) SetCreatedAt(t time.Time) { e.createdAt = t }
func (e *entity) SetUpdatedAt(t time.Time) { e.updatedAt = t }
func (e *entity) SetDeletedAt(t *time.Time) {
	e.deletedAt = t
}
