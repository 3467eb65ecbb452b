package student

import (
	"context"
	"errors"
	"time"
)

// Repository errors.
var (
	// ErrNotFound is returned when a student record does not exist.
	ErrNotFound = errors.New("student not found")

	// ErrAlreadyExists is returned when a handle or email is already enrolled.
	ErrAlreadyExists = errors.New("student already exists")
)

// Repository defines persistence operations for student records.
//
// Update writes the whole record in one statement so readers never see
// a partially reconciled student.
type Repository interface {
	// Create persists a newly enrolled student.
	Create(ctx context.Context, rec *Record) error

	// GetByID fetches a student by internal ID.
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByHandle fetches a student by normalized Codeforces handle.
	GetByHandle(ctx context.Context, handle Handle) (*Record, error)

	// GetAll returns every enrolled student.
	GetAll(ctx context.Context) ([]*Record, error)

	// GetInactiveSince returns students whose last activity is before
	// the cutoff, including students with no recorded activity.
	GetInactiveSince(ctx context.Context, cutoff time.Time) ([]*Record, error)

	// Update persists the full record atomically.
	Update(ctx context.Context, rec *Record) error

	// Delete removes a student record.
	Delete(ctx context.Context, id string) error

	// Count returns the number of enrolled students.
	Count(ctx context.Context) (int, error)
}
