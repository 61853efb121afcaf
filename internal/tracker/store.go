package tracker

import (
	"context"

	"github.com/grantthrive/pulse/model"
)

// ProgressStore persists progress records. Implementations must hand out
// deep copies so readers never observe a record mid-mutation, and must
// enforce optimistic version checks on Update.
type ProgressStore interface {
	// Create persists a new progress record. Returns ALREADY_INITIALIZED
	// if a record already exists for the application.
	Create(ctx context.Context, record model.ProgressRecord) error

	// Get retrieves the progress record for an application.
	// Returns NOT_FOUND if no record exists.
	Get(ctx context.Context, applicationID string) (model.ProgressRecord, error)

	// Update persists an updated record with optimistic locking. The
	// version must match the current stored version. Returns CONFLICT if
	// the version has changed.
	Update(ctx context.Context, record model.ProgressRecord) error

	// Delete removes the progress record for an application.
	Delete(ctx context.Context, applicationID string) error
}
