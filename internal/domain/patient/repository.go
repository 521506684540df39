package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists patient records on the shard routed from the record id.
// Implementations own the shard selection; callers never pick a shard.
type Repository interface {
	// Create persists a new record on its routed shard.
	Create(ctx context.Context, rec *Record) error

	// GetByID retrieves a record from the routed shard. Returns
	// ErrPatientNotFound if absent. Implementations must surface a
	// *sharding.IntegrityError when the stored shard_id disagrees with the
	// routed shard, never silently re-route.
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// Update rewrites the encrypted fields of an existing record.
	Update(ctx context.Context, rec *Record) error

	// Delete removes the record and, by cascade, its medications and their
	// adherence events.
	Delete(ctx context.Context, id uuid.UUID) error
}
