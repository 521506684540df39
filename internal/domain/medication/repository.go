package medication

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventCounts holds TAKEN/MISSED tallies for an adherence window.
type EventCounts struct {
	Taken  int64
	Missed int64
}

// Repository persists medications and their append-only event streams on the
// shard routed from the owning patient id. Counter mutations are atomic: the
// conditional counter update and the event insert commit together or not at
// all.
type Repository interface {
	// Create persists a new medication with its seeded inventory.
	Create(ctx context.Context, med *Medication) error

	// GetByID fetches one medication owned by the given patient. Returns
	// ErrMedicationNotFound if absent.
	GetByID(ctx context.Context, patientID, medicationID uuid.UUID) (*Medication, error)

	// ListByPatient returns the patient's medications, optionally only those
	// with supply remaining.
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error)

	// ApplyDecrement subtracts event.PillsCount from pills_remaining, guarded
	// by pills_remaining >= count at the storage layer, and appends the event
	// in the same transaction. TAKEN events also set last_taken_at to the
	// event's actual time. Returns ErrInsufficientStock when the guard fails;
	// no partial effects remain in either case.
	ApplyDecrement(ctx context.Context, patientID uuid.UUID, event *AdherenceEvent) error

	// ApplyRefill adds event.PillsCount to pills_remaining, re-baselining
	// total_pills so the counter invariant holds, and appends the event in
	// the same transaction.
	ApplyRefill(ctx context.Context, patientID uuid.UUID, event *AdherenceEvent) error

	// AppendEvent appends an event with no counter change (MISSED).
	AppendEvent(ctx context.Context, patientID uuid.UUID, event *AdherenceEvent) error

	// CountEventsSince tallies TAKEN and MISSED events created at or after
	// the cutoff.
	CountEventsSince(ctx context.Context, patientID, medicationID uuid.UUID, since time.Time) (EventCounts, error)
}
