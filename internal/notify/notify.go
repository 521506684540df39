// Package notify delivers refill alerts to pharmacies and caregivers. The
// evaluator stays read-only; everything with side effects lives here.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// RefillAlert describes one medication at or below its refill threshold.
type RefillAlert struct {
	PatientID       uuid.UUID `json:"patient_id"`
	MedicationID    uuid.UUID `json:"medication_id"`
	DrugName        string    `json:"drug_name"`
	Strength        string    `json:"strength,omitempty"`
	PillsRemaining  int       `json:"pills_remaining"`
	TotalPills      int       `json:"total_pills"`
	PillsNeeded     int       `json:"pills_needed"`
	RefillThreshold int       `json:"refill_threshold"`
	PharmacyName    string    `json:"pharmacy_name,omitempty"`
	PharmacyPhone   string    `json:"pharmacy_phone,omitempty"`
	// ContactLink is a prefilled wa.me link for the pharmacy, when a phone
	// number is on file.
	ContactLink string `json:"contact_link,omitempty"`
}

// Sender publishes alerts to an external channel. Implementations must be
// safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, alert RefillAlert) error
	Close() error
}

// NoopSender drops alerts; used when publishing is disabled.
type NoopSender struct{}

func (NoopSender) Send(context.Context, RefillAlert) error { return nil }
func (NoopSender) Close() error                            { return nil }
