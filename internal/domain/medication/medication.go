package medication

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurahealth/aura/internal/frequency"
)

// Medication is one prescribed drug with a live pill inventory. TotalPills is
// computed once at creation from the parsed schedule and only grows when a
// refill re-baselines it; PillsRemaining is the materialized counter the
// ledger maintains. 0 <= PillsRemaining <= TotalPills at every observable
// instant.
type Medication struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index;constraint:OnDelete:CASCADE"`

	DrugName      string             `gorm:"column:drug_name;type:varchar(255);not null"`
	Strength      string             `gorm:"column:strength;type:varchar(50)"` // e.g. "500mg"
	FrequencyText string             `gorm:"column:frequency_text;type:varchar(100);not null"`
	Schedule      frequency.Schedule `gorm:"column:schedule;serializer:json"`

	DurationDays    int `gorm:"column:duration_days;not null"`
	DosagePerIntake int `gorm:"column:dosage_per_intake;not null"`
	TotalPills      int `gorm:"column:total_pills;not null"`
	PillsRemaining  int `gorm:"column:pills_remaining;not null"`
	RefillThreshold int `gorm:"column:refill_threshold;not null"`

	LastTakenAt *time.Time `gorm:"column:last_taken_at"`

	PharmacyName  string `gorm:"column:pharmacy_name;type:varchar(255)"`
	PharmacyPhone string `gorm:"column:pharmacy_phone;type:varchar(20)"`
}

func (Medication) TableName() string {
	return "medications"
}

// IsActive reports whether any supply remains; a medication with zero pills
// is DEPLETED and excluded from refill evaluation.
func (m *Medication) IsActive() bool {
	return m.PillsRemaining > 0
}

func (m *Medication) NeedsRefill() bool {
	return m.PillsRemaining <= m.RefillThreshold
}

// RemainingFraction is PillsRemaining over TotalPills, 0 when the baseline is
// unset.
func (m *Medication) RemainingFraction() float64 {
	if m.TotalPills == 0 {
		return 0
	}
	return float64(m.PillsRemaining) / float64(m.TotalPills)
}

type CreateCommand struct {
	PatientID       uuid.UUID
	DrugName        string
	Strength        string
	FrequencyText   string
	DurationDays    int
	DosagePerIntake int
	PharmacyName    string
	PharmacyPhone   string
	// ConfirmSchedule acknowledges a LOW-confidence parse. Without it, an
	// uncertain schedule is never persisted.
	ConfirmSchedule bool
}
