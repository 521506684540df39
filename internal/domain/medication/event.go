package medication

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTaken   EventType = "TAKEN"
	EventMissed  EventType = "MISSED"
	EventWastage EventType = "WASTAGE"
	EventRefill  EventType = "REFILL"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventTaken, EventMissed, EventWastage, EventRefill:
		return true
	}
	return false
}

// AdherenceEvent is one immutable entry in a medication's audit trail.
// Events are appended in the same transaction as the counter change they
// represent and are never updated or deleted; they cascade away only with
// their medication.
type AdherenceEvent struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	MedicationID  uuid.UUID  `gorm:"column:medication_id;type:uuid;not null;index;constraint:OnDelete:CASCADE"`
	EventType     EventType  `gorm:"column:event_type;type:varchar(10);not null;index"`
	PillsCount    int        `gorm:"column:pills_count;not null"`
	ScheduledTime *time.Time `gorm:"column:scheduled_time"`
	ActualTime    time.Time  `gorm:"column:actual_time;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null;index"`
}

func (AdherenceEvent) TableName() string {
	return "adherence_events"
}

func NewTakenEvent(medicationID uuid.UUID, pillsCount int, scheduledTime *time.Time, now time.Time) *AdherenceEvent {
	return &AdherenceEvent{
		ID:            uuid.New(),
		MedicationID:  medicationID,
		EventType:     EventTaken,
		PillsCount:    pillsCount,
		ScheduledTime: scheduledTime,
		ActualTime:    now,
		CreatedAt:     now,
	}
}

func NewMissedEvent(medicationID uuid.UUID, scheduledTime *time.Time, now time.Time) *AdherenceEvent {
	return &AdherenceEvent{
		ID:            uuid.New(),
		MedicationID:  medicationID,
		EventType:     EventMissed,
		PillsCount:    0,
		ScheduledTime: scheduledTime,
		ActualTime:    now,
		CreatedAt:     now,
	}
}

func NewWastageEvent(medicationID uuid.UUID, pillsCount int, now time.Time) *AdherenceEvent {
	return &AdherenceEvent{
		ID:           uuid.New(),
		MedicationID: medicationID,
		EventType:    EventWastage,
		PillsCount:   pillsCount,
		ActualTime:   now,
		CreatedAt:    now,
	}
}

func NewRefillEvent(medicationID uuid.UUID, pillsCount int, now time.Time) *AdherenceEvent {
	return &AdherenceEvent{
		ID:           uuid.New(),
		MedicationID: medicationID,
		EventType:    EventRefill,
		PillsCount:   pillsCount,
		ActualTime:   now,
		CreatedAt:    now,
	}
}
