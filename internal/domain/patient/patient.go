package patient

import (
	"time"

	"github.com/google/uuid"
)

// Record is the persisted form of a patient: all medical text encrypted at
// rest, pinned to the shard computed from the patient id at creation time.
// ShardID is set once and never mutated; a stored shard that disagrees with
// the routed shard is an integrity fault, not a recoverable condition.
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	EncryptedName    []byte `gorm:"column:encrypted_name;type:bytea;not null"`
	EncryptedHistory []byte `gorm:"column:encrypted_history;type:bytea"`

	ShardID int `gorm:"column:shard_id;not null"`
}

func (Record) TableName() string {
	return "patient_records"
}

// Data is the decrypted view handed to callers. It never touches storage.
type Data struct {
	ID             uuid.UUID `json:"patient_id"`
	Name           string    `json:"name"`
	MedicalHistory string    `json:"medical_history"`
	ShardID        int       `json:"shard_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreateCommand struct {
	Name           string
	MedicalHistory string
}

type UpdateCommand struct {
	Name           *string
	MedicalHistory *string
}
