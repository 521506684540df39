package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/domain/patient"
	"github.com/aurahealth/aura/internal/sharding"
	"github.com/aurahealth/aura/pkg/database"
)

// PatientRepository stores patient records on the shard the router computes
// from the record id. Callers never see shard selection.
type PatientRepository struct {
	shards *database.ShardSet
	router *sharding.Router
}

func NewPatientRepository(shards *database.ShardSet, router *sharding.Router) *PatientRepository {
	return &PatientRepository{shards: shards, router: router}
}

var _ patient.Repository = (*PatientRepository)(nil)

func (r *PatientRepository) shardFor(id uuid.UUID) (*gorm.DB, int, error) {
	shardID := r.router.Route(id.String())
	db, err := r.shards.Shard(shardID)
	if err != nil {
		return nil, 0, err
	}
	return db, shardID, nil
}

func (r *PatientRepository) Create(ctx context.Context, rec *patient.Record) error {
	db, shardID, err := r.shardFor(rec.ID)
	if err != nil {
		return err
	}
	rec.ShardID = shardID

	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("inserting patient record: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Record, error) {
	db, _, err := r.shardFor(id)
	if err != nil {
		return nil, err
	}

	var rec patient.Record
	if err := db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, patient.ErrPatientNotFound
		}
		return nil, fmt.Errorf("fetching patient record: %w", err)
	}

	// A record found on the routed shard but claiming another shard is a
	// data-integrity fault; surface it, never re-route.
	if err := r.router.Validate(rec.ShardID, id.String()); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (r *PatientRepository) Update(ctx context.Context, rec *patient.Record) error {
	db, _, err := r.shardFor(rec.ID)
	if err != nil {
		return err
	}

	res := db.WithContext(ctx).Model(&patient.Record{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{
			"encrypted_name":    rec.EncryptedName,
			"encrypted_history": rec.EncryptedHistory,
		})
	if res.Error != nil {
		return fmt.Errorf("updating patient record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

// Delete removes the patient and cascades to its medications and their
// adherence events in one transaction on the patient's shard.
func (r *PatientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db, _, err := r.shardFor(id)
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(
			"medication_id IN (?)",
			tx.Model(&medication.Medication{}).Select("id").Where("patient_id = ?", id),
		).Delete(&medication.AdherenceEvent{}).Error; err != nil {
			return fmt.Errorf("deleting adherence events: %w", err)
		}

		if err := tx.Where("patient_id = ?", id).Delete(&medication.Medication{}).Error; err != nil {
			return fmt.Errorf("deleting medications: %w", err)
		}

		res := tx.Where("id = ?", id).Delete(&patient.Record{})
		if res.Error != nil {
			return fmt.Errorf("deleting patient record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return patient.ErrPatientNotFound
		}
		return nil
	})
}
