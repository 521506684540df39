package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/sharding"
	"github.com/aurahealth/aura/pkg/database"
)

// MedicationRepository keeps medications and their adherence events on the
// owning patient's shard so every decrement stays a single-shard transaction.
type MedicationRepository struct {
	shards *database.ShardSet
	router *sharding.Router
}

func NewMedicationRepository(shards *database.ShardSet, router *sharding.Router) *MedicationRepository {
	return &MedicationRepository{shards: shards, router: router}
}

var _ medication.Repository = (*MedicationRepository)(nil)

func (r *MedicationRepository) shardFor(patientID uuid.UUID) (*gorm.DB, error) {
	db, err := r.shards.Shard(r.router.Route(patientID.String()))
	if err != nil {
		return nil, err
	}
	return db, nil
}

func (r *MedicationRepository) Create(ctx context.Context, med *medication.Medication) error {
	db, err := r.shardFor(med.PatientID)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Create(med).Error; err != nil {
		return fmt.Errorf("inserting medication: %w", err)
	}
	return nil
}

func (r *MedicationRepository) GetByID(ctx context.Context, patientID, medicationID uuid.UUID) (*medication.Medication, error) {
	db, err := r.shardFor(patientID)
	if err != nil {
		return nil, err
	}

	var med medication.Medication
	err = db.WithContext(ctx).
		First(&med, "id = ? AND patient_id = ?", medicationID, patientID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, medication.ErrMedicationNotFound
		}
		return nil, fmt.Errorf("fetching medication: %w", err)
	}
	return &med, nil
}

func (r *MedicationRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*medication.Medication, error) {
	db, err := r.shardFor(patientID)
	if err != nil {
		return nil, err
	}

	q := db.WithContext(ctx).Where("patient_id = ?", patientID)
	if activeOnly {
		q = q.Where("pills_remaining > 0")
	}

	var meds []*medication.Medication
	if err := q.Order("created_at ASC").Find(&meds).Error; err != nil {
		return nil, fmt.Errorf("listing medications: %w", err)
	}
	return meds, nil
}

// translateConflict maps serialization failures and deadlocks to
// ErrWriteConflict so callers can retry.
func translateConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", medication.ErrWriteConflict, pgErr.Code)
		}
	}
	return err
}

// ApplyDecrement atomically subtracts pills and appends the event. The stock
// guard lives in the WHERE clause so two concurrent callers can never drive
// pills_remaining below zero.
func (r *MedicationRepository) ApplyDecrement(ctx context.Context, patientID uuid.UUID, event *medication.AdherenceEvent) error {
	db, err := r.shardFor(patientID)
	if err != nil {
		return err
	}

	return translateConflict(db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"pills_remaining": gorm.Expr("pills_remaining - ?", event.PillsCount),
			"updated_at":      event.ActualTime,
		}
		if event.EventType == medication.EventTaken {
			updates["last_taken_at"] = event.ActualTime
		}

		res := tx.Model(&medication.Medication{}).
			Where("id = ? AND patient_id = ? AND pills_remaining >= ?",
				event.MedicationID, patientID, event.PillsCount).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("decrementing stock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&medication.Medication{}).
				Where("id = ? AND patient_id = ?", event.MedicationID, patientID).
				Count(&count).Error; err != nil {
				return fmt.Errorf("checking medication existence: %w", err)
			}
			if count == 0 {
				return medication.ErrMedicationNotFound
			}
			return medication.ErrInsufficientStock
		}

		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("recording adherence event: %w", err)
		}
		return nil
	}))
}

// ApplyRefill adds pills and re-baselines total_pills so the remaining
// fraction never exceeds 1 after a refill.
func (r *MedicationRepository) ApplyRefill(ctx context.Context, patientID uuid.UUID, event *medication.AdherenceEvent) error {
	db, err := r.shardFor(patientID)
	if err != nil {
		return err
	}

	return translateConflict(db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&medication.Medication{}).
			Where("id = ? AND patient_id = ?", event.MedicationID, patientID).
			Updates(map[string]any{
				"pills_remaining": gorm.Expr("pills_remaining + ?", event.PillsCount),
				"total_pills":     gorm.Expr("GREATEST(total_pills, pills_remaining + ?)", event.PillsCount),
				"updated_at":      event.ActualTime,
			})
		if res.Error != nil {
			return fmt.Errorf("applying refill: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return medication.ErrMedicationNotFound
		}

		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("recording refill event: %w", err)
		}
		return nil
	}))
}

// AppendEvent records an event with no stock effect, used for MISSED doses.
func (r *MedicationRepository) AppendEvent(ctx context.Context, patientID uuid.UUID, event *medication.AdherenceEvent) error {
	db, err := r.shardFor(patientID)
	if err != nil {
		return err
	}

	var count int64
	if err := db.WithContext(ctx).Model(&medication.Medication{}).
		Where("id = ? AND patient_id = ?", event.MedicationID, patientID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("checking medication existence: %w", err)
	}
	if count == 0 {
		return medication.ErrMedicationNotFound
	}

	if err := db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("recording adherence event: %w", err)
	}
	return nil
}

func (r *MedicationRepository) CountEventsSince(ctx context.Context, patientID, medicationID uuid.UUID, since time.Time) (medication.EventCounts, error) {
	db, err := r.shardFor(patientID)
	if err != nil {
		return medication.EventCounts{}, err
	}

	var rows []struct {
		EventType medication.EventType
		Total     int64
	}
	err = db.WithContext(ctx).Model(&medication.AdherenceEvent{}).
		Select("event_type, COUNT(*) AS total").
		Where("medication_id = ? AND created_at >= ? AND event_type IN ?",
			medicationID, since, []medication.EventType{medication.EventTaken, medication.EventMissed}).
		Group("event_type").
		Scan(&rows).Error
	if err != nil {
		return medication.EventCounts{}, fmt.Errorf("counting adherence events: %w", err)
	}

	var counts medication.EventCounts
	for _, row := range rows {
		switch row.EventType {
		case medication.EventTaken:
			counts.Taken = row.Total
		case medication.EventMissed:
			counts.Missed = row.Total
		}
	}
	return counts, nil
}

// ListNeedingRefill scans one shard for active medications at or below their
// refill threshold, or below the given remaining fraction when fraction > 0.
// The evaluator walks all shards with it.
func (r *MedicationRepository) ListNeedingRefill(ctx context.Context, shardID int, fraction float64) ([]*medication.Medication, error) {
	db, err := r.shards.Shard(shardID)
	if err != nil {
		return nil, err
	}

	q := db.WithContext(ctx).Where("pills_remaining > 0")
	if fraction > 0 {
		q = q.Where("pills_remaining < total_pills * ?", fraction)
	} else {
		q = q.Where("pills_remaining <= refill_threshold")
	}

	var meds []*medication.Medication
	err = q.Find(&meds).Error
	if err != nil {
		return nil, fmt.Errorf("listing medications needing refill: %w", err)
	}
	return meds, nil
}

func (r *MedicationRepository) ShardCount() int {
	return r.shards.Count()
}
