package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/pkg/clock"
	"github.com/aurahealth/aura/pkg/metrics"
)

const decrementRetries = 3

// InventoryService is the write side of the pill ledger. Every mutation is a
// counter change plus an appended event, committed together by the
// repository; this service validates, stamps times from the injected clock,
// and retries transient write conflicts.
type InventoryService struct {
	repo      medication.Repository
	clk       clock.Clock
	collector *metrics.Collector
	log       *zap.Logger
}

func NewInventoryService(repo medication.Repository, clk clock.Clock, collector *metrics.Collector, log *zap.Logger) *InventoryService {
	return &InventoryService{
		repo:      repo,
		clk:       clk,
		collector: collector,
		log:       log,
	}
}

// RecordTaken decrements stock by pillsCount and appends a TAKEN event.
// Returns medication.ErrInsufficientStock without any state change when the
// stock guard fails.
func (s *InventoryService) RecordTaken(ctx context.Context, patientID, medicationID uuid.UUID, pillsCount int, scheduledTime *time.Time) (*medication.AdherenceEvent, error) {
	if pillsCount < 1 {
		return nil, medication.ErrInvalidPillsCount
	}

	event := medication.NewTakenEvent(medicationID, pillsCount, scheduledTime, s.clk.Now())
	if err := s.applyWithRetry(ctx, patientID, event); err != nil {
		return nil, err
	}
	s.collector.AdherenceEventsTotal.WithLabelValues(string(medication.EventTaken)).Inc()

	s.log.Info("dose recorded",
		zap.String("medication_id", medicationID.String()),
		zap.Int("pills", pillsCount),
	)
	return event, nil
}

// RecordMissed appends a MISSED event; stock is untouched.
func (s *InventoryService) RecordMissed(ctx context.Context, patientID, medicationID uuid.UUID, scheduledTime *time.Time) (*medication.AdherenceEvent, error) {
	event := medication.NewMissedEvent(medicationID, scheduledTime, s.clk.Now())
	if err := s.repo.AppendEvent(ctx, patientID, event); err != nil {
		return nil, err
	}
	s.collector.AdherenceEventsTotal.WithLabelValues(string(medication.EventMissed)).Inc()
	return event, nil
}

// RecordWastage decrements stock for lost or damaged pills.
func (s *InventoryService) RecordWastage(ctx context.Context, patientID, medicationID uuid.UUID, pillsCount int) (*medication.AdherenceEvent, error) {
	if pillsCount < 1 {
		return nil, medication.ErrInvalidPillsCount
	}

	event := medication.NewWastageEvent(medicationID, pillsCount, s.clk.Now())
	if err := s.applyWithRetry(ctx, patientID, event); err != nil {
		return nil, err
	}
	s.collector.AdherenceEventsTotal.WithLabelValues(string(medication.EventWastage)).Inc()
	return event, nil
}

// RecordRefill adds pills and re-baselines the total so the remaining
// fraction stays within [0, 1].
func (s *InventoryService) RecordRefill(ctx context.Context, patientID, medicationID uuid.UUID, pillsCount int) (*medication.AdherenceEvent, error) {
	if pillsCount < 1 {
		return nil, medication.ErrInvalidPillsCount
	}

	event := medication.NewRefillEvent(medicationID, pillsCount, s.clk.Now())
	if err := s.repo.ApplyRefill(ctx, patientID, event); err != nil {
		return nil, err
	}
	s.collector.AdherenceEventsTotal.WithLabelValues(string(medication.EventRefill)).Inc()

	s.log.Info("refill recorded",
		zap.String("medication_id", medicationID.String()),
		zap.Int("pills", pillsCount),
	)
	return event, nil
}

// AdherenceRate is TAKEN / (TAKEN + MISSED) over the trailing window, and 0
// when the window holds no events.
func (s *InventoryService) AdherenceRate(ctx context.Context, patientID, medicationID uuid.UUID, window time.Duration) (float64, error) {
	if window <= 0 {
		return 0, &ValidationError{Fields: []string{"window must be positive"}}
	}

	since := s.clk.Now().Add(-window)
	counts, err := s.repo.CountEventsSince(ctx, patientID, medicationID, since)
	if err != nil {
		return 0, err
	}

	total := counts.Taken + counts.Missed
	if total == 0 {
		return 0, nil
	}
	return float64(counts.Taken) / float64(total), nil
}

func (s *InventoryService) applyWithRetry(ctx context.Context, patientID uuid.UUID, event *medication.AdherenceEvent) error {
	var err error
	for attempt := 0; attempt < decrementRetries; attempt++ {
		err = s.repo.ApplyDecrement(ctx, patientID, event)
		if errors.Is(err, medication.ErrInsufficientStock) {
			s.collector.InsufficientStockTotal.Inc()
			return err
		}
		if !errors.Is(err, medication.ErrWriteConflict) {
			return err
		}
		s.collector.WriteConflictRetries.Inc()
		s.log.Warn("write conflict on inventory decrement, retrying",
			zap.String("medication_id", event.MedicationID.String()),
			zap.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("inventory decrement after %d attempts: %w", decrementRetries, err)
}
