package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/config"
	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/notify"
	"github.com/aurahealth/aura/pkg/metrics"
)

// RefillScanner is the read surface the evaluator needs: per-shard candidate
// scans plus per-patient lookups.
type RefillScanner interface {
	ListNeedingRefill(ctx context.Context, shardID int, fraction float64) ([]*medication.Medication, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*medication.Medication, error)
	ShardCount() int
}

// RefillService decides which active medications need a refill. Evaluation is
// read-only and idempotent; running it twice produces the same alerts and no
// state change. Depleted medications never alert.
type RefillService struct {
	scanner   RefillScanner
	sender    notify.Sender
	cfg       config.RefillConfig
	collector *metrics.Collector
	log       *zap.Logger
}

func NewRefillService(scanner RefillScanner, sender notify.Sender, cfg config.RefillConfig, collector *metrics.Collector, log *zap.Logger) *RefillService {
	return &RefillService{
		scanner:   scanner,
		sender:    sender,
		cfg:       cfg,
		collector: collector,
		log:       log,
	}
}

// needsAlert applies the configured rule to one medication.
func (s *RefillService) needsAlert(med *medication.Medication) bool {
	if !med.IsActive() {
		return false
	}
	switch s.cfg.Rule {
	case config.RefillRuleFraction:
		return med.RemainingFraction() < s.cfg.Fraction
	default:
		return med.NeedsRefill()
	}
}

func (s *RefillService) buildAlert(med *medication.Medication) notify.RefillAlert {
	return notify.RefillAlert{
		PatientID:       med.PatientID,
		MedicationID:    med.ID,
		DrugName:        med.DrugName,
		Strength:        med.Strength,
		PillsRemaining:  med.PillsRemaining,
		TotalPills:      med.TotalPills,
		PillsNeeded:     med.TotalPills - med.PillsRemaining,
		RefillThreshold: med.RefillThreshold,
		PharmacyName:    med.PharmacyName,
		PharmacyPhone:   med.PharmacyPhone,
		ContactLink:     notify.WhatsAppLink(med.PharmacyPhone, med.DrugName, med.Strength, med.PillsRemaining),
	}
}

// EvaluatePatient returns alerts for one patient's medications without
// publishing anything.
func (s *RefillService) EvaluatePatient(ctx context.Context, patientID uuid.UUID) ([]notify.RefillAlert, error) {
	meds, err := s.scanner.ListByPatient(ctx, patientID, true)
	if err != nil {
		return nil, err
	}

	alerts := make([]notify.RefillAlert, 0, len(meds))
	for _, med := range meds {
		if s.needsAlert(med) {
			alerts = append(alerts, s.buildAlert(med))
		}
	}
	return alerts, nil
}

// EvaluateAll scans every shard and publishes an alert per flagged
// medication. Publish failures are logged and skipped; the sweep finishes.
func (s *RefillService) EvaluateAll(ctx context.Context) (int, error) {
	fraction := 0.0
	if s.cfg.Rule == config.RefillRuleFraction {
		fraction = s.cfg.Fraction
	}

	published := 0
	for shardID := 0; shardID < s.scanner.ShardCount(); shardID++ {
		meds, err := s.scanner.ListNeedingRefill(ctx, shardID, fraction)
		if err != nil {
			return published, err
		}

		for _, med := range meds {
			if !s.needsAlert(med) {
				continue
			}
			alert := s.buildAlert(med)
			if err := s.sender.Send(ctx, alert); err != nil {
				s.log.Error("failed to publish refill alert",
					zap.String("medication_id", med.ID.String()),
					zap.Error(err),
				)
				continue
			}
			s.collector.RefillAlertsTotal.Inc()
			published++
		}
	}

	s.log.Info("refill sweep complete", zap.Int("alerts_published", published))
	return published, nil
}
