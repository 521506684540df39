package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/domain/patient"
	"github.com/aurahealth/aura/internal/frequency"
	"github.com/aurahealth/aura/pkg/metrics"
)

type MedicationService struct {
	repo        medication.Repository
	patientRepo patient.Repository
	parser      *frequency.Parser
	auditSvc    *AuditService
	collector   *metrics.Collector
	log         *zap.Logger

	defaultRefillThreshold int
}

func NewMedicationService(
	repo medication.Repository,
	patientRepo patient.Repository,
	parser *frequency.Parser,
	auditSvc *AuditService,
	collector *metrics.Collector,
	log *zap.Logger,
	defaultRefillThreshold int,
) *MedicationService {
	return &MedicationService{
		repo:                   repo,
		patientRepo:            patientRepo,
		parser:                 parser,
		auditSvc:               auditSvc,
		collector:              collector,
		log:                    log,
		defaultRefillThreshold: defaultRefillThreshold,
	}
}

// CreateMedication parses the prescription text into a dosing schedule and
// seeds the inventory from it. A LOW-confidence parse is rejected unless the
// caller confirms the derived schedule explicitly.
func (s *MedicationService) CreateMedication(ctx context.Context, cmd *medication.CreateCommand, callerID uuid.UUID, callerRole string, ip string) (*medication.Medication, error) {
	if err := validateMedicationCommand(cmd); err != nil {
		return nil, err
	}

	// Confirms the patient exists and its shard pin is intact before any
	// medication lands on that shard.
	if _, err := s.patientRepo.GetByID(ctx, cmd.PatientID); err != nil {
		return nil, err
	}

	result, err := s.parser.Parse(cmd.FrequencyText, cmd.DosagePerIntake, cmd.DurationDays)
	if err != nil {
		return nil, err
	}

	if result.Confidence == frequency.ConfidenceLow && !cmd.ConfirmSchedule {
		s.log.Info("low confidence parse rejected pending confirmation",
			zap.String("patient_id", cmd.PatientID.String()),
			zap.String("frequency_text", cmd.FrequencyText),
		)
		return nil, ErrScheduleUnconfirmed
	}

	med := &medication.Medication{
		ID:              uuid.New(),
		PatientID:       cmd.PatientID,
		DrugName:        strings.TrimSpace(cmd.DrugName),
		Strength:        strings.TrimSpace(cmd.Strength),
		FrequencyText:   strings.TrimSpace(cmd.FrequencyText),
		Schedule:        result.Schedule,
		DurationDays:    cmd.DurationDays,
		DosagePerIntake: cmd.DosagePerIntake,
		TotalPills:      result.TotalPills,
		PillsRemaining:  result.TotalPills,
		RefillThreshold: s.defaultRefillThreshold,
		PharmacyName:    strings.TrimSpace(cmd.PharmacyName),
		PharmacyPhone:   strings.TrimSpace(cmd.PharmacyPhone),
	}

	if err := s.repo.Create(ctx, med); err != nil {
		s.log.Error("failed to create medication", zap.Error(err))
		return nil, fmt.Errorf("creating medication: %w", err)
	}

	s.collector.MedicationsCreatedTotal.Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "medication",
		ResourceID:   med.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("medication created",
		zap.String("medication_id", med.ID.String()),
		zap.String("patient_id", cmd.PatientID.String()),
		zap.String("drug", med.DrugName),
		zap.Int("total_pills", med.TotalPills),
		zap.String("confidence", string(result.Confidence)),
	)

	return med, nil
}

func (s *MedicationService) GetMedication(ctx context.Context, patientID, medicationID uuid.UUID) (*medication.Medication, error) {
	return s.repo.GetByID(ctx, patientID, medicationID)
}

func (s *MedicationService) ListMedications(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*medication.Medication, error) {
	if _, err := s.patientRepo.GetByID(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.ListByPatient(ctx, patientID, activeOnly)
}

// PreviewSchedule parses without persisting, so a client can show the derived
// schedule before the caller confirms a low confidence result.
func (s *MedicationService) PreviewSchedule(frequencyText string, dosagePerIntake, durationDays int) (frequency.Result, error) {
	return s.parser.Parse(frequencyText, dosagePerIntake, durationDays)
}

func validateMedicationCommand(cmd *medication.CreateCommand) error {
	var errs []string

	if strings.TrimSpace(cmd.DrugName) == "" {
		errs = append(errs, "drug_name is required")
	}
	if strings.TrimSpace(cmd.FrequencyText) == "" {
		errs = append(errs, "frequency_text is required")
	}
	if cmd.DosagePerIntake < 1 {
		errs = append(errs, "dosage_per_intake must be at least 1")
	}
	if cmd.DurationDays < 1 {
		errs = append(errs, "duration_days must be at least 1")
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
