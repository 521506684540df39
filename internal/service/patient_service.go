package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/crypto"
	"github.com/aurahealth/aura/internal/domain/patient"
	"github.com/aurahealth/aura/internal/sharding"
	"github.com/aurahealth/aura/pkg/metrics"
)

type PatientService struct {
	repo      patient.Repository
	engine    *crypto.Engine
	auditSvc  *AuditService
	collector *metrics.Collector
	log       *zap.Logger
}

func NewPatientService(repo patient.Repository, engine *crypto.Engine, auditSvc *AuditService, collector *metrics.Collector, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:      repo,
		engine:    engine,
		auditSvc:  auditSvc,
		collector: collector,
		log:       log,
	}
}

// CreatePatient mints the record id first, because both the encryption key
// derivation and the shard route are functions of that id.
func (s *PatientService) CreatePatient(ctx context.Context, cmd *patient.CreateCommand, callerID uuid.UUID, callerRole string, ip string) (*patient.Data, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return nil, &ValidationError{Fields: []string{"name is required"}}
	}

	id := uuid.New()

	encName, err := s.engine.Encrypt(ctx, name, id.String())
	if err != nil {
		s.log.Error("failed to encrypt patient name", zap.Error(err))
		return nil, fmt.Errorf("encrypting name: %w", err)
	}
	encHistory, err := s.engine.Encrypt(ctx, cmd.MedicalHistory, id.String())
	if err != nil {
		s.log.Error("failed to encrypt medical history", zap.Error(err))
		return nil, fmt.Errorf("encrypting medical history: %w", err)
	}

	rec := &patient.Record{
		ID:               id,
		EncryptedName:    encName,
		EncryptedHistory: encHistory,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}

	s.collector.PatientsCreatedTotal.Inc()
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "create",
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    ip,
	})

	s.log.Info("patient created",
		zap.String("patient_id", id.String()),
		zap.Int("shard_id", rec.ShardID),
		zap.String("created_by", callerID.String()),
	)

	return &patient.Data{
		ID:             id,
		Name:           name,
		MedicalHistory: cmd.MedicalHistory,
		ShardID:        rec.ShardID,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, callerPatientID *uuid.UUID, ip string) (*patient.Data, error) {
	// Patients and caregivers can only read the record they are linked to.
	if callerRole == "patient" || callerRole == "caregiver" {
		if callerPatientID == nil || *callerPatientID != id {
			return nil, ErrForbidden
		}
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.observeReadError(err)
	}

	data, err := s.decryptRecord(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "read",
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    ip,
	})

	return data, nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, id uuid.UUID, cmd *patient.UpdateCommand, callerID uuid.UUID, callerRole string, ip string) (*patient.Data, error) {
	if callerRole == "patient" || callerRole == "caregiver" {
		return nil, ErrForbidden
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.observeReadError(err)
	}

	changed := []string{}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return nil, &ValidationError{Fields: []string{"name cannot be empty"}}
		}
		enc, err := s.engine.Encrypt(ctx, name, id.String())
		if err != nil {
			return nil, fmt.Errorf("encrypting name: %w", err)
		}
		rec.EncryptedName = enc
		changed = append(changed, "name")
	}
	if cmd.MedicalHistory != nil {
		enc, err := s.engine.Encrypt(ctx, *cmd.MedicalHistory, id.String())
		if err != nil {
			return nil, fmt.Errorf("encrypting medical history: %w", err)
		}
		rec.EncryptedHistory = enc
		changed = append(changed, "medical_history")
	}
	if len(changed) == 0 {
		return nil, &ValidationError{Fields: []string{"no fields to update"}}
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	changes, _ := json.Marshal(map[string][]string{"fields": changed})
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "update",
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    ip,
		Changes:      string(changes),
	})

	return s.decryptRecord(ctx, rec)
}

func (s *PatientService) DeletePatient(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) error {
	if callerRole != "admin" && callerRole != "clinician" {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       "delete",
		ResourceType: "patient",
		ResourceID:   id.String(),
		IPAddress:    ip,
	})

	s.log.Info("patient deleted",
		zap.String("patient_id", id.String()),
		zap.String("deleted_by", callerID.String()),
	)
	return nil
}

// observeReadError counts shard pin mismatches before handing the error up.
func (s *PatientService) observeReadError(err error) error {
	var integrityErr *sharding.IntegrityError
	if errors.As(err, &integrityErr) {
		s.collector.ShardMismatchTotal.Inc()
	}
	return err
}

func (s *PatientService) decryptRecord(ctx context.Context, rec *patient.Record) (*patient.Data, error) {
	name, err := s.engine.Decrypt(ctx, rec.EncryptedName, rec.ID.String())
	if err != nil {
		s.collector.DecryptFailuresTotal.Inc()
		s.log.Error("failed to decrypt patient name",
			zap.String("patient_id", rec.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("decrypting name: %w", err)
	}
	history, err := s.engine.Decrypt(ctx, rec.EncryptedHistory, rec.ID.String())
	if err != nil {
		s.collector.DecryptFailuresTotal.Inc()
		s.log.Error("failed to decrypt medical history",
			zap.String("patient_id", rec.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("decrypting medical history: %w", err)
	}

	return &patient.Data{
		ID:             rec.ID,
		Name:           name,
		MedicalHistory: history,
		ShardID:        rec.ShardID,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}
