package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/domain"
	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/domain/patient"
	"github.com/aurahealth/aura/internal/frequency"
)

type patientRepoStub struct {
	createFn  func(ctx context.Context, rec *patient.Record) error
	getByIDFn func(ctx context.Context, id uuid.UUID) (*patient.Record, error)
	updateFn  func(ctx context.Context, rec *patient.Record) error
	deleteFn  func(ctx context.Context, id uuid.UUID) error
}

var _ patient.Repository = (*patientRepoStub)(nil)

func (s *patientRepoStub) Create(ctx context.Context, rec *patient.Record) error {
	return s.createFn(ctx, rec)
}

func (s *patientRepoStub) GetByID(ctx context.Context, id uuid.UUID) (*patient.Record, error) {
	return s.getByIDFn(ctx, id)
}

func (s *patientRepoStub) Update(ctx context.Context, rec *patient.Record) error {
	return s.updateFn(ctx, rec)
}

func (s *patientRepoStub) Delete(ctx context.Context, id uuid.UUID) error {
	return s.deleteFn(ctx, id)
}

func knownPatient(id uuid.UUID) *patientRepoStub {
	return &patientRepoStub{
		getByIDFn: func(_ context.Context, got uuid.UUID) (*patient.Record, error) {
			if got != id {
				return nil, patient.ErrPatientNotFound
			}
			return &patient.Record{ID: id}, nil
		},
	}
}

func newTestMedicationService(stub *ledgerStub, patients *patientRepoStub) *MedicationService {
	auditSvc := NewAuditService(&auditRepoStub{}, testCollector(), zap.NewNop())
	return NewMedicationService(stub, patients, frequency.NewParser(), auditSvc, testCollector(), zap.NewNop(), 5)
}

type auditRepoStub struct{}

func (auditRepoStub) Create(context.Context, *domain.AuditLog) error { return nil }

func TestMedicationService_CreateSeedsInventory(t *testing.T) {
	patientID := uuid.New()
	stub := newLedgerStub()
	svc := newTestMedicationService(stub, knownPatient(patientID))

	med, err := svc.CreateMedication(context.Background(), &medication.CreateCommand{
		PatientID:       patientID,
		DrugName:        "Amoxicillin",
		Strength:        "500mg",
		FrequencyText:   "TID",
		DurationDays:    7,
		DosagePerIntake: 1,
	}, uuid.New(), "clinician", "127.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, 21, med.TotalPills)
	assert.Equal(t, 21, med.PillsRemaining)
	assert.Equal(t, 5, med.RefillThreshold)
	assert.Equal(t, 3, med.Schedule.DosesPerDay)

	stored, err := stub.GetByID(context.Background(), patientID, med.ID)
	require.NoError(t, err)
	assert.Equal(t, med.TotalPills, stored.TotalPills)
}

func TestMedicationService_LowConfidenceRequiresConfirmation(t *testing.T) {
	patientID := uuid.New()
	stub := newLedgerStub()
	svc := newTestMedicationService(stub, knownPatient(patientID))

	cmd := &medication.CreateCommand{
		PatientID:       patientID,
		DrugName:        "Mystery Tonic",
		FrequencyText:   "whenever it hurts",
		DurationDays:    10,
		DosagePerIntake: 1,
	}

	_, err := svc.CreateMedication(context.Background(), cmd, uuid.New(), "clinician", "")
	require.ErrorIs(t, err, ErrScheduleUnconfirmed)
	assert.Empty(t, stub.meds, "unconfirmed schedule is never persisted")

	cmd.ConfirmSchedule = true
	med, err := svc.CreateMedication(context.Background(), cmd, uuid.New(), "clinician", "")
	require.NoError(t, err)
	assert.Equal(t, 10, med.TotalPills, "low confidence default is one dose per day")
}

func TestMedicationService_UnknownPatient(t *testing.T) {
	stub := newLedgerStub()
	svc := newTestMedicationService(stub, knownPatient(uuid.New()))

	_, err := svc.CreateMedication(context.Background(), &medication.CreateCommand{
		PatientID:       uuid.New(),
		DrugName:        "Amoxicillin",
		FrequencyText:   "QD",
		DurationDays:    7,
		DosagePerIntake: 1,
	}, uuid.New(), "clinician", "")
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestMedicationService_Validation(t *testing.T) {
	stub := newLedgerStub()
	svc := newTestMedicationService(stub, knownPatient(uuid.New()))

	_, err := svc.CreateMedication(context.Background(), &medication.CreateCommand{
		PatientID:       uuid.New(),
		DrugName:        "",
		FrequencyText:   "",
		DurationDays:    0,
		DosagePerIntake: 0,
	}, uuid.New(), "clinician", "")

	var validErr *ValidationError
	require.ErrorAs(t, err, &validErr)
	assert.Len(t, validErr.Fields, 4)
}

func TestMedicationService_PreviewDoesNotPersist(t *testing.T) {
	stub := newLedgerStub()
	svc := newTestMedicationService(stub, knownPatient(uuid.New()))

	result, err := svc.PreviewSchedule("1-0-1", 1, 30)
	require.NoError(t, err)
	assert.Equal(t, 60, result.TotalPills)
	assert.Equal(t, frequency.ConfidenceHigh, result.Confidence)
	assert.Empty(t, stub.meds)
}
