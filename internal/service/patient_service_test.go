package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/crypto"
	"github.com/aurahealth/aura/internal/domain/patient"
	"github.com/aurahealth/aura/internal/sharding"
)

type patientStore struct {
	patientRepoStub
	records map[uuid.UUID]*patient.Record
}

func newPatientStore() *patientStore {
	store := &patientStore{records: map[uuid.UUID]*patient.Record{}}
	store.createFn = func(_ context.Context, rec *patient.Record) error {
		store.records[rec.ID] = rec
		return nil
	}
	store.getByIDFn = func(_ context.Context, id uuid.UUID) (*patient.Record, error) {
		rec, ok := store.records[id]
		if !ok {
			return nil, patient.ErrPatientNotFound
		}
		return rec, nil
	}
	store.updateFn = func(_ context.Context, rec *patient.Record) error {
		if _, ok := store.records[rec.ID]; !ok {
			return patient.ErrPatientNotFound
		}
		store.records[rec.ID] = rec
		return nil
	}
	store.deleteFn = func(_ context.Context, id uuid.UUID) error {
		if _, ok := store.records[id]; !ok {
			return patient.ErrPatientNotFound
		}
		delete(store.records, id)
		return nil
	}
	return store
}

func newTestPatientService(t *testing.T, store *patientStore) *PatientService {
	t.Helper()
	provider, err := crypto.NewStaticProvider("unit-test-master-key-32-bytes!!!")
	require.NoError(t, err)
	engine, err := crypto.NewEngine(provider, 1000)
	require.NoError(t, err)
	auditSvc := NewAuditService(&auditRepoStub{}, testCollector(), zap.NewNop())
	return NewPatientService(store, engine, auditSvc, testCollector(), zap.NewNop())
}

func TestPatientService_CreateEncryptsAtRest(t *testing.T) {
	store := newPatientStore()
	svc := newTestPatientService(t, store)

	data, err := svc.CreatePatient(context.Background(), &patient.CreateCommand{
		Name:           "  Jane Roe  ",
		MedicalHistory: "type 2 diabetes",
	}, uuid.New(), "clinician", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Roe", data.Name)

	rec := store.records[data.ID]
	require.NotNil(t, rec)
	assert.NotContains(t, string(rec.EncryptedName), "Jane")
	assert.NotContains(t, string(rec.EncryptedHistory), "diabetes")
}

func TestPatientService_CountsCreatedPatients(t *testing.T) {
	store := newPatientStore()
	provider, err := crypto.NewStaticProvider("unit-test-master-key-32-bytes!!!")
	require.NoError(t, err)
	engine, err := crypto.NewEngine(provider, 1000)
	require.NoError(t, err)
	collector := testCollector()
	auditSvc := NewAuditService(&auditRepoStub{}, collector, zap.NewNop())
	svc := NewPatientService(store, engine, auditSvc, collector, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := svc.CreatePatient(context.Background(), &patient.CreateCommand{
			Name: "Jane Roe",
		}, uuid.New(), "clinician", "10.0.0.1")
		require.NoError(t, err)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.PatientsCreatedTotal))
}

func TestPatientService_GetDecrypts(t *testing.T) {
	store := newPatientStore()
	svc := newTestPatientService(t, store)
	ctx := context.Background()

	created, err := svc.CreatePatient(ctx, &patient.CreateCommand{
		Name:           "Sam Lee",
		MedicalHistory: "hypertension",
	}, uuid.New(), "admin", "")
	require.NoError(t, err)

	got, err := svc.GetPatient(ctx, created.ID, uuid.New(), "clinician", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "Sam Lee", got.Name)
	assert.Equal(t, "hypertension", got.MedicalHistory)
}

func TestPatientService_PatientReadsOwnRecordOnly(t *testing.T) {
	store := newPatientStore()
	svc := newTestPatientService(t, store)
	ctx := context.Background()

	created, err := svc.CreatePatient(ctx, &patient.CreateCommand{Name: "Ana"}, uuid.New(), "admin", "")
	require.NoError(t, err)

	otherID := uuid.New()
	_, err = svc.GetPatient(ctx, created.ID, uuid.New(), "patient", &otherID, "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.GetPatient(ctx, created.ID, uuid.New(), "patient", nil, "")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := svc.GetPatient(ctx, created.ID, uuid.New(), "patient", &created.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
}

func TestPatientService_UpdateReencrypts(t *testing.T) {
	store := newPatientStore()
	svc := newTestPatientService(t, store)
	ctx := context.Background()

	created, err := svc.CreatePatient(ctx, &patient.CreateCommand{Name: "Old Name"}, uuid.New(), "admin", "")
	require.NoError(t, err)

	newName := "New Name"
	updated, err := svc.UpdatePatient(ctx, created.ID, &patient.UpdateCommand{Name: &newName}, uuid.New(), "clinician", "")
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)

	_, err = svc.UpdatePatient(ctx, created.ID, &patient.UpdateCommand{}, uuid.New(), "clinician", "")
	var validErr *ValidationError
	assert.ErrorAs(t, err, &validErr)

	_, err = svc.UpdatePatient(ctx, created.ID, &patient.UpdateCommand{Name: &newName}, uuid.New(), "patient", "")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPatientService_DeleteRequiresPrivilegedRole(t *testing.T) {
	store := newPatientStore()
	svc := newTestPatientService(t, store)
	ctx := context.Background()

	created, err := svc.CreatePatient(ctx, &patient.CreateCommand{Name: "To Remove"}, uuid.New(), "admin", "")
	require.NoError(t, err)

	err = svc.DeletePatient(ctx, created.ID, uuid.New(), "caregiver", "")
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.DeletePatient(ctx, created.ID, uuid.New(), "admin", "")
	require.NoError(t, err)

	_, err = svc.GetPatient(ctx, created.ID, uuid.New(), "admin", nil, "")
	assert.ErrorIs(t, err, patient.ErrPatientNotFound)
}

func TestPatientService_SurfacesIntegrityFault(t *testing.T) {
	store := newPatientStore()
	svc := newTestPatientService(t, store)
	ctx := context.Background()

	id := uuid.New()
	store.getByIDFn = func(context.Context, uuid.UUID) (*patient.Record, error) {
		return nil, &sharding.IntegrityError{PatientID: id.String(), Expected: 1, Stored: 3}
	}

	_, err := svc.GetPatient(ctx, id, uuid.New(), "admin", nil, "")
	var integrityErr *sharding.IntegrityError
	require.ErrorAs(t, err, &integrityErr)
	assert.Equal(t, 1, integrityErr.Expected)
	assert.Equal(t, 3, integrityErr.Stored)
}
