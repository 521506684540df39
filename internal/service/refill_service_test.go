package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/config"
	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/notify"
	"github.com/aurahealth/aura/pkg/metrics"
)

type scannerStub struct {
	shards map[int][]*medication.Medication
}

var _ RefillScanner = (*scannerStub)(nil)

func (s *scannerStub) ListNeedingRefill(_ context.Context, shardID int, fraction float64) ([]*medication.Medication, error) {
	var out []*medication.Medication
	for _, med := range s.shards[shardID] {
		if !med.IsActive() {
			continue
		}
		if fraction > 0 {
			if float64(med.PillsRemaining) < float64(med.TotalPills)*fraction {
				out = append(out, med)
			}
		} else if med.NeedsRefill() {
			out = append(out, med)
		}
	}
	return out, nil
}

func (s *scannerStub) ListByPatient(_ context.Context, patientID uuid.UUID, activeOnly bool) ([]*medication.Medication, error) {
	var out []*medication.Medication
	for _, meds := range s.shards {
		for _, med := range meds {
			if med.PatientID != patientID {
				continue
			}
			if activeOnly && !med.IsActive() {
				continue
			}
			out = append(out, med)
		}
	}
	return out, nil
}

func (s *scannerStub) ShardCount() int { return len(s.shards) }

type senderStub struct {
	mu     sync.Mutex
	sent   []notify.RefillAlert
	sendFn func(alert notify.RefillAlert) error
}

func (s *senderStub) Send(_ context.Context, alert notify.RefillAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendFn != nil {
		if err := s.sendFn(alert); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, alert)
	return nil
}

func (s *senderStub) Close() error { return nil }

func testMed(patientID uuid.UUID, remaining, total, threshold int) *medication.Medication {
	return &medication.Medication{
		ID:              uuid.New(),
		PatientID:       patientID,
		DrugName:        "Lisinopril",
		Strength:        "10mg",
		TotalPills:      total,
		PillsRemaining:  remaining,
		RefillThreshold: threshold,
		PharmacyPhone:   "+1 (555) 010-2030",
	}
}

func absoluteRule() config.RefillConfig {
	return config.RefillConfig{Rule: config.RefillRuleAbsolute, DefaultThreshold: 5}
}

func testCollector() *metrics.Collector {
	return metrics.NewCollector("test", prometheus.NewRegistry())
}

func TestRefillService_AbsoluteRule(t *testing.T) {
	patientID := uuid.New()
	scanner := &scannerStub{shards: map[int][]*medication.Medication{
		0: {
			testMed(patientID, 5, 30, 5),  // at threshold, alerts
			testMed(patientID, 6, 30, 5),  // above threshold
			testMed(patientID, 0, 30, 5),  // depleted, never alerts
			testMed(patientID, 1, 30, 5),  // below threshold
		},
	}}
	svc := NewRefillService(scanner, &senderStub{}, absoluteRule(), testCollector(), zap.NewNop())

	alerts, err := svc.EvaluatePatient(context.Background(), patientID)
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
	for _, alert := range alerts {
		assert.Positive(t, alert.PillsRemaining)
		assert.LessOrEqual(t, alert.PillsRemaining, alert.RefillThreshold)
		assert.Equal(t, alert.TotalPills-alert.PillsRemaining, alert.PillsNeeded)
	}
}

func TestRefillService_FractionRule(t *testing.T) {
	patientID := uuid.New()
	scanner := &scannerStub{shards: map[int][]*medication.Medication{
		0: {
			testMed(patientID, 5, 30, 0),  // 1/6 < 0.2, alerts
			testMed(patientID, 6, 30, 0),  // exactly 0.2, no alert
			testMed(patientID, 29, 30, 0), // nearly full
		},
	}}
	cfg := config.RefillConfig{Rule: config.RefillRuleFraction, Fraction: 0.2}
	svc := NewRefillService(scanner, &senderStub{}, cfg, testCollector(), zap.NewNop())

	alerts, err := svc.EvaluatePatient(context.Background(), patientID)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, 5, alerts[0].PillsRemaining)
	assert.Equal(t, 25, alerts[0].PillsNeeded)
}

func TestRefillService_EvaluateIsIdempotent(t *testing.T) {
	patientID := uuid.New()
	med := testMed(patientID, 2, 30, 5)
	scanner := &scannerStub{shards: map[int][]*medication.Medication{0: {med}}}
	svc := NewRefillService(scanner, &senderStub{}, absoluteRule(), testCollector(), zap.NewNop())

	first, err := svc.EvaluatePatient(context.Background(), patientID)
	require.NoError(t, err)
	second, err := svc.EvaluatePatient(context.Background(), patientID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 2, med.PillsRemaining, "evaluation never mutates the ledger")
}

func TestRefillService_EvaluateAllPublishes(t *testing.T) {
	scanner := &scannerStub{shards: map[int][]*medication.Medication{
		0: {testMed(uuid.New(), 3, 30, 5)},
		1: {testMed(uuid.New(), 4, 30, 5), testMed(uuid.New(), 20, 30, 5)},
	}}
	sender := &senderStub{}
	svc := NewRefillService(scanner, sender, absoluteRule(), testCollector(), zap.NewNop())

	published, err := svc.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.Len(t, sender.sent, 2)

	for _, alert := range sender.sent {
		assert.Contains(t, alert.ContactLink, "https://wa.me/15550102030")
	}
}

func TestRefillService_SendFailuresDoNotAbortSweep(t *testing.T) {
	scanner := &scannerStub{shards: map[int][]*medication.Medication{
		0: {testMed(uuid.New(), 1, 30, 5), testMed(uuid.New(), 2, 30, 5)},
	}}
	failFirst := true
	sender := &senderStub{sendFn: func(notify.RefillAlert) error {
		if failFirst {
			failFirst = false
			return errors.New("broker unreachable")
		}
		return nil
	}}
	svc := NewRefillService(scanner, sender, absoluteRule(), testCollector(), zap.NewNop())

	published, err := svc.EvaluateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, published)
}
