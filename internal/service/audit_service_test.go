package service

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurahealth/aura/internal/domain"
)

// blockingAuditRepo holds every Create until release is closed, so the test
// can fill the buffer deterministically.
type blockingAuditRepo struct {
	release chan struct{}
	mu      sync.Mutex
	created int
}

var _ AuditRepository = (*blockingAuditRepo)(nil)

func (r *blockingAuditRepo) Create(_ context.Context, _ *domain.AuditLog) error {
	<-r.release
	r.mu.Lock()
	r.created++
	r.mu.Unlock()
	return nil
}

func TestAuditService_CountsWritesAndDrops(t *testing.T) {
	repo := &blockingAuditRepo{release: make(chan struct{})}
	collector := testCollector()
	svc := NewAuditService(repo, collector, zap.NewNop())

	total := auditBufferSize + 10
	for i := 0; i < total; i++ {
		svc.LogAsync(context.Background(), AuditEntry{
			Action:       "read",
			ResourceType: "patient",
		})
	}

	dropped := testutil.ToFloat64(collector.AuditBufferDropped)
	require.GreaterOrEqual(t, dropped, 1.0, "overflow past the buffer must be counted as dropped")

	close(repo.release)
	svc.Shutdown()

	written := testutil.ToFloat64(collector.AuditEntriesTotal)
	assert.Equal(t, float64(total)-dropped, written)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, repo.created, int(written))
}
