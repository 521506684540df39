package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseline(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("MASTER_ENCRYPTION_KEY", "dev-master-key")
	t.Setenv("JWT_SECRET", "dev-jwt-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBaseline(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "aura-api", cfg.App.Name)
	assert.Equal(t, 2, cfg.Sharding.Count)
	require.Len(t, cfg.Sharding.Shards, 2)
	assert.Equal(t, "aurahealth_shard0", cfg.Sharding.Shards[0].Name)
	assert.Equal(t, "aurahealth_shard1", cfg.Sharding.Shards[1].Name)
	assert.Equal(t, KeySourceEnv, cfg.Encryption.KeySource)
	assert.Equal(t, 100_000, cfg.Encryption.KDFIterations)
	assert.Equal(t, RefillRuleAbsolute, cfg.Refill.Rule)
	assert.Equal(t, 5, cfg.Refill.DefaultThreshold)
	assert.False(t, cfg.Alerts.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenTTL)
}

func TestLoad_PerShardOverrides(t *testing.T) {
	setBaseline(t)
	t.Setenv("AURA_SHARD_COUNT", "4")
	t.Setenv("DB_SHARD2_HOST", "shard2.internal")
	t.Setenv("DB_SHARD2_PORT", "6000")

	cfg, err := Load()
	require.NoError(t, err)

	require.Len(t, cfg.Sharding.Shards, 4)
	assert.Equal(t, "shard2.internal", cfg.Sharding.Shards[2].Host)
	assert.Equal(t, 6000, cfg.Sharding.Shards[2].Port)
	assert.Contains(t, cfg.Sharding.Shards[2].DSN(), "host=shard2.internal")
}

func TestLoad_RequiresMasterKeyForEnvSource(t *testing.T) {
	setBaseline(t)
	t.Setenv("MASTER_ENCRYPTION_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MASTER_ENCRYPTION_KEY")
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	setBaseline(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_RejectsBadRefillRule(t *testing.T) {
	setBaseline(t)
	t.Setenv("REFILL_RULE", "sometimes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFILL_RULE")
}

func TestLoad_FractionRuleBounds(t *testing.T) {
	setBaseline(t)
	t.Setenv("REFILL_RULE", "fraction")
	t.Setenv("REFILL_FRACTION", "1.5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFILL_FRACTION")

	t.Setenv("REFILL_FRACTION", "0.25")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Refill.Fraction)
}

func TestLoad_ProductionHardening(t *testing.T) {
	setBaseline(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("ENCRYPTION_KDF_ITERATIONS", "500")
	t.Setenv("DB_SHARD0_SSLMODE", "disable")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "ENCRYPTION_KDF_ITERATIONS")
	assert.Contains(t, msg, "SSLMODE")
	assert.Contains(t, msg, "MASTER_ENCRYPTION_KEY must be at least 32 bytes")
	assert.True(t, strings.Contains(msg, "PASSWORD"))
}

func TestLoad_KafkaBrokerList(t *testing.T) {
	setBaseline(t)
	t.Setenv("ALERTS_ENABLED", "true")
	t.Setenv("ALERTS_KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Alerts.Enabled)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Alerts.Brokers)
}
