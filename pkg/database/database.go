package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/aurahealth/aura/internal/config"
	"github.com/aurahealth/aura/internal/domain"
	"github.com/aurahealth/aura/internal/domain/medication"
	"github.com/aurahealth/aura/internal/domain/patient"
)

// ShardSet holds one gorm connection per shard, indexed by the shard id the
// router computes. Shard 0 additionally hosts the unsharded system tables
// (users, audit logs).
type ShardSet struct {
	shards []*gorm.DB
}

func Connect(cfg config.ShardingConfig) (*ShardSet, error) {
	if len(cfg.Shards) != cfg.Count {
		return nil, fmt.Errorf("shard config mismatch: count=%d but %d shard configs", cfg.Count, len(cfg.Shards))
	}

	shards := make([]*gorm.DB, 0, cfg.Count)
	for i, sc := range cfg.Shards {
		db, err := connectOne(sc)
		if err != nil {
			return nil, fmt.Errorf("connecting shard %d: %w", i, err)
		}
		shards = append(shards, db)
	}
	return &ShardSet{shards: shards}, nil
}

func connectOne(cfg config.ShardDatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DSN(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

func (s *ShardSet) Count() int {
	return len(s.shards)
}

// Shard returns the connection for a routed shard id.
func (s *ShardSet) Shard(id int) (*gorm.DB, error) {
	if id < 0 || id >= len(s.shards) {
		return nil, fmt.Errorf("shard %d out of range [0,%d)", id, len(s.shards))
	}
	return s.shards[id], nil
}

// System returns the connection hosting the unsharded tables.
func (s *ShardSet) System() *gorm.DB {
	return s.shards[0]
}

// Migrate runs schema migrations on every shard. Patient and medication
// tables exist on all shards; users and audit logs only on the system shard.
func (s *ShardSet) Migrate(log *zap.Logger) error {
	log.Info("running database migrations", zap.Int("shards", len(s.shards)))
	start := time.Now()

	sharded := []any{
		&patient.Record{},
		&medication.Medication{},
		&medication.AdherenceEvent{},
	}

	for i, db := range s.shards {
		if err := db.AutoMigrate(sharded...); err != nil {
			return fmt.Errorf("auto-migrating shard %d: %w", i, err)
		}
		if err := createIndexes(db); err != nil {
			return fmt.Errorf("creating indexes on shard %d: %w", i, err)
		}
	}

	system := []any{
		&domain.User{},
		&domain.AuditLog{},
	}
	if err := s.System().AutoMigrate(system...); err != nil {
		return fmt.Errorf("auto-migrating system tables: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		{
			name:  "idx_medications_needing_refill",
			query: `CREATE INDEX IF NOT EXISTS idx_medications_needing_refill ON medications (patient_id, pills_remaining) WHERE pills_remaining > 0`,
		},
		{
			name:  "idx_adherence_events_window",
			query: `CREATE INDEX IF NOT EXISTS idx_adherence_events_window ON adherence_events (medication_id, event_type, created_at)`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}

	return nil
}
