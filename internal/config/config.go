package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App        AppConfig
	Server     ServerConfig
	Sharding   ShardingConfig
	Encryption EncryptionConfig
	Refill     RefillConfig
	Alerts     AlertsConfig
	JWT        JWTConfig
	Log        LogConfig
	Tracing    TracingConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Version     string
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ShardingConfig fixes the shard topology for the lifetime of the process.
// Changing Count against existing data invalidates every stored routing
// decision and requires an offline migration, not a config change.
type ShardingConfig struct {
	Count  int
	Shards []ShardDatabaseConfig
}

type ShardDatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d ShardDatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s Timezone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// KeySource selects where the 32-byte master encryption key comes from.
type KeySource string

const (
	KeySourceEnv            KeySource = "env"
	KeySourceSecretsManager KeySource = "secretsmanager"
)

type EncryptionConfig struct {
	KeySource KeySource
	// MasterKey is only honored when KeySource is "env".
	MasterKey string
	// SecretID and Region locate the key in AWS Secrets Manager.
	SecretID string
	Region   string
	// KDFIterations is the PBKDF2 work factor for per-user key derivation.
	KDFIterations int
}

// RefillRule selects which threshold check the alert evaluator applies.
type RefillRule string

const (
	RefillRuleFraction RefillRule = "fraction"
	RefillRuleAbsolute RefillRule = "absolute"
)

type RefillConfig struct {
	Rule RefillRule
	// Fraction alerts when pills_remaining / total_pills drops below it.
	Fraction float64
	// DefaultThreshold seeds refill_threshold on new medications.
	DefaultThreshold int
}

type AlertsConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Issuer          string
}

type LogConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	SampleRate  float64
}

func Load() (*Config, error) {
	shardCount := getEnvInt("AURA_SHARD_COUNT", 2)

	shards := make([]ShardDatabaseConfig, 0, shardCount)
	for i := 0; i < shardCount; i++ {
		prefix := fmt.Sprintf("DB_SHARD%d", i)
		shards = append(shards, ShardDatabaseConfig{
			Host:            getEnv(prefix+"_HOST", "localhost"),
			Port:            getEnvInt(prefix+"_PORT", 5432+i),
			Name:            getEnv(prefix+"_NAME", fmt.Sprintf("aurahealth_shard%d", i)),
			User:            getEnv(prefix+"_USER", "aurahealth"),
			Password:        getEnv(prefix+"_PASSWORD", ""),
			SSLMode:         getEnv(prefix+"_SSLMODE", "require"),
			MaxOpenConns:    getEnvInt(prefix+"_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt(prefix+"_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration(prefix+"_CONN_MAX_LIFETIME", 30*time.Minute),
		})
	}

	cfg := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "aura-api"),
			Environment: getEnv("APP_ENV", "development"),
			Version:     getEnv("APP_VERSION", "0.0.0"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Sharding: ShardingConfig{
			Count:  shardCount,
			Shards: shards,
		},
		Encryption: EncryptionConfig{
			KeySource:     KeySource(getEnv("ENCRYPTION_KEY_SOURCE", "env")),
			MasterKey:     getEnv("MASTER_ENCRYPTION_KEY", ""),
			SecretID:      getEnv("ENCRYPTION_SECRET_ID", "aurahealth/master-key"),
			Region:        getEnv("AWS_REGION", "us-east-1"),
			KDFIterations: getEnvInt("ENCRYPTION_KDF_ITERATIONS", 100_000),
		},
		Refill: RefillConfig{
			Rule:             RefillRule(getEnv("REFILL_RULE", "absolute")),
			Fraction:         getEnvFloat("REFILL_FRACTION", 0.2),
			DefaultThreshold: getEnvInt("REFILL_DEFAULT_THRESHOLD", 5),
		},
		Alerts: AlertsConfig{
			Enabled: getEnvBool("ALERTS_ENABLED", false),
			Brokers: getEnvSlice("ALERTS_KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("ALERTS_KAFKA_TOPIC", "aura.refill-alerts"),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", ""),
			AccessTokenTTL:  getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour),
			Issuer:          getEnv("JWT_ISSUER", "aura-api"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "aura-api"),
			Endpoint:    getEnv("OTLP_ENDPOINT", "localhost:4318"),
			SampleRate:  getEnvFloat("TRACING_SAMPLE_RATE", 0.1),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate enforces production security requirements.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Sharding.Count < 1 {
		errs = append(errs, "AURA_SHARD_COUNT must be at least 1")
	}

	switch cfg.Encryption.KeySource {
	case KeySourceEnv:
		if cfg.Encryption.MasterKey == "" {
			errs = append(errs, "MASTER_ENCRYPTION_KEY is required when ENCRYPTION_KEY_SOURCE=env")
		} else if len(cfg.Encryption.MasterKey) < 32 && cfg.App.Environment == "production" {
			errs = append(errs, "MASTER_ENCRYPTION_KEY must be at least 32 bytes in production")
		}
	case KeySourceSecretsManager:
		if cfg.Encryption.SecretID == "" {
			errs = append(errs, "ENCRYPTION_SECRET_ID is required when ENCRYPTION_KEY_SOURCE=secretsmanager")
		}
	default:
		errs = append(errs, fmt.Sprintf("unrecognized ENCRYPTION_KEY_SOURCE %q", cfg.Encryption.KeySource))
	}

	if cfg.Encryption.KDFIterations < 10_000 && cfg.App.Environment == "production" {
		errs = append(errs, "ENCRYPTION_KDF_ITERATIONS below 10000 is not allowed in production")
	}

	switch cfg.Refill.Rule {
	case RefillRuleFraction:
		if cfg.Refill.Fraction <= 0 || cfg.Refill.Fraction >= 1 {
			errs = append(errs, "REFILL_FRACTION must be in (0, 1)")
		}
	case RefillRuleAbsolute:
		if cfg.Refill.DefaultThreshold < 0 {
			errs = append(errs, "REFILL_DEFAULT_THRESHOLD cannot be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("unrecognized REFILL_RULE %q", cfg.Refill.Rule))
	}

	if cfg.JWT.Secret == "" {
		errs = append(errs, "JWT_SECRET is required")
	} else if len(cfg.JWT.Secret) < 32 && cfg.App.Environment == "production" {
		errs = append(errs, "JWT_SECRET must be at least 32 characters in production")
	}

	for i, s := range cfg.Sharding.Shards {
		if s.Password == "" && cfg.App.Environment != "development" {
			errs = append(errs, fmt.Sprintf("DB_SHARD%d_PASSWORD is required in non-development environments", i))
		}
		if s.SSLMode == "disable" && cfg.App.Environment == "production" {
			errs = append(errs, fmt.Sprintf("DB_SHARD%d_SSLMODE=disable is not allowed in production", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
