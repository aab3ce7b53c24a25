package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates all runtime configuration so main stays lean.
type Config struct {
	Server    Server
	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
	Docstore  DocstoreConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	AdminToken      string
	ShutdownTimeout time.Duration
}

// PostgresConfig configures the primary datastore.
// An empty URL selects the in-memory stores (development mode).
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the Redis connection.
// An empty URL disables Redis-backed components.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures audit event publication.
// No brokers disables the outbox relay (events stay queryable in postgres).
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

// Enabled reports whether Kafka publication is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// AuthConfig configures reviewer authentication.
type AuthConfig struct {
	JWTSigningKey string
	TokenTTL      time.Duration
	Issuer        string
	Audience      string
	// ReviewerSeed provisions reviewer accounts at startup as
	// comma-separated email:apikey pairs. Memory-store deployments have
	// no other way to create accounts.
	ReviewerSeed string
}

// PipelineConfig bounds verification pipeline execution. Zero thresholds
// and timeouts keep the pipeline's built-in defaults.
type PipelineConfig struct {
	StageTimeout    time.Duration
	DrainTimeout    time.Duration
	OracleVerifiers int

	HighValueThreshold     float64
	UrgentValueThreshold   float64
	CriticalValueThreshold float64
}

// RateLimitConfig bounds per-client request throughput on the
// unauthenticated routes. Zero overrides keep the built-in class limits.
type RateLimitConfig struct {
	Enabled      bool
	SubmitLimit  int
	SubmitWindow time.Duration
	LoginLimit   int
	LoginWindow  time.Duration
}

// AuditConfig tunes the audit publishers.
type AuditConfig struct {
	OpsSampleRate      float64
	SecurityBufferSize int
}

// DocstoreConfig configures the document store client.
type DocstoreConfig struct {
	CacheTTL time.Duration
	// Strict makes Submit reject document refs the store cannot resolve.
	// Off by default: deployments without an upload path ahead of
	// submission would otherwise refuse every request.
	Strict bool
}

// FromEnv builds the full Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: getEnv("ESTATEPROOF_ADDR", ":8080"),
			// Development default - must be overridden in production
			AdminToken:      getEnv("ADMIN_TOKEN", "dev-admin-token-change-in-production"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "estateproof-audit"),
		},
		Auth: AuthConfig{
			JWTSigningKey: getEnv("JWT_SIGNING_KEY",
				// Development default - must be overridden in production
				"dev-secret-key-change-in-production"),
			TokenTTL:     getDuration("JWT_TOKEN_TTL", time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "estateproof"),
			Audience:     getEnv("JWT_AUDIENCE", "reviewers"),
			ReviewerSeed: os.Getenv("REVIEWER_SEED"),
		},
		Pipeline: PipelineConfig{
			StageTimeout:    getDuration("PIPELINE_STAGE_TIMEOUT", 30*time.Second),
			DrainTimeout:    getDuration("PIPELINE_DRAIN_TIMEOUT", 0),
			OracleVerifiers: getInt("PIPELINE_ORACLE_VERIFIERS", 3),

			HighValueThreshold:     getFloat("VALUE_THRESHOLD_HIGH", 0),
			UrgentValueThreshold:   getFloat("VALUE_THRESHOLD_URGENT", 0),
			CriticalValueThreshold: getFloat("VALUE_THRESHOLD_CRITICAL", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:      getBool("RATE_LIMIT_ENABLED", true),
			SubmitLimit:  getInt("RATE_LIMIT_SUBMIT_REQUESTS", 0),
			SubmitWindow: getDuration("RATE_LIMIT_SUBMIT_WINDOW", 0),
			LoginLimit:   getInt("RATE_LIMIT_LOGIN_REQUESTS", 0),
			LoginWindow:  getDuration("RATE_LIMIT_LOGIN_WINDOW", 0),
		},
		Audit: AuditConfig{
			OpsSampleRate:      getFloat("AUDIT_OPS_SAMPLE_RATE", 1.0),
			SecurityBufferSize: getInt("AUDIT_SECURITY_BUFFER", 10000),
		},
		Docstore: DocstoreConfig{
			CacheTTL: getDuration("DOCSTORE_CACHE_TTL", 5*time.Minute),
			Strict:   getBool("DOCSTORE_STRICT", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
