// Package config loads service configuration from the environment, with an optional .env file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	CustomerSourceDB   = "db"
	CustomerSourceHTTP = "http"

	StatusCacheMemory = "memory"
	StatusCacheRedis  = "redis"
)

type Config struct {
	AppName                       string   `mapstructure:"APP_NAME"`
	Version                       string   `mapstructure:"APP_VERSION"`
	Port                          int      `mapstructure:"PORT"`
	LogLevel                      string   `mapstructure:"LOG_LEVEL"`
	PrettyLogs                    bool     `mapstructure:"PRETTY_LOGS"`
	HttpServerWriteTimeoutSeconds int      `mapstructure:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS"`
	HttpServerReadTimeoutSeconds  int      `mapstructure:"HTTP_SERVER_READ_TIMEOUT_SECONDS"`
	HttpServerIdleTimeoutSeconds  int      `mapstructure:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS"`
	MaxHeaderBytes                int      `mapstructure:"HTTP_SERVER_MAX_HEADER_BYTES"`
	ReadHeaderTimeoutSeconds      int      `mapstructure:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS"`
	AllowOrigins                  []string `mapstructure:"HTTP_SERVER_ALLOW_ORIGINS"`
	AllowMethods                  []string `mapstructure:"HTTP_SERVER_ALLOW_METHODS"`
	StartupMaxAttempts            int      `mapstructure:"STARTUP_MAX_ATTEMPTS"`

	// PostgreSQL
	DatabaseDriver                string        `mapstructure:"DB_DRIVER"`
	DatabaseHost                  string        `mapstructure:"DB_HOST"`
	DatabasePort                  string        `mapstructure:"DB_PORT"`
	DatabaseUserName              string        `mapstructure:"DB_USER_NAME"`
	DatabasePassword              string        `mapstructure:"DB_PASSWORD"`
	DatabaseName                  string        `mapstructure:"DB_NAME"`
	DatabaseSSLMode               string        `mapstructure:"DB_SQL_MODE"`
	DatabaseMaxOpenConns          int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DatabaseMaxIdleConns          int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DatabaseConnMaxLifetime       time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME"`
	DatabaseMigrationFolderPath   string        `mapstructure:"DB_MIGRATION_FOLDER_PATH"`
	DatabaseMigrationVersion      int           `mapstructure:"DB_MIGRATION_VERSION"`
	DatabaseMigrationForce        int           `mapstructure:"DB_MIGRATION_FORCE"`
	DatabaseMigrationAutoRollback bool          `mapstructure:"DB_MIGRATION_AUTO_ROLLBACK"`
	DatabaseMigrateOnStart        bool          `mapstructure:"DB_MIGRATE_ON_START"`

	// Auth. When disabled the profile id is read from the X-User-ID header.
	AuthEnabled   bool   `mapstructure:"AUTH_ENABLED"`
	AuthIssuerURL string `mapstructure:"AUTH_ISSUER_URL"`
	AuthClientID  string `mapstructure:"AUTH_CLIENT_ID"`

	// Matching
	MatchThreshold float64 `mapstructure:"MATCH_THRESHOLD"`

	// CRM customer source
	CRMSource         string        `mapstructure:"CRM_SOURCE"`
	CRMBaseURL        string        `mapstructure:"CRM_BASE_URL"`
	CRMAPIKey         string        `mapstructure:"CRM_API_KEY"`
	CRMPageSize       int           `mapstructure:"CRM_PAGE_SIZE"`
	CRMRecordsPath    string        `mapstructure:"CRM_RECORDS_PATH"`
	CRMNextCursorPath string        `mapstructure:"CRM_NEXT_CURSOR_PATH"`
	CRMTimeout        time.Duration `mapstructure:"CRM_TIMEOUT"`

	// Status cache
	StatusCacheBackend string        `mapstructure:"STATUS_CACHE_BACKEND"`
	StatusCacheTTL     time.Duration `mapstructure:"STATUS_CACHE_TTL"`
	StatusCacheMaxSize int           `mapstructure:"STATUS_CACHE_MAX_SIZE"`

	// Redis
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// Kafka producer (package sync requests)
	KafkaEnabled      bool     `mapstructure:"KAFKA_ENABLED"`
	KafkaBrokers      []string `mapstructure:"KAFKA_BROKERS"`
	KafkaOutputTopic  string   `mapstructure:"KAFKA_OUTPUT_TOPIC"`
	KafkaBatchSize    int      `mapstructure:"KAFKA_BATCH_SIZE"`
	KafkaBatchTimeout int      `mapstructure:"KAFKA_BATCH_TIMEOUT_MS"`
	KafkaRequiredAcks int      `mapstructure:"KAFKA_REQUIRED_ACKS"`
	KafkaCompression  string   `mapstructure:"KAFKA_COMPRESSION"`

	// Backfill
	BackfillBatchSize  int           `mapstructure:"BACKFILL_BATCH_SIZE"`
	BackfillBatchPause time.Duration `mapstructure:"BACKFILL_BATCH_PAUSE"`

	// Tracing
	TracingEnabled  bool   `mapstructure:"TRACING_ENABLED"`
	TracingEndpoint string `mapstructure:"TRACING_ENDPOINT"`
	TracingProtocol string `mapstructure:"TRACING_PROTOCOL"`
	TracingInsecure bool   `mapstructure:"TRACING_INSECURE"`
}

var defaults = map[string]any{
	"APP_NAME":                                "fescue-api",
	"APP_VERSION":                             "dev",
	"PORT":                                    3004,
	"LOG_LEVEL":                               "info",
	"PRETTY_LOGS":                             false,
	"HTTP_SERVER_WRITE_TIMEOUT_SECONDS":       10,
	"HTTP_SERVER_READ_TIMEOUT_SECONDS":        10,
	"HTTP_SERVER_IDLE_TIMEOUT_SECONDS":        10,
	"HTTP_SERVER_MAX_HEADER_BYTES":            64000, // 64KB
	"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS": 10,
	"HTTP_SERVER_ALLOW_ORIGINS":               "*",
	"HTTP_SERVER_ALLOW_METHODS":               "GET,POST",
	"STARTUP_MAX_ATTEMPTS":                    5,

	"DB_DRIVER":                  "postgres",
	"DB_HOST":                    "",
	"DB_PORT":                    "5432",
	"DB_USER_NAME":               "",
	"DB_PASSWORD":                "",
	"DB_NAME":                    "fescue",
	"DB_SQL_MODE":                "disable",
	"DB_MAX_OPEN_CONNS":          25,
	"DB_MAX_IDLE_CONNS":          10,
	"DB_CONN_MAX_LIFETIME":       "10s",
	"DB_MIGRATION_FOLDER_PATH":   "db/pg",
	"DB_MIGRATION_VERSION":       0,
	"DB_MIGRATION_FORCE":         0,
	"DB_MIGRATION_AUTO_ROLLBACK": true,
	"DB_MIGRATE_ON_START":        false,

	"AUTH_ENABLED":    false,
	"AUTH_ISSUER_URL": "",
	"AUTH_CLIENT_ID":  "",

	"MATCH_THRESHOLD": 0.6,

	"CRM_SOURCE":           CustomerSourceDB,
	"CRM_BASE_URL":         "",
	"CRM_API_KEY":          "",
	"CRM_PAGE_SIZE":        500,
	"CRM_RECORDS_PATH":     "data",
	"CRM_NEXT_CURSOR_PATH": "meta.next_cursor",
	"CRM_TIMEOUT":          "30s",

	"STATUS_CACHE_BACKEND":  StatusCacheMemory,
	"STATUS_CACHE_TTL":      "5m",
	"STATUS_CACHE_MAX_SIZE": 10000,

	"REDIS_HOST":     "localhost",
	"REDIS_PORT":     6379,
	"REDIS_PASSWORD": "",
	"REDIS_DB":       0,

	"KAFKA_ENABLED":          false,
	"KAFKA_BROKERS":          "localhost:9092",
	"KAFKA_OUTPUT_TOPIC":     "profile-events",
	"KAFKA_BATCH_SIZE":       100,
	"KAFKA_BATCH_TIMEOUT_MS": 100,
	"KAFKA_REQUIRED_ACKS":    1,
	"KAFKA_COMPRESSION":      "snappy",

	"BACKFILL_BATCH_SIZE":  100,
	"BACKFILL_BATCH_PAUSE": "1s",

	"TRACING_ENABLED":  false,
	"TRACING_ENDPOINT": "localhost:4317",
	"TRACING_PROTOCOL": "grpc",
	"TRACING_INSECURE": true,
}

// Load reads an optional .env file (files default to ".env") and then the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// a missing file is fine; the environment may carry everything
		_ = godotenv.Load(f)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.AllowOrigins = splitList(cfg.AllowOrigins)
	cfg.AllowMethods = splitList(cfg.AllowMethods)
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the combinations Load cannot default.
func (c *Config) Validate() error {
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0, 1], got %v", c.MatchThreshold)
	}

	switch c.CRMSource {
	case CustomerSourceDB:
	case CustomerSourceHTTP:
		if c.CRMBaseURL == "" {
			return fmt.Errorf("CRM_BASE_URL is required when CRM_SOURCE=%s", CustomerSourceHTTP)
		}
	default:
		return fmt.Errorf("unknown CRM_SOURCE %q", c.CRMSource)
	}

	switch c.StatusCacheBackend {
	case StatusCacheMemory, StatusCacheRedis:
	default:
		return fmt.Errorf("unknown STATUS_CACHE_BACKEND %q", c.StatusCacheBackend)
	}

	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return fmt.Errorf("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED=true")
	}

	return nil
}

// splitList accepts both repeated values and a single comma-separated value.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
