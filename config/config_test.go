package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 3004, cfg.Port)
	assert.Equal(t, 0.6, cfg.MatchThreshold)
	assert.Equal(t, CustomerSourceDB, cfg.CRMSource)
	assert.Equal(t, "db/pg", cfg.DatabaseMigrationFolderPath)
	assert.Equal(t, 5*time.Minute, cfg.StatusCacheTTL)
	assert.Equal(t, time.Second, cfg.BackfillBatchPause)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"GET", "POST"}, cfg.AllowMethods)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("MATCH_THRESHOLD", "0.75")
	t.Setenv("CRM_SOURCE", "http")
	t.Setenv("CRM_BASE_URL", "https://crm.example.com")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("STATUS_CACHE_TTL", "30s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 0.75, cfg.MatchThreshold)
	assert.Equal(t, CustomerSourceHTTP, cfg.CRMSource)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.StatusCacheTTL)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BACKFILL_BATCH_SIZE=25\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("BACKFILL_BATCH_SIZE") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.BackfillBatchSize)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			MatchThreshold:     0.6,
			CRMSource:          CustomerSourceDB,
			StatusCacheBackend: StatusCacheMemory,
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero threshold", func(c *Config) { c.MatchThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.MatchThreshold = 1.5 }},
		{"http source without url", func(c *Config) { c.CRMSource = CustomerSourceHTTP }},
		{"unknown source", func(c *Config) { c.CRMSource = "ftp" }},
		{"unknown cache", func(c *Config) { c.StatusCacheBackend = "memcached" }},
		{"auth without issuer", func(c *Config) { c.AuthEnabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
