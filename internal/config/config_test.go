package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMemoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORAGE_DRIVER", StorageMemory)
	t.Setenv("SERVER_HOST", "")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("RESTAURANT_TIMEZONE", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "")
	t.Setenv("AVAILABILITY_CACHE_TTL", "")
	t.Setenv("QUEUE_WAIT_PER_PARTY", "")
	t.Setenv("IDEMPOTENCY_TTL", "")
}

func TestNew_MemoryDefaults(t *testing.T) {
	setMemoryEnv(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicBaseURL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Limits.RatePerMinute)
	assert.Equal(t, 15*time.Second, cfg.Limits.AvailabilityTTL)
	assert.Equal(t, 2*time.Hour, cfg.Limits.IdempotencyTTL)
	assert.Equal(t, 10*time.Minute, cfg.Restaurant.WaitPerParty)
	assert.NotNil(t, cfg.Restaurant.Location)
}

func TestNew_Overrides(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("RESTAURANT_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("QUEUE_WAIT_PER_PARTY", "7m")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "America/Sao_Paulo", cfg.Restaurant.Location.String())
	assert.Equal(t, 7*time.Minute, cfg.Restaurant.WaitPerParty)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port", "SERVER_PORT", "http"},
		{"driver", "STORAGE_DRIVER", "sqlite"},
		{"timezone", "RESTAURANT_TIMEZONE", "Mars/Olympus"},
		{"wait", "QUEUE_WAIT_PER_PARTY", "ten"},
		{"ttl", "AVAILABILITY_CACHE_TTL", "15"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMemoryEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := New()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config.New")
		})
	}
}

func TestNew_PostgresRequiresCredentials(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("STORAGE_DRIVER", StoragePostgres)
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")
}

func TestNew_PostgresRequiresJWTSecret(t *testing.T) {
	setMemoryEnv(t)
	t.Setenv("STORAGE_DRIVER", StoragePostgres)
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "tablego")
	t.Setenv("POSTGRES_PORT", "")
	t.Setenv("POSTGRES_MAX_CONNS", "8")
	t.Setenv("POSTGRES_AUTO_MIGRATE", "true")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.Postgres.MaxConns)
	assert.True(t, cfg.Postgres.AutoMigrate)
	assert.Equal(t, "postgres://app:pw@localhost:5432/tablego?sslmode=disable", cfg.Postgres.DSN())
}
