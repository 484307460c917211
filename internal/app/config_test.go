package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("LOCK_TTL", "5s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, 5*time.Second, cfg.LockTTL)
	require.Equal(t, "0 6 * * *", cfg.LowStockScanCron)
	require.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestLoadConfigRejectsZeroLockTTL(t *testing.T) {
	t.Setenv("LOCK_TTL", "0s")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConnectionOptions(t *testing.T) {
	t.Setenv("PG_MAX_CONNS", "4")
	t.Setenv("REDIS_DB", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	pool := cfg.PoolOptions()
	require.Equal(t, int32(4), pool.MaxConns)
	require.Equal(t, "odyssey-stock", pool.ApplicationName)
	redisOpts := cfg.RedisOptions()
	require.Equal(t, 2, redisOpts.DB)
	require.Equal(t, cfg.RedisAddr, redisOpts.Addr)
}

func TestLoadConfigRejectsInvertedPool(t *testing.T) {
	t.Setenv("PG_MAX_CONNS", "2")
	t.Setenv("PG_MIN_CONNS", "3")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "true")
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	require.False(t, InTestMode())

	t.Setenv(testModeEnv, "garbage")
	require.False(t, InTestMode())
}
