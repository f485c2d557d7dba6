package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		cfg, err := Load(viper.New())
		require.NoError(t, err)

		assert.Equal(t, ":3001", cfg.HTTPAddr)
		assert.Equal(t, "sqlite", cfg.DatabaseDriver)
		assert.Equal(t, "local", cfg.LockBackend)
		assert.Equal(t, 10*time.Second, cfg.LockTTL)
		assert.Equal(t, 3, cfg.BankingHorizonYears)
		assert.Equal(t, 100, cfg.RateLimitRequests)
		assert.Equal(t, time.Minute, cfg.RateLimitWindow)
		assert.Equal(t, "local", cfg.RateLimitBackend)
	})

	t.Run("should require redis for the redis rate limiter", func(t *testing.T) {
		v := viper.New()
		v.Set("ratelimit.backend", "redis")
		_, err := Load(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ratelimit.backend redis")

		v.Set("redis.url", "redis://localhost:6379/0")
		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.RateLimitBackend)
	})

	t.Run("should read environment overrides", func(t *testing.T) {
		t.Setenv("FLEETCOMPLIANCE_DATABASE_DRIVER", "memory")
		t.Setenv("FLEETCOMPLIANCE_BANKING_HORIZON_YEARS", "5")
		t.Setenv("FLEETCOMPLIANCE_LOCK_BACKEND", "etcd")
		t.Setenv("FLEETCOMPLIANCE_ETCD_ENDPOINTS", "10.0.0.1:2379, 10.0.0.2:2379")

		v := viper.New()
		BindEnv(v)
		cfg, err := Load(v)
		require.NoError(t, err)

		assert.Equal(t, "memory", cfg.DatabaseDriver)
		assert.Equal(t, 5, cfg.BankingHorizonYears)
		assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.EtcdEndpoints)
	})

	t.Run("should reject invalid combinations", func(t *testing.T) {
		v := viper.New()
		v.Set("database.driver", "oracle")
		v.Set("lock.backend", "redis")
		v.Set("banking.horizon_years", 0)

		_, err := Load(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
		assert.Contains(t, err.Error(), "redis.url")
		assert.Contains(t, err.Error(), "horizon_years")
	})

	t.Run("should require influx org and bucket", func(t *testing.T) {
		v := viper.New()
		v.Set("influx.url", "http://localhost:8086")

		_, err := Load(v)
		assert.Error(t, err)
	})
}
