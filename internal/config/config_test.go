package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3001}
		assert.Equal(t, ":3001", cfg.Addr())
	})

	t.Run("SessionTTL converts hours to duration", func(t *testing.T) {
		cfg := &Config{SessionTTLHours: 12}
		assert.Equal(t, 12*time.Hour, cfg.SessionTTL())
	})

	t.Run("RateLimitWindow converts milliseconds to duration", func(t *testing.T) {
		cfg := &Config{RateLimitWindowMS: 10000}
		assert.Equal(t, 10*time.Second, cfg.RateLimitWindow())
	})

	t.Run("SessionSweepInterval converts minutes to duration", func(t *testing.T) {
		cfg := &Config{SessionSweepIntervalMinutes: 60}
		assert.Equal(t, time.Hour, cfg.SessionSweepInterval())
	})

	t.Run("MaxImageDataLen scales binary limit for base64", func(t *testing.T) {
		cfg := &Config{MaxImageBytes: 5 * 1024 * 1024}
		assert.Equal(t, 7340032, cfg.MaxImageDataLen())
	})

	t.Run("AllowedOrigins splits and trims", func(t *testing.T) {
		cfg := &Config{ClientURL: "http://localhost:5173, https://chat.example.com ,"}
		assert.Equal(t, []string{"http://localhost:5173", "https://chat.example.com"}, cfg.AllowedOrigins())
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			SessionTTLHours:             12,
			GlobalWipeIntervalHours:     12,
			SessionSweepIntervalMinutes: 60,
			HistoryLimit:                50,
			RateLimitWindowMS:           10000,
			RateLimitMax:                10,
			MaxImageBytes:               1024,
			BcryptCost:                  10,
			RedisURL:                    "redis://localhost:6379",
		}
	}

	t.Run("accepts defaults", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects non-positive limit", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimitMax = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RATE_LIMIT_MAX")
	})

	t.Run("rejects bcrypt cost out of range", func(t *testing.T) {
		cfg := valid()
		cfg.BcryptCost = 2
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "CLIENT_URL", "DATABASE_URL", "REDIS_URL", "LOG_LEVEL",
		"SESSION_TTL_HOURS", "HISTORY_LIMIT", "RATE_LIMIT_MAX",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		for _, k := range keys {
			if k != "DATABASE_URL" {
				os.Unsetenv(k)
			}
		}

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3001, cfg.Port)
		assert.Equal(t, "http://localhost:5173", cfg.ClientURL)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "", cfg.RedisURL)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 12, cfg.SessionTTLHours)
		assert.Equal(t, 12, cfg.GlobalWipeIntervalHours)
		assert.Equal(t, 50, cfg.HistoryLimit)
		assert.Equal(t, 10000, cfg.RateLimitWindowMS)
		assert.Equal(t, 10, cfg.RateLimitMax)
		assert.Equal(t, 10, cfg.BcryptCost)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "4000")
		os.Setenv("RATE_LIMIT_MAX", "20")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 4000, cfg.Port)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, 20, cfg.RateLimitMax)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}
