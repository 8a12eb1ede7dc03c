package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                        int    `env:"PORT" envDefault:"3001"`
	ClientURL                   string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`
	DatabaseURL                 string `env:"DATABASE_URL,required"`
	RedisURL                    string `env:"REDIS_URL"`
	LogLevel                    string `env:"LOG_LEVEL" envDefault:"info"`
	SessionTTLHours             int    `env:"SESSION_TTL_HOURS" envDefault:"12"`
	GlobalWipeIntervalHours     int    `env:"GLOBAL_WIPE_INTERVAL_HOURS" envDefault:"12"`
	SessionSweepIntervalMinutes int    `env:"SESSION_SWEEP_INTERVAL_MINUTES" envDefault:"60"`
	HistoryLimit                int    `env:"HISTORY_LIMIT" envDefault:"50"`
	RateLimitWindowMS           int    `env:"RATE_LIMIT_WINDOW_MS" envDefault:"10000"`
	RateLimitMax                int    `env:"RATE_LIMIT_MAX" envDefault:"10"`
	MaxImageBytes               int    `env:"MAX_IMAGE_BYTES" envDefault:"5242880"`
	BcryptCost                  int    `env:"BCRYPT_COST" envDefault:"10"`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) GlobalWipeInterval() time.Duration {
	return time.Duration(c.GlobalWipeIntervalHours) * time.Hour
}

func (c *Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.SessionSweepIntervalMinutes) * time.Minute
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowMS) * time.Millisecond
}

// MaxImageDataLen is the longest accepted data URI. Base64 inflates binary by 4/3, so the
// limit on encoded text is the binary limit scaled by 1.4.
func (c *Config) MaxImageDataLen() int {
	return c.MaxImageBytes * 14 / 10
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// AllowedOrigins returns the CORS allow-list derived from CLIENT_URL (comma separated).
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ClientURL, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func (c *Config) Validate() error {
	positive := map[string]int{
		"SESSION_TTL_HOURS":              c.SessionTTLHours,
		"GLOBAL_WIPE_INTERVAL_HOURS":     c.GlobalWipeIntervalHours,
		"SESSION_SWEEP_INTERVAL_MINUTES": c.SessionSweepIntervalMinutes,
		"HISTORY_LIMIT":                  c.HistoryLimit,
		"RATE_LIMIT_WINDOW_MS":           c.RateLimitWindowMS,
		"RATE_LIMIT_MAX":                 c.RateLimitMax,
		"MAX_IMAGE_BYTES":                c.MaxImageBytes,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}

	if c.RedisURL == "" {
		log.Warn().Msg("REDIS_URL is empty: using in-memory message rate limiter")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
