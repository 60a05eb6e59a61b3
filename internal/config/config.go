package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config holds the settings of the wavechan command.
type Config struct {
	URL       string `env:"WAVECHAN_URL,required"`
	Token     string `env:"WAVECHAN_TOKEN"`
	TokenFile string `env:"WAVECHAN_TOKEN_FILE"`
	Origin    string `env:"WAVECHAN_ORIGIN"`

	RetryDelay time.Duration `env:"WAVECHAN_RETRY_DELAY" envDefault:"3s"`
	BackoffMax time.Duration `env:"WAVECHAN_BACKOFF_MAX"`

	HeartbeatInterval time.Duration `env:"WAVECHAN_HEARTBEAT_INTERVAL" envDefault:"30s"`
	HeartbeatTimeout  time.Duration `env:"WAVECHAN_HEARTBEAT_TIMEOUT" envDefault:"90s"`

	LogLevel string `env:"WAVECHAN_LOG_LEVEL" envDefault:"info"`

	Redis RedisConfig
}

// RedisConfig configures the optional relay of inbound events to Redis.
type RedisConfig struct {
	Addr     string `env:"WAVECHAN_REDIS_ADDR"`
	Password string `env:"WAVECHAN_REDIS_PASSWORD"`
	DB       int    `env:"WAVECHAN_REDIS_DB" envDefault:"0"`
	Channel  string `env:"WAVECHAN_REDIS_CHANNEL" envDefault:"wavechan:events"`
}

// Enabled reports whether events should be relayed.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Token == "" && c.TokenFile == "" {
		return fmt.Errorf("one of WAVECHAN_TOKEN or WAVECHAN_TOKEN_FILE is required")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("WAVECHAN_RETRY_DELAY must be positive, got %s", c.RetryDelay)
	}
	if c.BackoffMax != 0 && c.BackoffMax < c.RetryDelay {
		return fmt.Errorf("WAVECHAN_BACKOFF_MAX (%s) is below WAVECHAN_RETRY_DELAY (%s)", c.BackoffMax, c.RetryDelay)
	}
	if c.HeartbeatInterval < 0 || c.HeartbeatTimeout < 0 {
		return fmt.Errorf("heartbeat settings must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("WAVECHAN_LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the parsed log level. Load has already validated it.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// ReadToken returns the credential from TokenFile when set, Token otherwise.
// The file is read on every call so a rotated token is picked up by the next
// connection attempt.
func (c Config) ReadToken() (string, error) {
	if c.TokenFile == "" {
		return c.Token, nil
	}
	bts, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(bts)), nil
}
