// Package config loads the server settings. Each layer overrides the one
// before it: defaults, an optional .env file, AUCTION_* environment
// variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings
type Config struct {
	Port string
	// DatabaseDSN selects PostgreSQL storage. Empty runs on the in-memory store with demo data.
	DatabaseDSN        string
	JWTSecret          string
	LogLevel           string
	ExtendWindow       time.Duration
	ExtendBy           time.Duration
	MinPositivePercent float64
	MaxTxRetries       uint64
	SweepInterval      time.Duration
}

// LoadDefaults fills the config with default values
func (c *Config) LoadDefaults() {
	c.Port = ":8080"
	c.DatabaseDSN = ""
	c.JWTSecret = "dev-secret"
	c.LogLevel = "info"
	c.ExtendWindow = 5 * time.Minute
	c.ExtendBy = 5 * time.Minute
	c.MinPositivePercent = 80
	c.MaxTxRetries = 3
	c.SweepInterval = 30 * time.Second
}

// Load builds the config from all layers. args are the command-line
// arguments without the program name; unknown flags are ignored.
func Load(args []string) (*Config, error) {
	c := &Config{}
	c.LoadDefaults()

	envFile := os.Getenv("AUCTION_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv.Load never overrides variables already set in the environment
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read %s: %w", envFile, err)
	}

	if err := c.loadEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.parseFlags(args); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("AUCTION_PORT", &c.Port)
	str("AUCTION_DATABASE_DSN", &c.DatabaseDSN)
	str("AUCTION_JWT_SECRET", &c.JWTSecret)
	str("AUCTION_LOG_LEVEL", &c.LogLevel)

	if err := dur("AUCTION_EXTEND_WINDOW", &c.ExtendWindow); err != nil {
		return err
	}
	if err := dur("AUCTION_EXTEND_BY", &c.ExtendBy); err != nil {
		return err
	}
	if err := dur("AUCTION_SWEEP_INTERVAL", &c.SweepInterval); err != nil {
		return err
	}

	if v, ok := lookup("AUCTION_MIN_POSITIVE_PERCENT"); ok && v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: AUCTION_MIN_POSITIVE_PERCENT: %w", err)
		}
		c.MinPositivePercent = p
	}
	if v, ok := lookup("AUCTION_MAX_TX_RETRIES"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: AUCTION_MAX_TX_RETRIES: %w", err)
		}
		c.MaxTxRetries = n
	}
	return nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	switch {
	case c.Port == "":
		return errors.New("config: empty port")
	case c.JWTSecret == "":
		return errors.New("config: empty JWT secret")
	case c.ExtendWindow <= 0 || c.ExtendBy <= 0:
		return errors.New("config: extension window and duration must be positive")
	case c.MinPositivePercent <= 0 || c.MinPositivePercent > 100:
		return fmt.Errorf("config: minimum positive percent %.1f out of range", c.MinPositivePercent)
	case c.SweepInterval <= 0:
		return errors.New("config: sweep interval must be positive")
	}
	return nil
}
