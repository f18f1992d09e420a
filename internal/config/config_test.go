package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnvFile(t *testing.T) {
	t.Helper()
	t.Setenv("AUCTION_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.Port)
	assert.Empty(t, c.DatabaseDSN)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 5*time.Minute, c.ExtendWindow)
	assert.Equal(t, 5*time.Minute, c.ExtendBy)
	assert.Equal(t, 80.0, c.MinPositivePercent)
	assert.Equal(t, uint64(3), c.MaxTxRetries)
	assert.Equal(t, 30*time.Second, c.SweepInterval)
	require.NoError(t, c.Validate())
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	noEnvFile(t)
	t.Setenv("AUCTION_PORT", ":9090")
	t.Setenv("AUCTION_DATABASE_DSN", "postgres://localhost/auctions")
	t.Setenv("AUCTION_EXTEND_WINDOW", "2m")
	t.Setenv("AUCTION_MIN_POSITIVE_PERCENT", "90.5")
	t.Setenv("AUCTION_MAX_TX_RETRIES", "7")

	c, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Port)
	assert.Equal(t, "postgres://localhost/auctions", c.DatabaseDSN)
	assert.Equal(t, 2*time.Minute, c.ExtendWindow)
	assert.Equal(t, 5*time.Minute, c.ExtendBy)
	assert.Equal(t, 90.5, c.MinPositivePercent)
	assert.Equal(t, uint64(7), c.MaxTxRetries)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	noEnvFile(t)
	t.Setenv("AUCTION_PORT", ":9090")
	t.Setenv("AUCTION_LOG_LEVEL", "warn")

	c, err := Load([]string{"-a", ":7070", "-w=1m", "-test.v", "-unknown", "x", "-r", "0"})
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.Port)
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, time.Minute, c.ExtendWindow)
	assert.Equal(t, uint64(0), c.MaxTxRetries)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AUCTION_LOG_LEVEL=debug\nAUCTION_SWEEP_INTERVAL=10s\n"), 0o600))
	t.Setenv("AUCTION_ENV_FILE", path)
	t.Cleanup(func() {
		_ = os.Unsetenv("AUCTION_LOG_LEVEL")
		_ = os.Unsetenv("AUCTION_SWEEP_INTERVAL")
	})

	c, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 10*time.Second, c.SweepInterval)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "bad_duration", env: map[string]string{"AUCTION_EXTEND_BY": "soon"}},
		{name: "bad_percent", env: map[string]string{"AUCTION_MIN_POSITIVE_PERCENT": "most"}},
		{name: "bad_retries", env: map[string]string{"AUCTION_MAX_TX_RETRIES": "-1"}},
		{name: "percent_out_of_range", args: []string{"-m", "120"}},
		{name: "zero_window", args: []string{"-w", "0s"}},
		{name: "bad_flag_value", args: []string{"-i", "often"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			noEnvFile(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load(tc.args)
			require.Error(t, err)
		})
	}
}

func TestFilterArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "separate_value", args: []string{"-a", ":1", "-x", "y"}, want: []string{"-a", ":1"}},
		{name: "equals_form", args: []string{"-d=dsn", "--other=1"}, want: []string{"-d=dsn"}},
		{name: "flag_without_value", args: []string{"-s", "-l", "debug"}, want: []string{"-s", "-l", "debug"}},
		{name: "empty", args: nil, want: []string{}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, filterArgs(tc.args, allowedFlags))
		})
	}
}
