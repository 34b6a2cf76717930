package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/fees"
)

const sampleConfig = `
listen_address: "127.0.0.1:7000"
max_workers: 8
log_level: debug
fees:
  FPS:
    protocol: 1000
    referrer: 500
  fpb:
    protocol: 2000
    max_curator: 10000
tokens:
  - symbol: USDC
    address: "0x0000000000000000000000000000000000001000"
    decimals: 6
    balances:
      "0x000000000000000000000000000000000000b0e4": "10000"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "auctionhouse.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	assert.NoError(t, err)

	check.Equal(t, "127.0.0.1:7000", cfg.ListenAddress)
	check.Equal(t, 8, cfg.MaxWorkers)
	check.Equal(t, "debug", cfg.LogLevel)
	check.Equal(t, ":9090", cfg.MetricsAddress)
	check.Equal(t, "", cfg.ReceiptKeyPath)

	schedules := cfg.FeeSchedules()
	check.Equal(t, fees.Schedule{Protocol: 1000, Referrer: 500}, schedules[core.Keycode("FPS")])
	check.Equal(t, fees.Schedule{Protocol: 2000, MaxCurator: 10000}, schedules[core.Keycode("FPB")])

	assert.Equal(t, 1, len(cfg.Tokens))
	check.Equal(t, uint8(6), cfg.Tokens[0].Decimals)
	check.Equal(t, "10000", cfg.Tokens[0].Balances["0x000000000000000000000000000000000000b0e4"])
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("AUCTIONHOUSE_MAX_WORKERS", "3")
	t.Setenv("AUCTIONHOUSE_LOG_LEVEL", "warn")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	assert.NoError(t, err)
	check.Equal(t, 3, cfg.MaxWorkers)
	check.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	check.NotNil(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(c *Config)
		errorSubstring string
	}{
		{name: "no workers", mutate: func(c *Config) { c.MaxWorkers = 0 }, errorSubstring: "max_workers"},
		{name: "bad owner", mutate: func(c *Config) { c.Owner = "alice" }, errorSubstring: "owner"},
		{name: "fee too high", mutate: func(c *Config) { c.Fees["fps"] = fees.Schedule{Protocol: 90_000, Referrer: 20_000} }, errorSubstring: "fees.fps"},
		{name: "token decimals", mutate: func(c *Config) { c.Tokens[0].Decimals = 2 }, errorSubstring: "token USDC"},
		{name: "duplicate symbol", mutate: func(c *Config) { c.Tokens[1].Symbol = "usdc" }, errorSubstring: "duplicate symbol"},
		{name: "bad holder", mutate: func(c *Config) { c.Tokens[0].Balances["nobody"] = "1" }, errorSubstring: "invalid holder"},
	}

	check.NoError(t, testConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.NotNil(t, err)
			check.True(t, strings.Contains(err.Error(), tt.errorSubstring))
		})
	}
}
