package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/fees"
)

// Config is the service configuration, read from auctionhouse.yaml and AUCTIONHOUSE_* environment
// variables.
type Config struct {
	ListenAddress  string `mapstructure:"listen_address"`
	MaxWorkers     int    `mapstructure:"max_workers"`
	MetricsAddress string `mapstructure:"metrics_address"`
	LogLevel       string `mapstructure:"log_level"`

	Owner    string `mapstructure:"owner"`
	Protocol string `mapstructure:"protocol"`
	Engine   string `mapstructure:"engine_address"`
	Permit2  string `mapstructure:"permit2_address"`

	// ReceiptKeyPath is a PEM encoded P-256 key. Empty generates a key at startup.
	ReceiptKeyPath string `mapstructure:"receipt_key_path"`

	Fees   map[string]fees.Schedule `mapstructure:"fees"`
	Tokens []TokenConfig            `mapstructure:"tokens"`
}

// TokenConfig is a devnet genesis token. Balances map holder addresses to human amounts.
type TokenConfig struct {
	Symbol   string            `mapstructure:"symbol"`
	Address  string            `mapstructure:"address"`
	Decimals uint8             `mapstructure:"decimals"`
	Balances map[string]string `mapstructure:"balances"`
}

// LoadConfig reads path if it is non-empty, otherwise auctionhouse.yaml from the working directory
// when present. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("listen_address", ":5000")
	v.SetDefault("max_workers", 16)
	v.SetDefault("metrics_address", ":9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("owner", "0x00000000000000000000000000000000000000aa")
	v.SetDefault("protocol", "0x00000000000000000000000000000000000000bb")
	v.SetDefault("engine_address", "0x00000000000000000000000000000000000e6e6e")
	v.SetDefault("permit2_address", "0x000000000022D473030F116dDEE9F6B43aC78BA3")
	v.SetDefault("receipt_key_path", "")

	v.SetEnvPrefix("AUCTIONHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("auctionhouse")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks addresses, worker count, fee bounds and token decimals.
func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	for name, addr := range map[string]string{
		"owner":           c.Owner,
		"protocol":        c.Protocol,
		"engine_address":  c.Engine,
		"permit2_address": c.Permit2,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s: invalid address %q", name, addr)
		}
	}
	for keycode, schedule := range c.Fees {
		if err := schedule.Validate(); err != nil {
			return fmt.Errorf("fees.%s: %w", keycode, err)
		}
	}
	seen := make(map[string]bool)
	for _, t := range c.Tokens {
		if t.Symbol == "" {
			return fmt.Errorf("token %s: missing symbol", t.Address)
		}
		if seen[strings.ToUpper(t.Symbol)] {
			return fmt.Errorf("token %s: duplicate symbol", t.Symbol)
		}
		seen[strings.ToUpper(t.Symbol)] = true
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("token %s: invalid address %q", t.Symbol, t.Address)
		}
		if err := core.ValidateDecimals(t.Decimals); err != nil {
			return fmt.Errorf("token %s: %w", t.Symbol, err)
		}
		for holder := range t.Balances {
			if !common.IsHexAddress(holder) {
				return fmt.Errorf("token %s: invalid holder %q", t.Symbol, holder)
			}
		}
	}
	return nil
}

// FeeSchedules returns the configured schedules keyed by module keycode. Viper lowercases map keys.
func (c *Config) FeeSchedules() map[core.Keycode]fees.Schedule {
	out := make(map[core.Keycode]fees.Schedule, len(c.Fees))
	for k, s := range c.Fees {
		out[core.Keycode(strings.ToUpper(k))] = s
	}
	return out
}
