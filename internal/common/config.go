// Package common provides shared utilities for Folio
package common

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/dstanton/folio/internal/interfaces"
)

// Config holds all configuration for Folio
type Config struct {
	Environment  string          `toml:"environment"`
	BaseCurrency string          `toml:"base_currency"` // System default base currency for users without a profile preference
	Server       ServerConfig    `toml:"server"`
	Storage      StorageConfig   `toml:"storage"`
	Clients      ClientsConfig   `toml:"clients"`
	Scheduler    SchedulerConfig `toml:"scheduler"`
	Logging      LoggingConfig   `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds storage configuration for the 2 storage areas.
type StorageConfig struct {
	Internal AreaConfig `toml:"internal"` // User accounts + system KV (BadgerHold)
	User     AreaConfig `toml:"user"`     // Holdings + snapshots (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	FreeCurrency FreeCurrencyConfig `toml:"freecurrency"`
	AlphaVantage MarketAPIConfig    `toml:"alphavantage"`
	FMP          MarketAPIConfig    `toml:"fmp"`
}

// FreeCurrencyConfig holds FX rate API configuration
type FreeCurrencyConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *FreeCurrencyConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// MarketAPIConfig holds a market data API configuration
type MarketAPIConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *MarketAPIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SchedulerConfig holds background job configuration
type SchedulerConfig struct {
	SnapshotHourUTC int    `toml:"snapshot_hour_utc"` // Hour of day (UTC) the daily snapshot job fires
	RefreshInterval string `toml:"refresh_interval"`  // Interval between bulk price refreshes
	RefreshTimeout  string `toml:"refresh_timeout"`   // Per-symbol timeout within a refresh batch
}

// GetRefreshInterval parses and returns the price refresh interval
func (c *SchedulerConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// GetRefreshTimeout parses and returns the per-symbol refresh timeout
func (c *SchedulerConfig) GetRefreshTimeout() time.Duration {
	d, err := time.ParseDuration(c.RefreshTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment:  "development",
		BaseCurrency: "GBP",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Internal: AreaConfig{Path: "data/internal"},
			User:     AreaConfig{Path: "data/user"},
		},
		Clients: ClientsConfig{
			FreeCurrency: FreeCurrencyConfig{
				BaseURL:   "https://api.freecurrencyapi.com/v1",
				RateLimit: 5,
				Timeout:   "15s",
			},
			AlphaVantage: MarketAPIConfig{
				BaseURL:   "https://www.alphavantage.co",
				RateLimit: 5,
				Timeout:   "30s",
			},
			FMP: MarketAPIConfig{
				BaseURL:   "https://financialmodelingprep.com",
				RateLimit: 10,
				Timeout:   "30s",
			},
		},
		Scheduler: SchedulerConfig{
			SnapshotHourUTC: 21, // after US market close
			RefreshInterval: "15m",
			RefreshTimeout:  "5s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// Apply environment overrides
	applyEnvOverrides(config)

	// Normalize base currency
	config.BaseCurrency = strings.ToUpper(strings.TrimSpace(config.BaseCurrency))
	if config.BaseCurrency == "" {
		config.BaseCurrency = "GBP"
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FOLIO_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FOLIO_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FOLIO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FOLIO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FOLIO_DATA_PATH"); path != "" {
		config.Storage.Internal.Path = filepath.Join(path, "internal")
		config.Storage.User.Path = filepath.Join(path, "user")
	}

	if bc := os.Getenv("FOLIO_BASE_CURRENCY"); bc != "" {
		config.BaseCurrency = strings.ToUpper(bc)
	}

	if key := os.Getenv("FOLIO_FREECURRENCY_API_KEY"); key != "" {
		config.Clients.FreeCurrency.APIKey = key
	}
	if key := os.Getenv("FOLIO_ALPHAVANTAGE_API_KEY"); key != "" {
		config.Clients.AlphaVantage.APIKey = key
	}
	if key := os.Getenv("FOLIO_FMP_API_KEY"); key != "" {
		config.Clients.FMP.APIKey = key
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment, InternalStore, or fallback.
// Returns an empty string without error when the key is simply unconfigured —
// callers treat a missing key as "provider unavailable", not a failure.
func ResolveAPIKey(ctx context.Context, store interfaces.InternalStore, name string, fallback string) string {
	keyToEnvMapping := map[string][]string{
		"freecurrency_api_key": {"FREECURRENCY_API_KEY", "FOLIO_FREECURRENCY_API_KEY"},
		"alphavantage_api_key": {"ALPHAVANTAGE_API_KEY", "FOLIO_ALPHAVANTAGE_API_KEY"},
		"fmp_api_key":          {"FMP_API_KEY", "FOLIO_FMP_API_KEY"},
	}

	// Environment variables first (highest priority)
	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue
			}
		}
	}

	// InternalStore system KV (medium priority)
	if store != nil {
		if apiKey, err := store.GetSystemKV(ctx, name); err == nil && apiKey != "" {
			return apiKey
		}
	}

	return fallback
}
