// Package config handles configuration loading for ValutaTrade Hub.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/attacker735/finalproject-malygin-m25-555/internal/apperrors"
	"github.com/attacker735/finalproject-malygin-m25-555/internal/currency"
)

// Config represents the complete application configuration.
type Config struct {
	BaseCurrency string        `mapstructure:"base_currency" yaml:"base_currency"`
	Rates        RatesConfig   `mapstructure:"rates"         yaml:"rates"`
	Storage      StorageConfig `mapstructure:"storage"       yaml:"storage"`
	News         NewsConfig    `mapstructure:"news"          yaml:"news"`
	Logging      LoggingConfig `mapstructure:"logging"       yaml:"logging"`
}

// RatesConfig holds the rate engine settings: freshness window, outbound
// timeout, and the two source endpoints with their currency lists.
type RatesConfig struct {
	TTLSeconds     int          `mapstructure:"ttl_seconds"     yaml:"ttl_seconds"`
	TimeoutSeconds int          `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	CoinGecko      SourceConfig `mapstructure:"coingecko"       yaml:"coingecko"`
	ExchangeRate   SourceConfig `mapstructure:"exchangerate"    yaml:"exchangerate"`
}

// SourceConfig configures one external rate source.
type SourceConfig struct {
	Endpoint   string   `mapstructure:"endpoint"   yaml:"endpoint"`
	APIKey     string   `mapstructure:"api_key"    yaml:"api_key"`
	Currencies []string `mapstructure:"currencies" yaml:"currencies"`
}

// StorageConfig holds the data directory for the JSON file stores and the
// rates snapshot.
type StorageConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// NewsConfig lists the RSS feeds for the news command.
type NewsConfig struct {
	Feeds []FeedConfig `mapstructure:"feeds" yaml:"feeds"`
}

// FeedConfig is one RSS feed.
type FeedConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url"  yaml:"url"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.valutatrade/config.yaml (home directory)
//  3. /etc/valutatrade/config.yaml (system)
//
// Environment variables override config file values.
// Format: VALUTATRADE_<SECTION>_<KEY>, e.g. VALUTATRADE_RATES_TTL_SECONDS.
func Load() (*Config, error) {
	// A .env next to the binary is a convenient place for the API key.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".valutatrade"))
	v.AddConfigPath("/etc/valutatrade")

	v.SetEnvPrefix("VALUTATRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — defaults + env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("VALUTATRADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_currency", "USD")

	v.SetDefault("rates.ttl_seconds", 3600)
	v.SetDefault("rates.timeout_seconds", 10)
	v.SetDefault("rates.coingecko.endpoint", "https://api.coingecko.com/api/v3")
	v.SetDefault("rates.coingecko.currencies", []string{"BTC", "ETH", "SOL"})
	v.SetDefault("rates.exchangerate.endpoint", "https://v6.exchangerate-api.com/v6")
	v.SetDefault("rates.exchangerate.api_key", "")
	v.SetDefault("rates.exchangerate.currencies", []string{"USD", "EUR", "RUB", "GBP"})

	v.SetDefault("storage.dir", "./data")

	v.SetDefault("news.feeds", []map[string]string{
		{"name": "CoinDesk", "url": "https://www.coindesk.com/arc/outboundfeeds/rss/"},
		{"name": "Cointelegraph", "url": "https://cointelegraph.com/rss"},
	})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// TTL returns the rate freshness window as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Rates.TTLSeconds) * time.Second
}

// Timeout returns the outbound request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Rates.TimeoutSeconds) * time.Second
}

// Base returns the base currency code.
func (c *Config) Base() currency.Code {
	return currency.Code(strings.ToUpper(c.BaseCurrency))
}

// Validate checks the configuration against the currency registry. The
// fiat and crypto lists must be disjoint and correctly partitioned by
// kind; that partition is a hard invariant, not a precedence rule.
func (c *Config) Validate(registry *currency.Registry) error {
	if c.Rates.TTLSeconds <= 0 {
		return fmt.Errorf("%w: rates.ttl_seconds must be positive", apperrors.ErrValidation)
	}
	if c.Rates.TimeoutSeconds <= 0 {
		return fmt.Errorf("%w: rates.timeout_seconds must be positive", apperrors.ErrValidation)
	}

	seen := make(map[currency.Code]string)
	checkList := func(raw []string, want currency.Kind, field string) error {
		for _, rawCode := range raw {
			cur, err := registry.Get(rawCode)
			if err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
			if cur.Kind != want {
				return fmt.Errorf("%w: %s lists %s, which is a %s currency", apperrors.ErrValidation, field, cur.Code, cur.Kind)
			}
			if other, dup := seen[cur.Code]; dup {
				return fmt.Errorf("%w: %s appears in both %s and %s", apperrors.ErrValidation, cur.Code, other, field)
			}
			seen[cur.Code] = field
		}
		return nil
	}
	if err := checkList(c.Rates.ExchangeRate.Currencies, currency.Fiat, "rates.exchangerate.currencies"); err != nil {
		return err
	}
	if err := checkList(c.Rates.CoinGecko.Currencies, currency.Crypto, "rates.coingecko.currencies"); err != nil {
		return err
	}

	base, err := registry.Get(c.BaseCurrency)
	if err != nil {
		return fmt.Errorf("base_currency: %w", err)
	}
	if base.Kind != currency.Fiat {
		return fmt.Errorf("%w: base_currency %s must be fiat", apperrors.ErrValidation, base.Code)
	}
	return nil
}

// FiatCurrencies resolves the configured fiat list against the registry.
// Call Validate first; unknown codes are skipped here.
func (c *Config) FiatCurrencies(registry *currency.Registry) []currency.Currency {
	return resolveList(c.Rates.ExchangeRate.Currencies, registry)
}

// CryptoCurrencies resolves the configured crypto list against the
// registry. Call Validate first; unknown codes are skipped here.
func (c *Config) CryptoCurrencies(registry *currency.Registry) []currency.Currency {
	return resolveList(c.Rates.CoinGecko.Currencies, registry)
}

func resolveList(raw []string, registry *currency.Registry) []currency.Currency {
	out := make([]currency.Currency, 0, len(raw))
	for _, rawCode := range raw {
		if cur, err := registry.Get(rawCode); err == nil {
			out = append(out, cur)
		}
	}
	return out
}

// NewsFeeds converts the configured feeds into name/url pairs.
func (c *Config) NewsFeeds() []FeedConfig {
	return c.News.Feeds
}
