package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"optionsworth/internal/core"
	"optionsworth/internal/log"
)

type Config struct {
	// HTTP Server
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimitPerMin int           `mapstructure:"rate_limit_per_minute"`

	// Logging
	LogLevel string `mapstructure:"log_level"`

	// Sessions
	SessionTTL             time.Duration `mapstructure:"session_ttl"`
	SessionMax             int           `mapstructure:"session_max"`
	SessionCleanupInterval time.Duration `mapstructure:"session_cleanup_interval"`

	// AMQP (empty URL disables events)
	AMQPURL        string `mapstructure:"amqp_url"`
	AMQPExchange   string `mapstructure:"amqp_exchange"`
	AMQPRoutingKey string `mapstructure:"amqp_routing_key"`

	// Rates a new session starts with
	DefaultMarketPrice         float64 `mapstructure:"default_market_price"`
	DefaultIncomeTaxRate       float64 `mapstructure:"default_income_tax_rate"`
	DefaultCapitalGainsTaxRate float64 `mapstructure:"default_capital_gains_tax_rate"`
}

var defaults = map[string]any{
	"port":                           "8081",
	"shutdown_timeout":               30 * time.Second,
	"rate_limit_per_minute":          120,
	"log_level":                      "info",
	"session_ttl":                    2 * time.Hour,
	"session_max":                    10000,
	"session_cleanup_interval":       10 * time.Minute,
	"amqp_url":                       "",
	"amqp_exchange":                  "optionsworth",
	"amqp_routing_key":               "portfolio.events",
	"default_market_price":           core.DefaultMarketPrice,
	"default_income_tax_rate":        core.DefaultIncomeTaxRate,
	"default_capital_gains_tax_rate": core.DefaultCapitalGainsTaxRate,
}

// Load reads an optional .env file, then the process environment, on top of
// the built-in defaults. Missing env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil {
			slog.Debug("No env file loaded", "file", f, log.FieldError, err)
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		// flat keys map 1:1 onto upper-case env vars
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

// DefaultRates returns the configured starting rates for new sessions.
func (c *Config) DefaultRates() core.GlobalRates {
	return core.GlobalRates{
		MarketPrice:         c.DefaultMarketPrice,
		IncomeTaxRate:       c.DefaultIncomeTaxRate,
		CapitalGainsTaxRate: c.DefaultCapitalGainsTaxRate,
	}
}

// Level returns the parsed log level. Call Validate first.
func (c *Config) Level() slog.Level {
	level, _ := log.ParseLevel(c.LogLevel)
	return level
}

// EventsEnabled reports whether portfolio events go to AMQP.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if c.RateLimitPerMin < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMin))
	}

	// Validate session lifetime
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session max %d: must be at least 1", c.SessionMax))
	}
	if c.SessionCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid session cleanup interval %v: must be at least 1 second", c.SessionCleanupInterval))
	} else if c.SessionCleanupInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session cleanup interval %v: must be at most 24 hours", c.SessionCleanupInterval))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	// Market price is a share price; tax rates are percentages
	if c.DefaultMarketPrice < 0 {
		errors = append(errors, fmt.Sprintf("invalid default market price %v: must not be negative", c.DefaultMarketPrice))
	}
	for name, rate := range map[string]float64{
		"income tax":        c.DefaultIncomeTaxRate,
		"capital gains tax": c.DefaultCapitalGainsTaxRate,
	} {
		if rate < 0 || rate > 100 {
			errors = append(errors, fmt.Sprintf("invalid default %s rate %v: must be between 0 and 100", name, rate))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
