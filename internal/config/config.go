package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/inflammation/inflammation/internal/platform/serializer"
)

type Config struct {
	Env            string  `mapstructure:"ENV"`
	LogLevel       string  `mapstructure:"LOG_LEVEL"`
	Port           string  `mapstructure:"PORT"`
	DatabaseURL    string  `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32   `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32   `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir  string  `mapstructure:"MIGRATIONS_DIR"`
	AuthSigningKey string  `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string  `mapstructure:"AUTH_ISSUER"`
	DefaultFormat  string  `mapstructure:"DEFAULT_FORMAT"`
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

var envKeys = []string{
	"ENV",
	"LOG_LEVEL",
	"PORT",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DB_MIN_CONNS",
	"MIGRATIONS_DIR",
	"AUTH_SIGNING_KEY",
	"AUTH_ISSUER",
	"DEFAULT_FORMAT",
	"RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST",
}

// Load reads configuration from the environment and an optional .env file
// in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PORT", "8000")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("DEFAULT_FORMAT", string(serializer.FormatJSON))
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// The .env file is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasDatabase reports whether a Postgres patient store is configured.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// Format returns the parsed DEFAULT_FORMAT.
func (c *Config) Format() (serializer.Format, error) {
	return serializer.ParseFormat(c.DefaultFormat)
}

// Validate checks settings that would otherwise fail later at runtime.
// Production servers must sign tokens; development runs without auth.
func (c *Config) Validate() error {
	if _, err := c.Format(); err != nil {
		return fmt.Errorf("DEFAULT_FORMAT: %w", err)
	}
	if c.IsProduction() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
	}
	if c.AuthSigningKey != "" && len(c.AuthSigningKey) < 32 {
		return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 characters, got %d", len(c.AuthSigningKey))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
