package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Calendar bridge. Empty endpoint means sync is a logged no-op.
	CalendarEndpoint string `mapstructure:"CALENDAR_ENDPOINT"`
	CalendarSecret   string `mapstructure:"CALENDAR_SECRET"`

	// Waitlist sweep interval for the serve loop. Zero disables the ticker;
	// the sweep can still be run via the CLI or the HTTP endpoint.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`

	// Default slot length when a request does not name one and the doctor
	// has no consultation length of their own.
	DefaultSlotMinutes int `mapstructure:"DEFAULT_SLOT_MINUTES"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("SWEEP_INTERVAL", "0")
	v.SetDefault("DEFAULT_SLOT_MINUTES", 30)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("CALENDAR_ENDPOINT")
	v.BindEnv("CALENDAR_SECRET")
	v.BindEnv("SWEEP_INTERVAL")
	v.BindEnv("DEFAULT_SLOT_MINUTES")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// InMemoryMode reports whether the server runs against in-memory stores.
// Development convenience only; nothing survives a restart.
func (c *Config) InMemoryMode() bool {
	return c.DatabaseURL == ""
}

// Validate checks that the configuration is safe to run. Production requires
// a real database; the in-memory backend exists for local development only.
func (c *Config) Validate() error {
	if c.IsProduction() && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in production")
	}
	if c.DefaultSlotMinutes <= 0 {
		return fmt.Errorf("DEFAULT_SLOT_MINUTES must be positive, got %d", c.DefaultSlotMinutes)
	}
	if c.SweepInterval < 0 {
		return fmt.Errorf("SWEEP_INTERVAL must not be negative")
	}
	if c.CalendarEndpoint == "" && c.CalendarSecret != "" {
		return fmt.Errorf("CALENDAR_SECRET is set but CALENDAR_ENDPOINT is not")
	}
	return nil
}
