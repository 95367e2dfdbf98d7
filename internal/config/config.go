package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Env      string `mapstructure:"ENV"`
	Port     string `mapstructure:"PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL      string `mapstructure:"DATABASE_URL"`
	BusinessTimezone string `mapstructure:"BUSINESS_TIMEZONE"`

	// Auth.
	JWTSecret    string `mapstructure:"JWT_HMAC_SECRET"`
	StaticTokens string `mapstructure:"STATIC_TOKENS"`

	// Busy-slot cache; an empty address disables it.
	RedisAddr     string        `mapstructure:"REDIS_ADDR"`
	RedisPassword string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int           `mapstructure:"REDIS_DB"`
	BusyCacheTTL  time.Duration `mapstructure:"BUSY_CACHE_TTL"`

	// Scheduling engine.
	BusyQueryConcurrency int    `mapstructure:"BUSY_QUERY_CONCURRENCY"`
	MaxOccurrences       int    `mapstructure:"MAX_OCCURRENCES"`
	WorkdayStart         string `mapstructure:"WORKDAY_START"`
	WorkdayEnd           string `mapstructure:"WORKDAY_END"`

	// Google Calendar.
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	location *time.Location
}

var keys = []string{
	"ENV", "PORT", "LOG_LEVEL", "DATABASE_URL", "BUSINESS_TIMEZONE",
	"JWT_HMAC_SECRET", "STATIC_TOKENS",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "BUSY_CACHE_TTL",
	"BUSY_QUERY_CONCURRENCY", "MAX_OCCURRENCES", "WORKDAY_START", "WORKDAY_END",
	"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URL",
}

// Load reads .env (if present), config.yaml (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper applies defaults and environment overrides to v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BUSINESS_TIMEZONE", "UTC")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BUSY_CACHE_TTL", 30*time.Second)
	v.SetDefault("BUSY_QUERY_CONCURRENCY", 1)
	v.SetDefault("MAX_OCCURRENCES", 104)
	v.SetDefault("WORKDAY_START", "08:00")
	v.SetDefault("WORKDAY_END", "20:00")
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("config: DATABASE_URL required")
	}
	loc, err := time.LoadLocation(cfg.BusinessTimezone)
	if err != nil {
		return nil, fmt.Errorf("config: BUSINESS_TIMEZONE: %w", err)
	}
	cfg.location = loc
	return &cfg, nil
}

// Location is the single business time zone all lessons are scheduled in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Tokens() []string {
	var out []string
	for _, t := range strings.Split(c.StaticTokens, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
