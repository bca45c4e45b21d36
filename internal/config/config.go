// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mjsoul-tools/soulcrawl/internal/amae"
	"github.com/mjsoul-tools/soulcrawl/internal/fetcher"
	"github.com/mjsoul-tools/soulcrawl/internal/game"
	"github.com/mjsoul-tools/soulcrawl/internal/store"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	DB      DBConfig      `mapstructure:"db"`
	Server  ServerConfig  `mapstructure:"server"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures the API client: endpoint, identity and retry
// behavior.
type HTTPConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	UserAgent        string  `mapstructure:"user_agent"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	MaxRetries       int     `mapstructure:"max_retries"`
	BackoffInitialMs int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int     `mapstructure:"backoff_max_ms"`
	PagesPerSecond   float64 `mapstructure:"pages_per_second"`
}

// FetchConfig governs the fetch window and pagination. StartMs/EndMs are
// epoch milliseconds; zero values fall back to a WindowDays-wide window
// ending now.
type FetchConfig struct {
	Mode       string `mapstructure:"mode"`
	StartMs    int64  `mapstructure:"start_ms"`
	EndMs      int64  `mapstructure:"end_ms"`
	PageLimit  int    `mapstructure:"page_limit"`
	MaxPages   int    `mapstructure:"max_pages"`
	WindowDays int    `mapstructure:"window_days"`
}

// DBConfig selects the storage backend and its DSN. Driver "sqlite" takes a
// file path; "postgres" takes a pgx connection string.
type DBConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// ServerConfig controls the optional status/metrics HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOULCRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("http.base_url", amae.DefaultBaseURL)
	v.SetDefault("http.user_agent", "soulcrawl/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("http.pages_per_second", 2.0)
	v.SetDefault("fetch.mode", "jade-south")
	v.SetDefault("fetch.page_limit", 500)
	v.SetDefault("fetch.window_days", 30)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "games.db")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := game.ParseMode(c.Fetch.Mode); err != nil {
		return fmt.Errorf("fetch.mode: %w", err)
	}
	if c.Fetch.PageLimit <= 0 {
		return fmt.Errorf("fetch.page_limit must be > 0")
	}
	if c.Fetch.StartMs == 0 && c.Fetch.WindowDays <= 0 {
		return fmt.Errorf("fetch.window_days must be > 0 when fetch.start_ms is unset")
	}
	if c.Fetch.EndMs != 0 && c.Fetch.EndMs < c.Fetch.StartMs {
		return fmt.Errorf("fetch.end_ms must be >= fetch.start_ms")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.PagesPerSecond <= 0 {
		return fmt.Errorf("http.pages_per_second must be > 0")
	}
	if c.DB.Driver != store.DriverSQLite && c.DB.Driver != store.DriverPostgres {
		return fmt.Errorf("db.driver must be %q or %q", store.DriverSQLite, store.DriverPostgres)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	return nil
}

// ClientConfig converts the HTTP section into the API client's config.
func (c Config) ClientConfig() amae.Config {
	return amae.Config{
		BaseURL:        c.HTTP.BaseURL,
		UserAgent:      c.HTTP.UserAgent,
		Timeout:        time.Duration(c.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:     c.HTTP.MaxRetries,
		BackoffInitial: time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond,
		PagesPerSecond: c.HTTP.PagesPerSecond,
	}
}

// StoreConfig converts the DB section into the store's config.
func (c Config) StoreConfig() store.Config {
	return store.Config{
		Driver: c.DB.Driver,
		DSN:    c.DB.DSN,
	}
}

// FetchOptions resolves the fetch section into runner options, filling unset
// window bounds relative to now: the upper bound defaults to now, the lower
// bound to WindowDays before the upper bound.
func (c Config) FetchOptions(now time.Time) (fetcher.Options, error) {
	mode, err := game.ParseMode(c.Fetch.Mode)
	if err != nil {
		return fetcher.Options{}, fmt.Errorf("fetch.mode: %w", err)
	}
	endMs := c.Fetch.EndMs
	if endMs == 0 {
		endMs = now.UnixMilli()
	}
	startMs := c.Fetch.StartMs
	if startMs == 0 {
		startMs = endMs - int64(c.Fetch.WindowDays)*24*int64(time.Hour/time.Millisecond)
	}
	if startMs > endMs {
		return fetcher.Options{}, fmt.Errorf("fetch window is empty: start %d > end %d", startMs, endMs)
	}
	return fetcher.Options{
		Mode:      mode,
		StartMs:   startMs,
		EndMs:     endMs,
		PageLimit: c.Fetch.PageLimit,
		MaxPages:  c.Fetch.MaxPages,
	}, nil
}
