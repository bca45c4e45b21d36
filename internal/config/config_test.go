package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected development logging by default")
	}
	if cfg.Fetch.Mode != "jade-south" || cfg.Fetch.PageLimit != 500 {
		t.Fatalf("unexpected fetch defaults: %+v", cfg.Fetch)
	}
	if cfg.Fetch.WindowDays != 30 {
		t.Fatalf("expected 30 day default window, got %d", cfg.Fetch.WindowDays)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "games.db" {
		t.Fatalf("unexpected db defaults: %+v", cfg.DB)
	}
	if cfg.Server.Enabled {
		t.Fatalf("status server should be off by default")
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: false
  level: warn
http:
  base_url: https://example.test
  user_agent: soulcrawl-ci
  timeout_seconds: 45
  max_retries: 4
  backoff_initial_ms: 100
  backoff_max_ms: 500
  pages_per_second: 0.5
fetch:
  mode: throne-south
  start_ms: 1694000000000
  end_ms: 1694800000123
  page_limit: 100
  max_pages: 10
db:
  driver: postgres
  dsn: postgres://soulcrawl@localhost/games
server:
  enabled: true
  port: 9090
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Development || cfg.Logging.Level != "warn" {
		t.Fatalf("expected logging overrides to apply: %+v", cfg.Logging)
	}
	if cfg.Fetch.Mode != "throne-south" || cfg.Fetch.MaxPages != 10 {
		t.Fatalf("expected fetch overrides to apply: %+v", cfg.Fetch)
	}
	if cfg.DB.Driver != "postgres" {
		t.Fatalf("expected postgres driver, got %q", cfg.DB.Driver)
	}
	if !cfg.Server.Enabled || cfg.Server.Port != 9090 {
		t.Fatalf("expected server overrides to apply: %+v", cfg.Server)
	}

	cc := cfg.ClientConfig()
	if cc.BaseURL != "https://example.test" || cc.Timeout != 45*time.Second {
		t.Fatalf("unexpected client config: %+v", cc)
	}
	if cc.BackoffInitial != 100*time.Millisecond || cc.PagesPerSecond != 0.5 {
		t.Fatalf("unexpected client backoff config: %+v", cc)
	}

	opts, err := cfg.FetchOptions(time.Now())
	if err != nil {
		t.Fatalf("FetchOptions() error = %v", err)
	}
	if opts.Mode != game.ModeThroneSouth {
		t.Fatalf("expected throne-south mode, got %v", opts.Mode)
	}
	if opts.StartMs != 1694000000000 || opts.EndMs != 1694800000123 {
		t.Fatalf("expected explicit window to win: %+v", opts)
	}
}

func TestFetchOptionsDefaultWindow(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	now := time.Date(2023, time.September, 15, 12, 0, 0, 0, time.UTC)
	opts, err := cfg.FetchOptions(now)
	if err != nil {
		t.Fatalf("FetchOptions() error = %v", err)
	}
	if opts.EndMs != now.UnixMilli() {
		t.Fatalf("expected upper bound now, got %d", opts.EndMs)
	}
	wantStart := now.AddDate(0, 0, -30).UnixMilli()
	if opts.StartMs != wantStart {
		t.Fatalf("expected lower bound 30 days back: got %d want %d", opts.StartMs, wantStart)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		HTTP:  HTTPConfig{TimeoutSeconds: 10, PagesPerSecond: 2},
		Fetch: FetchConfig{Mode: "jade-south", PageLimit: 100, WindowDays: 30},
		DB:    DBConfig{Driver: "sqlite", DSN: "games.db"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "unknown mode",
			cfg: func() Config {
				c := base
				c.Fetch.Mode = "east-only"
				return c
			}(),
			want: "fetch.mode",
		},
		{
			name: "invalid page limit",
			cfg: func() Config {
				c := base
				c.Fetch.PageLimit = 0
				return c
			}(),
			want: "fetch.page_limit",
		},
		{
			name: "missing window",
			cfg: func() Config {
				c := base
				c.Fetch.WindowDays = 0
				return c
			}(),
			want: "fetch.window_days",
		},
		{
			name: "inverted bounds",
			cfg: func() Config {
				c := base
				c.Fetch.StartMs = 200
				c.Fetch.EndMs = 100
				return c
			}(),
			want: "fetch.end_ms",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "invalid rate",
			cfg: func() Config {
				c := base
				c.HTTP.PagesPerSecond = 0
				return c
			}(),
			want: "http.pages_per_second",
		},
		{
			name: "unknown driver",
			cfg: func() Config {
				c := base
				c.DB.Driver = "oracle"
				return c
			}(),
			want: "db.driver",
		},
		{
			name: "missing dsn",
			cfg: func() Config {
				c := base
				c.DB.DSN = ""
				return c
			}(),
			want: "db.dsn",
		},
		{
			name: "server missing port",
			cfg: func() Config {
				c := base
				c.Server.Enabled = true
				return c
			}(),
			want: "server.port",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
