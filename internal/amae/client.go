// Package amae implements the HTTP client for the Amae Koromo four-player
// game-record API.
//
// The API is cursor-paginated: each request names an inclusive end-timestamp
// upper bound and a start-timestamp lower bound, both in milliseconds, and
// returns records ordered descending by end time. Response timestamps are in
// seconds; callers normalize via the game package helpers. A token bucket
// limiter spaces successive page requests.
package amae

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mjsoul-tools/soulcrawl/internal/game"
)

// DefaultBaseURL is the public Amae Koromo data host for four-player records.
const DefaultBaseURL = "https://5-data.amae-koromo.com"

const maxErrorBody = 200

// Config controls client behavior.
type Config struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// PagesPerSecond bounds the request rate; zero disables limiting.
	PagesPerSecond float64
}

// Client fetches pages of game records.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New builds a Client. A nil logger is replaced with a no-op one.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.PagesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.PagesPerSecond), 1)
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger,
	}
}

// FetchPage requests one page of records with end time <= endMs and >= startMs,
// at most limit records, newest first. Transient failures (network errors, 5xx)
// are retried with bounded exponential backoff; 4xx and malformed bodies fail
// immediately. An empty slice is returned only when the API genuinely reports
// no records in range.
func (c *Client) FetchPage(ctx context.Context, mode game.Mode, endMs, startMs int64, limit int) ([]game.Game, error) {
	u := c.pageURL(mode, endMs, startMs, limit)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Warn("retrying page fetch",
				zap.Int("attempt", attempt),
				zap.Int64("cursor_ms", endMs),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch page: %w", ctx.Err())
			case <-time.After(delay):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		page, err := c.doFetch(ctx, u, endMs)
		if err == nil {
			return page, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("fetch page at cursor %d: retries exhausted: %w", endMs, lastErr)
}

func (c *Client) doFetch(ctx context.Context, u string, endMs int64) ([]game.Game, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(body, maxErrorBody)}
	}

	var page []game.Game
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, &ParseError{EndMs: endMs, Err: err}
	}
	return page, nil
}

func (c *Client) pageURL(mode game.Mode, endMs, startMs int64, limit int) string {
	params := url.Values{
		"limit":      {strconv.Itoa(limit)},
		"descending": {"true"},
		"mode":       {strconv.Itoa(int(mode))},
	}
	return fmt.Sprintf("%s/api/v2/pl4/games/%d/%d?%s", c.cfg.BaseURL, endMs, startMs, params.Encode())
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.BackoffInitial << (attempt - 1)
	if d > c.cfg.BackoffMax {
		return c.cfg.BackoffMax
	}
	return d
}

func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
