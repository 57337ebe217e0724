package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	PolicyReconnect = "reconnect"
	PolicyPermanent = "permanent"
)

type Config struct {
	// Binance
	RestBaseURL string
	StreamURL   string
	QuoteAsset  string

	// Feed timing
	PollInterval      time.Duration
	FetchTimeout      time.Duration
	ReconnectDelay    time.Duration
	HandshakeTimeout  time.Duration
	StreamIdleTimeout time.Duration

	// reconnect keeps retrying the stream while polling covers the gap;
	// permanent stays on polling after the first stream failure.
	FallbackPolicy string

	// HTTP
	HTTPAddr string

	// Logging
	LogFile         string
	LogLevel        string
	MetricsLogEvery int

	// Telegram
	TelegramToken  string
	TelegramChatID string
}

func Default() *Config {
	return &Config{
		RestBaseURL:       "https://api.binance.com",
		StreamURL:         "wss://stream.binance.com:9443/ws/!ticker@arr",
		QuoteAsset:        "USDT",
		PollInterval:      15 * time.Second,
		FetchTimeout:      10 * time.Second,
		ReconnectDelay:    5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		StreamIdleTimeout: 60 * time.Second,
		FallbackPolicy:    PolicyReconnect,
		HTTPAddr:          ":3001",
		LogFile:           "logs/app.log",
		LogLevel:          "info",
		MetricsLogEvery:   500,
	}
}

// Load reads an optional .env file, then overlays environment variables on the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := Default()
	var err error

	setString(&cfg.RestBaseURL, getenv("BINANCE_REST_URL"))
	setString(&cfg.StreamURL, getenv("BINANCE_STREAM_URL"))
	setString(&cfg.QuoteAsset, strings.ToUpper(getenv("QUOTE_ASSET")))
	setString(&cfg.FallbackPolicy, strings.ToLower(getenv("FALLBACK_POLICY")))
	setString(&cfg.HTTPAddr, getenv("HTTP_ADDR"))
	setString(&cfg.LogLevel, getenv("LOG_LEVEL"))

	if v, ok := lookup(getenv, "LOG_FILE"); ok {
		cfg.LogFile = v
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"POLL_INTERVAL", &cfg.PollInterval},
		{"FETCH_TIMEOUT", &cfg.FetchTimeout},
		{"RECONNECT_DELAY", &cfg.ReconnectDelay},
		{"HANDSHAKE_TIMEOUT", &cfg.HandshakeTimeout},
		{"STREAM_IDLE_TIMEOUT", &cfg.StreamIdleTimeout},
	}
	for _, d := range durations {
		if v := getenv(d.key); v != "" {
			*d.dst, err = parseDuration(v, d.key)
			if err != nil {
				return nil, err
			}
		}
	}

	if v := getenv("METRICS_LOG_EVERY"); v != "" {
		cfg.MetricsLogEvery, err = parseInt(v, "METRICS_LOG_EVERY")
		if err != nil {
			return nil, err
		}
	}

	cfg.TelegramToken = getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = getenv("TELEGRAM_CHAT_ID")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Message)
}

func (c *Config) Validate() error {
	if c.RestBaseURL == "" {
		return &ValidationError{"BINANCE_REST_URL", "is required"}
	}
	if c.StreamURL == "" {
		return &ValidationError{"BINANCE_STREAM_URL", "is required"}
	}
	if c.QuoteAsset == "" {
		return &ValidationError{"QUOTE_ASSET", "is required"}
	}

	positive := []struct {
		name string
		val  time.Duration
	}{
		{"POLL_INTERVAL", c.PollInterval},
		{"FETCH_TIMEOUT", c.FetchTimeout},
		{"RECONNECT_DELAY", c.ReconnectDelay},
		{"HANDSHAKE_TIMEOUT", c.HandshakeTimeout},
		{"STREAM_IDLE_TIMEOUT", c.StreamIdleTimeout},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return &ValidationError{p.name, "must be positive"}
		}
	}

	if c.FallbackPolicy != PolicyReconnect && c.FallbackPolicy != PolicyPermanent {
		return &ValidationError{"FALLBACK_POLICY", fmt.Sprintf("must be %q or %q, got %q", PolicyReconnect, PolicyPermanent, c.FallbackPolicy)}
	}
	if c.MetricsLogEvery < 0 {
		return &ValidationError{"METRICS_LOG_EVERY", "must not be negative"}
	}
	return nil
}

// TelegramEnabled reports whether degradation alerts can be delivered.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// lookup distinguishes an explicitly empty value ("-" disables) from an unset one.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := getenv(key)
	if v == "" {
		return "", false
	}
	if v == "-" {
		return "", true
	}
	return v, true
}

func parseDuration(value, name string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return d, nil
}

func parseInt(value, name string) (int, error) {
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", name, err)
	}
	return i, nil
}
