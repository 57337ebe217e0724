package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.StreamURL != "wss://stream.binance.com:9443/ws/!ticker@arr" {
		t.Errorf("StreamURL = %q", cfg.StreamURL)
	}
	if cfg.RestBaseURL != "https://api.binance.com" {
		t.Errorf("RestBaseURL = %q", cfg.RestBaseURL)
	}
	if cfg.QuoteAsset != "USDT" {
		t.Errorf("QuoteAsset = %q, want USDT", cfg.QuoteAsset)
	}
	if cfg.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v, want 15s", cfg.PollInterval)
	}
	if cfg.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", cfg.ReconnectDelay)
	}
	if cfg.FallbackPolicy != PolicyReconnect {
		t.Errorf("FallbackPolicy = %q, want %q", cfg.FallbackPolicy, PolicyReconnect)
	}
	if cfg.LogFile != "logs/app.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
	if cfg.TelegramEnabled() {
		t.Error("Telegram should be disabled without credentials")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"QUOTE_ASSET":       "fdusd",
		"POLL_INTERVAL":     "30s",
		"RECONNECT_DELAY":   "2s",
		"FALLBACK_POLICY":   "PERMANENT",
		"HTTP_ADDR":         ":8080",
		"LOG_FILE":          "-",
		"METRICS_LOG_EVERY": "10",
		"TELEGRAM_TOKEN":    "token",
		"TELEGRAM_CHAT_ID":  "42",
	}))
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if cfg.QuoteAsset != "FDUSD" {
		t.Errorf("QuoteAsset = %q, want FDUSD", cfg.QuoteAsset)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("ReconnectDelay = %v, want 2s", cfg.ReconnectDelay)
	}
	if cfg.FallbackPolicy != PolicyPermanent {
		t.Errorf("FallbackPolicy = %q, want %q", cfg.FallbackPolicy, PolicyPermanent)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogFile != "" {
		t.Errorf("LogFile = %q, want empty", cfg.LogFile)
	}
	if cfg.MetricsLogEvery != 10 {
		t.Errorf("MetricsLogEvery = %d, want 10", cfg.MetricsLogEvery)
	}
	if !cfg.TelegramEnabled() {
		t.Error("Telegram should be enabled")
	}
}

func TestFromEnv_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		field string
	}{
		{"bad duration", map[string]string{"POLL_INTERVAL": "soon"}, "POLL_INTERVAL"},
		{"zero duration", map[string]string{"FETCH_TIMEOUT": "0s"}, "FETCH_TIMEOUT"},
		{"negative delay", map[string]string{"RECONNECT_DELAY": "-1s"}, "RECONNECT_DELAY"},
		{"unknown policy", map[string]string{"FALLBACK_POLICY": "sometimes"}, "FALLBACK_POLICY"},
		{"bad int", map[string]string{"METRICS_LOG_EVERY": "many"}, "METRICS_LOG_EVERY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envMap(tt.env))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestValidate_ReturnsValidationError(t *testing.T) {
	cfg := Default()
	cfg.QuoteAsset = ""

	err := cfg.Validate()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Field != "QUOTE_ASSET" {
		t.Errorf("Field = %q, want QUOTE_ASSET", verr.Field)
	}
}
