package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetTicker24hr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Errorf("path = %s, want /api/v3/ticker/24hr", r.URL.Path)
		}
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		w.Header().Set("X-MBX-USED-WEIGHT-1M", "80")
		w.Write([]byte(`[{"symbol":"BTCUSDT","lastPrice":"64250.50"},{"symbol":"ETHBTC"},"garbage"]`))
	}))
	defer server.Close()

	client := NewBinanceClient(server.URL, 5*time.Second)

	entries, err := client.GetTicker24hr(context.Background())
	if err != nil {
		t.Fatalf("GetTicker24hr failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}
	if string(entries[2]) != `"garbage"` {
		t.Errorf("entries[2] = %s, want raw element preserved", entries[2])
	}
}

func TestGetTicker24hr_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":-1003,"msg":"Too many requests"}`))
	}))
	defer server.Close()

	client := NewBinanceClient(server.URL, 5*time.Second)

	_, err := client.GetTicker24hr(context.Background())
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("err = %v, want ErrUnexpectedStatus", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", statusErr.StatusCode)
	}
}

func TestGetTicker24hr_NotAnArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"BTCUSDT"}`))
	}))
	defer server.Close()

	client := NewBinanceClient(server.URL, 5*time.Second)

	if _, err := client.GetTicker24hr(context.Background()); err == nil {
		t.Fatal("expected error for non-array payload")
	}
}

func TestGetTicker24hr_NullPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	}))
	defer server.Close()

	client := NewBinanceClient(server.URL, 5*time.Second)

	if _, err := client.GetTicker24hr(context.Background()); err == nil {
		t.Fatal("expected error for null payload")
	}
}

func TestGetTicker24hr_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewBinanceClient(server.URL, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.GetTicker24hr(ctx); err == nil {
		t.Fatal("expected error on context timeout")
	}
}

func TestNewBinanceClient_DefaultBaseURL(t *testing.T) {
	client := NewBinanceClient("", time.Second)
	if client.BaseURL != BaseURL {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, BaseURL)
	}
}
