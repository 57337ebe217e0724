package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBatch = `[{"s":"BTCUSDT","c":"64250.50","P":"-0.85","q":"28500000000"},{"s":"ETHBTC","c":"0.05","P":"1.0","q":"100"}]`
	restBody    = `[{"symbol":"ETHUSDT","lastPrice":"3420.75","priceChangePercent":"2.34","quoteVolume":"15200000000"},{"symbol":"ETHBTC","lastPrice":"0.05","priceChangePercent":"1.0","quoteVolume":"100"}]`
)

// wsServer upgrades every request and hands the connection to handler with
// its 1-based attempt number. Attempts beyond maxConns are refused with 503
// when maxConns > 0.
func wsServer(t *testing.T, maxConns int32, handler func(attempt int32, conn *websocket.Conn)) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if maxConns > 0 && n > maxConns {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(n, conn)
	}))

	return server, &attempts
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// holdOpen reads until the client goes away.
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func restServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	return server, &calls
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func nextEvent(t *testing.T, s *StreamService, timeout time.Duration) StreamEvent {
	t.Helper()

	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(timeout):
		t.Fatal("timed out waiting for stream event")
		return StreamEvent{}
	}
}

// fakeFetcher serves canned entries or an error.
type fakeFetcher struct {
	calls atomic.Int32
	fn    func(ctx context.Context) ([]json.RawMessage, error)
}

func (f *fakeFetcher) GetTicker24hr(ctx context.Context) ([]json.RawMessage, error) {
	f.calls.Add(1)
	return f.fn(ctx)
}

func rawEntries(t *testing.T, body string) []json.RawMessage {
	t.Helper()
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(body), &entries); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return entries
}

type recordingAlerter struct {
	mu        sync.Mutex
	degraded  int
	recovered []string
}

func (a *recordingAlerter) FeedDegraded(string) {
	a.mu.Lock()
	a.degraded++
	a.mu.Unlock()
}

func (a *recordingAlerter) FeedRecovered(source string) {
	a.mu.Lock()
	a.recovered = append(a.recovered, source)
	a.mu.Unlock()
}

func (a *recordingAlerter) counts() (int, []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded, append([]string(nil), a.recovered...)
}
