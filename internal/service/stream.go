package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"crypto-market-feed/internal/logger"
	"crypto-market-feed/internal/market"
	"crypto-market-feed/internal/metrics"
	"crypto-market-feed/internal/model"
)

const (
	StreamURL = "wss://stream.binance.com:9443/ws/!ticker@arr"
)

var ErrHandlerPanic = errors.New("stream message handler panicked")

type StreamEventType int

const (
	StreamConnected StreamEventType = iota
	StreamLost
)

func (t StreamEventType) String() string {
	if t == StreamConnected {
		return "connected"
	}
	return "lost"
}

// StreamEvent tells the controller the stream changed hands.
type StreamEvent struct {
	Type    StreamEventType
	Session string
	Err     error
}

type StreamConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration // No frame within this window counts as a lost stream
	ReconnectDelay   time.Duration
}

// StreamService keeps one subscription to the all-symbols ticker stream and
// publishes every batch to the store.
type StreamService struct {
	cfg        StreamConfig
	store      *market.Store
	normalizer market.Normalizer
	tracker    *metrics.Tracker
	events     chan StreamEvent

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	connected    atomic.Bool
	suppressed   atomic.Bool
	suppressCh   chan struct{}
	suppressOnce sync.Once
}

func NewStreamService(cfg StreamConfig, store *market.Store, normalizer market.Normalizer, tracker *metrics.Tracker) *StreamService {
	if cfg.URL == "" {
		cfg.URL = StreamURL
	}
	return &StreamService{
		cfg:        cfg,
		store:      store,
		normalizer: normalizer,
		tracker:    tracker,
		events:     make(chan StreamEvent, 16),
		suppressCh: make(chan struct{}),
	}
}

// Start launches the connect/read/reconnect loop. Calling it again while the
// loop is alive does nothing.
func (s *StreamService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logger.Debug("Stream already running, ignoring start")
		return
	}
	s.running = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Stop closes the connection and waits for the loop to exit.
func (s *StreamService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	logger.Info("Stream service stopped")
}

// SuppressReconnect stops further reconnect attempts for the lifetime of the service.
func (s *StreamService) SuppressReconnect() {
	s.suppressOnce.Do(func() {
		s.suppressed.Store(true)
		close(s.suppressCh)
		logger.Info("Stream reconnect suppressed, REST polling is authoritative")
	})
}

func (s *StreamService) Suppressed() bool { return s.suppressed.Load() }

func (s *StreamService) Connected() bool { return s.connected.Load() }

func (s *StreamService) Events() <-chan StreamEvent { return s.events }

func (s *StreamService) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if s.Suppressed() {
			logger.Warn("Stream closed, not reconnecting", "error", err)
			return
		}

		logger.Warn("Stream disconnected, reconnecting", "error", err, "delay", s.cfg.ReconnectDelay)

		timer := time.NewTimer(s.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.suppressCh:
			timer.Stop()
			logger.Info("Pending stream reconnect cancelled")
			return
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to failure.
func (s *StreamService) session(ctx context.Context) error {
	id := uuid.NewString()
	s.store.CompareAndSetState(model.Disconnected, model.Connecting)
	logger.Info("Connecting to ticker stream", "session", id, "url", s.cfg.URL)

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		s.store.CompareAndSetState(model.Connecting, model.Disconnected)
		err = fmt.Errorf("failed to connect to websocket: %w", err)
		s.emit(ctx, StreamEvent{Type: StreamLost, Session: id, Err: err})
		return err
	}

	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stopClose()
		conn.Close()
	}()

	conn.SetPingHandler(func(data string) error {
		s.extendDeadline(conn)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	s.connected.Store(true)
	s.store.SetState(model.ConnectedStreaming)
	s.tracker.TrackConnect()
	logger.Info("✅ Ticker stream connected", "session", id)
	s.emit(ctx, StreamEvent{Type: StreamConnected, Session: id})

	err = s.readLoop(conn, id)

	s.connected.Store(false)
	s.store.SetState(model.Disconnected)
	s.tracker.TrackDisconnect()
	logger.Warn("⚠️ Ticker stream closed", "session", id, "error", err)
	s.emit(ctx, StreamEvent{Type: StreamLost, Session: id, Err: err})
	return err
}

func (s *StreamService) readLoop(conn *websocket.Conn, session string) error {
	for {
		s.extendDeadline(conn)

		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if err := s.handleMessage(message, session); err != nil {
			return err
		}
	}
}

// handleMessage publishes one batch. Only a recovered panic is returned;
// unusable batches are logged and leave the store untouched.
func (s *StreamService) handleMessage(message []byte, session string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	start := time.Now()
	res, perr := s.normalizer.FromStream(message)
	if perr != nil {
		s.tracker.TrackParseFailure()
		logger.Warn("Failed to parse stream batch", "session", session, "error", perr, "bytes", len(message))
		return nil
	}

	s.store.Replace(res.Snapshot)
	s.tracker.TrackBatch(time.Since(start), len(res.Snapshot), res.Dropped)
	if res.Dropped > 0 {
		logger.Debug("Dropped malformed tickers", "session", session, "dropped", res.Dropped, "received", res.Received)
	}
	return nil
}

func (s *StreamService) extendDeadline(conn *websocket.Conn) {
	if s.cfg.IdleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	}
}

func (s *StreamService) emit(ctx context.Context, ev StreamEvent) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}
