package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"crypto-market-feed/internal/logger"
	"crypto-market-feed/internal/market"
	"crypto-market-feed/internal/metrics"
	"crypto-market-feed/internal/model"
)

// TickerFetcher fetches the full 24h ticker list, one raw element per symbol.
type TickerFetcher interface {
	GetTicker24hr(ctx context.Context) ([]json.RawMessage, error)
}

// SnapshotHandler receives each polled snapshot. live is false when the
// snapshot is the built-in sample dataset.
type SnapshotHandler func(snapshot model.MarketSnapshot, live bool)

type PollerConfig struct {
	Interval time.Duration
	Timeout  time.Duration // Per-request timeout
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Interval: 15 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Poller periodically fetches a complete snapshot over REST.
type Poller struct {
	cfg        PollerConfig
	client     TickerFetcher
	normalizer market.Normalizer
	handler    SnapshotHandler
	tracker    *metrics.Tracker

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPoller(cfg PollerConfig, client TickerFetcher, normalizer market.Normalizer, handler SnapshotHandler, tracker *metrics.Tracker) *Poller {
	return &Poller{
		cfg:        cfg,
		client:     client,
		normalizer: normalizer,
		handler:    handler,
		tracker:    tracker,
	}
}

// FetchSnapshot performs one request. Any failure yields the sample dataset
// instead of an error, so callers always get something to render.
func (p *Poller) FetchSnapshot(ctx context.Context) model.MarketSnapshot {
	snapshot, _ := p.fetch(ctx)
	return snapshot
}

func (p *Poller) fetch(ctx context.Context) (model.MarketSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	entries, err := p.client.GetTicker24hr(ctx)
	if err != nil {
		p.tracker.TrackPoll(false, 0)
		logger.Warn("⚠️ REST snapshot failed, serving fallback data", "error", err)
		return market.FallbackSnapshot(), err
	}

	res := p.normalizer.FromREST(entries)
	p.tracker.TrackPoll(true, res.Dropped)
	logger.Debug("REST snapshot fetched",
		"received", res.Received,
		"records", len(res.Snapshot),
		"dropped", res.Dropped,
		"duration", time.Since(start),
	)
	return res.Snapshot, nil
}

// Start polls immediately, then on every interval until Stop. A second call
// while running does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)

	logger.Info("REST poller started", "interval", p.cfg.Interval)
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
	logger.Info("REST poller stopped")
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	snapshot, err := p.fetch(ctx)
	// A request aborted by Stop is not an outage.
	if ctx.Err() != nil {
		return
	}
	if p.handler != nil {
		p.handler(snapshot, err == nil)
	}
}
