package service

import (
	"context"
	"sync"

	"crypto-market-feed/internal/config"
	"crypto-market-feed/internal/logger"
	"crypto-market-feed/internal/market"
	"crypto-market-feed/internal/metrics"
	"crypto-market-feed/internal/model"
)

type FeedConfig struct {
	Policy string // config.PolicyReconnect or config.PolicyPermanent
	Stream StreamConfig
	Poll   PollerConfig
}

// FeedConfigFrom maps the process configuration onto the feed.
func FeedConfigFrom(cfg *config.Config) FeedConfig {
	return FeedConfig{
		Policy: cfg.FallbackPolicy,
		Stream: StreamConfig{
			URL:              cfg.StreamURL,
			HandshakeTimeout: cfg.HandshakeTimeout,
			IdleTimeout:      cfg.StreamIdleTimeout,
			ReconnectDelay:   cfg.ReconnectDelay,
		},
		Poll: PollerConfig{
			Interval: cfg.PollInterval,
			Timeout:  cfg.FetchTimeout,
		},
	}
}

// Feed runs the stream as the preferred source and the poller as its
// fallback. The poller only runs while the stream is down; polled snapshots
// that land while the stream is up are discarded by the store.
type Feed struct {
	cfg     FeedConfig
	store   *market.Store
	stream  *StreamService
	poller  *Poller
	alerts  Alerter
	tracker *metrics.Tracker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFeed(cfg FeedConfig, store *market.Store, client TickerFetcher, normalizer market.Normalizer, tracker *metrics.Tracker, alerts Alerter) *Feed {
	if cfg.Policy == "" {
		cfg.Policy = config.PolicyReconnect
	}
	if alerts == nil {
		alerts = nopAlerter{}
	}

	f := &Feed{
		cfg:     cfg,
		store:   store,
		alerts:  alerts,
		tracker: tracker,
	}
	f.stream = NewStreamService(cfg.Stream, store, normalizer, tracker)
	f.poller = NewPoller(cfg.Poll, client, normalizer, f.handlePolled, tracker)
	return f
}

func (f *Feed) Stream() *StreamService { return f.stream }

func (f *Feed) Poller() *Poller { return f.poller }

// Start bootstraps with one REST fetch while the stream connects.
func (f *Feed) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)

	logger.Info("Market feed starting",
		"policy", f.cfg.Policy,
		"stream_url", f.cfg.Stream.URL,
		"poll_interval", f.cfg.Poll.Interval,
	)

	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		f.bootstrap(ctx)
	}()
	go func() {
		defer f.wg.Done()
		f.run(ctx)
	}()

	f.stream.Start(ctx)
}

func (f *Feed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	// The event loop must be gone before the poller is stopped, or a late
	// StreamLost could restart it.
	f.wg.Wait()
	f.stream.Stop()
	f.poller.Stop()
	logger.Info("Market feed stopped")
}

func (f *Feed) bootstrap(ctx context.Context) {
	snapshot, err := f.poller.fetch(ctx)
	if ctx.Err() != nil {
		return
	}
	f.handlePolled(snapshot, err == nil)
}

func (f *Feed) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.stream.Events():
			f.handleStreamEvent(ctx, ev)
		}
	}
}

func (f *Feed) handleStreamEvent(ctx context.Context, ev StreamEvent) {
	switch ev.Type {
	case StreamConnected:
		if f.poller.Running() {
			f.poller.Stop()
			logger.Info("🔄 Stream restored, REST polling paused", "session", ev.Session)
		}
		f.alerts.FeedRecovered("stream")

	case StreamLost:
		if f.cfg.Policy == config.PolicyPermanent {
			f.stream.SuppressReconnect()
		}
		if !f.poller.Running() {
			logger.Info("Falling back to REST polling", "session", ev.Session, "error", ev.Err)
			f.poller.Start(ctx)
		}
	}
}

func (f *Feed) handlePolled(snapshot model.MarketSnapshot, live bool) {
	state := model.ConnectedPolling
	if !live {
		state = model.Disconnected
	}

	if !f.store.Offer(snapshot, state) {
		logger.Debug("Discarding polled snapshot, stream is authoritative")
		return
	}

	if live {
		f.alerts.FeedRecovered("rest")
	} else {
		f.tracker.TrackFallbackServed()
		f.alerts.FeedDegraded("rest snapshot unavailable")
	}
}
