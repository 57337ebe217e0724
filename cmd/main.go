package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"crypto-market-feed/internal/api"
	"crypto-market-feed/internal/config"
	"crypto-market-feed/internal/logger"
	"crypto-market-feed/internal/market"
	"crypto-market-feed/internal/metrics"
	"crypto-market-feed/internal/server"
	"crypto-market-feed/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel, Stdout: true}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("Starting market feed...")

	logger.Info("Configuration loaded successfully",
		"rest_url", cfg.RestBaseURL,
		"stream_url", cfg.StreamURL,
		"quote_asset", cfg.QuoteAsset,
		"poll_interval", cfg.PollInterval,
		"reconnect_delay", cfg.ReconnectDelay,
		"fallback_policy", cfg.FallbackPolicy,
		"telegram", cfg.TelegramEnabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := market.NewStore()
	tracker := metrics.NewTracker(cfg.MetricsLogEvery)
	binanceClient := api.NewBinanceClient(cfg.RestBaseURL, cfg.FetchTimeout)
	normalizer := market.NewNormalizer(cfg.QuoteAsset)

	var alerts service.Alerter
	var alertService *service.AlertService
	if cfg.TelegramEnabled() {
		alertService = service.NewAlertService(cfg.TelegramToken, cfg.TelegramChatID)
		alerts = alertService
	}

	feed := service.NewFeed(service.FeedConfigFrom(cfg), store, binanceClient, normalizer, tracker, alerts)
	feed.Start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(store, tracker),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	feed.Stop()
	if alertService != nil {
		alertService.Wait()
	}

	logger.Info("Market feed stopped", "uptime", tracker.Snapshot().Uptime)
}
