// Package main runs the market-sentiment dashboard service:
// - Aggregation (on demand + polled): provider fan-out, scoring, fallbacks
// - HTTP API: sentiment, widgets, health, Prometheus metrics
// - Broadcast: websocket push of each fresh result
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"smartmoney-sentiment/internal/aggregator"
	"smartmoney-sentiment/internal/api"
	"smartmoney-sentiment/internal/broadcast"
	"smartmoney-sentiment/internal/config"
	"smartmoney-sentiment/internal/history"
	"smartmoney-sentiment/internal/observability"
	"smartmoney-sentiment/internal/providers"
	"smartmoney-sentiment/internal/widgets"
)

func main() {
	// Load .env file if exists
	loadEnvFile()

	configPath := flag.String("config", os.Getenv("SENTIMENT_CONFIG"), "Path to YAML config file")
	listenAddr := flag.String("listen-addr", "", "HTTP listen address (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	if key := os.Getenv("SMART_MONEY_API_KEY"); key != "" {
		cfg.SmartMoney.APIKey = key
	}
	if cfg.SmartMoney.APIKey == "" {
		logger.Println("SMART_MONEY_API_KEY not set; smart-money requests will fail and synthetic fallbacks will serve")
	}

	metrics := observability.NewMetrics("smartmoney", nil)

	clientOpts := []providers.Option{
		providers.WithMaxAttempts(cfg.Retry.MaxAttempts),
		providers.WithBaseDelay(cfg.Retry.BaseDelay),
		providers.WithCallTimeout(cfg.Retry.CallTimeout),
		providers.WithRateLimit(cfg.Retry.RatePerSec),
		providers.WithRecorder(metrics),
		providers.WithLogger(log.New(os.Stdout, "[provider] ", log.LstdFlags)),
	}
	smartMoney := providers.NewSmartMoneyClient(cfg.SmartMoney.BaseURL, cfg.SmartMoney.APIKey, clientOpts...)
	perps := providers.NewPerpsClient(cfg.Perps.BaseURL, clientOpts...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := broadcast.NewHub(
		broadcast.WithMetrics(metrics),
		broadcast.WithLogger(log.New(os.Stdout, "[broadcast] ", log.LstdFlags)),
	)
	go hub.Run(ctx)

	agg := aggregator.New(aggregator.Options{
		Config:     cfg,
		SmartMoney: smartMoney,
		Perps:      perps,
		Tracker:    history.NewTracker(cfg.Scoring.HistoryDepth),
		Metrics:    metrics,
		Publisher:  hub,
		Logger:     log.New(os.Stdout, "[aggregator] ", log.LstdFlags),
	})

	widgetSvc := widgets.NewService(cfg, smartMoney,
		widgets.WithLogger(log.New(os.Stdout, "[widgets] ", log.LstdFlags)))

	server := api.NewServer(api.Options{
		Config:    cfg,
		Sentiment: agg,
		Widgets:   widgetSvc,
		Socket:    hub,
		Logger:    logger,
	})

	if cfg.Server.PollEnabled {
		go runPoller(ctx, agg, cfg.Server.PollInterval, logger)
	}

	// Handle shutdown signals; a second signal forces immediate exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	if err := server.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// runPoller keeps the sentiment cache warm so dashboard requests almost
// always hit the fresh path, and so websocket clients get pushes without
// any HTTP traffic.
func runPoller(ctx context.Context, agg *aggregator.Aggregator, interval time.Duration, logger *log.Logger) {
	logger.Printf("Poller started (interval %s)", interval)
	agg.Sentiment(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			agg.Sentiment(ctx)
		}
	}
}

// loadEnvFile loads KEY=VALUE pairs from .env without overriding existing
// environment variables.
func loadEnvFile() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
