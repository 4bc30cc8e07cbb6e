// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/leseb/flowbot/pkg/adapters/http"
	"github.com/leseb/flowbot/pkg/bot"
	"github.com/leseb/flowbot/pkg/core/config"
	"github.com/leseb/flowbot/pkg/flowclient"
	"github.com/leseb/flowbot/pkg/observability/logging"
	"github.com/leseb/flowbot/pkg/state"

	// State store backends
	_ "github.com/leseb/flowbot/pkg/state/memory"
	_ "github.com/leseb/flowbot/pkg/state/postgres"
	_ "github.com/leseb/flowbot/pkg/state/s3"
	_ "github.com/leseb/flowbot/pkg/state/sqlite"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config)")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("Flowbot Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("Starting Flowbot Server",
		"version", Version,
		"build_time", BuildTime)
	if cfgErr != nil {
		logger.Warn("Failed to load config, using defaults", "error", cfgErr)
	}

	if err := cfg.Bot.Validate(); err != nil {
		logger.Error("Invalid bot configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Flow.Endpoint == "" {
		logger.Warn("PROMPT_FLOW_ENDPOINT not configured")
	}
	if cfg.Flow.APIKey == "" {
		logger.Warn("PROMPT_FLOW_API_KEY not configured")
	}

	// Shared outbound client for the flow and the Bot Connector
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 30,
			MaxConnsPerHost:     30,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}

	// Initialize state store
	initCtx := context.Background()
	store, err := state.Providers.New(initCtx, cfg.State.Type, cfg.State.Params())
	if err != nil {
		logger.Error("Failed to initialize state store", "type", cfg.State.Type, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("Initialized state store", "type", cfg.State.Type)

	var asker bot.Asker
	if cfg.Flow.Endpoint != "" {
		asker = flowclient.FromConfig(cfg.Flow, httpClient, logger)
		logger.Info("Initialized flow client",
			"endpoint", cfg.Flow.Endpoint,
			"timeout", cfg.Flow.Timeout,
			"max_retries", cfg.Flow.MaxRetries)
	}

	b := bot.New(bot.Options{
		Store:       store,
		Sender:      bot.NewConnector(cfg.Bot, httpClient, logger),
		Flow:        asker,
		HistorySize: cfg.Bot.HistorySize,
		HistorySent: cfg.Bot.HistorySent,
		Logger:      logger,
	})

	handler := httpAdapter.NewBotHandler(b, cfg.Flow.Configured(), logger)
	logger.Info("Initialized HTTP adapter")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 2 * cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	handler.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}
	httpClient.CloseIdleConnections()

	logger.Info("Server stopped gracefully")
}
