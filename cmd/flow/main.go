// Copyright Flowbot Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/leseb/flowbot/pkg/adapters/http"
	"github.com/leseb/flowbot/pkg/core/config"
	"github.com/leseb/flowbot/pkg/core/llm"
	"github.com/leseb/flowbot/pkg/flow"
	"github.com/leseb/flowbot/pkg/knowledge"
	"github.com/leseb/flowbot/pkg/observability/logging"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config)")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("Flowbot Prompt Flow\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

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
	logger.Info("Starting Flowbot Prompt Flow",
		"version", Version,
		"build_time", BuildTime)
	if cfgErr != nil {
		logger.Warn("Failed to load config, using defaults", "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Prompt flow stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Prompt flow stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	lookup, err := knowledge.FromConfig(ctx, cfg.Search, logger)
	if err != nil {
		return err
	}
	if !cfg.Search.Configured() {
		logger.Warn("Azure Search not configured, lookups will report it")
	}

	client, err := llm.New(cfg.LLM, nil)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("Model endpoint not configured, answers will report it")
		client = nil
	case err != nil:
		return err
	default:
		logger.Info("Initialized model client", "mode", cfg.LLM.Mode, "deployment", cfg.LLM.Deployment)
	}

	prompts, err := flow.LoadPrompts(cfg.Flow.PromptFile, logger)
	if err != nil {
		return err
	}

	pipeline := flow.NewPipeline(lookup, client, prompts, logger)
	handler := httpAdapter.NewFlowHandler(pipeline, cfg.Flow.APIKey, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 2 * cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return prompts.Watch(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		handler.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
