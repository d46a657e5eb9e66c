package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voxguard/transcription-guard/config"
	"github.com/voxguard/transcription-guard/internal/circuitbreaker"
	"github.com/voxguard/transcription-guard/internal/guard"
	"github.com/voxguard/transcription-guard/internal/handler"
	"github.com/voxguard/transcription-guard/internal/httpserver"
	"github.com/voxguard/transcription-guard/internal/loadsampler"
	"github.com/voxguard/transcription-guard/internal/registry"
	"github.com/voxguard/transcription-guard/internal/telemetry"
	"github.com/voxguard/transcription-guard/pkg/logger"
)

const (
	loadSampleInterval = 2 * time.Second
	monitorInterval    = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registryOpts, breakerOpts, err := buildOptions(cfg)
	if err != nil {
		log.Error("Failed to parse configuration", slog.Any("err", err))
		os.Exit(1)
	}

	collector := telemetry.NewCollector(cfg.Telemetry.BufferSize, log)
	collector.Start(ctx)

	sampler := loadsampler.NewSystem(loadSampleInterval, log)
	sampler.Start(ctx)

	breaker := circuitbreaker.NewBreaker(breakerOpts, sampler, collector, log)
	breaker.StartMonitor(ctx, monitorInterval)

	reg := registry.NewRegistry(registryOpts, collector, log)
	reg.StartCleanup(ctx)

	g := guard.New(breaker, reg, log)
	defer g.Dispose()

	guardHandler := handler.NewGuardHandler(log, g)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(guardHandler, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Protection layer listening", slog.String("address", srv.Addr()))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting protection layer", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildOptions(cfg *config.Config) (registry.Options, circuitbreaker.Options, error) {
	windowSize, err := time.ParseDuration(cfg.Registry.WindowSize)
	if err != nil {
		return registry.Options{}, circuitbreaker.Options{}, err
	}

	cooldown, err := time.ParseDuration(cfg.Registry.CooldownPeriod)
	if err != nil {
		return registry.Options{}, circuitbreaker.Options{}, err
	}

	duplicateWindow, err := time.ParseDuration(cfg.Registry.DuplicateWindow)
	if err != nil {
		return registry.Options{}, circuitbreaker.Options{}, err
	}

	cleanupInterval, err := time.ParseDuration(cfg.Registry.CleanupInterval)
	if err != nil {
		return registry.Options{}, circuitbreaker.Options{}, err
	}

	resetTimeout, err := time.ParseDuration(cfg.Breaker.ResetTimeout)
	if err != nil {
		return registry.Options{}, circuitbreaker.Options{}, err
	}

	registryOpts := registry.Options{
		MaxRequestsPerWindow:   cfg.Registry.MaxRequestsPerWindow,
		WindowSize:             windowSize,
		CooldownPeriod:         cooldown,
		DuplicateWindow:        duplicateWindow,
		CleanupInterval:        cleanupInterval,
		MaxRegistrySize:        cfg.Registry.MaxRegistrySize,
		MemoryCleanupThreshold: cfg.Registry.MemoryCleanupThreshold,
	}

	breakerOpts := circuitbreaker.Options{
		BaseMaxCallDepth: cfg.Breaker.BaseMaxCallDepth,
		MinCallDepth:     cfg.Breaker.MinCallDepth,
		MaxCallDepth:     cfg.Breaker.MaxCallDepth,
		MaxErrors:        cfg.Breaker.MaxErrors,
		ResetTimeout:     resetTimeout,
		RapidCallLimit:   cfg.Breaker.RapidCallLimit,
	}

	return registryOpts, breakerOpts, nil
}
