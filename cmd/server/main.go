package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Membership/internal/adapters/http"
	"github.com/dkeye/Membership/internal/adapters/memlog"
	"github.com/dkeye/Membership/internal/adapters/sqlitelog"
	"github.com/dkeye/Membership/internal/app"
	"github.com/dkeye/Membership/internal/config"
	"github.com/dkeye/Membership/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	configureLogging(cfg)

	eventLog, closeLog, err := openEventLog(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open membership log")
	}
	defer closeLog()

	hub := app.NewHub(app.SimplePolicy{})
	defer hub.Close()
	svc := app.NewService(eventLog, hub)

	r := router.SetupRouter(ctx, cfg, svc)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Str("storage", cfg.Storage.Driver).Msg("Membership server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func configureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, keeping info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func openEventLog(ctx context.Context, cfg *config.Config) (core.EventLog, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create storage dir: %w", err)
		}
		store, err := sqlitelog.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("close membership log")
			}
		}, nil
	default:
		log.Warn().Msg("using in-memory membership log; events are lost on restart")
		return memlog.New(), func() {}, nil
	}
}
