// Package main provides the arena server binary that serves the WebSocket
// game endpoint and the HTTP health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mwalcott/arena/internal/arenaserver"
	"github.com/mwalcott/arena/internal/config"
	"github.com/mwalcott/arena/internal/game/arena"
	"github.com/mwalcott/arena/internal/observability"
	"github.com/mwalcott/arena/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	arenaPath := flag.String("arena", "", "path to arena settings YAML; overrides the config file value")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting arena server",
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.String("default_room", cfg.Arena.DefaultRoom),
	)

	// Load arena settings. The -arena flag wins over the config file; when
	// neither names a file, built-in defaults apply.
	settingsPath := cfg.Arena.ContentPath
	if *arenaPath != "" {
		settingsPath = *arenaPath
	}
	settings := arena.DefaultSettings()
	if settingsPath != "" {
		contentStart := time.Now()
		settings, err = arena.LoadSettingsFromFile(settingsPath)
		if err != nil {
			logger.Fatal("loading arena settings", zap.Error(err))
		}
		logger.Info("arena settings loaded",
			zap.String("path", settingsPath),
			zap.Duration("elapsed", time.Since(contentStart)),
		)
	}

	src := arena.NewCryptoSource()
	store := arena.NewStore(settings, src, cfg.Arena.MaxPlayers)

	hub := arenaserver.NewHub(cfg.HTTP.AllowedOrigins, cfg.Arena.SendBuffer, logger)
	router := arenaserver.NewRouter(store, cfg.Arena.DefaultRoom, hub.Send, logger)
	hub.SetHandler(router)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.Handle("/health", arenaserver.NewHealthHandler(store, cfg.HTTP.AllowedOrigins))

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("hub", &server.FuncService{
		StartFn: hub.Start,
		StopFn:  hub.Stop,
	})

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving on %s: %w", cfg.HTTP.Addr(), err)
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown", zap.Error(err))
			}
		},
	})

	logger.Info("arena server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.HTTP.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
