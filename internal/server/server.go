/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the playback engine together and serves the HTTP
// command surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi_player/internal/acquire"
	"github.com/friendsincode/bragi_player/internal/api"
	"github.com/friendsincode/bragi_player/internal/callengine"
	"github.com/friendsincode/bragi_player/internal/config"
	"github.com/friendsincode/bragi_player/internal/eventbus"
	"github.com/friendsincode/bragi_player/internal/events"
	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/natsdisplay"
	"github.com/friendsincode/bragi_player/internal/player"
	"github.com/friendsincode/bragi_player/internal/queue"
	"github.com/friendsincode/bragi_player/internal/resolver"
	"github.com/friendsincode/bragi_player/internal/session"
	"github.com/friendsincode/bragi_player/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	bus     *eventbus.NATSBus
	metrics *telemetry.Metrics
	engine  *callengine.Engine
	orch    *player.Orchestrator
	cache   *resolver.Cache
	api     *api.API
}

// New assembles the engine and its HTTP surface.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	s.metrics = telemetry.New()

	s.bus = eventbus.NewNATSBus(s.cfg.NATSURL, events.NewBus(), s.logger)
	s.DeferClose(s.bus.Close)

	cache, err := resolver.NewCache(resolver.CacheConfig{
		RedisAddr:      s.cfg.RedisAddr,
		RedisPassword:  s.cfg.RedisPassword,
		RedisDB:        s.cfg.RedisDB,
		SearchTTL:      s.cfg.SearchCacheTTL,
		DisableOnError: true,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("init search cache: %w", err)
	}
	s.cache = cache
	s.DeferClose(cache.Close)

	search := resolver.New(s.cfg.YtdlpBin, s.cfg.SearchLimit, cache, s.logger)
	downloader := acquire.New(s.cfg.YtdlpBin, s.cfg.DownloadDir, s.cfg.DownloadTimeout, s.cfg.DownloadRetries, s.logger)

	s.engine = callengine.New(s.cfg.PlayerBin, s.logger)
	s.DeferClose(s.engine.Shutdown)

	var display player.Display
	if s.cfg.NATSURL != "" {
		nd, err := natsdisplay.New(s.cfg.NATSURL, s.logger)
		if err != nil {
			return fmt.Errorf("init display bridge: %w", err)
		}
		display = nd
		s.DeferClose(nd.Close)
	} else {
		s.logger.Warn().Msg("NATS URL not configured, control messages go to the log only")
		display = newLogDisplay(s.logger)
	}

	s.orch = player.New(player.Options{
		Queues:           queue.NewStore(),
		Sessions:         session.NewRegistry(),
		Links:            session.NewLinks(),
		Transport:        s.engine,
		Display:          display,
		Acquirer:         downloader,
		Bus:              s.bus,
		Metrics:          s.metrics,
		Logger:           s.logger,
		ProgressInterval: s.cfg.ProgressInterval,
		SettleDelay:      s.cfg.AdvanceSettleDelay,
		QueueListLimit:   s.cfg.QueueListLimit,
	})

	// Natural pipeline exits feed back into the advance loop.
	s.engine.OnStreamEnded(func(chatID models.ChatID) {
		s.orch.HandleStreamEnd(context.Background(), chatID)
	})

	s.api = api.New(s.orch, search, []byte(s.cfg.JWTSigningKey), s.logger)
	return nil
}

func (s *Server) configureRoutes() {
	s.api.Routes(s.router)
	s.router.Handle("/metrics", s.metrics.Handler())
}

// HTTPServer returns the configured HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Orchestrator exposes the playback core, mainly for the frontend bridge.
func (s *Server) Orchestrator() *player.Orchestrator {
	return s.orch
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
