// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/nzbridge/internal/api/handlers"
	"github.com/autobrr/nzbridge/internal/api/middleware"
	"github.com/autobrr/nzbridge/internal/config"
	"github.com/autobrr/nzbridge/internal/easynews"
)

const (
	// Upstream calls are slow; cap how many run at once and queue the rest.
	maxConcurrentRequests = 16
	requestBacklog        = 64
	backlogTimeout        = 30 * time.Second
)

type Server struct {
	server  *http.Server
	logger  zerolog.Logger
	config  *config.AppConfig
	version string

	upstream easynews.Upstream
	recorder handlers.Recorder
	ready    func() error
	now      func() time.Time
}

type Dependencies struct {
	Config   *config.AppConfig
	Version  string
	Upstream easynews.Upstream
	Recorder handlers.Recorder
	// Ready backs the readiness probe; nil means always ready.
	Ready func() error
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewServer(deps *Dependencies) *Server {
	s := Server{
		server: &http.Server{
			ReadHeaderTimeout: time.Second * 15,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      120 * time.Second,
			IdleTimeout:       180 * time.Second,
		},
		logger:   log.Logger.With().Str("module", "api").Logger(),
		config:   deps.Config,
		version:  deps.Version,
		upstream: deps.Upstream,
		recorder: deps.Recorder,
		ready:    deps.Ready,
		now:      deps.Now,
	}

	return &s
}

func (s *Server) ListenAndServe() error {
	return s.open(nil)
}

// ListenAndServeReady behaves like ListenAndServe but signals once the listener is active.
func (s *Server) ListenAndServeReady(ready chan<- struct{}) error {
	return s.open(ready)
}

func (s *Server) open(ready chan<- struct{}) error {
	addr := s.config.ListenAddr()

	var lastErr error
	for _, proto := range []string{"tcp", "tcp4", "tcp6"} {
		err := s.tryToServe(addr, proto, ready)
		if err == nil {
			return nil
		}

		if errors.Is(err, http.ErrServerClosed) {
			return err
		}

		s.logger.Error().Err(err).Str("addr", addr).Str("proto", proto).Msgf("Failed to start server")
		lastErr = err
	}

	return lastErr
}

func (s *Server) tryToServe(addr, protocol string, ready chan<- struct{}) error {
	listener, err := net.Listen(protocol, addr)
	if err != nil {
		return err
	}

	host := listener.Addr().String()
	// Replace 0.0.0.0 or :: with localhost for clickable links
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		host = strings.Replace(host, "0.0.0.0:", "localhost:", 1)
		host = strings.Replace(host, "[::]:", "localhost:", 1)
	}
	feedURL := fmt.Sprintf("http://%s%sapi", host, s.baseURL())

	s.logger.Info().
		Str("protocol", protocol).
		Str("addr", listener.Addr().String()).
		Str("base_url", s.baseURL()).
		Msgf("Starting Newznab server - Indexer URL: %s", feedURL)

	handler, err := s.Handler()
	if err != nil {
		listener.Close()
		return fmt.Errorf("build API router: %w", err)
	}

	s.server.Handler = handler

	if ready != nil {
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	return s.server.Serve(listener)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// baseURL is the configured base path with leading and trailing slash.
func (s *Server) baseURL() string {
	base := strings.Trim(s.config.Current().BaseURL, "/")
	if base == "" {
		return "/"
	}
	return "/" + base + "/"
}

func (s *Server) settings() handlers.Settings {
	cfg := s.config.Current()
	return handlers.Settings{
		BaseURL:           cfg.BaseURL,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		PerPage:           cfg.PerPage,
		MinSizeMB:         cfg.MinSizeMB,
	}
}

func (s *Server) Handler() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID) // Must be before logger to capture request ID
	r.Use(middleware.Recoverer)
	r.Use(chimw.RealIP)

	// Feeds are text and compress well
	compressor, err := httpcompression.DefaultAdapter(
		httpcompression.MinSize(1024),
		httpcompression.GzipCompressionLevel(2),
		httpcompression.Prefer(httpcompression.PreferServer),
	)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP compression adapter")
	} else {
		r.Use(compressor)
	}

	corsMiddleware := cors.New(cors.Options{
		AllowedMethods: []string{"HEAD", "OPTIONS", "GET"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.APIKeyHeader},
		ExposedHeaders: []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		MaxAge: 300,
		Debug:  false,
	})
	r.Use(corsMiddleware.Handler)

	healthHandler := handlers.NewHealthHandler(s.ready)
	newznabHandler := handlers.NewNewznabHandler(handlers.NewznabDependencies{
		Upstream: s.upstream,
		Settings: s.settings,
		Recorder: s.recorder,
		Now:      s.now,
	})

	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/healthz/readiness", healthHandler.HandleReady)
	r.Get("/healthz/liveness", healthHandler.HandleLiveness)

	baseURL := s.baseURL()

	r.Route(baseURL+"api", func(r chi.Router) {
		r.Use(middleware.Logger(s.logger))
		r.Use(middleware.RequireAPIKey(func() string { return s.config.Current().APIKey }))
		r.Use(chimw.ThrottleBacklog(maxConcurrentRequests, requestBacklog, backlogTimeout))

		r.Get("/", newznabHandler.ServeAPI)
	})

	if baseURL != "/" {
		r.Get("/", func(w http.ResponseWriter, request *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("Must use baseUrl: " + baseURL + " instead of /"))
		})
	}

	return r, nil
}
