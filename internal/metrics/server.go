// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type Server struct {
	server *http.Server
	logger zerolog.Logger
	users  map[string][]byte
}

// NewServer serves the registry of m on host:port. basicAuthUsers is a comma
// separated list of user:bcrypt-hash pairs; empty disables authentication.
func NewServer(m *Metrics, host string, port int, basicAuthUsers string) *Server {
	s := &Server{
		logger: log.With().Str("module", "metrics").Logger(),
		users:  ParseBasicAuthUsers(basicAuthUsers),
	}

	r := chi.NewRouter()
	if len(s.users) > 0 {
		r.Use(s.basicAuth)
	}
	r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))

	s.server = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.server.Addr).Bool("basic_auth", len(s.users) > 0).Msg("Starting metrics server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok && s.authorized(user, pass) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) authorized(user, pass string) bool {
	for name, hash := range s.users {
		if subtle.ConstantTimeCompare([]byte(name), []byte(user)) == 1 {
			return bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
		}
	}
	return false
}

// ParseBasicAuthUsers parses "user:hash,user2:hash2". Malformed pairs are
// skipped.
func ParseBasicAuthUsers(raw string) map[string][]byte {
	users := make(map[string][]byte)
	for _, pair := range strings.Split(raw, ",") {
		name, hash, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || hash == "" {
			continue
		}
		users[name] = []byte(hash)
	}
	return users
}
