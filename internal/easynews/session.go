// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package easynews

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/autobrr/nzbridge/internal/records"
	"github.com/autobrr/nzbridge/internal/selection"
)

// DefaultSessionTTL is how long a validated login is trusted.
const DefaultSessionTTL = 10 * time.Minute

// Session owns the logged-in client and re-validates it once the TTL has
// passed. When re-validation fails the client is rebuilt with a fresh cookie
// jar and logged in again. Session implements Upstream.
type Session struct {
	cfg Config
	ttl time.Duration
	now func() time.Time

	mu          sync.Mutex
	client      *Client
	validatedAt time.Time

	group singleflight.Group
	log   zerolog.Logger
}

// NewSession does not contact the upstream; the first call logs in. A nil now
// uses time.Now.
func NewSession(cfg Config, ttl time.Duration, now func() time.Time) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Session{
		cfg: cfg,
		ttl: ttl,
		now: now,
		log: log.With().Str("module", "easynews").Str("component", "session").Logger(),
	}
}

// Client returns a client whose login is no older than the TTL. Concurrent
// callers share a single login attempt.
func (s *Session) Client(ctx context.Context) (*Client, error) {
	if c := s.current(); c != nil {
		return c, nil
	}

	// The login outlives the caller that started it; other callers may be
	// waiting on the same flight.
	ch := s.group.DoChan("login", func() (any, error) {
		if c := s.current(); c != nil {
			return c, nil
		}
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loginTimeout())
		defer cancel()
		return s.refresh(loginCtx)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Client), nil
	}
}

// loginTimeout bounds a detached login: a revalidation plus a rebuild, each
// up to two upstream requests.
func (s *Session) loginTimeout() time.Duration {
	s.mu.Lock()
	timeout := s.cfg.Timeout
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return 4 * timeout
}

// Invalidate forces the next call to log in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.validatedAt = time.Time{}
	s.mu.Unlock()
}

// Reconfigure replaces the connection settings. When they differ from the
// current ones the client is dropped and the next call logs in with cfg.
// It reports whether the session was reset.
func (s *Session) Reconfigure(cfg Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sameConnection(s.cfg, cfg) {
		return false
	}
	s.cfg = cfg
	s.client = nil
	s.validatedAt = time.Time{}
	return true
}

func sameConnection(a, b Config) bool {
	return a.BaseURL == b.BaseURL &&
		a.Username == b.Username &&
		a.Password == b.Password &&
		a.Timeout == b.Timeout &&
		a.UserAgent == b.UserAgent &&
		a.Transport == b.Transport
}

func (s *Session) current() *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.validatedAt.IsZero() {
		return nil
	}
	if s.now().Sub(s.validatedAt) > s.ttl {
		return nil
	}
	return s.client
}

func (s *Session) refresh(ctx context.Context) (*Client, error) {
	s.mu.Lock()
	existing := s.client
	s.mu.Unlock()

	if existing != nil {
		err := existing.Login(ctx)
		if err == nil {
			s.store(existing)
			s.log.Debug().Msg("session revalidated")
			return existing, nil
		}
		s.log.Warn().Err(err).Msg("session revalidation failed, rebuilding client")
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.client = c
	s.validatedAt = time.Time{}
	s.mu.Unlock()

	if err := c.Login(ctx); err != nil {
		return nil, err
	}
	s.store(c)
	s.log.Info().Msg("logged in to easynews")
	return c, nil
}

func (s *Session) store(c *Client) {
	s.mu.Lock()
	s.client = c
	s.validatedAt = s.now()
	s.mu.Unlock()
}

func (s *Session) Search(ctx context.Context, query string, opts SearchOptions) (records.RawResultSet, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return records.RawResultSet{}, err
	}
	set, err := c.Search(ctx, query, opts)
	s.invalidateOnAuthFailure(err)
	return set, err
}

func (s *Session) PostSelection(ctx context.Context, payload selection.Payload) ([]byte, error) {
	c, err := s.Client(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.PostSelection(ctx, payload)
	s.invalidateOnAuthFailure(err)
	return body, err
}

// invalidateOnAuthFailure drops the validated state when the upstream refused
// a request mid-session.
func (s *Session) invalidateOnAuthFailure(err error) {
	if upErr, ok := asUpstreamError(err); ok && upErr.Unauthorized() {
		s.Invalidate()
	}
}

var _ Upstream = (*Session)(nil)
var _ Upstream = (*Client)(nil)
