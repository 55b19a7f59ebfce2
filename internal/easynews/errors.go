// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package easynews

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrUnauthorized is returned when the upstream rejects the credentials.
	ErrUnauthorized = errors.New("easynews rejected credentials")
	// ErrMissingCredentials is returned when no username or password is configured.
	ErrMissingCredentials = errors.New("easynews username and password are required")
)

// UpstreamError is a non-success HTTP status from the upstream service.
type UpstreamError struct {
	StatusCode int
	Op         string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("easynews %s returned status %d", e.Op, e.StatusCode)
}

func (e *UpstreamError) Is(target error) bool {
	_, ok := target.(*UpstreamError)
	return ok
}

// Unauthorized reports whether the status means the credentials were refused.
func (e *UpstreamError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// isRetryable reports whether a failed GET is worth repeating: 500, 502, 503
// and 504 responses plus network timeouts and dial failures.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		switch upErr.StatusCode {
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
