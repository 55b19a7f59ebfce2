// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader is accepted in place of the apikey query parameter.
const APIKeyHeader = "X-Api-Key"

// RequireAPIKey rejects requests whose apikey parameter (or X-Api-Key header)
// does not match the value returned by key. An empty configured key disables
// the check. key is read per request so config reloads apply immediately.
func RequireAPIKey(key func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			want := key()
			if want == "" {
				next.ServeHTTP(w, r)
				return
			}

			got := r.URL.Query().Get("apikey")
			if got == "" {
				got = r.Header.Get(APIKeyHeader)
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
