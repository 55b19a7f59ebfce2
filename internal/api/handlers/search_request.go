// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/autobrr/nzbridge/internal/matching"
	"github.com/autobrr/nzbridge/internal/newznab"
)

// Search modes accepted in the t parameter.
const (
	ModeSearch   = "search"
	ModeMovie    = "movie"
	ModeTVSearch = "tvsearch"
)

const (
	minSizeFloorMB = 100
	bytesPerMB     = 1024 * 1024
)

// SearchRequest is a parsed t=search|movie|tvsearch request.
type SearchRequest struct {
	Mode string
	// Query is the q parameter as sent.
	Query string
	// Label is Query with the structured parameters appended per mode.
	Label string

	Year    *int
	Season  *int
	Episode *int
	Strict  bool

	Limit     int
	Offset    int
	MinSizeMB int
}

// ParseSearchRequest reads the Newznab search parameters. configuredMinMB
// raises the 100 MB floor when larger.
func ParseSearchRequest(mode string, v url.Values, configuredMinMB int) SearchRequest {
	req := SearchRequest{
		Mode:    mode,
		Query:   strings.TrimSpace(v.Get("q")),
		Season:  intParam(v, "season", "seasonnum"),
		Episode: intParam(v, "ep", "epnum", "episode"),
		Year:    intParam(v, "year", "yr"),
		Strict:  mode == ModeMovie,
		Limit:   newznab.DefaultLimit,
	}

	if raw, ok := v["strict"]; ok && len(raw) > 0 {
		req.Strict = !isFalsy(raw[0])
	}

	if n := intParam(v, "limit"); n != nil && *n >= 0 {
		req.Limit = *n
	}
	if n := intParam(v, "offset"); n != nil && *n >= 0 {
		req.Offset = *n
	}

	floor := max(minSizeFloorMB, configuredMinMB)
	req.MinSizeMB = floor
	if n := intParam(v, "minsize"); n != nil {
		req.MinSizeMB = max(floor, *n)
	}

	req.Label = searchLabel(mode, req.Query, req.Year, req.Season, req.Episode)
	return req
}

// MinBytes is the size threshold in bytes.
func (r SearchRequest) MinBytes() int64 {
	return int64(r.MinSizeMB) * bytesPerMB
}

// Matching converts the request into the engine's query.
func (r SearchRequest) Matching() matching.Query {
	return matching.Query{
		Text:    r.Label,
		Year:    r.Year,
		Season:  r.Season,
		Episode: r.Episode,
		Strict:  r.Strict,
	}
}

// searchLabel appends the year for movies, and SxxEyy (or Sxx) plus the year
// for TV, skipping a year already present in q.
func searchLabel(mode, q string, year, season, episode *int) string {
	parts := make([]string, 0, 3)
	if q != "" {
		parts = append(parts, q)
	}

	appendYear := func() {
		if year != nil && *year != 0 && !strings.Contains(q, strconv.Itoa(*year)) {
			parts = append(parts, strconv.Itoa(*year))
		}
	}

	switch mode {
	case ModeMovie:
		appendYear()
	case ModeTVSearch:
		switch {
		case season != nil && episode != nil:
			parts = append(parts, fmt.Sprintf("S%02dE%02d", *season, *episode))
		case season != nil:
			parts = append(parts, fmt.Sprintf("S%02d", *season))
		}
		appendYear()
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}

// intParam returns the first of keys holding an integer.
func intParam(v url.Values, keys ...string) *int {
	for _, key := range keys {
		raw := strings.TrimSpace(v.Get(key))
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

func isFalsy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "false", "no", "off":
		return true
	}
	return false
}
