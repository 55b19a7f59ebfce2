// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package results

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var postedLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07:00",
}

// CoercePosted interprets the upstream posted value as a UTC time: epoch
// seconds (number or digit string) or one of a few timestamp layouts. Nil means
// the value is absent or unrecognized.
func CoercePosted(raw any) *time.Time {
	switch v := raw.(type) {
	case nil:
		return nil
	case time.Time:
		t := v.UTC()
		return &t
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return epoch(n)
		}
		f, err := v.Float64()
		if err != nil {
			return nil
		}
		return epochFloat(f)
	case float64:
		return epochFloat(v)
	case int:
		return epoch(int64(v))
	case int64:
		return epoch(v)
	case string:
		return parsePostedText(v)
	}
	return nil
}

func parsePostedText(raw string) *time.Time {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if isDigits(text) {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil
		}
		return epoch(n)
	}
	for _, layout := range postedLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func epochFloat(f float64) *time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	return epoch(int64(f))
}

func epoch(n int64) *time.Time {
	t := time.Unix(n, 0).UTC()
	return &t
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
