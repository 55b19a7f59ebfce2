// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package results

import (
	"strings"
	"time"
)

// Sample result identity. Indexer managers validate a new indexer with an
// empty or "test" query and expect at least one item back.
const (
	SampleHash     = "SAMPLEHASH1234567890"
	SampleFilename = "sample.matrix.clip"
	SampleExt      = ".mkv"
	SampleTitle    = "Sample Matrix Clip"
	SamplePoster   = "sample@example.com"
	SampleSize     = 700 * 1024 * 1024

	// SampleQuery labels the feed that carries the sample result.
	SampleQuery = "matrix"
)

// IsSampleQuery reports whether q should be answered with the sample result.
func IsSampleQuery(q string) bool {
	q = strings.TrimSpace(q)
	return q == "" || strings.EqualFold(q, "test")
}

// SamplePage returns the single synthetic result posted at now, windowed like
// any other page.
func SamplePage(now time.Time, offset, limit int) Page {
	posted := now.UTC().Truncate(time.Second)
	items := []Result{{
		Hash:      SampleHash,
		Filename:  SampleFilename,
		Ext:       SampleExt,
		Size:      SampleSize,
		Title:     SampleTitle,
		Poster:    SamplePoster,
		Posted:    &posted,
		PostedRaw: posted.Unix(),
		Sample:    true,
	}}
	return Page{
		Items: Window(items, offset, limit),
		Stats: Stats{Seen: 1, Kept: 1},
	}
}
