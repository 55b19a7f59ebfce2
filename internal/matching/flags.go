// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"strings"

	"github.com/autobrr/nzbridge/internal/records"
)

// MinDurationSeconds is the shortest known runtime kept in results.
const MinDurationSeconds = 60

const videoType = "VIDEO"

var allowedVideoExtensions = map[string]struct{}{
	"mkv":  {},
	"mp4":  {},
	"m4v":  {},
	"avi":  {},
	"ts":   {},
	"mov":  {},
	"wmv":  {},
	"mpg":  {},
	"mpeg": {},
	"flv":  {},
	"webm": {},
}

// AllowedExtension reports whether ext (with or without leading dot) is a
// playable video container.
func AllowedExtension(ext string) bool {
	_, ok := allowedVideoExtensions[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))]
	return ok
}

// Flagged reports whether a record must be hidden: password protected or
// virus flagged, a non-video content type, a non-video extension, or a known
// runtime under a minute. An unknown duration never flags on its own.
func Flagged(f records.Fields, durationSeconds int, durationKnown bool) bool {
	if f.Password || f.Virus {
		return true
	}
	if f.Type != "" && f.Type != videoType {
		return true
	}
	if f.Ext != "" && !AllowedExtension(f.Ext) {
		return true
	}
	if durationKnown && durationSeconds < MinDurationSeconds {
		return true
	}
	return false
}
