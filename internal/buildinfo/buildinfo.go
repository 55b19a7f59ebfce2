// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package buildinfo holds values injected at link time.
package buildinfo

import (
	"fmt"
	"runtime"
)

// Set via -ldflags "-X github.com/autobrr/nzbridge/internal/buildinfo.Version=..."
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// UserAgent is sent on every upstream request.
var UserAgent = fmt.Sprintf("nzbridge/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)

// String is the long version line printed by the version command.
func String() string {
	s := Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	if Date != "" {
		s += " built " + Date
	}
	return s
}
