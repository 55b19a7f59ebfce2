// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"html"
	"regexp"
	"strings"
)

var parenGroupRe = regexp.MustCompile(`\(([^()]*)\)`)

// TitleSource holds the fields a display title can be resolved from.
type TitleSource struct {
	DisplayFilename string
	Extension       string // separate extension field, preferred over Ext
	Subject         string
	Filename        string
	Ext             string
}

// ResolveTitle picks the display title. A display filename wins and is turned
// into a dotted release name; otherwise the subject (or filename+ext) is
// cleaned with NormalizeTitle.
func ResolveTitle(src TitleSource) string {
	if cleaned := strings.TrimSpace(src.DisplayFilename); cleaned != "" {
		dotted := strings.Join(strings.Fields(strings.ReplaceAll(cleaned, " - ", "-")), ".")

		ext := src.Extension
		if ext == "" {
			ext = src.Ext
		}
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if dotted != "" {
			return dotted + ext
		}
	}

	fallback := src.Subject
	if fallback == "" {
		fallback = src.Filename + src.Ext
	}
	return NormalizeTitle(fallback)
}

// NormalizeTitle unescapes HTML entities and, when the subject wraps the
// release name in parentheses, returns the last non-empty group. Usenet
// subjects usually look like `[01/20] - "poster junk" (Real.Name.2010.mkv)`.
func NormalizeTitle(raw string) string {
	text := strings.TrimSpace(html.UnescapeString(raw))
	if text == "" {
		return text
	}

	groups := parenGroupRe.FindAllStringSubmatch(text, -1)
	for i := len(groups) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(groups[i][1]); candidate != "" {
			return candidate
		}
	}
	return text
}
