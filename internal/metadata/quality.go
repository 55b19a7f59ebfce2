// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"regexp"
	"strings"
)

var resolutionRe = regexp.MustCompile(`(?i)(2160|1440|1080|720|480|360)\s*(p|i)?`)

// qualityRule inspects lower-cased text and returns a quality label.
type qualityRule struct {
	name  string
	match func(lowered string) string
}

// qualityRules is evaluated in order against a single text; "4k" beats an
// explicit resolution, which beats the uhd/fhd keywords.
var qualityRules = []qualityRule{
	{name: "4k", match: keywordQuality("4k", "2160p")},
	{name: "resolution", match: resolutionQuality},
	{name: "uhd", match: keywordQuality("uhd", "2160p")},
	{name: "fhd", match: keywordQuality("fhd", "1080p")},
}

func keywordQuality(keyword, label string) func(string) string {
	return func(lowered string) string {
		if strings.Contains(lowered, keyword) {
			return label
		}
		return ""
	}
}

func resolutionQuality(lowered string) string {
	m := resolutionRe.FindStringSubmatch(lowered)
	if m == nil {
		return ""
	}
	suffix := m[2]
	if suffix == "" {
		suffix = "p"
	}
	return m[1] + strings.ToLower(suffix)
}

// ExtractQuality returns the quality label of the first text that yields one.
// Later texts are not consulted once an earlier text matched.
func ExtractQuality(texts ...string) string {
	for _, text := range texts {
		if text == "" {
			continue
		}
		lowered := strings.ToLower(text)
		for _, rule := range qualityRules {
			if q := rule.match(lowered); q != "" {
				return q
			}
		}
	}
	return ""
}
