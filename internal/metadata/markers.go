// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metadata

import (
	"regexp"
	"strconv"
)

var markerRe = regexp.MustCompile(`(?i)(?:s(?P<season>\d{1,2})e(?P<episode>\d{1,2})|(?P<season2>\d{1,2})x(?P<episode2>\d{1,2}))|(?P<year>(?:19|20)\d{2})`)

var (
	markerSeason   = markerRe.SubexpIndex("season")
	markerEpisode  = markerRe.SubexpIndex("episode")
	markerSeason2  = markerRe.SubexpIndex("season2")
	markerEpisode2 = markerRe.SubexpIndex("episode2")
	markerYear     = markerRe.SubexpIndex("year")
)

// Markers are the release markers found in a title. Nil means not found.
type Markers struct {
	Year    *int
	Season  *int
	Episode *int
	Quality string
}

// ExtractMarkers scans text once. The first episode marker (S01E02 or 1x02)
// sets season and episode, the first 19xx/20xx sets the year; later matches
// never overwrite. Quality comes from the hint, or from the text when the hint
// is empty.
func ExtractMarkers(text, qualityHint string) Markers {
	var m Markers
	if text == "" {
		return m
	}

	for _, match := range markerRe.FindAllStringSubmatch(text, -1) {
		season := firstNonEmpty(match[markerSeason], match[markerSeason2])
		episode := firstNonEmpty(match[markerEpisode], match[markerEpisode2])
		if season != "" {
			if m.Season == nil {
				m.Season = atoiPtr(season)
			}
			if episode != "" && m.Episode == nil {
				m.Episode = atoiPtr(episode)
			}
		}
		if year := match[markerYear]; year != "" && m.Year == nil {
			m.Year = atoiPtr(year)
		}
	}

	m.Quality = qualityHint
	if m.Quality == "" {
		m.Quality = ExtractQuality(text)
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}
