// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"strings"

	"github.com/autobrr/nzbridge/internal/metadata"
)

// Query describes what the feed consumer asked for.
type Query struct {
	// Text is the full search label, e.g. "Show S01E02" or "Inception 2010".
	Text    string
	Year    *int
	Season  *int
	Episode *int
	Strict  bool
}

// QueryMeta is derived once per request and reused for every candidate.
type QueryMeta struct {
	Tokens       map[string]struct{}
	Year         *int
	Season       *int
	Episode      *int
	Quality      string
	StrictPhrase string
	Strict       bool
}

// NewQueryMeta tokenizes the query text and merges the markers found in it
// with the explicit year/season/episode parameters, which take precedence.
func NewQueryMeta(q Query) QueryMeta {
	markers := metadata.ExtractMarkers(q.Text, "")

	meta := QueryMeta{
		Tokens:  TokenSet(q.Text),
		Year:    markers.Year,
		Season:  markers.Season,
		Episode: markers.Episode,
		Quality: markers.Quality,
		Strict:  q.Strict,
	}
	if q.Year != nil {
		meta.Year = q.Year
	}
	if q.Season != nil {
		meta.Season = q.Season
	}
	if q.Episode != nil {
		meta.Episode = q.Episode
	}
	if q.Strict {
		meta.StrictPhrase = SanitizePhrase(q.Text)
	}
	return meta
}

// Candidate is the annotated view of a result the engine decides on.
type Candidate struct {
	Title   string
	Size    int64
	Year    *int
	Season  *int
	Episode *int
	Quality string
}

// Rejection names the filter that dropped a candidate. Empty means kept.
type Rejection string

const (
	RejectNone     Rejection = ""
	RejectSize     Rejection = "size"
	RejectStrict   Rejection = "strict"
	RejectMetadata Rejection = "metadata"
	RejectTokens   Rejection = "tokens"
)

// Engine applies the size threshold and the query filters.
type Engine struct {
	MinBytes int64
	Meta     QueryMeta
}

// PassesSize reports whether size meets the threshold (inclusive).
func (e Engine) PassesSize(size int64) bool {
	return size >= e.MinBytes
}

// Match runs strict phrase, structured metadata and token subset checks in
// that order. Size is checked separately by the caller before flagging.
func (e Engine) Match(c Candidate) Rejection {
	if e.Meta.Strict && !MatchesStrict(c.Title, e.Meta.StrictPhrase) {
		return RejectStrict
	}
	if !e.Meta.matchesMarkers(c) {
		return RejectMetadata
	}
	if !e.Meta.matchesTokens(c.Title) {
		return RejectTokens
	}
	return RejectNone
}

// Evaluate is Match preceded by the size threshold.
func (e Engine) Evaluate(c Candidate) Rejection {
	if !e.PassesSize(c.Size) {
		return RejectSize
	}
	return e.Match(c)
}

func (m QueryMeta) matchesMarkers(c Candidate) bool {
	if !intsAgree(m.Year, c.Year) || !intsAgree(m.Season, c.Season) || !intsAgree(m.Episode, c.Episode) {
		return false
	}
	if m.Quality != "" && c.Quality != "" && !strings.EqualFold(m.Quality, c.Quality) {
		return false
	}
	return true
}

// intsAgree is true unless both sides are known and differ.
func intsAgree(want, got *int) bool {
	if want == nil || got == nil {
		return true
	}
	return *want == *got
}

func (m QueryMeta) matchesTokens(title string) bool {
	if len(m.Tokens) == 0 {
		return true
	}
	titleTokens := TokenSet(title)
	if len(titleTokens) == 0 {
		return false
	}
	for tok := range m.Tokens {
		if _, ok := titleTokens[tok]; !ok {
			return false
		}
	}
	return true
}

// MatchesStrict reports whether the sanitized title equals the phrase or
// contains the phrase's words as a contiguous run.
func MatchesStrict(title, phrase string) bool {
	if phrase == "" {
		return true
	}
	candidate := SanitizePhrase(title)
	if candidate == "" {
		return false
	}
	if candidate == phrase {
		return true
	}

	titleWords := strings.Fields(candidate)
	phraseWords := strings.Fields(phrase)
	if len(phraseWords) == 0 {
		return true
	}
	for i := 0; i+len(phraseWords) <= len(titleWords); i++ {
		if equalWords(titleWords[i:i+len(phraseWords)], phraseWords) {
			return true
		}
	}
	return false
}

func equalWords(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
