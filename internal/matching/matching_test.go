// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/nzbridge/internal/records"
)

func intPtr(v int) *int { return &v }

func TestSanitizePhrase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Blade.Runner.2049.1080p", want: "blade runner 2049 1080p"},
		{in: "  Tom & Jerry!! ", want: "tom and jerry"},
		{in: "Amélie_(2001)", want: "amélie_ 2001"},
		{in: "---", want: ""},
		{in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePhrase(tt.in))
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"dark", "knight", "rises"}, Tokenize("The Dark Knight Rises"))
	assert.Equal(t, []string{"lord", "rings"}, Tokenize("Lord of the Rings: A"))
	assert.Nil(t, Tokenize(""))
	assert.Empty(t, TokenSet("a the of"))
}

func TestFlagged(t *testing.T) {
	base := records.Fields{Hash: "h", Ext: ".mkv", Type: "VIDEO"}

	tests := []struct {
		name     string
		mutate   func(f *records.Fields)
		duration int
		known    bool
		want     bool
	}{
		{name: "clean video", mutate: func(*records.Fields) {}, want: false},
		{name: "exe always flagged", mutate: func(f *records.Fields) { f.Ext = ".exe" }, duration: 7200, known: true, want: true},
		{name: "extension without dot", mutate: func(f *records.Fields) { f.Ext = "MP4" }, want: false},
		{name: "password", mutate: func(f *records.Fields) { f.Password = true }, want: true},
		{name: "virus", mutate: func(f *records.Fields) { f.Virus = true }, want: true},
		{name: "non-video type", mutate: func(f *records.Fields) { f.Type = "AUDIO" }, want: true},
		{name: "empty type ok", mutate: func(f *records.Fields) { f.Type = "" }, want: false},
		{name: "59 seconds", mutate: func(*records.Fields) {}, duration: 59, known: true, want: true},
		{name: "60 seconds", mutate: func(*records.Fields) {}, duration: 60, known: true, want: false},
		{name: "zero known duration", mutate: func(*records.Fields) {}, duration: 0, known: true, want: true},
		{name: "unknown duration", mutate: func(*records.Fields) {}, duration: 0, known: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			tt.mutate(&f)
			assert.Equal(t, tt.want, Flagged(f, tt.duration, tt.known))
		})
	}
}

func TestEngineSizeBoundary(t *testing.T) {
	e := Engine{MinBytes: 100 * 1024 * 1024}

	assert.Equal(t, RejectNone, e.Evaluate(Candidate{Title: "x", Size: e.MinBytes}))
	assert.Equal(t, RejectSize, e.Evaluate(Candidate{Title: "x", Size: e.MinBytes - 1}))
}

func TestTokenSubset(t *testing.T) {
	e := Engine{Meta: NewQueryMeta(Query{Text: "dark knight"})}

	assert.Equal(t, RejectNone, e.Match(Candidate{Title: "The Dark Knight Rises"}))
	assert.Equal(t, RejectTokens, e.Match(Candidate{Title: "Batman Begins"}))
	assert.Equal(t, RejectTokens, e.Match(Candidate{Title: "..."}))
}

func TestMatchesStrict(t *testing.T) {
	assert.True(t, MatchesStrict("Blade.Runner.2049.1080p", "blade runner 2049"))
	assert.False(t, MatchesStrict("runner blade 2049", "blade runner"))
	assert.True(t, MatchesStrict("Blade Runner", "blade runner"))
	assert.True(t, MatchesStrict("anything", ""))
	assert.False(t, MatchesStrict("!!!", "blade"))
	assert.False(t, MatchesStrict("Blade", "blade runner"))
}

func TestStrictEngine(t *testing.T) {
	e := Engine{Meta: NewQueryMeta(Query{Text: "Blade Runner", Strict: true})}
	require.Equal(t, "blade runner", e.Meta.StrictPhrase)

	assert.Equal(t, RejectNone, e.Match(Candidate{Title: "Blade.Runner.1982.Final.Cut.mkv"}))
	assert.Equal(t, RejectStrict, e.Match(Candidate{Title: "Runner.Blade.mkv"}))

	loose := Engine{Meta: NewQueryMeta(Query{Text: "Blade Runner"})}
	assert.Empty(t, loose.Meta.StrictPhrase)
	assert.Equal(t, RejectNone, loose.Match(Candidate{Title: "Runner.Blade.mkv"}))
}

func TestNewQueryMeta(t *testing.T) {
	meta := NewQueryMeta(Query{Text: "Show S01E02 720p"})
	require.NotNil(t, meta.Season)
	require.NotNil(t, meta.Episode)
	assert.Equal(t, 1, *meta.Season)
	assert.Equal(t, 2, *meta.Episode)
	assert.Equal(t, "720p", meta.Quality)
	assert.Contains(t, meta.Tokens, "show")

	meta = NewQueryMeta(Query{Text: "Show S01E02", Season: intPtr(4), Year: intPtr(2001)})
	assert.Equal(t, 4, *meta.Season, "explicit season wins")
	assert.Equal(t, 2, *meta.Episode)
	assert.Equal(t, 2001, *meta.Year)
}

func TestStructuredMatch(t *testing.T) {
	e := Engine{Meta: NewQueryMeta(Query{Text: "Inception 2010"})}

	tests := []struct {
		name string
		c    Candidate
		want Rejection
	}{
		{name: "same year", c: Candidate{Title: "Inception.2010.1080p", Year: intPtr(2010)}, want: RejectNone},
		{name: "mismatched year", c: Candidate{Title: "Inception.2023.Fan.Edit", Year: intPtr(2023)}, want: RejectMetadata},
		{name: "unknown year passes to tokens", c: Candidate{Title: "Inception 2010"}, want: RejectNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Match(tt.c))
		})
	}

	q := Engine{Meta: QueryMeta{Quality: "1080P", Season: intPtr(0)}}
	assert.Equal(t, RejectNone, q.Match(Candidate{Title: "x", Quality: "1080p", Season: intPtr(0)}))
	assert.Equal(t, RejectMetadata, q.Match(Candidate{Title: "x", Quality: "720p"}))
	assert.Equal(t, RejectMetadata, q.Match(Candidate{Title: "x", Season: intPtr(1)}))
}
