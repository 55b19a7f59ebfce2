// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package results turns an upstream result set into the ordered, filtered and
// annotated list of items served in a feed.
package results

import (
	"time"

	"github.com/moistari/rls"

	"github.com/autobrr/nzbridge/internal/matching"
	"github.com/autobrr/nzbridge/internal/metadata"
	"github.com/autobrr/nzbridge/internal/records"
)

// Result is one retained, annotated search result.
type Result struct {
	Hash     string
	Filename string
	Ext      string
	Sig      string
	Size     int64
	Title    string
	Poster   string

	// Posted is nil when the raw value could not be interpreted.
	Posted    *time.Time
	PostedRaw any

	Duration     *int
	DurationText string
	Quality      string
	ThumbnailURL string

	Year    *int
	Season  *int
	Episode *int

	Sample bool

	// Group and Source are release tags parsed from the title. They never
	// filter.
	Group  string
	Source string
}

// Options controls one assembly run.
type Options struct {
	MinBytes int64
	Query    matching.QueryMeta

	Offset int
	Limit  int
}

// Stats counts what happened to every record of a result set.
type Stats struct {
	Seen       int
	Malformed  int
	Undersized int
	Flagged    int
	Unmatched  int
	Kept       int
}

// Page is the outcome of Assemble.
type Page struct {
	Items []Result
	Stats Stats
}

// Assemble runs every record through normalize, size, flag and match in
// upstream order, annotates the survivors and applies Offset/Limit last.
func Assemble(set records.RawResultSet, opts Options) Page {
	engine := matching.Engine{MinBytes: opts.MinBytes, Meta: opts.Query}

	var page Page
	kept := make([]Result, 0, len(set.Records))

	for _, rec := range set.Records {
		page.Stats.Seen++

		fields, ok := records.Normalize(rec)
		if !ok {
			page.Stats.Malformed++
			continue
		}

		if !engine.PassesSize(fields.Size) {
			page.Stats.Undersized++
			continue
		}

		seconds, durationKnown := metadata.ParseDuration(fields.Duration)
		if matching.Flagged(fields, seconds, durationKnown) {
			page.Stats.Flagged++
			continue
		}

		title := metadata.ResolveTitle(metadata.TitleSource{
			DisplayFilename: fields.DisplayFilename,
			Extension:       fields.Extension,
			Subject:         fields.Subject,
			Filename:        fields.Filename,
			Ext:             fields.Ext,
		})
		quality := metadata.ExtractQuality(title, fields.Resolution)
		markers := metadata.ExtractMarkers(title, quality)
		if quality == "" {
			quality = markers.Quality
		}

		if engine.Match(matching.Candidate{
			Title:   title,
			Size:    fields.Size,
			Year:    markers.Year,
			Season:  markers.Season,
			Episode: markers.Episode,
			Quality: quality,
		}) != matching.RejectNone {
			page.Stats.Unmatched++
			continue
		}

		result := Result{
			Hash:         fields.Hash,
			Filename:     fields.Filename,
			Ext:          fields.Ext,
			Sig:          fields.Sig,
			Size:         fields.Size,
			Title:        title,
			Poster:       fields.Poster,
			PostedRaw:    fields.Posted,
			Posted:       CoercePosted(fields.Posted),
			Quality:      quality,
			ThumbnailURL: ThumbnailURL(set.ThumbURL, fields.Hash, fields.Filename),
			Year:         markers.Year,
			Season:       markers.Season,
			Episode:      markers.Episode,
		}
		if durationKnown {
			d := seconds
			result.Duration = &d
			result.DurationText = metadata.FormatDuration(seconds)
		}

		release := rls.ParseString(title)
		result.Group = release.Group
		result.Source = release.Source

		kept = append(kept, result)
	}

	page.Stats.Kept = len(kept)
	page.Items = Window(kept, opts.Offset, opts.Limit)
	return page
}

// Window returns items[offset:offset+limit] clamped to the slice. A negative
// offset counts as zero; a non-positive limit yields no items.
func Window[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := offset + limit
	if end > len(items) || end < offset {
		end = len(items)
	}
	return items[offset:end]
}
