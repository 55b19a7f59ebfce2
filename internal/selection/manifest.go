// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package selection

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/javi11/nzbparser"
)

const maxFilenameRunes = 200

var (
	emptyDateAttr = []byte(`date=""`)
	zeroDateAttr  = []byte(`date="0"`)
)

// NormalizeManifest rewrites every empty date attribute to date="0". Some NZB
// consumers refuse files with empty dates.
func NormalizeManifest(content []byte) []byte {
	return bytes.ReplaceAll(content, emptyDateAttr, zeroDateAttr)
}

// SafeFilename keeps letters, digits, space, '-', '_' and '.', truncates to 200
// runes and trims. It returns "download" when nothing is left.
func SafeFilename(name string) string {
	var b strings.Builder
	count := 0
	for _, r := range name {
		if count >= maxFilenameRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			count++
		}
	}
	if safe := strings.TrimSpace(b.String()); safe != "" {
		return safe
	}
	return "download"
}

// ManifestSummary describes a parsed NZB.
type ManifestSummary struct {
	Files    int
	Segments int
	Bytes    int64
}

// InspectManifest parses content as NZB and totals its files and segments.
func InspectManifest(content []byte) (ManifestSummary, error) {
	parsed, err := nzbparser.Parse(bytes.NewReader(content))
	if err != nil {
		return ManifestSummary{}, fmt.Errorf("parse nzb: %w", err)
	}

	var s ManifestSummary
	s.Files = len(parsed.Files)
	for _, f := range parsed.Files {
		s.Segments += len(f.Segments)
		for _, seg := range f.Segments {
			s.Bytes += int64(seg.Bytes)
		}
	}
	return s, nil
}

// SampleManifestName is the download name of SampleManifest.
const SampleManifestName = "sample"

// SampleManifest is the fixed placeholder served for the sample result.
func SampleManifest() []byte {
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<nzb xmlns="http://www.newzbin.com/DTD/2003/nzb">` +
		`<file subject="Sample Matrix Clip" date="0" poster="sample@example.com">` +
		`<groups><group>alt.binaries.sample</group></groups>` +
		`<segments><segment bytes="1024" number="1">sample</segment></segments>` +
		`</file></nzb>`)
}
