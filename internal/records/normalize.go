// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package records

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Positional offsets of the array-shaped solr-search record. These mirror the
// upstream wire format and must not be reordered.
const (
	posHash     = 0
	posSubject  = 6
	posPoster   = 7
	posPosted   = 8
	posFilename = 10
	posExt      = 11
	posDuration = 14

	minArrayLen = 12
)

// Fields is the canonical view of one upstream record. Downstream stages never
// see the raw shape.
type Fields struct {
	Hash     string
	Subject  string
	Filename string // without extension
	Ext      string
	Sig      string
	Size     int64
	Poster   string
	Posted   any

	// DisplayFilename is the human readable filename some map records carry.
	DisplayFilename string
	// Extension is the separate extension field of map records.
	Extension string
	// Duration is left untyped; metadata.ParseDuration interprets it.
	Duration any
	// Resolution is the raw resolution hint (fullres/resolution).
	Resolution string

	Password bool
	Virus    bool
	Type     string
}

// Normalize converts one raw record into Fields. The boolean is false when the
// record is unusable (no hash or no extension).
func Normalize(rec RawRecord) (Fields, bool) {
	var f Fields

	switch rec.Kind {
	case KindArray:
		f = fromArray(rec.Array)
	case KindMap:
		f = fromMap(rec.Fields)
	default:
		return Fields{}, false
	}

	if f.Ext == "" {
		f.Ext = f.Extension
	}
	if f.Hash == "" || f.Ext == "" {
		return Fields{}, false
	}
	return f, true
}

func fromArray(values []any) Fields {
	var f Fields
	if len(values) >= minArrayLen {
		f.Hash = stringValue(values[posHash])
		f.Subject = stringValue(values[posSubject])
		f.Filename = stringValue(values[posFilename])
		f.Ext = stringValue(values[posExt])
	}
	if len(values) > posPoster {
		f.Poster = stringValue(values[posPoster])
	}
	if len(values) > posPosted {
		f.Posted = values[posPosted]
	}
	if len(values) > posDuration {
		f.Duration = values[posDuration]
	}
	return f
}

func fromMap(m map[string]any) Fields {
	f := Fields{
		Hash:            firstString(m, "hash", "0", "id"),
		Subject:         firstString(m, "subject", "6"),
		Filename:        firstString(m, "filename", "10"),
		Ext:             firstString(m, "ext", "11"),
		Extension:       firstString(m, "extension", "ext"),
		Poster:          firstString(m, "poster", "7"),
		Posted:          firstNonZero(m, "dtime", "date", "12"),
		Sig:             firstString(m, "sig"),
		DisplayFilename: firstString(m, "fn", "filename"),
		Duration:        firstNonZero(m, "duration", "len", "14"),
		Resolution:      firstString(m, "fullres", "resolution"),
		Size:            sizeValue(m["size"]),
		Password:        truthy(m["passwd"]) || truthy(m["password"]),
		Virus:           truthy(m["virus"]),
		Type:            strings.ToUpper(firstString(m, "type", "file_type")),
	}
	return f
}

// firstValue returns the first non-empty value among keys.
func firstValue(m map[string]any, keys ...string) any {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || isEmpty(v) {
			continue
		}
		return v
	}
	return nil
}

// firstNonZero is firstValue that also skips numeric zeros.
func firstNonZero(m map[string]any, keys ...string) any {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || isEmpty(v) || isZeroNumber(v) {
			continue
		}
		return v
	}
	return nil
}

func isZeroNumber(v any) bool {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	}
	return false
}

func firstString(m map[string]any, keys ...string) string {
	return stringValue(firstValue(m, keys...))
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	}
	return false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return ""
	}
	return ""
}

func sizeValue(v any) int64 {
	var size int64
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			size = n
		} else if f, err := t.Float64(); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			size = int64(f)
		}
	case float64:
		size = int64(t)
	case int:
		size = int64(t)
	case int64:
		size = t
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			size = n
		}
	}
	if size < 0 {
		return 0
	}
	return size
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return strings.TrimSpace(t) != ""
	}
	return true
}
