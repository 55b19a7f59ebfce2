// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package records

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies which wire shape an upstream record arrived in.
type Kind int

const (
	KindUnknown Kind = iota
	KindArray
	KindMap
)

// RawRecord is a single upstream search record. Easynews returns either a
// positional array or an object keyed by semantic names or numeric strings,
// sometimes both within the same response.
type RawRecord struct {
	Kind   Kind
	Array  []any
	Fields map[string]any
}

// ArrayRecord builds a positional record.
func ArrayRecord(values ...any) RawRecord {
	return RawRecord{Kind: KindArray, Array: values}
}

// MapRecord builds a keyed record.
func MapRecord(fields map[string]any) RawRecord {
	return RawRecord{Kind: KindMap, Fields: fields}
}

// UnmarshalJSON decodes either shape. Numbers are kept as json.Number so
// sizes and hashes do not lose precision through float64.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		*r = RawRecord{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch trimmed[0] {
	case '[':
		var values []any
		if err := dec.Decode(&values); err != nil {
			return fmt.Errorf("decode array record: %w", err)
		}
		*r = RawRecord{Kind: KindArray, Array: values}
	case '{':
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return fmt.Errorf("decode map record: %w", err)
		}
		*r = RawRecord{Kind: KindMap, Fields: fields}
	default:
		*r = RawRecord{}
	}
	return nil
}

// RawResultSet is the decoded body of a solr-search response.
type RawResultSet struct {
	Records  []RawRecord
	ThumbURL string
}

type rawResultSetJSON struct {
	Data     []RawRecord `json:"data"`
	ThumbURL string      `json:"thumbURL"`
	ThumbUrl string      `json:"thumbUrl"`
}

// UnmarshalJSON accepts both spellings of the thumbnail base key.
func (s *RawResultSet) UnmarshalJSON(data []byte) error {
	var payload rawResultSetJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	s.Records = payload.Data
	s.ThumbURL = payload.ThumbURL
	if s.ThumbURL == "" {
		s.ThumbURL = payload.ThumbUrl
	}
	return nil
}

// DecodeResultSet parses a solr-search JSON body.
func DecodeResultSet(body []byte) (RawResultSet, error) {
	var set RawResultSet
	if err := json.Unmarshal(body, &set); err != nil {
		return RawResultSet{}, fmt.Errorf("decode search response: %w", err)
	}
	return set, nil
}
