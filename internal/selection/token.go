// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package selection carries a search result from the feed to the manifest
// request: the opaque id handed to consumers, the upstream selection form and
// the post-processing of the returned NZB.
package selection

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned for any id that cannot be turned back into a
// selection.
var ErrInvalidToken = errors.New("invalid selection token")

// Token holds everything needed to request the manifest of one result later.
type Token struct {
	Hash     string `json:"hash"`
	Filename string `json:"filename"`
	Ext      string `json:"ext"`
	Sig      string `json:"sig"`
	Title    string `json:"title"`
	Sample   bool   `json:"sample,omitempty"`
}

// EncodeToken serializes t as compact JSON in unpadded URL-safe base64.
func EncodeToken(t Token) (string, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal selection token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeToken reverses EncodeToken. Stripped padding is restored first, so ids
// produced by other encoders that keep or drop padding are both accepted.
func DecodeToken(id string) (Token, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Token{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	id = strings.TrimRight(id, "=")
	padded := id + strings.Repeat("=", (4-len(id)%4)%4)

	raw, err := base64.URLEncoding.DecodeString(padded)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Sample && (t.Hash == "" || t.Ext == "") {
		return Token{}, fmt.Errorf("%w: missing hash or extension", ErrInvalidToken)
	}
	return t, nil
}

// DownloadName is the manifest name for t: its title, else filename plus
// extension.
func (t Token) DownloadName() string {
	if t.Title != "" {
		return t.Title
	}
	return t.Filename + t.Ext
}
