// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package selection

import (
	"encoding/base64"
	"net/url"
	"strconv"
	"strings"
)

// Item is one result to include in a manifest request.
type Item struct {
	Hash     string
	Filename string
	Ext      string
	Sig      string
}

// Field is a single form field. Payload keeps fields in insertion order.
type Field struct {
	Key   string
	Value string
}

// Payload is the ordered form accepted by the upstream NZB endpoint.
type Payload []Field

// BuildPayload produces autoNZB=1, one field per item and nameZipQ0 when name
// is set. Item keys are the zero based index, with "&sig=<sig>" appended when
// the item carries a signature.
func BuildPayload(items []Item, name string) Payload {
	p := make(Payload, 0, len(items)+2)
	p = append(p, Field{Key: "autoNZB", Value: "1"})

	for i, it := range items {
		key := strconv.Itoa(i)
		if it.Sig != "" {
			key += "&sig=" + it.Sig
		}
		p = append(p, Field{Key: key, Value: it.valueToken()})
	}

	if name != "" {
		p = append(p, Field{Key: "nameZipQ0", Value: name})
	}
	return p
}

// valueToken is "<hash>|<b64(filename)>:<b64(ext)>" with padding removed.
func (it Item) valueToken() string {
	return it.Hash + "|" +
		base64.RawStdEncoding.EncodeToString([]byte(it.Filename)) + ":" +
		base64.RawStdEncoding.EncodeToString([]byte(it.Ext))
}

// Get returns the value of the first field named key.
func (p Payload) Get(key string) (string, bool) {
	for _, f := range p {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Encode form-encodes the payload preserving field order.
func (p Payload) Encode() string {
	var b strings.Builder
	for i, f := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(f.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.Value))
	}
	return b.String()
}

// ItemFromToken converts a decoded token into a payload item.
func ItemFromToken(t Token) Item {
	return Item{Hash: t.Hash, Filename: t.Filename, Ext: t.Ext, Sig: t.Sig}
}
