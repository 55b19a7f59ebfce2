// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package results

import (
	"net/url"
	"strings"
)

// ThumbnailURL builds the preview image location for a result, or "" when the
// result set carried no thumbnail base or the hash is empty.
//
//	<base>/<hash[:3]>/pr-<hash>.jpg/th-<slug>.jpg
func ThumbnailURL(base, hash, slug string) string {
	if base == "" || hash == "" {
		return ""
	}
	if slug == "" {
		slug = hash
	}

	prefix := hash
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteByte('/')
	b.WriteString(prefix)
	b.WriteString("/pr-")
	b.WriteString(hash)
	b.WriteString(".jpg/th-")
	b.WriteString(escapeSlug(strings.ReplaceAll(slug, "/", "_")))
	b.WriteString(".jpg")
	return b.String()
}

// escapeSlug percent-encodes everything outside the unreserved set, using %20
// for spaces.
func escapeSlug(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
