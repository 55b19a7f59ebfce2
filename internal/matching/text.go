// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package matching

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"the": {},
	"a":   {},
	"an":  {},
	"and": {},
	"of":  {},
	"in":  {},
	"for": {},
	"on":  {},
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// SanitizePhrase lower-cases text, maps "&" to "and" and collapses every run
// of non-word characters into a single space.
// "Blade.Runner.2049.1080p" -> "blade runner 2049 1080p".
func SanitizePhrase(text string) string {
	if text == "" {
		return ""
	}

	working := strings.ToLower(strings.ReplaceAll(norm.NFC.String(text), "&", " and "))

	var b strings.Builder
	b.Grow(len(working))
	pendingSpace := false
	for _, r := range working {
		if isWordRune(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Tokenize returns the sanitized words of text that are longer than one
// character and not stop words, in order of appearance.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	words := strings.Fields(SanitizePhrase(text))
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) <= 1 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// TokenSet is Tokenize as a set.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}
