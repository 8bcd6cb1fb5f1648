// Copyright 2025 The Yuumi Authors
// SPDX-License-Identifier: Apache-2.0

package textutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing,
// and trimming spaces. Department and city filters compare through this so
// "Hérault" and "herault" match.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// EqualFold reports whether a and b are equal after accent folding and
// lowercasing.
func EqualFold(a, b string) bool {
	return LowerASCIIFolding(a) == LowerASCIIFolding(b)
}

// Slugify turns free text into a URL slug: accents folded, lowercased,
// runs of non-alphanumerics collapsed to single hyphens.
func Slugify(s string) string {
	folded := LowerASCIIFolding(s)

	var b strings.Builder

	lastHyphen := true // swallow leading separators

	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)

			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')

				lastHyphen = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}

// TitleCase trims the string and uppercases the first letter of each word.
// Used when normalizing department and city labels for display.
func TitleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if len(r) > 0 {
			r[0] = unicode.ToUpper(r[0])
		}

		words[i] = string(r)
	}

	return strings.Join(words, " ")
}
