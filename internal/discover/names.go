// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package discover

import (
	"strings"
	"unicode"
)

// splitWords breaks an identifier into lowercase words on case
// transitions, underscores, hyphens, and spaces.
func splitWords(s string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, strings.ToLower(current.String()))
			current.Reset()
		}
	}

	prevUpper := false
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
			prevUpper = false
		case unicode.IsUpper(r):
			// Split on the lower-to-upper transition only, so acronyms
			// ("ID") stay one word.
			if !prevUpper {
				flush()
			}
			current.WriteRune(r)
			prevUpper = true
		default:
			current.WriteRune(r)
			prevUpper = false
		}
	}
	flush()
	return words
}

// SnakeCase converts an identifier to snake_case ("createdAt" becomes
// "created_at").
func SnakeCase(s string) string {
	return strings.Join(splitWords(s), "_")
}

// KebabCase converts an identifier to kebab-case slug form.
func KebabCase(s string) string {
	return strings.Join(splitWords(s), "-")
}

// CamelCase converts an identifier to camelCase ("created_at" becomes
// "createdAt").
func CamelCase(s string) string {
	words := splitWords(s)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		if w == "" {
			continue
		}
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}
