// Package textutil prepares email body text for prompt embedding. All
// functions are pure so prompt construction stays deterministic.
package textutil

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	tagGapRE     = regexp.MustCompile(`>\s+<`)
)

// truncationMarker is appended whenever body text is cut.
const truncationMarker = "\n[... Content truncated due to size limits ...]"

// CleanHTML unescapes entities and collapses whitespace while preserving tag
// structure, so semantically identical bodies produce identical prompt text.
func CleanHTML(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(s)
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = tagGapRE.ReplaceAllString(s, "><")
	return strings.TrimSpace(s)
}

// Truncate caps text at maxSize bytes, backing up to a valid UTF-8 boundary.
// maxSize <= 0 disables truncation.
func Truncate(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + truncationMarker
}

// SanitizeUTF8 drops invalid byte sequences, keeping only valid UTF-8.
func SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}

	result := make([]rune, 0, len(text))
	for i, r := range text {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(text[i:])
			if size == 1 {
				continue
			}
		}
		result = append(result, r)
	}
	return string(result)
}
