// Package sanitize normalizes extracted text and monetary values before they
// are persisted.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// BinaryMarker replaces embedded binary or PDF stream content.
const BinaryMarker = "[binary content omitted]"

// TruncationMarker is appended to text cut by Truncate.
const TruncationMarker = "... [truncated]"

var (
	pdfStreamRe  = regexp.MustCompile(`(?s)\bstream\s*\n.*?\bendstream\b`)
	pdfObjRe     = regexp.MustCompile(`\b\d+ \d+ obj\b|\bendobj\b|%PDF-\d\.\d|%%EOF`)
	markerRunRe  = regexp.MustCompile(`(?:` + regexp.QuoteMeta(BinaryMarker) + `\s*){2,}`)
	spaceRunRe   = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	newlineEdge  = regexp.MustCompile(` ?\n ?`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// unsafeRune reports control and replacement characters that must not be
// persisted. Newlines and tabs survive here and are normalized later.
func unsafeRune(r rune) bool {
	if r == '\n' || r == '\t' {
		return false
	}
	return r == utf8.RuneError || unicode.IsControl(r) || r == '\u200b' || r == '\ufeff'
}

var cleaner = transform.Chain(runes.Remove(runes.Predicate(unsafeRune)), norm.NFC)

// Text strips control and null characters, replaces embedded binary/PDF
// stream content with a marker, and collapses whitespace. It is idempotent:
// Text(Text(s)) == Text(s).
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	if out, _, err := transform.String(cleaner, s); err == nil {
		s = out
	}

	// Removing a marker can join the text around it into a new one, so
	// repeat until nothing changes.
	for i := 0; i < maxPasses; i++ {
		next := collapse(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

const maxPasses = 8

func collapse(s string) string {
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = pdfObjRe.ReplaceAllString(s, " ")
	s = pdfStreamRe.ReplaceAllString(s, " "+BinaryMarker+" ")
	s = markerRunRe.ReplaceAllString(s, BinaryMarker+" ")

	s = spaceRunRe.ReplaceAllString(s, " ")
	s = newlineEdge.ReplaceAllString(s, "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate limits s to max runes, appending TruncationMarker when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:max]), " \n") + TruncationMarker
}

// OptionalText sanitizes an optional field, returning nil for blank results.
func OptionalText(s *string) *string {
	if s == nil {
		return nil
	}
	out := Text(*s)
	if out == "" || isNullWord(out) {
		return nil
	}
	return &out
}

func isNullWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "null", "none", "n/a", "na", "not found", "not available", "unknown", "-":
		return true
	default:
		return false
	}
}
