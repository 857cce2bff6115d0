package model

import "strings"

// Confidence is a coarse reliability estimate for an extraction record.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Rank orders confidences Low < Medium < High. Unknown values rank below Low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

// Valid reports whether c is one of the known confidence levels.
func (c Confidence) Valid() bool {
	return c.Rank() > 0
}

// Downgrade returns the next lower confidence level, bottoming out at Low.
func (c Confidence) Downgrade() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MinConfidence returns the lowest of the given confidences. Unknown values
// are ignored; with no known values the result is Low.
func MinConfidence(cs ...Confidence) Confidence {
	out := Confidence("")
	for _, c := range cs {
		if !c.Valid() {
			continue
		}
		if out == "" || c.Rank() < out.Rank() {
			out = c
		}
	}
	if out == "" {
		return ConfidenceLow
	}
	return out
}

// ParseConfidence maps a free-text level (any case) to a Confidence.
func ParseConfidence(s string) (Confidence, bool) {
	switch normalizeLevel(s) {
	case "high":
		return ConfidenceHigh, true
	case "medium":
		return ConfidenceMedium, true
	case "low":
		return ConfidenceLow, true
	default:
		return "", false
	}
}

func normalizeLevel(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
