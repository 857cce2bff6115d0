// Package scorer assigns the pre-verification confidence of an extraction.
package scorer

import (
	"strings"

	"github.com/sells-group/tuition-research/internal/model"
)

// Score rates extraction completeness. A NotFound payload or a missing
// tuition amount is Low; tuition backed by both cost-per-credit and total
// credits is High; any other tuition figure is Medium.
func Score(f model.ExtractedFields) model.Confidence {
	switch {
	case f.Status == model.ExtractionNotFound:
		return model.ConfidenceLow
	case !f.HasTuition():
		return model.ConfidenceLow
	case present(f.CostPerCredit) && present(f.TotalCredits):
		return model.ConfidenceHigh
	default:
		return model.ConfidenceMedium
	}
}

func present(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}
