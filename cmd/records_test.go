package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/tuition-research/internal/model"
)

func TestComputeRecordStats(t *testing.T) {
	recs := []model.ExtractionRecord{
		{Status: model.RecordStatusSuccess, ConfidenceScore: model.ConfidenceHigh},
		{
			Status:          model.RecordStatusSuccess,
			ConfidenceScore: model.ConfidenceMedium,
			Verification:    &model.VerificationResult{Status: model.VerificationNeedsReview},
		},
		{Status: model.RecordStatusNotFound, ConfidenceScore: model.ConfidenceLow},
		{Status: model.RecordStatusFailed, ConfidenceScore: model.ConfidenceLow},
	}

	s := computeRecordStats(recs)
	assert.Equal(t, recordStats{
		Total:       4,
		Success:     2,
		NotFound:    1,
		Failed:      1,
		High:        1,
		Medium:      1,
		Low:         2,
		NeedsReview: 1,
	}, s)
}

func TestFormatRecordsList(t *testing.T) {
	var buf bytes.Buffer
	formatRecordsList(&buf, []model.ExtractionRecord{
		{
			ID:              "rec-1",
			School:          "Acme University",
			Program:         "MBA",
			TuitionAmount:   model.StrPtr("$96,000"),
			Status:          model.RecordStatusSuccess,
			ConfidenceScore: model.ConfidenceHigh,
			CreatedAt:       time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		},
		{
			ID:              "rec-2",
			School:          "Beta College",
			Program:         "MS Nursing",
			Status:          model.RecordStatusNotFound,
			ConfidenceScore: model.ConfidenceLow,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "rec-1")
	assert.Contains(t, out, "$96,000")
	assert.Contains(t, out, "2026-03-01 12:30")
	assert.Contains(t, out, "NotFound")
}

func TestFormatRecordStats(t *testing.T) {
	var buf bytes.Buffer
	formatRecordStats(&buf, recordStats{Total: 3, Success: 2, High: 1, Medium: 1, Low: 1})
	assert.Contains(t, buf.String(), "Total:")
	assert.Contains(t, buf.String(), "1/1/1")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
