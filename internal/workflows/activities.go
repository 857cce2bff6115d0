package workflows

import (
	"context"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/tuition-research/internal/batch"
	"github.com/sells-group/tuition-research/internal/model"
)

// ExtractOutput is the result of one ExtractTuition activity.
type ExtractOutput struct {
	RecordID   string             `json:"record_id"`
	Status     model.RecordStatus `json:"status"`
	Confidence model.Confidence   `json:"confidence"`
}

// Activities holds the activity implementations.
type Activities struct {
	extractor batch.Extractor
	saver     batch.Saver
}

// NewActivities creates an Activities instance. saver may be nil.
func NewActivities(ex batch.Extractor, saver batch.Saver) *Activities {
	return &Activities{extractor: ex, saver: saver}
}

// ExtractTuition runs one extraction and persists the resulting record.
func (a *Activities) ExtractTuition(ctx context.Context, req model.ExtractionRequest) (*ExtractOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("extracting tuition", "school", req.School, "program", req.Program)

	rec, err := a.extractor.Extract(ctx, req)
	if err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "INVALID_REQUEST", err)
	}

	if a.saver != nil {
		if err := a.saver.SaveRecord(ctx, rec); err != nil {
			return nil, temporal.NewApplicationErrorWithCause("save record failed", "STORE_ERROR", err)
		}
	}

	return &ExtractOutput{
		RecordID:   rec.ID,
		Status:     rec.Status,
		Confidence: rec.ConfidenceScore,
	}, nil
}
