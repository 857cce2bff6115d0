// Package workflows runs batch tuition extraction as a durable Temporal workflow.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/tuition-research/internal/model"
)

const (
	// BatchExtractWorkflowName is the registered name of BatchExtractWorkflow.
	BatchExtractWorkflowName = "BatchExtractWorkflow"
	// ExtractActivityName is the registered name of Activities.ExtractTuition.
	ExtractActivityName = "ExtractTuition"
	// QueryGetProgress returns the current BatchProgress.
	QueryGetProgress = "GetProgress"

	defaultIntervalMs = 2000
)

// The engine owns retries; Temporal must not replay a provider call on top of them.
var extractActivityOptions = workflow.ActivityOptions{
	StartToCloseTimeout: 5 * time.Minute,
	RetryPolicy: &temporal.RetryPolicy{
		MaximumAttempts: 1,
	},
}

// BatchInput is the input for BatchExtractWorkflow.
type BatchInput struct {
	Requests   []model.ExtractionRequest `json:"requests"`
	IntervalMs int                       `json:"interval_ms,omitempty"`
}

// BatchOutput summarises a finished batch.
type BatchOutput struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	NotFound  int      `json:"not_found"`
	Failed    int      `json:"failed"`
	Errors    int      `json:"errors"`
	RecordIDs []string `json:"record_ids"`
}

// BatchProgress is exposed through QueryGetProgress.
type BatchProgress struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

// BatchExtractWorkflow extracts each request in turn, sleeping between
// requests. A failed activity is counted and the batch moves on.
func BatchExtractWorkflow(ctx workflow.Context, input BatchInput) (*BatchOutput, error) {
	logger := workflow.GetLogger(ctx)
	out := &BatchOutput{Total: len(input.Requests)}
	progress := BatchProgress{Total: len(input.Requests)}

	if err := workflow.SetQueryHandler(ctx, QueryGetProgress, func() (BatchProgress, error) {
		return progress, nil
	}); err != nil {
		return nil, err
	}

	interval := time.Duration(input.IntervalMs) * time.Millisecond
	if input.IntervalMs <= 0 {
		interval = defaultIntervalMs * time.Millisecond
	}

	actCtx := workflow.WithActivityOptions(ctx, extractActivityOptions)

	for i, req := range input.Requests {
		if i > 0 {
			if err := workflow.Sleep(ctx, interval); err != nil {
				return out, err
			}
		}

		var res ExtractOutput
		err := workflow.ExecuteActivity(actCtx, ExtractActivityName, req).Get(ctx, &res)
		progress.Done++
		if err != nil {
			out.Errors++
			logger.Warn("extraction activity failed", "school", req.School, "program", req.Program, "error", err)
			continue
		}

		out.RecordIDs = append(out.RecordIDs, res.RecordID)
		switch res.Status {
		case model.RecordStatusSuccess:
			out.Succeeded++
		case model.RecordStatusNotFound:
			out.NotFound++
		default:
			out.Failed++
		}
	}

	logger.Info("batch complete", "total", out.Total, "succeeded", out.Succeeded, "errors", out.Errors)
	return out, nil
}
