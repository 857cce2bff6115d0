// Package grounding performs search-grounded tuition extraction calls and
// recovers the structured payload from the model's answer.
package grounding

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/resilience"
)

// Result is one parsed extraction attempt.
type Result struct {
	Fields      model.ExtractedFields
	Raw         *model.GroundedResponse
	SearchQuery string
	// Retries is the number of backoff retries spent on the call.
	Retries int
}

// Client wraps a Provider with the backoff executor and payload parser.
type Client struct {
	provider Provider
	exec     resilience.Executor
}

// NewClient creates a grounded search client.
func NewClient(provider Provider, exec resilience.Executor) *Client {
	return &Client{provider: provider, exec: exec}
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider { return c.provider }

// Extract runs one grounded extraction for (school, program). The network
// call runs under the backoff executor; parsing happens once afterwards and
// a malformed payload fails with *ParseError. On failure the returned Result
// still carries the retry count and, for parse failures, the raw response.
func (c *Client) Extract(ctx context.Context, school, program string) (*Result, error) {
	prompt := BuildPrompt(school, program)

	raw, retries, err := resilience.RunVal(ctx, c.exec, "grounded_search", func(ctx context.Context) (*model.GroundedResponse, error) {
		return c.provider.Generate(ctx, prompt)
	})
	res := &Result{Raw: raw, Retries: retries, SearchQuery: DefaultSearchQuery(school, program)}
	if err != nil {
		return res, err
	}
	if raw == nil {
		raw = &model.GroundedResponse{}
		res.Raw = raw
	}
	if len(raw.WebSearchQueries) > 0 && raw.WebSearchQueries[0] != "" {
		res.SearchQuery = raw.WebSearchQueries[0]
	}

	fields, err := ParseFields(raw.Text)
	if err != nil {
		zap.L().Warn("grounding: unparseable payload",
			zap.String("school", school),
			zap.String("program", program),
			zap.Error(err),
		)
		return res, err
	}
	res.Fields = fields

	zap.L().Debug("grounding: extraction parsed",
		zap.String("school", school),
		zap.String("program", program),
		zap.String("status", string(fields.Status)),
		zap.Int("chunks", len(raw.Chunks)),
		zap.Int("retries", retries),
	)
	return res, nil
}

// Reground issues one bare provider call, outside the backoff budget, to
// re-attempt retrieval of grounding metadata.
func (c *Client) Reground(ctx context.Context, school, program string) (*model.GroundedResponse, error) {
	return c.provider.Generate(ctx, BuildPrompt(school, program))
}
