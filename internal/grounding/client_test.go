package grounding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/internal/resilience"
)

func fastBackoff() *resilience.Backoff {
	return resilience.NewBackoff(resilience.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	})
}

func TestExtract_Success(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.MatchedBy(func(pr Prompt) bool {
		return assert.ObjectsAreEqual(BuildPrompt("Acme University", "Weekend MBA"), pr)
	})).Return(&model.GroundedResponse{
		Text:             fullPayload,
		WebSearchQueries: []string{"acme weekend mba tuition 2025"},
		Chunks:           []model.GroundingChunk{{URI: "https://acme.edu/mba"}},
	}, nil).Once()

	c := NewClient(p, fastBackoff())
	res, err := c.Extract(context.Background(), "Acme University", "Weekend MBA")
	require.NoError(t, err)

	assert.Equal(t, model.ExtractionSuccess, res.Fields.Status)
	assert.Equal(t, "$96,000", model.Deref(res.Fields.TuitionAmount))
	assert.Equal(t, "acme weekend mba tuition 2025", res.SearchQuery)
	assert.Equal(t, 0, res.Retries)
	require.NotNil(t, res.Raw)
	assert.Len(t, res.Raw.Chunks, 1)
	p.AssertExpectations(t)
}

func TestExtract_DefaultSearchQuery(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return(&model.GroundedResponse{Text: `{"status":"NotFound"}`}, nil)

	res, err := NewClient(p, fastBackoff()).Extract(context.Background(), "Acme University", "Part-Time MBA")
	require.NoError(t, err)
	assert.Equal(t, "Acme University Part-Time MBA tuition", res.SearchQuery)
	assert.Equal(t, model.ExtractionNotFound, res.Fields.Status)
}

func TestExtract_RetriesTransientThenSucceeds(t *testing.T) {
	p := &mockProvider{}
	unavailable := errors.New("503 Service Unavailable")
	p.On("Generate", mock.Anything, mock.Anything).Return(nil, unavailable).Times(3)
	p.On("Generate", mock.Anything, mock.Anything).Return(&model.GroundedResponse{Text: fullPayload}, nil).Once()

	res, err := NewClient(p, fastBackoff()).Extract(context.Background(), "Acme University", "Weekend MBA")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Retries)
	p.AssertNumberOfCalls(t, "Generate", 4)
}

func TestExtract_ParseErrorNotRetried(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return(&model.GroundedResponse{Text: "Service returned 503 text but no JSON"}, nil)

	res, err := NewClient(p, fastBackoff()).Extract(context.Background(), "Acme", "MBA")
	require.Error(t, err)

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Excerpt, "no JSON")
	require.NotNil(t, res)
	assert.NotNil(t, res.Raw)
	assert.Equal(t, 0, res.Retries)
	p.AssertNumberOfCalls(t, "Generate", 1)
}

func TestExtract_ExhaustsRetries(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("RESOURCE_EXHAUSTED: quota"))

	res, err := NewClient(p, fastBackoff()).Extract(context.Background(), "Acme", "MBA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESOURCE_EXHAUSTED")
	assert.Equal(t, 3, res.Retries)
	assert.Nil(t, res.Raw)
	p.AssertNumberOfCalls(t, "Generate", 4)
}

func TestReground_SingleCall(t *testing.T) {
	p := &mockProvider{}
	p.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("503")).Once()

	_, err := NewClient(p, fastBackoff()).Reground(context.Background(), "Acme", "MBA")
	require.Error(t, err)
	p.AssertNumberOfCalls(t, "Generate", 1)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(" Acme University ", "Part-Time MBA")
	assert.Contains(t, p.User, "Part-Time MBA program at Acme University")
	assert.Contains(t, p.User, ".edu")
	assert.Contains(t, p.User, "US News")
	assert.Contains(t, p.User, "in-state")
	assert.Contains(t, p.User, "total credits x cost per credit")
	assert.Contains(t, p.User, "additional_fees")
	assert.Contains(t, p.User, "program_length_months")
	assert.Contains(t, p.User, `"NotFound"`)
	assert.NotEmpty(t, p.System)
}
