package grounding

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tuition-research/internal/model"
	"github.com/sells-group/tuition-research/pkg/gemini"
	"github.com/sells-group/tuition-research/pkg/perplexity"
)

// Provider performs one search-grounded generation call. Implementations
// make exactly one upstream request per Generate; retries belong to the
// caller.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, p Prompt) (*model.GroundedResponse, error)
}

// GeminiProvider grounds with the Google Search tool.
type GeminiProvider struct {
	client      gemini.Client
	temperature float32
}

// NewGeminiProvider wraps a Gemini client.
func NewGeminiProvider(client gemini.Client, temperature float32) *GeminiProvider {
	return &GeminiProvider{client: client, temperature: temperature}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Model implements Provider.
func (p *GeminiProvider) Model() string { return p.client.Model() }

// Generate implements Provider.
func (p *GeminiProvider) Generate(ctx context.Context, pr Prompt) (*model.GroundedResponse, error) {
	temp := p.temperature
	resp, err := p.client.GenerateGrounded(ctx, gemini.Request{
		Prompt:      pr.User,
		System:      pr.System,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	out := &model.GroundedResponse{
		Text:             resp.Text,
		WebSearchQueries: resp.WebSearchQueries,
		Model:            p.client.Model(),
		Usage: model.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, c := range resp.Chunks {
		out.Chunks = append(out.Chunks, model.GroundingChunk{URI: c.URI, Title: c.Title, Text: c.Text})
	}
	for _, s := range resp.Supports {
		out.Supports = append(out.Supports, model.GroundingSupport{
			SegmentText:  s.Text,
			StartIndex:   s.StartIndex,
			EndIndex:     s.EndIndex,
			ChunkIndices: s.ChunkIndices,
		})
	}
	return out, nil
}

// PerplexityProvider grounds with Perplexity's built-in web search. It
// reports search results as chunks and has no segment supports.
type PerplexityProvider struct {
	client      perplexity.Client
	temperature float64
}

// NewPerplexityProvider wraps a Perplexity client.
func NewPerplexityProvider(client perplexity.Client, temperature float64) *PerplexityProvider {
	return &PerplexityProvider{client: client, temperature: temperature}
}

// Name implements Provider.
func (p *PerplexityProvider) Name() string { return "perplexity" }

// Model implements Provider.
func (p *PerplexityProvider) Model() string { return p.client.Model() }

// Generate implements Provider.
func (p *PerplexityProvider) Generate(ctx context.Context, pr Prompt) (*model.GroundedResponse, error) {
	temp := p.temperature
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages: []perplexity.Message{
			{Role: "system", Content: pr.System},
			{Role: "user", Content: pr.User},
		},
		Temperature:      &temp,
		WebSearchOptions: &perplexity.WebSearchOptions{SearchContextSize: "high"},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("perplexity: response has no choices")
	}

	out := &model.GroundedResponse{
		Text:  resp.Content(),
		Model: p.client.Model(),
		Usage: model.TokenUsage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}
	if resp.Model != "" {
		out.Model = resp.Model
	}

	seen := make(map[string]bool, len(resp.SearchResults))
	for _, r := range resp.SearchResults {
		seen[r.URL] = true
		out.Chunks = append(out.Chunks, model.GroundingChunk{URI: r.URL, Title: r.Title, Snippet: r.Snippet})
	}
	for _, u := range resp.Citations {
		if seen[u] {
			continue
		}
		seen[u] = true
		out.Chunks = append(out.Chunks, model.GroundingChunk{URI: u})
	}
	return out, nil
}
