// Package gemini wraps the Google Gen AI SDK for search-grounded generation.
package gemini

import (
	"context"
	"errors"
	"net/http"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/tuition-research/internal/resilience"
)

const defaultModel = "gemini-2.5-flash"

// Client generates content with the Google Search grounding tool enabled.
type Client interface {
	GenerateGrounded(ctx context.Context, req Request) (*Response, error)
	Model() string
}

// Request is a single grounded generation request.
type Request struct {
	Prompt      string
	System      string
	Temperature *float32
}

// Response is the text answer plus the grounding metadata that backs it.
type Response struct {
	Text             string
	ModelVersion     string
	Chunks           []Chunk
	Supports         []Support
	WebSearchQueries []string
	Usage            Usage
}

// Chunk is one retrieved source.
type Chunk struct {
	URI    string
	Title  string
	Domain string
	Text   string
}

// Support maps a segment of the answer to the chunks that corroborate it.
type Support struct {
	Text         string
	StartIndex   int
	EndIndex     int
	ChunkIndices []int
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens int64
	OutputTokens int64
}

// Option configures the client.
type Option func(*config)

type config struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *config) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

type sdkClient struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	if apiKey == "" {
		return nil, eris.New("gemini: api key is required")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient,
	}
	if cfg.baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client, model: cfg.model}, nil
}

func (c *sdkClient) Model() string { return c.model }

func (c *sdkClient) GenerateGrounded(ctx context.Context, req Request) (*Response, error) {
	gcc := &genai.GenerateContentConfig{
		Tools:       []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		Temperature: req.Temperature,
	}
	if req.System != "" {
		gcc.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), gcc)
	if err != nil {
		return nil, classify(eris.Wrap(err, "gemini: generate content"), err)
	}
	return fromSDKResponse(resp), nil
}

// classify marks rate-limit and server errors as transient.
func classify(wrapped, raw error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(raw, &apiErr):
		code = apiErr.Code
	case errors.As(raw, &apiErrPtr):
		code = apiErrPtr.Code
	}
	if resilience.IsTransientHTTPStatus(code) {
		return resilience.NewTransientError(wrapped, code)
	}
	return wrapped
}

func fromSDKResponse(resp *genai.GenerateContentResponse) *Response {
	out := &Response{}
	if resp == nil {
		return out
	}
	out.ModelVersion = resp.ModelVersion
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens: int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}

	cand := resp.Candidates[0]
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			if p != nil && !p.Thought {
				out.Text += p.Text
			}
		}
	}

	gm := cand.GroundingMetadata
	if gm == nil {
		return out
	}
	out.WebSearchQueries = gm.WebSearchQueries

	out.Chunks = make([]Chunk, 0, len(gm.GroundingChunks))
	for _, gc := range gm.GroundingChunks {
		var ch Chunk
		switch {
		case gc == nil:
		case gc.Web != nil:
			ch = Chunk{URI: gc.Web.URI, Title: gc.Web.Title, Domain: gc.Web.Domain}
		case gc.RetrievedContext != nil:
			ch = Chunk{URI: gc.RetrievedContext.URI, Title: gc.RetrievedContext.Title, Text: gc.RetrievedContext.Text}
		}
		// Indices in supports refer to positions in this list, so empty
		// chunks are kept as placeholders.
		out.Chunks = append(out.Chunks, ch)
	}

	for _, gs := range gm.GroundingSupports {
		if gs == nil {
			continue
		}
		s := Support{ChunkIndices: make([]int, 0, len(gs.GroundingChunkIndices))}
		for _, idx := range gs.GroundingChunkIndices {
			s.ChunkIndices = append(s.ChunkIndices, int(idx))
		}
		if gs.Segment != nil {
			s.Text = gs.Segment.Text
			s.StartIndex = int(gs.Segment.StartIndex)
			s.EndIndex = int(gs.Segment.EndIndex)
		}
		out.Supports = append(out.Supports, s)
	}
	return out
}
