package model

// GroundedResponse is the provider-neutral result of one search-grounded
// generation call: the model's free-text answer plus the web evidence the
// provider attached to it.
type GroundedResponse struct {
	Text             string             `json:"text"`
	Chunks           []GroundingChunk   `json:"chunks,omitempty"`
	Supports         []GroundingSupport `json:"supports,omitempty"`
	WebSearchQueries []string           `json:"web_search_queries,omitempty"`
	Model            string             `json:"model,omitempty"`
	Usage            TokenUsage         `json:"usage"`
}

// GroundingChunk is one web source fragment returned by the provider.
type GroundingChunk struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
	// Text is inline text the provider attached to the chunk itself.
	Text string `json:"text,omitempty"`
	// Snippet is the raw search-result snippet, when the provider exposes one.
	Snippet string `json:"snippet,omitempty"`
}

// GroundingSupport maps a segment of the generated text to the chunks that
// corroborate it.
type GroundingSupport struct {
	SegmentText  string `json:"segment_text"`
	StartIndex   int    `json:"start_index"`
	EndIndex     int    `json:"end_index"`
	ChunkIndices []int  `json:"chunk_indices"`
}

// TokenUsage tracks provider token consumption for a call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Add returns the element-wise sum of u and o.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + o.InputTokens,
		OutputTokens: u.OutputTokens + o.OutputTokens,
	}
}
