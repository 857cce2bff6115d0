package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sells-group/tuition-research/internal/resilience"
)

const groundedBody = `{
  "candidates": [{
    "content": {"role": "model", "parts": [{"text": "{\"status\": \"Success\", \"tuition_amount\": \"$48,000\"}"}]},
    "groundingMetadata": {
      "webSearchQueries": ["Acme University Weekend MBA tuition"],
      "groundingChunks": [
        {"web": {"uri": "https://acme.edu/mba/tuition", "title": "acme.edu", "domain": "acme.edu"}},
        {"retrievedContext": {"uri": "https://acme.edu/catalog", "title": "Catalog", "text": "48 credits"}}
      ],
      "groundingSupports": [
        {"segment": {"startIndex": 12, "endIndex": 40, "text": "Tuition is $48,000"}, "groundingChunkIndices": [0, 1]}
      ]
    }
  }],
  "usageMetadata": {"promptTokenCount": 200, "candidatesTokenCount": 50},
  "modelVersion": "gemini-2.5-flash"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	return c
}

func TestGenerateGrounded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.5-flash:generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		tools, ok := body["tools"].([]any)
		require.True(t, ok, "tools missing from request")
		require.Len(t, tools, 1)
		assert.Contains(t, tools[0], "googleSearch")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(groundedBody))
	})

	resp, err := c.GenerateGrounded(context.Background(), Request{Prompt: "find tuition", Temperature: genai.Ptr[float32](0.1)})
	require.NoError(t, err)

	assert.Contains(t, resp.Text, `"tuition_amount": "$48,000"`)
	assert.Equal(t, "gemini-2.5-flash", resp.ModelVersion)
	assert.Equal(t, []string{"Acme University Weekend MBA tuition"}, resp.WebSearchQueries)

	require.Len(t, resp.Chunks, 2)
	assert.Equal(t, Chunk{URI: "https://acme.edu/mba/tuition", Title: "acme.edu", Domain: "acme.edu"}, resp.Chunks[0])
	assert.Equal(t, "48 credits", resp.Chunks[1].Text)

	require.Len(t, resp.Supports, 1)
	assert.Equal(t, "Tuition is $48,000", resp.Supports[0].Text)
	assert.Equal(t, []int{0, 1}, resp.Supports[0].ChunkIndices)
	assert.Equal(t, 12, resp.Supports[0].StartIndex)
	assert.Equal(t, 40, resp.Supports[0].EndIndex)

	assert.Equal(t, int64(200), resp.Usage.PromptTokens)
	assert.Equal(t, int64(50), resp.Usage.OutputTokens)
}

func TestGenerateGrounded_NoGrounding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{}"}]}}]}`))
	})

	resp, err := c.GenerateGrounded(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Text)
	assert.Empty(t, resp.Chunks)
	assert.Empty(t, resp.Supports)
}

func TestGenerateGrounded_TransientError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`))
	})

	_, err := c.GenerateGrounded(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini: generate content")
	assert.True(t, resilience.IsTransient(err))
}

func TestGenerateGrounded_PermanentError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := c.GenerateGrounded(context.Background(), Request{Prompt: "x"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key is required")
}

func TestNewClient_Model(t *testing.T) {
	c, err := NewClient(context.Background(), "k", WithModel("gemini-2.5-pro"))
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", c.Model())

	c, err = NewClient(context.Background(), "k", WithModel(""))
	require.NoError(t, err)
	assert.Equal(t, defaultModel, c.Model())
}

func TestFromSDKResponse_Nil(t *testing.T) {
	assert.Equal(t, &Response{}, fromSDKResponse(nil))
}
