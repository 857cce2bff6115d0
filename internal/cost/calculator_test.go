package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku":  {Input: 1.00, Output: 5.00},
			"sonnet": {Input: 3.00, Output: 15.00},
		},
		Gemini: map[string]ModelRate{
			"flash": {Input: 0.30, Output: 2.50},
		},
		Grounding:  GroundingRate{PerRequest: 0.035},
		Perplexity: PerplexityRate{PerQuery: 0.005, PerMTok: 1.00},
	}
}

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		model  string
		input  int64
		output int64
		want   float64
	}{
		{name: "haiku", model: "haiku", input: 1000000, output: 100000, want: 1.00 + 0.50},
		{name: "sonnet", model: "sonnet", input: 500000, output: 200000, want: 1.50 + 3.00},
		{name: "zero tokens", model: "haiku", want: 0},
		{name: "unknown model", model: "mystery", input: 1000000, output: 1000000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Claude(tt.model, tt.input, tt.output), 1e-9)
		})
	}
}

func TestGemini(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.30+0.25+0.035, calc.Gemini("flash", 1, 1000000, 100000), 1e-9)
	assert.InDelta(t, 2*0.035, calc.Gemini("flash", 2, 0, 0), 1e-9)
	// Unknown model still pays the grounding fee.
	assert.InDelta(t, 0.035, calc.Gemini("other", 1, 1000000, 1000000), 1e-9)
}

func TestPerplexity(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.005, calc.Perplexity(1, 0, 0), 1e-9)
	assert.InDelta(t, 3*0.005+1.0, calc.Perplexity(3, 600000, 400000), 1e-9)
}

func TestGrounded(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, calc.Gemini("flash", 2, 10, 10), calc.Grounded("gemini", "flash", 2, 10, 10), 1e-12)
	assert.InDelta(t, calc.Perplexity(2, 10, 10), calc.Grounded("perplexity", "sonar", 2, 10, 10), 1e-12)
	assert.Zero(t, calc.Grounded("other", "x", 5, 1000, 1000))
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5-20251001")
	assert.Contains(t, rates.Gemini, "gemini-2.5-flash")
	assert.Greater(t, rates.Grounding.PerRequest, 0.0)
	assert.Greater(t, rates.Perplexity.PerQuery, 0.0)

	for name, r := range rates.Gemini {
		assert.Greater(t, r.Output, r.Input, "output should cost more than input for %s", name)
	}
}
