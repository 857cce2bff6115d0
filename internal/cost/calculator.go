package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
	Grounding  GroundingRate        `yaml:"grounding" mapstructure:"grounding"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// GroundingRate holds Google Search grounding pricing.
type GroundingRate struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// PerplexityRate holds Perplexity pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
	// PerMTok applies to input and output tokens alike.
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output int64) float64 {
	return tokens(c.rates.Anthropic[model], input, output)
}

// Gemini computes the cost for grounded Gemini calls. Each request is also
// charged the flat grounding fee.
func (c *Calculator) Gemini(model string, requests int, input, output int64) float64 {
	return tokens(c.rates.Gemini[model], input, output) + float64(requests)*c.rates.Grounding.PerRequest
}

// Perplexity computes the cost for Perplexity queries.
func (c *Calculator) Perplexity(queries int, input, output int64) float64 {
	return float64(queries)*c.rates.Perplexity.PerQuery +
		(float64(input+output)/1e6)*c.rates.Perplexity.PerMTok
}

// Grounded dispatches on provider name ("gemini" or "perplexity").
// Unknown providers cost nothing.
func (c *Calculator) Grounded(provider, model string, requests int, input, output int64) float64 {
	switch provider {
	case "gemini":
		return c.Gemini(model, requests, input, output)
	case "perplexity":
		return c.Perplexity(requests, input, output)
	default:
		return 0
	}
}

func tokens(rate ModelRate, input, output int64) float64 {
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		Gemini: map[string]ModelRate{
			"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
			"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
		},
		Grounding:  GroundingRate{PerRequest: 0.035},
		Perplexity: PerplexityRate{PerQuery: 0.005, PerMTok: 1.00},
	}
}
