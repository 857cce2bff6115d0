package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tuition-research/internal/config"
	"github.com/sells-group/tuition-research/internal/cost"
	"github.com/sells-group/tuition-research/internal/extract"
	"github.com/sells-group/tuition-research/internal/grounding"
	"github.com/sells-group/tuition-research/internal/resilience"
	"github.com/sells-group/tuition-research/internal/sources"
	"github.com/sells-group/tuition-research/internal/store"
	"github.com/sells-group/tuition-research/internal/usage"
	"github.com/sells-group/tuition-research/internal/variation"
	"github.com/sells-group/tuition-research/internal/verify"
	anthropicpkg "github.com/sells-group/tuition-research/pkg/anthropic"
	"github.com/sells-group/tuition-research/pkg/gemini"
	"github.com/sells-group/tuition-research/pkg/perplexity"
)

// appEnv holds the store and extraction engine shared by the
// extract/batch/serve/worker commands.
type appEnv struct {
	Store  store.Store
	Engine *extract.Engine
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEnv validates credentials, opens the store, and builds the engine.
// Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	resolver, err := buildVariations(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	exec := resilience.NewBackoff(retryConfig(cfg))

	var reviewer verify.Reviewer
	if cfg.Verification.Enabled && cfg.Verification.AIReview {
		reviewer = verify.NewAIReviewer(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
		zap.L().Info("ai verification review enabled", zap.String("model", cfg.Anthropic.Model))
	}

	engine := extract.New(grounding.NewClient(provider, exec),
		extract.WithVariations(resolver),
		extract.WithMaxVariations(cfg.Extraction.MaxVariations),
		extract.WithReconciler(buildReconciler(cfg)),
		extract.WithVerifier(verify.NewAgent(verifyConfig(cfg), reviewer, exec)),
		extract.WithUsageLogger(usage.Multi{usage.NewZapLogger(nil), usage.NewStoreLogger(st)}),
		extract.WithCostCalculator(cost.NewCalculator(costRates(cfg.Pricing))),
	)

	zap.L().Info("extraction engine ready",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
		zap.String("store", cfg.Store.Driver),
	)

	return &appEnv{Store: st, Engine: engine}, nil
}

// buildProvider returns the configured grounded search provider.
func buildProvider(ctx context.Context, c *config.Config) (grounding.Provider, error) {
	switch c.Extraction.Provider {
	case "gemini":
		opts := []gemini.Option{gemini.WithModel(c.Gemini.Model)}
		if c.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(c.Gemini.BaseURL))
		}
		client, err := gemini.NewClient(ctx, c.Gemini.Key, opts...)
		if err != nil {
			return nil, eris.Wrap(err, "init gemini")
		}
		return grounding.NewGeminiProvider(client, c.Gemini.Temperature), nil
	case "perplexity":
		if c.Perplexity.Key == "" {
			return nil, eris.New("perplexity key is required (TUITION_PERPLEXITY_KEY)")
		}
		client := perplexity.NewClient(c.Perplexity.Key,
			perplexity.WithBaseURL(c.Perplexity.BaseURL),
			perplexity.WithModel(c.Perplexity.Model),
		)
		return grounding.NewPerplexityProvider(client, c.Perplexity.Temperature), nil
	default:
		return nil, eris.Errorf("unknown extraction provider %q", c.Extraction.Provider)
	}
}

func buildVariations(c *config.Config) (*variation.Resolver, error) {
	opts := []variation.Option{variation.WithMax(c.Extraction.MaxVariations)}
	if c.Variations.File != "" {
		entries, err := variation.LoadFile(c.Variations.File)
		if err != nil {
			return nil, eris.Wrap(err, "load variations")
		}
		opts = append(opts, variation.WithEntries(entries...))
		zap.L().Info("loaded program variations", zap.String("file", c.Variations.File), zap.Int("entries", len(entries)))
	}
	return variation.New(opts...), nil
}

func buildReconciler(c *config.Config) *sources.Reconciler {
	opts := []sources.Option{
		sources.WithMaxSources(c.Extraction.MaxSources),
		sources.WithMaxContent(c.Extraction.MaxContentChars),
	}
	if c.Extraction.ResolveRedirects {
		opts = append(opts, sources.WithResolver(sources.NewHTTPRedirectResolver(nil)))
	}
	return sources.NewReconciler(opts...)
}

func storeConfig(c *config.Config) store.Config {
	return store.Config{
		Driver:      c.Store.Driver,
		DatabaseURL: c.Store.DatabaseURL,
		Pool: &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		},
	}
}

func retryConfig(c *config.Config) resilience.RetryConfig {
	return resilience.FromRetryConfig(c.Retry.MaxRetries, c.Retry.BaseDelayMs, c.Retry.MaxDelayMs, c.Retry.MaxJitterMs)
}

func verifyConfig(c *config.Config) verify.Config {
	v := c.Verification
	return verify.Config{
		Enabled:             v.Enabled,
		MinTuition:          v.MinTuition,
		MaxTuition:          v.MaxTuition,
		CrossCheckTolerance: v.CrossCheckTolerance,
		MinCredits:          v.MinCredits,
		MaxCredits:          v.MaxCredits,
		RetryThreshold:      v.RetryThreshold,
		BorderlineLow:       v.BorderlineLow,
		BorderlineHigh:      v.BorderlineHigh,
	}
}

// costRates overlays configured pricing on the built-in rates.
func costRates(p config.PricingConfig) cost.Rates {
	rates := cost.DefaultRates()
	for name, m := range p.Anthropic {
		rates.Anthropic[name] = cost.ModelRate{Input: m.Input, Output: m.Output}
	}
	for name, m := range p.Gemini {
		rates.Gemini[name] = cost.ModelRate{Input: m.Input, Output: m.Output}
	}
	if p.Grounding.PerRequest > 0 {
		rates.Grounding.PerRequest = p.Grounding.PerRequest
	}
	if p.Perplexity.PerQuery > 0 {
		rates.Perplexity.PerQuery = p.Perplexity.PerQuery
	}
	if p.Perplexity.PerMTok > 0 {
		rates.Perplexity.PerMTok = p.Perplexity.PerMTok
	}
	return rates
}
