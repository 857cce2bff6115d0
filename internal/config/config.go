package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Gemini       GeminiConfig       `yaml:"gemini" mapstructure:"gemini"`
	Perplexity   PerplexityConfig   `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Verification VerificationConfig `yaml:"verification" mapstructure:"verification"`
	Variations   VariationsConfig   `yaml:"variations" mapstructure:"variations"`
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Batch        BatchConfig        `yaml:"batch" mapstructure:"batch"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Temporal     TemporalConfig     `yaml:"temporal" mapstructure:"temporal"`
	Pricing      PricingConfig      `yaml:"pricing" mapstructure:"pricing"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// AnthropicConfig holds Anthropic API settings for verification review.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ExtractionConfig configures the extraction engine.
type ExtractionConfig struct {
	// Provider selects the grounded search backend: "gemini" or "perplexity".
	Provider         string `yaml:"provider" mapstructure:"provider"`
	MaxSources       int    `yaml:"max_sources" mapstructure:"max_sources"`
	MaxContentChars  int    `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	MaxVariations    int    `yaml:"max_variations" mapstructure:"max_variations"`
	ResolveRedirects bool   `yaml:"resolve_redirects" mapstructure:"resolve_redirects"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RetryConfig configures the backoff executor.
type RetryConfig struct {
	MaxRetries  int `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelayMs int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	MaxJitterMs int `yaml:"max_jitter_ms" mapstructure:"max_jitter_ms"`
}

// VerificationConfig configures the verification pass.
type VerificationConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	AIReview            bool    `yaml:"ai_review" mapstructure:"ai_review"`
	MinTuition          float64 `yaml:"min_tuition" mapstructure:"min_tuition"`
	MaxTuition          float64 `yaml:"max_tuition" mapstructure:"max_tuition"`
	CrossCheckTolerance float64 `yaml:"cross_check_tolerance" mapstructure:"cross_check_tolerance"`
	MinCredits          float64 `yaml:"min_credits" mapstructure:"min_credits"`
	MaxCredits          float64 `yaml:"max_credits" mapstructure:"max_credits"`
	RetryThreshold      float64 `yaml:"retry_threshold" mapstructure:"retry_threshold"`
	BorderlineLow       float64 `yaml:"borderline_low" mapstructure:"borderline_low"`
	BorderlineHigh      float64 `yaml:"borderline_high" mapstructure:"borderline_high"`
}

// VariationsConfig points at an optional program-name override file.
type VariationsConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// BatchConfig configures caller-level batch pacing.
type BatchConfig struct {
	IntervalMs  int `yaml:"interval_ms" mapstructure:"interval_ms"`
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// TemporalConfig configures the Temporal client and worker.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" mapstructure:"host_port"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic  map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     map[string]ModelPricing `yaml:"gemini" mapstructure:"gemini"`
	Grounding  GroundingPricing        `yaml:"grounding" mapstructure:"grounding"`
	Perplexity PerplexityPricing       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// GroundingPricing holds Google Search grounding pricing.
type GroundingPricing struct {
	PerRequest float64 `yaml:"per_request" mapstructure:"per_request"`
}

// PerplexityPricing holds Perplexity pricing.
type PerplexityPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
	PerMTok  float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TUITION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{"gemini.key", "gemini.base_url", "perplexity.key", "anthropic.key", "variations.file"} {
		_ = v.BindEnv(key)
	}

	// Defaults
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.temperature", 0.1)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.temperature", 0.1)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("extraction.provider", "gemini")
	v.SetDefault("extraction.max_sources", 3)
	v.SetDefault("extraction.max_content_chars", 9950)
	v.SetDefault("extraction.max_variations", 3)
	v.SetDefault("extraction.resolve_redirects", true)
	v.SetDefault("extraction.timeout_secs", 180)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 10000)
	v.SetDefault("retry.max_jitter_ms", 1000)
	v.SetDefault("verification.enabled", true)
	v.SetDefault("verification.ai_review", false)
	v.SetDefault("verification.min_tuition", 1000)
	v.SetDefault("verification.max_tuition", 250000)
	v.SetDefault("verification.cross_check_tolerance", 0.10)
	v.SetDefault("verification.min_credits", 6)
	v.SetDefault("verification.max_credits", 120)
	v.SetDefault("verification.retry_threshold", 0.4)
	v.SetDefault("verification.borderline_low", 0.4)
	v.SetDefault("verification.borderline_high", 0.7)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "tuition.db")
	v.SetDefault("batch.interval_ms", 2000)
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "tuition-extraction")
	v.SetDefault("pricing.grounding.per_request", 0.035)
	v.SetDefault("pricing.perplexity.per_query", 0.005)
	v.SetDefault("pricing.perplexity.per_mtok", 1.00)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that credentials exist for the configured providers.
func (c *Config) Validate() error {
	switch c.Extraction.Provider {
	case "gemini":
		if c.Gemini.Key == "" {
			return eris.New("config: gemini key is required (TUITION_GEMINI_KEY)")
		}
	case "perplexity":
		if c.Perplexity.Key == "" {
			return eris.New("config: perplexity key is required (TUITION_PERPLEXITY_KEY)")
		}
	default:
		return eris.Errorf("config: unknown extraction provider %q", c.Extraction.Provider)
	}
	if c.Verification.Enabled && c.Verification.AIReview && c.Anthropic.Key == "" {
		return eris.New("config: anthropic key is required for AI review (TUITION_ANTHROPIC_KEY)")
	}
	if c.Verification.BorderlineLow > c.Verification.BorderlineHigh {
		return eris.New("config: verification.borderline_low exceeds borderline_high")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
