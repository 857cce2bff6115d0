// Package resilience provides the retry executor used around outbound AI calls.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and additive jitter.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first try.
	// Default: 3.
	MaxRetries int

	// BaseDelay is the delay before the first retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps every computed delay. Default: 10s.
	MaxDelay time.Duration

	// MaxJitter bounds the uniform random jitter added to each delay,
	// drawn from [0, MaxJitter). Zero disables jitter.
	MaxJitter time.Duration

	// Classifier decides which errors are retried. If nil, DefaultClassifier is used.
	Classifier Classifier

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig returns the retry policy used for grounded search calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		MaxJitter:  time.Second,
	}
}

// Executor runs an operation under a retry policy and reports how many
// retries it performed.
type Executor interface {
	Run(ctx context.Context, label string, fn func(ctx context.Context) error) (int, error)
}

// Backoff is an Executor using exponential backoff with jitter. It holds no
// mutable state and is safe for concurrent use.
type Backoff struct {
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBackoff creates a Backoff executor from cfg.
func NewBackoff(cfg RetryConfig) *Backoff {
	return &Backoff{cfg: applyDefaults(cfg), sleep: sleepContext}
}

// Config returns the effective configuration.
func (b *Backoff) Config() RetryConfig {
	return b.cfg
}

// Run executes fn, retrying classified-transient failures up to MaxRetries
// times. Non-retryable errors are returned after the first failure; an
// exhausted budget returns the last error. Context cancellation stops
// retries immediately.
func (b *Backoff) Run(ctx context.Context, label string, fn func(ctx context.Context) error) (int, error) {
	classifier := b.cfg.Classifier
	if classifier == nil {
		classifier = DefaultClassifier
	}

	retries := 0
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return retries, nil
		}

		if ctx.Err() != nil {
			return retries, err
		}

		if !classifier.Retryable(err) {
			return retries, err
		}

		if attempt >= b.cfg.MaxRetries {
			return retries, err
		}

		delay := Delay(attempt, b.cfg)
		zap.L().Warn("retrying operation",
			zap.String("operation", label),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", b.cfg.MaxRetries),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if b.cfg.OnRetry != nil {
			b.cfg.OnRetry(attempt+1, delay, err)
		}

		if sErr := b.sleep(ctx, delay); sErr != nil {
			return retries, err
		}
		retries++
	}
}

// RunVal runs fn through ex and preserves the value from the successful call.
func RunVal[T any](ctx context.Context, ex Executor, label string, fn func(ctx context.Context) (T, error)) (T, int, error) {
	var out T
	retries, err := ex.Run(ctx, label, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, retries, err
	}
	return out, retries, nil
}

// Delay returns the backoff before retry number attempt+1:
// min(MaxDelay, BaseDelay*2^attempt + jitter), jitter in [0, MaxJitter).
func Delay(attempt int, cfg RetryConfig) time.Duration {
	cfg = applyDefaults(cfg)

	delay := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if cfg.MaxJitter > 0 {
		delay += rand.Float64() * float64(cfg.MaxJitter)
	}
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	}
	return cfg
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
