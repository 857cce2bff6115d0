package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func fastConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		MaxJitter:  time.Millisecond,
	}
}

func TestRun_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	retries, err := NewBackoff(fastConfig(3)).Run(context.Background(), "test", func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if retries != 0 {
		t.Errorf("expected 0 retries, got %d", retries)
	}
}

func TestRun_SucceedsOnFourthAttempt(t *testing.T) {
	var calls int
	retries, err := NewBackoff(fastConfig(3)).Run(context.Background(), "grounded_search", func(_ context.Context) error {
		calls++
		if calls <= 3 {
			return errors.New("503 Service Unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls, got %d", calls)
	}
	if retries != 3 {
		t.Errorf("expected 3 retries, got %d", retries)
	}
}

func TestRun_ExhaustsRetries(t *testing.T) {
	var calls int
	retries, err := NewBackoff(fastConfig(3)).Run(context.Background(), "test", func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("always fails"), 500)
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if err.Error() != "always fails" {
		t.Errorf("expected last error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 4 calls (1 + 3 retries), got %d", calls)
	}
	if retries != 3 {
		t.Errorf("expected 3 retries, got %d", retries)
	}
}

func TestRun_NonRetryableError_NoRetry(t *testing.T) {
	var calls int
	_, err := NewBackoff(fastConfig(3)).Run(context.Background(), "test", func(_ context.Context) error {
		calls++
		return errors.New("permanent error: bad request")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retry for non-transient), got %d", calls)
	}
}

type permanentErr struct{}

func (permanentErr) Error() string   { return "could not parse payload containing $500" }
func (permanentErr) Retryable() bool { return false }

func TestRun_SelfDeclaredPermanentError_NoRetry(t *testing.T) {
	var calls int
	_, err := NewBackoff(fastConfig(3)).Run(context.Background(), "test", func(_ context.Context) error {
		calls++
		return permanentErr{}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRun_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxRetries: 5,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   100 * time.Millisecond,
	}

	_, err := NewBackoff(cfg).Run(ctx, "test", func(_ context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls before cancellation stopped retries, got %d", calls)
	}
}

func TestRun_CustomClassifier(t *testing.T) {
	var calls int
	cfg := fastConfig(3)
	cfg.Classifier = ClassifierFunc(func(err error) bool {
		return err.Error() == "retry me"
	})

	_, err := NewBackoff(cfg).Run(context.Background(), "test", func(_ context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("retry me")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestRun_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastConfig(2)
	cfg.OnRetry = func(attempt int, delay time.Duration, _ error) {
		attempts = append(attempts, attempt)
		if delay > cfg.MaxDelay {
			t.Errorf("delay %v exceeds max %v", delay, cfg.MaxDelay)
		}
	}

	_, _ = NewBackoff(cfg).Run(context.Background(), "test", func(_ context.Context) error {
		return NewTransientError(errors.New("fail"), 500)
	})

	if len(attempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", attempts)
	}
}

func TestRun_LogsOncePerRetry(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	_, _ = NewBackoff(fastConfig(2)).Run(context.Background(), "grounded_search", func(_ context.Context) error {
		return NewTransientError(errors.New("fail"), 503)
	})

	entries := logs.FilterMessage("retrying operation").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 retry warnings, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["operation"]; got != "grounded_search" {
		t.Errorf("expected operation grounded_search, got %v", got)
	}
	if logs.Len() != 2 {
		t.Errorf("expected no other warnings, got %d entries", logs.Len())
	}
}

func TestRun_ZeroRetries(t *testing.T) {
	var calls int
	_, err := NewBackoff(fastConfig(0)).Run(context.Background(), "test", func(_ context.Context) error {
		calls++
		return errors.New("429 quota exceeded")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRunVal_ReturnsValueAndRetries(t *testing.T) {
	var calls int
	val, retries, err := RunVal(context.Background(), NewBackoff(fastConfig(3)), "test", func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("UNAVAILABLE: backend overloaded")
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "hello" {
		t.Errorf("expected %q, got %q", "hello", val)
	}
	if retries != 1 {
		t.Errorf("expected 1 retry, got %d", retries)
	}
}

func TestRunVal_ReturnsZeroOnFailure(t *testing.T) {
	val, _, err := RunVal(context.Background(), NewBackoff(fastConfig(1)), "test", func(_ context.Context) (int, error) {
		return 42, NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if val != 0 {
		t.Errorf("expected zero value on failure, got %d", val)
	}
}

func TestDelay_Bounds(t *testing.T) {
	cfg := DefaultRetryConfig()
	for attempt := 0; attempt <= 6; attempt++ {
		floor := cfg.BaseDelay * time.Duration(1<<attempt)
		if floor > cfg.MaxDelay {
			floor = cfg.MaxDelay
		}
		for i := 0; i < 50; i++ {
			d := Delay(attempt, cfg)
			if d > cfg.MaxDelay {
				t.Fatalf("attempt %d: delay %v exceeds max %v", attempt, d, cfg.MaxDelay)
			}
			if d < floor {
				t.Fatalf("attempt %d: delay %v below base*2^n %v", attempt, d, floor)
			}
		}
	}
}

func TestDelay_NoJitterIsExact(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second}

	expected := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond}
	for i, want := range expected {
		if got := Delay(i, cfg); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestDelay_JitterVaries(t *testing.T) {
	cfg := DefaultRetryConfig()
	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		d := Delay(0, cfg)
		seen[d] = true
		if d < time.Second || d >= 2*time.Second {
			t.Errorf("delay %v outside expected range [1s, 2s)", d)
		}
	}
	if len(seen) < 2 {
		t.Error("expected jitter to produce varying delays")
	}
}

func TestFromRetryConfig(t *testing.T) {
	cfg := FromRetryConfig(2, 250, 4000, -1)
	if cfg.MaxRetries != 2 {
		t.Errorf("expected 2 retries, got %d", cfg.MaxRetries)
	}
	if cfg.BaseDelay != 250*time.Millisecond {
		t.Errorf("unexpected base delay %v", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 4*time.Second {
		t.Errorf("unexpected max delay %v", cfg.MaxDelay)
	}
	if cfg.MaxJitter != 0 {
		t.Errorf("expected jitter disabled, got %v", cfg.MaxJitter)
	}

	def := FromRetryConfig(-1, 0, 0, 0)
	if def.MaxRetries != 3 || def.BaseDelay != time.Second || def.MaxDelay != 10*time.Second {
		t.Errorf("expected defaults, got %+v", def)
	}
}
