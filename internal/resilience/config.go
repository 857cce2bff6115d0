package resilience

import (
	"time"
)

// FromRetryConfig converts config values to a RetryConfig. Non-positive
// delays keep the defaults; a negative jitter disables jitter.
func FromRetryConfig(maxRetries, baseDelayMs, maxDelayMs, maxJitterMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxRetries >= 0 {
		cfg.MaxRetries = maxRetries
	}
	if baseDelayMs > 0 {
		cfg.BaseDelay = time.Duration(baseDelayMs) * time.Millisecond
	}
	if maxDelayMs > 0 {
		cfg.MaxDelay = time.Duration(maxDelayMs) * time.Millisecond
	}
	if maxJitterMs >= 0 {
		cfg.MaxJitter = time.Duration(maxJitterMs) * time.Millisecond
	} else {
		cfg.MaxJitter = 0
	}
	return cfg
}
