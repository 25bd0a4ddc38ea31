// Package retry provides retry logic with exponential backoff for transient
// failures.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Initial backoff duration
	MaxBackoff     time.Duration // Maximum backoff duration
	BackoffFactor  float64       // Multiplier for exponential backoff
}

// DefaultConfig returns sensible default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// IsRetryable checks if an error is retryable (transient). Store outages,
// network hiccups and rate limiting are retryable; validation failures and
// malformed payloads are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())

	nonRetryable := []string{
		"unmarshal",  // Malformed payload
		"invalid",    // Invalid request
		"malformed",  // Bad request format
		"not found",  // Missing record, retrying cannot help
		"validation", // Rejected input
	}
	for _, s := range nonRetryable {
		if strings.Contains(errStr, s) {
			return false
		}
	}

	retryable := []string{
		"timeout",            // Network timeout
		"i/o timeout",        // Network timeout
		"connection refused", // Service temporarily unavailable
		"connection reset",   // Network hiccup
		"broken pipe",        // Network hiccup
		"temporary",          // Explicit temporary error
		"loading",            // Redis still loading its dataset
		"readonly",           // Redis replica during failover
		"rate limit",         // Rate limiting
		"throttl",            // Throttling
		"503",                // Service unavailable
		"502",                // Bad gateway
		"504",                // Gateway timeout
		"too many requests",  // Rate limiting
		"try again",          // Server suggests retry
	}
	for _, s := range retryable {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// Do runs op, retrying transient failures with exponential backoff and
// jitter. The last error is returned once retries are exhausted or the error
// is permanent.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffFor(cfg, attempt)
			slog.Debug("Retrying after backoff",
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// backoffFor computes the backoff before the given attempt, capped at
// MaxBackoff, with up to 25% jitter to avoid thundering herds.
func backoffFor(cfg Config, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffFactor, float64(attempt-1))
	if max := float64(cfg.MaxBackoff); backoff > max {
		backoff = max
	}
	jitter := backoff * 0.25 * rand.Float64()
	return time.Duration(backoff + jitter)
}
