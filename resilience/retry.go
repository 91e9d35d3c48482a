// Package resilience wraps calls to external model and embedding APIs with
// bounded retries. Rate limits and transient server errors are retried with
// exponential backoff and jitter; everything else fails fast.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
)

// ErrMaxAttemptsExceeded is returned when every attempt failed.
type ErrMaxAttemptsExceeded struct {
	Attempts int
	LastErr  error
}

func (e ErrMaxAttemptsExceeded) Error() string {
	if e.LastErr != nil {
		return "retry: " + e.LastErr.Error()
	}
	return "retry: max attempts exceeded"
}

func (e ErrMaxAttemptsExceeded) Unwrap() error { return e.LastErr }

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64 // jitter fraction, 0-1
	RetryIf         func(error) bool
}

// DefaultRetryConfig suits chat/embedding API calls: two quick follow-up
// attempts after the first failure.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        8 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.2,
		RetryIf:         IsRetryable,
	}
}

// IsRetryable reports whether an error looks transient: rate limits,
// upstream 5xx responses, timeouts and connection drops.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "too many requests",
		"500", "502", "503", "504",
		"timeout", "connection reset", "connection refused", "eof",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Do runs fn with the default config.
func Do(ctx context.Context, fn func() error) error {
	return DoWithConfig(ctx, nil, fn)
}

// DoWithConfig runs fn until it succeeds, exhausts attempts, or hits a
// non-retryable error or context cancellation.
func DoWithConfig(ctx context.Context, cfg *RetryConfig, fn func() error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if cfg.RetryIf != nil && !cfg.RetryIf(err) {
				return err
			}
		}

		if attempt < cfg.MaxAttempts-1 {
			select {
			case <-time.After(applyJitter(delay, cfg.RandomizeFactor)):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	return ErrMaxAttemptsExceeded{Attempts: cfg.MaxAttempts, LastErr: lastErr}
}

func applyJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return d
	}
	if factor > 1 {
		factor = 1
	}
	// spread in [d*(1-f), d*(1+f)]
	spread := float64(d) * factor
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}
