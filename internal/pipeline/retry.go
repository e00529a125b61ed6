package pipeline

import (
	"context"
	"time"
)

// RetryConfig bounds a retry loop around an external call. Use is explicit
// per call site; some calls have fallbacks that are cheaper than retrying.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetry is a small bounded policy suitable for synthesis calls.
var DefaultRetry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Second}

// withRetry runs fn up to MaxAttempts times with exponential backoff
// (delay = BaseDelay * 2^attempt). The last error is returned; context
// cancellation stops the loop between attempts.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	var err error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		delay := cfg.BaseDelay << uint(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
