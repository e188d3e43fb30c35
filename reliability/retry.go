package reliability

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Operation is a unit of work the reliability layer can run, retry,
// and recover. It returns the operation's payload on success.
type Operation func(ctx context.Context) (any, error)

// RetryConfig tunes exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialDelay seeds the backoff sequence.
	InitialDelay time.Duration
	// MaxDelay caps the computed delay before jitter.
	MaxDelay time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// JitterFactor spreads each delay uniformly by ±delay*JitterFactor.
	JitterFactor float64
	// Retryable, when set, stops retrying as soon as it returns false
	// for the latest error. Nil retries every error.
	Retryable func(error) bool
}

// DefaultRetryConfig matches typical API-client backoff: three tries,
// 100ms doubling to a 5s ceiling, 20% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.2,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = d.MaxDelay
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	return c
}

// Delay returns the backoff before the given retry (attempt 1 is the
// delay after the first failure): min(initial·multiplier^(n−1), max),
// spread by ±delay·jitter.
func (c RetryConfig) Delay(attempt int) time.Duration {
	cfg := c.withDefaults()
	backoff := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	backoff = math.Min(backoff, float64(cfg.MaxDelay))
	if cfg.JitterFactor > 0 {
		spread := backoff * cfg.JitterFactor
		backoff += (rand.Float64()*2 - 1) * spread
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(backoff)
}

// RetryOperation runs op until it succeeds, the error is declared
// non-retryable, the attempts are exhausted, or ctx is done. The last
// error is returned wrapped with the attempt count.
func RetryOperation(ctx context.Context, cfg RetryConfig, op Operation) (any, error) {
	cfg = cfg.withDefaults()
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return nil, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}
		if err := sleep(ctx, cfg.Delay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Retry is RetryOperation for work with no payload.
func Retry(ctx context.Context, cfg RetryConfig, op func(ctx context.Context) error) error {
	_, err := RetryOperation(ctx, cfg, func(ctx context.Context) (any, error) {
		return nil, op(ctx)
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
