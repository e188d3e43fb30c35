package reliability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFlags(t *testing.T, ops ...string) *FlagSet {
	t.Helper()
	flags := NewFlagSet()
	for _, op := range ops {
		flags.Enable(op)
	}
	return flags
}

func TestRecover_FeatureFlagGate(t *testing.T) {
	h := NewRecoveryHandler(NewFlagSet(), NewDegradationStrategy())

	out, err := h.Recover(context.Background(), errBoom, Incident{Operation: "getTickets"})
	require.NoError(t, err)
	assert.True(t, out.Skipped)
	assert.Equal(t, "disabled by feature flag", out.Reason)
	assert.False(t, out.Recovered)
}

func TestRecover_NilFlagsRecoversUnconditionally(t *testing.T) {
	h := NewRecoveryHandler(nil, NewDegradationStrategy())

	out, err := h.Recover(context.Background(), errBoom, Incident{Operation: "getTickets"})
	require.NoError(t, err)
	assert.True(t, out.Recovered)
}

func TestRecover_RetryStrategyFirst(t *testing.T) {
	calls := 0
	inc := Incident{
		Operation: "getTickets",
		Retry: func(context.Context) (any, error) {
			calls++
			if calls < 2 {
				return nil, errBoom
			}
			return "fresh", nil
		},
	}

	static := NewStaticFallback(map[string]any{"getTickets": "stale"})
	h := NewRecoveryHandler(openFlags(t, "getTickets"),
		&FallbackStrategy{Provider: static},
		&RetryStrategy{Config: fastRetry(3)},
	)

	out, err := h.Recover(context.Background(), errBoom, inc)
	require.NoError(t, err)
	assert.Equal(t, "retry", out.Strategy, "retry outranks fallback regardless of registration order")
	assert.Equal(t, "fresh", out.Value)
}

func TestRecover_FallsBackWhenRetryExhausted(t *testing.T) {
	inc := Incident{
		Operation: "getTickets",
		Retry: func(context.Context) (any, error) {
			return nil, errBoom
		},
	}

	cache := NewCacheFallback()
	cache.Store("getTickets", []string{"cached-1", "cached-2"})
	h := NewRecoveryHandler(openFlags(t, "getTickets"),
		&RetryStrategy{Config: fastRetry(2)},
		&FallbackStrategy{Provider: cache},
	)

	out, err := h.Recover(context.Background(), errBoom, inc)
	require.NoError(t, err)
	assert.Equal(t, "fallback", out.Strategy)
	assert.True(t, out.Fallback)
	assert.Equal(t, []string{"cached-1", "cached-2"}, out.Value)
}

func TestRecover_DegradationIsLastResort(t *testing.T) {
	deg := NewDegradationStrategy()
	h := NewRecoveryHandler(openFlags(t, "getTickets"),
		deg,
		&RetryStrategy{Config: fastRetry(2)},
		&FallbackStrategy{Provider: NewStaticFallback(nil)},
	)

	// No retry closure, no fallback data: only degradation can act.
	out, err := h.Recover(context.Background(), errBoom, Incident{Operation: "getTickets"})
	require.NoError(t, err)
	assert.Equal(t, "degradation", out.Strategy)
	assert.True(t, out.Degraded)

	resp, ok := out.Value.(DegradedResponse)
	require.True(t, ok)
	assert.Equal(t, "getTickets", resp.Operation)
	assert.True(t, deg.Degraded("getTickets"))

	deg.Restore("getTickets")
	assert.False(t, deg.Degraded("getTickets"))
}

func TestRecover_AllStrategiesFailReturnsOriginalError(t *testing.T) {
	h := NewRecoveryHandler(openFlags(t, "getTickets"),
		&RetryStrategy{Config: fastRetry(2)},
	)

	// Retry cannot act without the original closure.
	out, err := h.Recover(context.Background(), errBoom, Incident{Operation: "getTickets"})
	assert.ErrorIs(t, err, errBoom)
	assert.False(t, out.Recovered)
}

func TestCacheFallback(t *testing.T) {
	cache := NewCacheFallback()
	inc := Incident{Operation: "getAccounts"}

	assert.False(t, cache.CanProvide(inc))

	cache.Store("getAccounts", "snapshot")
	require.True(t, cache.CanProvide(inc))
	v, err := cache.Provide(context.Background(), inc)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", v)
}

func TestRetryStrategy_HonorsRetryablePredicate(t *testing.T) {
	fatal := errors.New("fatal")
	s := &RetryStrategy{Config: RetryConfig{
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
	}}
	inc := Incident{Retry: func(context.Context) (any, error) { return nil, nil }}

	assert.False(t, s.CanRecover(fatal, inc))
	assert.True(t, s.CanRecover(errBoom, inc))
	assert.False(t, s.CanRecover(errBoom, Incident{}), "no closure, nothing to retry")
}
