package reliability

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Incident describes a failed operation for the recovery chain.
type Incident struct {
	// Operation is the logical operation name. It keys feature-flag
	// gating, fallback lookup, and degradation bookkeeping.
	Operation string
	// Retry is the original work, required by the retry strategy.
	// Nil when the operation cannot be replayed.
	Retry Operation
	// Metadata carries caller context for providers and logs.
	Metadata map[string]any
}

// Outcome is the result of a recovery attempt.
type Outcome struct {
	Recovered bool
	Skipped   bool
	Degraded  bool
	Fallback  bool
	Value     any
	Strategy  string
	Reason    string
}

// Strategy is one way of recovering from a failure. Strategies are
// consulted in descending Priority order.
type Strategy interface {
	Name() string
	Priority() int
	CanRecover(err error, inc Incident) bool
	Recover(ctx context.Context, err error, inc Incident) (Outcome, error)
}

// RecoveryHandler walks an ordered strategy chain until one recovers.
// When a flag set is attached, recovery for an operation only runs
// while that operation's flag is enabled; otherwise the attempt is
// skipped outright without consulting any strategy.
type RecoveryHandler struct {
	flags      *FlagSet
	strategies []Strategy
}

// NewRecoveryHandler builds a handler. Strategies are sorted by
// descending priority; order among equal priorities is preserved.
// A nil flag set disables gating.
func NewRecoveryHandler(flags *FlagSet, strategies ...Strategy) *RecoveryHandler {
	sorted := make([]Strategy, len(strategies))
	copy(sorted, strategies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &RecoveryHandler{flags: flags, strategies: sorted}
}

// Recover tries each applicable strategy in turn. When every strategy
// fails or declines, the original error is returned so the caller sees
// what actually went wrong, not the last recovery failure.
func (h *RecoveryHandler) Recover(ctx context.Context, err error, inc Incident) (Outcome, error) {
	if h.flags != nil && !h.flags.Enabled(inc.Operation) {
		return Outcome{Skipped: true, Reason: "disabled by feature flag"}, nil
	}

	for _, s := range h.strategies {
		if !s.CanRecover(err, inc) {
			continue
		}
		out, rerr := s.Recover(ctx, err, inc)
		if rerr != nil {
			slog.Debug("recovery strategy failed",
				"strategy", s.Name(), "operation", inc.Operation, "error", rerr)
			continue
		}
		if out.Recovered {
			out.Strategy = s.Name()
			slog.Info("recovered from failure",
				"strategy", s.Name(), "operation", inc.Operation,
				"degraded", out.Degraded, "fallback", out.Fallback)
			return out, nil
		}
	}
	return Outcome{}, err
}

// RetryStrategy replays the original operation with backoff. It is the
// first strategy tried: a transient failure is best solved by simply
// doing the work again.
type RetryStrategy struct {
	Config RetryConfig
}

func (s *RetryStrategy) Name() string  { return "retry" }
func (s *RetryStrategy) Priority() int { return 100 }

func (s *RetryStrategy) CanRecover(err error, inc Incident) bool {
	if inc.Retry == nil {
		return false
	}
	return s.Config.Retryable == nil || s.Config.Retryable(err)
}

func (s *RetryStrategy) Recover(ctx context.Context, _ error, inc Incident) (Outcome, error) {
	value, err := RetryOperation(ctx, s.Config, inc.Retry)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Recovered: true, Value: value}, nil
}

// FallbackProvider supplies substitute data when the real operation
// cannot run.
type FallbackProvider interface {
	CanProvide(inc Incident) bool
	Provide(ctx context.Context, inc Incident) (any, error)
}

// FallbackStrategy serves stale or static data instead of failing.
type FallbackStrategy struct {
	Provider FallbackProvider
}

func (s *FallbackStrategy) Name() string  { return "fallback" }
func (s *FallbackStrategy) Priority() int { return 50 }

func (s *FallbackStrategy) CanRecover(_ error, inc Incident) bool {
	return s.Provider != nil && s.Provider.CanProvide(inc)
}

func (s *FallbackStrategy) Recover(ctx context.Context, _ error, inc Incident) (Outcome, error) {
	value, err := s.Provider.Provide(ctx, inc)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Recovered: true, Fallback: true, Value: value}, nil
}

// CacheFallback keeps the last good payload per operation and serves
// it back as fallback data.
type CacheFallback struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewCacheFallback returns an empty cache-backed provider.
func NewCacheFallback() *CacheFallback {
	return &CacheFallback{data: make(map[string]any)}
}

// Store records the latest good payload for an operation.
func (c *CacheFallback) Store(operation string, value any) {
	c.mu.Lock()
	c.data[operation] = value
	c.mu.Unlock()
}

func (c *CacheFallback) CanProvide(inc Incident) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[inc.Operation]
	return ok
}

func (c *CacheFallback) Provide(_ context.Context, inc Incident) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[inc.Operation], nil
}

// StaticFallback serves fixed data configured at construction.
type StaticFallback struct {
	data map[string]any
}

// NewStaticFallback builds a provider over a fixed operation→payload map.
func NewStaticFallback(data map[string]any) *StaticFallback {
	return &StaticFallback{data: data}
}

func (s *StaticFallback) CanProvide(inc Incident) bool {
	_, ok := s.data[inc.Operation]
	return ok
}

func (s *StaticFallback) Provide(_ context.Context, inc Incident) (any, error) {
	return s.data[inc.Operation], nil
}

// DegradedResponse is the synthetic payload returned when an operation
// is served in degraded mode.
type DegradedResponse struct {
	Operation string `json:"operation"`
	Degraded  bool   `json:"degraded"`
	Reason    string `json:"reason"`
}

// DegradationStrategy is the last resort: it always succeeds with a
// synthetic degraded payload and remembers the operation as degraded
// until Restore is called.
type DegradationStrategy struct {
	mu       sync.Mutex
	degraded map[string]bool
}

// NewDegradationStrategy returns a strategy with no degraded operations.
func NewDegradationStrategy() *DegradationStrategy {
	return &DegradationStrategy{degraded: make(map[string]bool)}
}

func (s *DegradationStrategy) Name() string  { return "degradation" }
func (s *DegradationStrategy) Priority() int { return 0 }

func (s *DegradationStrategy) CanRecover(error, Incident) bool { return true }

func (s *DegradationStrategy) Recover(_ context.Context, err error, inc Incident) (Outcome, error) {
	s.mu.Lock()
	s.degraded[inc.Operation] = true
	s.mu.Unlock()
	return Outcome{
		Recovered: true,
		Degraded:  true,
		Value: DegradedResponse{
			Operation: inc.Operation,
			Degraded:  true,
			Reason:    err.Error(),
		},
	}, nil
}

// Degraded reports whether an operation is currently degraded.
func (s *DegradationStrategy) Degraded(operation string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded[operation]
}

// Restore clears an operation's degraded state.
func (s *DegradationStrategy) Restore(operation string) {
	s.mu.Lock()
	delete(s.degraded, operation)
	s.mu.Unlock()
}
