package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Rejection sentinels. Both are caller-visible: a request that cannot
// be admitted is always told why, never silently dropped.
var (
	// ErrQueueFull is returned when the wait queue is at capacity.
	ErrQueueFull = errors.New("ratelimit: queue full")
	// ErrQueueTimeout is returned when a queued request waited out its timeout.
	ErrQueueTimeout = errors.New("ratelimit: timed out waiting for permission")
)

// Priority orders queued requests. Higher values are served first;
// requests of equal priority are served in arrival order.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 50
	PriorityHigh     Priority = 100
	PriorityCritical Priority = 200
)

// Config tunes the limiter.
type Config struct {
	// HourlyBudget is the number of requests allowed per rolling hour.
	HourlyBudget int
	// ThreadLimitPerEndpoint caps in-flight requests per (zone, endpoint).
	ThreadLimitPerEndpoint int
	// MaxQueueSize caps the number of waiting requests.
	MaxQueueSize int
	// QueueTimeout is how long a queued request waits before rejecting.
	QueueTimeout time.Duration
	// ZoneAware enables per-zone health tracking and thread limits.
	// When disabled, only the hourly budget gates admission.
	ZoneAware bool
}

func (c Config) withDefaults() Config {
	if c.HourlyBudget <= 0 {
		c.HourlyBudget = 10000
	}
	if c.ThreadLimitPerEndpoint <= 0 {
		c.ThreadLimitPerEndpoint = 3
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = 30 * time.Second
	}
	return c
}

// zoneState is the exponential moving averages for one zone.
// A zone is unhealthy while its error rate EMA exceeds 0.5.
type zoneState struct {
	responseTimeMS float64
	errorRate      float64
}

const (
	emaAlpha          = 0.1
	unhealthyRate     = 0.5
	idleCheckInterval = 50 * time.Millisecond
)

// ZoneHealth is a read-only view of a zone's state.
type ZoneHealth struct {
	Zone           string
	ResponseTimeMS float64
	ErrorRate      float64
	Healthy        bool
}

// Snapshot is a point-in-time view of the limiter, used for health
// reporting.
type Snapshot struct {
	HourlyUsage float64
	QueueDepth  int
	Zones       []ZoneHealth
}

type waiter struct {
	zone     string
	endpoint string
	priority Priority
	ready    chan struct{} // closed when granted
}

// Limiter admits outbound requests against a rolling hourly budget,
// per-(zone, endpoint) thread limits, and per-zone health. Requests
// that cannot proceed immediately wait in a priority queue drained by
// a background loop; the loop paces grants by current budget usage,
// zone health, and queue pressure rather than polling tightly.
//
// Close the limiter when done to stop the drain loop.
type Limiter struct {
	cfg     Config
	metrics *Metrics
	now     func() time.Time

	mu      sync.Mutex
	history []time.Time    // grant timestamps within the rolling hour
	threads map[string]int // in-flight count per zone|endpoint
	zones   map[string]*zoneState
	queue   []*waiter // priority-ordered, stable within a priority

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// withClock overrides the time source. Test hook.
func withClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter and starts its drain loop.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		threads: make(map[string]int),
		zones:   make(map[string]*zoneState),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.drain()
	return l
}

// Close stops the drain loop. Waiting requests keep their timeouts and
// will reject when they expire.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

// RequestPermission asks to issue one request against zone+endpoint.
// It returns nil once the request may proceed, ErrQueueFull when the
// wait queue is at capacity, ErrQueueTimeout when the configured wait
// elapsed, or the context error when ctx is done first. Every granted
// permission must be paired with a NotifyRequestComplete call.
func (l *Limiter) RequestPermission(ctx context.Context, zone, endpoint string, priority Priority) error {
	l.mu.Lock()
	if l.admissibleLocked(zone, endpoint) {
		l.grantLocked(zone, endpoint)
		l.mu.Unlock()
		l.countGrant("immediate")
		return nil
	}

	if len(l.queue) >= l.cfg.MaxQueueSize {
		l.mu.Unlock()
		l.countRejection("queue_full")
		return ErrQueueFull
	}

	w := &waiter{zone: zone, endpoint: endpoint, priority: priority, ready: make(chan struct{})}
	l.enqueueLocked(w)
	l.mu.Unlock()
	l.signalWake()

	timer := time.NewTimer(l.cfg.QueueTimeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		l.countGrant("queued")
		return nil
	case <-timer.C:
		if l.abandon(w) {
			l.countRejection("timeout")
			return ErrQueueTimeout
		}
		// Granted while the timer fired; the slot is ours.
		l.countGrant("queued")
		return nil
	case <-ctx.Done():
		if l.abandon(w) {
			l.countRejection("canceled")
			return ctx.Err()
		}
		l.countGrant("queued")
		return nil
	}
}

// NotifyRequestComplete releases the thread slot taken by a granted
// permission and folds the outcome into the zone's moving averages.
func (l *Limiter) NotifyRequestComplete(zone, endpoint string, duration time.Duration, failed bool) {
	l.mu.Lock()
	key := zone + "|" + endpoint
	if l.threads[key] > 0 {
		l.threads[key]--
	}

	z, ok := l.zones[zone]
	if !ok {
		z = &zoneState{}
		l.zones[zone] = z
	}
	ms := float64(duration.Milliseconds())
	z.responseTimeMS = emaAlpha*ms + (1-emaAlpha)*z.responseTimeMS
	errVal := 0.0
	if failed {
		errVal = 1.0
	}
	z.errorRate = emaAlpha*errVal + (1-emaAlpha)*z.errorRate
	if z.errorRate > unhealthyRate {
		slog.Warn("zone unhealthy", "zone", zone, "error_rate", z.errorRate)
	}
	l.mu.Unlock()
	l.signalWake()
}

// Healthy reports whether a zone's error rate is below the unhealthy
// threshold. Zones with no recorded traffic are healthy.
func (l *Limiter) Healthy(zone string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zoneHealthyLocked(zone)
}

// Usage returns the fraction of the hourly budget consumed, in [0, 1+).
func (l *Limiter) Usage() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usageLocked()
}

// Stats returns a point-in-time snapshot of usage, queue depth, and
// zone health.
func (l *Limiter) Stats() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := Snapshot{
		HourlyUsage: l.usageLocked(),
		QueueDepth:  len(l.queue),
	}
	for zone, z := range l.zones {
		snap.Zones = append(snap.Zones, ZoneHealth{
			Zone:           zone,
			ResponseTimeMS: z.responseTimeMS,
			ErrorRate:      z.errorRate,
			Healthy:        z.errorRate <= unhealthyRate,
		})
	}
	return snap
}

// admissibleLocked holds the admission rule: the hourly budget must
// have headroom, and in zone-aware mode the zone must be healthy with
// a free thread slot for the endpoint.
func (l *Limiter) admissibleLocked(zone, endpoint string) bool {
	if l.usageLocked() >= 1.0 {
		return false
	}
	if !l.cfg.ZoneAware {
		return true
	}
	if !l.zoneHealthyLocked(zone) {
		return false
	}
	return l.threads[zone+"|"+endpoint] < l.cfg.ThreadLimitPerEndpoint
}

func (l *Limiter) zoneHealthyLocked(zone string) bool {
	z, ok := l.zones[zone]
	return !ok || z.errorRate <= unhealthyRate
}

func (l *Limiter) usageLocked() float64 {
	cutoff := l.now().Add(-time.Hour)
	drop := 0
	for drop < len(l.history) && l.history[drop].Before(cutoff) {
		drop++
	}
	l.history = l.history[drop:]
	usage := float64(len(l.history)) / float64(l.cfg.HourlyBudget)
	if l.metrics != nil {
		l.metrics.HourlyUsage.Set(usage)
	}
	return usage
}

func (l *Limiter) grantLocked(zone, endpoint string) {
	l.history = append(l.history, l.now())
	l.threads[zone+"|"+endpoint]++
}

// enqueueLocked inserts after all waiters of priority >= w's, so
// higher priorities drain first and equal priorities keep FIFO order.
func (l *Limiter) enqueueLocked(w *waiter) {
	pos := len(l.queue)
	for i, q := range l.queue {
		if q.priority < w.priority {
			pos = i
			break
		}
	}
	l.queue = append(l.queue, nil)
	copy(l.queue[pos+1:], l.queue[pos:])
	l.queue[pos] = w
	if l.metrics != nil {
		l.metrics.QueueDepth.Set(float64(len(l.queue)))
	}
}

// abandon removes a waiter that timed out or was canceled. Reports
// false when the drain loop granted it first, in which case the caller
// owns a slot and must treat the request as admitted.
func (l *Limiter) abandon(w *waiter) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, q := range l.queue {
		if q == w {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			if l.metrics != nil {
				l.metrics.QueueDepth.Set(float64(len(l.queue)))
			}
			return true
		}
	}
	return false
}

func (l *Limiter) signalWake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// drain serves the queue head whenever it becomes admissible, pacing
// itself by budget usage, zone health, and queue pressure. It sleeps
// between checks and is woken early by completions and enqueues.
func (l *Limiter) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			select {
			case <-l.wake:
				continue
			case <-l.done:
				return
			}
		}

		granted := false
		head := l.queue[0]
		if l.admissibleLocked(head.zone, head.endpoint) {
			l.queue = l.queue[1:]
			l.grantLocked(head.zone, head.endpoint)
			if l.metrics != nil {
				l.metrics.QueueDepth.Set(float64(len(l.queue)))
			}
			granted = true
		}
		delay := l.pacingDelayLocked(head.zone)
		l.mu.Unlock()

		if granted {
			close(head.ready)
			if delay == 0 {
				continue
			}
		} else if delay == 0 {
			// Head is blocked on a thread slot or zone health, not on
			// pacing; wait for a completion instead of spinning.
			delay = idleCheckInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-l.wake:
			timer.Stop()
		case <-l.done:
			timer.Stop()
			return
		}
	}
}

// pacingDelayLocked computes the inter-grant delay: a usage-tier base,
// plus penalties for a struggling zone, plus a predictive component
// that slows draining as the queue itself fills.
func (l *Limiter) pacingDelayLocked(zone string) time.Duration {
	usage := l.usageLocked()
	var delay time.Duration
	switch {
	case usage < 0.50:
		delay = 0
	case usage < 0.75:
		delay = 500 * time.Millisecond
	case usage < 0.90:
		delay = time.Second
	default:
		delay = 2 * time.Second
	}

	if z, ok := l.zones[zone]; ok {
		if z.errorRate > 0.1 {
			delay += time.Duration(z.errorRate * float64(time.Second))
		}
		if z.responseTimeMS > 1000 {
			penalty := time.Duration(z.responseTimeMS-1000) * time.Millisecond
			delay += min(penalty, time.Second)
		}
	}

	pressure := float64(len(l.queue)) / float64(l.cfg.MaxQueueSize)
	delay += time.Duration(pressure * float64(500*time.Millisecond))
	return delay
}

func (l *Limiter) countGrant(mode string) {
	if l.metrics != nil {
		l.metrics.Granted.WithLabelValues(mode).Inc()
	}
}

func (l *Limiter) countRejection(reason string) {
	if l.metrics != nil {
		l.metrics.Rejected.WithLabelValues(reason).Inc()
	}
}
