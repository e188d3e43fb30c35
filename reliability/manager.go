package reliability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/vigil/ratelimit"
)

// Manager rejection sentinels.
var (
	// ErrShed is returned when low-priority work is dropped under load.
	ErrShed = errors.New("reliability: request shed under load")
	// ErrDegradedMode is returned to non-critical work while degraded.
	ErrDegradedMode = errors.New("reliability: rejected in degraded mode")
	// ErrClosed is returned for requests submitted after Close.
	ErrClosed = errors.New("reliability: manager closed")
)

// Request is one unit of outbound work submitted to the manager.
type Request struct {
	// Zone and Endpoint route the request through the rate limiter.
	Zone     string
	Endpoint string
	// Priority orders queued work and decides shed eligibility.
	Priority ratelimit.Priority
	// Operation is the logical name used for recovery and degradation.
	Operation string
	// Do performs the work.
	Do Operation
	// Metadata is passed through to recovery providers.
	Metadata map[string]any
}

// ManagerConfig tunes the manager.
type ManagerConfig struct {
	// QueueSize caps pending requests.
	QueueSize int
	// Workers is the number of drain goroutines.
	Workers int
	// MaxBatch is how many same-endpoint requests one worker claims at
	// once; batching keeps related calls together under the same
	// limiter pacing window.
	MaxBatch int
	// ShedWatermark is the queue-fill fraction above which low-priority
	// requests are shed instead of queued.
	ShedWatermark float64
	// HealthInterval is how often health is snapshotted and degraded
	// mode re-evaluated.
	HealthInterval time.Duration
	// Retry is applied to every request's work.
	Retry RetryConfig
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 5
	}
	if c.ShedWatermark <= 0 || c.ShedWatermark > 1 {
		c.ShedWatermark = 0.8
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 30 * time.Second
	}
	return c
}

// Degraded-mode hysteresis on limiter usage.
const (
	degradeEnterUsage = 0.95
	degradeExitUsage  = 0.80
)

// Health is a periodic snapshot of the manager and its limiter.
type Health struct {
	Time         time.Time
	QueueDepth   int
	ShedTotal    uint64
	LimiterUsage float64
	Zones        []ratelimit.ZoneHealth
	Degraded     bool
}

type executeResult struct {
	value any
	err   error
}

type pendingRequest struct {
	ctx    context.Context
	req    Request
	result chan executeResult
}

// Manager is the single entry point for governed outbound work. It
// runs each request through a priority queue, the rate limiter, retry
// with backoff, and — when the work still fails — the recovery chain.
// Under sustained pressure it sheds low-priority work and flips into
// degraded mode, where only high-priority requests are accepted.
type Manager struct {
	cfg      ManagerConfig
	limiter  *ratelimit.Limiter
	recovery *RecoveryHandler

	mu        sync.Mutex
	queue     []*pendingRequest
	shedTotal uint64
	degraded  bool
	health    Health

	wake      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewManager starts the workers and the health loop. The recovery
// handler may be nil, in which case failures surface directly.
func NewManager(cfg ManagerConfig, limiter *ratelimit.Limiter, recovery *RecoveryHandler) *Manager {
	m := &Manager{
		cfg:      cfg.withDefaults(),
		limiter:  limiter,
		recovery: recovery,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	m.wg.Add(1)
	go m.healthLoop()
	return m
}

// Close stops the workers and health loop. Requests already queued are
// failed with ErrClosed.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		abandoned := m.queue
		m.queue = nil
		m.mu.Unlock()
		for _, p := range abandoned {
			p.result <- executeResult{err: ErrClosed}
		}
	})
	m.wg.Wait()
}

// Execute submits a request and blocks until it completes, is shed,
// or ctx is done.
func (m *Manager) Execute(ctx context.Context, req Request) (any, error) {
	if req.Do == nil {
		return nil, fmt.Errorf("reliability: request %q has no work", req.Operation)
	}
	select {
	case <-m.done:
		return nil, ErrClosed
	default:
	}

	p := &pendingRequest{ctx: ctx, req: req, result: make(chan executeResult, 1)}

	m.mu.Lock()
	if m.degraded && req.Priority < ratelimit.PriorityHigh {
		m.shedTotal++
		m.mu.Unlock()
		return nil, ErrDegradedMode
	}
	depth := len(m.queue)
	if depth >= m.cfg.QueueSize {
		m.shedTotal++
		m.mu.Unlock()
		return nil, ErrShed
	}
	if float64(depth) >= m.cfg.ShedWatermark*float64(m.cfg.QueueSize) &&
		req.Priority <= ratelimit.PriorityLow {
		m.shedTotal++
		m.mu.Unlock()
		return nil, ErrShed
	}
	m.enqueueLocked(p)
	m.mu.Unlock()
	m.signalWake()

	select {
	case res := <-p.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Degraded reports whether the manager is refusing non-critical work.
func (m *Manager) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// Health returns the latest periodic snapshot.
func (m *Manager) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health
}

// enqueueLocked inserts after all equal-or-higher priorities, keeping
// FIFO order within a priority.
func (m *Manager) enqueueLocked(p *pendingRequest) {
	pos := len(m.queue)
	for i, q := range m.queue {
		if q.req.Priority < p.req.Priority {
			pos = i
			break
		}
	}
	m.queue = append(m.queue, nil)
	copy(m.queue[pos+1:], m.queue[pos:])
	m.queue[pos] = p
}

func (m *Manager) signalWake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		batch := m.claimBatch()
		if batch == nil {
			select {
			case <-m.wake:
				continue
			case <-m.done:
				return
			}
		}
		for _, p := range batch {
			m.process(p)
		}
	}
}

// claimBatch pops the head plus up to MaxBatch-1 more requests for the
// same endpoint, preserving queue order. Returns nil when idle.
func (m *Manager) claimBatch() []*pendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	head := m.queue[0]
	batch := []*pendingRequest{head}
	rest := m.queue[1:]
	kept := rest[:0]
	for _, p := range rest {
		if len(batch) < m.cfg.MaxBatch && p.req.Endpoint == head.req.Endpoint {
			batch = append(batch, p)
			continue
		}
		kept = append(kept, p)
	}
	m.queue = kept
	return batch
}

func (m *Manager) process(p *pendingRequest) {
	req := p.req
	if err := m.limiter.RequestPermission(p.ctx, req.Zone, req.Endpoint, req.Priority); err != nil {
		p.result <- executeResult{err: err}
		return
	}

	start := time.Now()
	value, err := RetryOperation(p.ctx, m.cfg.Retry, req.Do)
	m.limiter.NotifyRequestComplete(req.Zone, req.Endpoint, time.Since(start), err != nil)

	if err != nil && m.recovery != nil {
		inc := Incident{Operation: req.Operation, Retry: req.Do, Metadata: req.Metadata}
		out, rerr := m.recovery.Recover(p.ctx, err, inc)
		if rerr == nil && out.Recovered {
			value, err = out.Value, nil
		}
	}
	if err != nil {
		slog.Warn("request failed",
			"operation", req.Operation, "endpoint", req.Endpoint, "error", err)
	}
	p.result <- executeResult{value: value, err: err}
}

func (m *Manager) healthLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.snapshotHealth()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) snapshotHealth() {
	stats := m.limiter.Stats()

	m.mu.Lock()
	switch {
	case !m.degraded && stats.HourlyUsage >= degradeEnterUsage:
		m.degraded = true
		slog.Warn("entering degraded mode", "usage", stats.HourlyUsage)
	case m.degraded && stats.HourlyUsage < degradeExitUsage:
		m.degraded = false
		slog.Info("leaving degraded mode", "usage", stats.HourlyUsage)
	}
	m.health = Health{
		Time:         time.Now(),
		QueueDepth:   len(m.queue),
		ShedTotal:    m.shedTotal,
		LimiterUsage: stats.HourlyUsage,
		Zones:        stats.Zones,
		Degraded:     m.degraded,
	}
	h := m.health
	m.mu.Unlock()

	slog.Debug("reliability health",
		"queue_depth", h.QueueDepth,
		"shed_total", h.ShedTotal,
		"limiter_usage", h.LimiterUsage,
		"degraded", h.Degraded,
	)
}
