package engine

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vigil/rule"
)

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	require.Error(t, m.Register(reg), "double registration must be rejected")
}

func TestMetrics_CountValidationsAndCache(t *testing.T) {
	m := NewMetrics()
	require.NoError(t, m.Register(prometheus.NewRegistry()))

	eng := New(DefaultOptions(), WithMetrics(m))
	eng.Register(rule.NewRequiredField("title-required", []string{"title"}), "Tickets")
	assert.InDelta(t, 1.0, promtest.ToFloat64(m.RegisteredRules), 1e-9)

	rctx := &rule.Context{Operation: rule.OpCreate}
	entity := rule.Entity{"id": 1, "status": "open"}

	res := eng.ValidateEntity(t.Context(), "Tickets", entity, rctx)
	require.False(t, res.IsValid())
	assert.InDelta(t, 1.0, promtest.ToFloat64(m.ValidationsTotal.WithLabelValues("Tickets", "invalid")), 1e-9)
	assert.InDelta(t, 1.0, promtest.ToFloat64(m.CacheMisses), 1e-9)

	// Same entity again: served from cache, no new validation count.
	eng.ValidateEntity(t.Context(), "Tickets", entity, rctx)
	assert.InDelta(t, 1.0, promtest.ToFloat64(m.CacheHits), 1e-9)
	assert.InDelta(t, 1.0, promtest.ToFloat64(m.ValidationsTotal.WithLabelValues("Tickets", "invalid")), 1e-9)
}
