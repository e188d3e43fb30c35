package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_AdvanceAndSet(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clk := NewFakeClock(start)
	assert.Equal(t, start, clk.Now())

	clk.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())

	// Negative advances and backwards sets are ignored.
	clk.Advance(-time.Hour)
	clk.Set(start)
	assert.Equal(t, start.Add(90*time.Second), clk.Now())

	later := start.Add(time.Hour)
	clk.Set(later)
	assert.Equal(t, later, clk.Now())
}

func TestFakeClock_ConcurrentAdvance(t *testing.T) {
	clk := NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clk.Advance(time.Millisecond)
				clk.Now()
			}
		}()
	}
	wg.Wait()

	want := time.Date(2026, 3, 1, 9, 0, 1, 0, time.UTC)
	assert.Equal(t, want, clk.Now())
}
