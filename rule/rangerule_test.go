package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRange_InclusiveBounds(t *testing.T) {
	r := NewRange("age_range", "age", RangeBounds{Min: Bound(18), Max: Bound(65), Inclusive: true})

	tests := []struct {
		name     string
		age      any
		wantCode string
	}{
		{"at minimum passes", 18, ""},
		{"below minimum fails", 17, CodeBelowMinimum},
		{"at maximum passes", 65, ""},
		{"above maximum fails", 66, CodeAboveMaximum},
		{"inside passes", 40, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Validate(context.Background(), Entity{"age": tt.age}, nil)
			require.NoError(t, err)
			if tt.wantCode == "" {
				assert.True(t, res.IsValid())
			} else {
				require.Equal(t, 1, res.ErrorCount())
				assert.Equal(t, tt.wantCode, res.Errors()[0].Code)
			}
		})
	}
}

func TestRange_ExclusiveBounds(t *testing.T) {
	r := NewRange("age_range", "age", RangeBounds{Min: Bound(18), Max: Bound(65), Inclusive: false})

	// Boundary values fail when exclusive.
	res, err := r.Validate(context.Background(), Entity{"age": 65}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeAboveMaximum, res.Errors()[0].Code)

	res, err = r.Validate(context.Background(), Entity{"age": 18}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeBelowMinimum, res.Errors()[0].Code)

	res, err = r.Validate(context.Background(), Entity{"age": 19}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestRange_NonNumericShortCircuits(t *testing.T) {
	r := NewRange("age_range", "age", RangeBounds{Min: Bound(18), Max: Bound(65), Inclusive: true})

	res, err := r.Validate(context.Background(), Entity{"age": "not-a-number"}, nil)
	require.NoError(t, err)

	// Exactly one INVALID_RANGE_VALUE; the bounds checks are skipped.
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeInvalidRangeValue, res.Errors()[0].Code)
}

func TestRange_AbsentValueSkipped(t *testing.T) {
	r := NewRange("age_range", "age", RangeBounds{Min: Bound(18), Inclusive: true})

	res, err := r.Validate(context.Background(), Entity{}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestRange_HalfOpen(t *testing.T) {
	minOnly := NewRange("min_only", "n", RangeBounds{Min: Bound(0), Inclusive: true})
	res, err := minOnly.Validate(context.Background(), Entity{"n": 1e9}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())

	maxOnly := NewRange("max_only", "n", RangeBounds{Max: Bound(10), Inclusive: true})
	res, err = maxOnly.Validate(context.Background(), Entity{"n": -1e9}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestRange_DateField(t *testing.T) {
	// Dates normalize to epoch ms; express bounds the same way.
	cutoff := float64(1735689600000) // 2025-01-01T00:00:00Z
	r := NewRange("after_2025", "created", RangeBounds{Min: Bound(cutoff), Inclusive: true})

	res, err := r.Validate(context.Background(), Entity{"created": "2025-06-01T00:00:00Z"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}
