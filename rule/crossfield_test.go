package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionalRequired_Operators(t *testing.T) {
	tests := []struct {
		name    string
		op      CompareOp
		trigger any
		value   any
		fires   bool
	}{
		{"equals match", OpEquals, "Closed", "Closed", true},
		{"equals mismatch", OpEquals, "Open", "Closed", false},
		{"notEquals match", OpNotEquals, "Open", "Closed", true},
		{"notEquals mismatch", OpNotEquals, "Closed", "Closed", false},
		{"contains string", OpContains, "high-priority", "priority", true},
		{"contains miss", OpContains, "low", "priority", false},
		{"greaterThan", OpGreaterThan, 10, 5, true},
		{"greaterThan equal boundary", OpGreaterThan, 5, 5, false},
		{"lessThan", OpLessThan, 3, 5, true},
		{"lessThan miss", OpLessThan, 7, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewConditionalRequired("cond", "status", tt.op, tt.value, []string{"resolution"})
			entity := Entity{"status": tt.trigger}

			res, err := r.Validate(context.Background(), entity, nil)
			require.NoError(t, err)

			if tt.fires {
				require.Equal(t, 1, res.ErrorCount())
				assert.Equal(t, CodeConditionalRequired, res.Errors()[0].Code)
			} else {
				assert.True(t, res.IsValid())
			}
		})
	}
}

func TestConditionalRequired_ContainsSlice(t *testing.T) {
	r := NewConditionalRequired("cond", "tags", OpContains, "billing", []string{"invoice_id"})

	res, err := r.Validate(context.Background(), Entity{"tags": []any{"billing", "urgent"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ErrorCount())

	res, err = r.Validate(context.Background(), Entity{"tags": []any{"urgent"}}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestConditionalRequired_AbsentTriggerSilent(t *testing.T) {
	r := NewConditionalRequired("cond", "status", OpEquals, "Closed", []string{"resolution"})

	res, err := r.Validate(context.Background(), Entity{}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestConditionalRequired_SatisfiedRequirement(t *testing.T) {
	r := NewConditionalRequired("cond", "status", OpEquals, "Closed", []string{"resolution"})

	res, err := r.Validate(context.Background(),
		Entity{"status": "Closed", "resolution": "fixed"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestDateRange_Ordering(t *testing.T) {
	tests := []struct {
		name      string
		inclusive bool
		start     string
		end       string
		valid     bool
	}{
		{"end after start", true, "2025-01-01", "2025-01-10", true},
		{"end before start", true, "2025-01-10", "2025-01-01", false},
		{"equal inclusive", true, "2025-01-01", "2025-01-01", true},
		{"equal exclusive", false, "2025-01-01", "2025-01-01", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewDateRange("dates", "start", "end", DateRangeConfig{Inclusive: tt.inclusive})
			res, err := r.Validate(context.Background(), Entity{"start": tt.start, "end": tt.end}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.IsValid())
		})
	}
}

func TestDateRange_DurationBounds(t *testing.T) {
	minDays := 2.0
	maxDays := 30.0
	r := NewDateRange("dates", "start", "end", DateRangeConfig{
		Inclusive: true,
		MinDays:   &minDays,
		MaxDays:   &maxDays,
	})

	res, err := r.Validate(context.Background(), Entity{"start": "2025-01-01", "end": "2025-01-02"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeDateRangeTooShort, res.Errors()[0].Code)

	res, err = r.Validate(context.Background(), Entity{"start": "2025-01-01", "end": "2025-03-15"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeDateRangeTooLong, res.Errors()[0].Code)

	res, err = r.Validate(context.Background(), Entity{"start": "2025-01-01", "end": "2025-01-15"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestDateRange_MissingFieldSilent(t *testing.T) {
	r := NewDateRange("dates", "start", "end", DateRangeConfig{Inclusive: true})

	res, err := r.Validate(context.Background(), Entity{"start": "2025-01-01"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestSumValidation_AgainstValue(t *testing.T) {
	tests := []struct {
		name  string
		op    CompareOp
		a, b  float64
		valid bool
	}{
		{"equals pass", OpEquals, 60, 40, true},
		{"equals fail", OpEquals, 60, 39, false},
		{"lessThanOrEqual pass", OpLessThanOrEqual, 50, 50, true},
		{"lessThan fail on equal", OpLessThan, 50, 50, false},
		{"greaterThan pass", OpGreaterThan, 70, 40, true},
		{"greaterThanOrEqual boundary", OpGreaterThanOrEqual, 60, 40, true},
		{"notEquals pass", OpNotEquals, 10, 20, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSumAgainstValue("sum", []string{"a", "b"}, tt.op, 100)
			res, err := r.Validate(context.Background(), Entity{"a": tt.a, "b": tt.b}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.IsValid())
			if !tt.valid {
				assert.Equal(t, CodeInvalidSum, res.Errors()[0].Code)
			}
		})
	}
}

func TestSumValidation_AgainstField(t *testing.T) {
	r := NewSumAgainstField("line_total", []string{"subtotal", "tax"}, OpEquals, "total")

	res, err := r.Validate(context.Background(), Entity{"subtotal": 90, "tax": 10, "total": 100}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())

	res, err = r.Validate(context.Background(), Entity{"subtotal": 90, "tax": 10, "total": 95}, nil)
	require.NoError(t, err)
	assert.False(t, res.IsValid())
}

func TestSumValidation_AllAbsentSilent(t *testing.T) {
	r := NewSumAgainstValue("sum", []string{"a", "b"}, OpEquals, 100)

	res, err := r.Validate(context.Background(), Entity{}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestMutuallyExclusive_AtMostOne(t *testing.T) {
	r := NewMutuallyExclusive("contact", []string{"email", "phone"})

	res, err := r.Validate(context.Background(), Entity{"email": "a@b.c", "phone": "555"}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeMutuallyExclusive, res.Errors()[0].Code)

	res, err = r.Validate(context.Background(), Entity{"email": "a@b.c"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())

	// None present is fine in at-most-one mode.
	res, err = r.Validate(context.Background(), Entity{}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestMutuallyExclusive_RequireOne(t *testing.T) {
	r := NewMutuallyExclusive("contact", []string{"email", "phone"}).RequireOne()

	res, err := r.Validate(context.Background(), Entity{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ErrorCount())

	res, err = r.Validate(context.Background(), Entity{"phone": "555"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestDependentFields(t *testing.T) {
	r := NewDependentFields("billing", "billing_code", []string{"cost_center", "approver"})

	// Primary absent: silent.
	res, err := r.Validate(context.Background(), Entity{}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())

	// Primary present, dependents missing.
	res, err = r.Validate(context.Background(), Entity{"billing_code": "B1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ErrorCount())

	// All present.
	res, err = r.Validate(context.Background(),
		Entity{"billing_code": "B1", "cost_center": "CC", "approver": "mgr"}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestPercentageSum(t *testing.T) {
	r := NewPercentageSum("allocation", []string{"a", "b"}, 0.01)

	res, err := r.Validate(context.Background(), Entity{"a": 60, "b": 40}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())

	res, err = r.Validate(context.Background(), Entity{"a": 60, "b": 39}, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.ErrorCount())
	assert.Equal(t, CodeInvalidPercentageSum, res.Errors()[0].Code)

	// Rule does not fire on fully-empty input.
	res, err = r.Validate(context.Background(), Entity{}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid())
}

func TestPercentageSum_ToleranceBand(t *testing.T) {
	r := NewPercentageSum("allocation", []string{"a", "b"}, 0.5)

	res, err := r.Validate(context.Background(), Entity{"a": 60, "b": 40.4}, nil)
	require.NoError(t, err)
	assert.True(t, res.IsValid(), "inside tolerance band")

	res, err = r.Validate(context.Background(), Entity{"a": 60, "b": 41}, nil)
	require.NoError(t, err)
	assert.False(t, res.IsValid(), "outside tolerance band")
}
