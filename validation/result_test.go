package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResult_EmptyIsValid(t *testing.T) {
	r := NewResult()

	assert.True(t, r.IsValid())
	assert.Empty(t, r.Issues())
	assert.Equal(t, 0, r.Len())
}

func TestResult_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		build func(r *Result)
		valid bool
	}{
		{
			name:  "no issues",
			build: func(r *Result) {},
			valid: true,
		},
		{
			name: "only warnings",
			build: func(r *Result) {
				r.AddWarning("W1", "warning one")
				r.AddWarning("W2", "warning two")
			},
			valid: true,
		},
		{
			name: "only infos",
			build: func(r *Result) {
				r.AddInfo("I1", "info")
			},
			valid: true,
		},
		{
			name: "single error",
			build: func(r *Result) {
				r.AddError("E1", "error")
			},
			valid: false,
		},
		{
			name: "error among warnings",
			build: func(r *Result) {
				r.AddWarning("W1", "warning")
				r.AddError("E1", "error")
				r.AddInfo("I1", "info")
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResult()
			tt.build(r)
			assert.Equal(t, tt.valid, r.IsValid())
		})
	}
}

func TestResult_Counts(t *testing.T) {
	r := NewResult()
	r.AddError("E1", "e1")
	r.AddError("E2", "e2")
	r.AddWarning("W1", "w1")
	r.AddInfo("I1", "i1")

	assert.Equal(t, 2, r.ErrorCount())
	assert.Equal(t, 1, r.WarningCount())
	assert.Equal(t, 4, r.Len())
	assert.Len(t, r.Errors(), 2)
	assert.Len(t, r.Warnings(), 1)
	assert.Len(t, r.Infos(), 1)
}

func TestResult_Merge_ConcatenatesInOrder(t *testing.T) {
	a := NewResult()
	a.AddError("A1", "first")
	a.AddWarning("A2", "second")

	b := NewResult()
	b.AddInfo("B1", "third")

	a.Merge(b)

	issues := a.Issues()
	require.Len(t, issues, 3)
	assert.Equal(t, "A1", issues[0].Code)
	assert.Equal(t, "A2", issues[1].Code)
	assert.Equal(t, "B1", issues[2].Code)
}

func TestResult_Merge_Associative(t *testing.T) {
	build := func() (*Result, *Result, *Result) {
		a := NewResult()
		a.AddError("A", "a")
		b := NewResult()
		b.AddWarning("B", "b")
		c := NewResult()
		c.AddInfo("C", "c")
		return a, b, c
	}

	// (a ⊕ b) ⊕ c
	a1, b1, c1 := build()
	a1.Merge(b1)
	a1.Merge(c1)

	// a ⊕ (b ⊕ c)
	a2, b2, c2 := build()
	b2.Merge(c2)
	a2.Merge(b2)

	assert.Equal(t, a1.Issues(), a2.Issues())
}

func TestResult_Merge_MetadataRightWins(t *testing.T) {
	a := NewResult()
	a.SetMetadata("shared", "left")
	a.SetMetadata("only_left", 1)

	b := NewResult()
	b.SetMetadata("shared", "right")
	b.SetMetadata("only_right", 2)

	a.Merge(b)

	v, ok := a.Metadata("shared")
	require.True(t, ok)
	assert.Equal(t, "right", v)

	_, ok = a.Metadata("only_left")
	assert.True(t, ok)
	_, ok = a.Metadata("only_right")
	assert.True(t, ok)
}

func TestResult_Merge_Nil(t *testing.T) {
	r := NewResult()
	r.AddError("E", "e")
	r.Merge(nil)

	assert.Equal(t, 1, r.Len())
}

func TestResult_StampRuleName(t *testing.T) {
	r := NewResult()
	r.AddError("E1", "unstamped")
	r.AddIssue(Issue{Severity: SeverityError, Code: "E2", Message: "pre-stamped", RuleName: "sub_rule"})

	r.StampRuleName("outer_rule")

	issues := r.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "outer_rule", issues[0].RuleName)
	assert.Equal(t, "sub_rule", issues[1].RuleName, "issues from composite sub-rules keep their own name")
}

func TestResult_IssuesReturnsCopy(t *testing.T) {
	r := NewResult()
	r.AddError("E1", "e1")

	issues := r.Issues()
	issues[0].Code = "MUTATED"

	assert.Equal(t, "E1", r.Issues()[0].Code)
}

func TestResult_Clone(t *testing.T) {
	r := NewResult()
	r.AddError("E1", "e1")
	r.SetMetadata("k", "v")

	c := r.Clone()
	c.AddError("E2", "e2")
	c.SetMetadata("k", "changed")

	assert.Equal(t, 1, r.Len())
	v, _ := r.Metadata("k")
	assert.Equal(t, "v", v)
	assert.Equal(t, 2, c.Len())
}
