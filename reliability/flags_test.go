package reliability

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagSet_Basics(t *testing.T) {
	flags := NewFlagSet()

	assert.False(t, flags.Enabled("missing"))

	flags.Enable("batch_mode")
	assert.True(t, flags.Enabled("batch_mode"))
	assert.True(t, flags.EnabledFor("batch_mode", "user-1"))

	flags.Disable("batch_mode")
	assert.False(t, flags.Enabled("batch_mode"))
	assert.False(t, flags.EnabledFor("batch_mode", "user-1"))

	assert.True(t, flags.Delete("batch_mode"))
	assert.False(t, flags.Delete("batch_mode"))
}

func TestFlagSet_PercentRollout(t *testing.T) {
	flags := NewFlagSet()
	flags.EnablePercent("new_validator", 30)

	// Partial rollouts never count as globally enabled.
	assert.False(t, flags.Enabled("new_validator"))

	// Deterministic per subject.
	for i := 0; i < 20; i++ {
		subject := fmt.Sprintf("user-%d", i)
		first := flags.EnabledFor("new_validator", subject)
		assert.Equal(t, first, flags.EnabledFor("new_validator", subject))
	}

	// Extremes.
	flags.EnablePercent("all", 100)
	flags.EnablePercent("none", 0)
	for i := 0; i < 20; i++ {
		subject := fmt.Sprintf("user-%d", i)
		assert.True(t, flags.EnabledFor("all", subject))
		assert.False(t, flags.EnabledFor("none", subject))
	}
}

func TestFlagSet_RampUpKeepsExistingSubjects(t *testing.T) {
	flags := NewFlagSet()

	flags.EnablePercent("ramp", 25)
	var in []string
	for i := 0; i < 200; i++ {
		subject := fmt.Sprintf("user-%d", i)
		if flags.EnabledFor("ramp", subject) {
			in = append(in, subject)
		}
	}
	require.NotEmpty(t, in, "some subjects should land inside a 25% rollout")

	flags.EnablePercent("ramp", 60)
	for _, subject := range in {
		assert.True(t, flags.EnabledFor("ramp", subject),
			"subject %s fell out of the rollout when it grew", subject)
	}
}

func TestFlagSet_RolloutClamped(t *testing.T) {
	flags := NewFlagSet()
	flags.EnablePercent("over", 150)
	flags.EnablePercent("under", -5)

	snap := flags.Snapshot()
	assert.Equal(t, 100, snap["over"].RolloutPercent)
	assert.Equal(t, 0, snap["under"].RolloutPercent)
}

func TestFlagSet_BucketsDecorrelatedAcrossFlags(t *testing.T) {
	flags := NewFlagSet()
	flags.EnablePercent("flag_a", 50)
	flags.EnablePercent("flag_b", 50)

	same := 0
	const subjects = 200
	for i := 0; i < subjects; i++ {
		subject := fmt.Sprintf("user-%d", i)
		if flags.EnabledFor("flag_a", subject) == flags.EnabledFor("flag_b", subject) {
			same++
		}
	}
	// Identical bucketing across flags would make these equal for every
	// subject; independent hashing keeps them apart for a healthy share.
	assert.Less(t, same, subjects)
}
