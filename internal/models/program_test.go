package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetentionProgram_SchedulingOrder(t *testing.T) {
	program := RetentionProgram{
		Enabled: true,
		Steps: []ProgramStep{
			{ID: "a", StepOrder: 1, OffsetDays: 60, Enabled: true},
			{ID: "b", StepOrder: 2, OffsetDays: 30, Enabled: true},
			{ID: "c", StepOrder: 3, OffsetDays: 14, Enabled: false},
			{ID: "d", StepOrder: 0, OffsetDays: 60, Enabled: true},
		},
	}

	steps := program.SchedulingOrder()
	require.Len(t, steps, 3)
	assert.Equal(t, "b", steps[0].ID)
	assert.Equal(t, "d", steps[1].ID, "equal offsets fall back to step_order")
	assert.Equal(t, "a", steps[2].ID)

	// the program itself is untouched
	assert.Equal(t, "a", program.Steps[0].ID)
}

func TestRetentionProgram_IsSchedulable(t *testing.T) {
	enabledStep := ProgramStep{ID: "s1", Enabled: true}
	disabledStep := ProgramStep{ID: "s2", Enabled: false}

	assert.True(t, (&RetentionProgram{Enabled: true, Steps: []ProgramStep{disabledStep, enabledStep}}).IsSchedulable())
	assert.False(t, (&RetentionProgram{Enabled: true, Steps: []ProgramStep{disabledStep}}).IsSchedulable())
	assert.False(t, (&RetentionProgram{Enabled: true}).IsSchedulable())
	assert.False(t, (&RetentionProgram{Enabled: false, Steps: []ProgramStep{enabledStep}}).IsSchedulable())
}
