package program_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridept/stridept-backend/internal/exercises"
	"github.com/stridept/stridept-backend/internal/program"
)

var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func testProgram() *program.Program {
	return &program.Program{
		Exercises: []program.AssignedExercise{
			{ExerciseID: "squats", ExerciseType: exercises.TypeWeight, Order: 0, Sets: 3, Reps: 10, Weight: 25},
			{ExerciseID: "heel-walks", ExerciseType: exercises.TypeDistance, Order: 1, Sets: 3, Steps: 10},
			{ExerciseID: "wall-sit", ExerciseType: exercises.TypeTime, Order: 2, Reps: 4, Seconds: 30},
		},
		UpdatedAt: now,
	}
}

func TestComplete(t *testing.T) {
	p := testProgram()

	adjusted := &program.AdjustedValues{}
	require.True(t, p.Complete("squats", adjusted, now))

	assert.True(t, p.Exercises[0].Completed)
	require.NotNil(t, p.Exercises[0].CompletedAt)
	assert.Equal(t, now, *p.Exercises[0].CompletedAt)
	assert.Same(t, adjusted, p.Exercises[0].AdjustedValues)
	assert.False(t, p.IsCompleted())
}

func TestComplete_AlreadyCompletedIsNoOp(t *testing.T) {
	p := testProgram()
	require.True(t, p.Complete("squats", nil, now))

	later := now.Add(time.Hour)
	assert.False(t, p.Complete("squats", nil, later))
	assert.Equal(t, now, *p.Exercises[0].CompletedAt)
}

func TestComplete_UnknownExerciseIsNoOp(t *testing.T) {
	p := testProgram()
	assert.False(t, p.Complete("bench-press", nil, now))
	for _, ex := range p.Exercises {
		assert.False(t, ex.Completed)
	}
}

func TestSkip(t *testing.T) {
	p := testProgram()

	require.True(t, p.Skip("wall-sit"))
	assert.True(t, p.Exercises[2].Skipped)

	// skipping twice is a no-op
	assert.False(t, p.Skip("wall-sit"))
	// unknown exercise too
	assert.False(t, p.Skip("bench-press"))
}

func TestIsCompleted(t *testing.T) {
	p := testProgram()
	assert.False(t, p.IsCompleted())

	p.Complete("squats", nil, now)
	p.Complete("heel-walks", nil, now)
	assert.False(t, p.IsCompleted())

	// skipped exercises count towards completion
	p.Skip("wall-sit")
	assert.True(t, p.IsCompleted())

	empty := &program.Program{}
	assert.False(t, empty.IsCompleted())
}

func TestResetDaily(t *testing.T) {
	p := testProgram()
	p.Complete("squats", &program.AdjustedValues{}, now)
	p.Skip("wall-sit")

	p.ResetDaily()

	for _, ex := range p.Exercises {
		assert.False(t, ex.Completed)
		assert.False(t, ex.Skipped)
		assert.Nil(t, ex.CompletedAt)
		assert.Nil(t, ex.AdjustedValues)
	}
}

func TestReorder(t *testing.T) {
	p := testProgram()

	p.Reorder([]string{"wall-sit", "squats", "heel-walks"})

	require.Len(t, p.Exercises, 3)
	assert.Equal(t, "wall-sit", p.Exercises[0].ExerciseID)
	assert.Equal(t, "squats", p.Exercises[1].ExerciseID)
	assert.Equal(t, "heel-walks", p.Exercises[2].ExerciseID)
	for i, ex := range p.Exercises {
		assert.Equal(t, i, ex.Order)
	}
}

func TestReorder_DropsExercisesNotInOrder(t *testing.T) {
	p := testProgram()

	p.Reorder([]string{"wall-sit", "squats"})

	require.Len(t, p.Exercises, 2)
	assert.Equal(t, "wall-sit", p.Exercises[0].ExerciseID)
	assert.Equal(t, "squats", p.Exercises[1].ExerciseID)
}

func TestReorder_IgnoresUnknownIDs(t *testing.T) {
	p := testProgram()

	p.Reorder([]string{"bench-press", "squats", "heel-walks", "wall-sit"})

	require.Len(t, p.Exercises, 3)
	assert.Equal(t, "squats", p.Exercises[0].ExerciseID)
}

func TestMoveToEnd(t *testing.T) {
	p := testProgram()

	nextID, moved := p.MoveToEnd("squats")
	require.True(t, moved)

	// squats went to the tail, the exercise that took its slot is next
	assert.Equal(t, "heel-walks", nextID)
	assert.Equal(t, "heel-walks", p.Exercises[0].ExerciseID)
	assert.Equal(t, "wall-sit", p.Exercises[1].ExerciseID)
	assert.Equal(t, "squats", p.Exercises[2].ExerciseID)
	for i, ex := range p.Exercises {
		assert.Equal(t, i, ex.Order)
	}
}

func TestMoveToEnd_WrapsAroundDoneExercises(t *testing.T) {
	p := testProgram()
	p.Complete("heel-walks", nil, now)
	p.Skip("wall-sit")

	nextID, moved := p.MoveToEnd("squats")
	require.True(t, moved)

	// everything else is done, the moved exercise itself is next again
	assert.Equal(t, "squats", nextID)
}

func TestMoveToEnd_UnknownExercise(t *testing.T) {
	p := testProgram()
	before := make([]program.AssignedExercise, len(p.Exercises))
	copy(before, p.Exercises)

	nextID, moved := p.MoveToEnd("bench-press")
	assert.False(t, moved)
	assert.Empty(t, nextID)
	assert.Equal(t, before, p.Exercises)
}
