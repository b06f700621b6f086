package exercises_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridept/stridept-backend/internal/exercises"
	"github.com/stridept/stridept-backend/internal/store"
)

func TestParseType(t *testing.T) {
	for _, valid := range []string{"distance", "weight", "time"} {
		parsed, err := exercises.ParseType(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(parsed))
	}

	_, err := exercises.ParseType("cardio")
	assert.Error(t, err)
}

func TestFormatRequirements(t *testing.T) {
	distance := exercises.Exercise{
		ExerciseType: exercises.TypeDistance,
		DefaultSets:  3, DefaultSteps: 20,
	}
	assert.Equal(t, "3 sets of 20 steps", distance.FormatRequirements())

	weight := exercises.Exercise{
		ExerciseType: exercises.TypeWeight,
		DefaultSets:  4, DefaultReps: 12, DefaultWeight: 25,
	}
	assert.Equal(t, "4 sets of 12 reps at 25lbs", weight.FormatRequirements())

	hold := exercises.Exercise{
		ExerciseType: exercises.TypeTime,
		DefaultReps:  4, DefaultSeconds: 30,
	}
	assert.Equal(t, "1 sets of 4 reps, holding for 30 seconds each", hold.FormatRequirements())

	// unset targets fall back to sensible defaults
	bare := exercises.Exercise{ExerciseType: exercises.TypeDistance}
	assert.Equal(t, "3 sets of 10 steps", bare.FormatRequirements())
}

func TestRepo(t *testing.T) {
	repo := exercises.NewRepo(store.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, exercises.Exercise{
		ExerciseID:   "heel-walks",
		ExerciseName: "Heel walks",
		ExerciseType: exercises.TypeDistance,
		DefaultSets:  3, DefaultSteps: 10,
	}))
	require.NoError(t, repo.Add(ctx, exercises.Exercise{
		ExerciseID:   "squats",
		ExerciseName: "Squats",
		ExerciseType: exercises.TypeWeight,
		Equipment:    "dumbbells",
		DefaultSets:  3, DefaultReps: 10, DefaultWeight: 25,
	}))

	found, err := repo.Get(ctx, "squats")
	require.NoError(t, err)
	assert.Equal(t, "Squats", found.ExerciseName)
	assert.Equal(t, "dumbbells", found.Equipment)

	_, err = repo.Get(ctx, "bench-press")
	assert.ErrorIs(t, err, exercises.ErrExerciseNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	weighted, err := repo.ByType(ctx, exercises.TypeWeight)
	require.NoError(t, err)
	require.Len(t, weighted, 1)
	assert.Equal(t, "squats", weighted[0].ExerciseID)

	timed, err := repo.ByType(ctx, exercises.TypeTime)
	require.NoError(t, err)
	assert.Empty(t, timed)
}

func TestRepo_AddInvalidType(t *testing.T) {
	repo := exercises.NewRepo(store.NewMemoryStore())

	err := repo.Add(context.Background(), exercises.Exercise{
		ExerciseID:   "rowing",
		ExerciseType: "cardio",
	})
	assert.Error(t, err)
}
