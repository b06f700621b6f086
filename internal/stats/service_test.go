package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridept/stridept-backend/internal/exercises"
	"github.com/stridept/stridept-backend/internal/program"
)

// wednesday of the week starting sunday 2025-03-09
var serviceNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

type fakeUserStatsStore struct {
	stats map[string]*UserStats
	saves int
}

func (f *fakeUserStatsStore) Stats(_ context.Context, userID string) (*UserStats, error) {
	if userStats, ok := f.stats[userID]; ok {
		return userStats, nil
	}
	fresh := New(serviceNow)
	f.stats[userID] = &fresh
	return &fresh, nil
}

func (f *fakeUserStatsStore) SaveStats(_ context.Context, userID string, userStats *UserStats) error {
	f.stats[userID] = userStats
	f.saves++
	return nil
}

type fakeProgramStore struct {
	programs map[string]*program.Program
	saves    int
}

func (f *fakeProgramStore) Current(_ context.Context, userID string) (*program.Program, error) {
	p, ok := f.programs[userID]
	if !ok {
		return nil, program.ErrProgramNotFound
	}
	return p, nil
}

func (f *fakeProgramStore) Save(_ context.Context, userID string, p *program.Program) error {
	f.programs[userID] = p
	f.saves++
	return nil
}

func newTestService() (*Service, *fakeUserStatsStore, *fakeProgramStore, redismock.ClientMock) {
	usersStore := &fakeUserStatsStore{stats: map[string]*UserStats{}}
	programsStore := &fakeProgramStore{programs: map[string]*program.Program{}}
	rdb, redisMock := redismock.NewClientMock()

	service := NewService(usersStore, programsStore, rdb)
	service.now = func() time.Time { return serviceNow }

	return service, usersStore, programsStore, redisMock
}

func completedProgram() *program.Program {
	completedAt := serviceNow.Add(-20 * time.Hour)
	return &program.Program{
		Exercises: []program.AssignedExercise{
			{
				ExerciseID: "heel-walks", ExerciseType: exercises.TypeDistance,
				Sets: 3, Steps: 10,
				Completed: true, CompletedAt: &completedAt,
			},
			{
				ExerciseID: "squats", ExerciseType: exercises.TypeWeight,
				Sets: 3, Reps: 10, Weight: 25,
				Skipped: true,
			},
		},
	}
}

func TestCheckAndResetProgress_AlreadyCheckedToday(t *testing.T) {
	service, usersStore, programsStore, redisMock := newTestService()
	programsStore.programs["p1"] = completedProgram()

	redisMock.ExpectGet("progress-check::p1").SetVal("2025-03-12")

	require.NoError(t, service.CheckAndResetProgress(context.Background(), "p1"))

	assert.True(t, programsStore.programs["p1"].Exercises[0].Completed)
	assert.Zero(t, programsStore.saves)
	assert.Zero(t, usersStore.saves)
	require.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCheckAndResetProgress_ResetsDailyProgram(t *testing.T) {
	service, usersStore, programsStore, redisMock := newTestService()
	programsStore.programs["p1"] = completedProgram()

	weekStats := New(serviceNow)
	weekStats.WeeklyProgress.DaysCompleted = 2
	usersStore.stats["p1"] = &weekStats

	redisMock.ExpectGet("progress-check::p1").RedisNil()
	redisMock.ExpectSet("progress-check::p1", "2025-03-12", 48*time.Hour).SetVal("OK")

	require.NoError(t, service.CheckAndResetProgress(context.Background(), "p1"))

	for _, ex := range programsStore.programs["p1"].Exercises {
		assert.False(t, ex.Completed)
		assert.False(t, ex.Skipped)
		assert.Nil(t, ex.CompletedAt)
	}
	assert.Equal(t, 1, programsStore.saves)

	// same week, so the weekly window and streak are untouched
	assert.Equal(t, 2, weekStats.WeeklyProgress.DaysCompleted)
	assert.Zero(t, usersStore.saves)
	require.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCheckAndResetProgress_WeeklyRollover(t *testing.T) {
	service, usersStore, programsStore, redisMock := newTestService()
	programsStore.programs["p1"] = completedProgram()

	lastWeek := serviceNow.AddDate(0, 0, -7)
	oldStats := New(lastWeek)
	oldStats.WeeklyProgress.DaysCompleted = 5
	oldStats.CurrentStreak = 2
	oldStats.LongestStreak = 2
	usersStore.stats["p1"] = &oldStats

	redisMock.ExpectGet("progress-check::p1").RedisNil()
	redisMock.ExpectSet("progress-check::p1", "2025-03-12", 48*time.Hour).SetVal("OK")

	require.NoError(t, service.CheckAndResetProgress(context.Background(), "p1"))

	assert.Equal(t, 3, oldStats.CurrentStreak)
	assert.Equal(t, 3, oldStats.LongestStreak)
	assert.Equal(t, StartOfWeek(serviceNow), oldStats.WeeklyProgress.WeekStartDate)
	assert.Zero(t, oldStats.WeeklyProgress.DaysCompleted)
	assert.Equal(t, 1, usersStore.saves)
	require.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCheckAndResetProgress_ShortWeekBreaksStreak(t *testing.T) {
	service, usersStore, _, redisMock := newTestService()

	lastWeek := serviceNow.AddDate(0, 0, -7)
	oldStats := New(lastWeek)
	oldStats.WeeklyProgress.DaysCompleted = 3
	oldStats.CurrentStreak = 4
	oldStats.LongestStreak = 6
	usersStore.stats["p1"] = &oldStats

	redisMock.ExpectGet("progress-check::p1").RedisNil()
	redisMock.ExpectSet("progress-check::p1", "2025-03-12", 48*time.Hour).SetVal("OK")

	require.NoError(t, service.CheckAndResetProgress(context.Background(), "p1"))

	assert.Zero(t, oldStats.CurrentStreak)
	assert.Equal(t, 6, oldStats.LongestStreak)
	require.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCheckAndResetProgress_NoProgramYet(t *testing.T) {
	service, _, programsStore, redisMock := newTestService()

	redisMock.ExpectGet("progress-check::p1").RedisNil()
	redisMock.ExpectSet("progress-check::p1", "2025-03-12", 48*time.Hour).SetVal("OK")

	require.NoError(t, service.CheckAndResetProgress(context.Background(), "p1"))

	assert.Zero(t, programsStore.saves)
	require.NoError(t, redisMock.ExpectationsWereMet())
}

func TestCheckAndResetProgress_MarkerReadFailure(t *testing.T) {
	service, _, _, redisMock := newTestService()

	redisMock.ExpectGet("progress-check::p1").SetErr(errors.New("connection refused"))

	err := service.CheckAndResetProgress(context.Background(), "p1")
	assert.Error(t, err)
}

func TestWeeklyProgress(t *testing.T) {
	service, usersStore, _, redisMock := newTestService()

	weekStats := New(serviceNow)
	weekStats.WeeklyProgress.DaysCompleted = 2
	weekStats.WeeklyProgress.ExercisesCompleted = 9
	weekStats.CurrentStreak = 3
	weekStats.StreakHistory = []StreakEntry{
		{Date: serviceNow.AddDate(0, 0, -1), Completed: true},
		{Date: serviceNow, Completed: true},
	}
	usersStore.stats["p1"] = &weekStats

	redisMock.ExpectGet("progress-check::p1").SetVal("2025-03-12")

	summary, err := service.WeeklyProgress(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, StartOfWeek(serviceNow), summary.WeekStartDate)
	assert.Equal(t, 2, summary.DaysCompleted)
	assert.Equal(t, 9, summary.ExercisesCompleted)
	assert.Equal(t, 3, summary.CurrentStreak)
	assert.Equal(t, 2, summary.DailyStreak)
	// wednesday, four days of the week left
	assert.Equal(t, 4, summary.RemainingDays)
	assert.Equal(t, 3, summary.DaysNeededForStreak)
}

func TestUserStats_InitializesWeeklyWindow(t *testing.T) {
	service, usersStore, _, redisMock := newTestService()

	usersStore.stats["p1"] = &UserStats{TotalSets: 12}

	redisMock.ExpectGet("progress-check::p1").SetVal("2025-03-12")

	userStats, err := service.UserStats(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, 12, userStats.TotalSets)
	require.NotNil(t, userStats.WeeklyProgress)
	assert.Equal(t, StartOfWeek(serviceNow), userStats.WeeklyProgress.WeekStartDate)
}
