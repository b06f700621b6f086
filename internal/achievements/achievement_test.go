package achievements_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridept/stridept-backend/internal/achievements"
	"github.com/stridept/stridept-backend/internal/stats"
)

var now = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func testLibrary() []achievements.Achievement {
	return []achievements.Achievement{
		{AchieveID: "first-steps", AchieveType: achievements.AchieveDistance, TargetValue: 30, TargetUnits: "steps"},
		{AchieveID: "iron-start", AchieveType: achievements.AchieveWeight, TargetValue: 1000, TargetUnits: "lbs"},
		{AchieveID: "hold-it", AchieveType: achievements.AchieveTime, TargetValue: 600, TargetUnits: "seconds"},
	}
}

func TestParseAchieveType(t *testing.T) {
	for _, valid := range []string{"distance", "weight", "time"} {
		parsed, err := achievements.ParseAchieveType(valid)
		require.NoError(t, err)
		assert.Equal(t, valid, string(parsed))
	}

	_, err := achievements.ParseAchieveType("reps")
	assert.Error(t, err)
}

func TestTargetUnits(t *testing.T) {
	assert.Equal(t, "steps", achievements.AchieveDistance.TargetUnits())
	assert.Equal(t, "lbs", achievements.AchieveWeight.TargetUnits())
	assert.Equal(t, "seconds", achievements.AchieveTime.TargetUnits())
}

func TestCheck_UnlocksWhenTotalReachesTarget(t *testing.T) {
	userStats := stats.New(now)
	userStats.TotalDistance = 30

	changed, unlocked := achievements.Check(&userStats, testLibrary(), now)

	require.True(t, changed)
	assert.Equal(t, []string{"first-steps"}, unlocked)

	state := userStats.Achievements["first-steps"]
	assert.True(t, state.Unlocked)
	require.NotNil(t, state.UnlockedAt)
	assert.Equal(t, now, *state.UnlockedAt)
}

func TestCheck_InitializesUnseenAsLocked(t *testing.T) {
	userStats := stats.New(now)

	changed, unlocked := achievements.Check(&userStats, testLibrary(), now)

	require.True(t, changed)
	assert.Empty(t, unlocked)
	require.Len(t, userStats.Achievements, 3)
	for _, state := range userStats.Achievements {
		assert.False(t, state.Unlocked)
		assert.Nil(t, state.UnlockedAt)
	}
}

func TestCheck_UnlockIsNeverReverted(t *testing.T) {
	userStats := stats.New(now)
	userStats.TotalWeight = 1000

	_, unlocked := achievements.Check(&userStats, testLibrary(), now)
	require.Equal(t, []string{"iron-start"}, unlocked)
	unlockedAt := *userStats.Achievements["iron-start"].UnlockedAt

	// totals can only grow in practice, but even if they went back down
	// the unlock must stand, with its original timestamp
	userStats.TotalWeight = 0
	later := now.Add(24 * time.Hour)
	changed, unlocked := achievements.Check(&userStats, testLibrary(), later)

	assert.False(t, changed)
	assert.Empty(t, unlocked)
	assert.True(t, userStats.Achievements["iron-start"].Unlocked)
	assert.Equal(t, unlockedAt, *userStats.Achievements["iron-start"].UnlockedAt)
}

func TestCheck_SecondPassOverSameTotalsIsNoOp(t *testing.T) {
	userStats := stats.New(now)
	userStats.TotalTime = 700

	changed, _ := achievements.Check(&userStats, testLibrary(), now)
	require.True(t, changed)

	changed, unlocked := achievements.Check(&userStats, testLibrary(), now.Add(time.Hour))
	assert.False(t, changed)
	assert.Empty(t, unlocked)
}

func TestCheck_MultipleUnlocksAtOnce(t *testing.T) {
	userStats := stats.New(now)
	userStats.TotalDistance = 50
	userStats.TotalWeight = 2500
	userStats.TotalTime = 10

	changed, unlocked := achievements.Check(&userStats, testLibrary(), now)

	require.True(t, changed)
	assert.ElementsMatch(t, []string{"first-steps", "iron-start"}, unlocked)
	assert.False(t, userStats.Achievements["hold-it"].Unlocked)
}

func TestCheck_NilAchievementsMap(t *testing.T) {
	userStats := &stats.UserStats{}

	changed, _ := achievements.Check(userStats, testLibrary(), now)

	require.True(t, changed)
	require.NotNil(t, userStats.Achievements)
	assert.Len(t, userStats.Achievements, 3)
}
