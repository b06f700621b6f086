package achievements

import (
	"fmt"
	"time"

	"github.com/stridept/stridept-backend/internal/stats"
)

// AchieveType selects which lifetime total an achievement threshold is
// compared against.
type AchieveType string

const (
	AchieveDistance AchieveType = "distance"
	AchieveWeight   AchieveType = "weight"
	AchieveTime     AchieveType = "time"
)

func ParseAchieveType(s string) (AchieveType, error) {
	switch AchieveType(s) {
	case AchieveDistance, AchieveWeight, AchieveTime:
		return AchieveType(s), nil
	default:
		return "", fmt.Errorf("invalid achievement type: %s", s)
	}
}

// TargetUnits returns the unit literal for the achievement type.
func (t AchieveType) TargetUnits() string {
	switch t {
	case AchieveDistance:
		return "steps"
	case AchieveWeight:
		return "lbs"
	case AchieveTime:
		return "seconds"
	}
	return ""
}

// Achievement is one entry of the global achievement library. Unlocked
// when the matching lifetime total reaches TargetValue.
type Achievement struct {
	AchieveID   string      `json:"achieveId"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	AchieveType AchieveType `json:"achieveType"`
	TargetValue int         `json:"targetValue"`
	TargetUnits string      `json:"targetUnits,omitempty"`
}

func (a Achievement) total(userStats *stats.UserStats) int {
	switch a.AchieveType {
	case AchieveDistance:
		return userStats.TotalDistance
	case AchieveWeight:
		return userStats.TotalWeight
	case AchieveTime:
		return userStats.TotalTime
	}
	return 0
}

// Check evaluates the library against the user's lifetime totals and flips
// unlock flags in place. Already unlocked achievements are never touched,
// so an unlock can never be reverted. Library entries the user has not
// seen yet are initialized as locked. Returns whether anything changed and
// the ids that unlocked just now.
func Check(userStats *stats.UserStats, library []Achievement, now time.Time) (changed bool, newlyUnlocked []string) {
	if userStats.Achievements == nil {
		userStats.Achievements = map[string]stats.AchievementState{}
	}

	for _, achievement := range library {
		state, seen := userStats.Achievements[achievement.AchieveID]
		if seen && state.Unlocked {
			continue
		}

		if achievement.total(userStats) >= achievement.TargetValue {
			unlockedAt := now
			userStats.Achievements[achievement.AchieveID] = stats.AchievementState{
				Unlocked:   true,
				UnlockedAt: &unlockedAt,
			}
			newlyUnlocked = append(newlyUnlocked, achievement.AchieveID)
			changed = true
			continue
		}

		if !seen {
			userStats.Achievements[achievement.AchieveID] = stats.AchievementState{}
			changed = true
		}
	}

	return changed, newlyUnlocked
}
