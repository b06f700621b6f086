package stats

import (
	"math"
	"time"

	"github.com/stridept/stridept-backend/internal/exercises"
	"github.com/stridept/stridept-backend/internal/program"
)

// WeeklyProgress is the sliding week window of a patient's stats. The week
// starts on Sunday at local midnight and DaysCompleted is capped at
// MaxDaysPerWeek.
type WeeklyProgress struct {
	WeekStartDate      time.Time `json:"weekStartDate"`
	DaysCompleted      int       `json:"daysCompleted"`
	ExercisesCompleted int       `json:"exercisesCompleted"`
}

// StreakEntry is one day of the streak history log, ordered by date.
type StreakEntry struct {
	Date      time.Time `json:"date"`
	Completed bool      `json:"completed"`
}

// AchievementState is the per-user unlock state of one achievement.
type AchievementState struct {
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// UserStats is the cumulative stats record embedded in every user document.
// It is mutated only through the functions of this package.
type UserStats struct {
	CurrentStreak     int             `json:"currentStreak"`
	LongestStreak     int             `json:"longestStreak"`
	LastCompletedDate *time.Time      `json:"lastCompletedDate,omitempty"`
	WeeklyProgress    *WeeklyProgress `json:"weeklyProgress,omitempty"`

	CompletedExercises int `json:"completedExercises"`
	CompletedPrograms  int `json:"completedPrograms"`
	TotalSets          int `json:"totalSets"`
	TotalReps          int `json:"totalReps"`
	TotalWeight        int `json:"totalWeight"`
	TotalDistance      int `json:"totalDistance"`
	TotalTime          int `json:"totalTime"`

	StreakHistory []StreakEntry               `json:"streakHistory"`
	Achievements  map[string]AchievementState `json:"achievements"`
}

// MaxDaysPerWeek is the ceiling for WeeklyProgress.DaysCompleted. Five
// completed days count as a full week towards the streak.
const MaxDaysPerWeek = 5

// New returns a zeroed stats record with the weekly window set to the
// week of now.
func New(now time.Time) UserStats {
	return UserStats{
		WeeklyProgress: &WeeklyProgress{
			WeekStartDate: StartOfWeek(now),
		},
		StreakHistory: []StreakEntry{},
		Achievements:  map[string]AchievementState{},
	}
}

// StartOfWeek returns Sunday local midnight of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	sunday := t.AddDate(0, 0, -int(t.Weekday()))
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EnsureWeeklyProgress initializes the weekly window for records that
// predate it, so every read sees a window for the current week.
func (s *UserStats) EnsureWeeklyProgress(now time.Time) {
	if s.WeeklyProgress == nil {
		s.WeeklyProgress = &WeeklyProgress{
			WeekStartDate: StartOfWeek(now),
		}
	}
}

// HasCompletedOn reports whether the streak history holds an entry for the
// given calendar day.
func (s *UserStats) HasCompletedOn(day time.Time) bool {
	for _, entry := range s.StreakHistory {
		if sameDay(entry.Date, day) {
			return true
		}
	}
	return false
}

// RecordCompletion folds a single exercise completion into the lifetime
// totals. Targets come from the assigned exercise unless the patient
// adjusted them for this session; a missing target counts as zero.
func (s *UserStats) RecordCompletion(ex program.AssignedExercise, adjusted *program.AdjustedValues, now time.Time) {
	s.EnsureWeeklyProgress(now)

	sets := pick(ex.Sets, adjusted, func(a *program.AdjustedValues) *int { return a.Sets })
	reps := pick(ex.Reps, adjusted, func(a *program.AdjustedValues) *int { return a.Reps })
	steps := pick(ex.Steps, adjusted, func(a *program.AdjustedValues) *int { return a.Steps })
	seconds := pick(ex.Seconds, adjusted, func(a *program.AdjustedValues) *int { return a.Seconds })
	weight := pick(ex.Weight, adjusted, func(a *program.AdjustedValues) *int { return a.Weight })

	switch ex.ExerciseType {
	case exercises.TypeDistance:
		s.TotalSets += sets
		s.TotalDistance += sets * steps
	case exercises.TypeWeight:
		s.TotalSets += sets
		s.TotalReps += sets * reps
		s.TotalWeight += sets * reps * weight
	case exercises.TypeTime:
		s.TotalTime += reps * seconds
	}

	s.CompletedExercises++
	s.WeeklyProgress.ExercisesCompleted++
}

func pick(assigned int, adjusted *program.AdjustedValues, field func(*program.AdjustedValues) *int) int {
	if adjusted != nil {
		if v := field(adjusted); v != nil {
			return *v
		}
	}
	return assigned
}

// RecordProgramCompletion counts a fully completed program. Guarded by the
// streak history so a second call on the same day changes nothing.
func (s *UserStats) RecordProgramCompletion(today time.Time) {
	if s.HasCompletedOn(today) {
		return
	}
	s.CompletedPrograms++
	s.UpdateStreakOnCompletion(today)
}

// UpdateStreakOnCompletion logs today as a completed day. The weekly
// DaysCompleted counter only moves when today falls within the stored
// week window, and never past MaxDaysPerWeek.
func (s *UserStats) UpdateStreakOnCompletion(today time.Time) {
	s.EnsureWeeklyProgress(today)
	if s.HasCompletedOn(today) {
		return
	}

	s.StreakHistory = append(s.StreakHistory, StreakEntry{Date: today, Completed: true})
	completedAt := today
	s.LastCompletedDate = &completedAt

	if StartOfWeek(today).Equal(StartOfWeek(s.WeeklyProgress.WeekStartDate)) {
		if s.WeeklyProgress.DaysCompleted < MaxDaysPerWeek {
			s.WeeklyProgress.DaysCompleted++
		}
	}
}

// ResetWeeklyProgress rolls the weekly window over when today belongs to a
// newer week than the stored one. A finished week of at least
// MaxDaysPerWeek completed days extends the streak, anything less breaks
// it.
func (s *UserStats) ResetWeeklyProgress(today time.Time) {
	s.EnsureWeeklyProgress(today)

	currentWeekStart := StartOfWeek(today)
	if currentWeekStart.Equal(StartOfWeek(s.WeeklyProgress.WeekStartDate)) {
		return
	}

	if s.WeeklyProgress.DaysCompleted >= MaxDaysPerWeek {
		s.CurrentStreak++
		if s.CurrentStreak > s.LongestStreak {
			s.LongestStreak = s.CurrentStreak
		}
	} else {
		s.CurrentStreak = 0
	}

	s.WeeklyProgress = &WeeklyProgress{
		WeekStartDate: currentWeekStart,
	}
}

// CalculateStreak counts consecutive completed days walking the history
// backward from the most recent entry, stopping at the first gap of more
// than one calendar day relative to today.
func CalculateStreak(history []StreakEntry, today time.Time) int {
	streak := 0
	reference := startOfDay(today)

	for i := len(history) - 1; i >= 0; i-- {
		entryDay := startOfDay(history[i].Date)
		gapDays := int(math.Round(reference.Sub(entryDay).Hours() / 24))
		if gapDays > 1 {
			break
		}
		if history[i].Completed {
			streak++
		}
		reference = entryDay
	}

	return streak
}
