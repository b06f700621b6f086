package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stridept/stridept-backend/internal/program"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
)

const (
	progressCheckKeyPrefix = "progress-check::"
	progressCheckTTL       = 48 * time.Hour
	dateLayout             = "2006-01-02"
)

type userStatsStore interface {
	Stats(ctx context.Context, userID string) (*UserStats, error)
	SaveStats(ctx context.Context, userID string, userStats *UserStats) error
}

type programStore interface {
	Current(ctx context.Context, userID string) (*program.Program, error)
	Save(ctx context.Context, userID string, p *program.Program) error
}

// Service is the read side of the stats domain. Every read first runs the
// lazy daily and weekly reset for the user, so clients always see state
// for the current day regardless of when the user was last active.
type Service struct {
	users    userStatsStore
	programs programStore
	rdb      *redis.Client
	now      func() time.Time
}

func NewService(users userStatsStore, programs programStore, rdb *redis.Client) *Service {
	return &Service{
		users:    users,
		programs: programs,
		rdb:      rdb,
		now:      time.Now,
	}
}

// UserStats returns the user's stats record after applying any pending
// daily or weekly reset.
func (s *Service) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stats.userStats")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := s.CheckAndResetProgress(ctx, userID); err != nil {
		return nil, err
	}

	userStats, err := s.users.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	userStats.EnsureWeeklyProgress(s.now())

	return userStats, nil
}

// WeeklySummary is the weekly progress window annotated with what is still
// needed this week, for the progress screen.
type WeeklySummary struct {
	WeekStartDate       time.Time `json:"weekStartDate"`
	DaysCompleted       int       `json:"daysCompleted"`
	ExercisesCompleted  int       `json:"exercisesCompleted"`
	CurrentStreak       int       `json:"currentStreak"`
	DailyStreak         int       `json:"dailyStreak"`
	RemainingDays       int       `json:"remainingDays"`
	DaysNeededForStreak int       `json:"daysNeededForStreak"`
}

// WeeklyProgress returns the current week window together with the number
// of days left in the week and the completed days still needed to extend
// the streak.
func (s *Service) WeeklyProgress(ctx context.Context, userID string) (*WeeklySummary, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stats.weeklyProgress")
	defer span.End()

	userStats, err := s.UserStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	daysNeeded := MaxDaysPerWeek - userStats.WeeklyProgress.DaysCompleted
	if daysNeeded < 0 {
		daysNeeded = 0
	}

	return &WeeklySummary{
		WeekStartDate:       userStats.WeeklyProgress.WeekStartDate,
		DaysCompleted:       userStats.WeeklyProgress.DaysCompleted,
		ExercisesCompleted:  userStats.WeeklyProgress.ExercisesCompleted,
		CurrentStreak:       userStats.CurrentStreak,
		DailyStreak:         CalculateStreak(userStats.StreakHistory, now),
		RemainingDays:       7 - int(now.Weekday()),
		DaysNeededForStreak: daysNeeded,
	}, nil
}

// CheckAndResetProgress runs the daily program reset and, when the week
// rolled over, the weekly streak rollover. A per-user marker ensures the
// check runs at most once per user per day.
func (s *Service) CheckAndResetProgress(ctx context.Context, userID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stats.checkAndResetProgress")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	today := s.now()
	todayKey := today.Format(dateLayout)
	markerKey := progressCheckKeyPrefix + userID

	lastChecked, err := s.rdb.Get(ctx, markerKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get progress check marker: %w", err)
	}
	if lastChecked == todayKey {
		return nil
	}

	if err := s.resetDailyProgram(ctx, userID); err != nil {
		return err
	}

	userStats, err := s.users.Stats(ctx, userID)
	if err != nil {
		return err
	}

	before := userStats.WeeklyProgress
	userStats.ResetWeeklyProgress(today)
	if before == nil || !before.WeekStartDate.Equal(userStats.WeeklyProgress.WeekStartDate) {
		if err := s.users.SaveStats(ctx, userID, userStats); err != nil {
			return fmt.Errorf("save stats after weekly reset: %w", err)
		}
		log.Debugf("weekly progress rolled over for user %s", userID)
	}

	if err := s.rdb.Set(ctx, markerKey, todayKey, progressCheckTTL).Err(); err != nil {
		return fmt.Errorf("set progress check marker: %w", err)
	}

	return nil
}

func (s *Service) resetDailyProgram(ctx context.Context, userID string) error {
	p, err := s.programs.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, program.ErrProgramNotFound) {
			return nil
		}
		return err
	}

	p.ResetDaily()
	if err := s.programs.Save(ctx, userID, p); err != nil {
		return fmt.Errorf("save program after daily reset: %w", err)
	}

	return nil
}
