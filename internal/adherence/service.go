package adherence

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stridept/stridept-backend/internal/achievements"
	"github.com/stridept/stridept-backend/internal/exercises"
	"github.com/stridept/stridept-backend/internal/program"
	"github.com/stridept/stridept-backend/internal/stats"
	"github.com/stridept/stridept-backend/internal/telemetry/metrics"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/internal/users"
)

var (
	ErrExerciseNotInProgram = errors.New("exercise not in program")
	ErrEmptyProgram         = errors.New("program has no exercises")
)

// Service drives the daily exercise flow: marking exercises done or
// skipped, deferring them, and folding every completion into the user's
// stats and achievements. Stats and achievement bookkeeping never fails
// the primary action; its errors are logged and swallowed.
type Service struct {
	users        *users.Repo
	programs     *program.Repo
	achievements *achievements.Repo
	library      *exercises.Repo
	stats        *stats.Service
	metrics      *metrics.Manager
	now          func() time.Time
}

func NewService(
	usersRepo *users.Repo,
	programsRepo *program.Repo,
	achievementsRepo *achievements.Repo,
	libraryRepo *exercises.Repo,
	statsService *stats.Service,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		users:        usersRepo,
		programs:     programsRepo,
		achievements: achievementsRepo,
		library:      libraryRepo,
		stats:        statsService,
		metrics:      metricsManager,
		now:          time.Now,
	}
}

// CompletionResult is what a complete or skip returns to the client: the
// updated program plus any achievements that unlocked just now.
type CompletionResult struct {
	Program       *program.Program `json:"program"`
	AllCompleted  bool             `json:"allCompleted"`
	NewlyUnlocked []string         `json:"newlyUnlocked,omitempty"`
}

// CurrentProgram returns today's program, after running any pending daily
// or weekly reset.
func (s *Service) CurrentProgram(ctx context.Context, userID string) (*program.Program, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "adherence.currentProgram")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := s.stats.CheckAndResetProgress(ctx, userID); err != nil {
		return nil, err
	}

	return s.programs.Current(ctx, userID)
}

// CompleteExercise marks an exercise done and updates the user's totals,
// streak and achievements. Completing an exercise that is missing or
// already completed changes nothing.
func (s *Service) CompleteExercise(
	ctx context.Context,
	userID, exerciseID string,
	adjusted *program.AdjustedValues,
) (*CompletionResult, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "adherence.completeExercise")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("exercise.id", exerciseID),
	)

	p, err := s.CurrentProgram(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !p.Complete(exerciseID, adjusted, now) {
		return &CompletionResult{Program: p, AllCompleted: p.IsCompleted()}, nil
	}

	if err := s.programs.Save(ctx, userID, p); err != nil {
		return nil, fmt.Errorf("save program: %w", err)
	}
	s.metrics.CounterCompletedExercises.Inc()

	completed := s.exerciseByID(p, exerciseID)
	newlyUnlocked := s.recordProgress(ctx, userID, p, completed, adjusted, now)

	return &CompletionResult{
		Program:       p,
		AllCompleted:  p.IsCompleted(),
		NewlyUnlocked: newlyUnlocked,
	}, nil
}

// SkipExercise marks an exercise skipped. Skips count towards finishing
// the day's program but add nothing to the lifetime totals.
func (s *Service) SkipExercise(ctx context.Context, userID, exerciseID string) (*CompletionResult, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "adherence.skipExercise")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("exercise.id", exerciseID),
	)

	p, err := s.CurrentProgram(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !p.Skip(exerciseID) {
		return &CompletionResult{Program: p, AllCompleted: p.IsCompleted()}, nil
	}

	if err := s.programs.Save(ctx, userID, p); err != nil {
		return nil, fmt.Errorf("save program: %w", err)
	}
	s.metrics.CounterSkippedExercises.Inc()

	newlyUnlocked := s.recordProgress(ctx, userID, p, nil, nil, now)

	return &CompletionResult{
		Program:       p,
		AllCompleted:  p.IsCompleted(),
		NewlyUnlocked: newlyUnlocked,
	}, nil
}

// DeferExercise pushes an exercise to the end of today's program and
// returns the id of the next exercise to do.
func (s *Service) DeferExercise(ctx context.Context, userID, exerciseID string) (string, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "adherence.deferExercise")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("exercise.id", exerciseID),
	)

	p, err := s.CurrentProgram(ctx, userID)
	if err != nil {
		return "", err
	}

	nextID, moved := p.MoveToEnd(exerciseID)
	if !moved {
		return "", ErrExerciseNotInProgram
	}

	if err := s.programs.Save(ctx, userID, p); err != nil {
		return "", fmt.Errorf("save program: %w", err)
	}

	return nextID, nil
}

// ReorderProgram rewrites the program order to the given exercise ids.
func (s *Service) ReorderProgram(ctx context.Context, userID string, orderedIDs []string) (*program.Program, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "adherence.reorderProgram")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	p, err := s.programs.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	p.Reorder(orderedIDs)
	p.UpdatedAt = s.now()

	if err := s.programs.Save(ctx, userID, p); err != nil {
		return nil, fmt.Errorf("save program: %w", err)
	}

	return p, nil
}

// AssignmentItem is one exercise of a new program assignment, identified
// by library id with therapist-chosen targets.
type AssignmentItem struct {
	ExerciseID string `json:"exerciseId"`
	Sets       int    `json:"sets,omitempty"`
	Reps       int    `json:"reps,omitempty"`
	Steps      int    `json:"steps,omitempty"`
	Seconds    int    `json:"seconds,omitempty"`
	Weight     int    `json:"weight,omitempty"`
}

// AssignProgram replaces a patient's current program with exercises from
// the library, in the given order. An estimated session length in minutes
// can come along for the patient-facing summary.
func (s *Service) AssignProgram(ctx context.Context, patientID string, items []AssignmentItem, estimatedMinutes int) (*program.Program, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "adherence.assignProgram")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", patientID))

	if len(items) == 0 {
		return nil, ErrEmptyProgram
	}

	if _, err := s.users.Get(ctx, patientID); err != nil {
		return nil, err
	}

	now := s.now()
	assigned := make([]program.AssignedExercise, 0, len(items))
	for i, item := range items {
		libraryExercise, err := s.library.Get(ctx, item.ExerciseID)
		if err != nil {
			return nil, err
		}

		assigned = append(assigned, program.AssignedExercise{
			ExerciseID:   libraryExercise.ExerciseID,
			ExerciseName: libraryExercise.ExerciseName,
			ExerciseType: libraryExercise.ExerciseType,
			Equipment:    libraryExercise.Equipment,
			Order:        i,
			Sets:         orDefault(item.Sets, libraryExercise.DefaultSets),
			Reps:         orDefault(item.Reps, libraryExercise.DefaultReps),
			Steps:        orDefault(item.Steps, libraryExercise.DefaultSteps),
			Seconds:      orDefault(item.Seconds, libraryExercise.DefaultSeconds),
			Weight:       orDefault(item.Weight, libraryExercise.DefaultWeight),
		})
	}

	p := &program.Program{
		Exercises:        assigned,
		EstimatedMinutes: estimatedMinutes,
		AssignedAt:       now,
		UpdatedAt:        now,
	}
	if err := s.programs.Save(ctx, patientID, p); err != nil {
		return nil, fmt.Errorf("save program: %w", err)
	}

	return p, nil
}

// recordProgress folds a completion or skip into stats and achievements.
// The program change is already persisted at this point, so failures here
// only get logged.
func (s *Service) recordProgress(
	ctx context.Context,
	userID string,
	p *program.Program,
	completed *program.AssignedExercise,
	adjusted *program.AdjustedValues,
	now time.Time,
) (newlyUnlocked []string) {
	userStats, err := s.users.Stats(ctx, userID)
	if err != nil {
		log.Errorf("record progress for user %s, get stats: %s", userID, err)
		return nil
	}

	if completed != nil {
		userStats.RecordCompletion(*completed, adjusted, now)
	}

	programDone := p.IsCompleted()
	if programDone {
		userStats.RecordProgramCompletion(now)
		s.metrics.CounterCompletedPrograms.Inc()
	}

	library, err := s.achievements.Library(ctx)
	if err != nil {
		log.Errorf("record progress for user %s, get achievement library: %s", userID, err)
		library = nil
	}
	changed, unlocked := achievements.Check(userStats, library, now)
	if changed {
		s.metrics.CounterAchievementsUnlocked.Add(float64(len(unlocked)))
	}

	// a skip that finished nothing changes neither totals nor achievements,
	// no point writing the stats back then
	if completed == nil && !programDone && !changed {
		return nil
	}

	if err := s.users.SaveStats(ctx, userID, userStats); err != nil {
		log.Errorf("record progress for user %s, save stats: %s", userID, err)
		return nil
	}

	return unlocked
}

func (s *Service) exerciseByID(p *program.Program, exerciseID string) *program.AssignedExercise {
	for i := range p.Exercises {
		if p.Exercises[i].ExerciseID == exerciseID {
			return &p.Exercises[i]
		}
	}
	return nil
}

func orDefault(val, fallback int) int {
	if val == 0 {
		return fallback
	}
	return val
}
