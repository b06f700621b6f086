package goals

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stridept/stridept-backend/internal/store"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
)

var ErrGoalNotFound = errors.New("goal not found")

const libraryCollection = "goals"

func userCollection(userID string) string {
	return fmt.Sprintf("users/%s/goals", userID)
}

type Repo struct {
	store store.Client
}

func NewRepo(storeClient store.Client) *Repo {
	return &Repo{store: storeClient}
}

func (r *Repo) Library(ctx context.Context) ([]Goal, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "goalsRepo.library")
	defer span.End()

	return r.list(ctx, libraryCollection)
}

// AssignToUser copies library goals the user does not have yet into the
// user's own goal collection. Re-running is safe, already assigned goals
// are left untouched. Returns the ids assigned by this run.
func (r *Repo) AssignToUser(ctx context.Context, userID string) ([]string, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "goalsRepo.assignToUser")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	library, err := r.Library(ctx)
	if err != nil {
		return nil, err
	}

	existing, err := r.list(ctx, userCollection(userID))
	if err != nil {
		return nil, err
	}
	existingIDs := make(map[string]struct{}, len(existing))
	for _, goal := range existing {
		existingIDs[goal.GoalID] = struct{}{}
	}

	var assigned []string
	for _, goal := range library {
		if _, has := existingIDs[goal.GoalID]; has {
			continue
		}

		goal.Unlocked = false
		doc, err := store.ToDocument(goal)
		if err != nil {
			return nil, fmt.Errorf("encode goal %s: %w", goal.GoalID, err)
		}
		if err := r.store.Set(ctx, userCollection(userID), goal.GoalID, doc, false); err != nil {
			return nil, fmt.Errorf("assign goal %s: %w", goal.GoalID, err)
		}
		assigned = append(assigned, goal.GoalID)
	}

	return assigned, nil
}

// UserGoals lists the user's goals, optionally narrowed to one recovery
// month. Month zero means all months.
func (r *Repo) UserGoals(ctx context.Context, userID string, month int) ([]Goal, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "goalsRepo.userGoals")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var filters []store.Filter
	if month > 0 {
		filters = append(filters, store.Filter{Field: "month", Value: month})
	}

	userGoals, err := r.list(ctx, userCollection(userID), filters...)
	if err != nil {
		return nil, err
	}

	return userGoals, nil
}

// SetLockStatus flips the unlocked flag on one of the user's goals.
func (r *Repo) SetLockStatus(ctx context.Context, userID, goalID string, unlocked bool) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "goalsRepo.setLockStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("goal.id", goalID),
	)

	err := r.store.Update(ctx, userCollection(userID), goalID, store.Document{
		"unlocked": unlocked,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrGoalNotFound
		}
		return fmt.Errorf("update goal: %w", err)
	}

	return nil
}

func (r *Repo) list(ctx context.Context, collection string, filters ...store.Filter) ([]Goal, error) {
	docs, err := r.store.Query(ctx, collection, filters...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}

	all := make([]Goal, 0, len(docs))
	for _, doc := range docs {
		var goal Goal
		if err := store.FromDocument(doc, &goal); err != nil {
			return nil, fmt.Errorf("decode goal: %w", err)
		}
		all = append(all, goal)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Month != all[j].Month {
			return all[i].Month < all[j].Month
		}
		return all[i].GoalID < all[j].GoalID
	})

	return all, nil
}
