package achievements

import (
	"context"
	"fmt"

	"github.com/stridept/stridept-backend/internal/store"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
)

const collection = "achievements"

// Repo reads the global achievement library. The library is reference
// data, small enough for a full scan on every evaluation.
type Repo struct {
	store store.Client
}

func NewRepo(storeClient store.Client) *Repo {
	return &Repo{store: storeClient}
}

func (r *Repo) Library(ctx context.Context) ([]Achievement, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "achievementsRepo.library")
	defer span.End()

	docs, err := r.store.Query(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}

	library := make([]Achievement, 0, len(docs))
	for _, doc := range docs {
		var achievement Achievement
		if err := store.FromDocument(doc, &achievement); err != nil {
			return nil, fmt.Errorf("decode achievement: %w", err)
		}
		if _, err := ParseAchieveType(string(achievement.AchieveType)); err != nil {
			return nil, fmt.Errorf("achievement %s: %w", achievement.AchieveID, err)
		}
		library = append(library, achievement)
	}

	return library, nil
}

func (r *Repo) Add(ctx context.Context, achievement Achievement) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "achievementsRepo.add")
	defer span.End()

	if achievement.AchieveID == "" {
		return fmt.Errorf("achievement id is required")
	}
	if _, err := ParseAchieveType(string(achievement.AchieveType)); err != nil {
		return err
	}
	if achievement.TargetUnits == "" {
		achievement.TargetUnits = achievement.AchieveType.TargetUnits()
	}

	doc, err := store.ToDocument(achievement)
	if err != nil {
		return fmt.Errorf("encode achievement: %w", err)
	}

	if err := r.store.Set(ctx, collection, achievement.AchieveID, doc, false); err != nil {
		return fmt.Errorf("save achievement: %w", err)
	}

	return nil
}
