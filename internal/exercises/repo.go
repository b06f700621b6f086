package exercises

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stridept/stridept-backend/internal/store"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
)

var ErrExerciseNotFound = errors.New("exercise not found")

const collection = "exercises"

type Repo struct {
	store store.Client
}

func NewRepo(storeClient store.Client) *Repo {
	return &Repo{store: storeClient}
}

func (r *Repo) Get(ctx context.Context, exerciseID string) (*Exercise, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercisesRepo.get")
	defer span.End()
	span.SetAttributes(attribute.String("exercise.id", exerciseID))

	doc, err := r.store.Get(ctx, collection, exerciseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrExerciseNotFound
		}
		return nil, fmt.Errorf("get exercise: %w", err)
	}

	var exercise Exercise
	if err := store.FromDocument(doc, &exercise); err != nil {
		return nil, fmt.Errorf("decode exercise: %w", err)
	}
	exercise.ExerciseID = exerciseID

	return &exercise, nil
}

func (r *Repo) List(ctx context.Context) ([]Exercise, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercisesRepo.list")
	defer span.End()

	docs, err := r.store.Query(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list exercises: %w", err)
	}

	all := make([]Exercise, 0, len(docs))
	for _, doc := range docs {
		var exercise Exercise
		if err := store.FromDocument(doc, &exercise); err != nil {
			return nil, fmt.Errorf("decode exercise: %w", err)
		}
		all = append(all, exercise)
	}

	return all, nil
}

// ByType lists the library exercises of one tracking type.
func (r *Repo) ByType(ctx context.Context, exerciseType Type) ([]Exercise, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercisesRepo.byType")
	defer span.End()
	span.SetAttributes(attribute.String("exercise.type", string(exerciseType)))

	docs, err := r.store.Query(ctx, collection, store.Filter{Field: "exerciseType", Value: string(exerciseType)})
	if err != nil {
		return nil, fmt.Errorf("list exercises by type: %w", err)
	}

	matched := make([]Exercise, 0, len(docs))
	for _, doc := range docs {
		var exercise Exercise
		if err := store.FromDocument(doc, &exercise); err != nil {
			return nil, fmt.Errorf("decode exercise: %w", err)
		}
		matched = append(matched, exercise)
	}

	return matched, nil
}

func (r *Repo) Add(ctx context.Context, exercise Exercise) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "exercisesRepo.add")
	defer span.End()

	if exercise.ExerciseID == "" {
		return errors.New("exercise id is required")
	}
	if _, err := ParseType(string(exercise.ExerciseType)); err != nil {
		return err
	}

	doc, err := store.ToDocument(exercise)
	if err != nil {
		return fmt.Errorf("encode exercise: %w", err)
	}

	if err := r.store.Set(ctx, collection, exercise.ExerciseID, doc, false); err != nil {
		return fmt.Errorf("save exercise: %w", err)
	}

	return nil
}
