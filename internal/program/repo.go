package program

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stridept/stridept-backend/internal/store"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
)

var ErrProgramNotFound = errors.New("program not found")

const currentProgramID = "currentProgram"

func collectionFor(userID string) string {
	return fmt.Sprintf("users/%s/program", userID)
}

// Repo stores each patient's current program as a single document in a
// per-user collection.
type Repo struct {
	store store.Client
}

func NewRepo(storeClient store.Client) *Repo {
	return &Repo{store: storeClient}
}

func (r *Repo) Current(ctx context.Context, userID string) (*Program, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "programRepo.current")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	doc, err := r.store.Get(ctx, collectionFor(userID), currentProgramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProgramNotFound
		}
		return nil, fmt.Errorf("get current program: %w", err)
	}

	var p Program
	if err := store.FromDocument(doc, &p); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}

	return &p, nil
}

func (r *Repo) Save(ctx context.Context, userID string, p *Program) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "programRepo.save")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	doc, err := store.ToDocument(p)
	if err != nil {
		return fmt.Errorf("encode program: %w", err)
	}

	if err := r.store.Set(ctx, collectionFor(userID), currentProgramID, doc, false); err != nil {
		return fmt.Errorf("save program: %w", err)
	}

	return nil
}
