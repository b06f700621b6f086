package checkins

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stridept/stridept-backend/internal/store"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
)

func userCollection(userID string) string {
	return fmt.Sprintf("users/%s/checkins", userID)
}

type Repo struct {
	store store.Client
	now   func() time.Time
}

func NewRepo(storeClient store.Client) *Repo {
	return &Repo{
		store: storeClient,
		now:   time.Now,
	}
}

// Add validates and stores a new check-in for the user, stamping id and
// date.
func (r *Repo) Add(ctx context.Context, userID string, checkIn CheckIn) (*CheckIn, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "checkinsRepo.add")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := checkIn.Validate(); err != nil {
		return nil, err
	}

	checkIn.ID = uuid.NewString()
	checkIn.Date = r.now()

	doc, err := store.ToDocument(checkIn)
	if err != nil {
		return nil, fmt.Errorf("encode check-in: %w", err)
	}

	if err := r.store.Set(ctx, userCollection(userID), checkIn.ID, doc, false); err != nil {
		return nil, fmt.Errorf("save check-in: %w", err)
	}

	return &checkIn, nil
}

// List returns the user's check-ins from the last given number of days,
// newest first. Zero days means all of them.
func (r *Repo) List(ctx context.Context, userID string, days int) ([]CheckIn, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "checkinsRepo.list")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	docs, err := r.store.Query(ctx, userCollection(userID))
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}

	var cutoff time.Time
	if days > 0 {
		cutoff = r.now().AddDate(0, 0, -days)
	}

	all := make([]CheckIn, 0, len(docs))
	for _, doc := range docs {
		var checkIn CheckIn
		if err := store.FromDocument(doc, &checkIn); err != nil {
			return nil, fmt.Errorf("decode check-in: %w", err)
		}
		if days > 0 && checkIn.Date.Before(cutoff) {
			continue
		}
		all = append(all, checkIn)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].Date.After(all[j].Date)
	})

	return all, nil
}

// Latest returns the most recent check-in, or nil when there is none.
func (r *Repo) Latest(ctx context.Context, userID string) (*CheckIn, error) {
	all, err := r.List(ctx, userID, 0)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

// CompletedToday reports whether the user already checked in today.
func (r *Repo) CompletedToday(ctx context.Context, userID string) (bool, error) {
	latest, err := r.Latest(ctx, userID)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}

	now := r.now()
	ly, lm, ld := latest.Date.Date()
	ny, nm, nd := now.Date()
	return ly == ny && lm == nm && ld == nd, nil
}

// Averages are the mean ratings over a period, for trend screens.
type Averages struct {
	Days    int     `json:"days"`
	Count   int     `json:"count"`
	AvgPain float64 `json:"avgPain"`
	AvgMood float64 `json:"avgMood"`
}

// Stats computes average pain and mood over the last given number of days.
func (r *Repo) Stats(ctx context.Context, userID string, days int) (*Averages, error) {
	recent, err := r.List(ctx, userID, days)
	if err != nil {
		return nil, err
	}

	averages := &Averages{Days: days, Count: len(recent)}
	if len(recent) == 0 {
		return averages, nil
	}

	var painSum, moodSum int
	for _, checkIn := range recent {
		painSum += checkIn.PainLevel
		moodSum += checkIn.MoodLevel
	}
	averages.AvgPain = float64(painSum) / float64(len(recent))
	averages.AvgMood = float64(moodSum) / float64(len(recent))

	return averages, nil
}
