package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stridept/stridept-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGet(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "users", "u1")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{
		"userId": "u1",
		"email":  "pat@example.com",
	}, false))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", doc["email"])
}

func TestMemoryStore_SetMerge(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{
		"email":     "pat@example.com",
		"firstName": "Pat",
	}, false))
	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{
		"email": "pat2@example.com",
	}, true))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "pat2@example.com", doc["email"])
	assert.Equal(t, "Pat", doc["firstName"])

	// non-merge set replaces the whole document
	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{
		"email": "pat3@example.com",
	}, false))
	doc, err = s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.NotContains(t, doc, "firstName")
}

func TestMemoryStore_Insert(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "users", "u1", store.Document{
		"email": "pat@example.com",
	}))

	err := s.Insert(ctx, "users", "u1", store.Document{
		"email": "other@example.com",
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// the original document is untouched
	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "pat@example.com", doc["email"])
}

func TestMemoryStore_Update(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	err := s.Update(ctx, "users", "missing", store.Document{"email": "x"})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{
		"email":     "pat@example.com",
		"firstName": "Pat",
	}, false))
	require.NoError(t, s.Update(ctx, "users", "u1", store.Document{
		"email": "new@example.com",
	}))

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", doc["email"])
	assert.Equal(t, "Pat", doc["firstName"])
}

func TestMemoryStore_QueryEquality(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{
		"therapistId": "t1",
		"isTherapist": false,
	}, false))
	require.NoError(t, s.Set(ctx, "users", "u2", store.Document{
		"therapistId": "t1",
		"isTherapist": true,
	}, false))
	require.NoError(t, s.Set(ctx, "users", "u3", store.Document{
		"therapistId": "t2",
		"isTherapist": false,
	}, false))

	docs, err := s.Query(ctx, "users",
		store.Filter{Field: "therapistId", Value: "t1"},
		store.Filter{Field: "isTherapist", Value: false},
	)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	all, err := s.Query(ctx, "users")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_TransactionRollsBackOnError(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{"email": "before"}, false))

	errBoom := errors.New("boom")
	err := s.Transaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Update(ctx, "users", "u1", store.Document{"email": "after"}); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "before", doc["email"])
}

func TestMemoryStore_TransactionCommits(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "users", "u1", store.Document{"email": "before"}, false))

	err := s.Transaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Update(ctx, "users", "u1", store.Document{"email": "after"}); err != nil {
			return err
		}
		return tx.Set(ctx, "therapists", "t1", store.Document{"patients": []any{"u1"}}, false)
	})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "after", doc["email"])

	_, err = s.Get(ctx, "therapists", "t1")
	require.NoError(t, err)
}
