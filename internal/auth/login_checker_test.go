package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginChecker_SessionUser(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	loginChecker := NewLoginChecker(time.Hour, db)
	require.NotNil(t, loginChecker)

	ctx := context.Background()

	mock.ExpectGet(sessionKeyPrefix + "invalid token").RedisNil()
	userID, err := loginChecker.SessionUser(ctx, "invalid token")
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.Empty(t, userID)

	testToken := "test-token"
	sessionKey := sessionKeyPrefix + testToken
	now := time.Now()

	mock.ExpectGet(sessionKey).SetVal(fmt.Sprintf("user1||%d", now.Unix()))
	userID, err = loginChecker.SessionUser(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, "user1", userID)

	mock.ExpectGet(sessionKey).SetVal(fmt.Sprintf("user1||%d", now.Unix()))
	userID, err = loginChecker.SessionUser(ctx, testToken)
	require.NoError(t, err)
	assert.Equal(t, "user1", userID) // idempotent
}

func TestLoginChecker_ExpiredSession(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	loginChecker := NewLoginChecker(time.Hour, db)
	ctx := context.Background()

	expired := time.Now().Add(-2 * time.Hour)
	sessionKey := sessionKeyPrefix + "old-token"

	mock.ExpectGet(sessionKey).SetVal(fmt.Sprintf("user1||%d", expired.Unix()))
	userID, err := loginChecker.SessionUser(ctx, "old-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
	assert.Empty(t, userID)
}
