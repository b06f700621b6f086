package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

func TestService_Login(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	authService := NewService(time.Hour, db)
	require.NotNil(t, authService)
	assert.Equal(t, time.Hour, authService.ttl)

	testToken := "test_token"
	authService.RandStringFunc = func(s int) (string, error) {
		return testToken, nil
	}

	createdAt := time.Now()
	sessionKey := sessionKeyPrefix + testToken
	sessionVal := fmt.Sprintf("user1||%d", createdAt.Unix())

	mock.ExpectSet(sessionKey, sessionVal, 0).SetVal(sessionVal)
	mock.ExpectSAdd(tokensSetKey, testToken).SetVal(1)

	token, err := authService.Login(context.Background(), "user1", createdAt)
	require.NoError(t, err)
	assert.Equal(t, testToken, token)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Logout(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	authService := NewService(time.Hour, db)

	testToken := "test_token"
	sessionKey := sessionKeyPrefix + testToken
	sessionVal := fmt.Sprintf("user1||%d", time.Now().Unix())

	mock.ExpectGet(sessionKey).SetVal(sessionVal)
	mock.ExpectDel(sessionKey).SetVal(1)
	mock.ExpectSRem(tokensSetKey, testToken).SetVal(1)

	require.NoError(t, authService.Logout(context.Background(), testToken))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Logout_UnknownToken(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	authService := NewService(time.Hour, db)

	mock.ExpectGet(sessionKeyPrefix + "nope").RedisNil()

	err := authService.Logout(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestService_Session(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	authService := NewService(time.Hour, db)
	ctx := context.Background()

	createdAt := time.Now().Add(-10 * time.Minute).Truncate(time.Second)
	sessionKey := sessionKeyPrefix + "test_token"

	mock.ExpectGet(sessionKey).SetVal(fmt.Sprintf("user1||%d", createdAt.Unix()))
	session, err := authService.session(ctx, "test_token")
	require.NoError(t, err)
	assert.Equal(t, "user1", session.UserID)
	assert.Equal(t, "test_token", session.Token)
	assert.True(t, session.CreatedAt.Equal(createdAt))

	mock.ExpectGet(sessionKey).SetVal("garbage-without-separator")
	_, err = authService.session(ctx, "test_token")
	assert.ErrorIs(t, err, ErrInvalidSession)

	mock.ExpectGet(sessionKey).SetVal("user1||not-a-number")
	_, err = authService.session(ctx, "test_token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestService_ScanAndClean(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer db.Close()

	authService := NewService(time.Hour, db)
	ctx := context.Background()

	freshToken, staleToken := "fresh_token", "stale_token"
	fresh := time.Now().Add(-10 * time.Minute)
	stale := time.Now().Add(-2 * time.Hour)

	mock.ExpectSMembers(tokensSetKey).SetVal([]string{freshToken, staleToken})
	mock.ExpectGet(sessionKeyPrefix + freshToken).
		SetVal(fmt.Sprintf("user1||%d", fresh.Unix()))
	mock.ExpectGet(sessionKeyPrefix + staleToken).
		SetVal(fmt.Sprintf("user2||%d", stale.Unix()))
	mock.ExpectDel(sessionKeyPrefix + staleToken).SetVal(1)
	mock.ExpectSRem(tokensSetKey, staleToken).SetVal(1)

	authService.ScanAndClean(ctx)

	require.NoError(t, mock.ExpectationsWereMet())
}
