package auth

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type LoginChecker struct {
	ttl     time.Duration
	service *Service
}

func NewLoginChecker(ttl time.Duration, redisClient *redis.Client) *LoginChecker {
	return &LoginChecker{
		ttl:     ttl,
		service: NewService(ttl, redisClient),
	}
}

// SessionUser resolves a session token to the logged in user id.
func (lc *LoginChecker) SessionUser(ctx context.Context, token string) (string, error) {
	session, err := lc.service.session(ctx, token)
	if err != nil {
		return "", err
	}

	if time.Since(session.CreatedAt) > lc.ttl {
		return "", ErrInvalidSession
	}

	return session.UserID, nil
}
