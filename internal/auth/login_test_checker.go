package auth

import "context"

// LoginTestChecker is a Checker stub with canned token to user mappings.
type LoginTestChecker struct {
	LoggedSessions map[string]string
}

func NewLoginTestChecker() *LoginTestChecker {
	return &LoginTestChecker{
		LoggedSessions: map[string]string{},
	}
}

func (tc *LoginTestChecker) SessionUser(_ context.Context, token string) (string, error) {
	userID, ok := tc.LoggedSessions[token]
	if !ok {
		return "", ErrInvalidSession
	}
	return userID, nil
}
