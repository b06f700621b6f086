package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/middleware"
)

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	loginChecker := auth.NewLoginTestChecker()
	loginChecker.LoggedSessions["valid-token"] = "user1"

	authMiddleware := middleware.NewAuthMiddlewareHandler(loginChecker)

	testCases := []struct {
		name               string
		path               string
		method             string
		token              string
		expectedStatusCode int
		expectedUserID     string
	}{
		{
			name:               "AllowedPathWithoutToken",
			path:               "/api/login",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "RegisterWithoutToken",
			path:               "/api/users/register",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "RootWithoutToken",
			path:               "/",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "ProtectedPathWithoutToken",
			path:               "/api/program",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ValidToken",
			path:               "/api/program",
			method:             "GET",
			token:              "valid-token",
			expectedStatusCode: http.StatusOK,
			expectedUserID:     "user1",
		},
		{
			name:               "InvalidToken",
			path:               "/api/program",
			method:             "GET",
			token:              "invalid-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "OptionsAlwaysAllowed",
			path:               "/api/program",
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, tc.path, nil)
			require.NoError(t, err)
			if tc.token != "" {
				req.Header.Set(auth.SessionTokenHeader, tc.token)
			}

			var gotUserID string
			var nextCalled bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				gotUserID, _ = auth.UserIDFromContext(r.Context())
			})

			rr := httptest.NewRecorder()
			authMiddleware.AuthCheck()(next).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			if tc.expectedUserID != "" {
				assert.True(t, nextCalled)
				assert.Equal(t, tc.expectedUserID, gotUserID)
			}
			if tc.expectedStatusCode == http.StatusUnauthorized {
				assert.False(t, nextCalled)
			}
		})
	}
}
