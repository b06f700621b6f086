package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"
)

// ErrInvalidCredentials is returned by credential checkers on a wrong
// email or password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type credentialsChecker interface {
	CheckCredentials(ctx context.Context, email, password string) (userID string, err error)
}

type Handler struct {
	service     *Service
	credentials credentialsChecker
}

func NewHandler(service *Service, credentials credentialsChecker) *Handler {
	return &Handler{
		service:     service,
		credentials: credentials,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// HandleLogin verifies credentials and opens a new session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.login")
	defer span.End()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	userID, err := h.credentials.CheckCredentials(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		log.Errorf("login, check credentials: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	token, err := h.service.Login(ctx, userID, time.Now())
	if err != nil {
		log.Errorf("login, create session for user %s: %s", userID, err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(loginResponse{Token: token, UserID: userID})
	if err != nil {
		log.Errorf("login, marshal response: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

// HandleLogout closes the current session.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.logout")
	defer span.End()

	token := r.Header.Get(SessionTokenHeader)
	if token == "" {
		http.Error(w, "no session", http.StatusBadRequest)
		return
	}

	if err := h.service.Logout(ctx, token); err != nil {
		if errors.Is(err, ErrInvalidSession) {
			http.Error(w, "no session", http.StatusBadRequest)
			return
		}
		log.Errorf("logout: %s", err)
		http.Error(w, "logout failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}
