package goals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/internal/users"
	"github.com/stridept/stridept-backend/pkg"
)

type Handler struct {
	repo  *Repo
	users *users.Repo
}

func NewHandler(repo *Repo, usersRepo *users.Repo) *Handler {
	return &Handler{
		repo:  repo,
		users: usersRepo,
	}
}

// HandleGetGoals lists the authenticated user's goals, optionally filtered
// by recovery month via the month query parameter.
func (h *Handler) HandleGetGoals(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.get")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	month := 0
	if monthParam := r.URL.Query().Get("month"); monthParam != "" {
		parsed, err := strconv.Atoi(monthParam)
		if err != nil || parsed < 1 || parsed > 6 {
			http.Error(w, "invalid month", http.StatusBadRequest)
			return
		}
		month = parsed
	}

	userGoals, err := h.repo.UserGoals(ctx, userID, month)
	if err != nil {
		log.Errorf("get goals for user %s: %s", userID, err)
		http.Error(w, "failed to get goals", http.StatusInternalServerError)
		return
	}

	goalsJson, err := json.Marshal(userGoals)
	if err != nil {
		log.Errorf("marshal goals: %s", err)
		http.Error(w, "failed to get goals", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, goalsJson)
}

// HandleAssignGoals copies missing library goals to the authenticated
// user. Safe to call repeatedly.
func (h *Handler) HandleAssignGoals(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.assign")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	assigned, err := h.repo.AssignToUser(ctx, userID)
	if err != nil {
		log.Errorf("assign goals to user %s: %s", userID, err)
		http.Error(w, "failed to assign goals", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(map[string]any{"assigned": assigned})
	if err != nil {
		log.Errorf("marshal assigned goals: %s", err)
		http.Error(w, "failed to assign goals", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

type setLockStatusRequest struct {
	Unlocked bool `json:"unlocked"`
}

// HandleSetLockStatus lets a therapist unlock or re-lock one goal of one
// of their patients.
func (h *Handler) HandleSetLockStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.goals.setLockStatus")
	defer span.End()

	therapistID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	patientID := vars["patientId"]
	goalID := vars["goalId"]

	patient, err := h.users.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		log.Errorf("get patient %s: %s", patientID, err)
		http.Error(w, "failed to update goal", http.StatusInternalServerError)
		return
	}
	if patient.TherapistID != therapistID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req setLockStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.repo.SetLockStatus(ctx, patientID, goalID, req.Unlocked); err != nil {
		if errors.Is(err, ErrGoalNotFound) {
			http.Error(w, "goal not found", http.StatusNotFound)
			return
		}
		log.Errorf("set lock status for goal %s of user %s: %s", goalID, patientID, err)
		http.Error(w, "failed to update goal", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "updated")
}
