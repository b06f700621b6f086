package adherence

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/exercises"
	"github.com/stridept/stridept-backend/internal/program"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/internal/users"
	"github.com/stridept/stridept-backend/pkg"
)

type Handler struct {
	service *Service
	users   *users.Repo
}

func NewHandler(service *Service, usersRepo *users.Repo) *Handler {
	return &Handler{
		service: service,
		users:   usersRepo,
	}
}

// HandleGetProgram returns the authenticated user's program for today.
func (h *Handler) HandleGetProgram(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.program.get")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	p, err := h.service.CurrentProgram(ctx, userID)
	if err != nil {
		if errors.Is(err, program.ErrProgramNotFound) {
			http.Error(w, "program not found", http.StatusNotFound)
			return
		}
		log.Errorf("get program for user %s: %s", userID, err)
		http.Error(w, "failed to get program", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, p, http.StatusOK)
}

type completeExerciseRequest struct {
	AdjustedValues *program.AdjustedValues `json:"adjustedValues,omitempty"`
}

// HandleCompleteExercise marks one exercise of today's program as done.
func (h *Handler) HandleCompleteExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.program.complete")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	exerciseID := mux.Vars(r)["exerciseId"]

	// the body is optional, adjusted values only come along sometimes
	var req completeExerciseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	result, err := h.service.CompleteExercise(ctx, userID, exerciseID, req.AdjustedValues)
	if err != nil {
		if errors.Is(err, program.ErrProgramNotFound) {
			http.Error(w, "program not found", http.StatusNotFound)
			return
		}
		log.Errorf("complete exercise %s for user %s: %s", exerciseID, userID, err)
		http.Error(w, "failed to complete exercise", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, result, http.StatusOK)
}

// HandleSkipExercise marks one exercise of today's program as skipped.
func (h *Handler) HandleSkipExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.program.skip")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	exerciseID := mux.Vars(r)["exerciseId"]

	result, err := h.service.SkipExercise(ctx, userID, exerciseID)
	if err != nil {
		if errors.Is(err, program.ErrProgramNotFound) {
			http.Error(w, "program not found", http.StatusNotFound)
			return
		}
		log.Errorf("skip exercise %s for user %s: %s", exerciseID, userID, err)
		http.Error(w, "failed to skip exercise", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, result, http.StatusOK)
}

// HandleDeferExercise pushes one exercise to the end of today's program.
func (h *Handler) HandleDeferExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.program.defer")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	exerciseID := mux.Vars(r)["exerciseId"]

	nextID, err := h.service.DeferExercise(ctx, userID, exerciseID)
	if err != nil {
		switch {
		case errors.Is(err, program.ErrProgramNotFound):
			http.Error(w, "program not found", http.StatusNotFound)
		case errors.Is(err, ErrExerciseNotInProgram):
			http.Error(w, "exercise not in program", http.StatusNotFound)
		default:
			log.Errorf("defer exercise %s for user %s: %s", exerciseID, userID, err)
			http.Error(w, "failed to defer exercise", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, map[string]string{"nextExerciseId": nextID}, http.StatusOK)
}

type reorderRequest struct {
	Order []string `json:"order"`
}

// HandleReorderProgram rewrites the order of today's program.
func (h *Handler) HandleReorderProgram(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.program.reorder")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Order) == 0 {
		http.Error(w, "exercise order is required", http.StatusBadRequest)
		return
	}

	p, err := h.service.ReorderProgram(ctx, userID, req.Order)
	if err != nil {
		if errors.Is(err, program.ErrProgramNotFound) {
			http.Error(w, "program not found", http.StatusNotFound)
			return
		}
		log.Errorf("reorder program for user %s: %s", userID, err)
		http.Error(w, "failed to reorder program", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, p, http.StatusOK)
}

type assignProgramRequest struct {
	Exercises        []AssignmentItem `json:"exercises"`
	EstimatedMinutes int              `json:"estimatedMinutes,omitempty"`
}

// HandleAssignProgram lets a therapist replace a patient's program.
func (h *Handler) HandleAssignProgram(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.program.assign")
	defer span.End()

	therapistID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	therapist, err := h.users.Get(ctx, therapistID)
	if err != nil {
		log.Errorf("get therapist %s: %s", therapistID, err)
		http.Error(w, "failed to assign program", http.StatusInternalServerError)
		return
	}
	if therapist.Role != users.RoleTherapist {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	patientID := mux.Vars(r)["patientId"]
	patient, err := h.users.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		log.Errorf("get patient %s: %s", patientID, err)
		http.Error(w, "failed to assign program", http.StatusInternalServerError)
		return
	}
	if patient.TherapistID != therapistID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req assignProgramRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	p, err := h.service.AssignProgram(ctx, patientID, req.Exercises, req.EstimatedMinutes)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyProgram):
			http.Error(w, "program needs at least one exercise", http.StatusBadRequest)
		case errors.Is(err, exercises.ErrExerciseNotFound):
			http.Error(w, "unknown exercise in program", http.StatusBadRequest)
		default:
			log.Errorf("assign program to patient %s: %s", patientID, err)
			http.Error(w, "failed to assign program", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, p, http.StatusOK)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any, statusCode int) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal response: %s", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, raw, statusCode)
}
