package checkins

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/telemetry/metrics"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"
)

type Handler struct {
	repo    *Repo
	metrics *metrics.Manager
}

func NewHandler(repo *Repo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:    repo,
		metrics: metricsManager,
	}
}

type addCheckInRequest struct {
	PainLevel int    `json:"painLevel"`
	MoodLevel int    `json:"moodLevel"`
	Notes     string `json:"notes,omitempty"`
}

// HandleAddCheckIn records today's wellbeing report for the authenticated
// user.
func (h *Handler) HandleAddCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkins.add")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req addCheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	saved, err := h.repo.Add(ctx, userID, CheckIn{
		PainLevel: req.PainLevel,
		MoodLevel: req.MoodLevel,
		Notes:     req.Notes,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidPainLevel) || errors.Is(err, ErrInvalidMoodLevel) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("add check-in for user %s: %s", userID, err)
		http.Error(w, "failed to add check-in", http.StatusInternalServerError)
		return
	}

	h.metrics.CounterCheckIns.Inc()

	savedJson, err := json.Marshal(saved)
	if err != nil {
		log.Errorf("marshal check-in: %s", err)
		http.Error(w, "failed to add check-in", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, savedJson, http.StatusCreated)
}

// HandleGetCheckIns lists recent check-ins; the days query parameter
// limits how far back to look.
func (h *Handler) HandleGetCheckIns(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkins.list")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	days := 0
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	all, err := h.repo.List(ctx, userID, days)
	if err != nil {
		log.Errorf("list check-ins for user %s: %s", userID, err)
		http.Error(w, "failed to get check-ins", http.StatusInternalServerError)
		return
	}

	allJson, err := json.Marshal(all)
	if err != nil {
		log.Errorf("marshal check-ins: %s", err)
		http.Error(w, "failed to get check-ins", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, allJson)
}

// HandleGetTodayStatus reports whether the user already checked in today.
func (h *Handler) HandleGetTodayStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkins.today")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	done, err := h.repo.CompletedToday(ctx, userID)
	if err != nil {
		log.Errorf("check today's check-in for user %s: %s", userID, err)
		http.Error(w, "failed to get check-in status", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(map[string]bool{"completedToday": done})
	if err != nil {
		log.Errorf("marshal check-in status: %s", err)
		http.Error(w, "failed to get check-in status", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}

// HandleGetStats returns average pain and mood levels over a period.
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.checkins.stats")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	days := 7
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		parsed, err := strconv.Atoi(daysParam)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	averages, err := h.repo.Stats(ctx, userID, days)
	if err != nil {
		log.Errorf("check-in stats for user %s: %s", userID, err)
		http.Error(w, "failed to get check-in stats", http.StatusInternalServerError)
		return
	}

	averagesJson, err := json.Marshal(averages)
	if err != nil {
		log.Errorf("marshal check-in stats: %s", err)
		http.Error(w, "failed to get check-in stats", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, averagesJson)
}
