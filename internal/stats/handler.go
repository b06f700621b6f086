package stats

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleGetStats returns the authenticated user's full stats record.
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.stats.get")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userStats, err := h.service.UserStats(ctx, userID)
	if err != nil {
		log.Errorf("get stats for user %s: %s", userID, err)
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	statsJson, err := json.Marshal(userStats)
	if err != nil {
		log.Errorf("marshal stats for user %s: %s", userID, err)
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, statsJson)
}

// HandleGetWeeklyProgress returns the current week window plus what is
// still needed to extend the streak.
func (h *Handler) HandleGetWeeklyProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.stats.weekly")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	summary, err := h.service.WeeklyProgress(ctx, userID)
	if err != nil {
		log.Errorf("get weekly progress for user %s: %s", userID, err)
		http.Error(w, "failed to get weekly progress", http.StatusInternalServerError)
		return
	}

	summaryJson, err := json.Marshal(summary)
	if err != nil {
		log.Errorf("marshal weekly progress for user %s: %s", userID, err)
		http.Error(w, "failed to get weekly progress", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, summaryJson)
}
