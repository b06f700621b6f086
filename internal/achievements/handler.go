package achievements

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/stats"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"
)

type userStatsProvider interface {
	UserStats(ctx context.Context, userID string) (*stats.UserStats, error)
}

type Handler struct {
	repo      *Repo
	userStats userStatsProvider
}

func NewHandler(repo *Repo, userStats userStatsProvider) *Handler {
	return &Handler{
		repo:      repo,
		userStats: userStats,
	}
}

// Summary is one library achievement with the user's unlock state and the
// current value of the total it tracks.
type Summary struct {
	Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
	Progress   int        `json:"progress"`
}

// HandleGetAchievements returns the full library merged with the
// authenticated user's unlock state.
func (h *Handler) HandleGetAchievements(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.achievements.get")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	library, err := h.repo.Library(ctx)
	if err != nil {
		log.Errorf("get achievement library: %s", err)
		http.Error(w, "failed to get achievements", http.StatusInternalServerError)
		return
	}

	userStats, err := h.userStats.UserStats(ctx, userID)
	if err != nil {
		log.Errorf("get stats for user %s: %s", userID, err)
		http.Error(w, "failed to get achievements", http.StatusInternalServerError)
		return
	}

	summaries := make([]Summary, 0, len(library))
	for _, achievement := range library {
		state := userStats.Achievements[achievement.AchieveID]
		progress := achievement.total(userStats)
		if progress > achievement.TargetValue {
			progress = achievement.TargetValue
		}
		summaries = append(summaries, Summary{
			Achievement: achievement,
			Unlocked:    state.Unlocked,
			UnlockedAt:  state.UnlockedAt,
			Progress:    progress,
		})
	}

	summariesJson, err := json.Marshal(summaries)
	if err != nil {
		log.Errorf("marshal achievements: %s", err)
		http.Error(w, "failed to get achievements", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, summariesJson)
}
