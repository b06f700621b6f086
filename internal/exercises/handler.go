package exercises

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"
)

type Handler struct {
	repo *Repo
}

func NewHandler(repo *Repo) *Handler {
	return &Handler{repo: repo}
}

// HandleGetExercises lists the exercise library, optionally narrowed to
// one tracking type via the type query param.
func (h *Handler) HandleGetExercises(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.list")
	defer span.End()

	var all []Exercise
	var err error
	if typeParam := r.URL.Query().Get("type"); typeParam != "" {
		exerciseType, parseErr := ParseType(typeParam)
		if parseErr != nil {
			http.Error(w, "unknown exercise type", http.StatusBadRequest)
			return
		}
		all, err = h.repo.ByType(ctx, exerciseType)
	} else {
		all, err = h.repo.List(ctx)
	}
	if err != nil {
		log.Errorf("list exercises: %s", err)
		http.Error(w, "failed to get exercises", http.StatusInternalServerError)
		return
	}

	allJson, err := json.Marshal(all)
	if err != nil {
		log.Errorf("marshal exercises: %s", err)
		http.Error(w, "failed to get exercises", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, allJson)
}

// HandleGetExercise returns one library exercise with its requirements
// rendered for display.
func (h *Handler) HandleGetExercise(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.exercises.get")
	defer span.End()

	exerciseID := mux.Vars(r)["exerciseId"]
	exercise, err := h.repo.Get(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, ErrExerciseNotFound) {
			http.Error(w, "exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("get exercise %s: %s", exerciseID, err)
		http.Error(w, "failed to get exercise", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(struct {
		Exercise
		Requirements string `json:"requirements"`
	}{
		Exercise:     *exercise,
		Requirements: exercise.FormatRequirements(),
	})
	if err != nil {
		log.Errorf("marshal exercise: %s", err)
		http.Error(w, "failed to get exercise", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, resp)
}
