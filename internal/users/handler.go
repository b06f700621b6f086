package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/program"
	"github.com/stridept/stridept-backend/internal/stats"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"
)

type Handler struct {
	repo     *Repo
	programs *program.Repo
}

func NewHandler(repo *Repo, programs *program.Repo) *Handler {
	return &Handler{
		repo:     repo,
		programs: programs,
	}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
	Injury    string `json:"injury,omitempty"`
}

// HandleRegister creates a new account. Patients start with zeroed stats
// and an empty program.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.register")
	defer span.End()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		http.Error(w, "email and password are required", http.StatusBadRequest)
		return
	}

	role := Role(req.Role)
	if role == "" {
		role = RolePatient
	}
	if role != RolePatient && role != RoleTherapist {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	passwordHash, err := pkg.HashPassword(req.Password)
	if err != nil {
		log.Errorf("register, hash password: %s", err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	user := &User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		Injury:       req.Injury,
	}
	if role == RolePatient {
		newStats := stats.New(now)
		user.Stats = &newStats
	}

	if err := h.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			http.Error(w, "user already exists", http.StatusConflict)
			return
		}
		log.Errorf("register, create user: %s", err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	if role == RolePatient {
		emptyProgram := &program.Program{Exercises: []program.AssignedExercise{}, UpdatedAt: now}
		if err := h.programs.Save(ctx, user.ID, emptyProgram); err != nil {
			log.Errorf("register, create empty program for %s: %s", user.ID, err)
		}
	}

	h.writeUser(w, user, http.StatusCreated)
}

// HandleGetMe returns the authenticated user's own record.
func (h *Handler) HandleGetMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.getMe")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("get user %s: %s", userID, err)
		http.Error(w, "failed to get user", http.StatusInternalServerError)
		return
	}

	h.writeUser(w, user, http.StatusOK)
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Injury    *string `json:"injury,omitempty"`
}

// HandleUpdateMe merges profile changes into the authenticated user.
func (h *Handler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.updateMe")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	fields := map[string]any{}
	if req.FirstName != nil {
		fields["firstName"] = *req.FirstName
	}
	if req.LastName != nil {
		fields["lastName"] = *req.LastName
	}
	if req.Injury != nil {
		fields["injury"] = *req.Injury
	}
	if len(fields) == 0 {
		http.Error(w, "nothing to update", http.StatusBadRequest)
		return
	}
	fields["updatedAt"] = time.Now()

	if err := h.repo.Update(ctx, userID, fields); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		log.Errorf("update user %s: %s", userID, err)
		http.Error(w, "failed to update user", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "updated")
}

type assignTherapistRequest struct {
	TherapistID string `json:"therapistId"`
}

// HandleAssignTherapist links the authenticated patient to a therapist.
func (h *Handler) HandleAssignTherapist(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.assignTherapist")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req assignTherapistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TherapistID == "" {
		http.Error(w, "therapist id is required", http.StatusBadRequest)
		return
	}

	err := h.repo.AssignPatientToTherapist(ctx, userID, req.TherapistID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		http.Error(w, "user not found", http.StatusNotFound)
	case errors.Is(err, ErrTherapistNotFound):
		http.Error(w, "therapist not found", http.StatusNotFound)
	case errors.Is(err, ErrNotATherapist):
		http.Error(w, "not a therapist", http.StatusBadRequest)
	case err != nil:
		log.Errorf("assign patient %s to therapist %s: %s", userID, req.TherapistID, err)
		http.Error(w, "failed to assign therapist", http.StatusInternalServerError)
	default:
		pkg.WriteTextResponseOK(w, "assigned")
	}
}

// HandleGetPatients lists the patients of the authenticated therapist.
func (h *Handler) HandleGetPatients(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.getPatients")
	defer span.End()

	therapist, ok := h.requireTherapist(ctx, w)
	if !ok {
		return
	}

	patients, err := h.repo.PatientsForTherapist(ctx, therapist.ID)
	if err != nil {
		log.Errorf("get patients for therapist %s: %s", therapist.ID, err)
		http.Error(w, "failed to get patients", http.StatusInternalServerError)
		return
	}

	public := make([]User, 0, len(patients))
	for _, patient := range patients {
		public = append(public, patient.Public())
	}

	patientsJson, err := json.Marshal(public)
	if err != nil {
		log.Errorf("marshal patients: %s", err)
		http.Error(w, "failed to get patients", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, patientsJson)
}

// HandleGetPatient returns one patient record, only to their therapist.
func (h *Handler) HandleGetPatient(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.users.getPatient")
	defer span.End()

	therapist, ok := h.requireTherapist(ctx, w)
	if !ok {
		return
	}

	patientID := mux.Vars(r)["patientId"]
	patient, err := h.repo.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}
		log.Errorf("get patient %s: %s", patientID, err)
		http.Error(w, "failed to get patient", http.StatusInternalServerError)
		return
	}

	if patient.TherapistID != therapist.ID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	h.writeUser(w, patient, http.StatusOK)
}

func (h *Handler) requireTherapist(ctx context.Context, w http.ResponseWriter) (*User, bool) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	user, err := h.repo.Get(ctx, userID)
	if err != nil {
		log.Errorf("get user %s: %s", userID, err)
		http.Error(w, "failed to get user", http.StatusInternalServerError)
		return nil, false
	}
	if user.Role != RoleTherapist {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}

	return user, true
}

func (h *Handler) writeUser(w http.ResponseWriter, user *User, statusCode int) {
	userJson, err := json.Marshal(user.Public())
	if err != nil {
		log.Errorf("marshal user: %s", err)
		http.Error(w, "failed to encode user", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, userJson, statusCode)
}
