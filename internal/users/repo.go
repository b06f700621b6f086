package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stridept/stridept-backend/internal/auth"
	"github.com/stridept/stridept-backend/internal/stats"
	"github.com/stridept/stridept-backend/internal/store"
	"github.com/stridept/stridept-backend/internal/telemetry/tracing"
	"github.com/stridept/stridept-backend/pkg"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrTherapistNotFound = errors.New("therapist not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrNotATherapist     = errors.New("user is not a therapist")
)

const collection = "users"

const (
	assignRetries    = 3
	assignRetryDelay = 200 * time.Millisecond
)

type Repo struct {
	store store.Client
}

func NewRepo(storeClient store.Client) *Repo {
	return &Repo{store: storeClient}
}

func (r *Repo) Create(ctx context.Context, user *User) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.create")
	defer span.End()

	existing, err := r.store.Query(ctx, collection, store.Filter{Field: "email", Value: user.Email})
	if err != nil {
		return fmt.Errorf("check existing email: %w", err)
	}
	if len(existing) > 0 {
		return ErrUserAlreadyExists
	}

	doc, err := store.ToDocument(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	if err := r.store.Insert(ctx, collection, user.ID, doc); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("save user: %w", err)
	}

	return nil
}

func (r *Repo) Get(ctx context.Context, userID string) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.get")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	doc, err := r.store.Get(ctx, collection, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	var user User
	if err := store.FromDocument(doc, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	user.ID = userID

	return &user, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.getByEmail")
	defer span.End()

	docs, err := r.store.Query(ctx, collection, store.Filter{Field: "email", Value: email})
	if err != nil {
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrUserNotFound
	}

	var user User
	if err := store.FromDocument(docs[0], &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &user, nil
}

// CheckCredentials verifies an email and password pair and returns the
// matching user id.
func (r *Repo) CheckCredentials(ctx context.Context, email, password string) (string, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.checkCredentials")
	defer span.End()

	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", auth.ErrInvalidCredentials
		}
		return "", err
	}

	if !pkg.CheckPasswordHash(password, user.PasswordHash) {
		return "", auth.ErrInvalidCredentials
	}

	return user.ID, nil
}

// Update merges the given fields into the user document.
func (r *Repo) Update(ctx context.Context, userID string, fields store.Document) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.update")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := r.store.Update(ctx, collection, userID, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("update user: %w", err)
	}

	return nil
}

// Stats reads only the embedded stats record of a user.
func (r *Repo) Stats(ctx context.Context, userID string) (*stats.UserStats, error) {
	user, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Stats == nil {
		newStats := stats.New(time.Now())
		return &newStats, nil
	}
	return user.Stats, nil
}

// SaveStats writes back the embedded stats record of a user.
func (r *Repo) SaveStats(ctx context.Context, userID string, userStats *stats.UserStats) error {
	statsDoc, err := store.ToDocument(userStats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	return r.Update(ctx, userID, store.Document{"stats": statsDoc})
}

// PatientsForTherapist lists all patients assigned to the given therapist.
func (r *Repo) PatientsForTherapist(ctx context.Context, therapistID string) ([]User, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.patientsForTherapist")
	defer span.End()
	span.SetAttributes(attribute.String("therapist.id", therapistID))

	docs, err := r.store.Query(ctx, collection, store.Filter{Field: "therapistId", Value: therapistID})
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}

	patients := make([]User, 0, len(docs))
	for _, doc := range docs {
		var user User
		if err := store.FromDocument(doc, &user); err != nil {
			return nil, fmt.Errorf("decode patient: %w", err)
		}
		patients = append(patients, user)
	}

	return patients, nil
}

// AssignPatientToTherapist links a patient to a therapist, updating both
// records atomically. Either both writes land or neither does. Transient
// store failures are retried a few times with a linear backoff.
func (r *Repo) AssignPatientToTherapist(ctx context.Context, patientID, therapistID string) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "usersRepo.assignPatientToTherapist")
	defer span.End()
	span.SetAttributes(
		attribute.String("patient.id", patientID),
		attribute.String("therapist.id", therapistID),
	)

	var lastErr error
	for attempt := 1; attempt <= assignRetries; attempt++ {
		lastErr = r.assignPatient(ctx, patientID, therapistID)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrUserNotFound) ||
			errors.Is(lastErr, ErrTherapistNotFound) ||
			errors.Is(lastErr, ErrNotATherapist) {
			return lastErr
		}

		log.Warnf(
			"assign patient %s to therapist %s, attempt %d/%d failed: %s",
			patientID, therapistID, attempt, assignRetries, lastErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * assignRetryDelay):
		}
	}

	return fmt.Errorf("assign patient to therapist: %w", lastErr)
}

func (r *Repo) assignPatient(ctx context.Context, patientID, therapistID string) error {
	return r.store.Transaction(ctx, func(ctx context.Context, tx store.Tx) error {
		patientDoc, err := tx.Get(ctx, collection, patientID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("get patient: %w", err)
		}

		therapistDoc, err := tx.Get(ctx, collection, therapistID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrTherapistNotFound
			}
			return fmt.Errorf("get therapist: %w", err)
		}

		var therapist User
		if err := store.FromDocument(therapistDoc, &therapist); err != nil {
			return fmt.Errorf("decode therapist: %w", err)
		}
		if therapist.Role != RoleTherapist {
			return ErrNotATherapist
		}

		var patient User
		if err := store.FromDocument(patientDoc, &patient); err != nil {
			return fmt.Errorf("decode patient: %w", err)
		}

		if err := tx.Update(ctx, collection, patientID, store.Document{
			"therapistId": therapistID,
		}); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}

		patients := therapist.Patients
		if !contains(patients, patientID) {
			patients = append(patients, patientID)
		}
		if err := tx.Update(ctx, collection, therapistID, store.Document{
			"patients": patients,
		}); err != nil {
			return fmt.Errorf("update therapist: %w", err)
		}

		return nil
	})
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
