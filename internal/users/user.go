package users

import (
	"time"

	"github.com/stridept/stridept-backend/internal/stats"
)

type Role string

const (
	RolePatient   Role = "patient"
	RoleTherapist Role = "therapist"
)

// User is one account record, patient or therapist. Patients carry their
// cumulative stats embedded; therapists carry the list of their patients.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`

	// patient fields
	TherapistID string           `json:"therapistId,omitempty"`
	Injury      string           `json:"injury,omitempty"`
	Stats       *stats.UserStats `json:"stats,omitempty"`

	// therapist fields
	Patients []string `json:"patients,omitempty"`
}

// Public returns a copy safe to send to clients.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
