package checkins

import (
	"errors"
	"time"
)

var (
	ErrInvalidPainLevel = errors.New("pain level must be between 1 and 10")
	ErrInvalidMoodLevel = errors.New("mood level must be between 1 and 5")
)

// CheckIn is one daily wellbeing report: how much pain the patient is in
// and how they feel, on fixed scales.
type CheckIn struct {
	ID        string    `json:"id"`
	Date      time.Time `json:"date"`
	PainLevel int       `json:"painLevel"`
	MoodLevel int       `json:"moodLevel"`
	Notes     string    `json:"notes,omitempty"`
}

// Validate checks the rating scales before anything is written.
func (c CheckIn) Validate() error {
	if c.PainLevel < 1 || c.PainLevel > 10 {
		return ErrInvalidPainLevel
	}
	if c.MoodLevel < 1 || c.MoodLevel > 5 {
		return ErrInvalidMoodLevel
	}
	return nil
}
