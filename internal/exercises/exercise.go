package exercises

import "fmt"

// Type tags every exercise in the library and every assigned exercise in a
// patient program. It decides which stat totals a completion contributes to.
type Type string

const (
	TypeDistance Type = "distance"
	TypeWeight   Type = "weight"
	TypeTime     Type = "time"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeDistance, TypeWeight, TypeTime:
		return Type(s), nil
	default:
		return "", fmt.Errorf("invalid exercise type: %s", s)
	}
}

// Exercise is one entry of the global exercise library, read-only reference
// data maintained outside of patient flows. Default targets depend on the
// exercise type: distance exercises carry steps, weight exercises reps and
// weight, time exercises reps and a hold duration.
type Exercise struct {
	ExerciseID   string `json:"exerciseId"`
	ExerciseName string `json:"exerciseName"`
	Instructions string `json:"instructions,omitempty"`
	Information  string `json:"information,omitempty"`
	ExerciseType Type   `json:"exerciseType"`
	Equipment    string `json:"equipment,omitempty"`

	DefaultSets    int `json:"defaultSets,omitempty"`
	DefaultReps    int `json:"defaultReps,omitempty"`
	DefaultSteps   int `json:"defaultSteps,omitempty"`
	DefaultSeconds int `json:"defaultSeconds,omitempty"`
	DefaultWeight  int `json:"defaultWeight,omitempty"`
}

// FormatRequirements renders the default targets of an exercise as a short
// human readable string, e.g. "3 sets of 10 steps".
func (e Exercise) FormatRequirements() string {
	switch e.ExerciseType {
	case TypeDistance:
		return fmt.Sprintf("%d sets of %d steps", orDefault(e.DefaultSets, 3), orDefault(e.DefaultSteps, 10))
	case TypeWeight:
		return fmt.Sprintf(
			"%d sets of %d reps at %dlbs",
			orDefault(e.DefaultSets, 3), orDefault(e.DefaultReps, 10), e.DefaultWeight,
		)
	case TypeTime:
		return fmt.Sprintf(
			"%d sets of %d reps, holding for %d seconds each",
			orDefault(e.DefaultSets, 1), orDefault(e.DefaultReps, 10), orDefault(e.DefaultSeconds, 10),
		)
	}
	return "exercise requirements not specified"
}

func orDefault(val, fallback int) int {
	if val == 0 {
		return fallback
	}
	return val
}
