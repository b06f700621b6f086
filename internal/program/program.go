package program

import (
	"time"

	"github.com/stridept/stridept-backend/internal/exercises"
)

// AdjustedValues are per-session overrides a patient sets before completing
// an exercise. A nil field means the assigned target stands.
type AdjustedValues struct {
	Sets    *int `json:"sets,omitempty"`
	Reps    *int `json:"reps,omitempty"`
	Steps   *int `json:"steps,omitempty"`
	Seconds *int `json:"seconds,omitempty"`
	Weight  *int `json:"weight,omitempty"`
}

// AssignedExercise is one exercise of a patient's current program: a library
// exercise plus therapist-assigned targets and today's completion state.
type AssignedExercise struct {
	ExerciseID   string         `json:"exerciseId"`
	ExerciseName string         `json:"exerciseName"`
	ExerciseType exercises.Type `json:"exerciseType"`
	Equipment    string         `json:"equipment,omitempty"`
	Order        int            `json:"order"`

	Sets    int `json:"sets,omitempty"`
	Reps    int `json:"reps,omitempty"`
	Steps   int `json:"steps,omitempty"`
	Seconds int `json:"seconds,omitempty"`
	Weight  int `json:"weight,omitempty"`

	Completed      bool            `json:"completed"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	Skipped        bool            `json:"skipped"`
	AdjustedValues *AdjustedValues `json:"adjustedValues,omitempty"`
}

// Program is the patient's current daily exercise program. Completion flags
// reset every day, the exercise list changes only when a therapist edits it.
type Program struct {
	Exercises        []AssignedExercise `json:"exercises"`
	EstimatedMinutes int                `json:"estimatedMinutes,omitempty"`
	AssignedAt       time.Time          `json:"assignedAt,omitempty"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// Complete marks an exercise as done for today and remembers the adjusted
// values it was done with. Returns false when the exercise is not part of
// the program or was already completed.
func (p *Program) Complete(exerciseID string, adjusted *AdjustedValues, now time.Time) bool {
	for i := range p.Exercises {
		if p.Exercises[i].ExerciseID != exerciseID {
			continue
		}
		if p.Exercises[i].Completed {
			return false
		}
		p.Exercises[i].Completed = true
		p.Exercises[i].Skipped = false
		p.Exercises[i].CompletedAt = &now
		p.Exercises[i].AdjustedValues = adjusted
		return true
	}
	return false
}

// Skip marks an exercise as skipped for today. Skipped exercises count
// towards program completion but contribute nothing to the stats totals.
func (p *Program) Skip(exerciseID string) bool {
	for i := range p.Exercises {
		if p.Exercises[i].ExerciseID != exerciseID {
			continue
		}
		if p.Exercises[i].Skipped {
			return false
		}
		p.Exercises[i].Skipped = true
		return true
	}
	return false
}

// IsCompleted reports whether every exercise of the program is either
// completed or skipped. An empty program is never completed.
func (p *Program) IsCompleted() bool {
	if len(p.Exercises) == 0 {
		return false
	}
	for i := range p.Exercises {
		if !p.Exercises[i].Completed && !p.Exercises[i].Skipped {
			return false
		}
	}
	return true
}

// ResetDaily clears all completion state so the program can be done again.
func (p *Program) ResetDaily() {
	for i := range p.Exercises {
		p.Exercises[i].Completed = false
		p.Exercises[i].Skipped = false
		p.Exercises[i].CompletedAt = nil
		p.Exercises[i].AdjustedValues = nil
	}
}

// Reorder rearranges the program to follow the given exercise id order.
// Ids not present in the program are ignored, exercises not mentioned in
// the order are dropped, and order fields are renumbered from zero.
func (p *Program) Reorder(orderedIDs []string) {
	byID := make(map[string]AssignedExercise, len(p.Exercises))
	for _, ex := range p.Exercises {
		byID[ex.ExerciseID] = ex
	}

	reordered := make([]AssignedExercise, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		ex, ok := byID[id]
		if !ok {
			continue
		}
		ex.Order = len(reordered)
		reordered = append(reordered, ex)
	}

	p.Exercises = reordered
}

// MoveToEnd defers an exercise to the end of the program and renumbers the
// rest. It returns the id of the next not-yet-done exercise, searching
// forward from the vacated position and wrapping around, or an empty string
// when nothing remains to do. Returns false when the exercise is not part
// of the program.
func (p *Program) MoveToEnd(exerciseID string) (nextID string, ok bool) {
	from := -1
	for i := range p.Exercises {
		if p.Exercises[i].ExerciseID == exerciseID {
			from = i
			break
		}
	}
	if from == -1 {
		return "", false
	}

	moved := p.Exercises[from]
	remaining := make([]AssignedExercise, 0, len(p.Exercises))
	remaining = append(remaining, p.Exercises[:from]...)
	remaining = append(remaining, p.Exercises[from+1:]...)
	remaining = append(remaining, moved)
	for i := range remaining {
		remaining[i].Order = i
	}
	p.Exercises = remaining

	// the vacated slot now holds the exercise that followed the moved one
	for offset := 0; offset < len(p.Exercises); offset++ {
		i := (from + offset) % len(p.Exercises)
		if !p.Exercises[i].Completed && !p.Exercises[i].Skipped {
			return p.Exercises[i].ExerciseID, true
		}
	}

	return "", true
}
