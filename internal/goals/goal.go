package goals

// Goal is a recovery milestone. The global library holds the defaults; a
// per-user copy is created at assignment so a therapist can unlock goals
// independently per patient.
type Goal struct {
	GoalID      string `json:"goalId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Month       int    `json:"month"`
	Timeframe   string `json:"timeframe,omitempty"`
	Unlocked    bool   `json:"unlocked"`
}
