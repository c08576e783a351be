// Package engine drives one play-through of a scenario: role introduction,
// timed steps, complications, chaining and final scoring.
package engine

import (
	"context"
	"errors"

	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/complications"
	"github.com/ormasoftchile/ehbo/pkg/resources"
	"github.com/ormasoftchile/ehbo/pkg/roles"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
	"github.com/ormasoftchile/ehbo/pkg/scoring"
)

// State is the runtime state machine position.
type State int

const (
	NotStarted State = iota
	RoleIntro
	InProgress
	ComplicationPause
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case RoleIntro:
		return "role_intro"
	case InProgress:
		return "in_progress"
	case ComplicationPause:
		return "complication_pause"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// Contract violations. Callers must not retry these.
var (
	ErrNoSession     = errors.New("engine: no active session")
	ErrWrongState    = errors.New("engine: operation not allowed in current state")
	ErrInvalidOption = errors.New("engine: option does not belong to the current step")
	ErrInvalidChoice = complications.ErrInvalidChoice
	ErrEmptyScenario = errors.New("engine: scenario has no steps")
	ErrUnknownChain  = errors.New("engine: unknown chain type")
	ErrNoScenario    = errors.New("engine: scenario not in catalogue")
)

// Profile is the read-only player descriptor supplied by the host.
type Profile struct {
	ID                   string              `yaml:"id"                            json:"id"`
	DifficultyPreference scenario.Difficulty `yaml:"difficulty"                    json:"difficulty"`
	AccessibilityNeeds   []string            `yaml:"accessibility_needs,omitempty" json:"accessibility_needs,omitempty"`
}

// Accessible reports whether step timing is disabled for this player.
func (p Profile) Accessible() bool {
	return len(p.AccessibilityNeeds) > 0
}

func (p Profile) difficulty() scenario.Difficulty {
	if p.DifficultyPreference.Valid() {
		return p.DifficultyPreference
	}
	return scenario.Beginner
}

// StepResult records the player's answer to one step.
type StepResult struct {
	StepID           string `json:"step_id"`
	SelectedOptionID string `json:"selected_option_id,omitempty"`
	Correct          bool   `json:"correct"`
	TimeUsedSeconds  int    `json:"time_used_seconds"`
	TimedOut         bool   `json:"timed_out,omitempty"`
}

// Session is a snapshot of the play-through state.
type Session struct {
	ID                string                       `json:"id"`
	Scenario          *scenario.Scenario           `json:"scenario"`
	Difficulty        scenario.Difficulty          `json:"difficulty"`
	CurrentStepIndex  int                          `json:"current_step_index"`
	CurrentStepID     string                       `json:"current_step_id"`
	Results           map[string]StepResult        `json:"results"`
	Order             []string                     `json:"order"`
	Resources         resources.State              `json:"resources"`
	Role              *roles.Role                  `json:"role,omitempty"`
	Complications     []complications.Complication `json:"complications,omitempty"`
	Chain             *chain.State                 `json:"chain,omitempty"`
	AccessibilityMode bool                         `json:"accessibility_mode"`
	StepsTaken        int                          `json:"steps_taken"`
	State             State                        `json:"state"`
	TimedOut          bool                         `json:"timed_out,omitempty"`
	// TimeRemaining is the countdown of the current step; zero when untimed.
	TimeRemaining int `json:"time_remaining"`
}

// CurrentStep returns the step being played, if any.
func (s *Session) CurrentStep() (*scenario.Step, bool) {
	if s == nil || s.Scenario == nil {
		return nil, false
	}
	for i := range s.Scenario.Steps {
		if s.Scenario.Steps[i].ID == s.CurrentStepID {
			return &s.Scenario.Steps[i], true
		}
	}
	return nil, false
}

// StepOutcome is what an operation on the runtime produced.
type StepOutcome struct {
	// Rejected is set when an answer was submitted to an already-answered step.
	Rejected    bool   `json:"rejected,omitempty"`
	StepID      string `json:"step_id,omitempty"`
	OptionID    string `json:"option_id,omitempty"`
	Correct     bool   `json:"correct"`
	Feedback    string `json:"feedback,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	// Terminal is set when advancing from this answer ends the scenario.
	Terminal     bool                        `json:"terminal,omitempty"`
	Resources    resources.State             `json:"resources"`
	Complication *complications.Complication `json:"complication,omitempty"`
	Next         *scenario.Step              `json:"next,omitempty"`
	TimedOut     bool                        `json:"timed_out,omitempty"`
	State        State                       `json:"state"`
	// ChainNext is set when completion moved the player into the next chain
	// stage; Scenario is the stage now being played.
	ChainNext *chain.Next        `json:"chain_next,omitempty"`
	Scenario  *scenario.Scenario `json:"-"`
	// Report is set whenever the operation completed a scenario.
	Report *Report `json:"report,omitempty"`
}

// Report is the final result of a scenario.
type Report struct {
	SessionID  string              `json:"session_id"`
	ScenarioID string              `json:"scenario_id"`
	Difficulty scenario.Difficulty `json:"difficulty"`
	Score      int                 `json:"score"`
	Correct    int                 `json:"correct"`
	// Total counts steps with a result, the timed-out one included. Steps a
	// timeout forfeited never count.
	Total     int               `json:"total"`
	TimedOut  bool              `json:"timed_out"`
	Results   []StepResult      `json:"results"`
	Resources resources.State   `json:"resources"`
	Role      string            `json:"role,omitempty"`
	Insights  []scoring.Insight `json:"insights,omitempty"`
	Chain     *chain.State      `json:"chain,omitempty"`
	// Intermediate is set for a chain stage that is not the last one; it is
	// not reported to the completion sink.
	Intermediate bool `json:"intermediate,omitempty"`
}

// Completion is the one-way notification sent once per finished scenario.
type Completion struct {
	SessionID  string              `json:"session_id"`
	ProfileID  string              `json:"profile_id"`
	ScenarioID string              `json:"scenario_id"`
	Difficulty scenario.Difficulty `json:"difficulty"`
	Score      int                 `json:"score"`
	Correct    int                 `json:"correct"`
	Total      int                 `json:"total"`
	TimedOut   bool                `json:"timed_out"`
	// IsEnhanced is set when a role, complications or a chain shaped the run.
	IsEnhanced bool            `json:"is_enhanced"`
	ChainType  string          `json:"chain_type,omitempty"`
	Resources  resources.State `json:"resources"`
}

// CompletionSink receives completions. Errors are logged and ignored.
type CompletionSink interface {
	OnScenarioComplete(ctx context.Context, c Completion) error
}

// ScoreHistory supplies past scores, oldest first, for adaptive difficulty
// and insights.
type ScoreHistory interface {
	Scores(ctx context.Context, profileID string, limit int) ([]int, error)
}
