// Package resources tracks the three bounded gauges of a play-through:
// time, stress and effectiveness. Every field stays within [Min, Max].
package resources

import "fmt"

// Gauge bounds.
const (
	Min = 0
	Max = 100
)

// Starting values used when no role seeds stress.
const (
	DefaultTime          = 100
	DefaultStress        = 20
	DefaultEffectiveness = 70
)

// State is a snapshot of the three gauges.
type State struct {
	Time          int `yaml:"time"          json:"time"`
	Stress        int `yaml:"stress"        json:"stress"`
	Effectiveness int `yaml:"effectiveness" json:"effectiveness"`
}

func (s State) String() string {
	return fmt.Sprintf("time=%d stress=%d effectiveness=%d", s.Time, s.Stress, s.Effectiveness)
}

// Delta is a partial change to State. A nil field leaves that gauge alone.
type Delta struct {
	Time          *int `yaml:"time,omitempty"          json:"time,omitempty"`
	Stress        *int `yaml:"stress,omitempty"        json:"stress,omitempty"`
	Effectiveness *int `yaml:"effectiveness,omitempty" json:"effectiveness,omitempty"`
}

// Int returns a pointer to v, for building deltas inline.
func Int(v int) *int { return &v }

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.Time == nil && d.Stress == nil && d.Effectiveness == nil
}

// Initial returns the starting state for the given stress seed.
func Initial(stress int) State {
	return State{
		Time:          DefaultTime,
		Stress:        Clamp(stress),
		Effectiveness: DefaultEffectiveness,
	}
}

// Clamp bounds v to [Min, Max].
func Clamp(v int) int {
	if v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// Model owns the mutable gauge state for one session.
type Model struct {
	state State
}

// NewModel creates a model, clamping the initial state.
func NewModel(initial State) *Model {
	return &Model{state: State{
		Time:          Clamp(initial.Time),
		Stress:        Clamp(initial.Stress),
		Effectiveness: Clamp(initial.Effectiveness),
	}}
}

// Apply adds each present field of d and clamps the result.
func (m *Model) Apply(d Delta) State {
	if d.Time != nil {
		m.state.Time = addClamped(m.state.Time, *d.Time)
	}
	if d.Stress != nil {
		m.state.Stress = addClamped(m.state.Stress, *d.Stress)
	}
	if d.Effectiveness != nil {
		m.state.Effectiveness = addClamped(m.state.Effectiveness, *d.Effectiveness)
	}
	return m.state
}

// State returns the current gauges.
func (m *Model) State() State {
	return m.state
}

// addClamped avoids int overflow on extreme deltas before clamping.
func addClamped(cur, delta int) int {
	if delta > Max-cur {
		return Max
	}
	if delta < Min-cur {
		return Min
	}
	return Clamp(cur + delta)
}

// AnswerDelta is the correctness consequence of answering a step.
func AnswerDelta(correct bool) Delta {
	if correct {
		return Delta{Stress: Int(-5), Effectiveness: Int(5)}
	}
	return Delta{Stress: Int(10), Effectiveness: Int(-10)}
}

// TimeCostDelta is charged per answered step in adaptive mode.
func TimeCostDelta() Delta {
	return Delta{Time: Int(-2)}
}
