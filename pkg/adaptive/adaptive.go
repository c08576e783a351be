// Package adaptive adjusts difficulty from a player's recent scores.
package adaptive

import (
	"github.com/ormasoftchile/ehbo/pkg/resources"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
	"github.com/ormasoftchile/ehbo/pkg/scoring"
)

// Defaults for Controller.
const (
	DefaultWindow    = 5
	DefaultPromote   = 85.0
	DefaultDemote    = 50.0
	MinTimeLimit     = 5
	beginnerScaleNum = 3
	beginnerScaleDen = 2
	advancedScaleNum = 3
	advancedScaleDen = 4
)

var tiers = []scenario.Difficulty{scenario.Beginner, scenario.Intermediate, scenario.Advanced}

// Controller recommends a tier and shapes per-step pressure when adaptive
// mode is on.
type Controller struct {
	Enabled bool
	Window  int
	Promote float64
	Demote  float64
}

// New returns a controller with the default thresholds.
func New(enabled bool) *Controller {
	return &Controller{Enabled: enabled, Window: DefaultWindow, Promote: DefaultPromote, Demote: DefaultDemote}
}

// Recommend returns the tier to play next given the current one and the
// score history (oldest first). The mean of the trailing window moves the
// tier up or down one step at most.
func (c *Controller) Recommend(current scenario.Difficulty, history []int) scenario.Difficulty {
	if c == nil || !c.Enabled || len(history) == 0 {
		return current
	}
	window := c.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	mean := scoring.Mean(history)

	idx := tierIndex(current)
	switch {
	case mean >= c.Promote && idx < len(tiers)-1:
		return tiers[idx+1]
	case mean <= c.Demote && idx > 0:
		return tiers[idx-1]
	}
	return current
}

func tierIndex(d scenario.Difficulty) int {
	for i, t := range tiers {
		if t == d {
			return i
		}
	}
	return 0
}

// TimeCost is the per-answer time delta. Nil when adaptive mode is off.
func (c *Controller) TimeCost() *resources.Delta {
	if c == nil || !c.Enabled {
		return nil
	}
	d := resources.TimeCostDelta()
	return &d
}

// TimeLimit scales an authored step time limit for the tier. Beginners get
// half again as long and advanced players three quarters, never below
// MinTimeLimit.
func (c *Controller) TimeLimit(seconds int, d scenario.Difficulty) int {
	if c == nil || !c.Enabled {
		return seconds
	}
	switch d {
	case scenario.Beginner:
		seconds = seconds * beginnerScaleNum / beginnerScaleDen
	case scenario.Advanced:
		seconds = seconds * advancedScaleNum / advancedScaleDen
	}
	if seconds < MinTimeLimit {
		return MinTimeLimit
	}
	return seconds
}
