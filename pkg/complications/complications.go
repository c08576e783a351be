// Package complications selects scripted mid-scenario disruptions and tracks
// their resolution within one play-through.
package complications

import (
	"errors"
	"fmt"

	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/resources"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// Category groups complications in the catalogue.
type Category string

const (
	Environmental Category = "environmental"
	Social        Category = "social"
	Medical       Category = "medical"
	Resource      Category = "resource"
)

// Categories lists every category in catalogue order.
var Categories = []Category{Environmental, Social, Medical, Resource}

// Choice is one adaptation the player can pick to resolve a complication.
type Choice struct {
	ID     string          `yaml:"id"               json:"id"`
	Text   string          `yaml:"text"             json:"text"`
	Effect resources.Delta `yaml:"effect,omitempty" json:"effect,omitempty"`
}

// Complication is a catalogue entry, and once selected, a per-session
// instance with a trigger index.
type Complication struct {
	Name        string   `yaml:"name"                   json:"name"`
	Category    Category `yaml:"category"               json:"category"`
	Description string   `yaml:"description"            json:"description"`
	Effects     []string `yaml:"effects,omitempty"      json:"effects,omitempty"`
	Adaptations []Choice `yaml:"adaptations"            json:"adaptations"`
	Probability float64  `yaml:"probability"            json:"probability"`
	OutdoorOnly bool     `yaml:"outdoor_only,omitempty" json:"outdoor_only,omitempty"`

	TriggerStepIndex int  `yaml:"-" json:"trigger_step_index"`
	Resolved         bool `yaml:"-" json:"resolved"`
}

// Choice finds an adaptation by id.
func (c *Complication) Choice(id string) (Choice, bool) {
	for _, ch := range c.Adaptations {
		if ch.ID == id {
			return ch, true
		}
	}
	return Choice{}, false
}

// Context describes the scenario a selection is made for.
type Context struct {
	Outdoor bool
}

// ContextFor derives the selection context from a scenario.
func ContextFor(sc *scenario.Scenario) Context {
	return Context{Outdoor: sc.IsOutdoor()}
}

// Compatible reports whether c may appear in ctx.
func (c *Complication) Compatible(ctx Context) bool {
	return !c.OutdoorOnly || ctx.Outdoor
}

// MaxForDifficulty is the tier cap on selected complications.
func MaxForDifficulty(d scenario.Difficulty) int {
	switch d {
	case scenario.Intermediate:
		return 1
	case scenario.Advanced:
		return 2
	default:
		return 0
	}
}

// Select draws the complications for one scenario instance.
//
// Every catalogue entry gets one independent probability draw; entries whose
// draw exceeds their probability, or that do not fit ctx, are dropped. The
// survivors are shuffled and at most MaxForDifficulty(d) are kept, each with
// a trigger index in [0, stepCount).
func Select(catalogue []Complication, ctx Context, d scenario.Difficulty, stepCount int, src random.Source) []Complication {
	limit := MaxForDifficulty(d)
	if limit == 0 || stepCount <= 0 {
		return nil
	}

	var candidates []Complication
	for _, c := range catalogue {
		if src.Float64() > c.Probability {
			continue
		}
		if !c.Compatible(ctx) {
			continue
		}
		candidates = append(candidates, c)
	}

	src.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	selected := make([]Complication, len(candidates))
	for i, c := range candidates {
		c.Adaptations = append([]Choice(nil), c.Adaptations...)
		c.TriggerStepIndex = src.Intn(stepCount)
		c.Resolved = false
		selected[i] = c
	}
	return selected
}

// Errors returned by Tracker.
var (
	ErrNoActive      = errors.New("complications: no active complication")
	ErrInvalidChoice = errors.New("complications: invalid choice")
)

// Tracker owns the selected complications of one session.
type Tracker struct {
	items  []Complication
	active int
}

// NewTracker takes ownership of selected.
func NewTracker(selected []Complication) *Tracker {
	return &Tracker{items: selected, active: -1}
}

// Pending returns the first unresolved complication triggered at stepIndex.
func (t *Tracker) Pending(stepIndex int) (*Complication, bool) {
	for i := range t.items {
		if !t.items[i].Resolved && t.items[i].TriggerStepIndex == stepIndex {
			return &t.items[i], true
		}
	}
	return nil, false
}

// Trigger marks the pending complication at stepIndex as active.
func (t *Tracker) Trigger(stepIndex int) (*Complication, bool) {
	for i := range t.items {
		if !t.items[i].Resolved && t.items[i].TriggerStepIndex == stepIndex {
			t.active = i
			return &t.items[i], true
		}
	}
	return nil, false
}

// Active returns the complication awaiting a choice, if any.
func (t *Tracker) Active() (*Complication, bool) {
	if t.active < 0 {
		return nil, false
	}
	return &t.items[t.active], true
}

// Resolve applies choiceID to the active complication and marks it resolved.
// A resolved complication is never pending again.
func (t *Tracker) Resolve(choiceID string) (Choice, error) {
	c, ok := t.Active()
	if !ok {
		return Choice{}, ErrNoActive
	}
	ch, ok := c.Choice(choiceID)
	if !ok {
		return Choice{}, fmt.Errorf("%w: %q is not an adaptation of %q", ErrInvalidChoice, choiceID, c.Name)
	}
	c.Resolved = true
	t.active = -1
	return ch, nil
}

// Items returns a copy of every tracked complication.
func (t *Tracker) Items() []Complication {
	out := make([]Complication, len(t.items))
	copy(out, t.items)
	return out
}

// Len is the number of selected complications.
func (t *Tracker) Len() int { return len(t.items) }
