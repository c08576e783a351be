// Package scenario defines the scenario/v1 document types, the immutable
// step graph built from them, and the load-time validation pipeline.
package scenario

import (
	"fmt"

	"github.com/ormasoftchile/ehbo/pkg/resources"
)

// APIVersion is the only accepted scenario document version.
const APIVersion = "scenario/v1"

// ---------------------------------------------------------------------------
// Difficulty
// ---------------------------------------------------------------------------

// Difficulty is the player's preference tier.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	switch d {
	case Beginner, Intermediate, Advanced:
		return true
	}
	return false
}

// ParseDifficulty converts s to a Difficulty; the empty string means Beginner.
func ParseDifficulty(s string) (Difficulty, error) {
	if s == "" {
		return Beginner, nil
	}
	d := Difficulty(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown difficulty %q: must be beginner, intermediate, or advanced", s)
	}
	return d, nil
}

// Setting tells complication selection where a scenario takes place.
type Setting string

const (
	Indoor  Setting = "indoor"
	Outdoor Setting = "outdoor"
)

// ---------------------------------------------------------------------------
// Scenario
// ---------------------------------------------------------------------------

// Scenario is one branching training exercise.
type Scenario struct {
	APIVersion  string     `yaml:"apiVersion"            json:"apiVersion"`
	ID          string     `yaml:"id"                    json:"id" jsonschema:"minLength=1"`
	Title       string     `yaml:"title"                 json:"title" jsonschema:"minLength=1"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Difficulty  Difficulty `yaml:"difficulty"            json:"difficulty" jsonschema:"enum=beginner,enum=intermediate,enum=advanced"`
	Setting     Setting    `yaml:"setting,omitempty"     json:"setting,omitempty" jsonschema:"enum=indoor,enum=outdoor"`
	Tags        []string   `yaml:"tags,omitempty"        json:"tags,omitempty"`
	Steps       []Step     `yaml:"steps"                 json:"steps" jsonschema:"minItems=1"`
}

// IsOutdoor reports whether weather-dependent complications apply.
// An unspecified setting counts as indoor.
func (s *Scenario) IsOutdoor() bool {
	return s.Setting == Outdoor
}

// Step is a single decision point.
type Step struct {
	ID               string   `yaml:"id"                    json:"id" jsonschema:"minLength=1"`
	Question         string   `yaml:"question"              json:"question" jsonschema:"minLength=1"`
	Options          []Option `yaml:"options"               json:"options" jsonschema:"minItems=1"`
	TimeLimitSeconds int      `yaml:"time_limit"            json:"time_limit" jsonschema:"minimum=1"`
	Explanation      string   `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

// Option finds an option by id.
func (s *Step) Option(id string) (*Option, bool) {
	for i := range s.Options {
		if s.Options[i].ID == id {
			return &s.Options[i], true
		}
	}
	return nil, false
}

// Option is one selectable answer. An empty Next marks a terminal branch.
type Option struct {
	ID       string           `yaml:"id"                 json:"id" jsonschema:"minLength=1"`
	Text     string           `yaml:"text"               json:"text" jsonschema:"minLength=1"`
	Correct  bool             `yaml:"correct,omitempty"  json:"correct,omitempty"`
	Feedback string           `yaml:"feedback,omitempty" json:"feedback,omitempty"`
	Next     string           `yaml:"next,omitempty"     json:"next,omitempty"`
	Effect   *resources.Delta `yaml:"effect,omitempty"   json:"effect,omitempty"`
}

// Terminal reports whether the option ends the scenario by construction.
func (o *Option) Terminal() bool {
	return o.Next == ""
}

// Clone returns a copy whose steps and options can be rewritten without
// touching s. Option effects are shared.
func (s *Scenario) Clone() *Scenario {
	c := *s
	c.Steps = make([]Step, len(s.Steps))
	copy(c.Steps, s.Steps)
	for i := range c.Steps {
		c.Steps[i].Options = append([]Option(nil), s.Steps[i].Options...)
	}
	if s.Tags != nil {
		c.Tags = append([]string(nil), s.Tags...)
	}
	return &c
}
