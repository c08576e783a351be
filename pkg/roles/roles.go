// Package roles assigns a persona to the player for one scenario instance.
//
// Assignment is a pure function of the role table, the difficulty tier and
// one draw from the injected random source.
package roles

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// Well-known role names.
const (
	Bystander      = "bystander"
	FirstResponder = "first_responder"
	SchoolStaff    = "school_staff"
	Coach          = "coach"
	TeamLeader     = "team_leader"
)

// StressLevel is the authored pressure of a role.
type StressLevel string

const (
	StressLow     StressLevel = "low"
	StressMedium  StressLevel = "medium"
	StressHigh    StressLevel = "high"
	StressExtreme StressLevel = "extreme"
)

// InitialStress is the stress gauge a role starts a session with.
func (l StressLevel) InitialStress() int {
	switch l {
	case StressLow:
		return 15
	case StressMedium:
		return 30
	case StressHigh:
		return 50
	case StressExtreme:
		return 70
	default:
		return 20
	}
}

// Role is a persona assigned once per scenario instance.
type Role struct {
	Name             string      `yaml:"name"             json:"name"`
	Title            string      `yaml:"title,omitempty"  json:"title,omitempty"`
	Description      string      `yaml:"description"      json:"description"`
	StressLevel      StressLevel `yaml:"stress_level"     json:"stress_level"`
	Responsibilities []string    `yaml:"responsibilities" json:"responsibilities"`
	Challenges       []string    `yaml:"challenges"       json:"challenges"`
	// Subject replaces the scenario's generic subject noun in step text.
	Subject string `yaml:"subject,omitempty" json:"subject,omitempty"`
}

// InitialStress seeds the session's stress gauge.
func (r Role) InitialStress() int {
	return r.StressLevel.InitialStress()
}

// ErrNoRoles is returned when the table has no candidate for the tier.
var ErrNoRoles = errors.New("roles: no assignable role")

// beginnerWeights favours the bystander role.
var beginnerWeights = map[string]float64{
	Bystander:      2,
	FirstResponder: 1,
	SchoolStaff:    1,
}

var intermediatePool = []string{FirstResponder, Bystander, SchoolStaff}

// Assign picks a role for the difficulty tier.
//
//   - beginner: weighted draw over bystander (2), first_responder (1) and
//     school_staff (1); never the most stress-heavy role in the table.
//   - intermediate: uniform over first_responder, bystander, school_staff.
//   - advanced: uniform over every role in the table.
//
// When a custom table lacks the named roles, beginner and intermediate fall
// back to every role except the most stress-heavy one.
func Assign(table []Role, d scenario.Difficulty, src random.Source) (Role, error) {
	if len(table) == 0 {
		return Role{}, ErrNoRoles
	}
	switch d {
	case scenario.Advanced:
		return table[src.Intn(len(table))], nil

	case scenario.Intermediate:
		pool := pick(table, intermediatePool)
		if len(pool) == 0 {
			pool = withoutHeaviest(table)
		}
		if len(pool) == 0 {
			return Role{}, ErrNoRoles
		}
		return pool[src.Intn(len(pool))], nil

	default:
		heaviest := Heaviest(table)
		var pool []Role
		var weights []float64
		for _, r := range table {
			w, ok := beginnerWeights[r.Name]
			if !ok || r.Name == heaviest.Name {
				continue
			}
			pool = append(pool, r)
			weights = append(weights, w)
		}
		if len(pool) == 0 {
			pool = withoutHeaviest(table)
			weights = make([]float64, len(pool))
			for i := range weights {
				weights[i] = 1
			}
		}
		if len(pool) == 0 {
			return Role{}, ErrNoRoles
		}
		return pool[weighted(weights, src.Float64())], nil
	}
}

// Heaviest returns the role with the highest initial stress; ties keep the
// earliest entry.
func Heaviest(table []Role) Role {
	var best Role
	for i, r := range table {
		if i == 0 || r.InitialStress() > best.InitialStress() {
			best = r
		}
	}
	return best
}

func pick(table []Role, names []string) []Role {
	var out []Role
	for _, name := range names {
		for _, r := range table {
			if r.Name == name {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func withoutHeaviest(table []Role) []Role {
	if len(table) <= 1 {
		return nil
	}
	heaviest := Heaviest(table)
	var out []Role
	for _, r := range table {
		if r.Name != heaviest.Name {
			out = append(out, r)
		}
	}
	return out
}

// weighted maps a draw in [0,1) onto an index of weights.
func weighted(weights []float64, draw float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	target := draw * total
	acc := 0.0
	for i, w := range weights {
		acc += w
		if target < acc {
			return i
		}
	}
	return len(weights) - 1
}

// Decorate replaces the generic subject noun in text with the role's
// referent. A capitalized occurrence stays capitalized.
func Decorate(text, generic string, r Role) string {
	if generic == "" || r.Subject == "" || !strings.Contains(strings.ToLower(text), strings.ToLower(generic)) {
		return text
	}
	text = strings.ReplaceAll(text, generic, r.Subject)
	return strings.ReplaceAll(text, capitalize(generic), capitalize(r.Subject))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// DecorateScenario returns a copy of sc with every question, explanation,
// option and feedback line rewritten for r.
func DecorateScenario(sc *scenario.Scenario, generic string, r Role) *scenario.Scenario {
	c := sc.Clone()
	for i := range c.Steps {
		st := &c.Steps[i]
		st.Question = Decorate(st.Question, generic, r)
		st.Explanation = Decorate(st.Explanation, generic, r)
		for j := range st.Options {
			st.Options[j].Text = Decorate(st.Options[j].Text, generic, r)
			st.Options[j].Feedback = Decorate(st.Options[j].Feedback, generic, r)
		}
	}
	return c
}
