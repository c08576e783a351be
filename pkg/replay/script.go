// Package replay plays scenarios from scripted answers and checks the
// outcome against expectations, for authoring regression tests.
package replay

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/ehbo/pkg/engine"
)

// Policy picks an option for a step the script does not answer.
type Policy string

const (
	// PolicyStrict fails the run when a step has no scripted answer.
	PolicyStrict  Policy = "strict"
	PolicyCorrect Policy = "correct"
	PolicyFirst   Policy = "first"
)

// Test is one *.test.yaml file.
type Test struct {
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
	Script      Script   `yaml:"script"`
	Expect      Expect   `yaml:"expect"`
}

// Script drives a play-through.
type Script struct {
	// Scenario is a catalogue id; ScenarioFile a path relative to the test.
	Scenario     string `yaml:"scenario,omitempty"`
	ScenarioFile string `yaml:"scenario_file,omitempty"`
	// Chain starts the named chain instead of a single scenario.
	Chain            string         `yaml:"chain,omitempty"`
	Seed             int64          `yaml:"seed,omitempty"`
	Profile          engine.Profile `yaml:"profile,omitempty"`
	ChainProbability float64        `yaml:"chain_probability,omitempty"`
	// Roles and Complications default to true: the catalogue tables are used.
	Roles         *bool `yaml:"roles,omitempty"`
	Complications *bool `yaml:"complications,omitempty"`
	// Answers maps a step id, or "scenario/step" inside chains, to the option
	// chosen on each visit. The last entry repeats.
	Answers map[string][]string `yaml:"answers,omitempty"`
	// Wait ticks the clock this many seconds before answering the step.
	Wait map[string]int `yaml:"wait,omitempty"`
	// Timeouts lists steps whose timer is left to expire.
	Timeouts []string `yaml:"timeouts,omitempty"`
	// Choices maps a complication name to the adaptation picked; the first
	// adaptation is used otherwise.
	Choices       map[string]string `yaml:"choices,omitempty"`
	DefaultPolicy Policy            `yaml:"default_policy,omitempty"`
}

// Expect lists assertions; omitted fields are not checked. Numeric fields
// accept comparisons such as ">=80".
type Expect struct {
	State        string            `yaml:"state,omitempty"          json:"state,omitempty"`
	Score        string            `yaml:"score,omitempty"          json:"score,omitempty"`
	Correct      string            `yaml:"correct,omitempty"        json:"correct,omitempty"`
	TimedOut     *bool             `yaml:"timed_out,omitempty"      json:"timed_out,omitempty"`
	Role         string            `yaml:"role,omitempty"           json:"role,omitempty"`
	Chain        []string          `yaml:"chain,omitempty"          json:"chain,omitempty"`
	MustReach    []string          `yaml:"must_reach,omitempty"     json:"must_reach,omitempty"`
	MustNotReach []string          `yaml:"must_not_reach,omitempty" json:"must_not_reach,omitempty"`
	StepResults  map[string]string `yaml:"step_results,omitempty"   json:"step_results,omitempty"`
	Insights     []string          `yaml:"insights,omitempty"       json:"insights,omitempty"`
	Resources    map[string]string `yaml:"resources,omitempty"      json:"resources,omitempty"`
}

// LoadTest reads a test file.
func LoadTest(path string) (*Test, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read test: %w", err)
	}
	return ParseTest(data)
}

// ParseTest parses test YAML. Unknown fields are rejected.
func ParseTest(data []byte) (*Test, error) {
	var t Test
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse test: %w", err)
	}
	if t.Script.Scenario == "" && t.Script.ScenarioFile == "" && t.Script.Chain == "" {
		return nil, fmt.Errorf("parse test: script needs scenario, scenario_file or chain")
	}
	switch t.Script.DefaultPolicy {
	case "":
		t.Script.DefaultPolicy = PolicyStrict
	case PolicyStrict, PolicyCorrect, PolicyFirst:
	default:
		return nil, fmt.Errorf("parse test: unknown default_policy %q", t.Script.DefaultPolicy)
	}
	return &t, nil
}
