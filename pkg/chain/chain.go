// Package chain sequences scenarios into multi-stage chains whose next stage
// may depend on how the previous one went.
package chain

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// Link is one stage of a chain. It names its successor either with a fixed
// Next link id or with a Resolve expression over the previous result. Both
// empty ends the chain.
type Link struct {
	ID         string `yaml:"id"                    json:"id"`
	ScenarioID string `yaml:"scenario_id,omitempty" json:"scenario_id,omitempty"`
	Next       string `yaml:"next,omitempty"        json:"next,omitempty"`
	// Resolve is an expr-lang expression returning the next link id as a
	// string, or nil to end the chain. Variables: score, correct, total,
	// timed_out, scenario_id, difficulty, stage.
	Resolve string `yaml:"resolve,omitempty" json:"resolve,omitempty"`
}

// Definition describes a chain type.
type Definition struct {
	Type        string `yaml:"type"                  json:"type"`
	Name        string `yaml:"name"                  json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Stages is the number of scenarios a play-through of the chain visits.
	// Zero means len(Links).
	Stages int    `yaml:"stages,omitempty" json:"stages,omitempty"`
	Links  []Link `yaml:"links"            json:"links"`
}

func (d *Definition) total() int {
	if d.Stages > 0 {
		return d.Stages
	}
	return len(d.Links)
}

func (d *Definition) link(id string) (*Link, bool) {
	for i := range d.Links {
		if d.Links[i].ID == id {
			return &d.Links[i], true
		}
	}
	return nil, false
}

// ScenarioSummary is the result of one completed chain stage.
type ScenarioSummary struct {
	ScenarioID string `json:"scenario_id"`
	Score      int    `json:"score"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	TimedOut   bool   `json:"timed_out"`
}

// State is the progress of one chain play-through.
type State struct {
	ChainType    string              `json:"chain_type"`
	Difficulty   scenario.Difficulty `json:"difficulty"`
	Links        []Link              `json:"links"`
	CurrentIndex int                 `json:"current_index"`
	CurrentLink  string              `json:"current_link"`
	Results      []ScenarioSummary   `json:"results"`
	IsComplete   bool                `json:"is_complete"`
	Total        int                 `json:"total"`
}

// Progress is the position within a chain.
type Progress struct {
	Current           int `json:"current"`
	Total             int `json:"total"`
	CompletionPercent int `json:"completion_percent"`
}

// Progress recomputes the chain position from s.
func (s *State) Progress() Progress {
	total := s.Total
	if total <= 0 {
		total = len(s.Links)
	}
	current := s.CurrentIndex
	if s.IsComplete || current > total {
		current = total
	}
	p := Progress{Current: current, Total: total}
	if total > 0 {
		p.CompletionPercent = int(math.Round(100 * float64(current) / float64(total)))
	}
	return p
}

// Scores returns the stage scores in play order.
func (s *State) Scores() []int {
	out := make([]int, len(s.Results))
	for i, r := range s.Results {
		out[i] = r.Score
	}
	return out
}

// Next names the scenario to play after a stage completes.
type Next struct {
	NextScenarioID string   `json:"next_scenario_id"`
	LinkID         string   `json:"link_id"`
	Progress       Progress `json:"progress"`
}

// Orchestrator holds the chain definitions and their compiled expressions.
type Orchestrator struct {
	defs     map[string]*Definition
	order    []string
	programs map[string]*vm.Program
	logger   *zap.Logger
}

// resolveEnv is the variable set visible to Resolve expressions.
func resolveEnv(prev ScenarioSummary, difficulty scenario.Difficulty, stage int) map[string]any {
	return map[string]any{
		"score":       prev.Score,
		"correct":     prev.Correct,
		"total":       prev.Total,
		"timed_out":   prev.TimedOut,
		"scenario_id": prev.ScenarioID,
		"difficulty":  string(difficulty),
		"stage":       stage,
	}
}

// New validates defs and compiles every Resolve expression.
func New(defs []Definition, logger *zap.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		defs:     make(map[string]*Definition, len(defs)),
		programs: make(map[string]*vm.Program),
		logger:   logger,
	}
	var errs []error
	for i := range defs {
		d := defs[i]
		if d.Type == "" {
			errs = append(errs, fmt.Errorf("chains[%d]: type is required", i))
			continue
		}
		if _, dup := o.defs[d.Type]; dup {
			errs = append(errs, fmt.Errorf("chains[%d]: duplicate chain type %q", i, d.Type))
			continue
		}
		if len(d.Links) == 0 {
			errs = append(errs, fmt.Errorf("chain %q: at least one link is required", d.Type))
			continue
		}
		seen := make(map[string]bool)
		for _, l := range d.Links {
			if seen[l.ID] {
				errs = append(errs, fmt.Errorf("chain %q: duplicate link id %q", d.Type, l.ID))
			}
			seen[l.ID] = true
		}
		for _, l := range d.Links {
			if l.Next != "" && l.Resolve != "" {
				errs = append(errs, fmt.Errorf("chain %q link %q: next and resolve are mutually exclusive", d.Type, l.ID))
			}
			if l.Next != "" && !seen[l.Next] {
				errs = append(errs, fmt.Errorf("chain %q link %q: next references unknown link %q", d.Type, l.ID, l.Next))
			}
			if l.Resolve != "" {
				program, err := expr.Compile(l.Resolve, expr.Env(resolveEnv(ScenarioSummary{}, "", 0)))
				if err != nil {
					errs = append(errs, fmt.Errorf("chain %q link %q: compile resolve %q: %w", d.Type, l.ID, l.Resolve, err))
					continue
				}
				o.programs[programKey(d.Type, l.ID)] = program
			}
		}
		o.defs[d.Type] = &d
		o.order = append(o.order, d.Type)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return o, nil
}

func programKey(chainType, linkID string) string {
	return chainType + "/" + linkID
}

// Types lists the chain types in definition order.
func (o *Orchestrator) Types() []string {
	return append([]string(nil), o.order...)
}

// Definition looks up a chain type.
func (o *Orchestrator) Definition(chainType string) (*Definition, bool) {
	d, ok := o.defs[chainType]
	return d, ok
}

// InitializeChain starts a play-through of chainType. It returns nil when the
// type is unknown.
func (o *Orchestrator) InitializeChain(chainType string, difficulty scenario.Difficulty) *State {
	d, ok := o.defs[chainType]
	if !ok {
		o.logger.Info("unknown chain type", zap.String("chain_type", chainType))
		return nil
	}
	return &State{
		ChainType:   d.Type,
		Difficulty:  difficulty,
		Links:       append([]Link(nil), d.Links...),
		CurrentLink: d.Links[0].ID,
		Total:       d.total(),
	}
}

// CurrentScenario is the scenario id of the link being played. The first
// link may leave it empty, meaning whichever scenario the chain was entered
// from.
func (o *Orchestrator) CurrentScenario(s *State) string {
	if s == nil {
		return ""
	}
	for _, l := range s.Links {
		if l.ID == s.CurrentLink {
			return l.ScenarioID
		}
	}
	return ""
}

// GetNextScenario records previous as the result of the current stage and
// moves to the next link. It returns nil once the chain is complete.
func (o *Orchestrator) GetNextScenario(s *State, previous ScenarioSummary) (*Next, error) {
	if s == nil || s.IsComplete {
		return nil, nil
	}
	d, ok := o.defs[s.ChainType]
	if !ok {
		return nil, fmt.Errorf("chain: unknown chain type %q", s.ChainType)
	}
	current, ok := d.link(s.CurrentLink)
	if !ok {
		return nil, fmt.Errorf("chain %q: unknown current link %q", s.ChainType, s.CurrentLink)
	}

	s.Results = append(s.Results, previous)
	s.CurrentIndex++

	nextID, err := o.nextLink(d, current, previous, s)
	if err != nil {
		s.IsComplete = true
		return nil, err
	}

	log := o.logger.With(zap.String("chain_type", s.ChainType), zap.String("link", current.ID))
	if nextID == "" {
		s.IsComplete = true
		log.Info("chain complete", zap.Int("stages", s.CurrentIndex))
		return nil, nil
	}
	next, ok := d.link(nextID)
	if !ok {
		s.IsComplete = true
		log.Warn("chain link resolved to unknown link; ending chain", zap.String("next", nextID))
		return nil, nil
	}
	if s.CurrentIndex >= len(d.Links) {
		s.IsComplete = true
		log.Warn("chain exceeded its link count; ending chain")
		return nil, nil
	}

	s.CurrentLink = next.ID
	log.Info("chain advanced", zap.String("next", next.ID), zap.String("scenario_id", next.ScenarioID))
	return &Next{NextScenarioID: next.ScenarioID, LinkID: next.ID, Progress: s.Progress()}, nil
}

func (o *Orchestrator) nextLink(d *Definition, l *Link, prev ScenarioSummary, s *State) (string, error) {
	if l.Resolve == "" {
		return l.Next, nil
	}
	program, ok := o.programs[programKey(d.Type, l.ID)]
	if !ok {
		return "", fmt.Errorf("chain %q link %q: resolve not compiled", d.Type, l.ID)
	}
	output, err := expr.Run(program, resolveEnv(prev, s.Difficulty, s.CurrentIndex))
	if err != nil {
		return "", fmt.Errorf("eval resolve %q: %w", l.Resolve, err)
	}
	switch v := output.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("resolve %q did not return a link id (got %T: %v)", l.Resolve, output, output)
	}
}

// MaybeStart draws whether a new chain begins with the scenario being
// started. No draw is made while a chain is active.
func MaybeStart(active bool, probability float64, src random.Source) bool {
	if active || probability <= 0 {
		return false
	}
	return src.Float64() < probability
}

// PickType chooses a chain type uniformly.
func PickType(types []string, src random.Source) string {
	if len(types) == 0 {
		return ""
	}
	return types[src.Intn(len(types))]
}

// definitionsFile is the on-disk layout of a chain definitions document.
type definitionsFile struct {
	Chains []Definition `yaml:"chains"`
}

// LoadDefinitions decodes a chain definitions document strictly.
func LoadDefinitions(r io.Reader) ([]Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f definitionsFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode chains: %w", err)
	}
	return f.Chains, nil
}

// LoadDefinitionsFile reads chain definitions from path.
func LoadDefinitionsFile(path string) ([]Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chains: %w", err)
	}
	defer f.Close()
	return LoadDefinitions(f)
}
