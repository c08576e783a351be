package scenario

import "fmt"

// Graph is the immutable step graph of one scenario. Cycles are allowed;
// forward progress is enforced by the runtime's step counter.
type Graph struct {
	sc    *Scenario
	index map[string]int
}

// NewGraph indexes sc. When step ids collide the first occurrence wins;
// Validate reports the duplicate.
func NewGraph(sc *Scenario) *Graph {
	idx := make(map[string]int, len(sc.Steps))
	for i, st := range sc.Steps {
		if _, dup := idx[st.ID]; !dup {
			idx[st.ID] = i
		}
	}
	return &Graph{sc: sc, index: idx}
}

// Scenario returns the underlying scenario.
func (g *Graph) Scenario() *Scenario { return g.sc }

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.sc.Steps) }

// First returns the entry step, or nil for an empty scenario.
func (g *Graph) First() *Step {
	if len(g.sc.Steps) == 0 {
		return nil
	}
	return &g.sc.Steps[0]
}

// Step looks up a step by id.
func (g *Graph) Step(id string) (*Step, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return &g.sc.Steps[i], true
}

// Index returns the position of step id in the scenario, or -1.
func (g *Graph) Index(id string) int {
	i, ok := g.index[id]
	if !ok {
		return -1
	}
	return i
}

// Resolve follows an option's edge. ok is false for a terminal option and
// for a dangling edge; dangling is true only in the latter case.
func (g *Graph) Resolve(opt *Option) (next *Step, ok bool, dangling bool) {
	if opt.Terminal() {
		return nil, false, false
	}
	st, found := g.Step(opt.Next)
	if !found {
		return nil, false, true
	}
	return st, true, false
}

// Validate lists every option whose next step does not exist.
func (g *Graph) Validate() []*ValidationError {
	var errs []*ValidationError
	for i, st := range g.sc.Steps {
		for j, opt := range st.Options {
			if opt.Terminal() {
				continue
			}
			if _, ok := g.index[opt.Next]; !ok {
				errs = append(errs, &ValidationError{
					Phase:    PhaseDomain,
					Path:     fmt.Sprintf("steps[%d].options[%d].next", i, j),
					Message:  fmt.Sprintf("option %q of step %q points to unknown step %q", opt.ID, st.ID, opt.Next),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}
