package scenario

import "fmt"

// Catalogue supplies authored scenarios. The engine reads from it and never
// mutates what it returns.
type Catalogue interface {
	Scenario(id string) (*Scenario, bool)
	List() []*Scenario
}

// Library is an in-memory Catalogue preserving insertion order.
type Library struct {
	byID  map[string]*Scenario
	order []string
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{byID: make(map[string]*Scenario)}
}

// Add registers sc. Duplicate ids are rejected.
func (l *Library) Add(sc *Scenario) error {
	if sc == nil || sc.ID == "" {
		return fmt.Errorf("scenario id is required")
	}
	if _, dup := l.byID[sc.ID]; dup {
		return fmt.Errorf("duplicate scenario id %q", sc.ID)
	}
	l.byID[sc.ID] = sc
	l.order = append(l.order, sc.ID)
	return nil
}

// Scenario looks up a scenario by id.
func (l *Library) Scenario(id string) (*Scenario, bool) {
	sc, ok := l.byID[id]
	return sc, ok
}

// List returns the scenarios in insertion order.
func (l *Library) List() []*Scenario {
	out := make([]*Scenario, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// Len returns the number of scenarios.
func (l *Library) Len() int { return len(l.order) }
