package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// Validation phases.
const (
	PhaseStructural = "structural"
	PhaseSemantic   = "semantic"
	PhaseDomain     = "domain"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents one error or warning from the validation pipeline.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("[%s] %s at %s", e.Phase, e.Message, e.Path)
	}
	return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
}

func errorf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(msg, args...), Severity: SeverityError}
}

func warningf(phase, path, msg string, args ...any) *ValidationError {
	return &ValidationError{Phase: phase, Path: path, Message: fmt.Sprintf(msg, args...), Severity: SeverityWarning}
}

// HasErrors reports whether errs contains at least one error-severity entry.
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateFile runs the full 3-phase pipeline on a scenario file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (graph rules)
func ValidateFile(path string) (*Scenario, []*ValidationError) {
	sc, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{errorf(PhaseStructural, "", "failed to load: %s", err)}
	}
	return sc, Validate(sc, DefaultMaxRevisits)
}

// Validate runs phases 2+3 on an already-loaded scenario.
func Validate(sc *Scenario, maxRevisits int) []*ValidationError {
	errs := validateSemantic(sc)
	if HasErrors(errs) {
		return errs
	}
	return append(errs, validateDomain(sc, maxRevisits)...)
}

var (
	compiledOnce   sync.Once
	compiledSchema *sjsonschema.Schema
	compileErr     error
)

// compiledScenarioSchema generates and compiles the schema once per process.
func compiledScenarioSchema() (*sjsonschema.Schema, error) {
	compiledOnce.Do(func() {
		schemaJSON, err := GenerateJSONSchema()
		if err != nil {
			compileErr = fmt.Errorf("generate schema: %w", err)
			return
		}
		var schemaDoc any
		if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
			compileErr = fmt.Errorf("unmarshal schema: %w", err)
			return
		}
		c := sjsonschema.NewCompiler()
		if err := c.AddResource("scenario-v1.json", schemaDoc); err != nil {
			compileErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, compileErr = c.Compile("scenario-v1.json")
	})
	return compiledSchema, compileErr
}

// validateSemantic validates the scenario against the JSON Schema.
func validateSemantic(sc *Scenario) []*ValidationError {
	sch, err := compiledScenarioSchema()
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "%s", err)}
	}

	data, err := json.Marshal(sc)
	if err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "marshal for schema validation: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{errorf(PhaseSemantic, "", "unmarshal document: %v", err)}
	}

	if err := sch.Validate(doc); err != nil {
		ve, ok := err.(*sjsonschema.ValidationError)
		if !ok {
			return []*ValidationError{errorf(PhaseSemantic, "", "%s", err)}
		}
		var errs []*ValidationError
		for _, cause := range flattenValidationErrors(ve) {
			errs = append(errs, &ValidationError{
				Phase:    PhaseSemantic,
				Path:     strings.Join(cause.InstanceLocation, "/"),
				Message:  fmt.Sprintf("%v", cause.ErrorKind),
				Severity: SeverityError,
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// validateDomain applies the graph rules the schema cannot express.
func validateDomain(sc *Scenario, maxRevisits int) []*ValidationError {
	var errs []*ValidationError

	if sc.APIVersion != APIVersion {
		errs = append(errs, errorf(PhaseDomain, "apiVersion", "unrecognized apiVersion %q, expected %q", sc.APIVersion, APIVersion))
	}

	seen := make(map[string]int)
	for i, st := range sc.Steps {
		p := fmt.Sprintf("steps[%d]", i)
		if prev, dup := seen[st.ID]; dup {
			errs = append(errs, errorf(PhaseDomain, p+".id", "duplicate step id %q (first at steps[%d])", st.ID, prev))
		} else {
			seen[st.ID] = i
		}

		optSeen := make(map[string]bool)
		hasCorrect := false
		for j, opt := range st.Options {
			if optSeen[opt.ID] {
				errs = append(errs, errorf(PhaseDomain, fmt.Sprintf("%s.options[%d].id", p, j), "duplicate option id %q in step %q", opt.ID, st.ID))
			}
			optSeen[opt.ID] = true
			hasCorrect = hasCorrect || opt.Correct
			if opt.Next == st.ID {
				errs = append(errs, warningf(PhaseDomain, fmt.Sprintf("%s.options[%d].next", p, j), "option %q of step %q loops to itself", opt.ID, st.ID))
			}
		}
		if !hasCorrect {
			errs = append(errs, warningf(PhaseDomain, p, "step %q has no correct option", st.ID))
		}
	}

	g := NewGraph(sc)
	dangling := g.Validate()
	errs = append(errs, dangling...)

	errs = append(errs, unreachable(g)...)

	if len(dangling) == 0 {
		ex := Explore(g, maxRevisits)
		if len(ex.Unbounded) > 0 {
			errs = append(errs, warningf(PhaseDomain, "steps",
				"%d option path(s) revisit a step more than %d times; the runtime step limit will end them", len(ex.Unbounded), maxRevisits))
		}
		if ex.Truncated {
			errs = append(errs, warningf(PhaseDomain, "steps", "path enumeration stopped after %d paths", maxExplorePaths))
		}
	}
	return errs
}

// unreachable warns about steps no path from the first step can enter.
func unreachable(g *Graph) []*ValidationError {
	first := g.First()
	if first == nil {
		return nil
	}
	reached := map[string]bool{first.ID: true}
	queue := []*Step{first}
	for len(queue) > 0 {
		st := queue[0]
		queue = queue[1:]
		for i := range st.Options {
			next, ok, _ := g.Resolve(&st.Options[i])
			if ok && !reached[next.ID] {
				reached[next.ID] = true
				queue = append(queue, next)
			}
		}
	}
	var errs []*ValidationError
	for i, st := range g.Scenario().Steps {
		if !reached[st.ID] {
			errs = append(errs, warningf(PhaseDomain, fmt.Sprintf("steps[%d]", i), "step %q is unreachable from %q", st.ID, first.ID))
		}
	}
	return errs
}
