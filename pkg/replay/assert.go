package replay

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// AssertionResult is the outcome of a single check.
type AssertionResult struct {
	Type     string `json:"type"`
	Key      string `json:"key,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// Evaluate checks every expectation in e against run.
func Evaluate(e *Expect, run *RunResult) []AssertionResult {
	var results []AssertionResult

	if e.State != "" {
		results = append(results, exact("state", "", e.State, run.State))
	}
	if e.Score != "" {
		results = append(results, compare("score", "", e.Score, strconv.Itoa(run.Score)))
	}
	if e.Correct != "" {
		results = append(results, compare("correct", "", e.Correct, strconv.Itoa(run.Correct)))
	}
	if e.TimedOut != nil {
		results = append(results, exact("timed_out", "", strconv.FormatBool(*e.TimedOut), strconv.FormatBool(run.TimedOut)))
	}
	if e.Role != "" {
		results = append(results, exact("role", "", e.Role, run.Role))
	}
	if len(e.Chain) > 0 {
		results = append(results, evalChain(e.Chain, run.Chain)...)
	}
	for _, step := range e.MustReach {
		results = append(results, evalReach(step, run.Visited, true))
	}
	for _, step := range e.MustNotReach {
		results = append(results, evalReach(step, run.Visited, false))
	}
	for _, step := range sortedKeys(e.StepResults) {
		actual, ok := run.StepResults[step]
		if !ok {
			results = append(results, AssertionResult{
				Type: "step_result", Key: step, Expected: e.StepResults[step],
				Message: fmt.Sprintf("step %q was not answered", step),
			})
			continue
		}
		results = append(results, exact("step_result", step, e.StepResults[step], actual))
	}
	for _, kind := range e.Insights {
		results = append(results, evalInsight(kind, run.Insights))
	}
	resources := map[string]int{
		"time":          run.Resources.Time,
		"stress":        run.Resources.Stress,
		"effectiveness": run.Resources.Effectiveness,
	}
	for _, name := range sortedKeys(e.Resources) {
		actual, ok := resources[name]
		if !ok {
			results = append(results, AssertionResult{
				Type: "resource", Key: name, Expected: e.Resources[name],
				Message: fmt.Sprintf("unknown resource %q", name),
			})
			continue
		}
		results = append(results, compare("resource", name, e.Resources[name], strconv.Itoa(actual)))
	}
	return results
}

// HasFailures reports whether any assertion failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func exact(typ, key, expected, actual string) AssertionResult {
	r := AssertionResult{Type: typ, Key: key, Expected: expected, Actual: actual, Passed: expected == actual}
	if !r.Passed {
		r.Message = fmt.Sprintf("expected %s %q, got %q", typ, expected, actual)
	}
	return r
}

func compare(typ, key, expected, actual string) AssertionResult {
	passed, msg := compareValue(expected, actual)
	return AssertionResult{Type: typ, Key: key, Expected: expected, Actual: actual, Passed: passed, Message: msg}
}

// compareValue matches actual against expected, which is one of:
//   - Regex:   "/pattern/"
//   - Numeric: ">0", "<100", ">=1", "<=50", "==0", "!=0"
//   - Exact:   any other string
func compareValue(expected, actual string) (bool, string) {
	if len(expected) >= 2 && expected[0] == '/' && expected[len(expected)-1] == '/' {
		pattern := expected[1 : len(expected)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid regex %q: %v", pattern, err)
		}
		if re.MatchString(actual) {
			return true, ""
		}
		return false, fmt.Sprintf("value %q does not match pattern %s", actual, expected)
	}

	for _, op := range []string{">=", "<=", "!=", "==", ">", "<"} {
		if strings.HasPrefix(expected, op) {
			return compareNumeric(op, strings.TrimSpace(expected[len(op):]), actual)
		}
	}

	if expected == actual {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q, got %q", expected, actual)
}

func compareNumeric(op, threshold, actual string) (bool, string) {
	t, tErr := strconv.ParseFloat(threshold, 64)
	a, aErr := strconv.ParseFloat(actual, 64)
	if tErr != nil || aErr != nil {
		return false, fmt.Sprintf("numeric comparison %s%s failed: cannot parse %q or %q as number", op, threshold, actual, threshold)
	}

	var passed bool
	switch op {
	case ">":
		passed = a > t
	case "<":
		passed = a < t
	case ">=":
		passed = a >= t
	case "<=":
		passed = a <= t
	case "==":
		passed = a == t
	case "!=":
		passed = a != t
	}
	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s%s, got %s", op, threshold, actual)
}

// evalReach matches step either as "scenario/step" or as a bare step id.
func evalReach(step string, visited []string, want bool) AssertionResult {
	typ := "must_reach"
	if !want {
		typ = "must_not_reach"
	}
	found := false
	for _, v := range visited {
		if v == step || strings.HasSuffix(v, "/"+step) {
			found = true
			break
		}
	}
	r := AssertionResult{Type: typ, Key: step, Passed: found == want}
	switch {
	case r.Passed:
	case want:
		r.Message = fmt.Sprintf("step %q was not visited", step)
	default:
		r.Message = fmt.Sprintf("step %q was visited but should not have been", step)
	}
	return r
}

func evalInsight(kind string, got []string) AssertionResult {
	for _, g := range got {
		if g == kind {
			return AssertionResult{Type: "insight", Key: kind, Passed: true}
		}
	}
	return AssertionResult{
		Type: "insight", Key: kind, Actual: strings.Join(got, ","),
		Message: fmt.Sprintf("insight %q not produced", kind),
	}
}

func evalChain(expected, actual []string) []AssertionResult {
	var results []AssertionResult
	for i, exp := range expected {
		key := fmt.Sprintf("[%d]", i)
		if i >= len(actual) {
			results = append(results, AssertionResult{
				Type: "chain", Key: key, Expected: exp,
				Message: fmt.Sprintf("chain[%d]: expected %q but only %d scenarios were played", i, exp, len(actual)),
			})
			continue
		}
		results = append(results, exact("chain", key, exp, actual[i]))
	}
	if len(actual) > len(expected) {
		results = append(results, AssertionResult{
			Type: "chain", Key: "length",
			Expected: strconv.Itoa(len(expected)), Actual: strconv.Itoa(len(actual)),
			Message: fmt.Sprintf("chain played %d scenarios, expected %d", len(actual), len(expected)),
		})
	}
	return results
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
