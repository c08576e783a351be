package replay

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/ehbo/pkg/catalog"
)

func runner(t *testing.T) *Runner {
	t.Helper()
	b, err := catalog.Load()
	require.NoError(t, err)
	return &Runner{Bundle: b}
}

func TestRunAll_Testdata(t *testing.T) {
	out, err := runner(t).RunAll(context.Background(), "testdata", false)
	require.NoError(t, err)
	require.Equal(t, 6, out.Summary.Total)
	for _, res := range out.Tests {
		assert.Equal(t, StatusPassed, res.Status, "%s: %s %+v", res.Name, res.Error, failed(res.Assertions))
	}
}

func failed(rs []AssertionResult) []AssertionResult {
	var out []AssertionResult
	for _, r := range rs {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func writeTest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case"+TestSuffix)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunFile_FailedAssertion(t *testing.T) {
	path := writeTest(t, `
script:
  scenario: bewusteloos
  profile: {id: t, difficulty: beginner}
  default_policy: first
expect:
  score: "100"
  must_reach: [4_consequence]
`)
	res := runner(t).RunFile(context.Background(), path)
	assert.Equal(t, StatusFailed, res.Status)
	require.Len(t, res.Assertions, 2)
	assert.False(t, res.Assertions[0].Passed)
	assert.Equal(t, "score", res.Assertions[0].Type)
	assert.False(t, res.Assertions[1].Passed)
}

func TestRunFile_StrictPolicyErrors(t *testing.T) {
	path := writeTest(t, `
script:
  scenario: bewusteloos
  profile: {id: t, difficulty: beginner}
  answers:
    "1": [b]
expect:
  state: completed
`)
	res := runner(t).RunFile(context.Background(), path)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "no scripted answer")
}

func TestRunFile_InvalidOptionErrors(t *testing.T) {
	path := writeTest(t, `
script:
  scenario: bewusteloos
  profile: {id: t, difficulty: beginner}
  answers:
    "1": [z]
expect:
  state: completed
`)
	res := runner(t).RunFile(context.Background(), path)
	assert.Equal(t, StatusError, res.Status)
	assert.Contains(t, res.Error, "option does not belong")
}

func TestRunFile_ScenarioFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.yaml"), []byte(`apiVersion: scenario/v1
id: tiny
title: Tiny
difficulty: beginner
steps:
  - id: only
    question: Call for help?
    time_limit: 10
    options:
      - id: call
        text: Call 112
        correct: true
      - id: wait
        text: Wait
`), 0o644))
	path := filepath.Join(dir, "tiny"+TestSuffix)
	require.NoError(t, os.WriteFile(path, []byte(`
script:
  scenario_file: tiny.yaml
  profile: {id: t, difficulty: beginner}
  answers:
    only: [wait]
expect:
  score: "0"
  step_results:
    only: incorrect
`), 0o644))

	res := runner(t).RunFile(context.Background(), path)
	assert.Equal(t, StatusPassed, res.Status, res.Error)
}

func TestParseTest_Rejects(t *testing.T) {
	_, err := ParseTest([]byte("expect: {state: completed}\n"))
	assert.Error(t, err, "no scenario")

	_, err = ParseTest([]byte("script: {scenario: x, default_policy: random}\n"))
	assert.Error(t, err)

	_, err = ParseTest([]byte("script: {scenario: x}\nextra: 1\n"))
	assert.Error(t, err, "unknown field")

	tc, err := ParseTest([]byte("script: {scenario: x}\n"))
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, tc.Script.DefaultPolicy)
}

func TestDiscover_SortsAndFilters(t *testing.T) {
	paths, err := Discover("testdata")
	require.NoError(t, err)
	require.Len(t, paths, 6)
	assert.Equal(t, filepath.Join("testdata", "accessibility-untimed.test.yaml"), paths[0])
}

func TestCompareValue(t *testing.T) {
	for _, tc := range []struct {
		expected, actual string
		want             bool
	}{
		{"100", "100", true},
		{">=80", "80", true},
		{">80", "80", false},
		{"<50", "49", true},
		{"!=0", "0", false},
		{"==71", "71", true},
		{"/^7\\d$/", "71", true},
		{"/^9/", "71", false},
		{">=x", "1", false},
	} {
		got, _ := compareValue(tc.expected, tc.actual)
		assert.Equal(t, tc.want, got, "%s vs %s", tc.expected, tc.actual)
	}
}

func TestEvaluate_Chain(t *testing.T) {
	run := &RunResult{Chain: []string{"a", "b", "c"}}
	rs := Evaluate(&Expect{Chain: []string{"a", "b"}}, run)
	require.Len(t, rs, 3)
	assert.True(t, rs[0].Passed)
	assert.True(t, rs[1].Passed)
	assert.False(t, rs[2].Passed, "extra stage is reported")

	rs = Evaluate(&Expect{Chain: []string{"a", "x", "c", "d"}}, run)
	assert.Equal(t, []bool{true, false, true, false}, passes(rs))
}

func TestEvaluate_Reach(t *testing.T) {
	run := &RunResult{Visited: []string{"bewusteloos/1", "bewusteloos/2"}}
	rs := Evaluate(&Expect{MustReach: []string{"2", "bewusteloos/1", "3"}, MustNotReach: []string{"1_consequence", "1"}}, run)
	assert.Equal(t, []bool{true, true, false, true, false}, passes(rs))
}

func passes(rs []AssertionResult) []bool {
	out := make([]bool, len(rs))
	for i, r := range rs {
		out[i] = r.Passed
	}
	return out
}
