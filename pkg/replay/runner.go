package replay

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/catalog"
)

// TestSuffix marks replay test files.
const TestSuffix = ".test.yaml"

// Status of one test.
const (
	StatusPassed = "passed"
	StatusFailed = "failed"
	StatusError  = "error"
)

// TestResult captures the outcome of one test file.
type TestResult struct {
	Name        string            `json:"name"`
	Path        string            `json:"path"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status"`
	DurationMs  int64             `json:"duration_ms"`
	Assertions  []AssertionResult `json:"assertions"`
	Error       string            `json:"error,omitempty"`
}

// TestSummary aggregates results.
type TestSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// TestOutput is the JSON document written by `ehbo test --json`.
type TestOutput struct {
	Tests   []TestResult `json:"tests"`
	Summary TestSummary  `json:"summary"`
}

// Runner discovers and runs replay tests.
type Runner struct {
	Bundle  *catalog.Bundle
	Logger  *zap.Logger
	Timeout time.Duration
}

// Discover returns every test file under root, sorted.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), TestSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover tests: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunAll runs every test under root. With failFast it stops at the first
// failure or error.
func (r *Runner) RunAll(ctx context.Context, root string, failFast bool) (*TestOutput, error) {
	paths, err := Discover(root)
	if err != nil {
		return nil, err
	}
	out := &TestOutput{}
	for _, path := range paths {
		res := r.RunFile(ctx, path)
		out.Tests = append(out.Tests, res)
		out.Summary.Total++
		switch res.Status {
		case StatusPassed:
			out.Summary.Passed++
		case StatusFailed:
			out.Summary.Failed++
		default:
			out.Summary.Errors++
		}
		if failFast && res.Status != StatusPassed {
			break
		}
	}
	return out, nil
}

// RunFile runs one test file.
func (r *Runner) RunFile(ctx context.Context, path string) TestResult {
	start := time.Now()
	res := TestResult{
		Name: strings.TrimSuffix(filepath.Base(path), TestSuffix),
		Path: path,
	}
	finish := func(status string) TestResult {
		res.Status = status
		res.DurationMs = time.Since(start).Milliseconds()
		return res
	}

	t, err := LoadTest(path)
	if err != nil {
		res.Error = err.Error()
		return finish(StatusError)
	}
	res.Description = t.Description

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	p := &Player{Bundle: r.Bundle, Logger: r.Logger, Dir: filepath.Dir(path)}
	run, err := p.Play(ctx, &t.Script)
	if err != nil {
		res.Error = err.Error()
		return finish(StatusError)
	}

	res.Assertions = Evaluate(&t.Expect, run)
	if HasFailures(res.Assertions) {
		return finish(StatusFailed)
	}
	return finish(StatusPassed)
}
