package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/ehbo/pkg/replay"
)

var (
	testJSON     bool
	testFailFast bool
	testTimeout  string
)

var testCmd = &cobra.Command{
	Use:   "test [dir|file.test.yaml...]",
	Short: "Replay scripted play-throughs and check their assertions",
	Long: `Replay *.test.yaml scripts against the content and compare the outcome
with each script's expectations. Directories are searched recursively.

Exit codes:
  0 — all tests passed
  1 — at least one test failed or errored
  2 — a path could not be read (no tests ran for it)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTest,
}

func runTest(cmd *cobra.Command, args []string) error {
	timeout := 30 * time.Second
	if testTimeout != "" {
		d, err := time.ParseDuration(testTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout %q: %w", testTimeout, err)
		}
		timeout = d
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	runner := &replay.Runner{Bundle: a.Bundle, Logger: logger, Timeout: timeout}
	allPassed := true
	hasPathError := false

	for _, path := range args {
		output, err := runPath(cmd, runner, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  ✗ %s: %v\n", path, err)
			hasPathError = true
			continue
		}

		if testJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(output)
		} else {
			printTestOutput(path, output)
		}

		if output.Summary.Failed > 0 || output.Summary.Errors > 0 {
			allPassed = false
		}
		if testFailFast && !allPassed {
			break
		}
	}

	if hasPathError {
		os.Exit(2)
	}
	if !allPassed {
		os.Exit(1)
	}
	return nil
}

func runPath(cmd *cobra.Command, runner *replay.Runner, path string) (*replay.TestOutput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return runner.RunAll(cmd.Context(), path, testFailFast)
	}
	res := runner.RunFile(cmd.Context(), path)
	out := &replay.TestOutput{Tests: []replay.TestResult{res}, Summary: replay.TestSummary{Total: 1}}
	switch res.Status {
	case replay.StatusPassed:
		out.Summary.Passed = 1
	case replay.StatusFailed:
		out.Summary.Failed = 1
	default:
		out.Summary.Errors = 1
	}
	return out, nil
}

func printTestOutput(path string, output *replay.TestOutput) {
	fmt.Printf("\n  %s\n", path)
	for _, t := range output.Tests {
		switch t.Status {
		case replay.StatusPassed:
			fmt.Printf("    ✓ %-34s %dms\n", t.Name, t.DurationMs)
		case replay.StatusFailed:
			fmt.Printf("    ✗ %-34s %dms\n", t.Name, t.DurationMs)
			for _, a := range t.Assertions {
				if !a.Passed {
					fmt.Printf("        %s: %s\n", a.Type, a.Message)
				}
			}
		default:
			fmt.Printf("    ✗ %-34s ERROR: %s\n", t.Name, t.Error)
		}
	}
	fmt.Printf("\n  %d tests, %d passed, %d failed\n",
		output.Summary.Total, output.Summary.Passed, output.Summary.Failed)
	if output.Summary.Errors > 0 {
		fmt.Printf("  %d errors\n", output.Summary.Errors)
	}
}

func init() {
	testCmd.Flags().BoolVar(&testJSON, "json", false, "Output results as structured JSON")
	testCmd.Flags().BoolVar(&testFailFast, "fail-fast", false, "Stop after first failure")
	testCmd.Flags().StringVar(&testTimeout, "timeout", "30s", "Per-test timeout (e.g. 30s, 1m)")
}
