package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/catalog"
	"github.com/ormasoftchile/ehbo/pkg/diagram"
	"github.com/ormasoftchile/ehbo/pkg/replay"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// Handlers serves the tools that need the content bundle.
type Handlers struct {
	Bundle *catalog.Bundle
	Logger *zap.Logger
}

// HandleValidate implements the ehbo/validate MCP tool.
func (h *Handlers) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	id, _ := args["scenario"].(string)

	var sc *scenario.Scenario
	var errs []*scenario.ValidationError
	switch {
	case path != "":
		sc, errs = scenario.ValidateFile(path)
	case id != "":
		var res *mcp.CallToolResult
		if sc, res = h.lookup(id); res != nil {
			return res, nil
		}
		errs = scenario.Validate(sc, scenario.DefaultMaxRevisits)
	default:
		return errorResult("path or scenario argument is required"), nil
	}

	if scenario.HasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	msg := fmt.Sprintf("✓ %s is valid (%d steps)", sc.ID, len(sc.Steps))
	if warnings := formatWarnings(errs); warnings != "" {
		msg += "\n" + warnings
	}
	return textResult(msg), nil
}

// HandleSchema implements the ehbo/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := scenario.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleDiagram implements the ehbo/diagram MCP tool.
func (h *Handlers) HandleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	id, _ := args["scenario"].(string)
	chainType, _ := args["chain"].(string)
	formatArg, _ := args["format"].(string)

	if chainType != "" {
		if h.Bundle == nil {
			return errorResult("no content bundle loaded"), nil
		}
		for i := range h.Bundle.Chains {
			if d := &h.Bundle.Chains[i]; d.Type == chainType {
				out, err := diagram.GenerateChain(d)
				if err != nil {
					return errorResult(err.Error()), nil
				}
				return textResult(out), nil
			}
		}
		return errorResult(fmt.Sprintf("unknown chain type %q", chainType)), nil
	}

	format, err := diagram.ParseFormat(formatArg)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	var sc *scenario.Scenario
	switch {
	case path != "":
		if sc, err = scenario.LoadFile(path); err != nil {
			return errorResult(err.Error()), nil
		}
	case id != "":
		var res *mcp.CallToolResult
		if sc, res = h.lookup(id); res != nil {
			return res, nil
		}
	default:
		return errorResult("path, scenario or chain argument is required"), nil
	}

	out, err := diagram.Generate(sc, format)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(out), nil
}

// HandleSimulate implements the ehbo/simulate MCP tool.
func (h *Handlers) HandleSimulate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	if h.Bundle == nil {
		return errorResult("no content bundle loaded"), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	runner := &replay.Runner{
		Bundle:  h.Bundle,
		Logger:  h.Logger,
		Timeout: 30 * time.Second,
	}

	var output *replay.TestOutput
	if info.IsDir() {
		output, err = runner.RunAll(ctx, path, false)
		if err != nil {
			return errorResult(fmt.Sprintf("run tests: %s", err)), nil
		}
	} else {
		result := runner.RunFile(ctx, path)
		output = &replay.TestOutput{
			Tests:   []replay.TestResult{result},
			Summary: replay.TestSummary{Total: 1},
		}
		switch result.Status {
		case replay.StatusPassed:
			output.Summary.Passed = 1
		case replay.StatusFailed:
			output.Summary.Failed = 1
		default:
			output.Summary.Errors = 1
		}
	}

	data, _ := json.MarshalIndent(output, "", "  ")

	isErr := output.Summary.Failed > 0 || output.Summary.Errors > 0
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: isErr,
	}, nil
}

func (h *Handlers) lookup(id string) (*scenario.Scenario, *mcp.CallToolResult) {
	if h.Bundle == nil {
		return nil, errorResult("no content bundle loaded")
	}
	sc, ok := h.Bundle.Scenarios.Scenario(id)
	if !ok {
		return nil, errorResult(fmt.Sprintf("unknown scenario %q", id))
	}
	return sc, nil
}

func formatErrors(errs []*scenario.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == scenario.SeverityError {
			msgs = append(msgs, e.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

func formatWarnings(errs []*scenario.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == scenario.SeverityWarning {
			msgs = append(msgs, "warning: "+e.Error())
		}
	}
	return strings.Join(msgs, "\n")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
