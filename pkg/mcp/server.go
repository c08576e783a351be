// Package mcp exposes scenario authoring tools over the Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/catalog"
)

// NewServer creates a new MCP server with ehbo tools registered.
func NewServer(version string, b *catalog.Bundle, logger *zap.Logger) *server.MCPServer {
	h := &Handlers{Bundle: b, Logger: logger}

	s := server.NewMCPServer(
		"ehbo",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("ehbo/validate",
			mcp.WithDescription("Validate a first-aid scenario YAML file or a catalogue scenario"),
			mcp.WithString("path", mcp.Description("Path to the scenario YAML file")),
			mcp.WithString("scenario", mcp.Description("Catalogue scenario id, used when path is empty")),
		),
		h.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("ehbo/schema",
			mcp.WithDescription("Export the scenario JSON Schema"),
		),
		HandleSchema,
	)

	s.AddTool(
		mcp.NewTool("ehbo/diagram",
			mcp.WithDescription("Render a scenario step graph or a chain definition"),
			mcp.WithString("path", mcp.Description("Path to the scenario YAML file")),
			mcp.WithString("scenario", mcp.Description("Catalogue scenario id, used when path is empty")),
			mcp.WithString("chain", mcp.Description("Chain type to render instead of a scenario")),
			mcp.WithString("format", mcp.Description("Diagram format: mermaid (default) or ascii")),
		),
		h.HandleDiagram,
	)

	s.AddTool(
		mcp.NewTool("ehbo/simulate",
			mcp.WithDescription("Replay scripted play-throughs (*.test.yaml) and check their assertions"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Test file, or directory searched for *.test.yaml")),
		),
		h.HandleSimulate,
	)

	return s
}
