// Package main provides the ehbo-mcp binary: an MCP server for scenario authoring agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/ehbo/pkg/catalog"
	"github.com/ormasoftchile/ehbo/pkg/config"
	"github.com/ormasoftchile/ehbo/pkg/logging"
	emcp "github.com/ormasoftchile/ehbo/pkg/mcp"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol; logs stay on stderr.
	logger, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	b, err := catalog.Load()
	if cfg.ContentDir != "" {
		b, err = catalog.LoadDir(cfg.ContentDir)
	}
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	s := emcp.NewServer(version, b, logger)
	return server.ServeStdio(s)
}
