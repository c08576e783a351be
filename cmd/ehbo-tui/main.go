// Package main provides the ehbo-tui binary: a Bubble Tea scenario player.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/app"
	"github.com/ormasoftchile/ehbo/pkg/config"
	"github.com/ormasoftchile/ehbo/pkg/logging"
	"github.com/ormasoftchile/ehbo/pkg/tui"
)

var (
	chainType  string
	difficulty string
	accessible []string
	logFile    string
	compact    bool
)

var rootCmd = &cobra.Command{
	Use:          "ehbo-tui [scenario-id|scenario.yaml]",
	Short:        "Play first-aid scenarios in a terminal UI",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && chainType == "" {
		return fmt.Errorf("name a scenario or pass --chain")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// The UI owns the terminal, so logs only go to a file.
	logger := zap.NewNop()
	if logFile != "" {
		if logger, err = logging.NewTo(cfg.LogLevel, cfg.LogJSON, logFile); err != nil {
			return err
		}
		defer logger.Sync()
	}

	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	a.ServeMetrics()

	rt, err := a.Runtime(true)
	if err != nil {
		return err
	}
	profile, err := a.Profile(difficulty, accessible)
	if err != nil {
		return err
	}

	tcfg := tui.Config{Runtime: rt, Profile: profile, ChainType: chainType, Compact: compact}
	if chainType == "" {
		if tcfg.Scenario, err = a.Scenario(args[0]); err != nil {
			return err
		}
	}
	return tui.Run(ctx, tcfg)
}

func main() {
	rootCmd.Flags().StringVar(&chainType, "chain", "", "Play a chain of this type instead of a single scenario")
	rootCmd.Flags().StringVar(&difficulty, "difficulty", "", "Preferred difficulty: beginner, intermediate or advanced")
	rootCmd.Flags().StringSliceVar(&accessible, "accessible", nil, "Accessibility needs; any value disables step timers")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	rootCmd.Flags().BoolVar(&compact, "compact", false, "Hide the path panel")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
