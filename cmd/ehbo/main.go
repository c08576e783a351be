package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/app"
	"github.com/ormasoftchile/ehbo/pkg/config"
	"github.com/ormasoftchile/ehbo/pkg/diagram"
	"github.com/ormasoftchile/ehbo/pkg/logging"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Shared state prepared by the root command.
var (
	cfg    *config.Config
	logger *zap.Logger
)

var (
	flagContentDir string
	flagHistoryDB  string
	flagLogLevel   string
	flagSeed       int64
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ehbo",
	Short: "First-aid training scenarios",
	Long:  "ehbo — branching first-aid training scenarios with roles, complications, chains and timed steps.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if cmd.Flags().Changed("content-dir") {
			cfg.ContentDir = flagContentDir
		}
		if cmd.Flags().Changed("history-db") {
			cfg.HistoryDB = flagHistoryDB
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = flagSeed
		}
		logger, err = logging.New(cfg.LogLevel, cfg.LogJSON)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage: true,
}

// openApp opens the content bundle, history store and trace file.
func openApp(cmd *cobra.Command) (*app.App, error) {
	return app.Open(cmd.Context(), cfg, logger)
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [scenario.yaml...]",
	Short: "Validate scenario YAML files, or the whole catalogue when none are given",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return validateCatalogue(cmd)
	}
	failed := 0
	for _, path := range args {
		sc, errs := scenario.ValidateFile(path)
		if !reportValidation(path, errs) {
			failed++
			continue
		}
		fmt.Printf("✓ %s is valid (%d steps)\n", sc.ID, len(sc.Steps))
	}
	if failed > 0 {
		return fmt.Errorf("validation failed for %d file(s)", failed)
	}
	return nil
}

func validateCatalogue(cmd *cobra.Command) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	failed := 0
	for _, sc := range a.Bundle.Scenarios.List() {
		errs := scenario.Validate(sc, cfg.MaxRevisits)
		if !reportValidation(sc.ID, errs) {
			failed++
			continue
		}
		fmt.Printf("✓ %s is valid (%d steps)\n", sc.ID, len(sc.Steps))
	}
	if failed > 0 {
		return fmt.Errorf("validation failed for %d scenario(s)", failed)
	}
	return nil
}

// reportValidation prints warnings and errors and reports whether name passed.
func reportValidation(name string, errs []*scenario.ValidationError) bool {
	var errors []*scenario.ValidationError
	for _, e := range errs {
		if e.Severity == scenario.SeverityWarning {
			fmt.Fprintf(os.Stderr, "  ⚠ %s: [%s] %s\n", name, e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
			}
			continue
		}
		errors = append(errors, e)
	}
	if len(errors) == 0 {
		return true
	}
	fmt.Fprintf(os.Stderr, "%s: validation failed: %d error(s)\n\n", name, len(errors))
	for i, e := range errors {
		fmt.Fprintf(os.Stderr, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, "     at: %s\n", e.Path)
		}
	}
	return false
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalogue scenarios and chain types",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println("Scenarios:")
		for _, sc := range a.Bundle.Scenarios.List() {
			fmt.Printf("  %-16s %-13s %s\n", sc.ID, sc.Difficulty, sc.Title)
		}
		fmt.Println("\nChains:")
		chains := a.Bundle.Chains
		sort.Slice(chains, func(i, j int) bool { return chains[i].Type < chains[j].Type })
		for _, d := range chains {
			fmt.Printf("  %-20s %s\n", d.Type, d.Name)
		}
		return nil
	},
}

// --- diagram ---

var (
	diagramFormat string
	diagramChain  bool
)

var diagramCmd = &cobra.Command{
	Use:   "diagram <scenario-id|scenario.yaml|chain-type>",
	Short: "Render a scenario step graph, or a chain with --chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagram,
}

func runDiagram(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if diagramChain {
		for i := range a.Bundle.Chains {
			if d := &a.Bundle.Chains[i]; d.Type == args[0] {
				out, err := diagram.GenerateChain(d)
				if err != nil {
					return err
				}
				fmt.Print(out)
				return nil
			}
		}
		return fmt.Errorf("unknown chain type %q", args[0])
	}

	format, err := diagram.ParseFormat(diagramFormat)
	if err != nil {
		return err
	}
	sc, err := a.Scenario(args[0])
	if err != nil {
		return err
	}
	out, err := diagram.Generate(sc, format)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the scenario JSON Schema to stdout",
	RunE:  runSchemaExport,
}

func runSchemaExport(cmd *cobra.Command, args []string) error {
	data, err := scenario.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	var out json.RawMessage = data
	formatted, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Println(string(data))
		return nil
	}
	fmt.Println(string(formatted))
	return nil
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ehbo %s (build: %s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagContentDir, "content-dir", "", "Directory overriding the built-in scenarios, roles, complications and chains")
	rootCmd.PersistentFlags().StringVar(&flagHistoryDB, "history-db", "", "SQLite file recording completed scenarios (empty disables history)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Int64Var(&flagSeed, "seed", 0, "Fix the random seed (0 draws a fresh one)")

	diagramCmd.Flags().StringVar(&diagramFormat, "format", "mermaid", "Diagram format: mermaid or ascii")
	diagramCmd.Flags().BoolVar(&diagramChain, "chain", false, "Treat the argument as a chain type")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(diagramCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}
