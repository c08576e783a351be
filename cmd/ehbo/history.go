package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	historyProfile string
	historyLimit   int
	historyJSON    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently completed scenarios and a score summary",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.HistoryDB == "" {
		return fmt.Errorf("history is disabled (set EHBO_HISTORY_DB or --history-db)")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	profile := cfg.ProfileID
	if cmd.Flags().Changed("profile") {
		profile = historyProfile
	}
	ctx := cmd.Context()
	recs, err := a.History.Recent(ctx, profile, historyLimit)
	if err != nil {
		return err
	}
	sum, err := a.History.Summarize(ctx, profile)
	if err != nil {
		return err
	}

	if historyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"profile": profile, "summary": sum, "recent": recs})
	}

	if len(recs) == 0 {
		fmt.Println("No completed scenarios yet.")
		return nil
	}
	for _, r := range recs {
		mark := "✓"
		if r.TimedOut {
			mark = "⏱"
		}
		chainType := ""
		if r.ChainType != "" {
			chainType = "  chain " + r.ChainType
		}
		fmt.Printf("  %s %s  %-16s %-13s %3d%% (%d/%d)%s\n",
			mark, r.CompletedAt.Local().Format("2006-01-02 15:04"), r.ScenarioID, r.Difficulty,
			r.Score, r.Correct, r.Total, chainType)
	}
	fmt.Printf("\n  %d completed, mean %.1f%%, best %d%%, %d timed out\n", sum.Count, sum.Mean, sum.Best, sum.TimedOut)
	return nil
}

func init() {
	historyCmd.Flags().StringVar(&historyProfile, "profile", "", "Profile id to show (defaults to EHBO_PROFILE)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of completions to list")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
}
