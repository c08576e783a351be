package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ormasoftchile/ehbo/pkg/player"
)

var (
	playChain      string
	playDifficulty string
	playAccessible []string
	playProfile    string
)

var playCmd = &cobra.Command{
	Use:   "play [scenario-id|scenario.yaml]",
	Short: "Play a scenario or chain in an interactive prompt",
	Long: `Play a scenario in a line-oriented prompt.

Answer a step by typing the option id, resolve complications with
'choose <id>', and type 'help' for the other commands. Steps are timed
unless --accessible is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && playChain == "" {
		return fmt.Errorf("name a scenario or pass --chain (see 'ehbo list')")
	}
	if playProfile != "" {
		cfg.ProfileID = playProfile
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	a.ServeMetrics()

	rt, err := a.Runtime(true)
	if err != nil {
		return err
	}
	profile, err := a.Profile(playDifficulty, playAccessible)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	p := player.New(rt, profile)
	if playChain != "" {
		err = p.StartChain(ctx, playChain)
	} else {
		sc, lerr := a.Scenario(args[0])
		if lerr != nil {
			return lerr
		}
		err = p.Start(ctx, sc)
	}
	if err != nil {
		return err
	}
	return p.Run(ctx)
}

func init() {
	playCmd.Flags().StringVar(&playChain, "chain", "", "Play a chain of this type instead of a single scenario")
	playCmd.Flags().StringVar(&playDifficulty, "difficulty", "", "Preferred difficulty: beginner, intermediate or advanced")
	playCmd.Flags().StringSliceVar(&playAccessible, "accessible", nil, "Accessibility needs; any value disables step timers")
	playCmd.Flags().StringVar(&playProfile, "profile", "", "Player profile id (overrides EHBO_PROFILE)")
}
