// Package player provides an interactive REPL for playing a scenario in the
// terminal.
package player

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// Player drives an engine.Runtime from typed commands.
type Player struct {
	rt      *engine.Runtime
	profile engine.Profile
	output  io.Writer
	tick    time.Duration

	// restart begins the session again; set by Start and StartChain.
	restart func(ctx context.Context) (*engine.Session, error)
	// mu serializes command output with timeout notices.
	mu sync.Mutex
}

// New creates a player for profile writing to stdout.
func New(rt *engine.Runtime, profile engine.Profile) *Player {
	return &Player{rt: rt, profile: profile, output: os.Stdout, tick: time.Second}
}

// SetOutput redirects player output.
func (p *Player) SetOutput(w io.Writer) {
	p.output = w
}

// Start begins sc and shows the first screen.
func (p *Player) Start(ctx context.Context, sc *scenario.Scenario) error {
	p.restart = func(ctx context.Context) (*engine.Session, error) {
		return p.rt.Start(ctx, sc, p.profile)
	}
	return p.begin(ctx)
}

// StartChain begins chainType at its first stage.
func (p *Player) StartChain(ctx context.Context, chainType string) error {
	p.restart = func(ctx context.Context) (*engine.Session, error) {
		return p.rt.StartChain(ctx, chainType, p.profile)
	}
	return p.begin(ctx)
}

func (p *Player) begin(ctx context.Context) error {
	sess, err := p.restart(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.output, "\n=== %s ===\n", sess.Scenario.Title)
	if sess.Scenario.Description != "" {
		fmt.Fprintln(p.output, sess.Scenario.Description)
	}
	fmt.Fprintf(p.output, "Difficulty: %s", sess.Difficulty)
	if sess.AccessibilityMode {
		fmt.Fprint(p.output, " (untimed)")
	}
	fmt.Fprintln(p.output)
	if sess.Chain != nil {
		pr := sess.Chain.Progress()
		fmt.Fprintf(p.output, "Chain: %s (stage %d of %d)\n", sess.Chain.ChainType, sess.Chain.CurrentIndex+1, pr.Total)
	}
	p.showCurrent()
	return nil
}

// Run starts the interactive loop. The session must already be started.
func (p *Player) Run(ctx context.Context) error {
	if p.rt.Session() == nil {
		return engine.ErrNoSession
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	completer := readline.NewPrefixCompleter(
		readline.PcItem("answer"),
		readline.PcItem("choose"),
		readline.PcItem("ok"),
		readline.PcItem("show"),
		readline.PcItem("status"),
		readline.PcItem("history"),
		readline.PcItem("results"),
		readline.PcItem("chain"),
		readline.PcItem("restart"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          p.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()
	p.output = rl.Stdout()

	go p.rt.Drive(ctx, p.tick, func(out *engine.StepOutcome) {
		p.mu.Lock()
		defer p.mu.Unlock()
		fmt.Fprintf(p.output, "\n⏱  Time is up for step %s.\n", out.StepID)
		p.showCompletion(out)
		rl.SetPrompt(p.buildPrompt())
		rl.Refresh()
	})

	fmt.Fprintf(p.output, "Type 'help' for available commands.\n\n")

	for {
		rl.SetPrompt(p.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}
		if p.Exec(ctx, line) {
			return nil
		}
	}
}

// buildPrompt creates the prompt string: ehbo[scenario/step | 18s]>
func (p *Player) buildPrompt() string {
	sess := p.rt.Session()
	if sess == nil {
		return "ehbo> "
	}
	switch sess.State {
	case engine.RoleIntro:
		return "ehbo[role]> "
	case engine.ComplicationPause:
		return "ehbo[complication]> "
	case engine.Completed:
		return "ehbo[done]> "
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ehbo[%s/%s", sess.Scenario.ID, sess.CurrentStepID)
	if sess.TimeRemaining > 0 {
		fmt.Fprintf(&b, " | %ds", sess.TimeRemaining)
	}
	b.WriteString("]> ")
	return b.String()
}
