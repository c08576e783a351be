package player

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/resources"
)

// Exec runs one command line and reports whether the player asked to quit.
func (p *Player) Exec(ctx context.Context, line string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := parts[0]

	switch cmd {
	case "answer":
		if len(parts) < 2 {
			fmt.Fprintf(p.output, "Usage: answer <option>\n")
			return false
		}
		p.handleAnswer(ctx, parts[1])
	case "choose":
		if len(parts) < 2 {
			fmt.Fprintf(p.output, "Usage: choose <adaptation>\n")
			return false
		}
		p.handleChoose(ctx, parts[1])
	case "ok":
		p.handleAcknowledge()
	case "show":
		p.showCurrent()
	case "status", "s":
		p.handleStatus()
	case "history", "h":
		p.handleHistory()
	case "results", "r":
		p.handleResults()
	case "chain":
		p.handleChain(ctx)
	case "restart":
		p.handleRestart(ctx)
	case "help", "?":
		p.handleHelp()
	case "quit", "q":
		fmt.Fprintf(p.output, "Goodbye.\n")
		return true
	default:
		if p.isOption(cmd) {
			p.handleAnswer(ctx, cmd)
			return false
		}
		fmt.Fprintf(p.output, "Unknown command: %q. Type 'help' for available commands.\n", cmd)
	}
	return false
}

// isOption reports whether s names an option of the step being played.
func (p *Player) isOption(s string) bool {
	sess := p.rt.Session()
	if sess == nil || sess.State != engine.InProgress {
		return false
	}
	st, ok := sess.CurrentStep()
	if !ok {
		return false
	}
	_, ok = st.Option(s)
	return ok
}

// showCurrent renders whatever the session is waiting for.
func (p *Player) showCurrent() {
	sess := p.rt.Session()
	if sess == nil {
		fmt.Fprintln(p.output, "No scenario in progress.")
		return
	}
	switch sess.State {
	case engine.RoleIntro:
		r := sess.Role
		title := r.Title
		if title == "" {
			title = r.Name
		}
		fmt.Fprintf(p.output, "\nYour role: %s\n", title)
		if r.Description != "" {
			fmt.Fprintf(p.output, "  %s\n", r.Description)
		}
		if len(r.Responsibilities) > 0 {
			fmt.Fprintln(p.output, "  Responsibilities:")
			for _, s := range r.Responsibilities {
				fmt.Fprintf(p.output, "    - %s\n", s)
			}
		}
		if len(r.Challenges) > 0 {
			fmt.Fprintln(p.output, "  Challenges:")
			for _, s := range r.Challenges {
				fmt.Fprintf(p.output, "    - %s\n", s)
			}
		}
		fmt.Fprintf(p.output, "  Stress: %d\n", sess.Resources.Stress)
		fmt.Fprintln(p.output, "Type 'ok' to begin.")

	case engine.InProgress:
		st, ok := sess.CurrentStep()
		if !ok {
			return
		}
		fmt.Fprintf(p.output, "\n[%s] %s\n", st.ID, st.Question)
		for _, o := range st.Options {
			fmt.Fprintf(p.output, "  %s) %s\n", o.ID, o.Text)
		}
		if sess.TimeRemaining > 0 {
			fmt.Fprintf(p.output, "You have %d seconds.\n", sess.TimeRemaining)
		}

	case engine.ComplicationPause:
		c, ok := p.rt.ActiveComplication()
		if !ok {
			return
		}
		fmt.Fprintf(p.output, "\n⚠  Complication: %s (%s)\n", c.Name, c.Category)
		fmt.Fprintf(p.output, "  %s\n", c.Description)
		for _, e := range c.Effects {
			fmt.Fprintf(p.output, "  - %s\n", e)
		}
		fmt.Fprintln(p.output, "How do you adapt?")
		for _, a := range c.Adaptations {
			fmt.Fprintf(p.output, "  %s) %s\n", a.ID, a.Text)
		}
		fmt.Fprintln(p.output, "Type 'choose <id>'.")

	case engine.Completed:
		p.handleResults()
	}
}

func (p *Player) handleAcknowledge() {
	if err := p.rt.AcknowledgeRole(); err != nil {
		p.printError(err)
		return
	}
	p.showCurrent()
}

func (p *Player) handleAnswer(ctx context.Context, optionID string) {
	out, err := p.rt.SubmitAnswer(optionID)
	if err != nil {
		p.printError(err)
		return
	}
	if out.Rejected {
		fmt.Fprintf(p.output, "  Step %s is already answered.\n", out.StepID)
		return
	}
	if out.Correct {
		fmt.Fprintln(p.output, "  ✓ Correct")
	} else {
		fmt.Fprintln(p.output, "  ✗ Incorrect")
	}
	if out.Feedback != "" {
		fmt.Fprintf(p.output, "  %s\n", out.Feedback)
	}
	if out.Explanation != "" {
		fmt.Fprintf(p.output, "  %s\n", out.Explanation)
	}
	fmt.Fprintf(p.output, "  %s\n", formatResources(out.Resources))
	if out.Complication != nil {
		p.showCurrent()
		return
	}
	p.advance(ctx)
}

func (p *Player) handleChoose(ctx context.Context, choiceID string) {
	state, err := p.rt.ResolveComplication(choiceID)
	if err != nil {
		p.printError(err)
		return
	}
	fmt.Fprintf(p.output, "  %s\n", formatResources(state))
	if p.rt.State() == engine.ComplicationPause {
		p.showCurrent()
		return
	}
	p.advance(ctx)
}

func (p *Player) advance(ctx context.Context) {
	out, err := p.rt.Advance(ctx)
	if err != nil {
		p.printError(err)
		return
	}
	if out.State == engine.InProgress && out.ChainNext == nil {
		p.showCurrent()
		return
	}
	p.showCompletion(out)
}

// showCompletion reports a finished scenario and, for chains, what follows.
func (p *Player) showCompletion(out *engine.StepOutcome) {
	if out.Report != nil {
		p.printReport(out.Report)
	}
	if out.ChainNext == nil {
		return
	}
	fmt.Fprintf(p.output, "\nChain progress: %d%%. Next: %s\n", out.ChainNext.Progress.CompletionPercent, out.ChainNext.NextScenarioID)
	if out.Scenario == nil {
		fmt.Fprintln(p.output, "Type 'chain' to continue.")
		return
	}
	fmt.Fprintf(p.output, "\n=== %s ===\n", out.Scenario.Title)
	p.showCurrent()
}

func (p *Player) handleChain(ctx context.Context) {
	sc, err := p.rt.AdvanceChain(ctx)
	if err != nil {
		p.printError(err)
		return
	}
	if sc == nil {
		fmt.Fprintln(p.output, "  No chain stage is waiting.")
		return
	}
	fmt.Fprintf(p.output, "\n=== %s ===\n", sc.Title)
	p.showCurrent()
}

func (p *Player) handleRestart(ctx context.Context) {
	if p.restart == nil {
		fmt.Fprintln(p.output, "  Nothing to restart.")
		return
	}
	if _, err := p.restart(ctx); err != nil {
		p.printError(err)
		return
	}
	fmt.Fprintln(p.output, "  Restarted.")
	p.showCurrent()
}

// handleStatus prints resources, timer and chain progress.
func (p *Player) handleStatus() {
	sess := p.rt.Session()
	if sess == nil {
		fmt.Fprintln(p.output, "No scenario in progress.")
		return
	}
	fmt.Fprintf(p.output, "  Scenario:   %s (%s)\n", sess.Scenario.ID, sess.Difficulty)
	fmt.Fprintf(p.output, "  State:      %s\n", sess.State)
	if sess.CurrentStepID != "" {
		fmt.Fprintf(p.output, "  Step:       %s\n", sess.CurrentStepID)
	}
	switch {
	case sess.AccessibilityMode:
		fmt.Fprintln(p.output, "  Timer:      off")
	case sess.TimeRemaining > 0:
		fmt.Fprintf(p.output, "  Timer:      %ds left\n", sess.TimeRemaining)
	}
	fmt.Fprintf(p.output, "  Resources:  %s\n", formatResources(sess.Resources))
	if sess.Role != nil {
		fmt.Fprintf(p.output, "  Role:       %s\n", sess.Role.Name)
	}
	if sess.Chain != nil {
		pr := sess.Chain.Progress()
		fmt.Fprintf(p.output, "  Chain:      %s stage %d of %d (%d%% done)\n", sess.Chain.ChainType, sess.Chain.CurrentIndex+1, pr.Total, pr.CompletionPercent)
	}
}

// handleHistory lists answered steps in first-answer order.
func (p *Player) handleHistory() {
	sess := p.rt.Session()
	if sess == nil || len(sess.Order) == 0 {
		fmt.Fprintln(p.output, "No answers yet.")
		return
	}
	for i, id := range sess.Order {
		fmt.Fprintf(p.output, "  %d. %s\n", i+1, formatResult(sess.Results[id]))
	}
}

func (p *Player) handleResults() {
	report, err := p.rt.Results()
	if err != nil {
		fmt.Fprintln(p.output, "  The scenario is not finished yet.")
		return
	}
	p.printReport(report)
}

func (p *Player) printReport(r *engine.Report) {
	fmt.Fprintf(p.output, "\n--- Results: %s ---\n", r.ScenarioID)
	fmt.Fprintf(p.output, "  Score:      %d%% (%d/%d correct)\n", r.Score, r.Correct, r.Total)
	if r.TimedOut {
		fmt.Fprintln(p.output, "  Timed out:  yes")
	}
	fmt.Fprintf(p.output, "  Resources:  %s\n", formatResources(r.Resources))
	if r.Role != "" {
		fmt.Fprintf(p.output, "  Role:       %s\n", r.Role)
	}
	for _, res := range r.Results {
		fmt.Fprintf(p.output, "    %s\n", formatResult(res))
	}
	if len(r.Insights) > 0 {
		fmt.Fprintln(p.output, "  Insights:")
		for _, in := range r.Insights {
			fmt.Fprintf(p.output, "    - %s\n", in.Message)
		}
	}
}

// handleHelp displays available commands.
func (p *Player) handleHelp() {
	fmt.Fprintln(p.output, "Available commands:")
	fmt.Fprintln(p.output, "  <option>         Answer the current step (same as answer <option>)")
	fmt.Fprintln(p.output, "  answer <option>  Answer the current step")
	fmt.Fprintln(p.output, "  choose <id>      Pick an adaptation for a complication")
	fmt.Fprintln(p.output, "  ok               Accept your role and begin")
	fmt.Fprintln(p.output, "  show             Show the current question again")
	fmt.Fprintln(p.output, "  status (s)       Show resources, timer and chain progress")
	fmt.Fprintln(p.output, "  history (h)      Show answered steps")
	fmt.Fprintln(p.output, "  results (r)      Show the final report")
	fmt.Fprintln(p.output, "  chain            Continue to the next chain scenario")
	fmt.Fprintln(p.output, "  restart          Play the scenario again")
	fmt.Fprintln(p.output, "  help (?)         Show this help")
	fmt.Fprintln(p.output, "  quit (q)         Exit")
}

func (p *Player) printError(err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidOption):
		fmt.Fprintln(p.output, "  That is not one of the options. Type 'show' to see them.")
	case errors.Is(err, engine.ErrInvalidChoice):
		fmt.Fprintln(p.output, "  That is not one of the adaptations. Type 'show' to see them.")
	case errors.Is(err, engine.ErrWrongState):
		fmt.Fprintf(p.output, "  Not now: %v\n", err)
	default:
		fmt.Fprintf(p.output, "Error: %v\n", err)
	}
}

func formatResources(s resources.State) string {
	return fmt.Sprintf("time %d · stress %d · effectiveness %d", s.Time, s.Stress, s.Effectiveness)
}

func formatResult(r engine.StepResult) string {
	switch {
	case r.TimedOut:
		return fmt.Sprintf("⏱ %s  timed out after %ds", r.StepID, r.TimeUsedSeconds)
	case r.Correct:
		return fmt.Sprintf("✓ %s  %s (%ds)", r.StepID, r.SelectedOptionID, r.TimeUsedSeconds)
	default:
		return fmt.Sprintf("✗ %s  %s (%ds)", r.StepID, r.SelectedOptionID, r.TimeUsedSeconds)
	}
}
