package replay

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/catalog"
	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/resources"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
	"github.com/ormasoftchile/ehbo/pkg/trace"
)

// maxOps bounds one replay; the engine's step budget ends loops long before.
const maxOps = 10000

// ErrUnscripted is returned in strict mode for a step with no answer.
var ErrUnscripted = errors.New("replay: no scripted answer")

// RunResult is what a replay observed.
type RunResult struct {
	State    string
	Score    int
	Correct  int
	Total    int
	TimedOut bool
	Role     string
	// Visited holds "scenario/step" for every step entered, in order.
	Visited []string
	// Chain holds the scenario ids played, in order.
	Chain       []string
	StepResults map[string]string
	Insights    []string
	Resources   resources.State
}

// Player replays scripts against a content bundle.
type Player struct {
	Bundle *catalog.Bundle
	Logger *zap.Logger
	// Trace, when set, records every replay.
	Trace *trace.Writer
	// Dir resolves Script.ScenarioFile.
	Dir string
}

// Play runs s to completion.
func (p *Player) Play(ctx context.Context, s *Script) (*RunResult, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := engine.Options{
		Catalogue:        p.Bundle.Scenarios,
		Random:           random.New(s.Seed),
		Logger:           logger,
		Trace:            p.Trace,
		ChainProbability: s.ChainProbability,
	}
	if s.Roles == nil || *s.Roles {
		opts.Roles = p.Bundle.Roles
	}
	if s.Complications == nil || *s.Complications {
		opts.Complications = p.Bundle.Complications
	}
	if len(p.Bundle.Chains) > 0 {
		o, err := chain.New(p.Bundle.Chains, logger)
		if err != nil {
			return nil, err
		}
		opts.Chains = o
	}
	rt := engine.New(opts)

	var sess *engine.Session
	var err error
	switch {
	case s.Chain != "":
		sess, err = rt.StartChain(ctx, s.Chain, s.Profile)
	default:
		var sc *scenario.Scenario
		sc, err = p.scenario(s)
		if err != nil {
			return nil, err
		}
		sess, err = rt.Start(ctx, sc, s.Profile)
	}
	if err != nil {
		return nil, err
	}

	d := &driver{rt: rt, script: s, visits: map[string]int{}, timeouts: map[string]bool{}}
	for _, id := range s.Timeouts {
		d.timeouts[id] = true
	}
	d.run.Chain = []string{sess.Scenario.ID}
	if err := d.drive(ctx); err != nil {
		return nil, err
	}
	return d.collect()
}

func (p *Player) scenario(s *Script) (*scenario.Scenario, error) {
	if s.ScenarioFile != "" {
		path := s.ScenarioFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.Dir, path)
		}
		return scenario.LoadFile(path)
	}
	sc, ok := p.Bundle.Scenarios.Scenario(s.Scenario)
	if !ok {
		return nil, fmt.Errorf("%w: %q", engine.ErrNoScenario, s.Scenario)
	}
	return sc, nil
}

type driver struct {
	rt       *engine.Runtime
	script   *Script
	run      RunResult
	visits   map[string]int
	timeouts map[string]bool
	// answered is set between SubmitAnswer and Advance.
	answered bool
}

func (d *driver) drive(ctx context.Context) error {
	for i := 0; i < maxOps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sess := d.rt.Session()
		switch sess.State {
		case engine.Completed:
			return nil

		case engine.RoleIntro:
			if err := d.rt.AcknowledgeRole(); err != nil {
				return err
			}

		case engine.ComplicationPause:
			c, ok := d.rt.ActiveComplication()
			if !ok {
				return fmt.Errorf("replay: paused without a complication")
			}
			choice, ok := d.script.Choices[c.Name]
			if !ok {
				if len(c.Adaptations) == 0 {
					return fmt.Errorf("replay: complication %q has no adaptations", c.Name)
				}
				choice = c.Adaptations[0].ID
			}
			if _, err := d.rt.ResolveComplication(choice); err != nil {
				return fmt.Errorf("complication %q: %w", c.Name, err)
			}

		case engine.InProgress:
			if d.answered {
				out, err := d.rt.Advance(ctx)
				if err != nil {
					return err
				}
				d.answered = false
				d.observe(out)
				continue
			}
			if err := d.answer(ctx, sess); err != nil {
				return err
			}

		default:
			return fmt.Errorf("replay: unexpected state %s", sess.State)
		}
	}
	return fmt.Errorf("replay: no completion after %d operations", maxOps)
}

func (d *driver) answer(ctx context.Context, sess *engine.Session) error {
	st, ok := sess.CurrentStep()
	if !ok {
		return fmt.Errorf("replay: no current step")
	}
	key := sess.Scenario.ID + "/" + st.ID
	d.run.Visited = append(d.run.Visited, key)
	visit := d.visits[key]
	d.visits[key]++

	if d.timeouts[st.ID] || d.timeouts[key] {
		for i := 0; i < maxOps; i++ {
			if out := d.rt.Tick(ctx); out != nil {
				d.observe(out)
				return nil
			}
		}
		return fmt.Errorf("replay: step %s never timed out", key)
	}
	for i := d.wait(st.ID, key); i > 0; i-- {
		if out := d.rt.Tick(ctx); out != nil {
			d.observe(out)
			return nil
		}
	}

	optionID, err := d.pick(st, key, visit)
	if err != nil {
		return err
	}
	if _, err := d.rt.SubmitAnswer(optionID); err != nil {
		return fmt.Errorf("step %s: %w", key, err)
	}
	d.answered = true
	return nil
}

func (d *driver) wait(stepID, key string) int {
	if n, ok := d.script.Wait[key]; ok {
		return n
	}
	return d.script.Wait[stepID]
}

func (d *driver) pick(st *scenario.Step, key string, visit int) (string, error) {
	answers, ok := d.script.Answers[key]
	if !ok {
		answers, ok = d.script.Answers[st.ID]
	}
	if ok && len(answers) > 0 {
		if visit >= len(answers) {
			visit = len(answers) - 1
		}
		return answers[visit], nil
	}
	switch d.script.DefaultPolicy {
	case PolicyCorrect:
		for _, o := range st.Options {
			if o.Correct {
				return o.ID, nil
			}
		}
		return st.Options[0].ID, nil
	case PolicyFirst:
		return st.Options[0].ID, nil
	}
	return "", fmt.Errorf("%w for step %s", ErrUnscripted, key)
}

// observe notes a chain stage change.
func (d *driver) observe(out *engine.StepOutcome) {
	if out != nil && out.Scenario != nil {
		d.run.Chain = append(d.run.Chain, out.Scenario.ID)
		d.answered = false
	}
}

func (d *driver) collect() (*RunResult, error) {
	report, err := d.rt.Results()
	if err != nil {
		return nil, err
	}
	r := d.run
	r.State = d.rt.State().String()
	r.Score = report.Score
	r.Correct = report.Correct
	r.Total = report.Total
	r.TimedOut = report.TimedOut
	r.Role = report.Role
	r.Resources = report.Resources
	r.StepResults = make(map[string]string, len(report.Results))
	for _, res := range report.Results {
		switch {
		case res.TimedOut:
			r.StepResults[res.StepID] = "timed_out"
		case res.Correct:
			r.StepResults[res.StepID] = "correct"
		default:
			r.StepResults[res.StepID] = "incorrect"
		}
	}
	for _, in := range report.Insights {
		r.Insights = append(r.Insights, in.Kind)
	}
	return &r, nil
}
