package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/scoring"
)

// finish moves the session to Completed. An active chain either enters its
// next stage or, once complete, the scenario is finalized through scoring
// and the completion sink. Caller holds r.mu.
func (r *Runtime) finish(ctx context.Context, timedOut bool) *StepOutcome {
	s := r.sess
	r.timer.Cancel()
	s.state = Completed

	report := r.baseReport()
	out := &StepOutcome{StepID: s.stepID, Resources: s.model.State(), State: Completed, TimedOut: timedOut}
	log := r.logger.With(zap.String("session_id", s.id), zap.String("scenario_id", s.scenario.ID))

	if s.chain != nil && !s.chain.IsComplete && r.opts.Chains != nil {
		next, err := r.opts.Chains.GetNextScenario(s.chain, chain.ScenarioSummary{
			ScenarioID: s.scenario.ID,
			Score:      report.Score,
			Correct:    report.Correct,
			Total:      report.Total,
			TimedOut:   timedOut,
		})
		if err != nil {
			log.Warn("chain resolution failed; ending chain", zap.String("chain_type", s.chain.ChainType), zap.Error(err))
		}
		if next != nil {
			target, err := r.lookup(next.NextScenarioID)
			if err != nil {
				log.Warn("chain stage not in catalogue; ending chain",
					zap.String("chain_type", s.chain.ChainType), zap.String("next", next.NextScenarioID))
				s.chain.IsComplete = true
			} else {
				report.Intermediate = true
				r.withInsights(ctx, report)
				r.report = report
				s.chainNext, s.chainTarget = next, target
				out.ChainNext = next
				out.Report = report
				log.Info("chain stage complete",
					zap.String("chain_type", s.chain.ChainType),
					zap.Int("score", report.Score),
					zap.Int("progress", next.Progress.CompletionPercent))
				if r.opts.ManualChainAdvance {
					return out
				}
				sc, err := r.enterChainStage()
				if err != nil {
					log.Warn("chain stage could not start; ending chain", zap.Error(err))
					s.chain.IsComplete = true
					s.chainNext, s.chainTarget = nil, nil
					report.Intermediate = false
					r.finalize(ctx, report)
					return out
				}
				out.Scenario = sc
				out.State = r.sess.state
				return out
			}
		}
	}

	r.withInsights(ctx, report)
	r.finalize(ctx, report)
	out.Report = report
	return out
}

// baseReport scores the current session without insights.
func (r *Runtime) baseReport() *Report {
	s := r.sess
	report := &Report{
		SessionID:  s.id,
		ScenarioID: s.scenario.ID,
		Difficulty: s.difficulty,
		TimedOut:   s.timedOut,
		Resources:  s.model.State(),
		Total:      len(s.order),
	}
	for _, id := range s.order {
		res := s.results[id]
		report.Results = append(report.Results, res)
		if res.Correct {
			report.Correct++
		}
	}
	report.Score = scoring.Score(report.Correct, report.Total)
	if s.role != nil {
		report.Role = s.role.Name
	}
	return report
}

// withInsights fills report.Insights. The score window is the stored
// history followed by the chain's stage scores when a chain is active, or by
// this score alone otherwise.
func (r *Runtime) withInsights(ctx context.Context, report *Report) {
	s := r.sess
	window := r.pastScores(ctx)
	if s.chain != nil {
		cs := *s.chain
		cs.Results = append([]chain.ScenarioSummary(nil), s.chain.Results...)
		report.Chain = &cs
		window = append(window, cs.Scores()...)
	} else {
		window = append(window, report.Score)
	}

	steps := make([]scoring.Step, len(report.Results))
	for i, res := range report.Results {
		steps[i] = scoring.Step{TimeUsedSeconds: res.TimeUsedSeconds, TimedOut: res.TimedOut}
	}
	report.Insights = scoring.Insights(scoring.Input{
		Score:       report.Score,
		Steps:       steps,
		History:     window,
		FinalStress: report.Resources.Stress,
	})
}

// finalize publishes report. Sink failures never change engine state.
func (r *Runtime) finalize(ctx context.Context, report *Report) {
	s := r.sess
	r.report = report

	var kinds []string
	for _, in := range report.Insights {
		kinds = append(kinds, in.Kind)
	}
	r.emit(r.opts.Trace.EmitSessionComplete(report.ScenarioID, report.Score, report.TimedOut, kinds))
	r.logger.Info("scenario complete",
		zap.String("session_id", s.id),
		zap.String("scenario_id", report.ScenarioID),
		zap.Int("score", report.Score),
		zap.Bool("timed_out", report.TimedOut))

	if r.opts.Sink == nil {
		return
	}
	c := Completion{
		SessionID:  s.id,
		ProfileID:  r.profile.ID,
		ScenarioID: report.ScenarioID,
		Difficulty: report.Difficulty,
		Score:      report.Score,
		Correct:    report.Correct,
		Total:      report.Total,
		TimedOut:   report.TimedOut,
		IsEnhanced: s.role != nil || s.tracker.Len() > 0 || s.chain != nil,
		Resources:  report.Resources,
	}
	if s.chain != nil {
		c.ChainType = s.chain.ChainType
	}
	if err := r.opts.Sink.OnScenarioComplete(ctx, c); err != nil {
		r.logger.Warn("completion sink failed",
			zap.String("scenario_id", report.ScenarioID), zap.Error(err))
	}
}
