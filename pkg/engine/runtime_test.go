package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ormasoftchile/ehbo/pkg/adaptive"
	"github.com/ormasoftchile/ehbo/pkg/catalog"
	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/complications"
	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/resources"
	"github.com/ormasoftchile/ehbo/pkg/roles"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
	"github.com/ormasoftchile/ehbo/pkg/scoring"
	"github.com/ormasoftchile/ehbo/pkg/timer"
	"github.com/ormasoftchile/ehbo/pkg/trace"
)

const loopYAML = `apiVersion: scenario/v1
id: loop
title: Loop
difficulty: beginner
steps:
  - id: start
    question: Is the victim safe?
    time_limit: 20
    options:
      - id: safe
        text: Check first
        correct: true
        next: end
      - id: rush
        text: Rush in
        next: retry
  - id: retry
    question: You slipped. Try again?
    time_limit: 10
    options:
      - id: again
        text: Go back
        correct: true
        next: start
  - id: end
    question: Call for help?
    time_limit: 15
    options:
      - id: call
        text: Call 112
        correct: true
`

var bgctx = context.Background()

func bundle(t *testing.T) *catalog.Bundle {
	t.Helper()
	b, err := catalog.Load()
	require.NoError(t, err)
	return b
}

func builtin(t *testing.T, id string) *scenario.Scenario {
	t.Helper()
	sc, ok := bundle(t).Scenarios.Scenario(id)
	require.True(t, ok, id)
	return sc
}

func loop(t *testing.T) *scenario.Scenario {
	t.Helper()
	sc, err := scenario.Load(strings.NewReader(loopYAML))
	require.NoError(t, err)
	return sc
}

func beginner() Profile {
	return Profile{ID: "p1", DifficultyPreference: scenario.Beginner}
}

// firstCorrect picks the first correct option, else the first option.
func firstCorrect(st *scenario.Step) string {
	for _, o := range st.Options {
		if o.Correct {
			return o.ID
		}
	}
	return st.Options[0].ID
}

// play answers and advances until the scenario completes or leaves
// InProgress for another reason, returning the last outcome.
func play(t *testing.T, rt *Runtime, pick func(*scenario.Step) string) *StepOutcome {
	t.Helper()
	for i := 0; i < 100; i++ {
		sess := rt.Session()
		require.NotNil(t, sess)
		require.Equal(t, InProgress, sess.State, "step %s", sess.CurrentStepID)
		st, ok := sess.CurrentStep()
		require.True(t, ok)

		_, err := rt.SubmitAnswer(pick(st))
		require.NoError(t, err)
		out, err := rt.Advance(bgctx)
		require.NoError(t, err)
		if out.State != InProgress || out.ChainNext != nil {
			return out
		}
	}
	t.Fatal("play-through did not finish")
	return nil
}

type recordingSink struct {
	mu   sync.Mutex
	got  []Completion
	fail error
}

func (s *recordingSink) OnScenarioComplete(_ context.Context, c Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, c)
	return s.fail
}

type fixedHistory []int

func (h fixedHistory) Scores(context.Context, string, int) ([]int, error) { return h, nil }

func TestRuntime_BewusteloosReconvergence(t *testing.T) {
	sc := builtin(t, "bewusteloos")

	t.Run("shake routes through consequence", func(t *testing.T) {
		rt := New(Options{Random: &random.Scripted{}})
		sess, err := rt.Start(bgctx, sc, beginner())
		require.NoError(t, err)
		assert.Equal(t, InProgress, sess.State)
		assert.Equal(t, "1", sess.CurrentStepID)

		out, err := rt.SubmitAnswer("a")
		require.NoError(t, err)
		assert.False(t, out.Correct)
		assert.False(t, out.Terminal)

		out, err = rt.Advance(bgctx)
		require.NoError(t, err)
		assert.Equal(t, "1_consequence", out.Next.ID)
		require.Len(t, out.Next.Options, 1)

		_, err = rt.SubmitAnswer("a")
		require.NoError(t, err)
		out, err = rt.Advance(bgctx)
		require.NoError(t, err)
		assert.Equal(t, "2", out.Next.ID)
	})

	t.Run("safety check goes straight to step 2", func(t *testing.T) {
		rt := New(Options{Random: &random.Scripted{}})
		_, err := rt.Start(bgctx, sc, beginner())
		require.NoError(t, err)

		out, err := rt.SubmitAnswer("b")
		require.NoError(t, err)
		assert.True(t, out.Correct)

		out, err = rt.Advance(bgctx)
		require.NoError(t, err)
		assert.Equal(t, "2", out.Next.ID)
	})
}

func TestRuntime_FullPlayThroughScores(t *testing.T) {
	sink := &recordingSink{}
	rt := New(Options{Random: &random.Scripted{}, Sink: sink})
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)

	out := play(t, rt, firstCorrect)
	assert.Equal(t, Completed, out.State)
	require.NotNil(t, out.Report)

	report, err := rt.Results()
	require.NoError(t, err)
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, stepIDs(report.Results))
	assert.Contains(t, insightKinds(report), "strong_performance")

	require.Len(t, sink.got, 1)
	assert.Equal(t, "bewusteloos", sink.got[0].ScenarioID)
	assert.Equal(t, 100, sink.got[0].Score)
	assert.False(t, sink.got[0].IsEnhanced)
	assert.Equal(t, "p1", sink.got[0].ProfileID)
}

func stepIDs(rs []StepResult) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.StepID)
	}
	return out
}

func insightKinds(r *Report) []string {
	var out []string
	for _, in := range r.Insights {
		out = append(out, in.Kind)
	}
	return out
}

func TestRuntime_ResourceDeltas(t *testing.T) {
	rt := New(Options{Random: &random.Scripted{}})
	sess, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	assert.Equal(t, resources.State{Time: 100, Stress: 20, Effectiveness: 70}, sess.Resources)

	out, err := rt.SubmitAnswer("a")
	require.NoError(t, err)
	assert.Equal(t, resources.State{Time: 100, Stress: 30, Effectiveness: 60}, out.Resources)

	_, err = rt.Advance(bgctx)
	require.NoError(t, err)
	out, err = rt.SubmitAnswer("a")
	require.NoError(t, err)
	assert.Equal(t, resources.State{Time: 100, Stress: 25, Effectiveness: 65}, out.Resources)
}

func TestRuntime_OptionEffectApplied(t *testing.T) {
	rt := New(Options{Random: &random.Scripted{}})
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	for _, id := range []string{"b", "a"} {
		_, err = rt.SubmitAnswer(id)
		require.NoError(t, err)
		_, err = rt.Advance(bgctx)
		require.NoError(t, err)
	}
	// Step 3 option a: correct (-5 stress) plus authored effect (-5 stress).
	before := rt.Session().Resources.Stress
	out, err := rt.SubmitAnswer("a")
	require.NoError(t, err)
	assert.Equal(t, before-10, out.Resources.Stress)
}

func TestRuntime_ResubmissionIsNoop(t *testing.T) {
	rt := New(Options{Random: &random.Scripted{}})
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)

	first, err := rt.SubmitAnswer("b")
	require.NoError(t, err)
	assert.False(t, first.Rejected)

	again, err := rt.SubmitAnswer("a")
	require.NoError(t, err)
	assert.True(t, again.Rejected)
	assert.Equal(t, first.Resources, again.Resources)

	sess := rt.Session()
	assert.Equal(t, "b", sess.Results["1"].SelectedOptionID)
	assert.Len(t, sess.Order, 1)
}

func TestRuntime_ContractViolations(t *testing.T) {
	rt := New(Options{Random: &random.Scripted{}})

	_, err := rt.SubmitAnswer("a")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = rt.Results()
	assert.ErrorIs(t, err, ErrWrongState)

	_, err = rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)

	_, err = rt.SubmitAnswer("zzz")
	assert.ErrorIs(t, err, ErrInvalidOption)

	_, err = rt.Advance(bgctx)
	assert.ErrorIs(t, err, ErrWrongState, "advance before answering")

	_, err = rt.ResolveComplication("x")
	assert.ErrorIs(t, err, ErrWrongState)

	assert.ErrorIs(t, rt.AcknowledgeRole(), ErrWrongState)

	_, err = rt.Start(bgctx, &scenario.Scenario{ID: "empty"}, beginner())
	assert.ErrorIs(t, err, ErrEmptyScenario)
}

func TestRuntime_TimeoutForfeitsScenario(t *testing.T) {
	sink := &recordingSink{}
	rt := New(Options{Random: &random.Scripted{}, Sink: sink})
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	_, err = rt.SubmitAnswer("b")
	require.NoError(t, err)
	_, err = rt.Advance(bgctx)
	require.NoError(t, err)

	// Step 2 has a 20 second limit.
	for i := 0; i < 19; i++ {
		require.Nil(t, rt.Tick(bgctx))
	}
	assert.Equal(t, 1, rt.Session().TimeRemaining)

	out := rt.Tick(bgctx)
	require.NotNil(t, out)
	assert.True(t, out.TimedOut)
	assert.Equal(t, Completed, out.State)
	assert.Equal(t, timer.Expired, rt.TimerState())

	report, err := rt.Results()
	require.NoError(t, err)
	assert.True(t, report.TimedOut)
	assert.Equal(t, 2, report.Total, "forfeited steps are not in the denominator")
	assert.Equal(t, 50, report.Score)
	assert.Less(t, report.Total, len(builtin(t, "bewusteloos").Steps))
	assert.True(t, report.Results[1].TimedOut)
	assert.Equal(t, "", report.Results[1].SelectedOptionID)
	assert.Contains(t, insightKinds(report), "time_management")
	require.Len(t, sink.got, 1)

	// Nothing further happens after the forfeit.
	assert.Nil(t, rt.Tick(bgctx))
	out, err = rt.SubmitAnswer("a")
	require.NoError(t, err)
	assert.True(t, out.Rejected)
}

func TestRuntime_AnswerCancelsTimer(t *testing.T) {
	rt := New(Options{Random: &random.Scripted{}})
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		rt.Tick(bgctx)
	}
	_, err = rt.SubmitAnswer("b")
	require.NoError(t, err)
	assert.Equal(t, timer.Cancelled, rt.TimerState())
	assert.Equal(t, 7, rt.Session().Results["1"].TimeUsedSeconds)

	for i := 0; i < 100; i++ {
		assert.Nil(t, rt.Tick(bgctx))
	}
	assert.Equal(t, InProgress, rt.State())
}

func TestRuntime_AccessibilityNeverStartsTimer(t *testing.T) {
	b := bundle(t)
	for _, sc := range b.Scenarios.List() {
		rt := New(Options{Random: random.New(5), Roles: b.Roles})
		sess, err := rt.Start(bgctx, sc, Profile{ID: "a11y", DifficultyPreference: scenario.Beginner, AccessibilityNeeds: []string{"screen_reader"}})
		require.NoError(t, err)
		assert.True(t, sess.AccessibilityMode)
		if sess.State == RoleIntro {
			require.NoError(t, rt.AcknowledgeRole())
		}

		for i := 0; i < 100; i++ {
			sess := rt.Session()
			if sess.State != InProgress {
				break
			}
			for tick := 0; tick < 500; tick++ {
				require.Nil(t, rt.Tick(bgctx), "%s: no timeout in accessibility mode", sc.ID)
			}
			st, _ := sess.CurrentStep()
			_, err := rt.SubmitAnswer(firstCorrect(st))
			require.NoError(t, err)
			_, err = rt.Advance(bgctx)
			require.NoError(t, err)
		}

		assert.Equal(t, Completed, rt.State(), sc.ID)
		assert.Zero(t, rt.TimerStarts(), sc.ID)
		assert.Equal(t, timer.Idle, rt.TimerState(), sc.ID)
		report, err := rt.Results()
		require.NoError(t, err)
		assert.False(t, report.TimedOut)
	}
}

func TestRuntime_RoleIntroAndDecoration(t *testing.T) {
	table := []roles.Role{
		{Name: roles.Bystander, StressLevel: roles.StressLow, Subject: "the stranger"},
		{Name: roles.TeamLeader, StressLevel: roles.StressExtreme, Subject: "the casualty"},
	}
	rt := New(Options{Random: &random.Scripted{}, Roles: table})
	sess, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)

	assert.Equal(t, RoleIntro, sess.State)
	require.NotNil(t, sess.Role)
	assert.Equal(t, roles.Bystander, sess.Role.Name)
	assert.Equal(t, 15, sess.Resources.Stress)
	assert.Zero(t, rt.TimerStarts())

	_, err = rt.SubmitAnswer("b")
	assert.ErrorIs(t, err, ErrWrongState)

	require.NoError(t, rt.AcknowledgeRole())
	assert.Equal(t, 1, rt.TimerStarts())
	st, ok := rt.Session().CurrentStep()
	require.True(t, ok)
	assert.Contains(t, st.Question, "the stranger")
	assert.NotContains(t, st.Question, "the victim")

	orig := builtin(t, "bewusteloos")
	assert.Contains(t, orig.Steps[0].Question, "the victim", "catalogue content is not mutated")
}

func complicationCatalogue() []complications.Complication {
	return []complications.Complication{{
		Name: "crowd", Category: complications.Social, Probability: 1,
		Adaptations: []complications.Choice{
			{ID: "delegate", Text: "Delegate", Effect: resources.Delta{Stress: resources.Int(-10)}},
		},
	}}
}

func TestRuntime_ComplicationPauseAndSingleFire(t *testing.T) {
	rt := New(Options{
		Random:        &random.Scripted{Floats: []float64{0}, Ints: []int{0}},
		Complications: complicationCatalogue(),
	})
	sess, err := rt.Start(bgctx, loop(t), Profile{DifficultyPreference: scenario.Advanced})
	require.NoError(t, err)
	require.Len(t, sess.Complications, 1)
	assert.Equal(t, 0, sess.Complications[0].TriggerStepIndex)

	out, err := rt.SubmitAnswer("rush")
	require.NoError(t, err)
	require.NotNil(t, out.Complication)
	assert.Equal(t, "crowd", out.Complication.Name)
	assert.Equal(t, ComplicationPause, out.State)
	assert.Equal(t, timer.Cancelled, rt.TimerState(), "no timer runs during a complication")

	again, err := rt.SubmitAnswer("safe")
	require.NoError(t, err)
	assert.True(t, again.Rejected)

	_, err = rt.Advance(bgctx)
	assert.ErrorIs(t, err, ErrWrongState)

	_, err = rt.ResolveComplication("bogus")
	assert.ErrorIs(t, err, ErrInvalidChoice)
	assert.Equal(t, ComplicationPause, rt.State())

	stressBefore := rt.Session().Resources.Stress
	state, err := rt.ResolveComplication("delegate")
	require.NoError(t, err)
	assert.Equal(t, stressBefore-10, state.Stress)
	assert.Equal(t, InProgress, rt.State())

	out, err = rt.Advance(bgctx)
	require.NoError(t, err)
	assert.Equal(t, "retry", out.Next.ID)
	_, err = rt.SubmitAnswer("again")
	require.NoError(t, err)
	out, err = rt.Advance(bgctx)
	require.NoError(t, err)
	assert.Equal(t, "start", out.Next.ID)

	// Back at trigger index 0: the resolved complication stays resolved.
	out, err = rt.SubmitAnswer("safe")
	require.NoError(t, err)
	assert.Nil(t, out.Complication)
	assert.Equal(t, InProgress, out.State)
	assert.True(t, rt.Session().Complications[0].Resolved)

	out, err = rt.Advance(bgctx)
	require.NoError(t, err)
	assert.Equal(t, "end", out.Next.ID)
	out = play(t, rt, firstCorrect)
	assert.Equal(t, Completed, out.State)

	report, err := rt.Results()
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "retry", "end"}, stepIDs(report.Results))
	assert.Equal(t, 100, report.Score, "the revisit answer replaces the first one")
}

func TestRuntime_NoInfiniteTraversal(t *testing.T) {
	always := func(id string) func(*scenario.Step) string {
		return func(st *scenario.Step) string {
			if _, ok := st.Option(id); ok {
				return id
			}
			return st.Options[0].ID
		}
	}

	rt := New(Options{Random: &random.Scripted{}})
	_, err := rt.Start(bgctx, loop(t), beginner())
	require.NoError(t, err)
	out := play(t, rt, always("rush"))
	assert.Equal(t, Completed, out.State)

	sess := rt.Session()
	assert.LessOrEqual(t, sess.StepsTaken, 3*scenario.DefaultMaxRevisits)
	report, err := rt.Results()
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 50, report.Score)
}

func TestRuntime_ExhaustivePathsTerminate(t *testing.T) {
	scenarios := append(bundle(t).Scenarios.List(), loop(t))
	for _, sc := range scenarios {
		g := scenario.NewGraph(sc)
		ex := scenario.Explore(g, scenario.DefaultMaxRevisits)
		paths := append(append([][]scenario.Move{}, ex.Paths...), ex.Unbounded...)
		require.NotEmpty(t, paths, sc.ID)

		for _, path := range paths {
			rt := New(Options{Random: &random.Scripted{}})
			_, err := rt.Start(bgctx, sc, beginner())
			require.NoError(t, err)

			i := 0
			out := play(t, rt, func(st *scenario.Step) string {
				if i < len(path) && path[i].StepID == st.ID {
					id := path[i].OptionID
					i++
					return id
				}
				return firstCorrect(st)
			})
			assert.Equal(t, Completed, out.State, sc.ID)
			assert.LessOrEqual(t, rt.Session().StepsTaken, g.Len()*scenario.DefaultMaxRevisits, sc.ID)
		}
	}
}

func TestRuntime_DanglingEdgeIsTerminal(t *testing.T) {
	sc := loop(t)
	sc.Steps[0].Options[0].Next = "ghost"

	core, logs := observer.New(zapcore.WarnLevel)
	rt := New(Options{Random: &random.Scripted{}, Logger: zap.New(core)})
	_, err := rt.Start(bgctx, sc, beginner())
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("authoring defect").Len())

	out, err := rt.SubmitAnswer("safe")
	require.NoError(t, err)
	assert.True(t, out.Terminal)

	out, err = rt.Advance(bgctx)
	require.NoError(t, err)
	assert.Equal(t, Completed, out.State)
	assert.Equal(t, 1, logs.FilterMessage("dangling edge treated as terminal").Len())
}

func TestRuntime_SinkFailureDoesNotAlterState(t *testing.T) {
	sink := &recordingSink{fail: errors.New("disk full")}
	core, logs := observer.New(zapcore.WarnLevel)
	rt := New(Options{Random: &random.Scripted{}, Sink: sink, Logger: zap.New(core)})
	_, err := rt.Start(bgctx, loop(t), beginner())
	require.NoError(t, err)

	out := play(t, rt, firstCorrect)
	assert.Equal(t, Completed, out.State)
	assert.Len(t, sink.got, 1)
	assert.Equal(t, 1, logs.FilterMessage("completion sink failed").Len())

	report, err := rt.Results()
	require.NoError(t, err)
	assert.Equal(t, 100, report.Score)
}

func chainRuntime(t *testing.T, manual bool, sink CompletionSink) *Runtime {
	t.Helper()
	b := bundle(t)
	o, err := chain.New(b.Chains, nil)
	require.NoError(t, err)
	return New(Options{
		Random:             &random.Scripted{Floats: []float64{0}, Ints: []int{0}},
		Chains:             o,
		Catalogue:          b.Scenarios,
		Sink:               sink,
		ChainProbability:   1,
		ManualChainAdvance: manual,
	})
}

func TestRuntime_ChainAutoAdvance(t *testing.T) {
	sink := &recordingSink{}
	rt := chainRuntime(t, false, sink)

	sess, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	require.NotNil(t, sess.Chain)
	assert.Equal(t, "emergency_response", sess.Chain.ChainType)

	out := play(t, rt, firstCorrect)
	require.NotNil(t, out.ChainNext)
	assert.Equal(t, "brandwond", out.ChainNext.NextScenarioID, "a high score skips the complications stage")
	require.NotNil(t, out.Scenario)
	assert.Equal(t, "brandwond", out.Scenario.ID)
	assert.Equal(t, InProgress, out.State)
	require.NotNil(t, out.Report)
	assert.True(t, out.Report.Intermediate)
	assert.Empty(t, sink.got, "intermediate stages are not reported")

	sess = rt.Session()
	assert.Equal(t, "brandwond", sess.Scenario.ID)
	assert.Empty(t, sess.Results)
	assert.Equal(t, 1, sess.Chain.CurrentIndex)

	out = play(t, rt, firstCorrect)
	assert.Equal(t, Completed, out.State)
	assert.Nil(t, out.ChainNext)

	report, err := rt.Results()
	require.NoError(t, err)
	require.NotNil(t, report.Chain)
	assert.True(t, report.Chain.IsComplete)
	assert.Equal(t, []int{100, 100}, report.Chain.Scores())

	require.Len(t, sink.got, 1)
	assert.Equal(t, "brandwond", sink.got[0].ScenarioID)
	assert.Equal(t, "emergency_response", sink.got[0].ChainType)
	assert.True(t, sink.got[0].IsEnhanced)
}

func TestRuntime_ManualChainAdvance(t *testing.T) {
	rt := chainRuntime(t, true, nil)
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)

	out := play(t, rt, firstCorrect)
	assert.Equal(t, Completed, out.State)
	require.NotNil(t, out.ChainNext)

	report, err := rt.Results()
	require.NoError(t, err)
	assert.True(t, report.Intermediate)
	assert.Equal(t, 33, report.Chain.Progress().CompletionPercent)

	sc, err := rt.AdvanceChain(bgctx)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.Equal(t, "brandwond", sc.ID)
	assert.Equal(t, InProgress, rt.State())

	sc, err = rt.AdvanceChain(bgctx)
	require.NoError(t, err)
	assert.Nil(t, sc, "nothing pending mid-scenario")
}

func TestRuntime_ChainInsightsIncludeHistory(t *testing.T) {
	b := bundle(t)
	o, err := chain.New(b.Chains, nil)
	require.NoError(t, err)
	rt := New(Options{
		Random:           &random.Scripted{Floats: []float64{0}, Ints: []int{0}},
		Chains:           o,
		Catalogue:        b.Scenarios,
		History:          fixedHistory{20, 30, 25, 10, 35},
		ChainProbability: 1,
	})

	_, err = rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	out := play(t, rt, firstCorrect)
	require.NotNil(t, out.ChainNext)
	out = play(t, rt, firstCorrect)
	require.Equal(t, Completed, out.State)

	report, err := rt.Results()
	require.NoError(t, err)
	require.NotNil(t, report.Chain)
	assert.Equal(t, []int{100, 100}, report.Chain.Scores())

	// Window is 20 30 25 10 35 100 100: the last three clearly beat the
	// three before, and the mean stays under 60.
	kinds := insightKinds(report)
	assert.Contains(t, kinds, scoring.KindImprovement)
	assert.Contains(t, kinds, scoring.KindConsistentWeakness)
	assert.Contains(t, kinds, scoring.KindStrongPerformance)
}

func TestRuntime_InsightsWithoutChainUseHistory(t *testing.T) {
	rt := New(Options{
		Random:  &random.Scripted{},
		History: fixedHistory{20, 30, 25, 10, 35},
	})
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	out := play(t, rt, firstCorrect)
	require.Equal(t, Completed, out.State)

	report, err := rt.Results()
	require.NoError(t, err)
	assert.Nil(t, report.Chain)
	kinds := insightKinds(report)
	assert.Contains(t, kinds, scoring.KindImprovement)
	assert.Contains(t, kinds, scoring.KindConsistentWeakness)
}

func TestRuntime_StartChain(t *testing.T) {
	rt := chainRuntime(t, false, nil)

	_, err := rt.StartChain(bgctx, "nope", beginner())
	assert.ErrorIs(t, err, ErrUnknownChain)

	sess, err := rt.StartChain(bgctx, "sports_day", beginner())
	require.NoError(t, err)
	assert.Equal(t, "enkelblessure", sess.Scenario.ID)
	assert.Equal(t, "sports_day", sess.Chain.ChainType)
}

func TestRuntime_NoChainWhenDrawFails(t *testing.T) {
	b := bundle(t)
	o, err := chain.New(b.Chains, nil)
	require.NoError(t, err)
	rt := New(Options{
		Random:           &random.Scripted{Floats: []float64{0.5}},
		Chains:           o,
		Catalogue:        b.Scenarios,
		ChainProbability: 0.3,
	})
	sess, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	assert.Nil(t, sess.Chain)
}

func TestRuntime_AdaptiveMode(t *testing.T) {
	rt := New(Options{
		Random:   &random.Scripted{},
		Adaptive: adaptive.New(true),
		History:  fixedHistory{90, 95, 88},
	})
	sess, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	assert.Equal(t, scenario.Intermediate, sess.Difficulty, "strong history promotes the tier")
	assert.Equal(t, 30, sess.TimeRemaining)

	out, err := rt.SubmitAnswer("b")
	require.NoError(t, err)
	assert.Equal(t, 98, out.Resources.Time)
}

func TestRuntime_ResetDiscardsSession(t *testing.T) {
	rt := New(Options{Random: &random.Scripted{}})
	_, err := rt.Start(bgctx, builtin(t, "bewusteloos"), beginner())
	require.NoError(t, err)
	assert.Equal(t, timer.Running, rt.TimerState())

	rt.Reset()
	assert.Nil(t, rt.Session())
	assert.Equal(t, NotStarted, rt.State())
	assert.Equal(t, timer.Cancelled, rt.TimerState())
	assert.Nil(t, rt.Tick(bgctx))
}

func TestRuntime_SessionsAreIsolated(t *testing.T) {
	sc := builtin(t, "bewusteloos")
	a := New(Options{Random: &random.Scripted{}})
	b := New(Options{Random: &random.Scripted{}})
	_, err := a.Start(bgctx, sc, beginner())
	require.NoError(t, err)
	_, err = b.Start(bgctx, sc, beginner())
	require.NoError(t, err)

	_, err = a.SubmitAnswer("a")
	require.NoError(t, err)
	assert.Empty(t, b.Session().Results)
	assert.NotEqual(t, a.Session().ID, b.Session().ID)
}

func TestRuntime_TraceRecordsPlayThrough(t *testing.T) {
	var buf bytes.Buffer
	rt := New(Options{Random: &random.Scripted{}, Trace: trace.NewWriter(&buf, "")})
	_, err := rt.Start(bgctx, loop(t), beginner())
	require.NoError(t, err)
	play(t, rt, firstCorrect)

	events, err := trace.ReadEvents(&buf)
	require.NoError(t, err)
	var types []trace.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []trace.EventType{
		trace.EventSessionStart,
		trace.EventStepStart, trace.EventAnswer,
		trace.EventStepStart, trace.EventAnswer,
		trace.EventSessionComplete,
	}, types)
	assert.Equal(t, rt.Session().ID, events[0].SessionID)
}
