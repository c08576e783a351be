package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ormasoftchile/ehbo/pkg/adaptive"
	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/complications"
	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/resources"
	"github.com/ormasoftchile/ehbo/pkg/roles"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
	"github.com/ormasoftchile/ehbo/pkg/timer"
	"github.com/ormasoftchile/ehbo/pkg/trace"
)

// DefaultGenericSubject is the noun roles replace in step text.
const DefaultGenericSubject = "the victim"

// historyWindow is how many past scores adaptive difficulty and insights read.
const historyWindow = 10

// Options wires a Runtime to its collaborators. Everything is optional.
type Options struct {
	Roles         []roles.Role
	Complications []complications.Complication
	Chains        *chain.Orchestrator
	// Catalogue resolves chain stage scenario ids.
	Catalogue scenario.Catalogue
	Random    random.Source
	Sink      CompletionSink
	History   ScoreHistory
	Adaptive  *adaptive.Controller
	Trace     *trace.Writer
	Logger    *zap.Logger

	// ChainProbability is the chance a new chain begins at Start.
	ChainProbability float64
	// MaxRevisits bounds how often, on average, each step may be entered.
	MaxRevisits int
	// GenericSubject is the placeholder noun a role rewrites.
	GenericSubject string
	// ManualChainAdvance leaves a completed chain stage in Completed until
	// AdvanceChain is called.
	ManualChainAdvance bool

	newID func() string
}

// Runtime owns at most one session. All methods are safe for concurrent use;
// they are serialized so a ticker goroutine and a UI never interleave.
type Runtime struct {
	mu     sync.Mutex
	opts   Options
	logger *zap.Logger
	timer  *timer.Timer

	profile Profile
	sess    *session
	report  *Report
}

// session is the mutable play-through state behind Session snapshots.
type session struct {
	id          string
	scenario    *scenario.Scenario
	graph       *scenario.Graph
	difficulty  scenario.Difficulty
	stepIndex   int
	stepID      string
	results     map[string]StepResult
	order       []string
	model       *resources.Model
	role        *roles.Role
	tracker     *complications.Tracker
	chain       *chain.State
	accessible  bool
	stepsTaken  int
	state       State
	timedOut    bool
	answered    bool
	stepTicks   int
	timeLimit   int
	chainNext   *chain.Next
	chainTarget *scenario.Scenario
}

// New creates a runtime.
func New(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Random == nil {
		opts.Random = random.Default()
	}
	if opts.MaxRevisits <= 0 {
		opts.MaxRevisits = scenario.DefaultMaxRevisits
	}
	if opts.GenericSubject == "" {
		opts.GenericSubject = DefaultGenericSubject
	}
	if opts.newID == nil {
		opts.newID = func() string { return uuid.NewString() }
	}
	r := &Runtime{
		opts:   opts,
		logger: opts.Logger,
		timer:  timer.New(),
	}
	r.timer.OnExpire(func() {
		if r.sess != nil {
			r.logger.Info("step timed out",
				zap.String("scenario_id", r.sess.scenario.ID),
				zap.String("step_id", r.sess.stepID),
				zap.Int("time_limit", r.sess.timeLimit))
		}
	})
	return r
}

// Start discards any current session and begins sc for profile p.
func (r *Runtime) Start(ctx context.Context, sc *scenario.Scenario, p Profile) (*Session, error) {
	if sc == nil {
		return nil, fmt.Errorf("engine: start: %w", ErrNoScenario)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.discard()
	r.profile = p
	difficulty := r.recommend(ctx, p)

	var cs *chain.State
	if r.opts.Chains != nil && chain.MaybeStart(false, r.opts.ChainProbability, r.opts.Random) {
		cs = r.opts.Chains.InitializeChain(chain.PickType(r.opts.Chains.Types(), r.opts.Random), difficulty)
		if cs != nil {
			r.logger.Info("chain started", zap.String("chain_type", cs.ChainType), zap.String("scenario_id", sc.ID))
		}
	}

	if err := r.begin(sc, difficulty, cs); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

// StartChain begins chainType at its first stage for profile p.
func (r *Runtime) StartChain(ctx context.Context, chainType string, p Profile) (*Session, error) {
	if r.opts.Chains == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chainType)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.discard()
	r.profile = p
	difficulty := r.recommend(ctx, p)

	cs := r.opts.Chains.InitializeChain(chainType, difficulty)
	if cs == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChain, chainType)
	}
	id := r.opts.Chains.CurrentScenario(cs)
	sc, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := r.begin(sc, difficulty, cs); err != nil {
		return nil, err
	}
	return r.snapshot(), nil
}

func (r *Runtime) lookup(id string) (*scenario.Scenario, error) {
	if r.opts.Catalogue == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoScenario, id)
	}
	sc, ok := r.opts.Catalogue.Scenario(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoScenario, id)
	}
	return sc, nil
}

// recommend picks the tier for a new session.
func (r *Runtime) recommend(ctx context.Context, p Profile) scenario.Difficulty {
	d := p.difficulty()
	if r.opts.Adaptive == nil || !r.opts.Adaptive.Enabled {
		return d
	}
	next := r.opts.Adaptive.Recommend(d, r.pastScores(ctx))
	if next != d {
		r.logger.Info("adaptive difficulty", zap.String("from", string(d)), zap.String("to", string(next)))
	}
	return next
}

func (r *Runtime) pastScores(ctx context.Context) []int {
	if r.opts.History == nil || r.profile.ID == "" {
		return nil
	}
	scores, err := r.opts.History.Scores(ctx, r.profile.ID, historyWindow)
	if err != nil {
		r.logger.Warn("score history unavailable", zap.String("profile_id", r.profile.ID), zap.Error(err))
		return nil
	}
	return scores
}

// begin creates the session for sc. Caller holds r.mu.
func (r *Runtime) begin(sc *scenario.Scenario, difficulty scenario.Difficulty, cs *chain.State) error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyScenario, sc.ID)
	}
	r.timer.Cancel()
	r.report = nil

	s := &session{
		id:         r.opts.newID(),
		difficulty: difficulty,
		results:    make(map[string]StepResult),
		chain:      cs,
		accessible: r.profile.Accessible(),
		state:      NotStarted,
	}
	r.opts.Trace.SetSession(s.id)

	played := sc
	stress := resources.DefaultStress
	if len(r.opts.Roles) > 0 {
		role, err := roles.Assign(r.opts.Roles, difficulty, r.opts.Random)
		if err != nil {
			r.logger.Warn("no role assigned", zap.String("scenario_id", sc.ID), zap.Error(err))
		} else {
			s.role = &role
			stress = role.InitialStress()
			played = roles.DecorateScenario(sc, r.opts.GenericSubject, role)
		}
	}
	s.scenario = played
	s.graph = scenario.NewGraph(played)
	for _, e := range s.graph.Validate() {
		r.logger.Warn("authoring defect", zap.String("scenario_id", sc.ID), zap.String("path", e.Path), zap.String("message", e.Message))
	}

	s.tracker = complications.NewTracker(complications.Select(
		r.opts.Complications, complications.ContextFor(sc), difficulty, s.graph.Len(), r.opts.Random))
	s.model = resources.NewModel(resources.Initial(stress))

	r.sess = s
	log := r.logger.With(zap.String("session_id", s.id), zap.String("scenario_id", sc.ID))
	log.Info("session started",
		zap.String("difficulty", string(difficulty)),
		zap.Bool("accessibility", s.accessible),
		zap.Int("complications", s.tracker.Len()))
	r.emit(r.opts.Trace.EmitSessionStart(sc.ID, string(difficulty), s.accessible, s.model.State()))

	if s.role != nil {
		s.state = RoleIntro
		r.emit(r.opts.Trace.EmitRoleAssigned(s.role.Name, s.model.State().Stress))
		return nil
	}
	s.state = InProgress
	r.enterStep(0)
	return nil
}

// AcknowledgeRole dismisses the role introduction and starts the first step.
func (r *Runtime) AcknowledgeRole() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return ErrNoSession
	}
	if r.sess.state != RoleIntro {
		return fmt.Errorf("%w: acknowledge role in %s", ErrWrongState, r.sess.state)
	}
	r.sess.state = InProgress
	r.enterStep(0)
	return nil
}

// enterStep makes the step at idx current and starts its timer.
// Caller holds r.mu.
func (r *Runtime) enterStep(idx int) {
	s := r.sess
	st := &s.graph.Scenario().Steps[idx]
	s.stepIndex = idx
	s.stepID = st.ID
	s.stepsTaken++
	s.answered = false
	s.stepTicks = 0
	s.timeLimit = 0

	if !s.accessible {
		limit := r.opts.Adaptive.TimeLimit(st.TimeLimitSeconds, s.difficulty)
		if err := r.timer.Start(limit); err != nil {
			r.logger.Warn("step runs untimed", zap.String("scenario_id", s.scenario.ID), zap.String("step_id", st.ID), zap.Error(err))
		} else {
			s.timeLimit = limit
		}
	}
	r.emit(r.opts.Trace.EmitStepStart(st.ID, idx, s.timeLimit))
}

// SubmitAnswer records optionID for the current step. A second answer to the
// same step visit is a no-op with Rejected set.
func (r *Runtime) SubmitAnswer(optionID string) (*StepOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sess
	if s == nil {
		return nil, ErrNoSession
	}
	if s.answered {
		return &StepOutcome{Rejected: true, StepID: s.stepID, Resources: s.model.State(), State: s.state}, nil
	}
	if s.state != InProgress {
		return nil, fmt.Errorf("%w: submit answer in %s", ErrWrongState, s.state)
	}

	st, _ := s.graph.Step(s.stepID)
	opt, ok := st.Option(optionID)
	if !ok {
		return nil, fmt.Errorf("%w: %q at step %q", ErrInvalidOption, optionID, st.ID)
	}

	r.timer.Cancel()
	res := StepResult{
		StepID:           st.ID,
		SelectedOptionID: opt.ID,
		Correct:          opt.Correct,
		TimeUsedSeconds:  s.stepTicks,
	}
	r.record(res)

	s.model.Apply(resources.AnswerDelta(opt.Correct))
	if opt.Effect != nil {
		s.model.Apply(*opt.Effect)
	}
	if cost := r.opts.Adaptive.TimeCost(); cost != nil {
		s.model.Apply(*cost)
	}
	r.emit(r.opts.Trace.EmitAnswer(st.ID, opt.ID, opt.Correct, res.TimeUsedSeconds, s.model.State()))

	_, _, dangling := s.graph.Resolve(opt)
	out := &StepOutcome{
		StepID:      st.ID,
		OptionID:    opt.ID,
		Correct:     opt.Correct,
		Feedback:    opt.Feedback,
		Explanation: st.Explanation,
		Terminal:    opt.Terminal() || dangling,
		Resources:   s.model.State(),
		State:       InProgress,
	}

	if c, ok := s.tracker.Trigger(s.stepIndex); ok {
		s.state = ComplicationPause
		cp := *c
		out.Complication = &cp
		out.State = ComplicationPause
		r.logger.Info("complication triggered",
			zap.String("scenario_id", s.scenario.ID), zap.String("step_id", st.ID), zap.String("complication", c.Name))
		r.emit(r.opts.Trace.EmitComplicationTriggered(c.Name, string(c.Category), s.stepIndex))
	}
	return out, nil
}

func (r *Runtime) record(res StepResult) {
	s := r.sess
	if _, seen := s.results[res.StepID]; !seen {
		s.order = append(s.order, res.StepID)
	}
	s.results[res.StepID] = res
	s.answered = true
}

// ResolveComplication applies the chosen adaptation of the active
// complication and returns the updated resources.
func (r *Runtime) ResolveComplication(choiceID string) (resources.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sess
	if s == nil {
		return resources.State{}, ErrNoSession
	}
	if s.state != ComplicationPause {
		return s.model.State(), fmt.Errorf("%w: resolve complication in %s", ErrWrongState, s.state)
	}
	active, _ := s.tracker.Active()
	name := active.Name
	ch, err := s.tracker.Resolve(choiceID)
	if err != nil {
		return s.model.State(), err
	}
	state := s.model.Apply(ch.Effect)
	r.emit(r.opts.Trace.EmitComplicationResolved(name, ch.ID, state))

	if next, ok := s.tracker.Trigger(s.stepIndex); ok {
		r.emit(r.opts.Trace.EmitComplicationTriggered(next.Name, string(next.Category), s.stepIndex))
		return state, nil
	}
	s.state = InProgress
	return state, nil
}

// ActiveComplication returns the complication awaiting a choice.
func (r *Runtime) ActiveComplication() (*complications.Complication, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil || r.sess.state != ComplicationPause {
		return nil, false
	}
	c, ok := r.sess.tracker.Active()
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Advance follows the answered option's edge. A terminal or dangling edge,
// or exceeding the step budget, completes the scenario.
func (r *Runtime) Advance(ctx context.Context) (*StepOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sess
	if s == nil {
		return nil, ErrNoSession
	}
	if s.state != InProgress || !s.answered {
		return nil, fmt.Errorf("%w: advance in %s (answered=%t)", ErrWrongState, s.state, s.answered)
	}

	st, _ := s.graph.Step(s.stepID)
	opt, _ := st.Option(s.results[s.stepID].SelectedOptionID)
	next, ok, dangling := s.graph.Resolve(opt)
	if dangling {
		r.logger.Warn("dangling edge treated as terminal",
			zap.String("scenario_id", s.scenario.ID), zap.String("step_id", st.ID),
			zap.String("option_id", opt.ID), zap.String("next", opt.Next))
		r.emit(r.opts.Trace.EmitDanglingEdge(st.ID, opt.ID, opt.Next))
	}
	if !ok {
		return r.finish(ctx, false), nil
	}
	if limit := s.graph.Len() * r.opts.MaxRevisits; s.stepsTaken+1 > limit {
		r.logger.Warn("step budget exhausted",
			zap.String("scenario_id", s.scenario.ID), zap.Int("steps_taken", s.stepsTaken), zap.Int("limit", limit))
		return r.finish(ctx, false), nil
	}

	r.enterStep(s.graph.Index(next.ID))
	cp := *next
	return &StepOutcome{StepID: next.ID, Next: &cp, Resources: s.model.State(), State: s.state}, nil
}

// Tick advances the step clock by one second. It returns a non-nil outcome
// only when the step timed out and the scenario completed.
func (r *Runtime) Tick(ctx context.Context) *StepOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sess
	if s == nil || s.state != InProgress || s.answered {
		return nil
	}
	s.stepTicks++
	if !r.timer.Tick() {
		return nil
	}

	r.record(StepResult{StepID: s.stepID, TimeUsedSeconds: s.timeLimit, TimedOut: true})
	s.timedOut = true
	r.emit(r.opts.Trace.EmitTimeout(s.stepID, s.timeLimit))
	out := r.finish(ctx, true)
	out.TimedOut = true
	return out
}

// Drive ticks the runtime every interval until ctx is done, passing each
// timeout outcome to fn.
func (r *Runtime) Drive(ctx context.Context, interval time.Duration, fn func(*StepOutcome)) {
	timer.Drive(ctx, interval, func() {
		if out := r.Tick(ctx); out != nil && fn != nil {
			fn(out)
		}
	})
}

// AdvanceChain moves a completed chain stage on to the next scenario. It
// returns nil when there is no pending chain stage.
func (r *Runtime) AdvanceChain(ctx context.Context) (*scenario.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sess
	if s == nil {
		return nil, ErrNoSession
	}
	if s.state != Completed || s.chainTarget == nil {
		return nil, nil
	}
	return r.enterChainStage()
}

// enterChainStage begins the pending chain stage. Caller holds r.mu.
func (r *Runtime) enterChainStage() (*scenario.Scenario, error) {
	s := r.sess
	target, next, cs := s.chainTarget, s.chainNext, s.chain
	r.emit(r.opts.Trace.EmitChainAdvance(cs.ChainType, target.ID, next.Progress.Current, next.Progress.Total))
	if err := r.begin(target, cs.Difficulty, cs); err != nil {
		return nil, err
	}
	return r.sess.scenario, nil
}

// Results returns the report of the completed scenario.
func (r *Runtime) Results() (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.report == nil {
		return nil, fmt.Errorf("%w: no completed scenario", ErrWrongState)
	}
	cp := *r.report
	cp.Results = append([]StepResult(nil), r.report.Results...)
	cp.Insights = append(cp.Insights[:0:0], r.report.Insights...)
	return &cp, nil
}

// Reset cancels the timer and discards the session.
func (r *Runtime) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discard()
}

func (r *Runtime) discard() {
	r.timer.Cancel()
	if r.sess != nil {
		r.logger.Debug("session discarded", zap.String("session_id", r.sess.id))
	}
	r.sess = nil
	r.report = nil
}

// Session returns a snapshot of the current session, or nil.
func (r *Runtime) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// State is the current state machine position.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess == nil {
		return NotStarted
	}
	return r.sess.state
}

// TimerStarts counts every step timer started by this runtime.
func (r *Runtime) TimerStarts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer.Starts()
}

// TimerState reports the step timer state.
func (r *Runtime) TimerState() timer.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer.State()
}

func (r *Runtime) snapshot() *Session {
	s := r.sess
	if s == nil {
		return nil
	}
	out := &Session{
		ID:                s.id,
		Scenario:          s.scenario,
		Difficulty:        s.difficulty,
		CurrentStepIndex:  s.stepIndex,
		CurrentStepID:     s.stepID,
		Results:           make(map[string]StepResult, len(s.results)),
		Order:             append([]string(nil), s.order...),
		Resources:         s.model.State(),
		Complications:     s.tracker.Items(),
		AccessibilityMode: s.accessible,
		StepsTaken:        s.stepsTaken,
		State:             s.state,
		TimedOut:          s.timedOut,
	}
	for k, v := range s.results {
		out.Results[k] = v
	}
	if s.role != nil {
		role := *s.role
		out.Role = &role
	}
	if s.chain != nil {
		cs := *s.chain
		cs.Results = append([]chain.ScenarioSummary(nil), s.chain.Results...)
		out.Chain = &cs
	}
	if r.timer.State() == timer.Running {
		out.TimeRemaining = r.timer.Remaining()
	}
	return out
}

func (r *Runtime) emit(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn("trace write failed", zap.Error(err))
	}
}
