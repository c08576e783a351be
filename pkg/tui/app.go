package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/ehbo/pkg/complications"
	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// --- Tea messages ---

// startedMsg is sent after a session starts.
type startedMsg struct {
	sess *engine.Session
	err  error
}

// tickMsg advances the step clock by one second.
type tickMsg time.Time

// --- Overlay state ---

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlayRole
	overlayChoice
	overlaySummary
)

// --- Model ---

// Model is the top-level Bubble Tea model for the TUI.
type Model struct {
	// Components
	steps   stepsPanel
	output  outputPanel
	detail  detailBar
	spinner spinner.Model

	// Overlays
	choice   choiceOverlay
	summary  summaryOverlay
	overlay  overlayKind
	roleText string

	rt    *engine.Runtime
	ctx   context.Context
	start func(context.Context) (*engine.Session, error)
	tick  time.Duration

	// State
	started         bool
	completed       bool
	awaitingAdvance bool
	fatalErr        string
	title           string
	difficulty      scenario.Difficulty
	startTime       time.Time

	// Layout
	compact bool
	width   int
	height  int
}

// Config holds the parameters needed to launch the TUI.
type Config struct {
	// Runtime should be created with ManualChainAdvance so the report of
	// each chain stage stays on screen until the player continues.
	Runtime  *engine.Runtime
	Profile  engine.Profile
	Scenario *scenario.Scenario
	// ChainType starts a chain instead of Scenario when set.
	ChainType string
	Compact   bool
	// Tick is the step clock interval; one second when zero.
	Tick time.Duration
}

// NewModel builds the model for cfg.
func NewModel(ctx context.Context, cfg Config) (Model, error) {
	if cfg.Runtime == nil {
		return Model{}, errors.New("tui: no runtime")
	}
	if cfg.Scenario == nil && cfg.ChainType == "" {
		return Model{}, errors.New("tui: no scenario or chain to play")
	}
	rt, p := cfg.Runtime, cfg.Profile
	start := func(ctx context.Context) (*engine.Session, error) {
		return rt.Start(ctx, cfg.Scenario, p)
	}
	if cfg.ChainType != "" {
		start = func(ctx context.Context) (*engine.Session, error) {
			return rt.StartChain(ctx, cfg.ChainType, p)
		}
	}
	tick := cfg.Tick
	if tick <= 0 {
		tick = time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		steps:   newStepsPanel(),
		output:  newOutputPanel(),
		detail:  newDetailBar(),
		spinner: sp,
		choice:  newChoiceOverlay(),
		summary: newSummaryOverlay(),
		rt:      rt,
		ctx:     ctx,
		start:   start,
		tick:    tick,
		compact: cfg.Compact,
	}, nil
}

// Run starts the TUI and blocks until the player quits.
func Run(ctx context.Context, cfg Config) error {
	m, err := NewModel(ctx, cfg)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

// Init returns the initial commands: start spinner, start the session, start the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.startSession(),
		m.tickCmd(),
	)
}

func (m Model) startSession() tea.Cmd {
	return func() tea.Msg {
		sess, err := m.start(m.ctx)
		return startedMsg{sess: sess, err: err}
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.choice.width = msg.Width
		m.choice.height = msg.Height
		m.summary.width = msg.Width
		m.summary.height = msg.Height
		if msg.Width < 80 {
			m.compact = true
		}
		m.layoutPanels()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case startedMsg:
		if msg.err != nil {
			m.fatalErr = msg.err.Error()
			return m, nil
		}
		m.enterSession(msg.sess)

	case tickMsg:
		if m.started && !m.completed {
			if out := m.rt.Tick(m.ctx); out != nil {
				m.onTimeout(out)
			}
			m.refreshClock()
		}
		cmds = append(cmds, m.tickCmd())
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if matchKey(msg, keys.Quit) {
		return m, tea.Quit
	}

	switch m.overlay {
	case overlayRole:
		if matchKey(msg, keys.Advance) {
			if err := m.rt.AcknowledgeRole(); err != nil {
				m.fatalErr = err.Error()
				return m, nil
			}
			m.overlay = overlayNone
			m.showStep()
		}
		return m, nil

	case overlayChoice:
		if !m.choice.Update(msg) {
			return m, nil
		}
		id := m.choice.Selected()
		if m.choice.kind == choiceAdaptation {
			m.resolve(id)
		} else {
			m.answer(id)
		}
		return m, tea.ClearScreen

	case overlaySummary:
		switch {
		case matchKey(msg, keys.Chain):
			return m, m.continueChain()
		case matchKey(msg, keys.Restart):
			return m, m.startSession()
		case matchKey(msg, keys.Close):
			m.overlay = overlayNone
		}
		return m, nil
	}

	switch {
	case matchKey(msg, keys.Advance):
		if m.awaitingAdvance {
			m.advance()
		}

	case matchKey(msg, keys.Up):
		m.steps.CursorUp()
		m.output.Show(m.steps.SelectedKey())

	case matchKey(msg, keys.Down):
		m.steps.CursorDown()
		m.output.Show(m.steps.SelectedKey())

	case matchKey(msg, keys.PgUp):
		m.output.PageUp()

	case matchKey(msg, keys.PgDown):
		m.output.PageDown()

	case matchKey(msg, keys.Results):
		if m.completed {
			m.overlay = overlaySummary
		}

	case matchKey(msg, keys.Restart):
		if m.completed {
			return m, m.startSession()
		}

	case matchKey(msg, keys.Chain):
		if m.completed {
			return m, m.continueChain()
		}
	}

	return m, nil
}

// matchKey checks if a key message matches a key.Binding.
func matchKey(msg tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(msg, binding)
}

// enterSession resets the panels for a freshly started scenario.
func (m *Model) enterSession(sess *engine.Session) {
	m.started = true
	m.completed = false
	m.awaitingAdvance = false
	m.title = sess.Scenario.Title
	m.difficulty = sess.Difficulty
	m.startTime = time.Now()
	m.steps.Reset()
	m.output.Reset()
	m.summary.Reset()
	m.choice.Hide()
	m.detail.SetSession(sess)
	m.detail.ClearAnswer()

	if sess.State == engine.RoleIntro && sess.Role != nil {
		m.roleText = roleMarkdown(sess)
		m.overlay = overlayRole
		return
	}
	m.overlay = overlayNone
	m.showStep()
}

// showStep records a visit to the current step and offers its options.
func (m *Model) showStep() {
	sess := m.rt.Session()
	st, ok := sess.CurrentStep()
	if !ok {
		return
	}
	k := m.steps.Enter(st.ID, st.Question)
	m.output.Show(k)
	m.output.Append(k, fmt.Sprintf("━━━ Step: %s ━━━\n  %s\n\n", st.ID, st.Question))

	items := make([]choiceItem, len(st.Options))
	for i, o := range st.Options {
		items[i] = choiceItem{ID: o.ID, Label: o.Text}
	}
	m.choice.Show(choiceOption, "Step "+st.ID, st.Question, "", items)
	m.overlay = overlayChoice
	m.detail.SetSession(sess)
	m.detail.ClearAnswer()
	m.refreshClock()
}

func (m *Model) answer(optionID string) {
	k := m.steps.CurrentKey()
	out, err := m.rt.SubmitAnswer(optionID)
	if err != nil {
		m.output.Append(k, errorStyle.Render("Error: "+err.Error())+"\n")
		return
	}
	if out.Rejected {
		return
	}
	m.choice.Hide()
	m.overlay = overlayNone

	label := optionID
	if st, ok := m.rt.Session().CurrentStep(); ok {
		if o, ok := st.Option(optionID); ok {
			label = o.Text
		}
	}
	var b strings.Builder
	b.WriteString("  " + detailLabelStyle.Render("You chose: ") + label + "\n")
	if out.Correct {
		m.steps.SetLastStatus(statusCorrect)
		b.WriteString("  " + correctStyle.Render(GlyphCorrect+" Correct") + "\n")
	} else {
		m.steps.SetLastStatus(statusIncorrect)
		b.WriteString("  " + incorrectStyle.Render(GlyphIncorrect+" Incorrect") + "\n")
	}
	if out.Feedback != "" {
		b.WriteString("  " + out.Feedback + "\n")
	}
	if out.Explanation != "" {
		b.WriteString(renderMarkdown(out.Explanation) + "\n")
	}
	m.output.Append(k, b.String())
	m.detail.SetSession(m.rt.Session())
	m.detail.SetAnswer(out.Correct)

	if out.Complication != nil {
		m.showComplication(out.Complication)
		return
	}
	m.awaitingAdvance = true
}

func (m *Model) showComplication(c *complications.Complication) {
	var md strings.Builder
	md.WriteString(c.Description)
	if len(c.Effects) > 0 {
		md.WriteString("\n\n")
		for _, e := range c.Effects {
			md.WriteString("- " + e + "\n")
		}
	}
	items := make([]choiceItem, len(c.Adaptations))
	for i, a := range c.Adaptations {
		items[i] = choiceItem{ID: a.ID, Label: a.Text}
	}
	m.output.Append(m.steps.CurrentKey(), "\n"+alertStyle.Render(GlyphAlert+" Complication: "+c.Name)+"\n")
	m.choice.Show(choiceAdaptation, GlyphAlert+" Complication: "+c.Name, "How do you adapt?",
		renderMarkdownWidth(md.String(), m.choice.width-12), items)
	m.overlay = overlayChoice
}

func (m *Model) resolve(choiceID string) {
	k := m.steps.CurrentKey()
	state, err := m.rt.ResolveComplication(choiceID)
	if err != nil {
		m.output.Append(k, errorStyle.Render("Error: "+err.Error())+"\n")
		return
	}
	m.output.Append(k, fmt.Sprintf("  %s %s (time %d · stress %d · effectiveness %d)\n",
		detailLabelStyle.Render("Adapted:"), choiceID, state.Time, state.Stress, state.Effectiveness))
	m.detail.SetSession(m.rt.Session())
	if c, ok := m.rt.ActiveComplication(); ok {
		m.showComplication(c)
		return
	}
	m.choice.Hide()
	m.overlay = overlayNone
	m.awaitingAdvance = true
}

func (m *Model) advance() {
	out, err := m.rt.Advance(m.ctx)
	m.awaitingAdvance = false
	if err != nil {
		m.fatalErr = err.Error()
		return
	}
	if out.State == engine.InProgress && out.ChainNext == nil {
		m.showStep()
		return
	}
	m.complete(out)
}

func (m *Model) onTimeout(out *engine.StepOutcome) {
	m.steps.SetLastStatus(statusTimedOut)
	m.output.Append(m.steps.CurrentKey(), "\n"+incorrectStyle.Render(GlyphTimedOut+" Time is up")+"\n")
	m.choice.Hide()
	m.complete(out)
}

// complete shows the report of a finished scenario or chain stage.
func (m *Model) complete(out *engine.StepOutcome) {
	m.completed = true
	m.awaitingAdvance = false
	m.detail.SetSession(m.rt.Session())
	report := out.Report
	if report == nil {
		report, _ = m.rt.Results()
	}
	if report == nil {
		return
	}
	m.summary.Show(report, m.startTime)
	if out.ChainNext != nil {
		m.summary.SetChainNext(out.ChainNext.NextScenarioID, out.ChainNext.Progress.CompletionPercent)
	}
	m.overlay = overlaySummary
}

// continueChain enters the pending chain stage, if any.
func (m *Model) continueChain() tea.Cmd {
	if m.summary.chainNext == "" {
		return nil
	}
	sc, err := m.rt.AdvanceChain(m.ctx)
	if err != nil {
		m.fatalErr = err.Error()
		return nil
	}
	if sc == nil && m.rt.State() == engine.Completed {
		return nil
	}
	m.enterSession(m.rt.Session())
	return tea.ClearScreen
}

// refreshClock copies the countdown into the detail bar and choice title.
func (m *Model) refreshClock() {
	sess := m.rt.Session()
	m.detail.SetSession(sess)
	if sess != nil && sess.TimeRemaining > 0 && m.overlay == overlayChoice && m.choice.kind == choiceOption {
		m.choice.SetTimer(timerText(sess.TimeRemaining))
	}
}

func roleMarkdown(sess *engine.Session) string {
	r := sess.Role
	title := r.Title
	if title == "" {
		title = r.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Your role: %s\n\n", title)
	if r.Description != "" {
		b.WriteString(r.Description + "\n\n")
	}
	if len(r.Responsibilities) > 0 {
		b.WriteString("**Responsibilities**\n\n")
		for _, s := range r.Responsibilities {
			b.WriteString("- " + s + "\n")
		}
		b.WriteString("\n")
	}
	if len(r.Challenges) > 0 {
		b.WriteString("**Challenges**\n\n")
		for _, s := range r.Challenges {
			b.WriteString("- " + s + "\n")
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Starting stress: %d\n", sess.Resources.Stress)
	return b.String()
}

// layoutPanels recalculates panel dimensions based on terminal size.
func (m *Model) layoutPanels() {
	if m.width == 0 || m.height == 0 {
		return
	}

	headerH := 1
	detailH := 7
	mainH := m.height - headerH - detailH
	if mainH < 4 {
		mainH = 4
	}

	if m.compact {
		m.steps.width = 0
		m.steps.height = 0
		m.output.SetSize(m.width, mainH)
	} else {
		stepsW := m.width * 30 / 100
		if stepsW < 25 {
			stepsW = 25
		}
		if stepsW > 45 {
			stepsW = 45
		}
		m.steps.width = stepsW
		m.steps.height = mainH
		m.output.SetSize(m.width-stepsW, mainH)
	}

	m.detail.width = m.width
}

// View renders the complete TUI.
func (m Model) View() string {
	if m.fatalErr != "" {
		return errorStyle.Render("Fatal: "+m.fatalErr) + "\n\nPress q to quit."
	}

	switch m.overlay {
	case overlayRole:
		return m.renderRoleOverlay()
	case overlayChoice:
		return m.choice.View()
	case overlaySummary:
		return m.summary.View()
	}

	header := m.renderHeader()

	var main string
	if m.width > 0 {
		if m.compact {
			main = m.output.View()
		} else {
			main = lipgloss.JoinHorizontal(lipgloss.Top, m.steps.View(), m.output.View())
		}
	}

	return header + "\n" + main + "\n" + m.detail.View(m.awaitingAdvance, m.completed, m.overlay)
}

func (m Model) renderRoleOverlay() string {
	contentW := m.width - 8
	if contentW < 50 {
		contentW = 50
	}
	content := renderMarkdownWidth(m.roleText, contentW-4) + "\n\n" +
		keyStyle.Render("Enter") + keyDescStyle.Render(":begin")
	box := overlayBorder.Width(contentW).Render(content)
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// renderHeader builds the top header line.
func (m Model) renderHeader() string {
	title := headerStyle.Render("ehbo")
	badge := badgeStyle.Render(string(m.difficulty))

	var status string
	switch {
	case m.completed:
		total, correct, incorrect, timedOut := m.steps.Stats()
		status = fmt.Sprintf("%s/%s/%s/%d",
			correctStyle.Render(fmt.Sprintf("%s%d", GlyphCorrect, correct)),
			incorrectStyle.Render(fmt.Sprintf("%s%d", GlyphIncorrect, incorrect)),
			stepTimedOut.Render(fmt.Sprintf("%s%d", GlyphTimedOut, timedOut)),
			total)
	case m.awaitingAdvance:
		status = "press enter"
	case m.started:
		status = m.spinner.View() + " playing"
	default:
		status = "loading..."
	}

	left := title + " " + badge + "  " + detailValueStyle.Render(m.title)
	padding := m.width - lipgloss.Width(left) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + status
}
