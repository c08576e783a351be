package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ormasoftchile/ehbo/pkg/catalog"
	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/roles"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

var ctx = context.Background()

func bundle(t *testing.T) *catalog.Bundle {
	t.Helper()
	b, err := catalog.Load()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return b
}

func bewusteloos(t *testing.T, b *catalog.Bundle) *scenario.Scenario {
	t.Helper()
	sc, ok := b.Scenarios.Scenario("bewusteloos")
	if !ok {
		t.Fatal("bewusteloos not in catalogue")
	}
	return sc
}

func beginner() engine.Profile {
	return engine.Profile{ID: "p1", DifficultyPreference: scenario.Beginner}
}

func newModel(t *testing.T, opts engine.Options, sc *scenario.Scenario) Model {
	t.Helper()
	if opts.Random == nil {
		opts.Random = &random.Scripted{}
	}
	m, err := NewModel(ctx, Config{Runtime: engine.New(opts), Profile: beginner(), Scenario: sc})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return started(t, m)
}

func started(t *testing.T, m Model) Model {
	t.Helper()
	m = update(t, m, m.startSession()())
	if m.fatalErr != "" {
		t.Fatalf("start: %s", m.fatalErr)
	}
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m = update(t, m, msg)
	}
	return m
}

func TestNewModelRequiresTarget(t *testing.T) {
	if _, err := NewModel(ctx, Config{}); err == nil {
		t.Error("expected error without runtime")
	}
	rt := engine.New(engine.Options{Random: &random.Scripted{}})
	if _, err := NewModel(ctx, Config{Runtime: rt}); err == nil {
		t.Error("expected error without scenario or chain")
	}
}

func TestModelPlayThrough(t *testing.T) {
	m := newModel(t, engine.Options{}, bewusteloos(t, bundle(t)))
	if m.overlay != overlayChoice || m.choice.kind != choiceOption {
		t.Fatalf("overlay = %d, want option picker", m.overlay)
	}
	if got := m.steps.CurrentKey(); got != "0:1" {
		t.Errorf("current key = %q, want 0:1", got)
	}

	// Option b is the second item.
	m = press(t, m, "2")
	if m.overlay != overlayNone || !m.awaitingAdvance {
		t.Fatalf("answer did not close the picker: overlay=%d awaiting=%t", m.overlay, m.awaitingAdvance)
	}
	if out := m.output.Text("0:1"); !strings.Contains(out, GlyphCorrect+" Correct") {
		t.Errorf("feedback missing: %s", out)
	}

	m = press(t, m, "enter")
	if got := m.steps.CurrentKey(); got != "1:2" {
		t.Errorf("current key = %q, want 1:2", got)
	}
	for i := 0; i < 4; i++ {
		m = press(t, m, "1", "enter")
	}

	if !m.completed || m.overlay != overlaySummary {
		t.Fatalf("not completed: completed=%t overlay=%d", m.completed, m.overlay)
	}
	if m.summary.report.Score != 100 {
		t.Errorf("score = %d, want 100", m.summary.report.Score)
	}
	if v := m.View(); !strings.Contains(v, "Scenario Complete") {
		t.Errorf("summary not rendered: %s", v)
	}
	total, correct, incorrect, _ := m.steps.Stats()
	if total != 5 || correct != 5 || incorrect != 0 {
		t.Errorf("stats = %d/%d/%d", total, correct, incorrect)
	}

	m = press(t, m, "esc")
	if m.overlay != overlayNone {
		t.Errorf("esc did not close the summary")
	}
	m = press(t, m, "up")
	if got := m.steps.SelectedKey(); got != "3:4" {
		t.Errorf("selected = %q, want 3:4", got)
	}
	m = press(t, m, "r")
	if m.overlay != overlaySummary {
		t.Errorf("r did not reopen the summary")
	}
}

func TestModelIncorrectAnswer(t *testing.T) {
	m := newModel(t, engine.Options{}, bewusteloos(t, bundle(t)))
	m = press(t, m, "1", "enter")
	if got := m.steps.CurrentKey(); got != "1:1_consequence" {
		t.Errorf("current key = %q, want 1:1_consequence", got)
	}
	_, _, incorrect, _ := m.steps.Stats()
	if incorrect != 1 {
		t.Errorf("incorrect = %d, want 1", incorrect)
	}
}

func TestModelTimeout(t *testing.T) {
	m := newModel(t, engine.Options{}, bewusteloos(t, bundle(t)))
	for i := 0; i < 40 && !m.completed; i++ {
		m = update(t, m, tickMsg{})
	}
	if !m.completed {
		t.Fatal("step never timed out")
	}
	if !m.summary.report.TimedOut {
		t.Error("report not marked timed out")
	}
	_, _, _, timedOut := m.steps.Stats()
	if timedOut != 1 {
		t.Errorf("timed out steps = %d, want 1", timedOut)
	}
}

func TestModelRoleIntro(t *testing.T) {
	table := []roles.Role{
		{Name: roles.Bystander, Title: "Bystander", StressLevel: roles.StressLow, Subject: "the stranger"},
		{Name: roles.TeamLeader, StressLevel: roles.StressExtreme},
	}
	m := newModel(t, engine.Options{Roles: table}, bewusteloos(t, bundle(t)))
	if m.overlay != overlayRole {
		t.Fatalf("overlay = %d, want role intro", m.overlay)
	}
	if !strings.Contains(m.roleText, "Your role: Bystander") {
		t.Errorf("role text = %s", m.roleText)
	}

	m = press(t, m, "1")
	if m.overlay != overlayRole {
		t.Error("option key accepted during role intro")
	}
	m = press(t, m, "enter")
	if m.overlay != overlayChoice {
		t.Fatalf("overlay = %d, want option picker", m.overlay)
	}
	if !strings.Contains(m.choice.prompt, "the stranger") {
		t.Errorf("prompt not decorated: %s", m.choice.prompt)
	}
}

func TestModelManualChain(t *testing.T) {
	b := bundle(t)
	o, err := chain.New(b.Chains, nil)
	if err != nil {
		t.Fatalf("chains: %v", err)
	}
	opts := engine.Options{
		Random:             &random.Scripted{Floats: []float64{0}, Ints: []int{0}},
		Chains:             o,
		Catalogue:          b.Scenarios,
		ChainProbability:   1,
		ManualChainAdvance: true,
	}
	m := newModel(t, opts, bewusteloos(t, b))
	m = press(t, m, "2", "enter")
	for i := 0; i < 4; i++ {
		m = press(t, m, "1", "enter")
	}
	if m.summary.chainNext != "brandwond" {
		t.Fatalf("chain next = %q, want brandwond", m.summary.chainNext)
	}
	if v := m.View(); !strings.Contains(v, "Next in chain: brandwond") {
		t.Errorf("chain stage not announced: %s", v)
	}

	m = press(t, m, "c")
	if m.completed {
		t.Fatal("chain stage did not start")
	}
	if id := m.rt.Session().Scenario.ID; id != "brandwond" {
		t.Errorf("scenario = %s, want brandwond", id)
	}
	if m.overlay != overlayChoice {
		t.Errorf("overlay = %d, want option picker", m.overlay)
	}
}

func TestModelLayout(t *testing.T) {
	m := newModel(t, engine.Options{}, bewusteloos(t, bundle(t)))
	m = update(t, m, tea.WindowSizeMsg{Width: 70, Height: 30})
	if !m.compact {
		t.Error("narrow terminal should be compact")
	}
	m = press(t, m, "2")
	v := m.View()
	if !strings.Contains(v, "ehbo") || !strings.Contains(v, "Scenario") {
		t.Errorf("main view incomplete: %s", v)
	}
}

func TestModelQuit(t *testing.T) {
	m := newModel(t, engine.Options{}, bewusteloos(t, bundle(t)))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestKeyBarText(t *testing.T) {
	cases := []struct {
		name           string
		awaiting, done bool
		overlay        overlayKind
		want, wantNot  string
	}{
		{"role", false, false, overlayRole, ":begin", ":browse"},
		{"picker", false, false, overlayChoice, ":quick pick", ":continue"},
		{"summary", false, true, overlaySummary, ":next in chain", ":results"},
		{"completed", false, true, overlayNone, ":results", ":continue"},
		{"answered", true, false, overlayNone, ":continue", ":results"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := keyBarText(tc.awaiting, tc.done, tc.overlay)
			if !strings.Contains(got, tc.want) {
				t.Errorf("key bar %q missing %q", got, tc.want)
			}
			if strings.Contains(got, tc.wantNot) {
				t.Errorf("key bar %q should not contain %q", got, tc.wantNot)
			}
			if !strings.Contains(got, ":quit") {
				t.Errorf("key bar %q missing quit", got)
			}
		})
	}
}

func TestSummaryEscCloses(t *testing.T) {
	m := newModel(t, engine.Options{}, bewusteloos(t, bundle(t)))
	m = press(t, m, "2", "enter")
	for i := 0; i < 4; i++ {
		m = press(t, m, "1", "enter")
	}
	if m.overlay != overlaySummary {
		t.Fatalf("overlay = %d, want summary", m.overlay)
	}
	m = press(t, m, "esc")
	if m.overlay != overlayNone {
		t.Errorf("esc left overlay %d open", m.overlay)
	}
}
