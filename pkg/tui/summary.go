package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/ehbo/pkg/engine"
)

// summaryOverlay renders the end-of-scenario report.
type summaryOverlay struct {
	visible bool
	report  *engine.Report

	// chainNext names the pending chain scenario, if any.
	chainNext string
	chainPct  int

	startTime time.Time
	endTime   time.Time

	width  int
	height int
}

func newSummaryOverlay() summaryOverlay {
	return summaryOverlay{}
}

// Show populates and displays the summary.
func (s *summaryOverlay) Show(r *engine.Report, startTime time.Time) {
	s.visible = true
	s.report = r
	s.startTime = startTime
	s.endTime = time.Now()
}

// SetChainNext announces the pending chain stage.
func (s *summaryOverlay) SetChainNext(scenarioID string, percent int) {
	s.chainNext = scenarioID
	s.chainPct = percent
}

// Hide closes the summary overlay.
func (s *summaryOverlay) Hide() {
	s.visible = false
}

// Reset forgets the report and any chain stage.
func (s *summaryOverlay) Reset() {
	*s = summaryOverlay{width: s.width, height: s.height}
}

// View renders the summary overlay.
func (s *summaryOverlay) View() string {
	if !s.visible || s.report == nil {
		return ""
	}
	r := s.report

	contentW := s.width - 8
	if contentW < 50 {
		contentW = 50
	}

	var b strings.Builder
	title := "Scenario Complete"
	if r.Intermediate {
		title = "Chain Stage Complete"
	}
	b.WriteString(summaryTitleStyle.Render(title))
	b.WriteString("\n\n")

	scoreStyle := correctStyle
	if r.Score < 60 {
		scoreStyle = incorrectStyle
	}
	b.WriteString(detailLabelStyle.Render("Score:     ") +
		scoreStyle.Render(fmt.Sprintf("%d%%", r.Score)) +
		detailValueStyle.Render(fmt.Sprintf("  (%d of %d correct)", r.Correct, r.Total)))
	b.WriteString("\n")
	if r.TimedOut {
		b.WriteString(detailLabelStyle.Render("Timed out: ") + incorrectStyle.Render("yes"))
		b.WriteString("\n")
	}
	b.WriteString(detailLabelStyle.Render("Resources: ") + detailValueStyle.Render(fmt.Sprintf(
		"time %d · stress %d · effectiveness %d", r.Resources.Time, r.Resources.Stress, r.Resources.Effectiveness)))
	b.WriteString("\n")
	if r.Role != "" {
		b.WriteString(detailLabelStyle.Render("Role:      ") + detailValueStyle.Render(r.Role))
		b.WriteString("\n")
	}
	b.WriteString(detailLabelStyle.Render("Duration:  ") + detailValueStyle.Render(formatDuration(s.endTime.Sub(s.startTime))))
	b.WriteString("\n")

	if len(r.Insights) > 0 {
		b.WriteString("\n" + detailLabelStyle.Render("Insights") + "\n")
		for _, in := range r.Insights {
			b.WriteString("  • " + detailValueStyle.Render(in.Message) + "\n")
		}
	}

	if r.Chain != nil {
		b.WriteString("\n" + detailLabelStyle.Render("Chain: ") + detailValueStyle.Render(r.Chain.ChainType) + "\n")
		for i, res := range r.Chain.Results {
			b.WriteString(fmt.Sprintf("  %d. %s  %d%%\n", i+1, res.ScenarioID, res.Score))
		}
	}
	if s.chainNext != "" {
		b.WriteString("\n" + alertStyle.Render(fmt.Sprintf("Next in chain: %s (%d%% done)", s.chainNext, s.chainPct)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	hints := keyStyle.Render("n") + keyDescStyle.Render(":play again") + "  " +
		keyStyle.Render("Esc") + keyDescStyle.Render(":review") + "  " +
		keyStyle.Render("q") + keyDescStyle.Render(":quit")
	if s.chainNext != "" {
		hints = keyStyle.Render("c") + keyDescStyle.Render(":continue chain") + "  " + hints
	}
	b.WriteString(hints)

	box := overlayBorder.Width(contentW).Render(b.String())
	if s.width == 0 || s.height == 0 {
		return box
	}
	return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, box)
}

// formatDuration returns a human-friendly duration string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	if m >= 60 {
		return fmt.Sprintf("%dh %dm %ds", m/60, m%60, s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
