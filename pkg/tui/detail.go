package tui

import (
	"fmt"
	"strings"

	"github.com/ormasoftchile/ehbo/pkg/engine"
	"github.com/ormasoftchile/ehbo/pkg/resources"
)

// detailBar renders resources, the step timer and key hints at the bottom.
type detailBar struct {
	stepID        string
	resources     resources.State
	timeRemaining int
	accessible    bool
	role          string
	chain         string
	lastCorrect   *bool

	width int
}

func newDetailBar() detailBar {
	return detailBar{}
}

// SetSession copies the display fields from a session snapshot.
func (d *detailBar) SetSession(sess *engine.Session) {
	if sess == nil {
		*d = detailBar{width: d.width}
		return
	}
	d.stepID = sess.CurrentStepID
	d.resources = sess.Resources
	d.timeRemaining = sess.TimeRemaining
	d.accessible = sess.AccessibilityMode
	d.role = ""
	if sess.Role != nil {
		d.role = sess.Role.Name
	}
	d.chain = ""
	if sess.Chain != nil {
		pr := sess.Chain.Progress()
		d.chain = fmt.Sprintf("%s %d/%d", sess.Chain.ChainType, sess.Chain.CurrentIndex+1, pr.Total)
	}
}

// SetAnswer records the correctness of the last answer.
func (d *detailBar) SetAnswer(correct bool) {
	d.lastCorrect = &correct
}

// ClearAnswer forgets the last answer when a new step begins.
func (d *detailBar) ClearAnswer() {
	d.lastCorrect = nil
}

// View renders the detail bar.
func (d *detailBar) View(awaitingAdvance, completed bool, overlay overlayKind) string {
	var parts []string
	if d.stepID != "" {
		parts = append(parts, detailLabelStyle.Render("Step: ")+detailValueStyle.Render(d.stepID))
	}
	switch {
	case d.accessible:
		parts = append(parts, detailLabelStyle.Render("│ ")+detailValueStyle.Render("untimed"))
	case d.timeRemaining > 0:
		parts = append(parts, detailLabelStyle.Render("│ ")+timerText(d.timeRemaining))
	}
	if d.lastCorrect != nil {
		if *d.lastCorrect {
			parts = append(parts, detailLabelStyle.Render("│ ")+correctStyle.Render(GlyphCorrect+" correct"))
		} else {
			parts = append(parts, detailLabelStyle.Render("│ ")+incorrectStyle.Render(GlyphIncorrect+" incorrect"))
		}
	}
	if d.role != "" {
		parts = append(parts, detailLabelStyle.Render("│ Role: ")+detailValueStyle.Render(d.role))
	}
	if d.chain != "" {
		parts = append(parts, detailLabelStyle.Render("│ Chain: ")+detailValueStyle.Render(d.chain))
	}
	line1 := strings.Join(parts, " ")

	line2 := "  " + resourceBar("Time", d.resources.Time) + "  " +
		resourceBar("Stress", d.resources.Stress) + "  " +
		resourceBar("Effectiveness", d.resources.Effectiveness)

	content := line1 + "\n" + line2 + "\n\n" + keyBarStyle.Render(keyBarText(awaitingAdvance, completed, overlay))
	w := d.width - 4
	if w < 20 {
		return detailBarStyle.Render(content)
	}
	return detailBarStyle.Width(w).Render(content)
}

// timerText renders a countdown, urgent for the last five seconds.
func timerText(seconds int) string {
	s := fmt.Sprintf("%s %ds", GlyphTimedOut, seconds)
	if seconds <= 5 {
		return timerUrgentStyle.Render(s)
	}
	return timerStyle.Render(s)
}

// resourceBar renders a 0-100 value as a ten-cell gauge.
func resourceBar(label string, v int) string {
	filled := resources.Clamp(v) / 10
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
	return detailLabelStyle.Render(label+" ") + detailValueStyle.Render(fmt.Sprintf("%s %3d", bar, v))
}
