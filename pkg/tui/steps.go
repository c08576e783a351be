package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// stepStatus tracks the display state of each visited step.
type stepStatus int

const (
	statusPending stepStatus = iota
	statusCurrent
	statusCorrect
	statusIncorrect
	statusTimedOut
)

// stepInfo holds the display state for a single step visit.
type stepInfo struct {
	Key    string
	ID     string
	Title  string
	Status stepStatus
}

// stepsPanel renders the path taken through the scenario.
type stepsPanel struct {
	steps  []stepInfo
	cursor int
	width  int
	height int
	offset int
}

func newStepsPanel() stepsPanel {
	return stepsPanel{cursor: -1}
}

// Reset clears the path for a new scenario.
func (p *stepsPanel) Reset() {
	p.steps = nil
	p.cursor = -1
	p.offset = 0
}

// Enter appends a visit to stepID and makes it current. The returned key
// identifies the visit in the output panel.
func (p *stepsPanel) Enter(stepID, title string) string {
	key := fmt.Sprintf("%d:%s", len(p.steps), stepID)
	p.steps = append(p.steps, stepInfo{Key: key, ID: stepID, Title: title, Status: statusCurrent})
	p.cursor = len(p.steps) - 1
	p.ensureVisible()
	return key
}

// SetLastStatus updates the status of the most recent visit.
func (p *stepsPanel) SetLastStatus(status stepStatus) {
	if len(p.steps) > 0 {
		p.steps[len(p.steps)-1].Status = status
	}
}

// CurrentKey is the key of the most recent visit.
func (p *stepsPanel) CurrentKey() string {
	if len(p.steps) == 0 {
		return ""
	}
	return p.steps[len(p.steps)-1].Key
}

// CursorUp moves the browsing cursor up.
func (p *stepsPanel) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

// CursorDown moves the browsing cursor down.
func (p *stepsPanel) CursorDown() {
	if p.cursor < len(p.steps)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

// SelectedKey returns the visit key at the cursor position.
func (p *stepsPanel) SelectedKey() string {
	if p.cursor >= 0 && p.cursor < len(p.steps) {
		return p.steps[p.cursor].Key
	}
	return ""
}

func (p *stepsPanel) ensureVisible() {
	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+visible {
		p.offset = p.cursor - visible + 1
	}
}

// View renders the path panel.
func (p *stepsPanel) View() string {
	if len(p.steps) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render("  No steps yet")
	}

	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}
	end := p.offset + visible
	if end > len(p.steps) {
		end = len(p.steps)
	}

	var lines []string
	for i := p.offset; i < end; i++ {
		step := p.steps[i]

		var glyph string
		var style lipgloss.Style
		switch step.Status {
		case statusPending:
			glyph, style = GlyphPending, stepNormal
		case statusCurrent:
			glyph, style = GlyphCurrent, stepCurrent
		case statusCorrect:
			glyph, style = GlyphCorrect, stepCorrect
		case statusIncorrect:
			glyph, style = GlyphIncorrect, stepIncorrect
		case statusTimedOut:
			glyph, style = GlyphTimedOut, stepTimedOut
		}

		title := step.Title
		if title == "" {
			title = step.ID
		}
		maxTitle := p.width - 10
		if maxTitle < 4 {
			maxTitle = 4
		}
		title = runewidth.Truncate(title, maxTitle, "…")

		line := fmt.Sprintf(" %s %s %s", glyph, step.ID, title)
		if i == p.cursor {
			line = style.Reverse(true).Render(line)
		} else {
			line = style.Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < visible {
		lines = append(lines, "")
	}

	return panelBorder.Width(p.width).Height(p.height).Render(
		panelTitle.Render("Path") + "\n" + strings.Join(lines, "\n"),
	)
}

// Stats returns counts of visits by status.
func (p *stepsPanel) Stats() (total, correct, incorrect, timedOut int) {
	total = len(p.steps)
	for _, s := range p.steps {
		switch s.Status {
		case statusCorrect:
			correct++
		case statusIncorrect:
			incorrect++
		case statusTimedOut:
			timedOut++
		}
	}
	return
}
