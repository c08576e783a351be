package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// outputPanel renders the scrollable narrative for each step visit:
// question, chosen answer, feedback and explanation.
type outputPanel struct {
	viewport viewport.Model

	// outputs stores the text per visit key.
	outputs map[string]string

	// activeKey is the visit whose text is currently displayed.
	activeKey string

	width  int
	height int
	ready  bool
}

func newOutputPanel() outputPanel {
	return outputPanel{outputs: make(map[string]string)}
}

// Reset drops all text for a new scenario.
func (p *outputPanel) Reset() {
	p.outputs = make(map[string]string)
	p.activeKey = ""
	p.refreshContent()
}

// SetSize updates the viewport dimensions.
func (p *outputPanel) SetSize(width, height int) {
	p.width = width
	p.height = height

	contentW := width - 4
	contentH := height - 3
	if contentW < 1 {
		contentW = 1
	}
	if contentH < 1 {
		contentH = 1
	}

	if !p.ready {
		p.viewport = viewport.New(contentW, contentH)
		p.ready = true
	} else {
		p.viewport.Width = contentW
		p.viewport.Height = contentH
	}
	p.refreshContent()
}

// Append adds text to a visit's buffer.
func (p *outputPanel) Append(key, text string) {
	p.outputs[key] += text
	if key == p.activeKey {
		p.refreshContent()
		if p.ready {
			p.viewport.GotoBottom()
		}
	}
}

// Text returns the buffer of a visit.
func (p *outputPanel) Text(key string) string {
	return p.outputs[key]
}

// Show switches the displayed text to the given visit.
func (p *outputPanel) Show(key string) {
	p.activeKey = key
	if p.ready {
		p.refreshContent()
		p.viewport.GotoBottom()
	}
}

// Update handles viewport-specific messages (mouse scroll, etc.).
func (p *outputPanel) Update(msg tea.Msg) {
	if p.ready {
		p.viewport, _ = p.viewport.Update(msg)
	}
}

// PageUp scrolls the viewport up.
func (p *outputPanel) PageUp() {
	if p.ready {
		p.viewport.HalfViewUp()
	}
}

// PageDown scrolls the viewport down.
func (p *outputPanel) PageDown() {
	if p.ready {
		p.viewport.HalfViewDown()
	}
}

func (p *outputPanel) refreshContent() {
	if !p.ready {
		return
	}
	p.viewport.SetContent(p.outputs[p.activeKey])
}

// View renders the output panel.
func (p *outputPanel) View() string {
	title := panelTitle.Render("Scenario")

	content := "  Waiting for the scenario..."
	if p.ready {
		content = p.viewport.View()
	}

	header := title
	if p.ready && p.viewport.TotalLineCount() > p.viewport.VisibleLineCount() {
		scrollInfo := fmt.Sprintf(" %3.0f%%", p.viewport.ScrollPercent()*100)
		padding := p.width - 4 - len("Scenario") - len(scrollInfo)
		if padding < 0 {
			padding = 0
		}
		header = title + strings.Repeat(" ", padding) + keyDescStyle.Render(scrollInfo)
	}

	return panelBorder.Width(p.width).Height(p.height).Render(header + "\n" + content)
}
