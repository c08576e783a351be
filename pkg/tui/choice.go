package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// choiceKind says what a selection in the overlay answers.
type choiceKind int

const (
	choiceOption choiceKind = iota
	choiceAdaptation
)

// choiceItem is one selectable line.
type choiceItem struct {
	ID    string
	Label string
}

// choiceOverlay renders a selection list for step options or complication
// adaptations.
type choiceOverlay struct {
	visible bool
	kind    choiceKind
	title   string
	prompt  string
	// details is rendered markdown shown above the prompt.
	details string
	items   []choiceItem
	// timer is the countdown text shown beside the title; empty when untimed.
	timer string

	cursor    int
	scrollOff int

	width  int
	height int
}

func newChoiceOverlay() choiceOverlay {
	return choiceOverlay{}
}

// Show displays the overlay.
func (c *choiceOverlay) Show(kind choiceKind, title, prompt, details string, items []choiceItem) {
	c.visible = true
	c.kind = kind
	c.title = title
	c.prompt = prompt
	c.details = details
	c.items = items
	c.cursor = 0
	c.scrollOff = 0
}

// SetTimer updates the countdown shown in the title.
func (c *choiceOverlay) SetTimer(s string) {
	c.timer = s
}

// Hide closes the overlay.
func (c *choiceOverlay) Hide() {
	c.visible = false
	c.timer = ""
}

// Update handles key events within the overlay. Returns true if a selection was made.
func (c *choiceOverlay) Update(msg tea.Msg) (selected bool) {
	if !c.visible {
		return false
	}
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return false
	}

	maxIdx := len(c.items) - 1

	switch keyMsg.String() {
	case "up", "k":
		if c.cursor > 0 {
			c.cursor--
		}
	case "down", "j":
		if c.cursor < maxIdx {
			c.cursor++
		}
	case "pgup":
		c.scrollOff -= 5
		if c.scrollOff < 0 {
			c.scrollOff = 0
		}
	case "pgdown":
		c.scrollOff += 5
	case "enter":
		return maxIdx >= 0
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(keyMsg.String()[0] - '1')
		if idx >= 0 && idx <= maxIdx {
			c.cursor = idx
			return true
		}
	}
	return false
}

// Selected returns the id under the cursor.
func (c *choiceOverlay) Selected() string {
	if c.cursor >= 0 && c.cursor < len(c.items) {
		return c.items[c.cursor].ID
	}
	return ""
}

// View renders the choice overlay.
func (c *choiceOverlay) View() string {
	if !c.visible {
		return ""
	}

	contentW := c.width - 8
	if contentW < 50 {
		contentW = 50
	}

	var b strings.Builder
	b.WriteString(overlayTitle.Render(c.title))
	if c.timer != "" {
		b.WriteString("  " + c.timer)
	}
	b.WriteString("\n\n")

	if c.details != "" {
		b.WriteString(c.details)
		b.WriteString("\n\n")
	}
	if c.prompt != "" {
		b.WriteString(detailValueStyle.Bold(true).Render(c.prompt))
		b.WriteString("\n\n")
	}

	for i, it := range c.items {
		b.WriteString(c.renderItem(i, it))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(keyStyle.Render("↑↓") + keyDescStyle.Render(":select") + "  " +
		keyStyle.Render("Enter") + keyDescStyle.Render(":choose") + "  " +
		keyStyle.Render("1-9") + keyDescStyle.Render(":quick select"))

	content := b.String()

	maxH := c.height - 6
	lines := strings.Split(content, "\n")
	if maxH > 0 && len(lines) > maxH {
		if c.scrollOff > len(lines)-maxH {
			c.scrollOff = len(lines) - maxH
		}
		lines = lines[c.scrollOff:]
		if len(lines) > maxH {
			lines = lines[:maxH]
		}
		content = strings.Join(lines, "\n")
	}

	box := overlayBorder.Width(contentW).Render(content)
	if c.width == 0 || c.height == 0 {
		return box
	}
	return lipgloss.Place(c.width, c.height, lipgloss.Center, lipgloss.Center, box)
}

func (c *choiceOverlay) renderItem(idx int, it choiceItem) string {
	prefix := "  "
	if idx == c.cursor {
		prefix = "> "
	}
	line := fmt.Sprintf("%s%s %s", prefix, keyStyle.Render(fmt.Sprintf("%d.", idx+1)), it.Label)
	if idx == c.cursor {
		return stepCurrent.Render(line)
	}
	return line
}
