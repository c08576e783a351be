package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

// playKeys are the bindings outside the option picker. The picker reads its
// own keys; pickHelp only documents them.
type playKeys struct {
	Advance key.Binding
	Up      key.Binding
	Down    key.Binding
	PgUp    key.Binding
	PgDown  key.Binding
	Results key.Binding
	Chain   key.Binding
	Restart key.Binding
	Close   key.Binding
	Quit    key.Binding
}

func binding(help, desc string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(help, desc))
}

var keys = playKeys{
	Advance: binding("enter", "continue", "enter"),
	Up:      binding("↑/k", "browse", "up", "k"),
	Down:    binding("↓/j", "browse", "down", "j"),
	PgUp:    binding("PgUp", "scroll", "pgup"),
	PgDown:  binding("PgDn", "scroll", "pgdown"),
	Results: binding("r", "results", "r"),
	Chain:   binding("c", "next in chain", "c"),
	Restart: binding("n", "play again", "n"),
	Close:   binding("esc", "close", "esc"),
	Quit:    binding("q", "quit", "q", "ctrl+c"),
}

var (
	beginHelp  = binding("enter", "begin")
	browseHelp = binding("↑↓", "browse")
	pickHelp   = []key.Binding{
		binding("↑↓", "select"),
		binding("enter", "choose"),
		binding("1-9", "quick pick"),
	}
)

// keyBarText lists the bindings that apply in the current view.
func keyBarText(awaitingAdvance, completed bool, overlay overlayKind) string {
	var active []key.Binding
	switch {
	case overlay == overlayRole:
		active = []key.Binding{beginHelp}
	case overlay == overlayChoice:
		active = pickHelp
	case overlay == overlaySummary:
		active = []key.Binding{keys.Chain, keys.Restart, keys.Close}
	case completed:
		active = []key.Binding{keys.Results, browseHelp, keys.Restart}
	case awaitingAdvance:
		active = []key.Binding{keys.Advance, browseHelp, binding("PgUp/Dn", "scroll")}
	default:
		active = []key.Binding{browseHelp}
	}
	active = append(active, keys.Quit)

	parts := make([]string, 0, len(active))
	for _, b := range active {
		h := b.Help()
		parts = append(parts, keyStyle.Render(h.Key)+keyDescStyle.Render(":"+h.Desc))
	}
	return strings.Join(parts, "  ")
}
