package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Renderers are keyed by wrap width; zero leaves wrapping to the viewport.
var (
	renderersMu sync.Mutex
	renderers   = map[int]*glamour.TermRenderer{}
)

func rendererFor(width int) *glamour.TermRenderer {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	if r, ok := renderers[width]; ok {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r = nil
	}
	renderers[width] = r
	return r
}

// renderMarkdown styles explanations for the output panel. The raw text is
// returned when rendering fails.
func renderMarkdown(md string) string {
	return render(md, 0)
}

// renderMarkdownWidth wraps at width, for overlays.
func renderMarkdownWidth(md string, width int) string {
	if width < 20 {
		width = 20
	}
	return render(md, width)
}

func render(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return md
	}
	r := rendererFor(width)
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}
