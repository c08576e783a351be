// Package diagram renders scenario graphs and chain definitions.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/ehbo/pkg/chain"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// ParseFormat accepts "mermaid" or "ascii"; empty means mermaid.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatMermaid:
		return FormatMermaid, nil
	case FormatASCII:
		return FormatASCII, nil
	}
	return "", fmt.Errorf("unsupported diagram format: %s", s)
}

// Generate produces a diagram of the scenario's step graph.
func Generate(sc *scenario.Scenario, format Format) (string, error) {
	if sc == nil {
		return "", fmt.Errorf("nil scenario")
	}
	g := scenario.NewGraph(sc)
	switch format {
	case FormatMermaid:
		return generateMermaid(g), nil
	case FormatASCII:
		return generateASCII(g), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(g *scenario.Graph) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	first := g.First()
	if first == nil {
		return b.String()
	}
	sc := g.Scenario()
	consequence := consequenceSteps(g)

	b.WriteString("    START([Start]) --> " + safeID(first.ID) + "\n")
	needEnd := false
	var missing []string
	for _, st := range sc.Steps {
		b.WriteString("    " + nodeDefinition(st) + "\n")
		for _, o := range st.Options {
			label := optionLabel(o)
			switch _, ok := g.Step(o.Next); {
			case o.Terminal():
				needEnd = true
				fmt.Fprintf(&b, "    %s -->|%q| END\n", safeID(st.ID), label)
			case !ok:
				id := "MISSING_" + safeID(o.Next)
				missing = append(missing, id)
				fmt.Fprintf(&b, "    %s -.->|%q| %s[/\"missing: %s\"/]\n", safeID(st.ID), label, id, escMermaid(o.Next))
			default:
				fmt.Fprintf(&b, "    %s -->|%q| %s\n", safeID(st.ID), label, safeID(o.Next))
			}
		}
	}
	if needEnd {
		b.WriteString("    END([End])\n")
		b.WriteString("    style END fill:#0d6,stroke:#0a5,color:#fff\n")
	}
	for _, st := range sc.Steps {
		if consequence[st.ID] {
			fmt.Fprintf(&b, "    style %s fill:#e60,stroke:#c40,color:#fff\n", safeID(st.ID))
		}
	}
	for _, id := range missing {
		fmt.Fprintf(&b, "    style %s fill:#c00,stroke:#900,color:#fff\n", id)
	}
	return b.String()
}

// consequenceSteps are steps entered only through incorrect answers.
func consequenceSteps(g *scenario.Graph) map[string]bool {
	viaCorrect := map[string]bool{}
	viaIncorrect := map[string]bool{}
	for _, st := range g.Scenario().Steps {
		for _, o := range st.Options {
			if o.Terminal() {
				continue
			}
			if o.Correct {
				viaCorrect[o.Next] = true
			} else {
				viaIncorrect[o.Next] = true
			}
		}
	}
	out := map[string]bool{}
	for id := range viaIncorrect {
		if !viaCorrect[id] {
			out[id] = true
		}
	}
	if first := g.First(); first != nil {
		delete(out, first.ID)
	}
	return out
}

func optionLabel(o scenario.Option) string {
	mark := "✗"
	if o.Correct {
		mark = "✓"
	}
	return mark + " " + o.ID
}

// --- ASCII ---

func generateASCII(g *scenario.Graph) string {
	var b strings.Builder
	sc := g.Scenario()
	name := sc.Title
	if name == "" {
		name = sc.ID
	}
	if len(sc.Steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	const indent = 4
	consequence := consequenceSteps(g)
	boxWidth := uniformBoxWidth(sc, name)
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", indent+1+boxWidth/2)
	mid := boxWidth / 2

	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + centerPad(name, boxWidth) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")

	for _, st := range sc.Steps {
		b.WriteString(connPad + "│\n")
		writeASCIIStep(&b, g, st, consequence[st.ID], indent, boxWidth)
	}
	return b.String()
}

func uniformBoxWidth(sc *scenario.Scenario, name string) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for _, st := range sc.Steps {
		for _, line := range stepLines(st, false) {
			if lw := runewidth.StringWidth(line); lw > w {
				w = lw
			}
		}
	}
	return w
}

// stepLines is the box content for st, one entry per line.
func stepLines(st scenario.Step, consequence bool) []string {
	icon := "○"
	if consequence {
		icon = "⚠"
	}
	lines := []string{fmt.Sprintf(" %s %s  (%ds) ", icon, st.ID, st.TimeLimitSeconds)}
	for _, o := range st.Options {
		target := o.Next
		if o.Terminal() {
			target = "(end)"
		}
		lines = append(lines, fmt.Sprintf("   %s → %s ", optionLabel(o), target))
	}
	return lines
}

func writeASCIIStep(b *strings.Builder, g *scenario.Graph, st scenario.Step, consequence bool, indent, boxWidth int) {
	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2
	b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	for i, line := range stepLines(st, consequence) {
		if i > 0 {
			if o := st.Options[i-1]; !o.Terminal() {
				if _, ok := g.Step(o.Next); !ok {
					line = strings.TrimRight(line, " ") + " !! "
				}
			}
		}
		lw := runewidth.StringWidth(line)
		if lw > boxWidth {
			line = runewidth.Truncate(line, boxWidth, "…")
			lw = runewidth.StringWidth(line)
		}
		b.WriteString(pad + "│" + line + strings.Repeat(" ", boxWidth-lw) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	left := (width - sw) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-sw-left)
}

// --- chains ---

// GenerateChain renders a chain definition as a Mermaid flowchart. Resolve
// edges point at every link id quoted in the expression.
func GenerateChain(d *chain.Definition) (string, error) {
	if d == nil {
		return "", fmt.Errorf("nil chain definition")
	}
	var b strings.Builder
	b.WriteString("flowchart LR\n")
	if len(d.Links) == 0 {
		return b.String(), nil
	}
	b.WriteString("    START([" + escMermaid(d.Name) + "]) --> " + safeID(d.Links[0].ID) + "\n")
	needEnd := false
	for _, l := range d.Links {
		fmt.Fprintf(&b, "    %s[\"%s<br/>%s\"]\n", safeID(l.ID), escMermaid(l.ID), escMermaid(l.ScenarioID))
		switch {
		case l.Next != "":
			fmt.Fprintf(&b, "    %s --> %s\n", safeID(l.ID), safeID(l.Next))
		case l.Resolve != "":
			targets := 0
			for _, other := range d.Links {
				if strings.Contains(l.Resolve, `"`+other.ID+`"`) || strings.Contains(l.Resolve, `'`+other.ID+`'`) {
					fmt.Fprintf(&b, "    %s -.->|resolve| %s\n", safeID(l.ID), safeID(other.ID))
					targets++
				}
			}
			if targets == 0 || strings.Contains(l.Resolve, "nil") {
				needEnd = true
				fmt.Fprintf(&b, "    %s -.->|resolve| END\n", safeID(l.ID))
			}
		default:
			needEnd = true
			fmt.Fprintf(&b, "    %s --> END\n", safeID(l.ID))
		}
	}
	if needEnd {
		b.WriteString("    END([End])\n")
	}
	return b.String(), nil
}

// --- string helpers ---

func nodeDefinition(st scenario.Step) string {
	return fmt.Sprintf(`%s["%s<br/>%s"]`, safeID(st.ID), escMermaid(st.ID), escMermaid(truncate(st.Question, 40)))
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	id = r.Replace(id)
	if id != "" && id[0] >= '0' && id[0] <= '9' {
		id = "S" + id
	}
	return id
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "...")
}
