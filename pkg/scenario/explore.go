package scenario

// DefaultMaxRevisits bounds how many times one path may enter the same step.
const DefaultMaxRevisits = 2

// maxExplorePaths caps enumeration on large graphs.
const maxExplorePaths = 10000

// Move is one answered step on a path.
type Move struct {
	StepID   string
	OptionID string
}

// Exploration is the result of enumerating every option path.
type Exploration struct {
	// Paths that reach a terminal or dangling edge within the bound.
	Paths [][]Move
	// Unbounded paths would enter some step more than maxRevisits times.
	Unbounded [][]Move
	// Truncated is set when enumeration stopped at the path cap.
	Truncated bool
}

// LongestPath returns the number of moves on the longest bounded path.
func (e *Exploration) LongestPath() int {
	n := 0
	for _, p := range e.Paths {
		if len(p) > n {
			n = len(p)
		}
	}
	return n
}

// Explore enumerates every option path from the first step, allowing each
// step to be entered at most maxRevisits times per path.
func Explore(g *Graph, maxRevisits int) *Exploration {
	if maxRevisits <= 0 {
		maxRevisits = DefaultMaxRevisits
	}
	out := &Exploration{}
	first := g.First()
	if first == nil {
		return out
	}
	visits := make(map[string]int)
	var walk func(st *Step, path []Move)
	walk = func(st *Step, path []Move) {
		if out.Truncated {
			return
		}
		if visits[st.ID] >= maxRevisits {
			out.Unbounded = append(out.Unbounded, clonePath(path))
			return
		}
		visits[st.ID]++
		defer func() { visits[st.ID]-- }()

		for i := range st.Options {
			opt := &st.Options[i]
			p := append(path, Move{StepID: st.ID, OptionID: opt.ID})
			next, ok, _ := g.Resolve(opt)
			if !ok {
				out.Paths = append(out.Paths, clonePath(p))
				if len(out.Paths)+len(out.Unbounded) >= maxExplorePaths {
					out.Truncated = true
					return
				}
				continue
			}
			walk(next, p)
		}
	}
	walk(first, nil)
	return out
}

func clonePath(p []Move) []Move {
	return append([]Move(nil), p...)
}
