// Package scoring computes scenario scores and rule-based insights.
package scoring

import "math"

// Score returns round(100*correct/total), or 0 when total is zero.
func Score(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// Mean is the arithmetic mean of xs, 0 for an empty slice.
func Mean(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

// Insight kinds.
const (
	KindImprovement        = "improvement"
	KindTimeManagement     = "time_management"
	KindConsistentWeakness = "consistent_weakness"
	KindStrongPerformance  = "strong_performance"
	KindResourceStrain     = "resource_strain"
)

// Thresholds.
const (
	ImprovementWindow  = 3
	ImprovementMargin  = 10.0
	SlowStepSeconds    = 20.0
	WeaknessMinSamples = 3
	WeaknessScore      = 60.0
	StrongScore        = 90
	StrainStress       = 80
)

// Insight is one observation shown with the results.
type Insight struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Step is the part of a step result insights look at.
type Step struct {
	TimeUsedSeconds int
	TimedOut        bool
}

// Input is everything insight generation reads.
type Input struct {
	Score int
	Steps []Step
	// History is the trailing window of scenario scores, oldest first,
	// including the current one.
	History     []int
	FinalStress int
}

// Insights applies every rule to in, in a fixed order.
func Insights(in Input) []Insight {
	var out []Insight

	if improved(in.History) {
		out = append(out, Insight{
			Kind:    KindImprovement,
			Message: "Your recent scores are clearly higher than before. Keep it up.",
		})
	}
	if slow(in.Steps) {
		out = append(out, Insight{
			Kind:    KindTimeManagement,
			Message: "Work on your response time: in an emergency every second counts.",
		})
	}
	if len(in.History) > WeaknessMinSamples && Mean(in.History) < WeaknessScore {
		out = append(out, Insight{
			Kind:    KindConsistentWeakness,
			Message: "Your scores have stayed low across several scenarios. Review the basics before moving on.",
		})
	}
	if in.Score >= StrongScore {
		out = append(out, Insight{
			Kind:    KindStrongPerformance,
			Message: "Excellent work. You handled this scenario like a professional.",
		})
	}
	if in.FinalStress >= StrainStress {
		out = append(out, Insight{
			Kind:    KindResourceStrain,
			Message: "Your stress level ran very high. Stay calm and take one step at a time.",
		})
	}
	return out
}

// improved compares the mean of the last window of scores with the mean of
// the window before it.
func improved(history []int) bool {
	if len(history) < 2*ImprovementWindow {
		return false
	}
	n := len(history)
	recent := Mean(history[n-ImprovementWindow:])
	prior := Mean(history[n-2*ImprovementWindow : n-ImprovementWindow])
	return recent-prior > ImprovementMargin
}

func slow(steps []Step) bool {
	if len(steps) == 0 {
		return false
	}
	total := 0
	for _, s := range steps {
		if s.TimedOut {
			return true
		}
		total += s.TimeUsedSeconds
	}
	return float64(total)/float64(len(steps)) > SlowStepSeconds
}
