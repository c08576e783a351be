package complications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/ehbo/pkg/random"
	"github.com/ormasoftchile/ehbo/pkg/resources"
	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

func catalogue() []Complication {
	return []Complication{
		{
			Name: "rain", Category: Environmental, Probability: 0.5, OutdoorOnly: true,
			Adaptations: []Choice{{ID: "cover", Text: "Cover the victim", Effect: resources.Delta{Stress: resources.Int(5)}}},
		},
		{
			Name: "crowd", Category: Social, Probability: 0.5,
			Adaptations: []Choice{
				{ID: "delegate", Text: "Ask a bystander to keep people back", Effect: resources.Delta{Stress: resources.Int(-5)}},
				{ID: "ignore", Text: "Ignore them", Effect: resources.Delta{Effectiveness: resources.Int(-10)}},
			},
		},
		{
			Name: "empty_kit", Category: Resource, Probability: 0.5,
			Adaptations: []Choice{{ID: "improvise", Text: "Improvise", Effect: resources.Delta{Time: resources.Int(-10)}}},
		},
	}
}

func TestMaxForDifficulty(t *testing.T) {
	assert.Equal(t, 0, MaxForDifficulty(scenario.Beginner))
	assert.Equal(t, 1, MaxForDifficulty(scenario.Intermediate))
	assert.Equal(t, 2, MaxForDifficulty(scenario.Advanced))
}

func TestSelect_BeginnerGetsNone(t *testing.T) {
	got := Select(catalogue(), Context{Outdoor: true}, scenario.Beginner, 5, &random.Scripted{})
	assert.Empty(t, got)
}

func TestSelect_ProbabilityAndContextFilter(t *testing.T) {
	// rain passes the draw but is outdoor-only; crowd fails the draw.
	src := &random.Scripted{Floats: []float64{0.1, 0.9, 0.2}, Ints: []int{3}}
	got := Select(catalogue(), Context{Outdoor: false}, scenario.Advanced, 5, src)
	require.Len(t, got, 1)
	assert.Equal(t, "empty_kit", got[0].Name)
	assert.Equal(t, 3, got[0].TriggerStepIndex)
	assert.False(t, got[0].Resolved)
}

func TestSelect_TierCap(t *testing.T) {
	src := &random.Scripted{Floats: []float64{0}, Ints: []int{1, 2}}
	got := Select(catalogue(), Context{Outdoor: true}, scenario.Intermediate, 4, src)
	require.Len(t, got, 1)

	src = &random.Scripted{Floats: []float64{0}, Ints: []int{1, 2}}
	got = Select(catalogue(), Context{Outdoor: true}, scenario.Advanced, 4, src)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].TriggerStepIndex)
	assert.Equal(t, 2, got[1].TriggerStepIndex)
}

func TestSelect_TriggerIndexInRange(t *testing.T) {
	src := random.New(7)
	for i := 0; i < 200; i++ {
		for _, c := range Select(catalogue(), Context{Outdoor: true}, scenario.Advanced, 3, src) {
			assert.GreaterOrEqual(t, c.TriggerStepIndex, 0)
			assert.Less(t, c.TriggerStepIndex, 3)
		}
	}
}

func TestSelect_DoesNotAliasCatalogue(t *testing.T) {
	cat := catalogue()
	got := Select(cat, Context{Outdoor: true}, scenario.Advanced, 2, &random.Scripted{})
	require.NotEmpty(t, got)
	got[0].Adaptations[0].Text = "changed"
	for _, c := range cat {
		assert.NotEqual(t, "changed", c.Adaptations[0].Text)
	}
}

func TestTracker_SingleFire(t *testing.T) {
	tr := NewTracker([]Complication{{
		Name: "crowd", TriggerStepIndex: 0,
		Adaptations: []Choice{{ID: "delegate", Effect: resources.Delta{Stress: resources.Int(-5)}}},
	}})

	c, ok := tr.Trigger(0)
	require.True(t, ok)
	assert.Equal(t, "crowd", c.Name)

	active, ok := tr.Active()
	require.True(t, ok)
	assert.Equal(t, "crowd", active.Name)

	ch, err := tr.Resolve("delegate")
	require.NoError(t, err)
	assert.Equal(t, -5, *ch.Effect.Stress)

	// Revisiting the trigger index through a backtracking branch.
	_, ok = tr.Pending(0)
	assert.False(t, ok)
	_, ok = tr.Trigger(0)
	assert.False(t, ok)
	assert.True(t, tr.Items()[0].Resolved)
}

func TestTracker_ResolveErrors(t *testing.T) {
	tr := NewTracker([]Complication{{Name: "crowd", TriggerStepIndex: 1, Adaptations: []Choice{{ID: "delegate"}}}})

	_, err := tr.Resolve("delegate")
	assert.ErrorIs(t, err, ErrNoActive)

	_, ok := tr.Trigger(1)
	require.True(t, ok)
	_, err = tr.Resolve("bogus")
	assert.ErrorIs(t, err, ErrInvalidChoice)

	_, ok = tr.Active()
	assert.True(t, ok, "invalid choice keeps the complication active")
}

func TestTracker_TwoAtSameIndex(t *testing.T) {
	tr := NewTracker([]Complication{
		{Name: "a", TriggerStepIndex: 2, Adaptations: []Choice{{ID: "x"}}},
		{Name: "b", TriggerStepIndex: 2, Adaptations: []Choice{{ID: "y"}}},
	})
	c, _ := tr.Trigger(2)
	assert.Equal(t, "a", c.Name)
	_, err := tr.Resolve("x")
	require.NoError(t, err)

	c, ok := tr.Trigger(2)
	require.True(t, ok)
	assert.Equal(t, "b", c.Name)
}
