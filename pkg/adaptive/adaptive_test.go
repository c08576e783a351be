package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/ehbo/pkg/scenario"
)

func TestRecommend(t *testing.T) {
	c := New(true)
	tests := []struct {
		name    string
		current scenario.Difficulty
		history []int
		want    scenario.Difficulty
	}{
		{"no history", scenario.Beginner, nil, scenario.Beginner},
		{"promote", scenario.Beginner, []int{90, 85, 88}, scenario.Intermediate},
		{"cap at advanced", scenario.Advanced, []int{100, 100}, scenario.Advanced},
		{"demote", scenario.Advanced, []int{40, 50, 45}, scenario.Intermediate},
		{"floor at beginner", scenario.Beginner, []int{0}, scenario.Beginner},
		{"hold", scenario.Intermediate, []int{70, 60, 80}, scenario.Intermediate},
		{"only window counts", scenario.Intermediate, []int{0, 0, 0, 90, 90, 90, 90, 90}, scenario.Advanced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Recommend(tt.current, tt.history))
		})
	}
}

func TestDisabled(t *testing.T) {
	c := New(false)
	assert.Equal(t, scenario.Beginner, c.Recommend(scenario.Beginner, []int{100, 100}))
	assert.Nil(t, c.TimeCost())
	assert.Equal(t, 30, c.TimeLimit(30, scenario.Advanced))

	var nilc *Controller
	assert.Nil(t, nilc.TimeCost())
}

func TestTimeCost(t *testing.T) {
	d := New(true).TimeCost()
	require.NotNil(t, d)
	require.NotNil(t, d.Time)
	assert.Equal(t, -2, *d.Time)
	assert.Nil(t, d.Stress)
}

func TestTimeLimit(t *testing.T) {
	c := New(true)
	assert.Equal(t, 45, c.TimeLimit(30, scenario.Beginner))
	assert.Equal(t, 30, c.TimeLimit(30, scenario.Intermediate))
	assert.Equal(t, 22, c.TimeLimit(30, scenario.Advanced))
	assert.Equal(t, MinTimeLimit, c.TimeLimit(4, scenario.Advanced))
}
