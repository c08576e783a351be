package trace

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Emit(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "session-1")

	require.NoError(t, tw.EmitStepStart("1", 0, 30))
	require.NoError(t, tw.EmitAnswer("1", "b", true, 4, map[string]int{"stress": 15}))

	events, err := ReadEvents(&buf)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventStepStart, events[0].Type)
	assert.Equal(t, "session-1", events[0].SessionID)
	assert.Equal(t, "1", events[0].Data["step_id"])
	assert.EqualValues(t, 30, events[0].Data["time_limit"])

	assert.Equal(t, EventAnswer, events[1].Type)
	assert.Equal(t, true, events[1].Data["correct"])
}

func TestWriter_UntimedStepOmitsLimit(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "s")
	require.NoError(t, tw.EmitStepStart("1", 0, 0))

	events, err := ReadEvents(&buf)
	require.NoError(t, err)
	_, ok := events[0].Data["time_limit"]
	assert.False(t, ok)
}

func TestWriter_NilDiscards(t *testing.T) {
	var tw *Writer
	assert.NoError(t, tw.EmitTimeout("1", 10))
	assert.NoError(t, tw.Close())
	tw.SetSession("x")
}

func TestWriter_SetSession(t *testing.T) {
	var buf bytes.Buffer
	tw := NewWriter(&buf, "a")
	require.NoError(t, tw.EmitSessionStart("bewusteloos", "beginner", false, nil))
	tw.SetSession("b")
	require.NoError(t, tw.EmitSessionComplete("bewusteloos", 80, false, []string{"strong_performance"}))

	events, err := ReadEvents(&buf)
	require.NoError(t, err)
	assert.Equal(t, "a", events[0].SessionID)
	assert.Equal(t, "b", events[1].SessionID)
	assert.Len(t, events[1].Data["insights"], 1)
}

func TestNewFileWriter_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")

	for i := 0; i < 2; i++ {
		tw, err := NewFileWriter(path, "s")
		require.NoError(t, err)
		require.NoError(t, tw.EmitChainAdvance("sports_day", "enkelblessure", i+1, 3))
		require.NoError(t, tw.Close())
	}

	events, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestReadEvents_InvalidLine(t *testing.T) {
	_, err := ReadEvents(strings.NewReader("{\"type\":\"timeout\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event 2")
}
