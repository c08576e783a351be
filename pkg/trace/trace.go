// Package trace writes the append-only JSONL record of a play-through.
package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// EventType enumerates all session trace event types.
type EventType string

const (
	EventSessionStart          EventType = "session_start"
	EventRoleAssigned          EventType = "role_assigned"
	EventStepStart             EventType = "step_start"
	EventAnswer                EventType = "answer"
	EventComplicationTriggered EventType = "complication_triggered"
	EventComplicationResolved  EventType = "complication_resolved"
	EventTimeout               EventType = "timeout"
	EventDanglingEdge          EventType = "dangling_edge"
	EventChainAdvance          EventType = "chain_advance"
	EventSessionComplete       EventType = "session_complete"
)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream. A nil *Writer
// discards everything.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	sessionID string
	enc       *json.Encoder
	now       func() time.Time
}

// NewWriter creates a trace writer that writes to the given io.Writer.
func NewWriter(w io.Writer, sessionID string) *Writer {
	return &Writer{
		w:         w,
		sessionID: sessionID,
		enc:       json.NewEncoder(w),
		now:       time.Now,
	}
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, sessionID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, sessionID)
	tw.closer = f
	return tw, nil
}

// SetSession changes the session id stamped on subsequent events.
func (tw *Writer) SetSession(sessionID string) {
	if tw == nil {
		return
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	tw.sessionID = sessionID
}

// Close closes the underlying file, if the writer owns one.
func (tw *Writer) Close() error {
	if tw == nil || tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	if tw == nil {
		return nil
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()

	evt := Event{
		Type:      eventType,
		Timestamp: tw.now().UTC(),
		SessionID: tw.sessionID,
		Data:      data,
	}
	return tw.enc.Encode(evt)
}

// EmitSessionStart emits a session_start event.
func (tw *Writer) EmitSessionStart(scenarioID, difficulty string, accessibility bool, resources any) error {
	return tw.Emit(EventSessionStart, map[string]any{
		"scenario_id":   scenarioID,
		"difficulty":    difficulty,
		"accessibility": accessibility,
		"resources":     resources,
	})
}

// EmitRoleAssigned emits a role_assigned event.
func (tw *Writer) EmitRoleAssigned(role string, stress int) error {
	return tw.Emit(EventRoleAssigned, map[string]any{
		"role":   role,
		"stress": stress,
	})
}

// EmitStepStart emits a step_start event. A zero timeLimit means untimed.
func (tw *Writer) EmitStepStart(stepID string, index, timeLimit int) error {
	data := map[string]any{
		"step_id": stepID,
		"index":   index,
	}
	if timeLimit > 0 {
		data["time_limit"] = timeLimit
	}
	return tw.Emit(EventStepStart, data)
}

// EmitAnswer emits an answer event.
func (tw *Writer) EmitAnswer(stepID, optionID string, correct bool, timeUsed int, resources any) error {
	return tw.Emit(EventAnswer, map[string]any{
		"step_id":   stepID,
		"option_id": optionID,
		"correct":   correct,
		"time_used": timeUsed,
		"resources": resources,
	})
}

// EmitComplicationTriggered emits a complication_triggered event.
func (tw *Writer) EmitComplicationTriggered(name, category string, stepIndex int) error {
	return tw.Emit(EventComplicationTriggered, map[string]any{
		"name":       name,
		"category":   category,
		"step_index": stepIndex,
	})
}

// EmitComplicationResolved emits a complication_resolved event.
func (tw *Writer) EmitComplicationResolved(name, choiceID string, resources any) error {
	return tw.Emit(EventComplicationResolved, map[string]any{
		"name":      name,
		"choice_id": choiceID,
		"resources": resources,
	})
}

// EmitTimeout emits a timeout event.
func (tw *Writer) EmitTimeout(stepID string, limit int) error {
	return tw.Emit(EventTimeout, map[string]any{
		"step_id":    stepID,
		"time_limit": limit,
	})
}

// EmitDanglingEdge emits a dangling_edge event.
func (tw *Writer) EmitDanglingEdge(stepID, optionID, next string) error {
	return tw.Emit(EventDanglingEdge, map[string]any{
		"step_id":   stepID,
		"option_id": optionID,
		"next":      next,
	})
}

// EmitChainAdvance emits a chain_advance event.
func (tw *Writer) EmitChainAdvance(chainType, nextScenario string, current, total int) error {
	return tw.Emit(EventChainAdvance, map[string]any{
		"chain_type":  chainType,
		"scenario_id": nextScenario,
		"current":     current,
		"total":       total,
	})
}

// EmitSessionComplete emits a session_complete event.
func (tw *Writer) EmitSessionComplete(scenarioID string, score int, timedOut bool, insights []string) error {
	data := map[string]any{
		"scenario_id": scenarioID,
		"score":       score,
		"timed_out":   timedOut,
	}
	if len(insights) > 0 {
		data["insights"] = insights
	}
	return tw.Emit(EventSessionComplete, data)
}

// ReadEvents decodes every event of a JSONL trace.
func ReadEvents(r io.Reader) ([]Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	var events []Event
	line := 0
	for scanner.Scan() {
		line++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var evt Event
		if err := json.Unmarshal(b, &evt); err != nil {
			return events, fmt.Errorf("event %d: invalid JSON: %w", line, err)
		}
		events = append(events, evt)
	}
	return events, scanner.Err()
}

// ReadFile decodes a JSONL trace file.
func ReadFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return ReadEvents(f)
}
