package missionrt

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies the variant of an AgentEvent.
type EventKind string

const (
	// EventUserMessage reports a message entering a mission's queue or
	// being popped for execution.
	EventUserMessage EventKind = "user_message"

	// EventThinking carries a cumulative or incremental progress update
	// from the backend (Claude thinking-block deltas, OpenCode stdout
	// chunks and stderr log lines).
	EventThinking EventKind = "thinking"

	// EventToolCall reports the agent invoking a tool.
	EventToolCall EventKind = "tool_call"

	// EventToolResult reports the result of a tool invocation.
	EventToolResult EventKind = "tool_result"

	// EventAssistantMessage reports the final assistant output for a turn.
	EventAssistantMessage EventKind = "assistant_message"

	// EventError reports an in-stream error. Per §7, adapters only emit
	// this for errors that may be mid-turn and recoverable (OpenCode);
	// terminal failures are surfaced solely through the AgentResult to
	// avoid double-reporting.
	EventError EventKind = "error"
)

// AgentEvent is the uniform event emitted through the Event Sink. It is a
// flat struct rather than a Go sum type (interface + type switch) because
// every field maps to exactly one on-the-wire shape per variant and
// subscribers downstream serialize it directly; unused fields for a given
// Kind are left zero.
type AgentEvent struct {
	Kind      EventKind
	Mission   uuid.UUID
	Timestamp time.Time

	// UserMessage
	MessageID string
	Queued    bool

	// Thinking / AssistantMessage / Error / UserMessage content
	Content string
	Done    bool // Thinking: true on the final, non-incremental emission

	// ToolCall / ToolResult
	CallID string
	Name   string
	Args   json.RawMessage
	Result json.RawMessage

	// AssistantMessage
	Success bool

	// Error
	Resumable bool
}

func newEvent(mission uuid.UUID, kind EventKind) AgentEvent {
	return AgentEvent{Kind: kind, Mission: mission, Timestamp: time.Now()}
}

// NewUserMessageEvent reports a message entering or leaving a mission's queue.
func NewUserMessageEvent(mission uuid.UUID, messageID, content string, queued bool) AgentEvent {
	e := newEvent(mission, EventUserMessage)
	e.MessageID = messageID
	e.Content = content
	e.Queued = queued
	return e
}

// NewThinkingEvent reports a progress update. done marks the final emission
// for the turn.
func NewThinkingEvent(mission uuid.UUID, content string, done bool) AgentEvent {
	e := newEvent(mission, EventThinking)
	e.Content = content
	e.Done = done
	return e
}

// NewToolCallEvent reports a tool invocation.
func NewToolCallEvent(mission uuid.UUID, callID, name string, args json.RawMessage) AgentEvent {
	e := newEvent(mission, EventToolCall)
	e.CallID = callID
	e.Name = name
	e.Args = args
	return e
}

// NewToolResultEvent reports a tool invocation's result.
func NewToolResultEvent(mission uuid.UUID, callID, name string, result json.RawMessage) AgentEvent {
	e := newEvent(mission, EventToolResult)
	e.CallID = callID
	e.Name = name
	e.Result = result
	return e
}

// NewAssistantMessageEvent reports a turn's final assistant output.
func NewAssistantMessageEvent(mission uuid.UUID, content string, success bool) AgentEvent {
	e := newEvent(mission, EventAssistantMessage)
	e.Content = content
	e.Success = success
	return e
}

// NewErrorEvent reports an in-stream, possibly-recoverable error.
func NewErrorEvent(mission uuid.UUID, message string, resumable bool) AgentEvent {
	e := newEvent(mission, EventError)
	e.Content = message
	e.Resumable = resumable
	return e
}
