package ai

import "encoding/json"

// EventType identifies the kind of streaming increment.
type EventType string

const (
	// EventTextDelta carries an incremental text fragment of the
	// current assistant message.
	EventTextDelta EventType = "text-delta"
	// EventToolCall announces a dispatched tool invocation.
	EventToolCall EventType = "tool-call"
	// EventToolResult carries the outcome of that invocation.
	EventToolResult EventType = "tool-result"
)

// StreamEvent is one increment of the agent loop's output, emitted in
// generation order. Increments for a message are fully emitted before
// the next message begins, and a tool-result never precedes its
// tool-call.
type StreamEvent struct {
	Type      EventType       `json:"type"`
	Content   string          `json:"content,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Status    ResultStatus    `json:"status,omitempty"`
	ErrorType ErrorType       `json:"error_type,omitempty"`
	Payload   string          `json:"payload,omitempty"`
}

func textDeltaEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTextDelta, Content: content}
}

func toolCallEvent(tc ToolCallPart) StreamEvent {
	return StreamEvent{Type: EventToolCall, CallID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}
}

func toolResultEvent(tr ToolResultPart) StreamEvent {
	return StreamEvent{Type: EventToolResult, CallID: tr.CallID, Name: tr.Name, Status: tr.Status, ErrorType: tr.ErrorType, Payload: tr.Payload}
}
