package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Part is one element of a message. Exactly one field is set:
// plain text, a tool call requested by the model, or the result of
// executing that call.
type Part struct {
	Text       string          `json:"text,omitempty"`
	ToolCall   *ToolCallPart   `json:"tool_call,omitempty"`
	ToolResult *ToolResultPart `json:"tool_result,omitempty"`
}

// ToolCallPart records a tool invocation requested by the model.
// Arguments is the raw JSON the model produced, preserved verbatim.
type ToolCallPart struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResultPart records the outcome of a tool call. CallID references
// the ToolCallPart that produced it. Payload is a fully serialized
// string regardless of status; on failure it carries the error message.
type ToolResultPart struct {
	CallID    string       `json:"call_id"`
	Name      string       `json:"name,omitempty"`
	Status    ResultStatus `json:"status"`
	ErrorType ErrorType    `json:"error_type,omitempty"`
	Payload   string       `json:"payload"`
}

// Message is one turn in a conversation. IDs are assigned at creation
// and stay stable for the lifetime of the conversation so clients can
// address messages (e.g. for rewind).
type Message struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

func NewMessage(role Role, parts ...Part) Message {
	return Message{ID: uuid.NewString(), Role: role, Parts: parts}
}

// NewUserMessage builds a user message holding a single text part.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, TextPart(text))
}

func TextPart(text string) Part {
	return Part{Text: text}
}

func ToolCallPartOf(id, name string, args json.RawMessage) Part {
	return Part{ToolCall: &ToolCallPart{ID: id, Name: name, Arguments: args}}
}

func ToolResultPartOf(callID, name string, result InvocationResult) Part {
	return Part{ToolResult: &ToolResultPart{
		CallID:    callID,
		Name:      name,
		Status:    result.Status,
		ErrorType: result.ErrorType,
		Payload:   result.Payload,
	}}
}

// RenderedText concatenates the message's text parts in order.
// Tool parts do not contribute.
func (m Message) RenderedText() string {
	var b strings.Builder
	for _, p := range m.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Conversation is an ordered message sequence. It is append-only while
// a single agent run is processing it and owned by that request alone.
type Conversation []Message

// Clone returns a shallow copy whose backing array is independent, so
// appends by the agent loop never alias the caller's slice.
func (c Conversation) Clone() Conversation {
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// Validate checks the structural invariants: every part carries exactly
// one variant, and every tool result references a tool call that
// appears earlier in the conversation.
func (c Conversation) Validate() error {
	seen := make(map[string]bool)
	for i, m := range c {
		for j, p := range m.Parts {
			if err := p.checkVariant(); err != nil {
				return fmt.Errorf("message %d part %d: %w", i, j, err)
			}
			if p.ToolCall != nil {
				if p.ToolCall.ID == "" {
					return fmt.Errorf("message %d part %d: tool call without id", i, j)
				}
				seen[p.ToolCall.ID] = true
			}
			if p.ToolResult != nil {
				if !seen[p.ToolResult.CallID] {
					return fmt.Errorf("message %d part %d: tool result %q has no preceding tool call", i, j, p.ToolResult.CallID)
				}
			}
		}
	}
	return nil
}

func (p Part) checkVariant() error {
	n := 0
	if p.Text != "" {
		n++
	}
	if p.ToolCall != nil {
		n++
	}
	if p.ToolResult != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("part must carry exactly one of text, tool_call, tool_result")
	}
	return nil
}
