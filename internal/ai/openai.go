package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ModelTurn is the complete output of one model invocation: the text it
// produced (possibly empty) and the tool calls it requested, in the
// order it emitted them.
type ModelTurn struct {
	Text      string
	ToolCalls []ToolCallPart
}

// ModelClient produces one model turn from a conversation and a set of
// declared tools, invoking onDelta for each text fragment as it is
// generated.
type ModelClient interface {
	StreamTurn(ctx context.Context, system string, conv Conversation, tools []map[string]any, onDelta func(string)) (*ModelTurn, error)
}

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint
// with streaming enabled.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// --- chat completions wire types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []any         `json:"tools,omitempty"`
	Temperature float32       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// streamChunk is one decoded SSE data frame of a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *OpenAIClient) StreamTurn(ctx context.Context, system string, conv Conversation, tools []map[string]any, onDelta func(string)) (*ModelTurn, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    toWireMessages(system, conv),
		Temperature: 0.3,
		Stream:      true,
	}
	for _, t := range tools {
		reqBody.Tools = append(reqBody.Tools, t)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai: status %d: %s", resp.StatusCode, string(respBody))
	}

	return consumeStream(ctx, resp.Body, onDelta)
}

// pendingCall accumulates tool-call argument fragments for one index
// until the stream completes.
type pendingCall struct {
	id   string
	name string
	args strings.Builder
}

// consumeStream reads SSE data frames until [DONE], forwarding content
// deltas and assembling tool calls fragment by fragment.
func consumeStream(ctx context.Context, r io.Reader, onDelta func(string)) (*ModelTurn, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var text strings.Builder
	calls := make(map[int]*pendingCall)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(line[5:])
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, fmt.Errorf("openai: decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			text.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}
		for _, tc := range delta.ToolCalls {
			pc, ok := calls[tc.Index]
			if !ok {
				pc = &pendingCall{}
				calls[tc.Index] = pc
			}
			if tc.ID != "" {
				pc.id = tc.ID
			}
			if tc.Function.Name != "" {
				pc.name = tc.Function.Name
			}
			pc.args.WriteString(tc.Function.Arguments)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("openai: read stream: %w", err)
	}

	turn := &ModelTurn{Text: text.String()}

	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		pc := calls[i]
		if pc.id == "" {
			pc.id = "call_" + uuid.NewString()
		}
		args := pc.args.String()
		if args == "" {
			args = "{}"
		}
		turn.ToolCalls = append(turn.ToolCalls, ToolCallPart{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: json.RawMessage(args),
		})
	}
	return turn, nil
}

// toWireMessages flattens a conversation into chat-completions
// messages. Assistant tool calls ride on the assistant message; each
// tool result becomes its own role=tool message immediately after, so
// results always follow the call that produced them.
func toWireMessages(system string, conv Conversation) []chatMessage {
	messages := make([]chatMessage, 0, len(conv)+1)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}

	for _, m := range conv {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, chatMessage{Role: "system", Content: m.RenderedText()})
		case RoleUser:
			messages = append(messages, chatMessage{Role: "user", Content: m.RenderedText()})
		case RoleAssistant:
			msg := chatMessage{Role: "assistant", Content: m.RenderedText()}
			var results []chatMessage
			for _, p := range m.Parts {
				if p.ToolCall != nil {
					msg.ToolCalls = append(msg.ToolCalls, wireToolCall{
						ID:   p.ToolCall.ID,
						Type: "function",
						Function: functionCall{
							Name:      p.ToolCall.Name,
							Arguments: string(p.ToolCall.Arguments),
						},
					})
				}
				if p.ToolResult != nil {
					results = append(results, chatMessage{
						Role:       "tool",
						Content:    p.ToolResult.Payload,
						ToolCallID: p.ToolResult.CallID,
					})
				}
			}
			messages = append(messages, msg)
			messages = append(messages, results...)
		}
	}
	return messages
}
