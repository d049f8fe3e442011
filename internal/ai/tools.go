package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

const (
	// Max payload length before truncation (~8KB, keeps token usage low)
	maxOutputLen = 8192
	// Per-tool execution timeout
	toolTimeout = 30 * time.Second
)

// ResultStatus reports whether a tool invocation succeeded.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailure ResultStatus = "failure"
)

// InvocationResult is the typed outcome of one tool invocation. Payload
// is always a caller-safe serialized string; on failure it carries a
// human-readable message the model can act on, and ErrorType records
// the failure classification.
type InvocationResult struct {
	Status    ResultStatus `json:"status"`
	ErrorType ErrorType    `json:"error_type,omitempty"`
	Payload   string       `json:"payload"`
}

func Success(payload string) InvocationResult {
	return InvocationResult{Status: StatusSuccess, Payload: payload}
}

// Failure folds an error into a failure result, classifying it via
// AsToolError.
func Failure(err error) InvocationResult {
	te := AsToolError(err)
	return InvocationResult{Status: StatusFailure, ErrorType: te.Type, Payload: te.Message}
}

func (r InvocationResult) Failed() bool { return r.Status == StatusFailure }

// ParamSchema describes tool parameters using JSON Schema conventions.
type ParamSchema struct {
	Type        string                  `json:"type"`
	Description string                  `json:"description,omitempty"`
	Properties  map[string]*ParamSchema `json:"properties,omitempty"`
	Required    []string                `json:"required,omitempty"`
	Enum        []string                `json:"enum,omitempty"`
}

// Tool is a single function the agent can call. Execute never returns
// an error: any failure is folded into a failure-status result so the
// loop can feed it back to the model instead of crashing the request.
type Tool interface {
	Name() string
	Description() string
	Parameters() *ParamSchema
	Execute(ctx context.Context, args json.RawMessage) InvocationResult
}

// Registry holds all registered tools.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return t, nil
}

// Execute looks up a tool, applies the per-tool timeout, runs it, and
// truncates oversized payloads. An unknown tool name becomes a failure
// result, not an error.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) InvocationResult {
	t, err := r.Get(name)
	if err != nil {
		return Failure(&ToolError{Type: ErrToolRejected, Message: err.Error()})
	}

	toolCtx, cancel := context.WithTimeout(ctx, toolTimeout)
	defer cancel()

	start := time.Now()
	result := t.Execute(toolCtx, args)
	log.Printf("tool: %s completed in %dms (status=%s)", name, time.Since(start).Milliseconds(), result.Status)

	if len(result.Payload) > maxOutputLen {
		log.Printf("tool: payload truncated from %d to %d bytes", len(result.Payload), maxOutputLen)
		result.Payload = result.Payload[:maxOutputLen] + "… (truncated; ask the user to narrow the query)"
	}
	return result
}

// OpenAITools returns tool definitions for the chat completion API, in
// registration order.
func (r *Registry) OpenAITools() []map[string]any {
	tools := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		fn := map[string]any{
			"name":        t.Name(),
			"description": t.Description(),
		}
		if p := t.Parameters(); p != nil {
			fn["parameters"] = schemaToMap(p)
		}
		tools = append(tools, map[string]any{
			"type":     "function",
			"function": fn,
		})
	}
	return tools
}

func schemaToMap(s *ParamSchema) map[string]any {
	m := map[string]any{"type": s.Type}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any)
		for k, v := range s.Properties {
			props[k] = schemaToMap(v)
		}
		m["properties"] = props
	}
	if len(s.Required) > 0 {
		m["required"] = s.Required
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}
	return m
}
