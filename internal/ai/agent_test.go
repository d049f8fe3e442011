package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// scriptedModel plays back a fixed sequence of turns. When the script
// runs out it repeats the last turn, which makes "model that never
// stops calling tools" scenarios trivial to express.
type scriptedModel struct {
	turns  []ModelTurn
	failAt int // 0-based call index that fails, -1 for never
	err    error
	calls  int
}

func (m *scriptedModel) StreamTurn(ctx context.Context, system string, conv Conversation, tools []map[string]any, onDelta func(string)) (*ModelTurn, error) {
	i := m.calls
	m.calls++
	if m.failAt >= 0 && i == m.failAt {
		return nil, m.err
	}
	if i >= len(m.turns) {
		i = len(m.turns) - 1
	}
	turn := m.turns[i]

	// Stream the text in two fragments to exercise delta ordering.
	if turn.Text != "" && onDelta != nil {
		half := len(turn.Text) / 2
		if half == 0 {
			half = len(turn.Text)
		}
		onDelta(turn.Text[:half])
		if half < len(turn.Text) {
			onDelta(turn.Text[half:])
		}
	}
	return &turn, nil
}

// stubTool returns a canned result and records the arguments it saw.
type stubTool struct {
	result  InvocationResult
	gotArgs []string
	onExec  func(ctx context.Context)
}

func (t *stubTool) Name() string             { return "db_query" }
func (t *stubTool) Description() string      { return "stub" }
func (t *stubTool) Parameters() *ParamSchema { return nil }
func (t *stubTool) Execute(ctx context.Context, args json.RawMessage) InvocationResult {
	t.gotArgs = append(t.gotArgs, string(args))
	if t.onExec != nil {
		t.onExec(ctx)
	}
	return t.result
}

func newTestAgent(model ModelClient, tool Tool, maxSteps int) *Agent {
	reg := NewRegistry()
	if tool != nil {
		reg.Register(tool)
	}
	return NewAgent(model, reg, "test system prompt", maxSteps)
}

func runAndCollect(t *testing.T, a *Agent, conv Conversation) (*RunResult, []StreamEvent, error) {
	t.Helper()
	ch := make(chan StreamEvent, 256)
	res, err := a.Run(context.Background(), conv, ch)
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return res, events, err
}

func textTurn(text string) ModelTurn { return ModelTurn{Text: text} }

func queryTurn(id, query string) ModelTurn {
	args, _ := json.Marshal(map[string]string{"query": query})
	return ModelTurn{ToolCalls: []ToolCallPart{{ID: id, Name: "db_query", Arguments: args}}}
}

func TestRunTextOnlyTurn(t *testing.T) {
	model := &scriptedModel{turns: []ModelTurn{textTurn("Just a general answer.")}, failAt: -1}
	a := newTestAgent(model, &stubTool{}, 6)

	res, events, err := runAndCollect(t, a, Conversation{NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.State != StateDone || res.BudgetExhausted {
		t.Errorf("state = %s (budget exhausted %v), want done", res.State, res.BudgetExhausted)
	}
	if res.Steps != 1 {
		t.Errorf("steps = %d, want 1", res.Steps)
	}
	if len(res.Appended) != 1 || res.Appended[0].Role != RoleAssistant {
		t.Fatalf("appended = %+v, want one assistant message", res.Appended)
	}
	if got := res.Appended[0].RenderedText(); got != "Just a general answer." {
		t.Errorf("rendered text = %q", got)
	}

	var streamed strings.Builder
	for _, ev := range events {
		if ev.Type != EventTextDelta {
			t.Fatalf("unexpected event type %s", ev.Type)
		}
		streamed.WriteString(ev.Content)
	}
	if streamed.String() != "Just a general answer." {
		t.Errorf("streamed text = %q", streamed.String())
	}
}

func TestRunToolRoundTrip(t *testing.T) {
	model := &scriptedModel{
		turns: []ModelTurn{
			queryTurn("call_1", "SELECT COUNT(*) AS count FROM users WHERE city='Lahore'"),
			textTurn("There are 6 users in Lahore."),
		},
		failAt: -1,
	}
	tool := &stubTool{result: Success(`[{"count":"6"}]`)}
	a := newTestAgent(model, tool, 6)

	res, events, err := runAndCollect(t, a, Conversation{NewUserMessage("How many users are in Lahore?")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.State != StateDone || res.Steps != 2 || res.BudgetExhausted {
		t.Fatalf("state=%s steps=%d exhausted=%v, want done/2/false", res.State, res.Steps, res.BudgetExhausted)
	}

	if len(res.Appended) != 2 {
		t.Fatalf("appended %d messages, want 2", len(res.Appended))
	}
	first := res.Appended[0]
	if len(first.Parts) != 2 || first.Parts[0].ToolCall == nil || first.Parts[1].ToolResult == nil {
		t.Fatalf("first appended message parts = %+v, want [tool_call, tool_result]", first.Parts)
	}
	if first.Parts[1].ToolResult.CallID != first.Parts[0].ToolCall.ID {
		t.Errorf("tool result call id %q does not match call %q",
			first.Parts[1].ToolResult.CallID, first.Parts[0].ToolCall.ID)
	}
	if first.Parts[1].ToolResult.Payload != `[{"count":"6"}]` {
		t.Errorf("tool result payload = %q", first.Parts[1].ToolResult.Payload)
	}
	if got := res.Appended[1].RenderedText(); got != "There are 6 users in Lahore." {
		t.Errorf("final answer = %q", got)
	}

	// Appending to a validated conversation must stay valid.
	full := append(Conversation{NewUserMessage("How many users are in Lahore?")}, res.Appended...)
	if err := full.Validate(); err != nil {
		t.Errorf("resulting conversation invalid: %v", err)
	}

	// Ordering: tool-call before tool-result before the final text.
	var kinds []EventType
	for _, ev := range events {
		if len(kinds) == 0 || kinds[len(kinds)-1] != ev.Type {
			kinds = append(kinds, ev.Type)
		}
	}
	want := []EventType{EventToolCall, EventToolResult, EventTextDelta}
	if fmt.Sprint(kinds) != fmt.Sprint(want) {
		t.Errorf("event order = %v, want %v", kinds, want)
	}
}

func TestRunToolFailureFedBackToModel(t *testing.T) {
	model := &scriptedModel{
		turns: []ModelTurn{
			queryTurn("call_1", "DROP TABLE users"),
			textTurn("I can only read data, sorry."),
		},
		failAt: -1,
	}
	tool := &stubTool{result: Failure(&ToolError{
		Type:    ErrToolRejected,
		Message: "query rejected: only SELECT queries are allowed",
	})}
	a := newTestAgent(model, tool, 6)

	res, events, err := runAndCollect(t, a, Conversation{NewUserMessage("wipe the table")})
	if err != nil {
		t.Fatalf("Run() error = %v (tool failures must not abort the loop)", err)
	}
	if res.State != StateDone || res.Steps != 2 {
		t.Fatalf("state=%s steps=%d, want done/2", res.State, res.Steps)
	}

	tr := res.Appended[0].Parts[1].ToolResult
	if tr == nil || tr.Status != StatusFailure {
		t.Fatalf("tool result = %+v, want failure status", tr)
	}
	if tr.ErrorType != ErrToolRejected {
		t.Errorf("tool result error type = %q, want %q", tr.ErrorType, ErrToolRejected)
	}
	if !strings.Contains(tr.Payload, "only SELECT") {
		t.Errorf("failure payload = %q", tr.Payload)
	}

	var sawFailureEvent bool
	for _, ev := range events {
		if ev.Type == EventToolResult && ev.Status == StatusFailure {
			sawFailureEvent = true
			if ev.ErrorType != ErrToolRejected {
				t.Errorf("failure event error type = %q, want %q", ev.ErrorType, ErrToolRejected)
			}
		}
	}
	if !sawFailureEvent {
		t.Error("no failure tool-result event streamed")
	}
}

func TestRunStopsAtStepBudget(t *testing.T) {
	// The model requests a tool call on every turn, forever.
	model := &scriptedModel{turns: []ModelTurn{queryTurn("call_loop", "SELECT 1")}, failAt: -1}
	tool := &stubTool{result: Success("[]")}
	a := newTestAgent(model, tool, 6)

	res, _, err := runAndCollect(t, a, Conversation{NewUserMessage("loop forever")})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.BudgetExhausted || res.State != StateDone {
		t.Errorf("state=%s exhausted=%v, want done/true", res.State, res.BudgetExhausted)
	}
	if model.calls != 6 {
		t.Errorf("model invoked %d times, want exactly 6", model.calls)
	}
	if res.Steps != 6 {
		t.Errorf("steps = %d, want 6", res.Steps)
	}
	if len(res.Appended) != 6 {
		t.Errorf("appended %d messages, want 6 (accumulated transcript)", len(res.Appended))
	}
}

func TestRunModelFailureAborts(t *testing.T) {
	upstream := errors.New("upstream 500")
	model := &scriptedModel{
		turns:  []ModelTurn{queryTurn("call_1", "SELECT 1")},
		failAt: 1,
		err:    upstream,
	}
	tool := &stubTool{result: Success("[]")}
	a := newTestAgent(model, tool, 6)

	res, _, err := runAndCollect(t, a, Conversation{NewUserMessage("hi")})
	if err == nil {
		t.Fatal("Run() error = nil, want model error")
	}
	var me *ModelError
	if !errors.As(err, &me) || !errors.Is(err, upstream) {
		t.Errorf("error = %v, want *ModelError wrapping upstream", err)
	}
	if res.State != StateAborted {
		t.Errorf("state = %s, want aborted", res.State)
	}
	// The partial transcript from before the failure is preserved.
	if len(res.Appended) != 1 {
		t.Errorf("appended %d messages, want the partial transcript (1)", len(res.Appended))
	}
}

func TestRunCancellationDiscardsInFlightResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	model := &scriptedModel{turns: []ModelTurn{queryTurn("call_1", "SELECT 1")}, failAt: -1}
	tool := &stubTool{
		result: Success("[]"),
		onExec: func(context.Context) { cancel() }, // client disconnects mid-query
	}
	a := newTestAgent(model, tool, 6)

	ch := make(chan StreamEvent, 256)
	res, err := a.Run(ctx, Conversation{NewUserMessage("hi")}, ch)
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if res.State != StateAborted {
		t.Errorf("state = %s, want aborted", res.State)
	}
	if len(res.Appended) != 0 {
		t.Errorf("appended %d messages after abort, want 0", len(res.Appended))
	}
	for _, ev := range events {
		if ev.Type == EventToolResult {
			t.Error("tool result streamed after cancellation")
		}
	}
}

func TestRunRejectsConversationNotEndingInUserMessage(t *testing.T) {
	model := &scriptedModel{turns: []ModelTurn{textTurn("hi")}, failAt: -1}
	a := newTestAgent(model, &stubTool{}, 6)

	for _, conv := range []Conversation{
		nil,
		{NewMessage(RoleAssistant, TextPart("hello"))},
	} {
		res, _, err := runAndCollect(t, a, conv)
		if err == nil {
			t.Errorf("Run(%v) error = nil, want validation error", conv)
		}
		if res.State != StateAborted {
			t.Errorf("state = %s, want aborted", res.State)
		}
	}
	if model.calls != 0 {
		t.Errorf("model invoked %d times on invalid input, want 0", model.calls)
	}
}
