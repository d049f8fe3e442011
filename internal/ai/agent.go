package ai

import (
	"context"
	"fmt"
	"log"
)

// DefaultMaxSteps bounds the number of model invocations per request
// when no explicit budget is configured.
const DefaultMaxSteps = 6

// RunState is the terminal state of an agent run.
type RunState string

const (
	// StateAwaitingModelTurn: the loop is about to invoke the model.
	StateAwaitingModelTurn RunState = "awaiting_model_turn"
	// StateAwaitingToolResult: the loop is executing requested tools.
	StateAwaitingToolResult RunState = "awaiting_tool_result"
	// StateDone: the run finished normally (final text, or budget
	// exhausted with the accumulated transcript).
	StateDone RunState = "done"
	// StateAborted: the model channel failed or the request was
	// cancelled. Whatever was already streamed stays intact.
	StateAborted RunState = "aborted"
)

// RunResult reports the outcome of one agent run. Appended holds the
// messages added to the conversation during the run, in order, even
// when the run aborted partway.
type RunResult struct {
	State           RunState
	Appended        Conversation
	Steps           int
	BudgetExhausted bool
}

// Agent drives the step-bounded tool-calling loop: invoke the model,
// execute any tools it requested, feed the results back, and stop when
// the model answers with plain text or the step budget runs out.
type Agent struct {
	model    ModelClient
	registry *Registry
	system   string
	maxSteps int
}

// NewAgent builds an agent. maxSteps is the hard cap on model
// invocations per run; values < 1 fall back to DefaultMaxSteps.
func NewAgent(model ModelClient, registry *Registry, system string, maxSteps int) *Agent {
	if maxSteps < 1 {
		maxSteps = DefaultMaxSteps
	}
	return &Agent{model: model, registry: registry, system: system, maxSteps: maxSteps}
}

// Run processes one conversation through the loop. The conversation
// must terminate in a user message. Increments are sent to ch in
// generation order as they are produced; ch is closed when the run
// ends, whatever the outcome. ch may be nil for non-streaming use.
//
// Tool failures never abort the run: they are appended as failure
// results so the model can retry within budget. A failed model call is
// terminal and returns a *ModelError; everything appended before the
// failure is still reported in RunResult.
func (a *Agent) Run(ctx context.Context, conv Conversation, ch chan<- StreamEvent) (*RunResult, error) {
	if ch != nil {
		defer close(ch)
	}

	res := &RunResult{State: StateAwaitingModelTurn}

	if len(conv) == 0 || conv[len(conv)-1].Role != RoleUser {
		res.State = StateAborted
		return res, fmt.Errorf("conversation must end with a user message")
	}
	if err := conv.Validate(); err != nil {
		res.State = StateAborted
		return res, fmt.Errorf("invalid conversation: %w", err)
	}

	working := conv.Clone()
	tools := a.registry.OpenAITools()

	for budget := a.maxSteps; budget > 0; budget-- {
		res.State = StateAwaitingModelTurn

		turn, err := a.model.StreamTurn(ctx, a.system, working, tools, func(delta string) {
			emit(ch, textDeltaEvent(delta))
		})
		if err != nil {
			res.State = StateAborted
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			return res, &ModelError{Err: err}
		}
		res.Steps++

		msg := NewMessage(RoleAssistant)
		if turn.Text != "" {
			msg.Parts = append(msg.Parts, TextPart(turn.Text))
		}

		if len(turn.ToolCalls) == 0 {
			working = append(working, msg)
			res.Appended = append(res.Appended, msg)
			res.State = StateDone
			return res, nil
		}

		res.State = StateAwaitingToolResult
		for _, tc := range turn.ToolCalls {
			msg.Parts = append(msg.Parts, ToolCallPartOf(tc.ID, tc.Name, tc.Arguments))
			emit(ch, toolCallEvent(tc))
		}

		// Execute in the order the model emitted the calls; results are
		// appended in that same order. A cancelled request stops here:
		// in-flight results are discarded, nothing further is appended.
		for _, tc := range turn.ToolCalls {
			if ctx.Err() != nil {
				res.State = StateAborted
				return res, ctx.Err()
			}
			log.Printf("agent: calling tool %s (call %s)", tc.Name, tc.ID)
			result := a.registry.Execute(ctx, tc.Name, tc.Arguments)
			if ctx.Err() != nil {
				res.State = StateAborted
				return res, ctx.Err()
			}
			part := ToolResultPartOf(tc.ID, tc.Name, result)
			msg.Parts = append(msg.Parts, part)
			emit(ch, toolResultEvent(*part.ToolResult))
		}

		working = append(working, msg)
		res.Appended = append(res.Appended, msg)
	}

	// Budget exhausted: return the accumulated transcript without
	// forcing one more model call.
	log.Printf("agent: step budget (%d) exhausted", a.maxSteps)
	res.State = StateDone
	res.BudgetExhausted = true
	return res, nil
}

func emit(ch chan<- StreamEvent, ev StreamEvent) {
	if ch != nil {
		ch <- ev
	}
}
