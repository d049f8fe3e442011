// Package web exposes the chat agent over HTTP: a streaming chat
// endpoint and conversation management (fetch, rewind).
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/farhanshk/dbchat/internal/ai"
	"github.com/farhanshk/dbchat/internal/session"
	"github.com/farhanshk/dbchat/internal/store"
)

// Runner drives one agent run over a conversation, emitting increments
// to ch. Implemented by *ai.Agent.
type Runner interface {
	Run(ctx context.Context, conv ai.Conversation, ch chan<- ai.StreamEvent) (*ai.RunResult, error)
}

type Handler struct {
	agent    Runner
	store    store.Store
	sessions *session.Manager
}

func NewHandler(agent Runner, s store.Store, sessions *session.Manager) *Handler {
	return &Handler{agent: agent, store: s, sessions: sessions}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/chat", h.HandleChat)
	r.Post("/api/rewind", h.HandleRewind)
	r.Get("/api/conversations/{id}", h.HandleGetConversation)
	r.Delete("/api/conversations/{id}", h.HandleDeleteConversation)
}

type chatRequest struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Messages       ai.Conversation `json:"messages"`
}

// donePayload is the terminal frame of a chat stream. It carries enough
// for the client to reconstruct the appended message sequence and to
// address the conversation later.
type donePayload struct {
	ConversationID  string          `json:"conversation_id"`
	Messages        ai.Conversation `json:"messages"`
	Steps           int             `json:"steps"`
	BudgetExhausted bool            `json:"budget_exhausted,omitempty"`
}

// HandleChat runs the agent over the submitted conversation and streams
// the exchange back as SSE frames: text-delta, tool-call, tool-result,
// then a final done (or error) frame.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 || req.Messages[len(req.Messages)-1].Role != ai.RoleUser {
		writeJSONError(w, http.StatusBadRequest, "messages must end with a user message")
		return
	}
	if err := req.Messages.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	w.Header().Set("X-Conversation-Id", convID)

	sse, err := newSSEWriter(w)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.sessions.WithLock(convID, func() error {
		h.streamRun(r.Context(), sse, convID, req.Messages)
		return nil
	})
}

// streamRun drives the agent in a background goroutine and encodes its
// increments in arrival order. It always drains the event channel, so
// the loop is never blocked on a consumer that has gone away.
func (h *Handler) streamRun(ctx context.Context, sse *sseWriter, convID string, conv ai.Conversation) {
	ch := make(chan ai.StreamEvent, 64)

	type runOutcome struct {
		res *ai.RunResult
		err error
	}
	resultCh := make(chan runOutcome, 1)
	go func() {
		res, err := h.agent.Run(ctx, conv, ch)
		resultCh <- runOutcome{res, err}
	}()

	for ev := range ch {
		if err := sse.writeEvent(string(ev.Type), ev); err != nil {
			// Client went away; keep draining so the run can finish or
			// observe cancellation on its own.
			continue
		}
	}
	out := <-resultCh

	// Persist whatever was appended, including partial output from an
	// aborted run.
	if out.res != nil {
		if err := h.store.SaveConversation(convID, append(conv.Clone(), out.res.Appended...)); err != nil {
			log.Printf("web: failed to save conversation %s: %v", convID, err)
		}
	}

	if out.err != nil {
		if ctx.Err() != nil {
			// Client disconnected; nothing left to write.
			log.Printf("web: chat %s aborted: %v", convID, ctx.Err())
			return
		}
		log.Printf("web: chat %s failed: %v", convID, out.err)
		frame := map[string]string{"error": out.err.Error()}
		var me *ai.ModelError
		if errors.As(out.err, &me) {
			frame["error_type"] = string(ai.ErrModelUnavailable)
		}
		sse.writeEvent("error", frame)
		return
	}

	sse.writeEvent("done", donePayload{
		ConversationID:  convID,
		Messages:        out.res.Appended,
		Steps:           out.res.Steps,
		BudgetExhausted: out.res.BudgetExhausted,
	})
}

type rewindRequest struct {
	ConversationID string `json:"conversation_id"`
	Index          int    `json:"index"`
}

type rewindResponse struct {
	ConversationID string          `json:"conversation_id"`
	Messages       ai.Conversation `json:"messages"`
	RecoveredText  string          `json:"recovered_text"`
}

// HandleRewind truncates a server-held conversation at a user message
// so the client can edit and resend it. The stored conversation is only
// replaced when the rewind point is valid.
func (h *Handler) HandleRewind(w http.ResponseWriter, r *http.Request) {
	var req rewindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.store.GetConversation(req.ConversationID)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}

	truncated, recovered, err := ai.Rewind(conv, req.Index)
	if err != nil {
		if errors.Is(err, ai.ErrInvalidRewindPoint) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.store.SaveConversation(req.ConversationID, truncated); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rewindResponse{
		ConversationID: req.ConversationID,
		Messages:       truncated,
		RecoveredText:  recovered,
	})
}

func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := h.store.GetConversation(id)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if conv == nil {
		writeJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        conv,
	})
}

// HandleDeleteConversation removes a stored conversation. Deleting an
// unknown id is a no-op that still returns 204, so clients can clear
// state without first checking it exists.
func (h *Handler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteConversation(id); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
