package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/sahaay-health/sahaay/backend/internal/service/chat"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
	"github.com/sahaay-health/sahaay/backend/pkg/utils"
)

// Handler answers a single message over Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string            `json:"event"`
	SessionID string            `json:"sessionId,omitempty"`
	Content   string            `json:"content,omitempty"`
	Source    string            `json:"source,omitempty"`
	View      *chatService.View `json:"view,omitempty"`
	Finished  bool              `json:"finished,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// RegisterRoutes 注册 SSE 路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	userMessage := r.URL.Query().Get("message")

	if userMessage == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}
	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}

	if err := h.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
		log.Errorw("stream request failed", "session", sessionID, "error", err)
	}
}

// HandleStreamRequest submits the message and reports the reply as SSE events
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return errors.New("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	h.send(w, flusher, StreamResponse{Event: "start", SessionID: sessionID})

	view, err := h.chatSvc.Submit(ctx, sessionID, userMessage)
	if err != nil {
		h.send(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: err.Error()})
		return fmt.Errorf("submit message: %w", err)
	}

	if view.Error != "" {
		h.send(w, flusher, StreamResponse{Event: "error", SessionID: sessionID, Error: view.Error, View: &view})
	} else {
		h.send(w, flusher, StreamResponse{
			Event:     "message",
			SessionID: sessionID,
			Content:   latestReply(view),
			Source:    string(view.LastSource),
			View:      &view,
		})
	}

	h.send(w, flusher, StreamResponse{Event: "end", SessionID: sessionID, Finished: true})
	log.Infow("stream completed", "session", sessionID, "source", view.LastSource)
	return nil
}

// latestReply returns the newest message, which is the assistant reply after a successful submit.
func latestReply(view chatService.View) string {
	if len(view.Messages) == 0 {
		return ""
	}
	return view.Messages[0].Content
}

func (h *Handler) send(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	utils.SendSSEEvent(w, flusher, response.Event, response)
}
