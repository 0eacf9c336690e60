package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"treechat-backend/internal/models"
	"treechat-backend/internal/services"
	"treechat-backend/pkg/httputil"
	"treechat-backend/pkg/timegroup"
)

// ChatHandlers exposes the chat session over HTTP. Session operations never
// return errors; failures surface inside the session state, so most
// handlers respond with the refreshed snapshot regardless of outcome.
type ChatHandlers struct {
	session *services.SessionService
}

// NewChatHandlers creates a new ChatHandlers instance.
func NewChatHandlers(session *services.SessionService) *ChatHandlers {
	return &ChatHandlers{session: session}
}

// HandleGetState returns the current session snapshot.
func (h *ChatHandlers) HandleGetState(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleGetSidebar returns the conversation list grouped into time buckets.
func (h *ChatHandlers) HandleGetSidebar(w http.ResponseWriter, r *http.Request) {
	groups := timegroup.ByTime(h.session.Conversations(), time.Now())
	httputil.RespondJSON(w, http.StatusOK, groups)
}

// HandleSendPrompt submits a user message and waits for the exchange to
// settle, which may include polling a background task.
func (h *ChatHandlers) HandleSendPrompt(w http.ResponseWriter, r *http.Request) {
	var req models.SendPromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Message is required")
		return
	}

	h.session.SendPrompt(r.Context(), req.Message)
	httputil.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleSelectConversation switches the active conversation.
func (h *ChatHandlers) HandleSelectConversation(w http.ResponseWriter, r *http.Request) {
	var req models.SelectConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation id is required")
		return
	}

	h.session.SelectConversation(r.Context(), req.ID)
	httputil.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleNewConversation resets the session to new-conversation mode.
func (h *ChatHandlers) HandleNewConversation(w http.ResponseWriter, r *http.Request) {
	h.session.NewConversation()
	httputil.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleDeleteConversation deletes a conversation.
func (h *ChatHandlers) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "conversationID")
	if id == "" {
		httputil.RespondError(w, http.StatusBadRequest, "Conversation id is required")
		return
	}

	h.session.DeleteConversation(r.Context(), id)
	httputil.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleRefreshConversations reloads the sidebar list.
func (h *ChatHandlers) HandleRefreshConversations(w http.ResponseWriter, r *http.Request) {
	h.session.RefreshConversations(r.Context())
	httputil.RespondJSON(w, http.StatusOK, h.session.Snapshot())
}
