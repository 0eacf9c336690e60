package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"treechat-backend/internal/events"
	"treechat-backend/internal/models"
)

// ConversationAPI is the slice of the upstream client the session needs for
// conversation CRUD.
type ConversationAPI interface {
	ListConversations(ctx context.Context) ([]models.Conversation, error)
	ConversationMessages(ctx context.Context, id string) ([]models.Message, error)
	DeleteConversation(ctx context.Context, id string) error
}

// ChatSubmitter runs one chat exchange to completion.
type ChatSubmitter interface {
	SubmitChatQuery(ctx context.Context, query, activeConversationID string) (*models.ChatResult, error)
}

// SessionService owns the chat session state the web UI renders: the active
// conversation, its transcript, the sidebar list, and the loading/error
// flags. It is the only layer that turns failures into user-visible state;
// every caught error ends up either in an error field or as an injected
// error-role transcript message, never swallowed.
//
// The transcript and conversation list are single-owner and replaced
// wholesale on load, never patched in place.
type SessionService struct {
	api  ConversationAPI
	chat ChatSubmitter
	bus  *events.Bus

	mu                   sync.Mutex
	activeConversationID string
	messages             []models.Message
	conversations        []models.Conversation
	loading              bool
	conversationsLoading bool
	conversationsError   string
	chatError            string

	// Cancels the in-flight exchange (including its task poll) when the
	// session moves on before it finishes.
	exchangeCancel context.CancelFunc
}

// NewSessionService creates a SessionService. bus may be nil when no one
// listens for state notifications.
func NewSessionService(api ConversationAPI, chat ChatSubmitter, bus *events.Bus) *SessionService {
	return &SessionService{
		api:  api,
		chat: chat,
		bus:  bus,
	}
}

// Snapshot returns a copy of the current session state.
func (s *SessionService) Snapshot() models.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := models.SessionState{
		ActiveConversationID: s.activeConversationID,
		Messages:             make([]models.Message, len(s.messages)),
		Conversations:        make([]models.Conversation, len(s.conversations)),
		Loading:              s.loading,
		ConversationsLoading: s.conversationsLoading,
		ConversationsError:   s.conversationsError,
		ChatError:            s.chatError,
	}
	copy(state.Messages, s.messages)
	copy(state.Conversations, s.conversations)
	return state
}

// Conversations returns a copy of the current sidebar list.
func (s *SessionService) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]models.Conversation, len(s.conversations))
	copy(list, s.conversations)
	return list
}

// SelectConversation makes id the active conversation and loads its
// transcript. Reselecting the current conversation (or a blank id) is a
// no-op and performs no fetch. The transcript is cleared before the fetch
// so stale messages never show under the new conversation.
func (s *SessionService) SelectConversation(ctx context.Context, id string) {
	s.mu.Lock()
	if id == "" || id == s.activeConversationID {
		s.mu.Unlock()
		return
	}
	s.cancelExchangeLocked()
	s.activeConversationID = id
	s.messages = nil
	s.chatError = ""
	s.loading = true
	s.mu.Unlock()

	log.Debug().Str("conversation_id", id).Msg("selecting conversation")

	// Loading must never survive any exit path.
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.bus.Publish(events.Event{Kind: events.KindMessagesUpdated, ConversationID: id})
	}()

	messages, err := s.api.ConversationMessages(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", id).Msg("failed to load conversation")
		s.messages = append(s.messages, models.NewMessage(models.RoleError, err.Error()))
		return
	}
	s.messages = messages
}

// NewConversation resets the session to "new conversation" mode: no active
// id, empty transcript, chat error cleared. The sidebar list is untouched.
func (s *SessionService) NewConversation() {
	s.mu.Lock()
	s.cancelExchangeLocked()
	s.activeConversationID = ""
	s.messages = nil
	s.chatError = ""
	s.mu.Unlock()

	s.bus.Publish(events.Event{Kind: events.KindSessionReset})
}

// DeleteConversation removes a conversation upstream and, on success, from
// the local list. Deleting the active conversation also resets the
// transcript. On failure the list is left untouched and the failure is
// surfaced as an error-role transcript message.
func (s *SessionService) DeleteConversation(ctx context.Context, id string) {
	if id == "" {
		return
	}

	if err := s.api.DeleteConversation(ctx, id); err != nil {
		log.Warn().Err(err).Str("conversation_id", id).Msg("failed to delete conversation")
		s.mu.Lock()
		s.messages = append(s.messages, models.NewMessage(models.RoleError, err.Error()))
		s.mu.Unlock()
		s.bus.Publish(events.Event{Kind: events.KindMessagesUpdated, ConversationID: id})
		return
	}

	s.mu.Lock()
	filtered := s.conversations[:0:0]
	for _, conv := range s.conversations {
		if conv.ID != id {
			filtered = append(filtered, conv)
		}
	}
	s.conversations = filtered
	if s.activeConversationID == id {
		s.cancelExchangeLocked()
		s.activeConversationID = ""
		s.messages = nil
	}
	s.mu.Unlock()

	s.bus.Publish(events.Event{Kind: events.KindConversationsUpdated})
}

// SendPrompt runs one chat exchange: the user's message is appended
// optimistically before any network round trip, the orchestrator produces
// the assistant reply (or failure), and the sidebar refresh is kicked off
// in the background without being awaited.
func (s *SessionService) SendPrompt(ctx context.Context, userContent string) {
	if strings.TrimSpace(userContent) == "" {
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, models.NewMessage(models.RoleHuman, userContent))
	s.loading = true
	s.chatError = ""
	activeID := s.activeConversationID
	s.cancelExchangeLocked()
	exchangeCtx, cancel := context.WithCancel(ctx)
	s.exchangeCancel = cancel
	s.mu.Unlock()

	s.bus.Publish(events.Event{Kind: events.KindMessagesUpdated, ConversationID: activeID})

	defer func() {
		cancel()
		s.mu.Lock()
		s.exchangeCancel = nil
		s.loading = false
		adopted := s.activeConversationID
		s.mu.Unlock()
		s.bus.Publish(events.Event{Kind: events.KindMessagesUpdated, ConversationID: adopted})
	}()

	result, err := s.chat.SubmitChatQuery(exchangeCtx, userContent, activeID)

	if err != nil {
		// An exchange cancelled by a conversation switch (not by the
		// caller) was abandoned deliberately; its outcome must not leak
		// into the new transcript.
		if exchangeCtx.Err() != nil && ctx.Err() == nil {
			log.Debug().Str("conversation_id", activeID).Msg("chat exchange superseded, dropping result")
			return
		}
		log.Warn().Err(err).Msg("chat exchange failed")
		s.mu.Lock()
		s.chatError = err.Error()
		s.messages = append(s.messages, models.NewMessage(models.RoleError, err.Error()))
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.messages = append(s.messages, models.NewMessage(models.RoleAI, result.Response))
	// First message of a fresh conversation: adopt the id the backend
	// assigned so the follow-up goes to the same conversation.
	if result.ConversationID != "" && s.activeConversationID == "" {
		s.activeConversationID = result.ConversationID
	}
	s.mu.Unlock()

	// Sidebar refresh is fire-and-forget: its failure surfaces through
	// conversationsError and must not affect the already-settled exchange.
	go func() {
		refreshCtx, cancelRefresh := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelRefresh()
		s.RefreshConversations(refreshCtx)
	}()
}

// RefreshConversations reloads the sidebar list (first page, 50 entries).
// Failures clear the list and set conversationsError; the loading flag is
// cleared on every exit path.
func (s *SessionService) RefreshConversations(ctx context.Context) {
	s.mu.Lock()
	s.conversationsLoading = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conversationsLoading = false
		s.mu.Unlock()
		s.bus.Publish(events.Event{Kind: events.KindConversationsUpdated})
	}()

	list, err := s.api.ListConversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Msg("failed to refresh conversations")
		s.conversations = []models.Conversation{}
		s.conversationsError = err.Error()
		return
	}
	s.conversations = list
	s.conversationsError = ""
}

// cancelExchangeLocked stops the outstanding exchange, if any. Callers must
// hold s.mu.
func (s *SessionService) cancelExchangeLocked() {
	if s.exchangeCancel != nil {
		s.exchangeCancel()
		s.exchangeCancel = nil
	}
}
