package models

// --- Upstream Resources ---

// Conversation mirrors a conversation entry from the genealogy backend's
// paginated list. Timestamps stay raw ISO-8601 strings: the backend is not
// strict about the format and an unparseable date must still bucket (as
// "Older"), so parsing is deferred to the time-bucketer.
type Conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"` // may be absent until the backend names it
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// ChatResult is the normalized outcome of one chat exchange, whether it
// completed inline or through a background task.
type ChatResult struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id,omitempty"` // empty when the backend did not assign one
}

// Discovery is one entry of the shared-discoveries feed.
type Discovery struct {
	ID        string   `json:"id"`
	Content   string   `json:"content"`
	PersonIDs []string `json:"person_ids,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// --- Request Structs ---

// SendPromptRequest defines the body for submitting a chat prompt.
type SendPromptRequest struct {
	Message string `json:"message"`
}

// SelectConversationRequest defines the body for switching the active
// conversation.
type SelectConversationRequest struct {
	ID string `json:"id"`
}

// ShareDiscoveryRequest defines the body for sharing a chat message to the
// discoveries feed.
type ShareDiscoveryRequest struct {
	Content string `json:"content"`
}

// --- Response Structs ---

// SessionState is the snapshot of the chat session exposed to rendering
// collaborators.
type SessionState struct {
	ActiveConversationID string         `json:"active_conversation_id,omitempty"`
	Messages             []Message      `json:"messages"`
	Conversations        []Conversation `json:"conversations"`
	Loading              bool           `json:"loading"`
	ConversationsLoading bool           `json:"conversations_loading"`
	ConversationsError   string         `json:"conversations_error,omitempty"`
	ChatError            string         `json:"chat_error,omitempty"`
}

// DiscoveryFeedResponse defines the visible shared-discoveries feed.
type DiscoveryFeedResponse struct {
	Discoveries []Discovery `json:"discoveries"`
	Error       string      `json:"error,omitempty"`
}

// ShareDiscoveryResponse reports whether a message was actually shared.
type ShareDiscoveryResponse struct {
	Shared bool `json:"shared"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}
