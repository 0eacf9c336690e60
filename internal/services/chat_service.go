package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"treechat-backend/internal/models"
	"treechat-backend/pkg/apierr"
)

// ChatAPI is the slice of the upstream client the chat service needs.
type ChatAPI interface {
	SubmitChat(ctx context.Context, query, conversationID string) (any, error)
	FetchTask(ctx context.Context, taskID string) (any, error)
}

// ChatService orchestrates one chat exchange: it submits the query with
// deferred execution requested and normalizes the three possible outcomes
// (inline answer, background task, error envelope) into a single result
// shape.
type ChatService struct {
	api            ChatAPI
	requestTimeout time.Duration
	pollOptions    PollOptions
}

// NewChatService creates a ChatService. requestTimeout bounds the chat
// submission request itself, not the subsequent task polling.
func NewChatService(api ChatAPI, requestTimeout time.Duration, pollOptions PollOptions) *ChatService {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &ChatService{
		api:            api,
		requestTimeout: requestTimeout,
		pollOptions:    pollOptions,
	}
}

// SubmitChatQuery sends a chat query and returns the normalized result,
// polling a background task to completion when the backend defers the work.
// activeConversationID may be empty, signalling a new conversation.
//
// Whether the backend answers inline or defers is an implementation detail
// the client cannot assume, so every response shape is handled.
func (s *ChatService) SubmitChatQuery(ctx context.Context, query, activeConversationID string) (*models.ChatResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	decoded, err := s.api.SubmitChat(reqCtx, query, activeConversationID)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	if apierr.HasErrorField(decoded) {
		return nil, errors.New(apierr.Resolve(decoded, "an error occurred"))
	}

	obj, _ := decoded.(map[string]any)

	// Inline success: the backend answered synchronously, no polling.
	if data, ok := obj["data"].(map[string]any); ok {
		if response := truthyString(data["response"]); response != "" {
			return &models.ChatResult{
				Response:       response,
				ConversationID: coerceString(data["conversation_id"]),
			}, nil
		}
	}

	// Deferred: a task was queued, drive it to a terminal state. Polling
	// runs under the caller's context, not the submission timeout.
	if task, ok := obj["task"].(map[string]any); ok {
		if taskID := coerceString(task["id"]); taskID != "" {
			return PollTask(ctx, taskID, s.api.FetchTask, s.pollOptions)
		}
	}

	return nil, errors.New("chat request did not return a task id")
}
