// Package gramps is the REST client for the genealogy backend. It owns the
// wire-level quirks of that API so the service layer never sees them: the
// optional {"data": ...} envelope, 2xx responses carrying {"error": ...}
// bodies, and backend-specific message role vocabularies.
package gramps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"treechat-backend/internal/models"
	"treechat-backend/pkg/apierr"
)

const (
	conversationsPath = "/api/conversations/?page=1&pagesize=50"
	conversationPath  = "/api/conversations/%s/"
	chatPath          = "/api/chat/?background=true"
	taskPath          = "/api/tasks/%s"
	discoveriesPath   = "/api/shared/?page=1&pagesize=10"
	sharePath         = "/api/shared/"
)

// Client talks to the genealogy backend's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL. The token, when
// non-empty, is sent as a bearer Authorization header on every request.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			// Per-call deadlines come from the caller's context; this is a
			// backstop against hung connections.
			Timeout: 60 * time.Second,
		},
	}
}

// doJSON performs a request and decodes the response body as JSON. The
// decoded value is returned as-is (object, array, or nil for an empty body);
// application-level error envelopes are the caller's concern.
func (c *Client) doJSON(ctx context.Context, method, path string, body any) (any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if len(raw) == 0 {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}
		return nil, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}
		return nil, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("gramps api call")
	return decoded, nil
}

// UnwrapData returns the "data" member when value is an object carrying one,
// and value itself otherwise.
func UnwrapData(value any) any {
	if obj, ok := value.(map[string]any); ok {
		if inner, present := obj["data"]; present {
			return inner
		}
	}
	return value
}

// ListConversations fetches the first page of the conversation list. The
// backend returns either a bare array or a {"data": [...]} envelope.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	decoded, err := c.doJSON(ctx, http.MethodGet, conversationsPath, nil)
	if err != nil {
		return nil, err
	}

	items, ok := UnwrapData(decoded).([]any)
	if !ok {
		return nil, fmt.Errorf("%s", apierr.Resolve(decoded, "failed to load conversations"))
	}

	conversations := make([]models.Conversation, 0, len(items))
	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var conv models.Conversation
		if err := json.Unmarshal(encoded, &conv); err != nil {
			continue
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// ConversationMessages fetches one conversation's transcript with roles
// normalized to the display set.
func (c *Client) ConversationMessages(ctx context.Context, id string) ([]models.Message, error) {
	decoded, err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf(conversationPath, id), nil)
	if err != nil {
		return nil, err
	}
	if apierr.HasErrorField(decoded) {
		return nil, fmt.Errorf("%s", apierr.Resolve(decoded, "failed to load conversation"))
	}

	raw, _ := UnwrapData(decoded).(map[string]any)
	items, _ := raw["messages"].([]any)

	messages := make([]models.Message, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := obj["role"].(string)
		content, _ := obj["content"].(string)
		messages = append(messages, models.NewMessage(models.NormalizeRole(role), content))
	}
	return messages, nil
}

// DeleteConversation removes a conversation on the backend.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	decoded, err := c.doJSON(ctx, http.MethodDelete, fmt.Sprintf(conversationPath, id), nil)
	if err != nil {
		return err
	}
	if apierr.HasErrorField(decoded) {
		return fmt.Errorf("%s", apierr.Resolve(decoded, "failed to delete conversation"))
	}
	return nil
}

// SubmitChat posts a chat query, requesting deferred execution. The payload
// omits conversation_id entirely when none is active; omission, not null,
// is what signals "new conversation" to the backend. The decoded response is
// returned raw for the orchestrator to branch on.
func (c *Client) SubmitChat(ctx context.Context, query, conversationID string) (any, error) {
	payload := map[string]any{"query": query}
	if conversationID != "" {
		payload["conversation_id"] = conversationID
	}
	return c.doJSON(ctx, http.MethodPost, chatPath, payload)
}

// FetchTask fetches a background task's status by id, raw.
func (c *Client) FetchTask(ctx context.Context, taskID string) (any, error) {
	return c.doJSON(ctx, http.MethodGet, fmt.Sprintf(taskPath, taskID), nil)
}

// ListDiscoveries fetches the shared-discoveries feed.
func (c *Client) ListDiscoveries(ctx context.Context) ([]models.Discovery, error) {
	decoded, err := c.doJSON(ctx, http.MethodGet, discoveriesPath, nil)
	if err != nil {
		return nil, err
	}
	if apierr.HasErrorField(decoded) {
		return nil, fmt.Errorf("%s", apierr.Resolve(decoded, "failed to load shared discoveries"))
	}

	items, _ := UnwrapData(decoded).([]any)
	discoveries := make([]models.Discovery, 0, len(items))
	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var d models.Discovery
		if err := json.Unmarshal(encoded, &d); err != nil {
			continue
		}
		discoveries = append(discoveries, d)
	}
	return discoveries, nil
}

// ShareDiscovery publishes a chat message to the shared-discoveries feed.
func (c *Client) ShareDiscovery(ctx context.Context, content string, personIDs []string) error {
	payload := map[string]any{
		"content":    content,
		"person_ids": personIDs,
	}
	decoded, err := c.doJSON(ctx, http.MethodPost, sharePath, payload)
	if err != nil {
		return err
	}
	if apierr.HasErrorField(decoded) {
		return fmt.Errorf("%s", apierr.Resolve(decoded, "failed to share discovery"))
	}
	return nil
}
