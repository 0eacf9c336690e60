package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treechat-backend/internal/events"
	"treechat-backend/internal/models"
)

type fakeConversationAPI struct {
	mu sync.Mutex

	conversations []models.Conversation
	listErr       error
	listCalls     int
	listed        chan struct{}

	messages      map[string][]models.Message
	messagesErr   error
	messagesCalls int

	deleteErr error
	deletedID string
}

func newFakeConversationAPI() *fakeConversationAPI {
	return &fakeConversationAPI{
		messages: map[string][]models.Message{},
		listed:   make(chan struct{}, 8),
	}
}

func (f *fakeConversationAPI) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	select {
	case f.listed <- struct{}{}:
	default:
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.conversations, nil
}

func (f *fakeConversationAPI) ConversationMessages(ctx context.Context, id string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messagesCalls++
	if f.messagesErr != nil {
		return nil, f.messagesErr
	}
	return f.messages[id], nil
}

func (f *fakeConversationAPI) DeleteConversation(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedID = id
	return nil
}

type fakeSubmitter struct {
	result    *models.ChatResult
	err       error
	gotQuery  string
	gotActive string
	calls     int
	block     chan struct{} // when non-nil, the call waits until closed or ctx done
}

func (f *fakeSubmitter) SubmitChatQuery(ctx context.Context, query, activeConversationID string) (*models.ChatResult, error) {
	f.calls++
	f.gotQuery = query
	f.gotActive = activeConversationID
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func waitForRefresh(t *testing.T, api *fakeConversationAPI) {
	t.Helper()
	select {
	case <-api.listed:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a conversation-list refresh")
	}
}

func TestSelectConversationLoadsMessages(t *testing.T) {
	api := newFakeConversationAPI()
	api.messages["c1"] = []models.Message{
		models.NewMessage(models.RoleHuman, "hi"),
		models.NewMessage(models.RoleAI, "hello"),
	}
	s := NewSessionService(api, &fakeSubmitter{}, nil)

	s.SelectConversation(context.Background(), "c1")

	state := s.Snapshot()
	assert.Equal(t, "c1", state.ActiveConversationID)
	require.Len(t, state.Messages, 2)
	assert.False(t, state.Loading)
}

func TestSelectConversationIdempotentReselect(t *testing.T) {
	api := newFakeConversationAPI()
	s := NewSessionService(api, &fakeSubmitter{}, nil)

	s.SelectConversation(context.Background(), "c1")
	s.SelectConversation(context.Background(), "c1")

	// The reselect short-circuits: exactly one fetch.
	assert.Equal(t, 1, api.messagesCalls)
}

func TestSelectConversationBlankIDIsNoOp(t *testing.T) {
	api := newFakeConversationAPI()
	s := NewSessionService(api, &fakeSubmitter{}, nil)

	s.SelectConversation(context.Background(), "")
	assert.Zero(t, api.messagesCalls)
}

func TestSelectConversationFailureInjectsErrorMessage(t *testing.T) {
	api := newFakeConversationAPI()
	api.messagesErr = errors.New("conversation gone")
	s := NewSessionService(api, &fakeSubmitter{}, nil)

	s.SelectConversation(context.Background(), "c1")

	state := s.Snapshot()
	require.Len(t, state.Messages, 1)
	assert.Equal(t, models.RoleError, state.Messages[0].Role)
	assert.Contains(t, state.Messages[0].Content, "conversation gone")
	// Loading never survives a failed load.
	assert.False(t, state.Loading)
}

func TestNewConversationResetsSession(t *testing.T) {
	api := newFakeConversationAPI()
	api.conversations = []models.Conversation{{ID: "c1"}}
	s := NewSessionService(api, &fakeSubmitter{}, nil)

	s.RefreshConversations(context.Background())
	s.SelectConversation(context.Background(), "c1")
	s.NewConversation()

	state := s.Snapshot()
	assert.Empty(t, state.ActiveConversationID)
	assert.Empty(t, state.Messages)
	// The sidebar list is untouched.
	assert.Len(t, state.Conversations, 1)
}

func TestDeleteConversationRemovesFromList(t *testing.T) {
	api := newFakeConversationAPI()
	api.conversations = []models.Conversation{{ID: "c1"}, {ID: "c2"}}
	s := NewSessionService(api, &fakeSubmitter{}, nil)
	s.RefreshConversations(context.Background())

	s.DeleteConversation(context.Background(), "c2")

	state := s.Snapshot()
	require.Len(t, state.Conversations, 1)
	assert.Equal(t, "c1", state.Conversations[0].ID)
	assert.Equal(t, "c2", api.deletedID)
}

func TestDeleteActiveConversationResetsSession(t *testing.T) {
	api := newFakeConversationAPI()
	api.conversations = []models.Conversation{{ID: "c1"}}
	api.messages["c1"] = []models.Message{models.NewMessage(models.RoleHuman, "hi")}
	s := NewSessionService(api, &fakeSubmitter{}, nil)
	s.RefreshConversations(context.Background())
	s.SelectConversation(context.Background(), "c1")

	s.DeleteConversation(context.Background(), "c1")

	state := s.Snapshot()
	assert.Empty(t, state.ActiveConversationID)
	assert.Empty(t, state.Messages)
	assert.Empty(t, state.Conversations)
}

func TestDeleteConversationFailureLeavesListAlone(t *testing.T) {
	api := newFakeConversationAPI()
	api.conversations = []models.Conversation{{ID: "c1"}}
	s := NewSessionService(api, &fakeSubmitter{}, nil)
	s.RefreshConversations(context.Background())
	api.deleteErr = errors.New("forbidden")

	s.DeleteConversation(context.Background(), "c1")

	state := s.Snapshot()
	assert.Len(t, state.Conversations, 1)
	require.NotEmpty(t, state.Messages)
	last := state.Messages[len(state.Messages)-1]
	assert.Equal(t, models.RoleError, last.Role)
	assert.Contains(t, last.Content, "forbidden")
}

// End-to-end: first prompt of a fresh session adopts the backend-assigned
// conversation id and kicks off a sidebar refresh.
func TestSendPromptNewConversationFlow(t *testing.T) {
	api := newFakeConversationAPI()
	submitter := &fakeSubmitter{
		result: &models.ChatResult{Response: "X was born in 1823.", ConversationID: "c42"},
	}
	bus := events.NewBus()
	s := NewSessionService(api, submitter, bus)

	s.SendPrompt(context.Background(), "Tell me about X")
	waitForRefresh(t, api)

	state := s.Snapshot()
	assert.Equal(t, "c42", state.ActiveConversationID)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, models.RoleHuman, state.Messages[0].Role)
	assert.Equal(t, "Tell me about X", state.Messages[0].Content)
	assert.Equal(t, models.RoleAI, state.Messages[1].Role)
	assert.Equal(t, "X was born in 1823.", state.Messages[1].Content)
	assert.False(t, state.Loading)
	assert.Empty(t, submitter.gotActive)
}

func TestSendPromptKeepsExistingActiveConversation(t *testing.T) {
	api := newFakeConversationAPI()
	api.messages["c1"] = nil
	submitter := &fakeSubmitter{
		result: &models.ChatResult{Response: "ok", ConversationID: "c99"},
	}
	s := NewSessionService(api, submitter, nil)
	s.SelectConversation(context.Background(), "c1")

	s.SendPrompt(context.Background(), "more")
	waitForRefresh(t, api)

	// An already-active conversation is never silently swapped out.
	assert.Equal(t, "c1", s.Snapshot().ActiveConversationID)
	assert.Equal(t, "c1", submitter.gotActive)
}

func TestSendPromptFailureInjectsErrorMessage(t *testing.T) {
	api := newFakeConversationAPI()
	submitter := &fakeSubmitter{err: errors.New("model unavailable")}
	s := NewSessionService(api, submitter, nil)

	s.SendPrompt(context.Background(), "hello")

	state := s.Snapshot()
	require.Len(t, state.Messages, 2)
	assert.Equal(t, models.RoleHuman, state.Messages[0].Role)
	assert.Equal(t, models.RoleError, state.Messages[1].Role)
	assert.Contains(t, state.Messages[1].Content, "model unavailable")
	assert.Contains(t, state.ChatError, "model unavailable")
	assert.False(t, state.Loading)
}

func TestSendPromptBlankIsNoOp(t *testing.T) {
	submitter := &fakeSubmitter{}
	s := NewSessionService(newFakeConversationAPI(), submitter, nil)

	s.SendPrompt(context.Background(), "   ")
	assert.Zero(t, submitter.calls)
	assert.Empty(t, s.Snapshot().Messages)
}

// Switching away mid-exchange cancels the outstanding poll and drops its
// outcome instead of corrupting the new transcript.
func TestSendPromptSupersededBySwitchIsDropped(t *testing.T) {
	api := newFakeConversationAPI()
	api.messages["c2"] = []models.Message{models.NewMessage(models.RoleAI, "old thread")}
	submitter := &fakeSubmitter{
		err:   errors.New("should be discarded"),
		block: make(chan struct{}),
	}
	s := NewSessionService(api, submitter, nil)

	done := make(chan struct{})
	go func() {
		s.SendPrompt(context.Background(), "slow question")
		close(done)
	}()

	// Wait until the exchange is in flight, then switch conversations.
	require.Eventually(t, func() bool { return submitter.calls > 0 }, time.Second, 5*time.Millisecond)
	s.SelectConversation(context.Background(), "c2")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled exchange never settled")
	}

	state := s.Snapshot()
	assert.Equal(t, "c2", state.ActiveConversationID)
	for _, msg := range state.Messages {
		assert.NotEqual(t, models.RoleError, msg.Role, "abandoned exchange leaked into new transcript")
	}
	assert.False(t, state.Loading)
}

func TestRefreshConversationsSuccess(t *testing.T) {
	api := newFakeConversationAPI()
	api.conversations = []models.Conversation{{ID: "c1"}, {ID: "c2"}}
	s := NewSessionService(api, &fakeSubmitter{}, nil)

	s.RefreshConversations(context.Background())

	state := s.Snapshot()
	assert.Len(t, state.Conversations, 2)
	assert.Empty(t, state.ConversationsError)
	assert.False(t, state.ConversationsLoading)
}

func TestRefreshConversationsFailure(t *testing.T) {
	api := newFakeConversationAPI()
	api.listErr = errors.New("upstream down")
	s := NewSessionService(api, &fakeSubmitter{}, nil)

	s.RefreshConversations(context.Background())

	state := s.Snapshot()
	assert.Empty(t, state.Conversations)
	assert.Contains(t, state.ConversationsError, "upstream down")
	assert.False(t, state.ConversationsLoading)
}

func TestSessionPublishesEvents(t *testing.T) {
	api := newFakeConversationAPI()
	bus := events.NewBus()

	var mu sync.Mutex
	var kinds []events.Kind
	bus.Subscribe(func(evt events.Event) {
		mu.Lock()
		kinds = append(kinds, evt.Kind)
		mu.Unlock()
	})

	s := NewSessionService(api, &fakeSubmitter{}, bus)
	s.SelectConversation(context.Background(), "c1")
	s.NewConversation()

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, kinds, events.KindMessagesUpdated)
	assert.Contains(t, kinds, events.KindSessionReset)
}
