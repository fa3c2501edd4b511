package stream

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockCall records a method call for assertion
type MockCall struct {
	Method string
	Args   []interface{}
}

// MockStreamClient is a mock implementation of StreamClientInterface for testing.
// It allows configuring responses per method and tracks all calls for assertions.
type MockStreamClient struct {
	mu sync.Mutex

	// Call tracking
	Calls []MockCall

	// Configurable function overrides - set these to customize behavior
	CreateUserFunc                func(userID, username string) error
	CreateTokenFunc               func(userID string, expiration time.Time) (string, error)
	AddTweetActivityFunc          func(activity *TweetActivity) error
	RemoveTweetActivityFunc       func(userID, tweetID string) error
	FollowUserFunc                func(userID, targetUserID string) error
	UnfollowUserFunc              func(userID, targetUserID string) error
	EnsureConversationChannelFunc func(conversationID, creatorID string, memberIDs []string) error
	TriggerFunc                   func(conversationID, eventType, userID string, data map[string]interface{}) error
	DeleteConversationChannelFunc func(conversationID string) error

	// Default responses for simple cases
	DefaultError error
}

var _ StreamClientInterface = (*MockStreamClient)(nil)

// NewMockStreamClient creates a new mock client with sensible defaults
func NewMockStreamClient() *MockStreamClient {
	return &MockStreamClient{
		Calls: make([]MockCall, 0),
	}
}

func (m *MockStreamClient) recordCall(method string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
}

// GetCalls returns all recorded calls (thread-safe)
func (m *MockStreamClient) GetCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// GetCallsForMethod returns calls for a specific method
func (m *MockStreamClient) GetCallsForMethod(method string) []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []MockCall
	for _, call := range m.Calls {
		if call.Method == method {
			result = append(result, call)
		}
	}
	return result
}

// Reset clears all recorded calls
func (m *MockStreamClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = make([]MockCall, 0)
}

// AssertCalled checks if a method was called at least once
func (m *MockStreamClient) AssertCalled(method string) bool {
	return len(m.GetCallsForMethod(method)) > 0
}

// AssertNotCalled checks if a method was never called
func (m *MockStreamClient) AssertNotCalled(method string) bool {
	return len(m.GetCallsForMethod(method)) == 0
}

// AssertCallCount checks if a method was called exactly n times
func (m *MockStreamClient) AssertCallCount(method string, count int) bool {
	return len(m.GetCallsForMethod(method)) == count
}

// ============================================================================
// User operations
// ============================================================================

func (m *MockStreamClient) CreateUser(_ context.Context, userID, username string) error {
	m.recordCall("CreateUser", userID, username)
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(userID, username)
	}
	return m.DefaultError
}

func (m *MockStreamClient) CreateToken(userID string, expiration time.Time) (string, error) {
	m.recordCall("CreateToken", userID, expiration)
	if m.CreateTokenFunc != nil {
		return m.CreateTokenFunc(userID, expiration)
	}
	if m.DefaultError != nil {
		return "", m.DefaultError
	}
	return fmt.Sprintf("mock_token_%s_%d", userID, expiration.Unix()), nil
}

// ============================================================================
// Feed operations
// ============================================================================

func (m *MockStreamClient) AddTweetActivity(_ context.Context, activity *TweetActivity) error {
	m.recordCall("AddTweetActivity", activity)
	if m.AddTweetActivityFunc != nil {
		return m.AddTweetActivityFunc(activity)
	}
	if activity != nil && activity.ID == "" {
		activity.ID = fmt.Sprintf("mock_activity_%s", activity.TweetID)
	}
	return m.DefaultError
}

func (m *MockStreamClient) RemoveTweetActivity(_ context.Context, userID, tweetID string) error {
	m.recordCall("RemoveTweetActivity", userID, tweetID)
	if m.RemoveTweetActivityFunc != nil {
		return m.RemoveTweetActivityFunc(userID, tweetID)
	}
	return m.DefaultError
}

func (m *MockStreamClient) FollowUser(_ context.Context, userID, targetUserID string) error {
	m.recordCall("FollowUser", userID, targetUserID)
	if m.FollowUserFunc != nil {
		return m.FollowUserFunc(userID, targetUserID)
	}
	return m.DefaultError
}

func (m *MockStreamClient) UnfollowUser(_ context.Context, userID, targetUserID string) error {
	m.recordCall("UnfollowUser", userID, targetUserID)
	if m.UnfollowUserFunc != nil {
		return m.UnfollowUserFunc(userID, targetUserID)
	}
	return m.DefaultError
}

// ============================================================================
// Conversation pub/sub
// ============================================================================

func (m *MockStreamClient) EnsureConversationChannel(_ context.Context, conversationID, creatorID string, memberIDs []string) error {
	m.recordCall("EnsureConversationChannel", conversationID, creatorID, memberIDs)
	if m.EnsureConversationChannelFunc != nil {
		return m.EnsureConversationChannelFunc(conversationID, creatorID, memberIDs)
	}
	return m.DefaultError
}

func (m *MockStreamClient) Trigger(_ context.Context, conversationID, eventType, userID string, data map[string]interface{}) error {
	m.recordCall("Trigger", conversationID, eventType, userID, data)
	if m.TriggerFunc != nil {
		return m.TriggerFunc(conversationID, eventType, userID, data)
	}
	return m.DefaultError
}

func (m *MockStreamClient) DeleteConversationChannel(_ context.Context, conversationID string) error {
	m.recordCall("DeleteConversationChannel", conversationID)
	if m.DeleteConversationChannelFunc != nil {
		return m.DeleteConversationChannelFunc(conversationID)
	}
	return m.DefaultError
}
