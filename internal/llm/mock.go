package llm

import (
	"context"
	"sync"
)

// MockClient is a scriptable Client for tests. Responses are returned in
// order; the last response repeats once the queue is exhausted.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     []MockCall
	model     string
}

// MockCall records one completion request.
type MockCall struct {
	SystemPrompt string
	UserPrompt   string
}

// NewMockClient creates a mock client returning the given responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses, model: "mock"}
}

// SetError makes every completion fail with err.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns all recorded requests.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Complete sends a prompt and returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{SystemPrompt: systemPrompt, UserPrompt: userPrompt})

	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", ErrEmptyCompletion
	}

	resp := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return resp, nil
}

// Model returns the mock model name.
func (m *MockClient) Model() string {
	return m.model
}

// SetModel changes the mock model name.
func (m *MockClient) SetModel(model string) {
	m.model = model
}
