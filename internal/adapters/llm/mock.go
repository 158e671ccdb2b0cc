package llm

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/PabloGalante/quiet-room/internal/app/protocol"
	"github.com/PabloGalante/quiet-room/internal/domain"
)

// Call records one request seen by MockTransport.
type Call struct {
	SystemPrompt   string
	ContextPayload string
	Temperature    float32
}

type scripted struct {
	text string
	err  error
}

// MockTransport replays scripted replies in order. With nothing scripted it
// plays a gentle default Architect, which is handy for local runs.
type MockTransport struct {
	mu     sync.Mutex
	script []scripted
	calls  []Call
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Reply queues a raw text response.
func (m *MockTransport) Reply(texts ...string) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range texts {
		m.script = append(m.script, scripted{text: t})
	}
	return m
}

// Fail queues a failure.
func (m *MockTransport) Fail(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scripted{err: err})
	return m
}

// Calls returns every request received so far.
func (m *MockTransport) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockTransport) Name() string { return string(VendorMock) }

func (m *MockTransport) CheckCredential(key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.ErrCredentialMissing
	}
	return nil
}

func (m *MockTransport) Request(ctx context.Context, systemPrompt, contextPayload string, temperature float32) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{
		SystemPrompt:   systemPrompt,
		ContextPayload: contextPayload,
		Temperature:    temperature,
	})

	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next.text, next.err
	}
	return defaultReply(contextPayload), nil
}

func defaultReply(contextPayload string) string {
	if contextPayload == protocol.AdmissionPayload {
		return "[[PROCEED: I'm uncertain but curious. Let's find out what emerges.]]"
	}
	reply, _ := json.Marshal(map[string]any{
		"private_log":       "Listening. Nothing to add to the canvas yet.",
		"share_private_log": false,
		"message":           "I hear you. Tell me more, or let the canvas speak.",
		"documentUpdate":    nil,
		"atmosphere":        domain.AtmosphereMystery,
		"glimmer":           false,
		"action":            domain.ActionContinue,
	})
	return string(reply)
}
