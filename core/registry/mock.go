package registry

import (
	"sync"

	"github.com/aidline/aidline/core/model"
)

// MockConn is an in-memory Conn used in tests. It records every payload it
// receives, keyed by event name.
type MockConn struct {
	ConnID   string
	User     model.Identity
	FailSend bool

	mu       sync.Mutex
	received map[string][]any
}

// NewMockConn creates a MockConn for the given user and role.
func NewMockConn(connID, userID string, role model.Role) *MockConn {
	return &MockConn{
		ConnID:   connID,
		User:     model.Identity{UserID: userID, Role: role},
		received: make(map[string][]any),
	}
}

func (m *MockConn) ID() string               { return m.ConnID }
func (m *MockConn) Identity() model.Identity { return m.User }

// Send records the event, or fails if FailSend is set.
func (m *MockConn) Send(event string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSend {
		return errSendFailed
	}
	m.received[event] = append(m.received[event], payload)
	return nil
}

// Received returns the payloads recorded for an event.
func (m *MockConn) Received(event string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.received[event]))
	copy(out, m.received[event])
	return out
}

type sendError string

func (e sendError) Error() string { return string(e) }

const errSendFailed = sendError("send failed")
