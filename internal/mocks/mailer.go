package mocks

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

type MockMailer struct {
	mock.Mock

	mu   sync.Mutex
	sent chan string
}

func (m *MockMailer) Send(recipient string, data any, patterns ...string) error {
	args := m.Called(recipient, data, patterns)

	m.mu.Lock()
	if m.sent != nil {
		m.sent <- recipient
	}
	m.mu.Unlock()

	return args.Error(0)
}

// Sent returns a channel receiving the recipient of every mail, so tests can
// wait for mails sent from background tasks.
func (m *MockMailer) Sent() <-chan string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sent == nil {
		m.sent = make(chan string, 16)
	}
	return m.sent
}
