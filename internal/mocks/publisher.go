package mocks

import (
	"encoding/json"
	"sync"
)

// MockPublisher records published messages instead of producing to Kafka.
type MockPublisher struct {
	mu       sync.Mutex
	Messages []PublishedMessage
	Err      error
}

type PublishedMessage struct {
	Topic string
	Key   string
	Value json.RawMessage
}

func (m *MockPublisher) PublishJSON(topic, key string, v any) error {
	if m.Err != nil {
		return m.Err
	}

	value, err := json.Marshal(v)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Messages = append(m.Messages, PublishedMessage{Topic: topic, Key: key, Value: value})
	return nil
}

func (m *MockPublisher) Published() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]PublishedMessage(nil), m.Messages...)
}
