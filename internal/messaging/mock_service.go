package messaging

import (
	"context"
	"sync"

	"github.com/creatoros/dmflow/internal/models"
)

// MockService is an in-memory Service for tests. Outbound messages are
// recorded; inbound messages are injected with Inject.
type MockService struct {
	mu        sync.Mutex
	sent      []SentMessage
	responses chan models.InboundMessage
	stopOnce  sync.Once
}

// SentMessage records one outbound delivery.
type SentMessage struct {
	To   string
	Body string
}

// NewMockService creates an empty MockService.
func NewMockService() *MockService {
	return &MockService{
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
	}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (m *MockService) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error {
	m.stopOnce.Do(func() { close(m.responses) })
	return nil
}

func (m *MockService) Responses() <-chan models.InboundMessage {
	return m.responses
}

// Inject feeds an inbound message into the channel, as a webhook would.
func (m *MockService) Inject(msg models.InboundMessage) {
	m.responses <- msg
}

// Sent returns a copy of the outbound messages recorded so far.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}
