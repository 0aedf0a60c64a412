// Package events publishes domain events (new lead, escalation, status
// change) for external analytics consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event types emitted by the engine.
const (
	TypeLeadQualified = "lead.qualified"
	TypeEscalation    = "conversation.escalated"
	TypeStatusChanged = "follower.status_changed"
)

// Event is one domain occurrence.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	AgentID    string            `json:"agent_id"`
	FollowerID string            `json:"follower_id"`
	Payload    map[string]string `json:"payload,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(eventType, agentID, followerID string, payload map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		AgentID:    agentID,
		FollowerID: followerID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events to an external bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopPublisher drops events; used when no broker is configured.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(ctx context.Context, event Event) error {
	slog.Debug("NoopPublisher.Publish: dropping event", "type", event.Type, "agent_id", event.AgentID)
	return nil
}

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// ExchangeName is the topic exchange domain events are published to.
const ExchangeName = "dmflow.events"

// RabbitPublisher publishes events to a RabbitMQ topic exchange.
type RabbitPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitPublisher connects to the broker and declares the exchange.
func NewRabbitPublisher(url string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: failed to declare exchange: %w", err)
	}
	slog.Info("RabbitPublisher connected", "exchange", ExchangeName)
	return &RabbitPublisher{conn: conn, channel: ch}, nil
}

// Publish implements Publisher. The routing key is the event type.
func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to marshal event: %w", err)
	}
	err = p.channel.PublishWithContext(ctx, ExchangeName, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		slog.Error("RabbitPublisher.Publish failed", "error", err, "type", event.Type)
		return fmt.Errorf("events: failed to publish event: %w", err)
	}
	slog.Debug("RabbitPublisher.Publish: event published", "type", event.Type, "id", event.ID)
	return nil
}

// Close implements Publisher.
func (p *RabbitPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
