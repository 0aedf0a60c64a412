// Package messaging defines the pluggable channel abstraction that delivers
// direct messages between followers and the conversation engine, plus the
// adapters for Twilio and native WhatsApp.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/creatoros/dmflow/internal/models"
)

const (
	// DefaultChannelBufferSize defines the buffer size for the inbound message channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds non-blocking channel emits before a message is dropped.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything that is not a digit from a recipient.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service is a pluggable message delivery channel. Implementations push
// normalized inbound messages onto the Responses channel and deliver outbound
// replies with SendMessage.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Each channel implements its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// Start begins any background processing (event handlers, polling).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the inbound channel.
	Stop() error

	// Responses returns the channel of normalized inbound messages.
	Responses() <-chan models.InboundMessage
}

// canonicalizePhone reduces a recipient to bare digits and validates length.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", errors.New("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", errors.New("invalid phone number: no digits found")
	}
	if len(canonical) < 6 {
		return "", errors.New("invalid phone number: too short")
	}
	return canonical, nil
}
