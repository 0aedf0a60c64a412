// Package notify delivers escalation alerts to humans.
//
// Notifications are fire-and-forget: failures are logged and never abort
// message processing.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"
)

// Escalation describes a conversation that needs a human.
type Escalation struct {
	AgentID     string
	FollowerID  string
	DisplayName string
	Message     string
	Reason      string
}

// Notifier receives escalation alerts.
type Notifier interface {
	NotifyEscalation(ctx context.Context, esc Escalation) error
}

// NoopNotifier drops notifications; used when no channel is configured.
type NoopNotifier struct{}

// NotifyEscalation implements Notifier.
func (NoopNotifier) NotifyEscalation(ctx context.Context, esc Escalation) error {
	slog.Debug("NoopNotifier.NotifyEscalation: dropping notification", "agent_id", esc.AgentID, "follower_id", esc.FollowerID)
	return nil
}

// EmailNotifier sends escalation alerts over SMTP.
type EmailNotifier struct {
	dialer *gomail.Dialer
	from   string
	to     string
}

// NewEmailNotifier creates a notifier for the given SMTP server.
func NewEmailNotifier(host string, port int, username, password, from, to string) *EmailNotifier {
	return &EmailNotifier{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
		to:     to,
	}
}

// NotifyEscalation implements Notifier.
func (n *EmailNotifier) NotifyEscalation(ctx context.Context, esc Escalation) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", n.to)
	m.SetHeader("Subject", fmt.Sprintf("Escalation: follower %s (agent %s)", esc.FollowerID, esc.AgentID))
	m.SetBody("text/plain", fmt.Sprintf(
		"A follower asked for a human.\n\nAgent: %s\nFollower: %s (%s)\nReason: %s\n\nLast message:\n%s\n",
		esc.AgentID, esc.FollowerID, esc.DisplayName, esc.Reason, esc.Message))

	if err := n.dialer.DialAndSend(m); err != nil {
		slog.Error("EmailNotifier.NotifyEscalation: send failed", "error", err, "agent_id", esc.AgentID, "follower_id", esc.FollowerID)
		return fmt.Errorf("notify: failed to send escalation email: %w", err)
	}
	slog.Info("EmailNotifier.NotifyEscalation: alert sent", "agent_id", esc.AgentID, "follower_id", esc.FollowerID)
	return nil
}
