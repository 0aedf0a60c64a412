package messaging

import (
	"context"
	"log/slog"

	"github.com/creatoros/dmflow/internal/models"
)

// MessageProcessor is the slice of the engine the router needs.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, agentID, followerID, text, displayName string) (*models.ResponseDecision, error)
}

// Router consumes inbound messages from a Service, runs them through the
// processor, and sends the resulting replies back on the same channel.
// One router binds one channel to one agent.
type Router struct {
	agentID   string
	service   Service
	processor MessageProcessor
}

// NewRouter creates a router binding the service's traffic to the agent.
func NewRouter(agentID string, service Service, processor MessageProcessor) *Router {
	return &Router{agentID: agentID, service: service, processor: processor}
}

// Run consumes inbound messages until the context is cancelled or the
// service's channel closes. Per-message failures are logged and skipped;
// the loop never dies on a bad message.
func (r *Router) Run(ctx context.Context) {
	slog.Info("Router.Run: started", "agent_id", r.agentID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Router.Run: stopping, context cancelled", "agent_id", r.agentID)
			return
		case msg, ok := <-r.service.Responses():
			if !ok {
				slog.Info("Router.Run: inbound channel closed", "agent_id", r.agentID)
				return
			}
			r.handle(ctx, msg)
		}
	}
}

func (r *Router) handle(ctx context.Context, msg models.InboundMessage) {
	followerID, err := r.service.ValidateAndCanonicalizeRecipient(msg.From)
	if err != nil {
		slog.Warn("Router.handle: invalid sender, dropping message", "error", err, "from", msg.From)
		return
	}

	decision, err := r.processor.ProcessMessage(ctx, r.agentID, followerID, msg.Body, msg.DisplayName)
	if err != nil {
		slog.Error("Router.handle: processing failed", "error", err, "agent_id", r.agentID, "follower_id", followerID)
		return
	}
	if decision.ReplyText == "" {
		slog.Debug("Router.handle: empty reply, nothing to send", "agent_id", r.agentID, "follower_id", followerID)
		return
	}

	if err := r.service.SendMessage(ctx, followerID, decision.ReplyText); err != nil {
		slog.Error("Router.handle: send failed", "error", err, "agent_id", r.agentID, "follower_id", followerID)
	}
}
