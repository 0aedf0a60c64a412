// Package nurture schedules delayed follow-up sequences for followers who
// showed interest but did not buy.
//
// The Trigger decides which sequence a processed message warrants and asks
// the Scheduler for it, always cancelling a same-type sequence first so a
// follower never accumulates duplicate timers. The Trigger owns no timers.
package nurture

import (
	"context"
	"log/slog"
	"time"

	"github.com/creatoros/dmflow/internal/models"
)

// SequenceType identifies a follow-up sequence.
type SequenceType string

const (
	// SequenceColdInterest follows up on interest that went quiet.
	SequenceColdInterest SequenceType = "cold_interest"
	// SequencePriceObjection follows up after a price objection.
	SequencePriceObjection SequenceType = "price_objection"
	// SequenceBookingReminder reminds about an unconfirmed booking.
	SequenceBookingReminder SequenceType = "booking_reminder"
)

// Default delays before each sequence fires.
var sequenceDelays = map[SequenceType]time.Duration{
	SequenceColdInterest:    24 * time.Hour,
	SequencePriceObjection:  48 * time.Hour,
	SequenceBookingReminder: 4 * time.Hour,
}

// Context carries follower data the follow-up message will need.
type Context struct {
	DisplayName string
	Language    string
	ProductRef  string
}

// Scheduler is the external timer service the trigger delegates to.
type Scheduler interface {
	Schedule(ctx context.Context, agentID, followerID string, seq SequenceType, delay time.Duration, seqCtx Context) error
	Cancel(ctx context.Context, agentID, followerID string, seq SequenceType) error
}

// Trigger decides whether a processed message warrants a follow-up sequence.
type Trigger struct {
	scheduler Scheduler
}

// NewTrigger creates a trigger bound to a scheduler.
func NewTrigger(scheduler Scheduler) *Trigger {
	return &Trigger{scheduler: scheduler}
}

// SequenceFor maps an intent and customer flag to a sequence type.
// Customers get no nurturing; the empty string means no sequence.
func SequenceFor(in models.Intent, isCustomer bool) SequenceType {
	if isCustomer {
		return ""
	}
	switch in {
	case models.IntentSoftInterest, models.IntentFreeOffer:
		return SequenceColdInterest
	case models.IntentObjectionPrice, models.IntentObjectionLater:
		return SequencePriceObjection
	case models.IntentBooking:
		return SequenceBookingReminder
	default:
		return ""
	}
}

// Fire evaluates the message outcome and (re)schedules the matching
// sequence. Cancel-before-schedule keeps at most one live timer per
// (follower, sequence type).
func (t *Trigger) Fire(ctx context.Context, record *models.FollowerRecord, in models.Intent) error {
	seq := SequenceFor(in, record.IsCustomer)
	if seq == "" {
		return nil
	}
	if err := t.scheduler.Cancel(ctx, record.AgentID, record.FollowerID, seq); err != nil {
		slog.Warn("Trigger.Fire: cancel failed, scheduling anyway", "error", err, "sequence", seq)
	}
	seqCtx := Context{
		DisplayName: record.DisplayName,
		Language:    record.PreferredLanguage,
	}
	if len(record.ProductsDiscussed) > 0 {
		seqCtx.ProductRef = record.ProductsDiscussed[len(record.ProductsDiscussed)-1]
	}
	delay := sequenceDelays[seq]
	if err := t.scheduler.Schedule(ctx, record.AgentID, record.FollowerID, seq, delay, seqCtx); err != nil {
		slog.Error("Trigger.Fire: schedule failed", "error", err, "sequence", seq, "agent_id", record.AgentID, "follower_id", record.FollowerID)
		return err
	}
	slog.Debug("Trigger.Fire: sequence scheduled", "sequence", seq, "delay", delay, "agent_id", record.AgentID, "follower_id", record.FollowerID)
	return nil
}
