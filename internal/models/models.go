// Package models defines the core data structures for dmflow.
//
// It includes intent classification results, follower records with their
// pipeline status machine, naturalness (anti-repetition) state, and the
// response decision returned to channel adapters.
package models

import (
	"errors"
	"time"
)

// Intent is the discrete classification of an inbound message.
type Intent string

const (
	// IntentEscalation indicates the follower explicitly asked for a human.
	IntentEscalation Intent = "escalation"
	// IntentStrongInterest indicates explicit purchase or payment language.
	IntentStrongInterest Intent = "strong_interest"
	// IntentSoftInterest indicates curiosity without a buying commitment.
	IntentSoftInterest Intent = "soft_interest"
	// IntentBooking indicates the follower wants to schedule a call or session.
	IntentBooking Intent = "booking"
	// IntentGreeting is a plain salutation with no other signal.
	IntentGreeting Intent = "greeting"
	// IntentObjectionPrice through IntentObjectionAlreadyHave are resistance signals.
	IntentObjectionPrice       Intent = "objection_price"
	IntentObjectionTime        Intent = "objection_time"
	IntentObjectionDoubt       Intent = "objection_doubt"
	IntentObjectionLater       Intent = "objection_later"
	IntentObjectionDoesItWork  Intent = "objection_does_it_work"
	IntentObjectionNotForMe    Intent = "objection_not_for_me"
	IntentObjectionTooComplex  Intent = "objection_too_complex"
	IntentObjectionAlreadyHave Intent = "objection_already_have"
	// IntentProductQuestion covers price, inclusions, guarantee, payment method, access.
	IntentProductQuestion Intent = "product_question"
	// IntentIdentityQuestion covers "who are you" / "are you a bot" questions.
	IntentIdentityQuestion Intent = "identity_question"
	// IntentFreeOffer indicates a request for free material or samples.
	IntentFreeOffer Intent = "free_offer"
	// IntentThanks, IntentGoodbye and IntentSupport are conversational closers.
	IntentThanks  Intent = "thanks"
	IntentGoodbye Intent = "goodbye"
	IntentSupport Intent = "support"
	// IntentOther is the low-confidence fallback; classification never fails.
	IntentOther Intent = "other"
)

// IsObjection reports whether the intent is one of the resistance signals.
func (i Intent) IsObjection() bool {
	switch i {
	case IntentObjectionPrice, IntentObjectionTime, IntentObjectionDoubt,
		IntentObjectionLater, IntentObjectionDoesItWork, IntentObjectionNotForMe,
		IntentObjectionTooComplex, IntentObjectionAlreadyHave:
		return true
	default:
		return false
	}
}

// CacheSafe reports whether replies for this intent may be served from cache.
// Objections, strong interest, escalation, support and the fallback intent
// always need fresh, context-specific answers.
func (i Intent) CacheSafe() bool {
	if i.IsObjection() {
		return false
	}
	switch i {
	case IntentStrongInterest, IntentEscalation, IntentSupport, IntentOther:
		return false
	default:
		return true
	}
}

// ClassificationResult is the transient output of the intent classifier.
type ClassificationResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// PipelineStatus is the coarse funnel stage of a follower.
// It is partially ordered new < active < hot < customer and never regresses.
type PipelineStatus string

const (
	StatusNew      PipelineStatus = "new"
	StatusActive   PipelineStatus = "active"
	StatusHot      PipelineStatus = "hot"
	StatusCustomer PipelineStatus = "customer"
)

// statusRank encodes the partial order of pipeline statuses.
var statusRank = map[PipelineStatus]int{
	StatusNew:      0,
	StatusActive:   1,
	StatusHot:      2,
	StatusCustomer: 3,
}

// Rank returns the position of the status in the funnel order.
// Unknown values rank as new.
func (s PipelineStatus) Rank() int {
	return statusRank[s]
}

// IsValidPipelineStatus checks if the given pipeline status is supported.
func IsValidPipelineStatus(s PipelineStatus) bool {
	switch s {
	case StatusNew, StatusActive, StatusHot, StatusCustomer:
		return true
	default:
		return false
	}
}

// MaxStatus returns the higher of the two statuses in funnel order.
func MaxStatus(a, b PipelineStatus) PipelineStatus {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Limits for follower record state.
const (
	// MaxConversationTurns bounds the per-follower turn ring buffer (FIFO eviction).
	MaxConversationTurns = 20
	// MaxRememberedEmojis bounds the anti-repetition emoji list (newest kept).
	MaxRememberedEmojis = 3
	// LeadScoreThreshold is the purchase-intent score above which a follower is a lead.
	LeadScoreThreshold = 0.25
	// HotScoreThreshold is the purchase-intent score at which a follower turns hot.
	HotScoreThreshold = 0.60
)

// Error variables shared across packages for better error handling and testability.
var (
	ErrEmptyAgentID     = errors.New("agent id cannot be empty")
	ErrEmptyFollowerID  = errors.New("follower id cannot be empty")
	ErrFollowerNotFound = errors.New("follower not found")
	ErrUnknownAgent     = errors.New("unknown agent")
	ErrInvalidStatus    = errors.New("invalid pipeline status")
	ErrStatusRegression = errors.New("pipeline status cannot move backwards")
	ErrScoreOutOfRange  = errors.New("purchase intent score must be within [0,1]")
)

// ConversationTurn is a single entry in the follower's bounded turn buffer.
type ConversationTurn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NaturalnessState is the per-follower anti-repetition bookkeeping.
type NaturalnessState struct {
	LastEmojis          []string `json:"last_emojis,omitempty"`            // most recent last, at most MaxRememberedEmojis
	LastGreeting        string   `json:"last_greeting,omitempty"`          // opening phrase of the last greeting reply
	MessagesSinceName   int      `json:"messages_since_name"`              // turns since the follower's name was spoken
	PaymentLinksSent    int      `json:"payment_links_sent"`               // total payment links ever sent
	LastPaymentLinkTurn int      `json:"last_payment_link_turn,omitempty"` // TotalMessages value when the last link went out
	ObjectionsHandled   []string `json:"objections_handled,omitempty"`
	ArgumentsUsed       []string `json:"arguments_used,omitempty"`
}

// FollowerRecord is the durable per-(agent, follower) memory record.
// Exactly one record exists per key; it is created lazily on first contact
// and never deleted by this pipeline.
type FollowerRecord struct {
	AgentID     string `json:"agent_id"`
	FollowerID  string `json:"follower_id"`
	DisplayName string `json:"display_name,omitempty"`
	Username    string `json:"username,omitempty"`

	FirstContact  time.Time `json:"first_contact"`
	LastContact   time.Time `json:"last_contact"`
	TotalMessages int       `json:"total_messages"`

	PreferredLanguage string   `json:"preferred_language,omitempty"` // ISO-like code, e.g. "es"
	Interests         []string `json:"interests,omitempty"`
	ProductsDiscussed []string `json:"products_discussed,omitempty"` // insertion order preserved

	PurchaseIntentScore float64        `json:"purchase_intent_score"`
	PipelineStatus      PipelineStatus `json:"pipeline_status"`
	IsLead              bool           `json:"is_lead"`
	IsCustomer          bool           `json:"is_customer"` // set by external payment confirmation only

	Turns       []ConversationTurn `json:"turns,omitempty"`
	Naturalness NaturalnessState   `json:"naturalness"`

	// RotationIndex drives deterministic phrase rotation for greetings and
	// fallbacks; incremented once per processed message.
	RotationIndex int `json:"rotation_index"`
}

// NewFollowerRecord creates a fresh record for first contact.
func NewFollowerRecord(agentID, followerID, displayName string) *FollowerRecord {
	now := time.Now().UTC()
	return &FollowerRecord{
		AgentID:        agentID,
		FollowerID:     followerID,
		DisplayName:    displayName,
		FirstContact:   now,
		LastContact:    now,
		PipelineStatus: StatusNew,
		Naturalness:    NaturalnessState{MessagesSinceName: MaxConversationTurns},
	}
}

// AppendTurn adds a turn to the ring buffer, evicting the oldest beyond the cap.
func (r *FollowerRecord) AppendTurn(role, content string) {
	r.Turns = append(r.Turns, ConversationTurn{Role: role, Content: content, Timestamp: time.Now().UTC()})
	if len(r.Turns) > MaxConversationTurns {
		r.Turns = r.Turns[len(r.Turns)-MaxConversationTurns:]
	}
}

// LastAssistantTurn returns the most recent assistant turn, if any.
func (r *FollowerRecord) LastAssistantTurn() (ConversationTurn, bool) {
	for i := len(r.Turns) - 1; i >= 0; i-- {
		if r.Turns[i].Role == "assistant" {
			return r.Turns[i], true
		}
	}
	return ConversationTurn{}, false
}

// AdvanceStatus moves the pipeline status forward, never backwards.
// Once customer, the status is permanent.
func (r *FollowerRecord) AdvanceStatus(next PipelineStatus) {
	if r.PipelineStatus == StatusCustomer {
		return
	}
	r.PipelineStatus = MaxStatus(r.PipelineStatus, next)
}

// RecordProductDiscussed appends a product id preserving order and uniqueness.
func (r *FollowerRecord) RecordProductDiscussed(productID string) {
	if productID == "" {
		return
	}
	for _, p := range r.ProductsDiscussed {
		if p == productID {
			return
		}
	}
	r.ProductsDiscussed = append(r.ProductsDiscussed, productID)
}

// AddInterest records an interest keyword once.
func (r *FollowerRecord) AddInterest(interest string) {
	if interest == "" {
		return
	}
	for _, v := range r.Interests {
		if v == interest {
			return
		}
	}
	r.Interests = append(r.Interests, interest)
}

// Clone returns a deep copy so stores can hand out isolated records.
func (r *FollowerRecord) Clone() *FollowerRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Interests = append([]string(nil), r.Interests...)
	cp.ProductsDiscussed = append([]string(nil), r.ProductsDiscussed...)
	cp.Turns = append([]ConversationTurn(nil), r.Turns...)
	cp.Naturalness.LastEmojis = append([]string(nil), r.Naturalness.LastEmojis...)
	cp.Naturalness.ObjectionsHandled = append([]string(nil), r.Naturalness.ObjectionsHandled...)
	cp.Naturalness.ArgumentsUsed = append([]string(nil), r.Naturalness.ArgumentsUsed...)
	return &cp
}

// Validate checks record invariants before persistence.
func (r *FollowerRecord) Validate() error {
	if r.AgentID == "" {
		return ErrEmptyAgentID
	}
	if r.FollowerID == "" {
		return ErrEmptyFollowerID
	}
	if r.PurchaseIntentScore < 0.0 || r.PurchaseIntentScore > 1.0 {
		return ErrScoreOutOfRange
	}
	if r.PipelineStatus != "" && !IsValidPipelineStatus(r.PipelineStatus) {
		return ErrInvalidStatus
	}
	return nil
}

// ResponseDecision is the transient outcome of processing one inbound message.
// An empty ReplyText signals "send nothing" (e.g. the agent is paused) and
// must be treated by callers as a no-op, not an error.
type ResponseDecision struct {
	ReplyText  string            `json:"reply_text"`
	Intent     Intent            `json:"intent"`
	Confidence float64           `json:"confidence"`
	ProductRef string            `json:"product_ref,omitempty"`
	Escalate   bool              `json:"escalate"`
	FromCache  bool              `json:"from_cache,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// InboundMessage is a normalized message delivered by a channel adapter.
type InboundMessage struct {
	From        string `json:"from"`
	Body        string `json:"body"`
	DisplayName string `json:"display_name,omitempty"`
	Time        int64  `json:"time"`
}
