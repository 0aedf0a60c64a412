// Package engine orchestrates the per-message decision pipeline: classify,
// load follower state, score, generate a reply, record naturalness, save,
// and fire follow-up side effects.
//
// Messages from the same (agent, follower) are serialized through a keyed
// mutex; different followers process fully in parallel. Store errors fail
// the single message; generation errors never do.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/creatoros/dmflow/internal/agents"
	"github.com/creatoros/dmflow/internal/cache"
	"github.com/creatoros/dmflow/internal/catalog"
	"github.com/creatoros/dmflow/internal/events"
	"github.com/creatoros/dmflow/internal/genai"
	"github.com/creatoros/dmflow/internal/intent"
	"github.com/creatoros/dmflow/internal/metrics"
	"github.com/creatoros/dmflow/internal/models"
	"github.com/creatoros/dmflow/internal/naturalness"
	"github.com/creatoros/dmflow/internal/notify"
	"github.com/creatoros/dmflow/internal/nurture"
	"github.com/creatoros/dmflow/internal/ratelimit"
	"github.com/creatoros/dmflow/internal/scoring"
	"github.com/creatoros/dmflow/internal/store"
)

// Deps bundles the collaborators the engine needs.
type Deps struct {
	Store    store.FollowerStore
	Agents   *agents.Registry
	GenAI    genai.ClientInterface
	Cache    cache.Cache
	Limiter  ratelimit.Limiter
	Catalog  *catalog.Catalog
	Nurture  *nurture.Trigger
	Notifier notify.Notifier
	Events   events.Publisher
}

// Engine is the conversation decision pipeline.
type Engine struct {
	store    store.FollowerStore
	agents   *agents.Registry
	genai    genai.ClientInterface
	cache    cache.Cache
	limiter  ratelimit.Limiter
	catalog  *catalog.Catalog
	nurture  *nurture.Trigger
	notifier notify.Notifier
	events   events.Publisher
	locks    *keyedMutex
}

// New creates an engine. Nil optional collaborators (notifier, events,
// nurture) degrade to no-ops.
func New(deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if deps.Agents == nil {
		return nil, fmt.Errorf("engine: agent registry is required")
	}
	if deps.GenAI == nil {
		return nil, fmt.Errorf("engine: genai client is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil, nil)
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache(0)
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewFixedWindowLimiter(0, 0)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NoopNotifier{}
	}
	if deps.Events == nil {
		deps.Events = events.NoopPublisher{}
	}
	return &Engine{
		store:    deps.Store,
		agents:   deps.Agents,
		genai:    deps.GenAI,
		cache:    deps.Cache,
		limiter:  deps.Limiter,
		catalog:  deps.Catalog,
		nurture:  deps.Nurture,
		notifier: deps.Notifier,
		events:   deps.Events,
		locks:    newKeyedMutex(),
	}, nil
}

// ProcessMessage runs the full pipeline for one inbound message and returns
// the decision. An empty ReplyText means "send nothing" and is not an error.
// Store failures are returned; generation failures are absorbed into
// fallback replies.
func (e *Engine) ProcessMessage(ctx context.Context, agentID, followerID, text, displayName string) (*models.ResponseDecision, error) {
	if agentID == "" {
		return nil, models.ErrEmptyAgentID
	}
	if followerID == "" {
		return nil, models.ErrEmptyFollowerID
	}

	cfg, err := e.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		slog.Debug("Engine.ProcessMessage: agent paused, no-op", "agent_id", agentID, "follower_id", followerID)
		return &models.ResponseDecision{}, nil
	}

	// Serialize the load-mutate-save cycle per conversation.
	unlock := e.locks.Lock(ratelimit.FollowerKey(agentID, followerID))
	defer unlock()

	record, err := e.store.GetOrCreateFollower(ctx, agentID, followerID, displayName)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to load follower: %w", err)
	}

	if decision := e.checkRate(cfg, record, agentID, followerID); decision != nil {
		return decision, nil
	}

	cls := intent.Classify(text)
	slog.Debug("Engine.ProcessMessage: classified", "agent_id", agentID, "follower_id", followerID,
		"intent", cls.Intent, "confidence", cls.Confidence)

	e.updateContact(record, text, displayName)

	asksToPay := scoring.IsReadyToPay(record, text)
	record.AppendTurn("user", text)
	scoreResult := scoring.ApplyMessage(record, cls.Intent, text)

	product := e.catalog.FindByKeyword(text)
	if product == nil && len(record.ProductsDiscussed) > 0 {
		product = e.catalog.FindByID(record.ProductsDiscussed[len(record.ProductsDiscussed)-1])
	}
	if product == nil && cls.Intent != models.IntentGreeting && cls.Intent != models.IntentOther {
		product = e.catalog.PrimaryProduct()
	}
	if product != nil {
		record.RecordProductDiscussed(product.ID)
	}

	cons := naturalness.ConstraintsFor(record, asksToPay)
	gen := e.generateReply(ctx, cfg, record, cls, text, cons, product)

	naturalness.RecordReply(record, gen.Text, gen.LinkSent)
	record.AppendTurn("assistant", gen.Text)
	record.RotationIndex++

	if err := e.store.SaveFollower(ctx, record); err != nil {
		return nil, fmt.Errorf("engine: failed to save follower: %w", err)
	}

	decision := &models.ResponseDecision{
		ReplyText:  gen.Text,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Escalate:   e.shouldEscalate(cfg, cls.Intent, text),
		FromCache:  gen.FromCache,
	}
	if product != nil {
		decision.ProductRef = product.ID
	}

	metrics.MessagesProcessed.WithLabelValues(agentID, string(cls.Intent)).Inc()
	if gen.FromCache {
		metrics.CacheHits.WithLabelValues(agentID).Inc()
	}
	if gen.Fallback {
		metrics.GenerationFallbacks.WithLabelValues(agentID).Inc()
	}
	if scoreResult.BecameLead {
		metrics.LeadsQualified.WithLabelValues(agentID).Inc()
	}
	if decision.Escalate {
		metrics.Escalations.WithLabelValues(agentID).Inc()
	}

	e.fireSideEffects(record.Clone(), cls, scoreResult, decision, text)
	return decision, nil
}

// checkRate consults the limiter; denial yields a polite throttle reply.
func (e *Engine) checkRate(cfg models.AgentConfig, record *models.FollowerRecord, agentID, followerID string) *models.ResponseDecision {
	d := e.limiter.Check(ratelimit.FollowerKey(agentID, followerID))
	if d.Allowed {
		return nil
	}
	slog.Info("Engine.ProcessMessage: rate limited", "agent_id", agentID, "follower_id", followerID, "reason", d.Reason)
	language := record.PreferredLanguage
	if language == "" {
		language = cfg.Language
	}
	return &models.ResponseDecision{
		ReplyText: throttleReply(language),
		Intent:    models.IntentOther,
		Metadata:  map[string]string{"throttled": "true"},
	}
}

// updateContact refreshes identity and contact bookkeeping on the record.
func (e *Engine) updateContact(record *models.FollowerRecord, text, displayName string) {
	now := time.Now().UTC()
	record.LastContact = now
	record.TotalMessages++
	if displayName != "" && record.DisplayName == "" {
		record.DisplayName = displayName
	}
	if record.PreferredLanguage == "" {
		record.PreferredLanguage = detectLanguage(text)
	}
}

// shouldEscalate combines the classifier with the agent's extra keywords.
func (e *Engine) shouldEscalate(cfg models.AgentConfig, in models.Intent, text string) bool {
	if in == models.IntentEscalation {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range cfg.EscalationKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// fireSideEffects runs the fire-and-forget tail: nurturing, events, and
// escalation notification. Failures are logged, never propagated.
func (e *Engine) fireSideEffects(record *models.FollowerRecord, cls models.ClassificationResult,
	scoreResult scoring.Result, decision *models.ResponseDecision, text string) {

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if e.nurture != nil {
			if err := e.nurture.Fire(ctx, record, cls.Intent); err != nil {
				slog.Warn("Engine: nurture trigger failed", "error", err, "agent_id", record.AgentID, "follower_id", record.FollowerID)
			}
		}

		if scoreResult.BecameLead {
			e.publish(ctx, events.NewEvent(events.TypeLeadQualified, record.AgentID, record.FollowerID, map[string]string{
				"score":  strconv.FormatFloat(scoreResult.Score, 'f', 2, 64),
				"intent": string(cls.Intent),
			}))
		}
		if scoreResult.StatusChanged {
			e.publish(ctx, events.NewEvent(events.TypeStatusChanged, record.AgentID, record.FollowerID, map[string]string{
				"status": string(scoreResult.Status),
			}))
		}

		if decision.Escalate {
			e.publish(ctx, events.NewEvent(events.TypeEscalation, record.AgentID, record.FollowerID, nil))
			err := e.notifier.NotifyEscalation(ctx, notify.Escalation{
				AgentID:     record.AgentID,
				FollowerID:  record.FollowerID,
				DisplayName: record.DisplayName,
				Message:     text,
				Reason:      string(cls.Intent),
			})
			if err != nil {
				slog.Warn("Engine: escalation notification failed", "error", err, "agent_id", record.AgentID, "follower_id", record.FollowerID)
			}
		}
	}()
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if err := e.events.Publish(ctx, event); err != nil {
		slog.Warn("Engine: event publish failed", "error", err, "type", event.Type)
	}
}
