package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/creatoros/dmflow/internal/cache"
	"github.com/creatoros/dmflow/internal/catalog"
	"github.com/creatoros/dmflow/internal/models"
	"github.com/creatoros/dmflow/internal/naturalness"
)

// generationResult carries the final reply and how it was produced.
type generationResult struct {
	Text      string
	FromCache bool
	LinkSent  bool
	Fallback  bool
}

// generateReply runs the per-message pipeline:
// cache lookup -> generate -> guardrail -> confidence check -> post-process
// -> cache store. It never returns an error; every failure path degrades to
// a templated reply.
func (e *Engine) generateReply(ctx context.Context, cfg models.AgentConfig, record *models.FollowerRecord,
	cls models.ClassificationResult, message string, cons naturalness.Constraints, product *catalog.Product) generationResult {

	language := record.PreferredLanguage
	if language == "" {
		language = cfg.Language
	}

	var key string
	if cls.Intent.CacheSafe() {
		// Cache entries replay across followers; the reply must stay impersonal.
		cons.AllowName = false
		key = cache.Key(message, cfg.AgentID, string(cls.Intent), language, cfg.PersonalityHash())
		if cached, ok := e.cache.Get(key); ok && !naturalness.ContainsAnyEmoji(cached, cons.ForbiddenEmojis) {
			slog.Debug("Engine.generateReply: cache hit", "agent_id", cfg.AgentID, "intent", cls.Intent)
			return generationResult{
				Text:      cached,
				FromCache: true,
				LinkSent:  strings.Contains(cached, "http"),
			}
		}
	}

	text, generated := e.callModel(ctx, cfg, record, cls.Intent, message, cons, product)
	if !generated {
		// Templated fallback; skip guardrail and caching, it is already safe.
		return generationResult{
			Text:     postprocess(fallbackText(cls.Intent, language, record, cons), cfg, cons, product),
			Fallback: true,
		}
	}

	text = applyGuardrail(text, e.catalog, product)

	if needsConfidenceCheck(cls.Intent) {
		if score := replyConfidence(text, message, cls.Intent, cfg, product); score < cfg.ConfidenceThreshold {
			slog.Debug("Engine.generateReply: reply relevance below threshold, substituting",
				"intent", cls.Intent, "score", score, "threshold", cfg.ConfidenceThreshold)
			text = lowConfidenceReply(language)
		}
	}

	text = postprocess(text, cfg, cons, product)

	if language != cfg.Language {
		if translated, err := e.genai.Translate(ctx, text, languageName(language)); err == nil && translated != "" {
			text = collapseWhitespace(translated)
		} else if err != nil {
			slog.Warn("Engine.generateReply: translation failed, keeping original", "error", err, "target", language)
		}
	}

	// Replies that name the follower or carry a link are follower-specific
	// and must not be replayed to anyone else.
	if key != "" && !strings.Contains(text, "http") && !naturalness.MentionsName(text, record.DisplayName) {
		e.cache.Set(key, text)
	}

	return generationResult{
		Text:     text,
		LinkSent: product != nil && product.PaymentLink != "" && strings.Contains(text, product.PaymentLink),
	}
}

// callModel invokes the LLM, failing soft. The second return value reports
// whether generated text was obtained.
func (e *Engine) callModel(ctx context.Context, cfg models.AgentConfig, record *models.FollowerRecord,
	in models.Intent, message string, cons naturalness.Constraints, product *catalog.Product) (string, bool) {

	messages := buildMessages(cfg, record, e.catalog, product, in, message, cons)
	text, err := e.genai.GenerateWithMessages(ctx, messages)
	if err != nil {
		slog.Warn("Engine.callModel: generation failed, using fallback", "error", err, "agent_id", cfg.AgentID, "intent", in)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		slog.Warn("Engine.callModel: empty generation, using fallback", "agent_id", cfg.AgentID, "intent", in)
		return "", false
	}
	return text, true
}

// fallbackText picks the canned reply for a failed generation. Greetings get
// rotated greeting phrases; everything else gets the generic hold-on line.
func fallbackText(in models.Intent, language string, record *models.FollowerRecord, cons naturalness.Constraints) string {
	if in == models.IntentGreeting {
		return greetingReply(language, cons.LastGreeting, record.RotationIndex)
	}
	return fallbackReply(language, record.RotationIndex)
}

// needsConfidenceCheck limits the confidence pass to reply classes where a
// wrong answer is costly.
func needsConfidenceCheck(in models.Intent) bool {
	return in == models.IntentEscalation || in == models.IntentSupport
}

// postprocess truncates to the sentence budget, resolves the payment-link
// placeholder, and collapses whitespace.
func postprocess(text string, cfg models.AgentConfig, cons naturalness.Constraints, product *catalog.Product) string {
	text = truncateSentences(text, cfg.MaxReplySentences)

	if strings.Contains(text, PaymentLinkPlaceholder) {
		link := ""
		if cons.IncludePaymentLink && product != nil {
			link = product.PaymentLink
		}
		text = strings.ReplaceAll(text, PaymentLinkPlaceholder, link)
	}

	return collapseWhitespace(text)
}

// truncateSentences keeps at most n sentences. Terminators are ., !, ? and
// their Spanish closers; trailing fragments without a terminator count as one
// sentence.
func truncateSentences(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	runes := []rune(text)
	for i, r := range runes {
		if r == '.' || r == '!' || r == '?' {
			// Skip ellipses and decimals.
			if r == '.' && i+1 < len(runes) && (runes[i+1] == '.' || isDigit(runes[i+1])) {
				continue
			}
			count++
			if count == n {
				return strings.TrimSpace(string(runes[:i+1]))
			}
		}
	}
	return strings.TrimSpace(text)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
