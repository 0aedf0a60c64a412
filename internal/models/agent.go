package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
)

// AgentTone enumerates the supported personality tones.
type AgentTone string

const (
	ToneFriendly     AgentTone = "friendly"
	ToneProfessional AgentTone = "professional"
	TonePlayful      AgentTone = "playful"
)

// EmojiPolicy enumerates how freely an agent may use emojis.
type EmojiPolicy string

const (
	EmojiPolicyAllow  EmojiPolicy = "allow"
	EmojiPolicySparse EmojiPolicy = "sparse"
	EmojiPolicyNone   EmojiPolicy = "none"
)

// Defaults applied by AgentConfig.Validate.
const (
	DefaultLanguage            = "es"
	DefaultConfidenceThreshold = 0.6
	DefaultMaxReplySentences   = 2
)

// Agent configuration errors.
var (
	ErrEmptyAgentConfigID = errors.New("agent config requires an agent id")
	ErrInvalidTone        = errors.New("invalid agent tone")
	ErrInvalidEmojiPolicy = errors.New("invalid emoji policy")
	ErrInvalidThreshold   = errors.New("confidence threshold must be within (0,1]")
)

// AgentConfig is the explicit, validated personality configuration of one
// sales agent. Every recognized option is enumerated here; there are no
// dynamic dictionary keys read at runtime.
type AgentConfig struct {
	AgentID     string `json:"agent_id"`
	CreatorName string `json:"creator_name,omitempty"`

	Language    string      `json:"language,omitempty"` // default language for replies
	Tone        AgentTone   `json:"tone,omitempty"`
	EmojiPolicy EmojiPolicy `json:"emoji_policy,omitempty"`

	// Persona is the free-text persona description injected into prompts.
	Persona string `json:"persona,omitempty"`

	// VocabularyOverrides replaces default sales vocabulary with on-brand
	// wording, e.g. {"curso": "programa"}.
	VocabularyOverrides map[string]string `json:"vocabulary_overrides,omitempty"`

	// EscalationKeywords extends the built-in human-handoff trigger words.
	EscalationKeywords []string `json:"escalation_keywords,omitempty"`

	// Paused suppresses all replies; processing yields an intentional no-op.
	Paused bool `json:"paused,omitempty"`

	// ConfidenceThreshold gates escalation/support replies in the confidence check.
	ConfidenceThreshold float64 `json:"confidence_threshold,omitempty"`

	// MaxReplySentences bounds post-processed reply length.
	MaxReplySentences int `json:"max_reply_sentences,omitempty"`
}

// Validate normalizes and validates the configuration, applying defaults.
// It is called once at load time; the rest of the pipeline can rely on a
// valid config.
func (c *AgentConfig) Validate() error {
	if strings.TrimSpace(c.AgentID) == "" {
		return ErrEmptyAgentConfigID
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))

	if c.Tone == "" {
		c.Tone = ToneFriendly
	}
	switch c.Tone {
	case ToneFriendly, ToneProfessional, TonePlayful:
	default:
		return ErrInvalidTone
	}

	if c.EmojiPolicy == "" {
		c.EmojiPolicy = EmojiPolicySparse
	}
	switch c.EmojiPolicy {
	case EmojiPolicyAllow, EmojiPolicySparse, EmojiPolicyNone:
	default:
		return ErrInvalidEmojiPolicy
	}

	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return ErrInvalidThreshold
	}

	if c.MaxReplySentences <= 0 {
		c.MaxReplySentences = DefaultMaxReplySentences
	}
	return nil
}

// PersonalityHash returns a stable hash of every field that influences
// generated text. It is part of the response cache key so changing an
// agent's tone or persona invalidates stale cached answers.
func (c AgentConfig) PersonalityHash() string {
	var b strings.Builder
	b.WriteString(string(c.Tone))
	b.WriteByte('|')
	b.WriteString(string(c.EmojiPolicy))
	b.WriteByte('|')
	b.WriteString(c.Persona)
	b.WriteByte('|')
	b.WriteString(c.Language)
	b.WriteByte('|')

	// Map iteration order is not stable; sort keys for a canonical encoding.
	keys := make([]string, 0, len(c.VocabularyOverrides))
	for k := range c.VocabularyOverrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(c.VocabularyOverrides[k])
		b.WriteByte(';')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:8])
}
