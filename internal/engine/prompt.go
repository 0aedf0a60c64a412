package engine

import (
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/creatoros/dmflow/internal/catalog"
	"github.com/creatoros/dmflow/internal/models"
	"github.com/creatoros/dmflow/internal/naturalness"
)

// PaymentLinkPlaceholder is the token the model is told to emit where the
// payment link belongs; post-processing substitutes the real URL.
const PaymentLinkPlaceholder = "{payment_link}"

// historyWindow bounds how many stored turns go into the prompt.
const historyWindow = 10

// objectionSnippets coach the model on handling each objection type.
var objectionSnippets = map[models.Intent]string{
	models.IntentObjectionPrice:       "The follower thinks it is expensive. Acknowledge the concern, reframe around value and outcomes, mention the guarantee if one exists. Never invent discounts.",
	models.IntentObjectionTime:        "The follower lacks time. Emphasize flexibility and self-paced access. Do not pressure.",
	models.IntentObjectionDoubt:       "The follower is skeptical. Be transparent, point to concrete facts from the product info, offer proof without overclaiming.",
	models.IntentObjectionLater:       "The follower wants to decide later. Respect that, keep the door open, give one light reason not to wait.",
	models.IntentObjectionDoesItWork:  "The follower asks for proof it works. Share concrete facts or results from the product info. This person is interested; be specific.",
	models.IntentObjectionNotForMe:    "The follower doubts it fits them. Ask one clarifying question about their situation before arguing fit.",
	models.IntentObjectionTooComplex:  "The follower fears it is too complex. Stress beginner-friendliness and support included.",
	models.IntentObjectionAlreadyHave: "The follower already has an alternative. Do not bash it; ask what is missing from it and differentiate honestly.",
}

// buildMessages assembles the full prompt for one generation call.
func buildMessages(cfg models.AgentConfig, record *models.FollowerRecord, cat *catalog.Catalog,
	product *catalog.Product, in models.Intent, message string, cons naturalness.Constraints) []openai.ChatCompletionMessageParamUnion {

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(buildSystemPrompt(cfg, record, cat, product, in, message, cons)),
	}

	turns := record.Turns
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}
	for _, turn := range turns {
		if turn.Role == "assistant" {
			messages = append(messages, openai.AssistantMessage(turn.Content))
		} else {
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	// The inbound message is already the last stored user turn; append it
	// only if history was empty or truncated away.
	if len(turns) == 0 || turns[len(turns)-1].Role != "user" || turns[len(turns)-1].Content != message {
		messages = append(messages, openai.UserMessage(message))
	}
	return messages
}

func buildSystemPrompt(cfg models.AgentConfig, record *models.FollowerRecord, cat *catalog.Catalog,
	product *catalog.Product, in models.Intent, message string, cons naturalness.Constraints) string {

	var b strings.Builder

	b.WriteString(fmt.Sprintf("You are the sales assistant of %s, answering direct messages on their behalf. ", creatorName(cfg)))
	b.WriteString(fmt.Sprintf("Write in %s. Tone: %s. ", languageName(cfg.Language), cfg.Tone))
	if cfg.Persona != "" {
		b.WriteString("Persona: ")
		b.WriteString(cfg.Persona)
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf("Keep replies to at most %d sentences, conversational DM style.\n\n", cfg.MaxReplySentences))

	switch cfg.EmojiPolicy {
	case models.EmojiPolicyNone:
		b.WriteString("Do not use emojis.\n")
	case models.EmojiPolicySparse:
		b.WriteString("Use at most one emoji, and only when it fits.\n")
	}
	if len(cons.ForbiddenEmojis) > 0 {
		b.WriteString("Do not use these emojis (used recently): ")
		b.WriteString(strings.Join(cons.ForbiddenEmojis, " "))
		b.WriteString("\n")
	}
	if cons.AllowName && record.DisplayName != "" {
		b.WriteString(fmt.Sprintf("You may address the follower by name (%s) once.\n", record.DisplayName))
	} else {
		b.WriteString("Do not use the follower's name in this reply.\n")
	}
	if cons.LastGreeting != "" {
		b.WriteString(fmt.Sprintf("Do not open with %q; you greeted that way last time.\n", cons.LastGreeting))
	}
	if cons.IncludePaymentLink {
		b.WriteString(fmt.Sprintf("If the follower is ready to buy, include the token %s exactly where the payment link belongs.\n", PaymentLinkPlaceholder))
	} else {
		b.WriteString("Do not include any payment link this turn; mention the product without it.\n")
	}

	if product != nil {
		b.WriteString("\nProduct info (the only facts you may state):\n")
		b.WriteString(fmt.Sprintf("- Name: %s\n", product.Name))
		if product.Price != "" {
			b.WriteString(fmt.Sprintf("- Price: %s\n", product.Price))
		}
		for _, f := range product.Facts {
			b.WriteString(fmt.Sprintf("- %s\n", f))
		}
		for _, inc := range product.Inclusions {
			b.WriteString(fmt.Sprintf("- Includes: %s\n", inc))
		}
		if product.Guarantee != "" {
			b.WriteString(fmt.Sprintf("- Guarantee: %s\n", product.Guarantee))
		}
		if product.AccessDuration != "" {
			b.WriteString(fmt.Sprintf("- Access: %s\n", product.AccessDuration))
		}
	}

	for _, entry := range cat.KnowledgeFor(message) {
		b.WriteString(fmt.Sprintf("\nKnown answer about %s: %s\n", entry.Topic, entry.Answer))
	}

	if snippet, ok := objectionSnippets[in]; ok {
		b.WriteString("\nObjection handling: ")
		b.WriteString(snippet)
		b.WriteString("\n")
		if len(record.Naturalness.ArgumentsUsed) > 0 {
			b.WriteString("Arguments already used with this follower (do not repeat them): ")
			b.WriteString(strings.Join(record.Naturalness.ArgumentsUsed, "; "))
			b.WriteString("\n")
		}
	}

	if len(cfg.VocabularyOverrides) > 0 {
		b.WriteString("\nVocabulary: ")
		for from, to := range cfg.VocabularyOverrides {
			b.WriteString(fmt.Sprintf("say %q instead of %q. ", to, from))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nNever claim to be a human if asked directly; be honest and redirect to how you can help. Never invent prices, discounts or links.")
	return b.String()
}

func creatorName(cfg models.AgentConfig) string {
	if cfg.CreatorName != "" {
		return cfg.CreatorName
	}
	return "the creator"
}

func languageName(code string) string {
	switch code {
	case "en":
		return "English"
	case "pt":
		return "Portuguese"
	default:
		return "Spanish"
	}
}
