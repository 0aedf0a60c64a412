package engine

import "strings"

// Fallback phrase tables, selected deterministically by the record's
// rotation index so retries for the same follower vary without a global
// random source.
var fallbackPhrases = map[string][]string{
	"es": {
		"Dame un momento y te respondo bien, ¿va?",
		"Buena pregunta, dejame revisarlo y te cuento enseguida.",
		"Ahora mismo te confirmo ese detalle, un segundo.",
		"Te respondo en un momento con la info exacta.",
	},
	"en": {
		"Give me a moment and I'll get back to you on that.",
		"Good question, let me double-check and tell you right away.",
		"Let me confirm that detail for you, one second.",
		"I'll get back to you in a moment with the exact info.",
	},
}

// lowConfidencePhrases replace escalation/support replies that fail the
// confidence check.
var lowConfidencePhrases = map[string]string{
	"es": "Déjame confirmarlo y te respondo en un momento.",
	"en": "Let me confirm that and get back to you shortly.",
}

// throttlePhrases answer followers the rate limiter paused.
var throttlePhrases = map[string]string{
	"es": "Me están llegando muchos mensajes tuyos, dame un momento y te respondo todo 🙏",
	"en": "You're sending a lot at once, give me a moment and I'll answer everything 🙏",
}

// fallbackReply returns a language-appropriate canned reply for generation
// failures, rotated by index.
func fallbackReply(language string, rotationIndex int) string {
	phrases, ok := fallbackPhrases[language]
	if !ok {
		phrases = fallbackPhrases["es"]
	}
	if rotationIndex < 0 {
		rotationIndex = 0
	}
	return phrases[rotationIndex%len(phrases)]
}

// lowConfidenceReply returns the safe substitution for a reply that failed
// the confidence check.
func lowConfidenceReply(language string) string {
	if p, ok := lowConfidencePhrases[language]; ok {
		return p
	}
	return lowConfidencePhrases["es"]
}

// throttleReply returns the polite rate-limit reply.
func throttleReply(language string) string {
	if p, ok := throttlePhrases[language]; ok {
		return p
	}
	return throttlePhrases["es"]
}

// greetingPhrases rotate greeting responses so consecutive greetings differ.
var greetingPhrases = map[string][]string{
	"es": {
		"¡Hola! Qué gusto verte por aquí, ¿en qué te ayudo?",
		"¡Buenas! Cuéntame, ¿qué te trae por aquí?",
		"¡Hey! Bienvenido, ¿quieres que te cuente sobre lo que tenemos?",
	},
	"en": {
		"Hey! Great to see you here, how can I help?",
		"Hi there! Tell me, what brings you here?",
		"Hello! Welcome, want me to tell you what we offer?",
	},
}

// greetingReply returns a rotated greeting, skipping the opening used last
// time when possible.
func greetingReply(language, lastGreeting string, rotationIndex int) string {
	phrases, ok := greetingPhrases[language]
	if !ok {
		phrases = greetingPhrases["es"]
	}
	if rotationIndex < 0 {
		rotationIndex = 0
	}
	if lastGreeting != "" {
		for i := 0; i < len(phrases); i++ {
			candidate := phrases[(rotationIndex+i)%len(phrases)]
			if !strings.Contains(strings.ToLower(candidate), strings.ToLower(lastGreeting)) {
				return candidate
			}
		}
	}
	return phrases[rotationIndex%len(phrases)]
}
