package engine

import (
	"strings"
	"unicode"

	"github.com/creatoros/dmflow/internal/catalog"
	"github.com/creatoros/dmflow/internal/models"
)

// Weights of the reply-relevance components. Language agreement carries the
// most, lexical overlap with the question fills the middle, and topical
// vocabulary for the intent class tops it up.
const (
	languageWeight = 0.4
	overlapWeight  = 0.4
	topicWeight    = 0.2
)

// topicVocabulary lists stems a relevant reply is expected to touch for the
// intent classes that go through the confidence check.
var topicVocabulary = map[models.Intent][]string{
	models.IntentEscalation: {"equipo", "persona", "humano", "contacto", "team", "human", "someone"},
	models.IntentSupport:    {"acces", "revis", "ayud", "solucion", "lamento", "siento", "access", "check", "help", "sorry", "look"},
}

// replyConfidence re-evaluates a generated reply against the question that
// produced it and scores its relevance in [0,1]. It is a cheap lexical
// heuristic rather than a second model call: a reply in the wrong language
// that shares no vocabulary with the question and is off-topic for the
// intent class scores near zero.
func replyConfidence(reply, message string, in models.Intent, cfg models.AgentConfig, product *catalog.Product) float64 {
	score := 0.0
	if detectLanguage(reply) == cfg.Language {
		score += languageWeight
	}
	score += overlapWeight * tokenOverlap(message, reply)
	if onTopic(reply, in, product) {
		score += topicWeight
	}
	return score
}

// tokenOverlap returns the fraction of the message's content words whose
// stem also appears in the reply.
func tokenOverlap(message, reply string) float64 {
	msgStems := stems(message)
	if len(msgStems) == 0 {
		return 0
	}
	replyStems := make(map[string]bool, len(msgStems))
	for _, s := range stems(reply) {
		replyStems[s] = true
	}
	hits := 0
	for _, s := range msgStems {
		if replyStems[s] {
			hits++
		}
	}
	return float64(hits) / float64(len(msgStems))
}

// stems lowercases the text, keeps words longer than three runes and crops
// each to a four-rune prefix, enough to match Spanish inflections like
// acceder/acceso.
func stems(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	var out []string
	for _, w := range words {
		runes := []rune(w)
		if len(runes) <= 3 {
			continue
		}
		if len(runes) > 4 {
			runes = runes[:4]
		}
		out = append(out, string(runes))
	}
	return out
}

// onTopic reports whether the reply touches the vocabulary expected for the
// intent class or mentions the product under discussion.
func onTopic(reply string, in models.Intent, product *catalog.Product) bool {
	lower := strings.ToLower(reply)
	for _, stem := range topicVocabulary[in] {
		if strings.Contains(lower, stem) {
			return true
		}
	}
	if product == nil {
		return false
	}
	if product.Name != "" && strings.Contains(lower, strings.ToLower(product.Name)) {
		return true
	}
	for _, kw := range product.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
