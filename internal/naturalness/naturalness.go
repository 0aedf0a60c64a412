// Package naturalness tracks per-follower anti-repetition state so
// consecutive replies do not reuse the same emojis, greeting opening, or the
// follower's name, and so payment links are not spammed.
package naturalness

import (
	"strings"

	"github.com/creatoros/dmflow/internal/models"
)

// Cooldowns measured in processed messages.
const (
	// NameCooldown is the minimum number of turns between uses of the
	// follower's first name.
	NameCooldown = 5
	// PaymentLinkCooldown is the minimum number of turns between payment links.
	PaymentLinkCooldown = 3
)

// Constraints tells the generation step what the next reply must avoid.
type Constraints struct {
	// ForbiddenEmojis must not appear in the next reply.
	ForbiddenEmojis []string
	// LastGreeting is the opening used last time; the next greeting should differ.
	LastGreeting string
	// AllowName permits using the follower's first name.
	AllowName bool
	// IncludePaymentLink permits sending a payment link this turn.
	IncludePaymentLink bool
}

// ConstraintsFor derives the constraints for the next reply from the record.
// asksToPay indicates the inbound message explicitly asked how to pay or buy,
// which overrides the payment-link cooldown.
func ConstraintsFor(record *models.FollowerRecord, asksToPay bool) Constraints {
	n := record.Naturalness
	return Constraints{
		ForbiddenEmojis:    append([]string(nil), n.LastEmojis...),
		LastGreeting:       n.LastGreeting,
		AllowName:          n.MessagesSinceName >= NameCooldown,
		IncludePaymentLink: linkAllowed(n, record.TotalMessages, asksToPay),
	}
}

// linkAllowed applies the payment-link resend policy: never sent, cooldown
// elapsed, or the follower explicitly asked.
func linkAllowed(n models.NaturalnessState, currentTurn int, asksToPay bool) bool {
	if asksToPay {
		return true
	}
	if n.PaymentLinksSent == 0 {
		return true
	}
	return currentTurn-n.LastPaymentLinkTurn >= PaymentLinkCooldown
}

// RecordReply scans the produced reply and updates the record's naturalness
// state. linkSent reports whether the reply actually carried a payment link.
func RecordReply(record *models.FollowerRecord, reply string, linkSent bool) {
	n := &record.Naturalness

	for _, e := range extractEmojis(reply) {
		n.LastEmojis = appendEmoji(n.LastEmojis, e)
	}

	if MentionsName(reply, record.DisplayName) {
		n.MessagesSinceName = 0
	} else {
		n.MessagesSinceName++
	}

	if opening := greetingOpening(reply); opening != "" {
		n.LastGreeting = opening
	}

	if linkSent {
		n.PaymentLinksSent++
		n.LastPaymentLinkTurn = record.TotalMessages
	}
}

// MentionsName reports whether the reply uses the follower's first name as a
// standalone word.
func MentionsName(reply, displayName string) bool {
	return containsName(reply, firstName(displayName))
}

// ContainsAnyEmoji reports whether the text uses any of the given emojis.
func ContainsAnyEmoji(text string, emojis []string) bool {
	if len(emojis) == 0 {
		return false
	}
	for _, e := range extractEmojis(text) {
		for _, f := range emojis {
			if e == f {
				return true
			}
		}
	}
	return false
}

// appendEmoji keeps at most MaxRememberedEmojis entries, newest last, unique.
func appendEmoji(list []string, e string) []string {
	for i, v := range list {
		if v == e {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	list = append(list, e)
	if len(list) > models.MaxRememberedEmojis {
		list = list[len(list)-models.MaxRememberedEmojis:]
	}
	return list
}

// extractEmojis returns the distinct emoji runes in the text, in order.
func extractEmojis(text string) []string {
	var out []string
	seen := map[rune]bool{}
	for _, r := range text {
		if isEmoji(r) && !seen[r] {
			seen[r] = true
			out = append(out, string(r))
		}
	}
	return out
}

// isEmoji covers the common emoji blocks; skin-tone modifiers and ZWJ
// sequences degrade to their base rune, which is good enough for
// anti-repetition purposes.
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // pictographs, emoticons, symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r == 0x2764 || r == 0x2B50 || r == 0x2705:
		return true
	default:
		return false
	}
}

// containsName does a case-insensitive word match of the first name.
func containsName(reply, name string) bool {
	if name == "" {
		return false
	}
	lower := strings.ToLower(reply)
	name = strings.ToLower(name)
	idx := 0
	for {
		i := strings.Index(lower[idx:], name)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(name)
		if (start == 0 || !isWordByte(lower[start-1])) && (end == len(lower) || !isWordByte(lower[end])) {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func firstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// knownGreetings are opening phrases worth remembering for rotation.
var knownGreetings = []string{
	"hola", "buenas", "buenos dias", "buenos días", "buenas tardes",
	"buenas noches", "que tal", "qué tal", "hey", "hello", "hi",
}

// greetingOpening returns the greeting phrase the reply opens with, if any.
func greetingOpening(reply string) string {
	lower := strings.ToLower(strings.TrimSpace(reply))
	var best string
	for _, g := range knownGreetings {
		if strings.HasPrefix(lower, g) && len(g) > len(best) {
			best = g
		}
	}
	return best
}
