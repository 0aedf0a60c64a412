package naturalness

import (
	"testing"

	"github.com/creatoros/dmflow/internal/models"
)

func newRecord() *models.FollowerRecord {
	return models.NewFollowerRecord("agent-1", "follower-1", "Ana Garcia")
}

func TestNameCooldown(t *testing.T) {
	r := newRecord()
	// Fresh records allow the name immediately.
	if !ConstraintsFor(r, false).AllowName {
		t.Fatal("fresh record should allow the name")
	}

	RecordReply(r, "Hola Ana, que gusto saludarte", false)
	if r.Naturalness.MessagesSinceName != 0 {
		t.Fatalf("name use should reset the counter, got %d", r.Naturalness.MessagesSinceName)
	}
	if ConstraintsFor(r, false).AllowName {
		t.Error("name must be forbidden right after use")
	}

	// Four replies without the name: still forbidden.
	for i := 0; i < NameCooldown-1; i++ {
		RecordReply(r, "claro, te cuento", false)
	}
	if ConstraintsFor(r, false).AllowName {
		t.Errorf("name allowed after only %d turns", NameCooldown-1)
	}

	// Fifth reply without the name: allowed again.
	RecordReply(r, "perfecto", false)
	if !ConstraintsFor(r, false).AllowName {
		t.Error("name should be allowed again after the cooldown")
	}
}

func TestNameMatchIsWordBounded(t *testing.T) {
	r := newRecord()
	RecordReply(r, "te mando el manual banana", false)
	if r.Naturalness.MessagesSinceName == 0 {
		t.Error("'ana' inside other words must not count as a name use")
	}
}

func TestEmojiTracking(t *testing.T) {
	r := newRecord()
	RecordReply(r, "genial 🔥 nos vemos 🙌", false)
	c := ConstraintsFor(r, false)
	if len(c.ForbiddenEmojis) != 2 {
		t.Fatalf("expected 2 forbidden emojis, got %v", c.ForbiddenEmojis)
	}

	RecordReply(r, "vamos 💪 si 🎉", false)
	c = ConstraintsFor(r, false)
	if len(c.ForbiddenEmojis) != models.MaxRememberedEmojis {
		t.Fatalf("expected the list bounded at %d, got %v", models.MaxRememberedEmojis, c.ForbiddenEmojis)
	}
	// Newest are kept; the oldest (🔥) was evicted.
	for _, e := range c.ForbiddenEmojis {
		if e == "🔥" {
			t.Error("oldest emoji should have been evicted")
		}
	}
}

func TestGreetingOpeningTracked(t *testing.T) {
	r := newRecord()
	RecordReply(r, "Buenas tardes! Te cuento del curso", false)
	if r.Naturalness.LastGreeting != "buenas tardes" {
		t.Errorf("expected 'buenas tardes', got %q", r.Naturalness.LastGreeting)
	}
	// Non-greeting replies leave the last greeting untouched.
	RecordReply(r, "el acceso dura 12 meses", false)
	if r.Naturalness.LastGreeting != "buenas tardes" {
		t.Errorf("non-greeting reply overwrote the greeting: %q", r.Naturalness.LastGreeting)
	}
}

func TestPaymentLinkPolicy(t *testing.T) {
	r := newRecord()
	// Never sent: allowed.
	if !ConstraintsFor(r, false).IncludePaymentLink {
		t.Fatal("first payment link should be allowed")
	}

	r.TotalMessages = 4
	RecordReply(r, "aqui tienes: https://pay.example.com/x", true)
	if r.Naturalness.PaymentLinksSent != 1 || r.Naturalness.LastPaymentLinkTurn != 4 {
		t.Fatalf("link send not recorded: %+v", r.Naturalness)
	}

	// One turn later: cooldown active.
	r.TotalMessages = 5
	if ConstraintsFor(r, false).IncludePaymentLink {
		t.Error("link must be withheld during the cooldown")
	}
	// Explicit ask overrides the cooldown.
	if !ConstraintsFor(r, true).IncludePaymentLink {
		t.Error("explicit payment question must override the cooldown")
	}
	// Three turns later: allowed again.
	r.TotalMessages = 7
	if !ConstraintsFor(r, false).IncludePaymentLink {
		t.Error("link should be allowed after the cooldown elapsed")
	}
}

func TestMentionsName(t *testing.T) {
	if !MentionsName("Claro Ana, te cuento", "Ana Garcia") {
		t.Error("first name as a word should match")
	}
	if MentionsName("te mando el manual banana", "Ana Garcia") {
		t.Error("'ana' inside another word must not match")
	}
	if MentionsName("hola, te cuento", "") {
		t.Error("empty display name never matches")
	}
}

func TestContainsAnyEmoji(t *testing.T) {
	if !ContainsAnyEmoji("vamos 💪 a por ello", []string{"🔥", "💪"}) {
		t.Error("expected a match on 💪")
	}
	if ContainsAnyEmoji("vamos a por ello", []string{"🔥"}) {
		t.Error("plain text must not match")
	}
	if ContainsAnyEmoji("vamos 💪", nil) {
		t.Error("empty forbidden list never matches")
	}
}

func TestConstraintsCopyEmojis(t *testing.T) {
	r := newRecord()
	RecordReply(r, "ok 🙂", false)
	c := ConstraintsFor(r, false)
	c.ForbiddenEmojis[0] = "mutated"
	if r.Naturalness.LastEmojis[0] != "🙂" {
		t.Error("constraints must not share the record's emoji slice")
	}
}
