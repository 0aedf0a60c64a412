package intent

import (
	"testing"

	"github.com/creatoros/dmflow/internal/models"
)

func TestClassifyPriorityOrdering(t *testing.T) {
	// A message carrying both a greeting and a stronger signal must resolve
	// to the stronger signal.
	cases := []struct {
		text string
		want models.Intent
	}{
		{"hola, quiero comprar el curso", models.IntentStrongInterest},
		{"hola, me interesa el curso", models.IntentSoftInterest},
		{"buenas! quiero agendar una llamada", models.IntentBooking},
		{"hey, necesito hablar con una persona real", models.IntentEscalation},
	}
	for _, c := range cases {
		got := Classify(c.text)
		if got.Intent != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.text, got.Intent, c.want)
		}
		if got.Intent == models.IntentGreeting {
			t.Errorf("Classify(%q) must never prefer greeting over a stronger signal", c.text)
		}
	}
}

func TestClassifySoftInterestScenario(t *testing.T) {
	got := Classify("Hola, me interesa el curso")
	if got.Intent != models.IntentSoftInterest {
		t.Fatalf("expected soft_interest, got %s", got.Intent)
	}
	if got.Confidence != 0.85 {
		t.Errorf("expected confidence 0.85, got %f", got.Confidence)
	}
}

func TestClassifyStrongInterestScenario(t *testing.T) {
	got := Classify("quiero comprarlo")
	if got.Intent != models.IntentStrongInterest {
		t.Fatalf("expected strong_interest, got %s", got.Intent)
	}
	if got.Confidence != 0.90 {
		t.Errorf("expected confidence 0.90, got %f", got.Confidence)
	}
}

func TestClassifyObjections(t *testing.T) {
	cases := []struct {
		text string
		want models.Intent
	}{
		{"esta muy caro para mi", models.IntentObjectionPrice},
		{"no tengo tiempo ahora mismo", models.IntentObjectionTime},
		{"no estoy seguro, suena a estafa", models.IntentObjectionDoubt},
		{"dejame pensarlo, mejor el proximo mes", models.IntentObjectionLater},
		{"de verdad funciona? tienes testimonios?", models.IntentObjectionDoesItWork},
		{"creo que no es para mi", models.IntentObjectionNotForMe},
		{"se ve muy complicado", models.IntentObjectionTooComplex},
		{"ya tengo un curso parecido", models.IntentObjectionAlreadyHave},
	}
	for _, c := range cases {
		got := Classify(c.text)
		if got.Intent != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.text, got.Intent, c.want)
		}
		if !got.Intent.IsObjection() {
			t.Errorf("Classify(%q) should be an objection", c.text)
		}
	}
}

func TestClassifyProductAndIdentityAndFree(t *testing.T) {
	cases := []struct {
		text string
		want models.Intent
	}{
		{"cuanto cuesta el programa?", models.IntentProductQuestion},
		{"que incluye exactamente?", models.IntentProductQuestion},
		{"hay garantia de devolucion?", models.IntentProductQuestion},
		{"eres un bot?", models.IntentIdentityQuestion},
		{"tienes algo gratis primero?", models.IntentFreeOffer},
		{"no puedo entrar a la plataforma", models.IntentSupport},
		{"muchas gracias!", models.IntentThanks},
		{"bueno, hasta luego", models.IntentGoodbye},
	}
	for _, c := range cases {
		if got := Classify(c.text); got.Intent != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.text, got.Intent, c.want)
		}
	}
}

func TestClassifyEnglish(t *testing.T) {
	cases := []struct {
		text string
		want models.Intent
	}{
		{"hi, I want to buy the course", models.IntentStrongInterest},
		{"hey, tell me more about the program", models.IntentSoftInterest},
		{"it's too expensive for me", models.IntentObjectionPrice},
		{"does it really work?", models.IntentObjectionDoesItWork},
		{"how much is it?", models.IntentProductQuestion},
	}
	for _, c := range cases {
		if got := Classify(c.text); got.Intent != c.want {
			t.Errorf("Classify(%q) = %s, want %s", c.text, got.Intent, c.want)
		}
	}
}

func TestClassifyFallbackNeverFails(t *testing.T) {
	for _, text := range []string{"", "   ", "xyzzy plugh", "42", "el clima esta raro"} {
		got := Classify(text)
		if got.Intent != models.IntentOther {
			t.Errorf("Classify(%q) = %s, want other", text, got.Intent)
		}
		if got.Confidence != 0.50 {
			t.Errorf("Classify(%q) confidence = %f, want 0.50", text, got.Confidence)
		}
	}
}

func TestClassifyWordBoundaries(t *testing.T) {
	// Short tokens must not match inside larger words.
	if got := Classify("this is a test"); got.Intent == models.IntentGreeting {
		t.Error("'hi' inside 'this' must not classify as greeting")
	}
	if got := Classify("hi there"); got.Intent != models.IntentGreeting {
		t.Errorf("'hi there' should be a greeting, got %s", got.Intent)
	}
	if got := Classify("bye!"); got.Intent != models.IntentGoodbye {
		t.Errorf("'bye!' should be a goodbye, got %s", got.Intent)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	if got := Classify("QUIERO COMPRAR YA"); got.Intent != models.IntentStrongInterest {
		t.Errorf("uppercase should still classify, got %s", got.Intent)
	}
}
