// Package intent classifies inbound message text into a discrete sales intent.
//
// Classification is a pure function of the text: case-insensitive keyword
// matching against an ordered rule table. The table order is load-bearing;
// earlier groups win so "hola, me interesa" resolves to soft interest, not a
// greeting. Classification never fails: unmatched text falls through to the
// low-confidence "other" intent.
package intent

import (
	"strings"
	"unicode"

	"github.com/creatoros/dmflow/internal/models"
)

// rule binds a keyword group to the intent and confidence it produces.
type rule struct {
	intent     models.Intent
	confidence float64
	patterns   []string
}

// rules is evaluated top to bottom; the first matching group wins.
var rules = []rule{
	{models.IntentEscalation, 0.95, []string{
		"hablar con una persona", "hablar con un humano", "hablar con alguien",
		"persona real", "atencion humana", "atención humana", "eres un bot y quiero",
		"pasame con", "pásame con", "quiero un humano",
		"talk to a human", "talk to a person", "real person", "speak to someone",
		"human agent", "customer service rep",
	}},
	{models.IntentStrongInterest, 0.90, []string{
		"quiero comprar", "lo compro", "quiero pagar", "como pago", "cómo pago",
		"donde pago", "dónde pago", "mandame el link", "mándame el link",
		"pasame el link", "pásame el link", "enviame el enlace", "envíame el enlace",
		"quiero el curso ya", "dame el precio final", "lo quiero",
		"i want to buy", "i'll buy", "i will buy", "take my money", "how do i pay",
		"send me the link", "where do i pay", "i want to pay", "sign me up",
	}},
	{models.IntentSoftInterest, 0.85, []string{
		"me interesa", "me gustaria saber", "me gustaría saber", "cuentame mas",
		"cuéntame más", "quiero saber mas", "quiero saber más", "suena interesante",
		"me llama la atencion", "me llama la atención", "quiero informacion",
		"quiero información", "mas info", "más info", "dame info",
		"i'm interested", "im interested", "tell me more", "sounds interesting",
		"more info", "i'd like to know more", "curious about",
	}},
	{models.IntentBooking, 0.90, []string{
		"agendar", "agenda una llamada", "reservar", "una cita", "una llamada",
		"cuando podemos hablar", "cuándo podemos hablar", "disponibilidad",
		"book a call", "schedule a call", "set up a meeting", "book a session",
		"appointment",
	}},
	{models.IntentGreeting, 0.85, []string{
		"hola", "buenas", "buenos dias", "buenos días", "buenas tardes",
		"buenas noches", "que tal", "qué tal", "saludos", "hey", "hello", "hi",
		"good morning", "good afternoon", "good evening", "what's up",
	}},
	{models.IntentObjectionPrice, 0.90, []string{
		"muy caro", "esta caro", "está caro", "demasiado caro", "no tengo dinero",
		"no me alcanza", "no tengo plata", "fuera de mi presupuesto",
		"too expensive", "can't afford", "cant afford", "too pricey",
		"out of my budget", "no money",
	}},
	{models.IntentObjectionTime, 0.85, []string{
		"no tengo tiempo", "estoy muy ocupado", "estoy muy ocupada", "sin tiempo",
		"no time", "too busy", "don't have time", "dont have time",
	}},
	{models.IntentObjectionDoubt, 0.85, []string{
		"no estoy seguro", "no estoy segura", "tengo dudas", "no se si",
		"no sé si", "me da desconfianza", "suena a estafa", "es una estafa",
		"not sure", "i have doubts", "sounds like a scam", "is this a scam",
		"seems sketchy",
	}},
	{models.IntentObjectionLater, 0.85, []string{
		"mas adelante", "más adelante", "despues lo veo", "después lo veo",
		"el proximo mes", "el próximo mes", "la proxima semana", "la próxima semana",
		"ahora no puedo", "luego te aviso", "dejame pensarlo", "déjame pensarlo",
		"maybe later", "not right now", "next month", "next week",
		"let me think about it", "i'll think about it",
	}},
	{models.IntentObjectionDoesItWork, 0.90, []string{
		"de verdad funciona", "realmente funciona", "si funciona", "sí funciona",
		"tienes resultados", "tienes testimonios", "casos de exito",
		"casos de éxito", "pruebas de que funciona",
		"does it work", "does it really work", "any proof", "any results",
		"testimonials", "success stories",
	}},
	{models.IntentObjectionNotForMe, 0.85, []string{
		"no es para mi", "no es para mí", "no creo que sea para mi",
		"no creo que sea para mí", "no me serviria", "no me serviría",
		"not for me", "won't work for me", "wont work for me", "not my thing",
	}},
	{models.IntentObjectionTooComplex, 0.85, []string{
		"muy complicado", "muy dificil", "muy difícil", "demasiado complejo",
		"no voy a entender", "soy principiante y",
		"too complicated", "too complex", "too hard", "too difficult",
		"too advanced for me",
	}},
	{models.IntentObjectionAlreadyHave, 0.90, []string{
		"ya tengo uno", "ya tengo un curso", "ya compre otro", "ya compré otro",
		"ya estoy en otro", "ya uso otro", "ya tengo algo parecido",
		"already have one", "already bought", "already using another",
		"i already have something",
	}},
	{models.IntentProductQuestion, 0.90, []string{
		"cuanto cuesta", "cuánto cuesta", "que precio", "qué precio", "el precio",
		"que incluye", "qué incluye", "como funciona el curso", "cómo funciona el curso",
		"hay garantia", "hay garantía", "tiene garantia", "tiene garantía",
		"formas de pago", "metodos de pago", "métodos de pago", "aceptan tarjeta",
		"cuanto dura el acceso", "cuánto dura el acceso", "acceso de por vida",
		"how much", "what's the price", "whats the price", "what does it include",
		"what's included", "whats included", "is there a guarantee", "refund policy",
		"payment methods", "how long is the access", "lifetime access",
	}},
	{models.IntentIdentityQuestion, 0.85, []string{
		"quien eres", "quién eres", "eres un bot", "eres un robot", "eres una ia",
		"con quien hablo", "con quién hablo", "eres real",
		"who are you", "are you a bot", "are you a robot", "are you real",
		"am i talking to a machine", "are you an ai",
	}},
	{models.IntentFreeOffer, 0.90, []string{
		"algo gratis", "material gratis", "version gratuita", "versión gratuita",
		"muestra gratis", "clase gratis", "prueba gratis", "hay algo gratuito",
		"anything free", "free sample", "free trial", "free version",
		"free material", "something for free",
	}},
	{models.IntentThanks, 0.85, []string{
		"gracias", "muchas gracias", "mil gracias", "te agradezco",
		"thank you", "thanks", "thx", "appreciate it",
	}},
	{models.IntentGoodbye, 0.85, []string{
		"adios", "adiós", "hasta luego", "nos vemos", "chao", "chau",
		"goodbye", "bye", "see you", "talk later",
	}},
	{models.IntentSupport, 0.85, []string{
		"no puedo entrar", "no puedo acceder", "no me llego", "no me llegó",
		"no funciona el enlace", "no funciona el link", "tengo un problema con",
		"error al", "no carga",
		"can't log in", "cant log in", "can't access", "cant access",
		"didn't receive", "didnt receive", "broken link", "not working",
		"i have a problem with",
	}},
}

// fallbackConfidence is returned when no rule group matches.
const fallbackConfidence = 0.50

// Classify maps message text to an intent with a confidence value.
// It is deterministic, has no side effects, and always returns a result.
func Classify(text string) models.ClassificationResult {
	normalized := normalize(text)
	for _, r := range rules {
		for _, p := range r.patterns {
			if matches(normalized, p) {
				return models.ClassificationResult{Intent: r.intent, Confidence: r.confidence}
			}
		}
	}
	return models.ClassificationResult{Intent: models.IntentOther, Confidence: fallbackConfidence}
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// matches reports whether the pattern occurs in the text. Short single-word
// patterns require word boundaries so "hi" does not match inside "this";
// longer phrases use plain substring matching.
func matches(text, pattern string) bool {
	if len(pattern) > 4 || strings.ContainsRune(pattern, ' ') {
		return strings.Contains(text, pattern)
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], pattern)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(pattern)
		if boundaryAt(text, start-1) && boundaryAt(text, end) {
			return true
		}
		idx = start + 1
	}
}

// boundaryAt reports whether position i in text is outside a word.
func boundaryAt(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := rune(text[i])
	return !unicode.IsLetter(c) && !unicode.IsDigit(c)
}
