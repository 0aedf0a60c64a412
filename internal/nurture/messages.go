package nurture

import "strings"

// followUpMessages holds the canned follow-up text per sequence and language.
// The {name} token is filled from the sequence Context.
var followUpMessages = map[SequenceType]map[string]string{
	SequenceColdInterest: {
		"es": "¡Hola{name}! Vi que te interesaba lo que hablamos y quería saber si tienes alguna duda que pueda resolver.",
		"en": "Hey{name}! You mentioned you were interested, just checking if there's anything I can answer for you.",
	},
	SequencePriceObjection: {
		"es": "¡Hola{name}! Sé que el precio es algo a considerar. Si quieres te cuento todo lo que incluye para que veas el valor completo.",
		"en": "Hi{name}! I know price matters. Happy to walk you through everything included so you can see the full value.",
	},
	SequenceBookingReminder: {
		"es": "¡Hola{name}! Solo para recordarte la llamada que comentamos. ¿Te viene bien agendarla ahora?",
		"en": "Hi{name}! Just a reminder about the call we talked about. Want to lock in a time now?",
	},
}

// MessageFor renders the follow-up text for a sequence. An empty string
// means the sequence has no message and nothing should be sent.
func MessageFor(seq SequenceType, seqCtx Context) string {
	byLang, ok := followUpMessages[seq]
	if !ok {
		return ""
	}
	language := seqCtx.Language
	if language != "en" {
		language = "es"
	}

	name := ""
	if seqCtx.DisplayName != "" {
		name = " " + firstName(seqCtx.DisplayName)
	}
	return strings.ReplaceAll(byLang[language], "{name}", name)
}

func firstName(displayName string) string {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return displayName
	}
	return fields[0]
}
