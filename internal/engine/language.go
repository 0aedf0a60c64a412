package engine

import "strings"

// spanishMarkers are common Spanish words and characters used by the naive
// language detector. The detector only needs to split es/en; anything
// ambiguous defaults to Spanish, the primary audience.
var spanishMarkers = []string{
	"hola", "gracias", "quiero", "cuanto", "cuánto", "como", "cómo", "precio",
	"curso", "pero", "porque", "tengo", "interesa", "puedo", "donde", "dónde",
	"está", "sí", "qué", "más", "también", "él", "ñ",
}

var englishMarkers = []string{
	"the", "what", "how", "want", "price", "thanks", "hello", "buy", "does",
	"work", "with", "your", "about", "interested",
}

// detectLanguage makes a coarse es/en guess from marker-word counts.
func detectLanguage(text string) string {
	lower := " " + strings.ToLower(text) + " "
	es, en := 0, 0
	for _, m := range spanishMarkers {
		if strings.Contains(lower, m) {
			es++
		}
	}
	for _, m := range englishMarkers {
		if strings.Contains(lower, " "+m+" ") {
			en++
		}
	}
	if en > es {
		return "en"
	}
	return "es"
}
