package engine

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/creatoros/dmflow/internal/catalog"
)

// urlPattern matches http(s) URLs in generated text.
var urlPattern = regexp.MustCompile(`https?://[^\s<>()"']+`)

// pricePattern matches currency amounts like "$49", "99 USD", "120€".
var pricePattern = regexp.MustCompile(`(?i)(\$\s?\d[\d.,]*|\d[\d.,]*\s?(usd|eur|mxn|€|dólares|dolares|euros|pesos))`)

// applyGuardrail validates generated text against the catalog: URLs must be
// configured payment links and price claims must match a known product price.
// Violations are rewritten or stripped, never turned into errors.
func applyGuardrail(text string, cat *catalog.Catalog, product *catalog.Product) string {
	out := urlPattern.ReplaceAllStringFunc(text, func(url string) string {
		trimmed := strings.TrimRight(url, ".,;:!?")
		if cat.AllowedLink(trimmed) {
			return url
		}
		slog.Warn("Guardrail: stripping unapproved link", "url", trimmed)
		if product != nil && product.PaymentLink != "" {
			return product.PaymentLink
		}
		return ""
	})

	out = pricePattern.ReplaceAllStringFunc(out, func(claim string) string {
		if product != nil && product.Price != "" {
			normalizedClaim := strings.ToLower(strings.Join(strings.Fields(claim), " "))
			normalizedPrice := strings.ToLower(strings.Join(strings.Fields(product.Price), " "))
			if normalizedClaim == normalizedPrice || strings.Contains(normalizedClaim, normalizedPrice) ||
				strings.Contains(normalizedPrice, normalizedClaim) {
				return claim
			}
			slog.Warn("Guardrail: rewriting unsupported price claim", "claim", claim, "actual", product.Price)
			return product.Price
		}
		slog.Warn("Guardrail: stripping price claim with no product context", "claim", claim)
		return ""
	})

	return collapseWhitespace(out)
}

// collapseWhitespace squeezes runs of whitespace into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
