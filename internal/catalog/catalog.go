// Package catalog provides the read-only product and knowledge catalog.
//
// The catalog feeds prompt assembly (product facts, knowledge snippets) and
// the guardrail (payment-link allow-list). It is loaded once at startup from
// a JSON file and is safe for concurrent reads.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Product describes one sellable item of a creator.
type Product struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Keywords       []string `json:"keywords,omitempty"`
	Price          string   `json:"price,omitempty"`
	PaymentLink    string   `json:"payment_link,omitempty"`
	Facts          []string `json:"facts,omitempty"`
	Inclusions     []string `json:"inclusions,omitempty"`
	Guarantee      string   `json:"guarantee,omitempty"`
	AccessDuration string   `json:"access_duration,omitempty"`
}

// KnowledgeEntry is a free-form Q&A snippet for prompt grounding.
type KnowledgeEntry struct {
	Topic    string   `json:"topic"`
	Keywords []string `json:"keywords,omitempty"`
	Answer   string   `json:"answer"`
}

// Catalog holds the products and knowledge base for one deployment.
type Catalog struct {
	Products  []Product        `json:"products"`
	Knowledge []KnowledgeEntry `json:"knowledge,omitempty"`

	allowedLinks map[string]bool
}

// Load reads and indexes a catalog JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to read %s: %w", path, err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: failed to parse %s: %w", path, err)
	}
	c.index()
	slog.Info("Catalog loaded", "path", path, "products", len(c.Products), "knowledge_entries", len(c.Knowledge))
	return &c, nil
}

// New builds a catalog from already-parsed data. Used by tests and embedders.
func New(products []Product, knowledge []KnowledgeEntry) *Catalog {
	c := &Catalog{Products: products, Knowledge: knowledge}
	c.index()
	return c
}

func (c *Catalog) index() {
	c.allowedLinks = make(map[string]bool, len(c.Products))
	for _, p := range c.Products {
		if p.PaymentLink != "" {
			c.allowedLinks[p.PaymentLink] = true
		}
	}
}

// FindByKeyword returns the first product whose name or keywords appear in
// the text, or nil.
func (c *Catalog) FindByKeyword(text string) *Product {
	lower := strings.ToLower(text)
	for i := range c.Products {
		p := &c.Products[i]
		if p.Name != "" && strings.Contains(lower, strings.ToLower(p.Name)) {
			return p
		}
		for _, k := range p.Keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				return p
			}
		}
	}
	return nil
}

// FindByID returns the product with the given id, or nil.
func (c *Catalog) FindByID(id string) *Product {
	for i := range c.Products {
		if c.Products[i].ID == id {
			return &c.Products[i]
		}
	}
	return nil
}

// PrimaryProduct returns the first product, the default subject of the
// conversation when nothing more specific matched.
func (c *Catalog) PrimaryProduct() *Product {
	if len(c.Products) == 0 {
		return nil
	}
	return &c.Products[0]
}

// AllowedLink reports whether the URL is a configured payment link.
func (c *Catalog) AllowedLink(url string) bool {
	return c.allowedLinks[url]
}

// KnowledgeFor returns knowledge entries whose keywords appear in the text.
func (c *Catalog) KnowledgeFor(text string) []KnowledgeEntry {
	lower := strings.ToLower(text)
	var out []KnowledgeEntry
	for _, e := range c.Knowledge {
		for _, k := range e.Keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
