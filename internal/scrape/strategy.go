// Package scrape turns the URL of a supported site into plain article text
// by rendering it in a browser and applying a site specific strategy.
package scrape

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Kind names a supported site family.
type Kind string

const (
	// Perplexity is a conversational AI answer page.
	Perplexity Kind = "perplexity"
	// Wikipedia is an encyclopedia article.
	Wikipedia Kind = "wikipedia"
)

// Strategy knows how to recognize and read one site family.
type Strategy interface {
	Kind() Kind
	// Match reports whether raw (a URL or text containing one) belongs to
	// this family.
	Match(raw string) bool
	// Challenge is a substring of the page title shown by an interstitial
	// that must clear before extraction. Empty when the site has none.
	Challenge() string
	// Extract reads the article text from a rendered page. It must not
	// mutate doc.
	Extract(doc *goquery.Document) string
}

// Registry maps kinds to strategies, remembering registration order for
// detection.
type Registry struct {
	mu     sync.RWMutex
	byKind map[Kind]Strategy
	order  []Kind
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byKind: make(map[Kind]Strategy)}
}

// DefaultRegistry returns a registry with the built-in strategies.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(PerplexityStrategy{})
	r.Register(WikipediaStrategy{})
	return r
}

// Register adds s, replacing any strategy of the same kind.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKind[s.Kind()]; !ok {
		r.order = append(r.order, s.Kind())
	}
	r.byKind[s.Kind()] = s
}

// Lookup returns the strategy for k.
func (r *Registry) Lookup(k Kind) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byKind[k]
	return s, ok
}

// Detect returns the first registered kind whose strategy matches raw.
func (r *Registry) Detect(raw string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.order {
		if r.byKind[k].Match(raw) {
			return k, true
		}
	}
	return "", false
}

// Kinds lists registered kinds in registration order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Kind(nil), r.order...)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
