package scrape

import (
	"github.com/PuerkitoBio/goquery"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/extract"
)

const (
	perplexityContainer = `div[class*="col-span-12"]`
	perplexityChrome    = `button, [role="button"], nav`
)

// PerplexityStrategy reads the answer column of a Perplexity thread. Pages
// sit behind a Cloudflare check whose title reads "Just a moment...".
type PerplexityStrategy struct{}

func (PerplexityStrategy) Kind() Kind { return Perplexity }

func (PerplexityStrategy) Match(raw string) bool { return containsFold(raw, "perplexity.ai") }

func (PerplexityStrategy) Challenge() string { return "Just a moment" }

// Extract returns the visible text of the first answer container without
// buttons and navigation, or the whole body text without consent banners
// when no container exists.
func (PerplexityStrategy) Extract(doc *goquery.Document) string {
	container := doc.Find(perplexityContainer).First()
	if container.Length() == 0 {
		body := doc.Find("body").First()
		if body.Length() == 0 {
			return ""
		}
		return extract.PageText(body.Nodes[0])
	}
	clone := container.Clone()
	clone.Find(perplexityChrome).Remove()
	return extract.Text(clone.Nodes[0])
}
