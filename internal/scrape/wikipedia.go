package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/extract"
)

// wikipediaNoise are removed from the article before paragraphs are read.
var wikipediaNoise = []string{
	".reference",
	".mw-editsection",
	".navbox",
	"#toc",
	".thumb",
	".mw-empty-elt",
	".mw-references-wrap",
	".reference-group",
	".noprint",
	".mw-jump-link",
	".mw-headline",
	"table",
	".infobox",
	".box-Expand_language",
}

// WikipediaStrategy reads the body paragraphs of a Wikipedia article.
type WikipediaStrategy struct{}

func (WikipediaStrategy) Kind() Kind { return Wikipedia }

func (WikipediaStrategy) Match(raw string) bool { return containsFold(raw, "wikipedia.org") }

func (WikipediaStrategy) Challenge() string { return "" }

// Extract returns the text of each remaining <p> in #mw-content-text joined
// by newlines, or "" when the article container is missing.
func (WikipediaStrategy) Extract(doc *goquery.Document) string {
	content := doc.Find("#mw-content-text").First()
	if content.Length() == 0 {
		return ""
	}
	clone := content.Clone()
	clone.Find(strings.Join(wikipediaNoise, ", ")).Remove()
	return extract.Texts(clone.Find("p").Nodes, "\n")
}
