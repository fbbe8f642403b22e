// Package aggregate composes the user message of a transform from the idea
// text and optional sources, resolving source URLs through a scraper.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/backoff"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/budget"
	"github.com/StefanMuellerAI/LinkedIn-Editor/internal/scrape"
)

// Section names, also used as keys of Result.Tokens.
const (
	SectionIdea       = "idea"
	SectionPerplexity = "perplexity"
	SectionWikipedia  = "wikipedia"
	SectionPDF        = "pdf"
	SectionImage      = "image"
)

// Sources are the optional inputs next to the idea. Perplexity and
// Wikipedia hold either literal text or a lone URL of that site.
type Sources struct {
	Perplexity       string `json:"perplexityContent,omitempty"`
	Wikipedia        string `json:"wikiContent,omitempty"`
	PDFText          string `json:"pdfText,omitempty"`
	ImageDescription string `json:"imageDescription,omitempty"`
}

// Status tells whether a section made it into the body.
type Status int

const (
	Included Status = iota
	Omitted
)

func (s Status) String() string {
	if s == Included {
		return "included"
	}
	return "omitted"
}

// Section is the outcome for one input.
type Section struct {
	Name    string
	Label   string
	Content string
	Tokens  int
	Status  Status
	Reason  string
}

// Warning reports a source that was dropped.
type Warning struct {
	Section string `json:"section"`
	Reason  string `json:"reason"`
}

// Result is the composed body and how each input was handled.
type Result struct {
	Body     string
	Sections []Section
	Warnings []Warning
	// Tokens holds per-section counts for diagnostics. Routing uses the
	// count of Body.
	Tokens map[string]int
}

// ErrAggregation is matched by errors.Is for every *Error.
var ErrAggregation = errors.New("aggregation failed")

// Error explains why a source field could not be used.
type Error struct {
	Section string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Section, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Section, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrAggregation }

// Scraper reads article text from a URL.
type Scraper interface {
	Scrape(ctx context.Context, url string, kind scrape.Kind) (string, error)
}

// Aggregator resolves sources and composes the body.
type Aggregator struct {
	Scraper   Scraper
	Registry  *scrape.Registry
	Estimator budget.Estimator
	// Retry applies to retryable scrape failures.
	Retry backoff.Policy
}

type slot struct {
	name  string
	label string
	kind  scrape.Kind
	raw   string
}

// Aggregate composes idea and sources in fixed order: idea, Perplexity,
// Wikipedia, PDF, image. Sources resolve concurrently; a failed source is
// omitted and reported in Warnings, never failing the whole aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, idea string, src Sources) Result {
	slots := []slot{
		{name: SectionPerplexity, label: "Perplexity content", kind: scrape.Perplexity, raw: src.Perplexity},
		{name: SectionWikipedia, label: "Wikipedia content", kind: scrape.Wikipedia, raw: src.Wikipedia},
		{name: SectionPDF, label: "PDF content", raw: src.PDFText},
		{name: SectionImage, label: "Image description", raw: src.ImageDescription},
	}
	resolved := make([]Section, len(slots))
	present := make([]bool, len(slots))

	var g errgroup.Group
	for i, s := range slots {
		if s.raw == "" {
			continue
		}
		present[i] = true
		if strings.TrimSpace(s.raw) == "" {
			resolved[i] = Section{Name: s.name, Label: s.label, Status: Omitted, Reason: "blank source"}
			continue
		}
		g.Go(func() error {
			resolved[i] = a.resolve(ctx, s)
			return nil
		})
	}
	_ = g.Wait()

	est := a.estimator()
	ideaText := idea + "\n\n"
	res := Result{Tokens: map[string]int{SectionIdea: est.Count(ideaText)}}
	res.Sections = append(res.Sections, Section{
		Name: SectionIdea, Content: idea, Tokens: res.Tokens[SectionIdea], Status: Included,
	})
	var body strings.Builder
	body.WriteString(ideaText)
	for i := range slots {
		if !present[i] {
			continue
		}
		sec := resolved[i]
		if sec.Status == Included {
			body.WriteString(sec.Label)
			body.WriteString(":\n")
			body.WriteString(sec.Content)
			body.WriteString("\n\n")
			sec.Tokens = est.Count(sec.Content)
			res.Tokens[sec.Name] = sec.Tokens
		} else {
			res.Warnings = append(res.Warnings, Warning{Section: sec.Name, Reason: sec.Reason})
		}
		res.Sections = append(res.Sections, sec)
	}
	res.Body = body.String()
	return res
}

func (a *Aggregator) estimator() budget.Estimator {
	if a.Estimator == nil {
		return budget.Heuristic{}
	}
	return a.Estimator
}

func (a *Aggregator) registry() *scrape.Registry {
	if a.Registry == nil {
		return scrape.DefaultRegistry()
	}
	return a.Registry
}

// resolve turns one non-empty input into an included or omitted section.
func (a *Aggregator) resolve(ctx context.Context, s slot) Section {
	sec := Section{Name: s.name, Label: s.label, Status: Included, Content: s.raw}
	if s.kind == "" {
		return sec
	}
	target, err := a.target(s)
	if err != nil {
		return omit(sec, err)
	}
	if target == "" {
		return sec
	}
	if a.Scraper == nil {
		return omit(sec, &Error{Section: s.name, Reason: "no scraper configured"})
	}
	var content string
	err = backoff.Do(ctx, a.Retry, func(ctx context.Context) error {
		var err error
		content, err = a.Scraper.Scrape(ctx, target, s.kind)
		return err
	}, scrape.IsRetryable)
	if err != nil {
		return omit(sec, err)
	}
	sec.Content = content
	return sec
}

// target returns the URL to scrape for a scrapeable slot, "" when the field
// is literal text, or an *Error when the field is an unusable URL of the
// slot's own site. URLs of other sites stay literal text.
func (a *Aggregator) target(s slot) (string, error) {
	raw, ok := fieldURL(s.raw)
	if !ok {
		return "", nil
	}
	if kind, known := a.registry().Detect(raw); !known || kind != s.kind {
		return "", nil
	}
	u, err := canonicalURL(raw)
	if err != nil {
		return "", &Error{Section: s.name, Reason: "invalid URL", Err: err}
	}
	return u, nil
}

func omit(sec Section, err error) Section {
	sec.Status = Omitted
	sec.Content = ""
	sec.Reason = err.Error()
	log.Warn().Err(err).Str("section", sec.Name).Msg("source omitted")
	return sec
}
