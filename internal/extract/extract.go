// Package extract renders HTML nodes as readable text, approximating what a
// browser reports as an element's innerText.
package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Title returns the trimmed <title> of a parsed document.
func Title(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(norm.NFC.String(t.FirstChild.Data))
}

// Text returns the visible text beneath n. Block elements start new lines,
// paragraphs and headings are separated by a blank line, whitespace inside a
// line collapses to single spaces and <pre> content is preserved. Output is
// NFC normalized.
func Text(n *html.Node) string {
	return render(n, false)
}

// PageText is Text for a whole page: cookie and consent banners are dropped
// as well.
func PageText(n *html.Node) string {
	return render(n, true)
}

func render(n *html.Node, skipBanners bool) string {
	if n == nil {
		return ""
	}
	w := walker{skipBanners: skipBanners}
	w.collect(n, false)
	return norm.NFC.String(normalizeWhitespace(w.b.String()))
}

// Texts renders each node with Text and joins the non-empty results with sep.
func Texts(nodes []*html.Node, sep string) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if t := Text(n); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, sep)
}

// findFirst returns the first element named tag in document order.
func findFirst(root *html.Node, tag string) *html.Node {
	stack := []*html.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
			return n
		}
		for c := n.LastChild; c != nil; c = c.PrevSibling {
			stack = append(stack, c)
		}
	}
	return nil
}

// layout is how an element breaks the surrounding text.
type layout struct {
	before, after string
}

var (
	skipped = map[string]bool{
		"script": true, "style": true, "noscript": true, "template": true,
		"iframe": true, "svg": true, "head": true,
	}
	layouts = map[string]layout{
		"br": {before: "\n"}, "hr": {before: "\n"},
		"td": {before: " "}, "th": {before: " "},
		"header": {before: "\n"}, "main": {before: "\n"}, "article": {before: "\n"},
		"ul": {before: "\n"}, "ol": {before: "\n"}, "table": {before: "\n"},
		"div": {"\n", "\n"}, "section": {"\n", "\n"}, "tr": {"\n", "\n"},
		"blockquote": {"\n", "\n"}, "figure": {"\n", "\n"},
		"li": {"\n", "\n"}, "dt": {"\n", "\n"}, "dd": {"\n", "\n"},
		"pre": {"\n", "\n"},
		"p": {"\n", "\n\n"}, "h1": {"\n", "\n\n"}, "h2": {"\n", "\n\n"}, "h3": {"\n", "\n\n"},
		"h4": {"\n", "\n\n"}, "h5": {"\n", "\n\n"}, "h6": {"\n", "\n\n"},
	}
	lineBreaks = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")
)

type walker struct {
	b           strings.Builder
	skipBanners bool
}

func (w *walker) collect(n *html.Node, inPre bool) {
	b := &w.b
	switch n.Type {
	case html.TextNode:
		if inPre {
			// Mark preformatted lines so normalization keeps their indentation.
			b.WriteString(strings.ReplaceAll(n.Data, "\n", "\n\x00"))
		} else {
			b.WriteString(lineBreaks.Replace(n.Data))
		}
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skipped[tag] || isHidden(n) || (w.skipBanners && isBoilerplateContainer(n)) {
			return
		}
		l := layouts[tag]
		b.WriteString(l.before)
		inPre = inPre || tag == "pre"
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			w.collect(c, inPre)
		}
		b.WriteString(l.after)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.collect(c, inPre)
	}
}

var bannerWords = []string{"cookie", "consent", "gdpr"}

// isBoilerplateContainer reports whether the element looks like a cookie or
// consent banner.
func isBoilerplateContainer(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch key := strings.ToLower(attr.Key); {
		case key == "id", key == "class", key == "aria-label", strings.HasPrefix(key, "data-"):
			if containsAny(strings.ToLower(attr.Val), bannerWords) {
				return true
			}
		}
	}
	return false
}

// isHidden mirrors innerText skipping elements that are not rendered.
func isHidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(attr.Val, "true") {
				return true
			}
		case "style":
			v := strings.ReplaceAll(strings.ToLower(attr.Val), " ", "")
			if strings.Contains(v, "display:none") || strings.Contains(v, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// normalizeWhitespace trims lines, collapses internal runs of spaces and keeps
// at most one blank line in a row. Lines that came from <pre> are marked with
// a leading NUL and keep their indentation.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "\x00") {
			out = append(out, strings.TrimRight(line[1:], " \t\r"))
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\u00a0' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
