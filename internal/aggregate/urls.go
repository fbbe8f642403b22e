package aggregate

import (
	"errors"
	"net/url"
	"strings"

	"mvdan.cc/xurls/v2"
)

var (
	strictURL  = xurls.Strict()
	relaxedURL = xurls.Relaxed()
)

// fieldURL reports whether the trimmed field is a single URL and nothing
// else. A bare host such as "en.wikipedia.org/wiki/Go" gains an https
// scheme. Text that merely cites a URL is not a URL field.
func fieldURL(field string) (string, bool) {
	f := strings.TrimSpace(field)
	if f == "" || strings.ContainsAny(f, " \t\r\n") {
		return "", false
	}
	if strictURL.FindString(f) == f {
		return f, true
	}
	if relaxedURL.FindString(f) == f {
		return "https://" + f, true
	}
	return "", false
}

// canonicalURL rejects non-http(s) URLs and strips fragments and tracking
// parameters so equivalent links share a cache entry.
func canonicalURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", errors.New("unsupported scheme " + u.Scheme)
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	normalizeURL(u)
	return u.String(), nil
}

func normalizeURL(u *url.URL) {
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
}
