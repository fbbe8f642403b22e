package app

import (
	"net"
	"net/http"
	"time"
)

// newPageHTTPClient returns the client used by the plain HTTP page engine.
// Scrapes are few and per-request, so the pool stays small while timeouts
// keep a stuck origin from holding an API request open.
func newPageHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}
