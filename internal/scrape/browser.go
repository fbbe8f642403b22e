package scrape

import "context"

// Browser opens a page and waits until it has finished loading.
type Browser interface {
	Open(ctx context.Context, url string) (Session, error)
}

// Session is one loaded page. Close must be called on every path and
// releases everything Open acquired.
type Session interface {
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}
