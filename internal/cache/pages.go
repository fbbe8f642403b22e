package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Page is a fetched document plus the validators needed to revalidate it
// with a conditional request.
type Page struct {
	URL          string    `json:"url"`
	ContentType  string    `json:"content_type"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
	Body         []byte    `json:"body"`
}

// PageCache keeps pages for the plain HTTP engine in any Store.
type PageCache struct {
	Store Store
}

// NewFilePageCache stores pages as JSON files under dir.
func NewFilePageCache(dir string, strictPerms bool) *PageCache {
	return &PageCache{Store: &FileStore{Dir: dir, StrictPerms: strictPerms}}
}

func pageKey(url string) string { return KeyFrom("page", url) }

// Lookup returns the cached page for url. Read and decode failures count as
// misses.
func (c *PageCache) Lookup(ctx context.Context, url string) (Page, bool) {
	if c == nil || c.Store == nil {
		return Page{}, false
	}
	raw, ok, err := c.Store.Get(ctx, pageKey(url))
	if err != nil {
		log.Debug().Err(err).Str("url", url).Msg("page cache read failed")
		return Page{}, false
	}
	if !ok {
		return Page{}, false
	}
	var p Page
	if err := json.Unmarshal(raw, &p); err != nil || p.URL != url {
		return Page{}, false
	}
	return p, true
}

// Put stores p, stamping SavedAt when unset.
func (c *PageCache) Put(ctx context.Context, p Page) error {
	if c == nil || c.Store == nil {
		return nil
	}
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	return c.Store.Save(ctx, pageKey(p.URL), b)
}
