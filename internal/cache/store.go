// Package cache stores scrape results, completions and HTTP bodies so that
// repeated requests for the same input avoid browsers and providers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Store is a byte cache addressed by opaque keys. A miss is reported as
// ok=false with a nil error. Implementations are safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte) error
}

// KeyFrom builds a cache key as the hex sha256 of the parts joined by blank
// lines.
func KeyFrom(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\n\n")))
	return hex.EncodeToString(h[:])
}
