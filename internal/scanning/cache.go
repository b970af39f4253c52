package scanning

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached wraps a Scanner and remembers the text of images it has already read,
// keyed by the SHA-256 of the image bytes. Failures are not cached.
type Cached struct {
	next  Scanner
	cache *cache.Cache
}

// NewCached creates a caching Scanner. A ttl of zero or less disables expiry.
func NewCached(next Scanner, ttl time.Duration) *Cached {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 2 * ttl
	}
	return &Cached{
		next:  next,
		cache: cache.New(expiration, cleanup),
	}
}

// ExtractText returns cached text for a previously seen image or delegates to the wrapped Scanner
func (c *Cached) ExtractText(ctx context.Context, imageData []byte, contentType string) (string, error) {
	sum := sha256.Sum256(imageData)
	key := hex.EncodeToString(sum[:])

	if text, ok := c.cache.Get(key); ok {
		slog.Debug("OCR cache hit", "digest", key)
		return text.(string), nil
	}

	text, err := c.next.ExtractText(ctx, imageData, contentType)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, text, cache.DefaultExpiration)
	return text, nil
}

// Close closes the wrapped Scanner
func (c *Cached) Close() error {
	return c.next.Close()
}

// Unwrap returns the wrapped Scanner
func (c *Cached) Unwrap() Scanner {
	return c.next
}
