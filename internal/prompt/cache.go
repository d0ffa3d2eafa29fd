// cache.go provides an in-memory cache for compiled prompt templates so
// batch runs over many products parse each template body once. Entries
// are keyed by a hash of the body, so an edited template is a new key
// and never needs explicit invalidation.
package prompt

import (
	"crypto/sha256"
	"sync"
	"text/template"

	"go.uber.org/zap"
)

// defaultCacheSize bounds the number of compiled bodies held at once.
const defaultCacheSize = 256

type cacheKey [sha256.Size]byte

// templateCache is a concurrency-safe cache of compiled templates.
type templateCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*template.Template
	limit   int
}

func newTemplateCache(limit int) *templateCache {
	if limit <= 0 {
		limit = defaultCacheSize
	}
	return &templateCache{
		entries: make(map[cacheKey]*template.Template),
		limit:   limit,
	}
}

// get returns the compiled template for key, or nil on a miss.
func (c *templateCache) get(key cacheKey) *template.Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[key]
}

// put stores tmpl. When the cache is full it is emptied first.
func (c *templateCache) put(key cacheKey, tmpl *template.Template) (cleared bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.limit {
		c.entries = make(map[cacheKey]*template.Template)
		cleared = true
	}
	c.entries[key] = tmpl
	return cleared
}

func (c *templateCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Renderer renders prompt bodies, reusing compiled templates across calls.
// It is safe for concurrent use.
type Renderer struct {
	cache *templateCache
	log   *zap.Logger
}

// NewRenderer creates a Renderer holding up to size compiled bodies
// (size <= 0 selects the default).
func NewRenderer(size int, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{cache: newTemplateCache(size), log: log}
}

// Render behaves like the package-level Render.
func (r *Renderer) Render(body string, ctx Context) (string, error) {
	key := cacheKey(sha256.Sum256([]byte(body)))
	tmpl := r.cache.get(key)
	if tmpl == nil {
		var err error
		tmpl, err = parseBody(body)
		if err != nil {
			return "", err
		}
		if r.cache.put(key, tmpl) {
			r.log.Debug("prompt template cache cleared", zap.Int("limit", r.cache.limit))
		}
	}
	return execute(tmpl, ctx)
}
