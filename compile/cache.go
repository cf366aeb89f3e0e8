package compile

import (
	"strconv"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"

	"github.com/heronql/heron/dialect"
	"github.com/heronql/heron/ir"
)

// Cache memoizes rendered query text keyed by (tree fingerprint, dialect,
// options). Compilation is referentially transparent, so a hit is always
// byte-identical to a fresh compile.
type Cache struct {
	cache *ristretto.Cache
}

// NewCache builds a cache bounded to roughly maxBytes of rendered text.
func NewCache(maxBytes int64) (*Cache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "couldn't initialize compile cache")
	}
	return &Cache{cache: cache}, nil
}

// Rendered returns the rendered text for root, compiling on a miss.
func (c *Cache) Rendered(b *ir.Builder, root *ir.Node, d *dialect.Dialect, opts Options) (string, error) {
	key := strconv.FormatUint(root.Fingerprint(), 16) + "/" + d.Name +
		"/" + strconv.FormatBool(opts.ApplyRewrites) + "/" + strconv.FormatBool(opts.ForceQuoting)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(string), nil
	}
	query, err := Compile(b, root, d, opts)
	if err != nil {
		return "", err
	}
	rendered := query.Render()
	c.cache.Set(key, rendered, int64(len(rendered)))
	return rendered, nil
}

// Close releases the cache's internal goroutines.
func (c *Cache) Close() {
	c.cache.Close()
}
