package dialect

import (
	"sync"

	"github.com/tidwall/btree"

	"github.com/heronql/heron"
)

// Registry maps dialect names to descriptors. It is an explicit value passed
// to whoever needs it; there is no package-level registry to mutate from a
// distance. Iteration order is the sorted name order.
type Registry struct {
	mu       sync.RWMutex
	dialects btree.Map[string, *Dialect]
}

// NewRegistry returns a registry holding the given dialects.
func NewRegistry(dialects ...*Dialect) *Registry {
	r := &Registry{}
	for _, d := range dialects {
		r.Register(d)
	}
	return r
}

// Default returns a registry with every built-in dialect.
func Default() *Registry {
	return NewRegistry(
		Postgres(),
		DuckDB(),
		SQLite(),
		MySQL(),
		BigQuery(),
		ClickHouse(),
	)
}

// Register adds or replaces a dialect under its name.
func (r *Registry) Register(d *Dialect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dialects.Set(d.Name, d)
}

// Get looks a dialect up by name.
func (r *Registry) Get(name string) (*Dialect, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.dialects.Get(name)
	if !ok {
		return nil, &heron.UnknownDialectError{Name: name}
	}
	return d, nil
}

// Names lists the registered dialect names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, r.dialects.Len())
	r.dialects.Scan(func(name string, _ *Dialect) bool {
		out = append(out, name)
		return true
	})
	return out
}
