package refs

import (
	"context"
	"sync"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/store"
)

// Collection is a deferred reference to an ordered sequence of documents,
// possibly spanning multiple target collections. Resolution issues one
// batched query per distinct target collection and rebuilds the sequence in
// the original raw-identity order; dangling identities are silently dropped,
// so the resolved sequence may be shorter than the raw one.
type Collection struct {
	mu      sync.Mutex
	ctx     context.Context
	fetcher Fetcher
	target  *mapping.Type
	rawIDs  []any

	resolved bool
	values   []any
	sources  []string
	err      error
}

// NewCollection creates an unresolved collection reference
func NewCollection(ctx context.Context, fetcher Fetcher, target *mapping.Type, rawIDs []any) *Collection {
	return &Collection{ctx: ctx, fetcher: fetcher, target: target, rawIDs: rawIDs}
}

// ResolvedCollection creates a reference already holding its values
func ResolvedCollection(target *mapping.Type, values []any) *Collection {
	return &Collection{target: target, values: values, resolved: true}
}

// Get returns the referenced entities in raw-identity order, resolving them
// on first access. Concurrent first access is serialized; repeated calls
// issue no further queries.
func (c *Collection) Get() ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resolved {
		return c.values, c.err
	}

	lookup, err := fetchGroups(c.ctx, c.fetcher, collate(c.target.Collection(), c.rawIDs))
	if err != nil {
		c.resolved = true
		c.err = err
		return nil, err
	}

	values := make([]any, 0, len(c.rawIDs))
	sources := make([]string, 0, len(c.rawIDs))
	for _, raw := range c.rawIDs {
		key, ok := lookupKey(raw)
		if !ok {
			continue
		}
		if entity, found := lookup[key]; found {
			values = append(values, entity)
			sources = append(sources, sourceCollection(c.target, raw))
		}
	}
	c.values = values
	c.sources = sources
	c.resolved = true
	return c.values, nil
}

// IsResolved reports whether the reference has been materialized
func (c *Collection) IsResolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

// Set replaces the referenced values and marks the reference resolved
func (c *Collection) Set(values []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = values
	c.sources = nil
	c.err = nil
	c.resolved = true
}

// Encode re-derives the raw identities from the resolved values, in order.
// Entries resolved out of another collection keep their collection pointer
// as typed store.Ref values. An unresolved reference encodes to nil.
func (c *Collection) Encode() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.resolved || c.err != nil {
		return nil
	}
	ids := make([]any, 0, len(c.values))
	for i, v := range c.values {
		id := c.target.ID(v)
		if i < len(c.sources) && c.sources[i] != c.target.Collection() {
			ids = append(ids, store.Ref{Collection: c.sources[i], ID: id})
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
