package refs

import (
	"context"
	"sync"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/store"
)

// Map is a deferred reference keyed by arbitrary application-chosen string
// keys, each entry pointing at its own document. Per-entry identities may
// target heterogeneous collections; they are collated before resolution.
// Keys whose target document is missing are silently omitted from the
// resolved mapping.
type Map struct {
	mu      sync.Mutex
	ctx     context.Context
	fetcher Fetcher
	target  *mapping.Type
	rawIDs  map[string]any

	resolved bool
	values   map[string]any
	sources  map[string]string
	err      error
}

// NewMap creates an unresolved map reference
func NewMap(ctx context.Context, fetcher Fetcher, target *mapping.Type, rawIDs map[string]any) *Map {
	return &Map{ctx: ctx, fetcher: fetcher, target: target, rawIDs: rawIDs}
}

// ResolvedMap creates a reference already holding its values
func ResolvedMap(target *mapping.Type, values map[string]any) *Map {
	return &Map{target: target, values: values, resolved: true}
}

// Get returns the referenced entities keyed as in the raw mapping,
// resolving them on first access. The key set of the result is a subset of
// the raw key set: entries whose target was not found are omitted.
func (m *Map) Get() (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.resolved {
		return m.values, m.err
	}

	raw := make([]any, 0, len(m.rawIDs))
	for _, v := range m.rawIDs {
		raw = append(raw, v)
	}

	lookup, err := fetchGroups(m.ctx, m.fetcher, collate(m.target.Collection(), raw))
	if err != nil {
		m.resolved = true
		m.err = err
		return nil, err
	}

	values := make(map[string]any, len(m.rawIDs))
	sources := make(map[string]string, len(m.rawIDs))
	for key, rawID := range m.rawIDs {
		id, ok := lookupKey(rawID)
		if !ok {
			continue
		}
		if entity, found := lookup[id]; found {
			values[key] = entity
			sources[key] = sourceCollection(m.target, rawID)
		}
	}
	m.values = values
	m.sources = sources
	m.resolved = true
	return m.values, nil
}

// IsResolved reports whether the reference has been materialized
func (m *Map) IsResolved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved
}

// Set replaces the referenced values and marks the reference resolved
func (m *Map) Set(values map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = values
	m.sources = nil
	m.err = nil
	m.resolved = true
}

// Encode re-derives the raw identity mapping from the resolved values.
// Entries resolved out of another collection keep their collection pointer
// as typed store.Ref values. An unresolved reference encodes to nil.
func (m *Map) Encode() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.resolved || m.err != nil {
		return nil
	}
	ids := make(map[string]any, len(m.values))
	for key, v := range m.values {
		id := m.target.ID(v)
		if source, ok := m.sources[key]; ok && source != m.target.Collection() {
			ids[key] = store.Ref{Collection: source, ID: id}
			continue
		}
		ids[key] = id
	}
	return ids
}
