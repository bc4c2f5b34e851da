package refs

import (
	"context"
	"sync"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/store"
)

// Single is a deferred reference to one document. Unresolved it holds the
// raw identity (possibly a typed store.Ref carrying its own collection);
// first access issues exactly one batched lookup and caches the outcome.
type Single struct {
	mu      sync.Mutex
	ctx     context.Context
	fetcher Fetcher
	target  *mapping.Type
	rawID   any

	resolved bool
	value    any
	source   string
	err      error
}

// NewSingle creates an unresolved single reference
func NewSingle(ctx context.Context, fetcher Fetcher, target *mapping.Type, rawID any) *Single {
	return &Single{ctx: ctx, fetcher: fetcher, target: target, rawID: rawID}
}

// ResolvedSingle creates a reference already holding its value
func ResolvedSingle(target *mapping.Type, value any) *Single {
	return &Single{target: target, value: value, resolved: true}
}

// Get returns the referenced entity, resolving it on first access. A
// dangling reference resolves to nil, not an error. Concurrent first access
// is serialized by a per-reference mutex; the store is queried once.
func (s *Single) Get() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		return s.value, s.err
	}

	collection := s.target.Collection()
	id := s.rawID
	if ref, ok := store.AsRef(s.rawID); ok {
		collection = ref.Collection
		id = ref.ID
	}

	found, err := s.fetcher.FetchByIDs(s.ctx, collection, []any{id})
	if err != nil {
		s.resolved = true
		s.err = err
		return nil, err
	}
	if key, ok := lookupKey(id); ok {
		s.value = found[key]
	}
	s.source = collection
	s.resolved = true
	return s.value, nil
}

// IsResolved reports whether the reference has been materialized
func (s *Single) IsResolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolved
}

// Set replaces the referenced value and marks the reference resolved
func (s *Single) Set(value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.source = ""
	s.err = nil
	s.resolved = true
}

// Encode re-derives the raw identity from the resolved value. A value that
// was resolved out of a collection other than the declared target's keeps
// its collection pointer as a typed store.Ref. An unresolved reference
// encodes to nil: the field was never materialized, so there is nothing to
// rewrite.
func (s *Single) Encode() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.resolved || s.err != nil || s.value == nil {
		return nil
	}
	id := s.target.ID(s.value)
	if s.source != "" && s.source != s.target.Collection() {
		return store.Ref{Collection: s.source, ID: id}
	}
	return id
}
