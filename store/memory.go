package store

import (
	"context"
	"sync"

	"github.com/docmap-io/docmap/query"
)

// MemoryStore is an in-memory Store. Collections preserve insertion order,
// which makes it the reference backend for tests and the demo.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	closed      bool
}

type memCollection struct {
	docs  map[string]Document
	order []string
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

// Put upserts a document into a collection
func (m *MemoryStore) Put(ctx context.Context, collection string, doc Document) error {
	id, ok := doc[idKey]
	if !ok || id == nil {
		return ErrMissingID
	}
	key, err := idText(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	c, ok := m.collections[collection]
	if !ok {
		c = &memCollection{docs: make(map[string]Document)}
		m.collections[collection] = c
	}
	if _, exists := c.docs[key]; !exists {
		c.order = append(c.order, key)
	}
	c.docs[key] = doc
	return nil
}

// Query streams the documents of a collection matching the filter, in
// insertion order.
func (m *MemoryStore) Query(ctx context.Context, collection string, filter query.Filter) (Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	c, ok := m.collections[collection]
	if !ok {
		return newDocStream(nil), nil
	}

	var docs []Document
	for _, key := range c.order {
		doc := c.docs[key]
		if filter.Matches(doc) {
			docs = append(docs, doc)
		}
	}
	return newDocStream(docs), nil
}

// FindByIDs streams the documents whose identity is in the given set
func (m *MemoryStore) FindByIDs(ctx context.Context, collection string, ids []any) (Stream, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	c, ok := m.collections[collection]
	if !ok {
		return newDocStream(nil), nil
	}

	var docs []Document
	for _, id := range ids {
		key, err := idText(id)
		if err != nil {
			continue
		}
		if doc, found := c.docs[key]; found {
			docs = append(docs, doc)
		}
	}
	return newDocStream(docs), nil
}

// Delete removes a document by identity
func (m *MemoryStore) Delete(ctx context.Context, collection string, id any) error {
	key, err := idText(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	c, ok := m.collections[collection]
	if !ok {
		return nil
	}
	if _, exists := c.docs[key]; !exists {
		return nil
	}
	delete(c.docs, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close marks the store closed; further operations fail with ErrClosed
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.collections = nil
	return nil
}
