// Package codec converts between mapped instances and raw documents using
// the frozen type descriptors. Decoding never touches the store: fields
// declared as references become unresolved wrappers that fetch on first
// access. Encoding is container-aware and skips unresolved references
// entirely, since a value that was never materialized needs no rewrite.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/refs"
	"github.com/docmap-io/docmap/store"
)

// Codec encodes and decodes instances of registered types
type Codec struct {
	registry *mapping.Registry
	fetcher  refs.Fetcher
}

// New creates a codec over a registry. The fetcher is handed to every
// reference wrapper the codec constructs during decode.
func New(registry *mapping.Registry, fetcher refs.Fetcher) *Codec {
	return &Codec{registry: registry, fetcher: fetcher}
}

// Registry returns the registry the codec decodes against
func (c *Codec) Registry() *mapping.Registry {
	return c.registry
}

// Encode converts an instance to its raw document form
func (c *Codec) Encode(entity any, t *mapping.Type) (store.Document, error) {
	if entity == nil {
		return nil, nil
	}

	doc := store.Document{}
	if t.Discriminated() {
		doc[mapping.DiscriminatorKey] = t.Name()
	}

	for _, f := range t.Fields() {
		if f.IsTransient() {
			continue
		}
		v := f.Value(entity)
		if v == nil {
			continue
		}

		if f.IsReference() {
			encoded := encodeReference(v)
			if encoded != nil {
				doc[f.StoredName()] = encoded
			}
			continue
		}

		if f.IsSerialized() {
			payload, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize field %s.%s: %w", t.Name(), f.Name(), err)
			}
			doc[f.StoredName()] = json.RawMessage(payload)
			continue
		}

		encoded, err := c.encodeField(f, v, t)
		if err != nil {
			return nil, err
		}
		doc[f.StoredName()] = encoded
	}
	return doc, nil
}

// encodeField applies the container-aware encoding rules for one field
func (c *Codec) encodeField(f *mapping.Field, v any, t *mapping.Type) (any, error) {
	switch f.Kind() {
	case mapping.KindSingle:
		return c.encodeValue(f, v, t)

	case mapping.KindArray, mapping.KindSlice, mapping.KindSet:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("field %s.%s: expected []any from accessor, got %T", t.Name(), f.Name(), v)
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			encoded, err := c.encodeValue(f, item, t)
			if err != nil {
				return nil, err
			}
			out = append(out, encoded)
		}
		return out, nil

	case mapping.KindMap:
		entries, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s.%s: expected map[string]any from accessor, got %T", t.Name(), f.Name(), v)
		}
		out := make(map[string]any, len(entries))
		for key, item := range entries {
			encoded, err := c.encodeValue(f, item, t)
			if err != nil {
				return nil, err
			}
			out[key] = encoded
		}
		return out, nil

	default:
		return nil, fmt.Errorf("field %s.%s: unknown kind %s", t.Name(), f.Name(), f.Kind())
	}
}

// encodeValue encodes one element: registered types recurse into nested
// documents, everything else passes through by value.
func (c *Codec) encodeValue(f *mapping.Field, v any, t *mapping.Type) (any, error) {
	if elem, ok := c.registry.Get(f.ConcreteType()); ok {
		return c.Encode(v, elem)
	}
	return v, nil
}

// encodeReference asks the wrapper for its raw identity form. Unresolved
// wrappers yield nil and the field is left unwritten.
func encodeReference(v any) any {
	switch ref := v.(type) {
	case *refs.Single:
		return ref.Encode()
	case *refs.Collection:
		return ref.Encode()
	case *refs.Map:
		return ref.Encode()
	default:
		return nil
	}
}
