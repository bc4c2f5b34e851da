package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/refs"
	"github.com/docmap-io/docmap/store"
)

// Decode converts a raw document into an instance of the given type,
// consulting the identity cache first. New instances are registered in the
// cache before their fields are populated, so shared subgraphs and cycles
// resolve to the same in-progress instance. Reference fields become
// unresolved wrappers; no store access happens here.
func (c *Codec) Decode(ctx context.Context, doc store.Document, t *mapping.Type, cache *mapping.IdentityCache) (any, error) {
	if doc == nil {
		return nil, nil
	}

	// a discriminator switches decoding to the concrete subtype
	if name, ok := doc[mapping.DiscriminatorKey].(string); ok && name != t.Name() {
		if sub, found := c.registry.Get(name); found {
			t = sub
		}
	}

	id, hasID := doc[mapping.IDKey]
	cacheable := hasID && id != nil && t.IDField() != nil && cache != nil
	if cacheable {
		if cached, ok := cache.Lookup(t, id); ok {
			return cached, nil
		}
	}

	entity := t.New()
	if cacheable {
		cache.Store(t, id, entity)
	}

	for _, f := range t.Fields() {
		if f.IsTransient() {
			continue
		}
		raw, present := doc[f.StoredName()]
		if !present || raw == nil {
			continue
		}

		if f.IsReference() {
			if err := c.decodeReference(ctx, entity, f, raw, t); err != nil {
				return nil, err
			}
			continue
		}

		if f.IsSerialized() {
			value, err := decodeSerialized(raw)
			if err != nil {
				return nil, fmt.Errorf("failed to deserialize field %s.%s: %w", t.Name(), f.Name(), err)
			}
			f.SetValue(entity, value)
			continue
		}

		value, err := c.decodeField(ctx, f, raw, t, cache)
		if err != nil {
			return nil, err
		}
		f.SetValue(entity, value)
	}
	return entity, nil
}

// decodeField applies the container-aware decoding rules for one field
func (c *Codec) decodeField(ctx context.Context, f *mapping.Field, raw any, t *mapping.Type, cache *mapping.IdentityCache) (any, error) {
	switch f.Kind() {
	case mapping.KindSingle:
		return c.decodeValue(ctx, f, raw, cache)

	case mapping.KindArray, mapping.KindSlice, mapping.KindSet:
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("field %s.%s: expected array in document, got %T", t.Name(), f.Name(), raw)
		}
		out := make([]any, 0, len(items))
		for _, item := range items {
			value, err := c.decodeValue(ctx, f, item, cache)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
		}
		return out, nil

	case mapping.KindMap:
		entries, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %s.%s: expected document in document, got %T", t.Name(), f.Name(), raw)
		}
		out := make(map[string]any, len(entries))
		for key, item := range entries {
			value, err := c.decodeValue(ctx, f, item, cache)
			if err != nil {
				return nil, err
			}
			out[key] = value
		}
		return out, nil

	default:
		return nil, fmt.Errorf("field %s.%s: unknown kind %s", t.Name(), f.Name(), f.Kind())
	}
}

// decodeValue decodes one element: nested documents of registered types
// recurse with the same cache, everything else passes through by value.
func (c *Codec) decodeValue(ctx context.Context, f *mapping.Field, raw any, cache *mapping.IdentityCache) (any, error) {
	if elem, ok := c.registry.Get(f.ConcreteType()); ok {
		sub, isDoc := raw.(map[string]any)
		if !isDoc {
			return nil, fmt.Errorf("embedded field %s: expected document, got %T", f.Name(), raw)
		}
		return c.Decode(ctx, sub, elem, cache)
	}
	return raw, nil
}

// decodeReference wraps raw identity data in the matching reference variant
func (c *Codec) decodeReference(ctx context.Context, entity any, f *mapping.Field, raw any, t *mapping.Type) error {
	target, ok := c.registry.Get(f.ConcreteType())
	if !ok {
		return fmt.Errorf("field %s.%s: reference target %q is not registered", t.Name(), f.Name(), f.ConcreteType())
	}

	switch f.Kind() {
	case mapping.KindSingle:
		f.SetValue(entity, refs.NewSingle(ctx, c.fetcher, target, raw))
		return nil

	case mapping.KindSlice, mapping.KindSet:
		ids, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("field %s.%s: expected array of identities, got %T", t.Name(), f.Name(), raw)
		}
		f.SetValue(entity, refs.NewCollection(ctx, c.fetcher, target, ids))
		return nil

	case mapping.KindMap:
		ids, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("field %s.%s: expected identity mapping, got %T", t.Name(), f.Name(), raw)
		}
		f.SetValue(entity, refs.NewMap(ctx, c.fetcher, target, ids))
		return nil

	default:
		return fmt.Errorf("field %s.%s: references cannot be %s", t.Name(), f.Name(), f.Kind())
	}
}

// decodeSerialized recovers a serialized blob into its generic value form.
// The blob survives either as raw JSON bytes (memory backend) or as the
// already-decoded value (after a JSON round-trip through a SQL or Redis
// backend).
func decodeSerialized(raw any) (any, error) {
	var payload []byte
	switch b := raw.(type) {
	case json.RawMessage:
		payload = b
	case []byte:
		payload = b
	case string:
		payload = []byte(b)
	default:
		return raw, nil
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		return nil, err
	}
	return value, nil
}
