package mapping

import (
	"fmt"
	"math"
)

// IdentityCache maps (mapped type, identity value) to an already
// materialized instance. It is scoped to a single read operation: one
// cursor, or one reference-resolution pass. Within that scope, decoding the
// same identity twice yields the identical instance, which keeps shared
// subgraphs and cycles from being duplicated. A cache must never be shared
// across concurrent operations; each owner creates its own.
type IdentityCache struct {
	entries map[identityKey]any
}

type identityKey struct {
	typeName string
	id       string
}

// NewIdentityCache creates an empty cache
func NewIdentityCache() *IdentityCache {
	return &IdentityCache{entries: make(map[identityKey]any)}
}

// Lookup returns the cached instance for (t, id), if any
func (c *IdentityCache) Lookup(t *Type, id any) (any, bool) {
	key, err := IDString(id)
	if err != nil {
		return nil, false
	}
	entity, ok := c.entries[identityKey{t.name, key}]
	return entity, ok
}

// Store records an instance under (t, id). Instances are registered before
// their fields are populated so that cyclic references resolve to the
// in-progress instance.
func (c *IdentityCache) Store(t *Type, id, entity any) {
	key, err := IDString(id)
	if err != nil {
		return
	}
	c.entries[identityKey{t.name, key}] = entity
}

// Len returns the number of cached instances
func (c *IdentityCache) Len() int {
	return len(c.entries)
}

// IDString normalizes an identity value to its canonical string form.
// Integral values compare equal across int/int64/float64 representations,
// which matters after a JSON round-trip through a store backend.
func IDString(id any) (string, error) {
	if id == nil {
		return "", fmt.Errorf("identity cannot be nil")
	}

	switch v := id.(type) {
	case string:
		return v, nil
	case int:
		return fmt.Sprintf("%d", v), nil
	case int32:
		return fmt.Sprintf("%d", v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	case uint:
		return fmt.Sprintf("%d", v), nil
	case uint64:
		return fmt.Sprintf("%d", v), nil
	case float64:
		// JSON decodes numbers as float64; keep integral ids canonical
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return fmt.Sprintf("%d", int64(v)), nil
		}
		return fmt.Sprintf("%v", v), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprintf("%v", v), nil
	}
}
