// Package refs implements deferred references to stored documents: single,
// collection and keyed-map variants. A reference holds raw identity values
// until first access, then performs one batched fetch per distinct target
// collection and caches the result for the lifetime of the owning object.
// Dangling identities resolve to absence, never to an error.
package refs

import (
	"context"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/store"
)

// Fetcher performs the batched identity lookups a resolving reference
// needs. Implementations decode each result set with a fresh IdentityCache
// scoped to that fetch and key the returned map by canonical identity
// string (mapping.IDString). Missing ids are simply absent from the map.
type Fetcher interface {
	FetchByIDs(ctx context.Context, collection string, ids []any) (map[string]any, error)
}

// group is one collation bucket: the identities that resolve against a
// single target collection.
type group struct {
	collection string
	ids        []any
}

// collate buckets raw identity values by target collection, preserving
// first-seen group order. Values wrapped in a typed store.Ref carry their
// own collection; bare identities fall back to the declared target's
// collection. Collation is what keeps resolution at one query per distinct
// target collection even when a single field mixes targets.
func collate(defaultCollection string, raw []any) []group {
	var groups []group
	index := make(map[string]int)

	for _, v := range raw {
		collection := defaultCollection
		id := v
		if ref, ok := store.AsRef(v); ok {
			collection = ref.Collection
			id = ref.ID
		}

		i, seen := index[collection]
		if !seen {
			i = len(groups)
			index[collection] = i
			groups = append(groups, group{collection: collection})
		}
		groups[i].ids = append(groups[i].ids, id)
	}
	return groups
}

// fetchGroups issues one batched query per collation group and merges the
// decoded instances into a single lookup keyed by canonical identity.
func fetchGroups(ctx context.Context, fetcher Fetcher, groups []group) (map[string]any, error) {
	lookup := make(map[string]any)
	for _, g := range groups {
		found, err := fetcher.FetchByIDs(ctx, g.collection, g.ids)
		if err != nil {
			return nil, err
		}
		for key, entity := range found {
			lookup[key] = entity
		}
	}
	return lookup, nil
}

// lookupKey unwraps a raw identity value to its bare identity and
// normalizes it for lookup.
func lookupKey(raw any) (string, bool) {
	key, err := mapping.IDString(store.UnwrapID(raw))
	if err != nil {
		return "", false
	}
	return key, true
}

// sourceCollection returns the collection a raw identity value resolves
// against: a typed reference's own collection, or the declared target's.
// Resolution remembers it so that re-encoding keeps cross-collection
// pointers intact.
func sourceCollection(target *mapping.Type, raw any) string {
	if ref, ok := store.AsRef(raw); ok {
		return ref.Collection
	}
	return target.Collection()
}
