// Package docmap maps plain Go structs to documents in a schema-flexible
// document store. Applications declare mapping descriptors once, register
// them, and use the Datastore facade to save, query and lazily resolve
// references between documents.
package docmap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docmap-io/docmap/codec"
	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/query"
	"github.com/docmap-io/docmap/store"
)

// Datastore composes a store backend with a descriptor registry and the
// codec. It is the fetcher behind every reference the codec hands out.
type Datastore struct {
	store    store.Store
	registry *mapping.Registry
	codec    *codec.Codec
	logger   *zap.Logger
}

// Option customizes a Datastore
type Option func(*Datastore)

// WithLogger attaches a logger; the default is a no-op logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Datastore) {
		d.logger = logger
	}
}

// New creates a Datastore over a backend and a fully populated registry.
// Cross-type validation runs here, so malformed mapping declarations fail
// before the first query.
func New(st store.Store, registry *mapping.Registry, opts ...Option) (*Datastore, error) {
	if err := registry.ValidateAll(); err != nil {
		return nil, err
	}

	d := &Datastore{
		store:    st,
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.codec = codec.New(registry, d)
	return d, nil
}

// Registry returns the descriptor registry
func (d *Datastore) Registry() *mapping.Registry {
	return d.registry
}

// Codec returns the codec bound to this datastore
func (d *Datastore) Codec() *codec.Codec {
	return d.codec
}

// Find executes a filter against the collection of the named type and
// returns a cursor of decoded instances. The caller owns the cursor and
// must close it.
func (d *Datastore) Find(ctx context.Context, typeName string, filter query.Filter) (*codec.Cursor, error) {
	t, ok := d.registry.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("type %q is not registered", typeName)
	}

	stream, err := d.store.Query(ctx, t.Collection(), filter)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("query executed",
		zap.String("type", typeName),
		zap.String("collection", t.Collection()))
	return d.codec.Wrap(ctx, stream, t), nil
}

// Get fetches a single instance by identity. A missing document yields
// (nil, nil).
func (d *Datastore) Get(ctx context.Context, typeName string, id any) (any, error) {
	t, ok := d.registry.Get(typeName)
	if !ok {
		return nil, fmt.Errorf("type %q is not registered", typeName)
	}

	found, err := d.FetchByIDs(ctx, t.Collection(), []any{id})
	if err != nil {
		return nil, err
	}
	key, err := mapping.IDString(id)
	if err != nil {
		return nil, err
	}
	return found[key], nil
}

// Save encodes an instance and upserts it into the type's collection.
// Instances without an identity are assigned a fresh UUID before encoding.
func (d *Datastore) Save(ctx context.Context, typeName string, entity any) error {
	t, ok := d.registry.Get(typeName)
	if !ok {
		return fmt.Errorf("type %q is not registered", typeName)
	}
	idField := t.IDField()
	if idField == nil {
		return fmt.Errorf("type %q has no identity field", typeName)
	}

	if idField.Value(entity) == nil {
		idField.SetValue(entity, uuid.NewString())
	}

	doc, err := d.codec.Encode(entity, t)
	if err != nil {
		return err
	}
	if err := d.store.Put(ctx, t.Collection(), doc); err != nil {
		return err
	}
	d.logger.Debug("document saved",
		zap.String("type", typeName),
		zap.String("collection", t.Collection()))
	return nil
}

// Delete removes a document by identity
func (d *Datastore) Delete(ctx context.Context, typeName string, id any) error {
	t, ok := d.registry.Get(typeName)
	if !ok {
		return fmt.Errorf("type %q is not registered", typeName)
	}
	return d.store.Delete(ctx, t.Collection(), id)
}

// FetchByIDs implements the reference fetcher: one batched query against a
// collection, results decoded with a fresh identity cache scoped to this
// fetch and keyed by canonical identity string.
func (d *Datastore) FetchByIDs(ctx context.Context, collection string, ids []any) (map[string]any, error) {
	t, ok := d.registry.ByCollection(collection)
	if !ok {
		return nil, fmt.Errorf("collection %q is not mapped", collection)
	}

	stream, err := d.store.FindByIDs(ctx, collection, ids)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	cache := mapping.NewIdentityCache()
	found := make(map[string]any)
	for stream.Next(ctx) {
		doc := stream.Doc()
		key, err := mapping.IDString(doc[mapping.IDKey])
		if err != nil {
			continue
		}
		entity, err := d.codec.Decode(ctx, doc, t, cache)
		if err != nil {
			return nil, err
		}
		found[key] = entity
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

// Close releases the backend
func (d *Datastore) Close() error {
	return d.store.Close()
}
