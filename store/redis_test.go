package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmap-io/docmap/query"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStoreWithClient(client, "docmap:")
}

func TestRedisStorePutAndQuery(t *testing.T) {
	ctx := context.Background()
	r := newTestRedisStore(t)

	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "a", "title": "first"}))
	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "b", "title": "second"}))

	stream, err := r.Query(ctx, "posts", nil)
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["_id"])
	assert.Equal(t, "b", docs[1]["_id"])
}

func TestRedisStorePutRequiresID(t *testing.T) {
	r := newTestRedisStore(t)
	err := r.Put(context.Background(), "posts", Document{"title": "no id"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestRedisStoreUpsertDoesNotDuplicateOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRedisStore(t)

	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "a", "v": float64(1)}))
	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "a", "v": float64(2)}))

	stream, err := r.Query(ctx, "posts", nil)
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 1)
	assert.Equal(t, float64(2), docs[0]["v"])
}

func TestRedisStoreQueryFilter(t *testing.T) {
	ctx := context.Background()
	r := newTestRedisStore(t)

	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "a", "title": "keep"}))
	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "b", "title": "skip"}))

	stream, err := r.Query(ctx, "posts", query.Eq("title", "keep"))
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0]["_id"])
}

func TestRedisStoreFindByIDsSkipsMissing(t *testing.T) {
	ctx := context.Background()
	r := newTestRedisStore(t)

	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "a"}))
	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "b"}))

	stream, err := r.FindByIDs(ctx, "posts", []any{"a", "ghost", "b"})
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["_id"])
	assert.Equal(t, "b", docs[1]["_id"])
}

func TestRedisStoreRefSurvivesRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newTestRedisStore(t)

	doc := Document{"_id": "p1", "author": Ref{Collection: "authors", ID: "a1"}}
	require.NoError(t, r.Put(ctx, "posts", doc))

	stream, err := r.FindByIDs(ctx, "posts", []any{"p1"})
	require.NoError(t, err)
	docs := drain(t, stream)
	require.Len(t, docs, 1)

	// the typed ref comes back as a {"$ref","$id"} map; AsRef recovers it
	ref, ok := AsRef(docs[0]["author"])
	require.True(t, ok)
	assert.Equal(t, "authors", ref.Collection)
	assert.Equal(t, "a1", ref.ID)
}

func TestRedisStoreDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRedisStore(t)

	require.NoError(t, r.Put(ctx, "posts", Document{"_id": "a"}))
	require.NoError(t, r.Delete(ctx, "posts", "a"))

	stream, err := r.Query(ctx, "posts", nil)
	require.NoError(t, err)
	assert.Empty(t, drain(t, stream))
}

func TestRedisStoreEmptyCollection(t *testing.T) {
	ctx := context.Background()
	r := newTestRedisStore(t)

	stream, err := r.Query(ctx, "empty", nil)
	require.NoError(t, err)
	assert.Empty(t, drain(t, stream))

	stream, err = r.FindByIDs(ctx, "empty", nil)
	require.NoError(t, err)
	assert.Empty(t, drain(t, stream))
}
