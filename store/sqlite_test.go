package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmap-io/docmap/query"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorePutAndQuery(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "b", "title": "second"}))
	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "a", "title": "first"}))

	stream, err := s.Query(ctx, "posts", nil)
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0]["_id"])
	assert.Equal(t, "a", docs[1]["_id"])
}

func TestSQLiteStorePutRequiresID(t *testing.T) {
	s := newTestSQLiteStore(t)
	err := s.Put(context.Background(), "posts", Document{"title": "no id"})
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestSQLiteStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "a", "v": float64(1)}))
	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "a", "v": float64(2)}))

	stream, err := s.Query(ctx, "posts", nil)
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 1)
	assert.Equal(t, float64(2), docs[0]["v"])
}

func TestSQLiteStoreQueryFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "a", "title": "keep"}))
	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "b", "title": "skip"}))

	stream, err := s.Query(ctx, "posts", query.Eq("title", "keep"))
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0]["_id"])
}

func TestSQLiteStoreFindByIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Put(ctx, "posts", Document{"_id": int64(7), "title": "seven"}))
	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "b", "title": "bee"}))

	stream, err := s.FindByIDs(ctx, "posts", []any{float64(7), "ghost"})
	require.NoError(t, err)
	docs := drain(t, stream)

	require.Len(t, docs, 1)
	assert.Equal(t, "seven", docs[0]["title"])
}

func TestSQLiteStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "a"}))
	require.NoError(t, s.Delete(ctx, "posts", "a"))

	stream, err := s.Query(ctx, "posts", nil)
	require.NoError(t, err)
	assert.Empty(t, drain(t, stream))
}

func TestSQLiteStoreCollectionsIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLiteStore(t)

	require.NoError(t, s.Put(ctx, "posts", Document{"_id": "a"}))
	require.NoError(t, s.Put(ctx, "authors", Document{"_id": "a"}))

	stream, err := s.Query(ctx, "posts", nil)
	require.NoError(t, err)
	assert.Len(t, drain(t, stream), 1)
}
