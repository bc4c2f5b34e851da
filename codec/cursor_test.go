package codec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/store"
)

// fakeStream replays a fixed document sequence, optionally failing after it
type fakeStream struct {
	docs   []store.Document
	pos    int
	err    error
	closed bool
}

func (s *fakeStream) Next(ctx context.Context) bool {
	if s.pos >= len(s.docs) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Doc() store.Document { return s.docs[s.pos-1] }

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func TestCursorIteration(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	stream := &fakeStream{docs: []store.Document{
		{"_id": "p1", "title": "first"},
		{"_id": "p2", "title": "second"},
	}}
	cursor := c.Wrap(context.Background(), stream, postType(t, r))
	defer cursor.Close()

	require.True(t, cursor.HasNext())
	// HasNext is a peek: asking twice does not consume
	require.True(t, cursor.HasNext())

	first, err := cursor.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", first.(*post).Title)

	second, err := cursor.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", second.(*post).Title)

	assert.False(t, cursor.HasNext())
	assert.NoError(t, cursor.Err())
}

func TestCursorNextPastEnd(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	cursor := c.Wrap(context.Background(), &fakeStream{}, postType(t, r))
	defer cursor.Close()

	_, err := cursor.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCursorNextAfterClose(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	stream := &fakeStream{docs: []store.Document{{"_id": "p1"}}}
	cursor := c.Wrap(context.Background(), stream, postType(t, r))

	require.NoError(t, cursor.Close())
	assert.True(t, stream.closed)
	// closing again is a no-op
	require.NoError(t, cursor.Close())

	_, err := cursor.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestCursorTryNext(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	stream := &fakeStream{docs: []store.Document{{"_id": "p1", "title": "only"}}}
	cursor := c.Wrap(context.Background(), stream, postType(t, r))
	defer cursor.Close()

	entity, err := cursor.TryNext()
	require.NoError(t, err)
	assert.Equal(t, "only", entity.(*post).Title)

	entity, err = cursor.TryNext()
	require.NoError(t, err)
	assert.Nil(t, entity)
}

func TestCursorAll(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	stream := &fakeStream{docs: []store.Document{
		{"_id": "p1"},
		{"_id": "p2"},
		{"_id": "p3"},
	}}
	cursor := c.Wrap(context.Background(), stream, postType(t, r))

	all, err := cursor.All()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, stream.closed)
}

func TestCursorSharesIdentityCache(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	// the same identity appearing twice in one result set decodes once
	stream := &fakeStream{docs: []store.Document{
		{"_id": "p1", "title": "first pass"},
		{"_id": "p1", "title": "second pass"},
	}}
	cursor := c.Wrap(context.Background(), stream, postType(t, r))
	defer cursor.Close()

	first, err := cursor.Next()
	require.NoError(t, err)
	second, err := cursor.Next()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, "first pass", second.(*post).Title)
}

func TestSeparateCursorsSeparateCaches(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})
	typ := postType(t, r)

	doc := store.Document{"_id": "p1"}
	first, err := c.Wrap(context.Background(), &fakeStream{docs: []store.Document{doc}}, typ).All()
	require.NoError(t, err)
	second, err := c.Wrap(context.Background(), &fakeStream{docs: []store.Document{doc}}, typ).All()
	require.NoError(t, err)

	assert.NotSame(t, first[0], second[0])
}

func TestCursorStreamErrorPropagates(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	boom := errors.New("backend went away")
	stream := &fakeStream{
		docs: []store.Document{{"_id": "p1"}},
		err:  boom,
	}
	cursor := c.Wrap(context.Background(), stream, postType(t, r))
	defer cursor.Close()

	_, err := cursor.Next()
	require.NoError(t, err)

	_, err = cursor.Next()
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, cursor.Err(), boom)
}

func TestCursorDecodeErrorStops(t *testing.T) {
	r := blogRegistry(t)
	c := New(r, &stubFetcher{})

	// tags must be an array; a scalar makes decoding fail
	stream := &fakeStream{docs: []store.Document{
		{"_id": "p1", "tags": "not-an-array"},
	}}
	cursor := c.Wrap(context.Background(), stream, postType(t, r))
	defer cursor.Close()

	_, err := cursor.Next()
	require.Error(t, err)
	assert.False(t, cursor.HasNext())
	assert.Error(t, cursor.Err())
}
