package codec

import (
	"context"
	"errors"

	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/store"
)

// ErrExhausted is returned when a cursor is advanced past its end or after
// it has been closed.
var ErrExhausted = errors.New("cursor has no more elements")

// Cursor adapts a raw document stream into a lazy, single-pass sequence of
// decoded instances. One identity cache spans the cursor's lifetime, so
// duplicate identities within one result set decode to the same instance.
// Cursors are forward-only and not restartable; Close releases the
// underlying stream and must be called on every exit path.
type Cursor struct {
	ctx    context.Context
	stream store.Stream
	typ    *mapping.Type
	codec  *Codec
	cache  *mapping.IdentityCache

	pending    store.Document
	hasPending bool
	closed     bool
	err        error
}

// Wrap adapts a raw stream of documents of the given type
func (c *Codec) Wrap(ctx context.Context, stream store.Stream, t *mapping.Type) *Cursor {
	return &Cursor{
		ctx:    ctx,
		stream: stream,
		typ:    t,
		codec:  c,
		cache:  mapping.NewIdentityCache(),
	}
}

// HasNext reports whether another document is available, pulling one from
// the stream if needed. It may block on I/O.
func (c *Cursor) HasNext() bool {
	if c.closed || c.err != nil {
		return false
	}
	if c.hasPending {
		return true
	}
	if c.stream.Next(c.ctx) {
		c.pending = c.stream.Doc()
		c.hasPending = true
		return true
	}
	c.err = c.stream.Err()
	return false
}

// Next decodes and returns the next instance. Advancing past the end, or
// after Close, fails with ErrExhausted; stream errors propagate unchanged.
func (c *Cursor) Next() (any, error) {
	if !c.HasNext() {
		if c.err != nil {
			return nil, c.err
		}
		return nil, ErrExhausted
	}

	doc := c.pending
	c.pending = nil
	c.hasPending = false

	entity, err := c.codec.Decode(c.ctx, doc, c.typ, c.cache)
	if err != nil {
		c.err = err
		return nil, err
	}
	return entity, nil
}

// TryNext returns the next instance, or nil without error when the cursor
// is exhausted.
func (c *Cursor) TryNext() (any, error) {
	if !c.HasNext() {
		return nil, c.err
	}
	return c.Next()
}

// All decodes the remaining instances and closes the cursor, releasing the
// stream even when decoding fails part-way.
func (c *Cursor) All() ([]any, error) {
	defer c.Close()

	var out []any
	for c.HasNext() {
		entity, err := c.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// Err returns the first stream or decode error the cursor hit
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the underlying stream. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	c.hasPending = false
	return c.stream.Close()
}
