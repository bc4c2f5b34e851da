// Package store defines the narrow interface the mapping engine consumes
// from a document store, plus the backends that implement it: an in-memory
// store, Redis, PostgreSQL (JSONB) and SQLite. The engine never sees wire
// protocols or cursors beyond the Stream interface here.
package store

import (
	"context"
	"errors"

	"github.com/docmap-io/docmap/query"
)

// Document is the raw stored representation: an opaque keyed mapping with
// string keys.
type Document = map[string]any

// Stream is a forward-only, single-pass sequence of raw documents.
// Close must be called on every exit path; Next returns false once the
// stream is exhausted or after an error, which Err then reports.
type Stream interface {
	Next(ctx context.Context) bool
	Doc() Document
	Err() error
	Close() error
}

// Store is the collaborator interface over a document database. I/O
// failures are returned unchanged; retry policy belongs to the caller.
type Store interface {
	// Query executes a filter against a collection and streams the raw
	// matching documents.
	Query(ctx context.Context, collection string, filter query.Filter) (Stream, error)

	// FindByIDs streams the documents of a collection whose identity is in
	// the given set. Missing ids are simply absent from the stream.
	FindByIDs(ctx context.Context, collection string, ids []any) (Stream, error)

	// Put upserts a document; the document must carry its identity under
	// the reserved key.
	Put(ctx context.Context, collection string, doc Document) error

	// Delete removes a document by identity. Deleting a missing document
	// is not an error.
	Delete(ctx context.Context, collection string, id any) error

	// Close releases the backend connection
	Close() error
}

var (
	// ErrMissingID is returned by Put when the document carries no identity
	ErrMissingID = errors.New("document has no identity value")

	// ErrClosed is returned when an operation is attempted on a closed store
	ErrClosed = errors.New("store is closed")
)

// idKey mirrors the reserved identity key of the mapping layer. The store
// package stays independent of the mapping package, so the constant is
// duplicated here.
const idKey = "_id"

// docStream is a Stream over an in-memory slice of documents. The SQL and
// Redis backends materialize their results and serve them through it.
type docStream struct {
	docs   []Document
	cur    Document
	err    error
	closed bool
}

func newDocStream(docs []Document) *docStream {
	return &docStream{docs: docs}
}

func (s *docStream) Next(ctx context.Context) bool {
	if s.closed || s.err != nil || len(s.docs) == 0 {
		return false
	}
	if err := ctx.Err(); err != nil {
		s.err = err
		return false
	}
	s.cur = s.docs[0]
	s.docs = s.docs[1:]
	return true
}

func (s *docStream) Doc() Document { return s.cur }

func (s *docStream) Err() error { return s.err }

func (s *docStream) Close() error {
	s.closed = true
	s.docs = nil
	return nil
}
