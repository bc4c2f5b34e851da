package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	// registers the sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/docmap-io/docmap/query"
)

// SQLiteStore mirrors PostgresStore for embedded use: one table holding
// every collection, documents as JSON text. Filters are evaluated
// client-side to stay independent of the json1 extension.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// OpenSQLiteStore opens (or creates) a SQLite-backed store at the given
// path; use ":memory:" for an ephemeral store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db, table: "documents"}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		UNIQUE (collection, id)
	)`, s.table)
	_, err := s.db.ExecContext(ctx, stmt)
	return err
}

// Put upserts a document into a collection
func (s *SQLiteStore) Put(ctx context.Context, collection string, doc Document) error {
	id, ok := doc[idKey]
	if !ok || id == nil {
		return ErrMissingID
	}
	key, err := idText(id)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %q (collection, id, data) VALUES (?, ?, ?) ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data",
		s.table,
	)
	_, err = s.db.ExecContext(ctx, stmt, collection, key, string(payload))
	return err
}

// Query streams the documents of a collection matching the filter, in
// insertion order.
func (s *SQLiteStore) Query(ctx context.Context, collection string, filter query.Filter) (Stream, error) {
	docs, err := s.selectCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	var matched []Document
	for _, doc := range docs {
		if filter.Matches(doc) {
			matched = append(matched, doc)
		}
	}
	return newDocStream(matched), nil
}

// FindByIDs streams the documents whose identity is in the given set
func (s *SQLiteStore) FindByIDs(ctx context.Context, collection string, ids []any) (Stream, error) {
	keys := make(map[string]bool, len(ids))
	for _, id := range ids {
		key, err := idText(id)
		if err != nil {
			continue
		}
		keys[key] = true
	}
	if len(keys) == 0 {
		return newDocStream(nil), nil
	}

	docs, err := s.selectCollection(ctx, collection)
	if err != nil {
		return nil, err
	}

	var matched []Document
	for _, doc := range docs {
		key, err := idText(doc[idKey])
		if err != nil {
			continue
		}
		if keys[key] {
			matched = append(matched, doc)
		}
	}
	return newDocStream(matched), nil
}

func (s *SQLiteStore) selectCollection(ctx context.Context, collection string) ([]Document, error) {
	stmt := fmt.Sprintf("SELECT data FROM %q WHERE collection = ? ORDER BY seq", s.table)
	rows, err := s.db.QueryContext(ctx, stmt, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var doc Document
		if err := json.Unmarshal([]byte(payload), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Delete removes a document by identity
func (s *SQLiteStore) Delete(ctx context.Context, collection string, id any) error {
	key, err := idText(id)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %q WHERE collection = ? AND id = ?", s.table)
	_, err = s.db.ExecContext(ctx, stmt, collection, key)
	return err
}

// Close closes the database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
