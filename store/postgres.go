package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/docmap-io/docmap/query"
)

// PostgresStore keeps every collection in a single JSONB table:
//
//	documents(seq BIGSERIAL, collection TEXT, id TEXT, data JSONB,
//	          PRIMARY KEY (collection, id))
//
// seq preserves insertion order for Query; FindByIDs batches with ANY($1).
type PostgresStore struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	// Table is the documents table name
	Table string
	// Logger receives store-level debug logging; nil disables it
	Logger *zap.Logger
}

// DefaultPostgresConfig returns a default PostgreSQL configuration
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{Table: "documents"}
}

// NewPostgresStore creates a PostgreSQL-backed store over an open database
// handle. The handle may come from the lib/pq or pgx stdlib driver.
func NewPostgresStore(db *sql.DB, config PostgresConfig) *PostgresStore {
	if config.Table == "" {
		config.Table = "documents"
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, table: config.Table, logger: logger}
}

// EnsureSchema creates the documents table if it does not exist
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		seq BIGSERIAL,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data JSONB NOT NULL,
		PRIMARY KEY (collection, id)
	)`, pq.QuoteIdentifier(p.table))

	p.logger.Debug("ensuring documents table", zap.String("table", p.table))
	if _, err := p.db.ExecContext(ctx, stmt); err != nil {
		return translatePGError(err)
	}
	return nil
}

// Put upserts a document into a collection
func (p *PostgresStore) Put(ctx context.Context, collection string, doc Document) error {
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
		"INSERT INTO %s (collection, id, data) VALUES ($1, $2, $3) ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data",
		pq.QuoteIdentifier(p.table),
	)
	if _, err := p.db.ExecContext(ctx, stmt, collection, key, payload); err != nil {
		return translatePGError(err)
	}
	return nil
}

// Query streams the documents of a collection matching the filter, in
// insertion order. Eq/In/Exists predicates are pushed down to JSONB
// operators.
func (p *PostgresStore) Query(ctx context.Context, collection string, filter query.Filter) (Stream, error) {
	stmt := fmt.Sprintf("SELECT data FROM %s WHERE collection = $1", pq.QuoteIdentifier(p.table))
	args := []any{collection}

	if fragment, filterArgs := filter.SQL("data", 2); fragment != "" {
		stmt += " AND " + fragment
		args = append(args, filterArgs...)
	}
	stmt += " ORDER BY seq"

	rows, err := p.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, translatePGError(err)
	}
	return &sqlStream{rows: rows}, nil
}

// FindByIDs streams the documents whose identity is in the given set using
// a single batched query.
func (p *PostgresStore) FindByIDs(ctx context.Context, collection string, ids []any) (Stream, error) {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		key, err := idText(id)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return newDocStream(nil), nil
	}

	stmt := fmt.Sprintf(
		"SELECT data FROM %s WHERE collection = $1 AND id = ANY($2) ORDER BY seq",
		pq.QuoteIdentifier(p.table),
	)
	rows, err := p.db.QueryContext(ctx, stmt, collection, pq.Array(keys))
	if err != nil {
		return nil, translatePGError(err)
	}
	return &sqlStream{rows: rows}, nil
}

// Delete removes a document by identity
func (p *PostgresStore) Delete(ctx context.Context, collection string, id any) error {
	key, err := idText(id)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %s WHERE collection = $1 AND id = $2", pq.QuoteIdentifier(p.table))
	if _, err := p.db.ExecContext(ctx, stmt, collection, key); err != nil {
		return translatePGError(err)
	}
	return nil
}

// Close closes the database handle
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// ErrDuplicateKey is returned when an insert violates a unique constraint
var ErrDuplicateKey = errors.New("duplicate key")

// translatePGError maps driver-specific constraint errors onto store
// sentinels; everything else propagates unchanged. Both the pgx and lib/pq
// drivers are recognized.
func translatePGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.Detail)
		}
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pqErr.Detail)
		}
	}
	return err
}

// sqlStream lazily pulls documents from a SQL result set
type sqlStream struct {
	rows *sql.Rows
	cur  Document
	err  error
}

func (s *sqlStream) Next(ctx context.Context) bool {
	if s.err != nil || s.rows == nil {
		return false
	}
	if !s.rows.Next() {
		s.err = s.rows.Err()
		return false
	}

	var payload []byte
	if err := s.rows.Scan(&payload); err != nil {
		s.err = err
		return false
	}
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		s.err = fmt.Errorf("failed to unmarshal document: %w", err)
		return false
	}
	s.cur = doc
	return true
}

func (s *sqlStream) Doc() Document { return s.cur }

func (s *sqlStream) Err() error { return s.err }

func (s *sqlStream) Close() error {
	if s.rows == nil {
		return nil
	}
	return s.rows.Close()
}
