package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docmap-io/docmap/query"
)

// RedisStore keeps documents as JSON strings under prefix:collection:id and
// tracks per-collection membership in an insertion-ordered list, so Query
// streams documents in the order they were first written.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig holds Redis-specific configuration
type RedisConfig struct {
	// Addr is the Redis server address (host:port)
	Addr string
	// Password is the Redis password (optional)
	Password string
	// DB is the Redis database number
	DB int
	// Prefix is prepended to all keys
	Prefix string
}

// DefaultRedisConfig returns a default Redis configuration
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "docmap:",
	}
}

// NewRedisStore creates a Redis-backed store and verifies the connection
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisStoreWithClient(client, config.Prefix), nil
}

// NewRedisStoreWithClient creates a Redis-backed store over an existing
// client; useful for tests.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) docKey(collection, id string) string {
	return r.prefix + collection + ":" + id
}

func (r *RedisStore) idsKey(collection string) string {
	return r.prefix + collection + ":__ids"
}

// Put upserts a document into a collection
func (r *RedisStore) Put(ctx context.Context, collection string, doc Document) error {
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

	docKey := r.docKey(collection, key)
	exists, err := r.client.Exists(ctx, docKey).Result()
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, docKey, payload, 0).Err(); err != nil {
		return err
	}
	if exists == 0 {
		return r.client.RPush(ctx, r.idsKey(collection), key).Err()
	}
	return nil
}

// Query streams the documents of a collection matching the filter. Filters
// are evaluated client-side; Redis holds the documents opaquely.
func (r *RedisStore) Query(ctx context.Context, collection string, filter query.Filter) (Stream, error) {
	ids, err := r.client.LRange(ctx, r.idsKey(collection), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return newDocStream(nil), nil
	}

	docs, err := r.fetchDocs(ctx, collection, ids)
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
func (r *RedisStore) FindByIDs(ctx context.Context, collection string, ids []any) (Stream, error) {
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

	docs, err := r.fetchDocs(ctx, collection, keys)
	if err != nil {
		return nil, err
	}
	return newDocStream(docs), nil
}

// fetchDocs loads and unmarshals documents in one MGET, skipping missing keys
func (r *RedisStore) fetchDocs(ctx context.Context, collection string, ids []string) ([]Document, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(collection, id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var docs []Document
	for _, v := range values {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var doc Document
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes a document by identity
func (r *RedisStore) Delete(ctx context.Context, collection string, id any) error {
	key, err := idText(id)
	if err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.docKey(collection, key)).Err(); err != nil {
		return err
	}
	return r.client.LRem(ctx, r.idsKey(collection), 0, key).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
