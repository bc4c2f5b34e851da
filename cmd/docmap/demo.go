package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fatih/color"
	// registers the postgres driver for the postgres backend
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/docmap-io/docmap"
	"github.com/docmap-io/docmap/mapping"
	"github.com/docmap-io/docmap/query"
	"github.com/docmap-io/docmap/refs"
	"github.com/docmap-io/docmap/store"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a small end-to-end mapping walkthrough",
	Long: `Registers a blog schema (authors and posts), seeds a few documents
into the configured backend, runs a query and resolves references.

Backend selection comes from config or environment:
  store.backend   memory | redis | postgres | sqlite   (DOCMAP_STORE_BACKEND)
  redis.addr      host:port                            (DOCMAP_REDIS_ADDR)
  postgres.dsn    connection string                    (DOCMAP_POSTGRES_DSN)
  sqlite.path     database file, ":memory:" works      (DOCMAP_SQLITE_PATH)`,
	RunE: runDemo,
}

var verbose bool

func init() {
	demoCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("sqlite.path", ":memory:")
	viper.SetEnvPrefix("docmap")
	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
	}
	defer logger.Sync()

	backend, err := openBackend()
	if err != nil {
		return err
	}

	registry := mapping.NewRegistry()
	if err := registerBlogSchema(registry); err != nil {
		return err
	}

	ds, err := docmap.New(backend, registry, docmap.WithLogger(logger))
	if err != nil {
		return err
	}
	defer ds.Close()

	if err := seed(ctx, ds); err != nil {
		return err
	}

	heading := color.New(color.FgCyan, color.Bold)
	heading.Println("posts titled 'Lazy references':")

	cursor, err := ds.Find(ctx, "Post", query.Eq("title", "Lazy references"))
	if err != nil {
		return err
	}
	defer cursor.Close()

	for cursor.HasNext() {
		entity, err := cursor.Next()
		if err != nil {
			return err
		}
		post := entity.(*Post)
		fmt.Printf("  %s (tags %v)\n", post.Title, post.Tags)

		author, err := post.Author.Get()
		if err != nil {
			return err
		}
		if author != nil {
			color.Green("    by %s", author.(*Author).Name)
		}
	}
	return nil
}

func openBackend() (store.Store, error) {
	switch backend := viper.GetString("store.backend"); backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Addr:   viper.GetString("redis.addr"),
			Prefix: "docmap:",
		})
	case "postgres":
		db, err := sql.Open("postgres", viper.GetString("postgres.dsn"))
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(db, store.DefaultPostgresConfig())
		if err := pg.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, err
		}
		return pg, nil
	case "sqlite":
		return store.OpenSQLiteStore(viper.GetString("sqlite.path"))
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

func seed(ctx context.Context, ds *docmap.Datastore) error {
	ana := &Author{ID: "a1", Name: "Ana"}
	if err := ds.Save(ctx, "Author", ana); err != nil {
		return err
	}

	authorType, _ := ds.Registry().Get("Author")
	post := &Post{
		Title:  "Lazy references",
		Tags:   []string{"go", "documents"},
		Author: refs.ResolvedSingle(authorType, ana),
	}
	return ds.Save(ctx, "Post", post)
}
