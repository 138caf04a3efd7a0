// Package catalog keeps a SQLite table of every district and mouza name so
// that the API can answer substring searches without scanning the index.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver
	"github.com/patrickmn/go-cache"
	"mouzamap.org/internal/appconf"
	"mouzamap.org/internal/logging"
)

// ErrClosed is returned by operations on a closed Client.
var ErrClosed = errors.New("catalog is closed")

// Kind distinguishes districts from mouzas in the catalog.
type Kind string

const (
	KindDistrict Kind = "district"
	KindMouza    Kind = "mouza"
)

// Config configures a Client.
type Config struct {
	DBPath string
	Env    appconf.Environment
	// SearchCacheTTL bounds how long a search result is reused. Zero means
	// defaultSearchCacheTTL; a negative value turns the cache off.
	SearchCacheTTL time.Duration
}

const (
	defaultSearchCacheTTL = 5 * time.Minute
	searchCleanupInterval = 10 * time.Minute
)

// Client wraps the catalog database.
type Client struct {
	config   Config
	DB       *sql.DB
	closed   atomic.Bool
	searches *cache.Cache // nil when caching is off
}

const ddl = `
CREATE TABLE IF NOT EXISTS places (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    parent TEXT NOT NULL DEFAULT '',
    lat REAL,
    lng REAL
);
-- migrate
CREATE INDEX IF NOT EXISTS idx_places_name ON places (name COLLATE NOCASE);
-- migrate
CREATE UNIQUE INDEX IF NOT EXISTS idx_places_identity ON places (kind, name, parent);
`

// NewClient opens the database at config.DBPath and applies the schema.
func NewClient(config Config) (*Client, error) {
	if config.DBPath == "" {
		config.DBPath = ":memory:"
	}
	if config.Env == appconf.Test && config.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", config.DBPath)
	}

	db, err := sql.Open("sqlite3", config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open catalog DB: %w", err)
	}
	configureConnectionPool(db, config)

	ctx := context.Background()
	if err := configurePragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing catalog migration: %w", err)
	}

	c := &Client{config: config, DB: db}
	switch {
	case config.SearchCacheTTL == 0:
		c.searches = cache.New(defaultSearchCacheTTL, searchCleanupInterval)
	case config.SearchCacheTTL > 0:
		c.searches = cache.New(config.SearchCacheTTL, searchCleanupInterval)
	}
	return c, nil
}

// Close releases the database. Further calls return ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	c.flushSearches()
	return c.DB.Close()
}

// Path returns the database path the client was opened with.
func (c *Client) Path() string {
	return c.config.DBPath
}

// CachedSearches reports how many search results are currently cached.
func (c *Client) CachedSearches() int {
	if c.searches == nil {
		return 0
	}
	return c.searches.ItemCount()
}

func (c *Client) flushSearches() {
	if c.searches != nil {
		c.searches.Flush()
	}
}

func searchCacheKey(query string, limit int) string {
	return fmt.Sprintf("search:%d:%s", limit, query)
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", stmt, err)
		}
	}
	return nil
}

func configurePragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA cache_size=-16000",
		"PRAGMA temp_store=MEMORY",
	}
	logger := slog.Default().With(slog.String("component", "catalog"))
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			logging.LogError(logger, "Failed to apply catalog pragma", err, slog.String("pragma", p))
			return fmt.Errorf("failed to execute %s: %w", p, err)
		}
	}
	return nil
}

// configureConnectionPool pins :memory: databases to a single connection,
// since every SQLite connection to :memory: opens a separate database.
func configureConnectionPool(db *sql.DB, config Config) {
	if config.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}
