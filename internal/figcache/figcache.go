// Package figcache stores rendered diagram images in SQLite, keyed by the
// hash of the diagram source, so unchanged diagrams are not rendered again.
package figcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS figures (
	key        TEXT PRIMARY KEY,
	image      BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	used_at    INTEGER NOT NULL,
	hits       INTEGER NOT NULL DEFAULT 0
)`

// Cache is a figure image store backed by a SQLite file.
type Cache struct {
	db  *sql.DB
	log *slog.Logger
}

// Open opens or creates the cache database at path.
func Open(path string, log *slog.Logger) (*Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("figcache: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("figcache: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("figcache: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("figcache: schema: %w", err)
	}
	return &Cache{db: db, log: log}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Key returns the cache key of a diagram payload rendered with variant,
// which names everything else that affects the image (theme, renderer).
func Key(payload, variant string) string {
	h := sha256.Sum256([]byte(variant + "\x00" + payload))
	return fmt.Sprintf("%x", h[:])
}

// Get returns the image stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var image []byte
	err := c.db.QueryRowContext(ctx, `SELECT image FROM figures WHERE key = ?`, key).Scan(&image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("figcache: get: %w", err)
	}
	if _, err := c.db.ExecContext(ctx, `UPDATE figures SET hits = hits + 1, used_at = ? WHERE key = ?`, time.Now().Unix(), key); err != nil {
		c.log.Warn("figcache: touch failed", "key", key, "error", err)
	}
	return image, true, nil
}

// Put stores image under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key string, image []byte) error {
	now := time.Now().Unix()
	_, err := c.db.ExecContext(ctx, `INSERT INTO figures (key, image, created_at, used_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET image = excluded.image, used_at = excluded.used_at`, key, image, now, now)
	if err != nil {
		return fmt.Errorf("figcache: put: %w", err)
	}
	return nil
}

// Prune removes entries not used since before.
func (c *Cache) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM figures WHERE used_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("figcache: prune: %w", err)
	}
	return res.RowsAffected()
}

// Renderer is the rasterizer wrapped by a caching Rasterizer.
type Renderer interface {
	Render(ctx context.Context, payload, dest string) error
}

// Rasterizer serves images from the cache and renders misses with next.
type Rasterizer struct {
	cache   *Cache
	next    Renderer
	variant string

	hits   atomic.Int64
	misses atomic.Int64
}

// Wrap returns a caching Rasterizer in front of next.
func (c *Cache) Wrap(next Renderer, variant string) *Rasterizer {
	return &Rasterizer{cache: c, next: next, variant: variant}
}

func (r *Rasterizer) Render(ctx context.Context, payload, dest string) error {
	key := Key(payload, r.variant)

	image, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.cache.log.Warn("figcache: lookup failed, rendering", "error", err)
	}
	if ok {
		r.hits.Add(1)
		if err := os.WriteFile(dest, image, 0o644); err != nil {
			return fmt.Errorf("figcache: write %s: %w", dest, err)
		}
		return nil
	}

	r.misses.Add(1)
	if err := r.next.Render(ctx, payload, dest); err != nil {
		return err
	}
	image, err = os.ReadFile(dest)
	if err != nil {
		return fmt.Errorf("figcache: read rendered %s: %w", dest, err)
	}
	if err := r.cache.Put(ctx, key, image); err != nil {
		r.cache.log.Warn("figcache: store failed", "error", err)
	}
	return nil
}

// Stats returns the number of cache hits and misses so far.
func (r *Rasterizer) Stats() (hits, misses int64) {
	return r.hits.Load(), r.misses.Load()
}
