package resolve

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	dbutil "github.com/llehouerou/tides/internal/db"
	"github.com/llehouerou/tides/internal/streamable"
)

type cacheKey struct {
	extensionID string
	trackID     string
}

type cached struct {
	track    streamable.Track
	cachedAt time.Time
}

// Cache keeps recently loaded tracks in memory and in the loaded_tracks
// table. An entry is stale once the track's own expiry or the cache TTL
// passes; stale entries read as absent and are deleted.
type Cache struct {
	mem *expirable.LRU[cacheKey, cached]
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewCache creates a cache. db may be nil for a memory-only cache.
func NewCache(db *sql.DB, size int, ttl time.Duration) *Cache {
	return &Cache{
		mem: expirable.NewLRU[cacheKey, cached](size, nil, ttl),
		db:  db,
		ttl: ttl,
		now: time.Now,
	}
}

func (c *Cache) fresh(e cached) bool {
	now := c.now()
	if e.track.Expired(now) {
		return false
	}
	return c.ttl <= 0 || now.Sub(e.cachedAt) < c.ttl
}

// Get returns a fresh loaded track.
func (c *Cache) Get(extensionID, trackID string) (streamable.Track, bool) {
	key := cacheKey{extensionID, trackID}
	if e, ok := c.mem.Get(key); ok {
		if c.fresh(e) {
			return e.track, true
		}
		c.Delete(extensionID, trackID)
		return streamable.Track{}, false
	}

	e, ok, err := c.load(key)
	if err != nil || !ok {
		return streamable.Track{}, false
	}
	if !c.fresh(e) {
		c.Delete(extensionID, trackID)
		return streamable.Track{}, false
	}
	c.mem.Add(key, e)
	return e.track, true
}

// Put stores a loaded track. Write errors to disk are returned but the
// memory copy is kept.
func (c *Cache) Put(extensionID string, track streamable.Track) error {
	e := cached{track: track, cachedAt: c.now()}
	c.mem.Add(cacheKey{extensionID, track.ID}, e)
	if c.db == nil {
		return nil
	}

	data, err := json.Marshal(track)
	if err != nil {
		return err
	}
	_, err = c.db.Exec(`
		INSERT INTO loaded_tracks (extension_id, track_id, data, expires_at, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(extension_id, track_id) DO UPDATE SET
			data = excluded.data,
			expires_at = excluded.expires_at,
			cached_at = excluded.cached_at
	`, extensionID, track.ID, data, dbutil.ToUnixMilli(track.ExpiresAt), dbutil.ToUnixMilli(e.cachedAt))
	return err
}

// Delete drops a track from both levels.
func (c *Cache) Delete(extensionID, trackID string) {
	c.mem.Remove(cacheKey{extensionID, trackID})
	if c.db == nil {
		return
	}
	_, _ = c.db.Exec(`DELETE FROM loaded_tracks WHERE extension_id = ? AND track_id = ?`, extensionID, trackID)
}

// Prune deletes stale rows and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int64, error) {
	if c.db == nil {
		return 0, nil
	}
	now := c.now()
	var res sql.Result
	err := dbutil.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		var err error
		res, err = tx.Exec(`
			DELETE FROM loaded_tracks
			WHERE (expires_at > 0 AND expires_at <= ?) OR (? > 0 AND cached_at <= ?)
		`, now.UnixMilli(), c.ttl.Milliseconds(), now.Add(-c.ttl).UnixMilli())
		return err
	})
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Len returns the number of tracks held in memory.
func (c *Cache) Len() int {
	return c.mem.Len()
}

func (c *Cache) load(key cacheKey) (cached, bool, error) {
	if c.db == nil {
		return cached{}, false, nil
	}

	var data []byte
	var cachedAt sql.NullInt64
	err := c.db.QueryRow(`
		SELECT data, cached_at FROM loaded_tracks
		WHERE extension_id = ? AND track_id = ?
	`, key.extensionID, key.trackID).Scan(&data, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cached{}, false, nil
	}
	if err != nil {
		return cached{}, false, err
	}

	var track streamable.Track
	if err := json.Unmarshal(data, &track); err != nil {
		// Unreadable rows are dropped like stale ones
		c.Delete(key.extensionID, key.trackID)
		return cached{}, false, nil
	}
	return cached{track: track, cachedAt: dbutil.UnixMilli(cachedAt)}, true, nil
}
