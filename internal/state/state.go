// Package state persists small independently nullable values in sqlite.
//
// Each key holds one JSON document. A key that was never written reads as
// absent, which callers see as mo.None.
package state

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/samber/mo"

	dbutil "github.com/llehouerou/tides/internal/db"
)

const (
	appName      = "tides"
	dbFileName   = "tides.db"
	saveDebounce = 500 * time.Millisecond
)

type Manager struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   map[string][]byte
}

// Open opens the database in the user's data directory.
func Open() (*Manager, error) {
	dbPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return OpenPath(dbPath)
}

// OpenPath opens the database at path. ":memory:" is accepted.
func OpenPath(path string) (*Manager, error) {
	db, err := dbutil.Open(path)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Manager{db: db, pending: make(map[string][]byte)}, nil
}

func (m *Manager) Close() error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	pending := m.pending
	m.pending = make(map[string][]byte)
	m.saveMu.Unlock()

	// Flush pending values
	if len(pending) > 0 {
		_ = putMany(context.Background(), m.db, pending)
	}

	return m.db.Close()
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

// Get returns the value stored under key. A pending debounced write is
// returned before it reaches the database.
func (m *Manager) Get(key string) (mo.Option[[]byte], error) {
	m.saveMu.Lock()
	if v, ok := m.pending[key]; ok {
		m.saveMu.Unlock()
		return dbutil.NullBytes(v), nil
	}
	m.saveMu.Unlock()

	return get(m.db, key)
}

// Put writes value under key immediately.
func (m *Manager) Put(key string, value []byte) error {
	return m.PutMany(context.Background(), map[string][]byte{key: value})
}

// PutMany writes every value in one transaction. A nil value deletes its key.
func (m *Manager) PutMany(ctx context.Context, values map[string][]byte) error {
	m.saveMu.Lock()
	for k := range values {
		delete(m.pending, k)
	}
	m.saveMu.Unlock()

	return putMany(ctx, m.db, values)
}

// Delete removes key.
func (m *Manager) Delete(key string) error {
	return m.PutMany(context.Background(), map[string][]byte{key: nil})
}

// PutLater schedules a debounced write. Later calls within the debounce
// window replace earlier values for the same key.
func (m *Manager) PutLater(key string, value []byte) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending[key] = value

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		_ = m.Flush()
	})
}

// Flush writes pending debounced values now.
func (m *Manager) Flush() error {
	m.saveMu.Lock()
	pending := m.pending
	m.pending = make(map[string][]byte)
	m.saveMu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := putMany(context.Background(), m.db, pending); err != nil {
		// Keep values that were not overwritten meanwhile
		m.saveMu.Lock()
		for k, v := range pending {
			if _, ok := m.pending[k]; !ok {
				m.pending[k] = v
			}
		}
		m.saveMu.Unlock()
		return err
	}
	return nil
}

func get(db *sql.DB, key string) (mo.Option[[]byte], error) {
	var value []byte
	err := db.QueryRow(`SELECT value FROM resume_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[[]byte](), nil
	}
	if err != nil {
		return mo.None[[]byte](), err
	}
	return dbutil.NullBytes(value), nil
}

func putMany(ctx context.Context, sqlDB *sql.DB, values map[string][]byte) error {
	now := time.Now().UnixMilli()
	return dbutil.WithTx(ctx, sqlDB, func(tx *sql.Tx) error {
		for _, key := range sortedKeys(values) {
			value := values[key]
			if value == nil {
				if _, err := tx.Exec(`DELETE FROM resume_state WHERE key = ?`, key); err != nil {
					return err
				}
				continue
			}
			_, err := tx.Exec(`
				INSERT INTO resume_state (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
			`, key, value, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func sortedKeys(values map[string][]byte) []string {
	return slices.Sorted(maps.Keys(values))
}

// DefaultPath returns the database location in the XDG data directory.
func DefaultPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
