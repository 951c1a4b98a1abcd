// internal/state/interface.go
package state

import (
	"context"
	"database/sql"

	"github.com/samber/mo"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	DB() *sql.DB
	Get(key string) (mo.Option[[]byte], error)
	Put(key string, value []byte) error
	PutMany(ctx context.Context, values map[string][]byte) error
	PutLater(key string, value []byte)
	Delete(key string) error
	Flush() error
	Close() error
}

// Verify implementations at compile time.
var (
	_ Interface = (*Manager)(nil)
	_ Interface = (*Mock)(nil)
)
