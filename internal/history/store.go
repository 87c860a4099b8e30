// Package history persists one record per proxied call.
//
// Records are append-only: they are inserted once, read any number of times
// and deleted at most once. Ids are assigned by the backend, increase
// monotonically and are never reused, even after DeleteAll.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/cankoe/request-tester/internal/models"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("history record not found")

// Store is the history backend used by the proxy and the query endpoints.
type Store interface {
	// Insert assigns the record's ID and Timestamp, persists it and returns
	// the new id. It returns only after the write is committed.
	Insert(ctx context.Context, rec *models.HistoryRecord) (int64, error)
	// List returns records newest first. Ties on timestamp are broken by id.
	List(ctx context.Context, limit, offset int) ([]models.HistoryRecord, error)
	Get(ctx context.Context, id int64) (*models.HistoryRecord, error)
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var now = func() time.Time {
	return time.Now().UTC()
}
