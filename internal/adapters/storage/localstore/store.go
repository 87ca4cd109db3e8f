package localstore

import (
	"context"
	"time"
)

// Store persists per-visitor key/value pairs, the server-side stand-in for
// a browser's local storage.
type Store interface {
	GetItem(ctx context.Context, visitorID, key string) (string, bool, error)
	SetItems(ctx context.Context, visitorID string, items map[string]string) error
	Clear(ctx context.Context, visitorID string) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
