package orchestrators

import (
	"context"
	"fmt"

	"snooze/internal/domain/session"
)

// LocalStorage is the visitor's durable key/value store.
type LocalStorage interface {
	GetItem(ctx context.Context, visitorID, key string) (string, bool, error)
	SetItems(ctx context.Context, visitorID string, items map[string]string) error
	Clear(ctx context.Context, visitorID string) error
}

// PersistSessionDeps holds dependencies for PersistSession and ClearSession.
type PersistSessionDeps struct {
	Storage LocalStorage
}

// ExecutePersistSession mirrors the session's credentials to local storage.
// PRE: visitorID is non-empty
// POST: token and username are stored together; no-op when anonymous
func ExecutePersistSession(ctx context.Context, visitorID string, sess session.Session, deps PersistSessionDeps) error {
	if !sess.IsAuthenticated() {
		return nil
	}
	err := deps.Storage.SetItems(ctx, visitorID, map[string]string{
		StorageKeyToken:    sess.Token(),
		StorageKeyUsername: sess.Username(),
	})
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// ExecuteClearSession erases every local storage entry for the visitor.
// PRE: visitorID is non-empty
// POST: a later load restores Anonymous
func ExecuteClearSession(ctx context.Context, visitorID string, deps PersistSessionDeps) error {
	if err := deps.Storage.Clear(ctx, visitorID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ExecuteLoadStoredSession reads credentials from local storage and restores them.
// PRE: visitorID is non-empty
// POST: Always returns a usable session. The error is non-nil when storage
// could not be read or a complete stored credential did not restore, so a
// later load is worth retrying; a missing or half-written credential is
// plain Anonymous with no error
func ExecuteLoadStoredSession(ctx context.Context, visitorID string, storage LocalStorage, users UserAPIForRestore) (session.Session, error) {
	token, _, err := storage.GetItem(ctx, visitorID, StorageKeyToken)
	if err != nil {
		return session.Anonymous(), fmt.Errorf("load stored token: %w", err)
	}
	username, _, err := storage.GetItem(ctx, visitorID, StorageKeyUsername)
	if err != nil {
		return session.Anonymous(), fmt.Errorf("load stored username: %w", err)
	}
	sess := ExecuteRestoreSession(ctx, RestoreSessionInput{Token: token, Username: username}, RestoreSessionDeps{Users: users})
	if token != "" && username != "" && !sess.IsAuthenticated() {
		return sess, ErrSessionNotRestored
	}
	return sess, nil
}
