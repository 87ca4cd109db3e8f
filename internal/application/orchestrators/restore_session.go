package orchestrators

import (
	"context"
	"log/slog"

	"snooze/internal/domain/session"
	"snooze/internal/domain/user"
)

// UserAPIForRestore defines the collaborator interface needed by RestoreSession.
type UserAPIForRestore interface {
	GetLoggedInUser(ctx context.Context, token, username string) (user.Record, error)
}

// RestoreSessionInput carries the values read from local storage.
type RestoreSessionInput struct {
	Token    string
	Username string
}

// RestoreSessionDeps holds dependencies for RestoreSession.
type RestoreSessionDeps struct {
	Users UserAPIForRestore
}

// ExecuteRestoreSession rebuilds a session from stored credentials.
// It fails soft: a missing, corrupt or expired credential yields Anonymous.
// PRE: none
// POST: Never returns an error
func ExecuteRestoreSession(ctx context.Context, input RestoreSessionInput, deps RestoreSessionDeps) session.Session {
	if input.Token == "" || input.Username == "" {
		return session.Anonymous()
	}

	rec, err := deps.Users.GetLoggedInUser(ctx, input.Token, input.Username)
	if err != nil {
		slog.Info("auth_event", "event", "restore_failed", "username", input.Username, "reason", ErrMalformedSession.Error(), "error", err.Error())
		return session.Anonymous()
	}
	if rec.Username == "" {
		slog.Info("auth_event", "event", "restore_failed", "username", input.Username, "reason", ErrMalformedSession.Error())
		return session.Anonymous()
	}
	// The lookup endpoint does not echo the token back.
	if rec.LoginToken == "" {
		rec.LoginToken = input.Token
	}

	slog.Debug("auth_event", "event", "restore_success", "username", rec.Username)
	return session.Authenticated(rec)
}
