package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"snooze/internal/domain/session"
	"snooze/internal/domain/user"
)

// UserAPIForLogin defines the collaborator interface needed by Login.
type UserAPIForLogin interface {
	Login(ctx context.Context, username, password string) (user.Record, error)
}

// LoginInput carries input for the login orchestrator.
type LoginInput struct {
	Username string
	Password string
}

// LoginDeps holds dependencies for Login.
type LoginDeps struct {
	Users UserAPIForLogin
}

// ExecuteLogin authenticates against the remote API.
// PRE: none
// POST: Returns a fully populated Authenticated session, or *AuthError with
// the remote message verbatim
func ExecuteLogin(ctx context.Context, input LoginInput, deps LoginDeps) (session.Session, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" || input.Password == "" {
		return session.Anonymous(), &AuthError{Message: "Username and password are required"}
	}

	rec, err := deps.Users.Login(ctx, username, input.Password)
	if err != nil {
		slog.Info("auth_event", "event", "login_failed", "username", username, "error", err.Error())
		return session.Anonymous(), &AuthError{Message: RemoteMessage(err), Err: err}
	}
	if rec.Username == "" || rec.LoginToken == "" {
		slog.Warn("auth_event", "event", "login_failed", "username", username, "reason", "incomplete_user_record")
		return session.Anonymous(), &AuthError{Message: GenericRemoteMessage}
	}

	slog.Info("auth_event", "event", "login_success", "username", rec.Username)
	return session.Authenticated(rec), nil
}
