package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"snooze/internal/domain/session"
	"snooze/internal/domain/user"
)

// UserAPIForCreate defines the collaborator interface needed by CreateAccount.
type UserAPIForCreate interface {
	Create(ctx context.Context, username, password, name string) (user.Record, error)
}

// CreateAccountInput carries input for the orchestrator.
type CreateAccountInput struct {
	Username string
	Password string
	Name     string
}

// CreateAccountDeps holds dependencies for CreateAccount.
type CreateAccountDeps struct {
	Users UserAPIForCreate
}

// ExecuteCreateAccount signs a new user up with the remote API.
// PRE: none
// POST: Returns an Authenticated session for the new account, or *AuthError
// (duplicate username, validation failure) with the remote message verbatim
// INVARIANT: Username uniqueness is enforced by the remote API
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps CreateAccountDeps) (session.Session, error) {
	username := strings.TrimSpace(input.Username)
	name := strings.TrimSpace(input.Name)
	if username == "" || input.Password == "" || name == "" {
		return session.Anonymous(), &AuthError{Message: "Name, username and password are required"}
	}

	rec, err := deps.Users.Create(ctx, username, input.Password, name)
	if err != nil {
		slog.Info("auth_event", "event", "signup_failed", "username", username, "error", err.Error())
		return session.Anonymous(), &AuthError{Message: RemoteMessage(err), Err: err}
	}
	if rec.Username == "" || rec.LoginToken == "" {
		slog.Warn("auth_event", "event", "signup_failed", "username", username, "reason", "incomplete_user_record")
		return session.Anonymous(), &AuthError{Message: GenericRemoteMessage}
	}

	slog.Info("auth_event", "event", "account_created", "username", rec.Username)
	return session.Authenticated(rec), nil
}
