package orchestrators

import (
	"errors"
	"fmt"
)

// Local storage keys. No other state is persisted.
const (
	StorageKeyToken    = "token"
	StorageKeyUsername = "username"
)

// GenericRemoteMessage is shown when a collaborator error carries no message.
const GenericRemoteMessage = "Something went wrong talking to the server. Please try again."

var (
	ErrMalformedSession = errors.New("stored session is missing or invalid")
	// ErrSessionNotRestored means credentials are stored but the remote API
	// did not accept them this time.
	ErrSessionNotRestored = errors.New("stored session could not be restored")
	ErrRequestInFlight  = errors.New("that request is already in progress")
	ErrNotLoggedIn      = errors.New("you must be logged in to do that")
)

// userMessager is implemented by collaborator errors that carry a
// human-readable message from the remote API.
type userMessager interface {
	UserMessage() string
}

// RemoteMessage extracts the human-readable message from a collaborator error.
// POST: Returns GenericRemoteMessage if err carries no message
func RemoteMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) {
		if msg := um.UserMessage(); msg != "" {
			return msg
		}
	}
	return GenericRemoteMessage
}

// AuthError is an invalid-credentials or duplicate-account failure.
// Message comes verbatim from the remote API.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// TransientRemoteError is a failed favorite, unfavorite, delete or submit call.
// Nothing was changed locally when it is returned.
type TransientRemoteError struct {
	Op      string
	StoryID string
	Message string
	Err     error
}

func (e *TransientRemoteError) Error() string {
	if e.StoryID == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.StoryID, e.Message)
}

func (e *TransientRemoteError) Unwrap() error { return e.Err }

func newTransientError(op, storyID string, err error) *TransientRemoteError {
	return &TransientRemoteError{Op: op, StoryID: storyID, Message: RemoteMessage(err), Err: err}
}
