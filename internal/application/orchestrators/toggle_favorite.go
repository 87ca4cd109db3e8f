package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"snooze/internal/domain/page"
)

// UserAPIForFavorite defines the collaborator interface needed by ToggleFavorite.
type UserAPIForFavorite interface {
	FavoriteStory(ctx context.Context, token, username, storyID string) error
	UnfavoriteStory(ctx context.Context, token, username, storyID string) error
}

// ToggleFavoriteDeps holds dependencies for ToggleFavorite.
type ToggleFavoriteDeps struct {
	Users UserAPIForFavorite
}

var ErrStoryNotFound = errors.New("story is not loaded")

// ExecuteToggleFavorite flips a story's favorite state.
// The direction comes from the session's favorites set, not from what is on screen.
// PRE: storyID is non-empty
// POST: On success the session changes and the next render shows the new
// icon; on failure nothing changes and a *TransientRemoteError is returned
// and recorded as a notice on the story
func ExecuteToggleFavorite(ctx context.Context, p *page.Page, storyID string, deps ToggleFavoriteDeps) error {
	sess := p.Session
	if !sess.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	st, ok := sess.Lookup(storyID, p.Stories)
	if !ok {
		return ErrStoryNotFound
	}

	if sess.HasFavorite(storyID) {
		if err := deps.Users.UnfavoriteStory(ctx, sess.Token(), sess.Username(), storyID); err != nil {
			te := newTransientError("unfavorite story", storyID, err)
			p.SetNotice(storyID, te.Message)
			slog.Warn("story_event", "event", "unfavorite_failed", "story_id", storyID, "error", err.Error())
			return te
		}
		p.Session = sess.WithoutFavorite(storyID)
		slog.Debug("story_event", "event", "unfavorited", "story_id", storyID, "username", sess.Username())
		return nil
	}

	if err := deps.Users.FavoriteStory(ctx, sess.Token(), sess.Username(), storyID); err != nil {
		te := newTransientError("favorite story", storyID, err)
		p.SetNotice(storyID, te.Message)
		slog.Warn("story_event", "event", "favorite_failed", "story_id", storyID, "error", err.Error())
		return te
	}
	p.Session = sess.WithFavorite(st)
	slog.Debug("story_event", "event", "favorited", "story_id", storyID, "username", sess.Username())
	return nil
}
