package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"snooze/internal/domain/page"
	"snooze/internal/domain/view"
)

// StoryAPIForDelete defines the collaborator interface needed by DeleteStep.
type StoryAPIForDelete interface {
	DeleteStory(ctx context.Context, token, storyID string) error
}

// DeleteStepDeps holds dependencies for DeleteStep.
type DeleteStepDeps struct {
	Stories StoryAPIForDelete
}

var ErrNotOwner = errors.New("you can only delete your own stories")

// ExecuteDeleteStep feeds a click into a story's delete confirmation.
// PRE: action came from view.ParseDeleteAction
// POST: A delete request is sent only for "yes" while confirming. On
// success the story leaves the list and the session; on failure the control
// returns to its first step and a *TransientRemoteError is returned
// INVARIANT: Only the story's owner can drive the machine
func ExecuteDeleteStep(ctx context.Context, p *page.Page, storyID string, action view.DeleteAction, deps DeleteStepDeps) error {
	sess := p.Session
	if !sess.IsAuthenticated() {
		return ErrNotLoggedIn
	}
	if !sess.Owns(storyID) {
		return ErrNotOwner
	}

	if p.Deletions.Apply(storyID, action) != view.DeleteIssue {
		return nil
	}

	if err := deps.Stories.DeleteStory(ctx, sess.Token(), storyID); err != nil {
		p.Deletions.Fail(storyID)
		te := newTransientError("delete story", storyID, err)
		p.SetNotice(storyID, te.Message)
		slog.Warn("story_event", "event", "delete_failed", "story_id", storyID, "error", err.Error())
		return te
	}

	p.Stories.Remove(storyID)
	p.Session = sess.WithoutStory(storyID)
	p.Deletions.Forget(storyID)
	slog.Info("story_event", "event", "deleted", "story_id", storyID, "username", sess.Username())
	return nil
}
