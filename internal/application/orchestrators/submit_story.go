package orchestrators

import (
	"context"
	"log/slog"
	"strings"

	"snooze/internal/domain/page"
	"snooze/internal/domain/story"
)

// StoryAPIForSubmit defines the collaborator interface needed by SubmitStory.
type StoryAPIForSubmit interface {
	AddStory(ctx context.Context, token string, input story.NewStory) (story.Story, error)
}

// SubmitStoryDeps holds dependencies for SubmitStory.
type SubmitStoryDeps struct {
	Stories StoryAPIForSubmit
}

// ExecuteSubmitStory posts a new story and puts it at the top of the front page.
// PRE: none
// POST: On success the story is first in p.Stories, owned by the session,
// the form is reset and the front page is shown. On failure the form keeps
// its values and shows the error
func ExecuteSubmitStory(ctx context.Context, p *page.Page, input story.NewStory, deps SubmitStoryDeps) error {
	sess := p.Session
	if !sess.IsAuthenticated() {
		return ErrNotLoggedIn
	}

	input = story.NewStory{
		Author: strings.TrimSpace(input.Author),
		Title:  strings.TrimSpace(input.Title),
		URL:    strings.TrimSpace(input.URL),
	}
	values := map[string]string{"author": input.Author, "title": input.Title, "url": input.URL}
	if err := input.Validate(); err != nil {
		p.SetFormError(page.FormSubmit, err.Error(), values)
		return err
	}

	st, err := deps.Stories.AddStory(ctx, sess.Token(), input)
	if err != nil {
		te := newTransientError("submit story", "", err)
		p.SetFormError(page.FormSubmit, te.Message, values)
		slog.Warn("story_event", "event", "submit_failed", "username", sess.Username(), "error", err.Error())
		return te
	}
	if st.Username == "" {
		st.Username = sess.Username()
	}

	p.Stories.Prepend(st)
	p.Session = sess.WithOwnStory(st)
	p.ClearForm(page.FormSubmit)
	p.Router.ShowFrontPage()
	slog.Info("story_event", "event", "submitted", "story_id", st.ID, "username", sess.Username())
	return nil
}
