package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"snooze/internal/domain/page"
	"snooze/internal/domain/session"
	"snooze/internal/domain/story"
)

// StoryAPIForRefresh defines the collaborator interface needed by RefreshStories.
type StoryAPIForRefresh interface {
	GetStories(ctx context.Context) ([]story.Story, error)
}

// ExecuteBootPage builds a visitor's page as it looks on first load:
// session restored from local storage, front page stories fetched.
// PRE: visitorID is non-empty
// POST: Always returns a usable page. A non-nil error means the restore or
// the fetch failed and ExecuteReloadPage should be tried on the next load;
// a failed fetch leaves an empty list and a banner
func ExecuteBootPage(ctx context.Context, visitorID string, deps PageDeps) (*page.Page, error) {
	p := page.New(session.Anonymous(), story.NewList(nil))
	return p, ExecuteReloadPage(ctx, p, visitorID, deps)
}

// ExecuteReloadPage redoes what a browser reload redoes on an existing page:
// restore the stored session if the page is anonymous, and refetch stories.
// Everything else on the page is kept.
// PRE: p is non-nil
// POST: Returns the joined restore and fetch failures, nil when both worked
func ExecuteReloadPage(ctx context.Context, p *page.Page, visitorID string, deps PageDeps) error {
	var errs []error
	if !p.Session.IsAuthenticated() {
		sess, err := ExecuteLoadStoredSession(ctx, visitorID, deps.Storage, deps.Users)
		if err != nil {
			errs = append(errs, err)
		}
		p.Session = sess
	}
	if err := ExecuteRefreshStories(ctx, p, deps.Stories); err != nil {
		slog.Warn("story_event", "event", "boot_fetch_failed", "error", err.Error())
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ExecuteRefreshStories replaces the loaded list wholesale.
// PRE: p is non-nil
// POST: On success p.Stories is the fetched list; on failure it is unchanged
// and p.Banner explains why
func ExecuteRefreshStories(ctx context.Context, p *page.Page, stories StoryAPIForRefresh) error {
	list, err := stories.GetStories(ctx)
	if err != nil {
		p.Banner = "Could not load stories: " + RemoteMessage(err)
		return fmt.Errorf("get stories: %w", err)
	}
	p.Stories = story.NewList(list)
	return nil
}

// signIn applies a freshly authenticated session to the page: persist it,
// hide and reset the login and signup forms, and show the front page.
func signIn(ctx context.Context, p *page.Page, visitorID string, sess session.Session, deps PageDeps) {
	p.Session = sess
	if err := ExecutePersistSession(ctx, visitorID, sess, PersistSessionDeps{Storage: deps.Storage}); err != nil {
		slog.Error("auth_event", "event", "persist_failed", "username", sess.Username(), "error", err.Error())
	}
	p.ClearForms()
	p.Router.ShowFrontPage()
	_ = ExecuteRefreshStories(ctx, p, deps.Stories)
}

// ExecutePageLogin handles the login form.
// PRE: p and visitorID belong to the same visitor
// POST: On *AuthError the form keeps its values and shows the message and
// nothing else changes; on success the visitor is signed in
func ExecutePageLogin(ctx context.Context, p *page.Page, visitorID string, input LoginInput, deps PageDeps) error {
	sess, err := ExecuteLogin(ctx, input, LoginDeps{Users: deps.Users})
	if err != nil {
		p.SetFormError(page.FormLogin, err.Error(), map[string]string{"username": input.Username})
		return err
	}
	signIn(ctx, p, visitorID, sess, deps)
	return nil
}

// ExecutePageSignup handles the create-account form.
// PRE: p and visitorID belong to the same visitor
// POST: same contract as ExecutePageLogin
func ExecutePageSignup(ctx context.Context, p *page.Page, visitorID string, input CreateAccountInput, deps PageDeps) error {
	sess, err := ExecuteCreateAccount(ctx, input, CreateAccountDeps{Users: deps.Users})
	if err != nil {
		p.SetFormError(page.FormSignup, err.Error(), map[string]string{"username": input.Username, "name": input.Name})
		return err
	}
	signIn(ctx, p, visitorID, sess, deps)
	return nil
}
