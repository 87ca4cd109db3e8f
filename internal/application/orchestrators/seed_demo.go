package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"snooze/internal/domain/story"
	"snooze/internal/domain/user"
)

// SeedDemoDeps holds collaborators needed for demo seeding.
type SeedDemoDeps struct {
	Users interface {
		UserAPIForLogin
		UserAPIForCreate
	}
	Stories interface {
		StoryAPIForRefresh
		StoryAPIForSubmit
	}
}

// DemoAccount is the account seeded for local development.
var DemoAccount = CreateAccountInput{Username: "demo", Password: "demo-password", Name: "Demo User"}

// demoStories returns the stories to seed, newest first.
func demoStories() []story.NewStory {
	return []story.NewStory{
		{Author: "Rob Pike", Title: "Go Proverbs", URL: "https://go-proverbs.github.io/"},
		{Author: "The Go Team", Title: "Effective Go", URL: "https://go.dev/doc/effective_go"},
		{Author: "Russ Cox", Title: "Go & Versioning", URL: "https://research.swtch.com/vgo"},
	}
}

// ExecuteSeedDemo creates the demo account and a few stories if they don't already exist.
// It is idempotent: an existing account is logged into, and stories are only
// added to an empty front page.
// PRE: the remote API is reachable
// POST: DemoAccount can log in; the front page has at least len(demoStories()) stories
func ExecuteSeedDemo(ctx context.Context, deps SeedDemoDeps) error {
	rec, err := deps.Users.Login(ctx, DemoAccount.Username, DemoAccount.Password)
	if err != nil {
		rec, err = deps.Users.Create(ctx, DemoAccount.Username, DemoAccount.Password, DemoAccount.Name)
		if err != nil {
			return fmt.Errorf("seed demo account %s: %w", DemoAccount.Username, err)
		}
		slog.Info("seed_event", "event", "demo_account_created", "username", rec.Username)
	}

	existing, err := deps.Stories.GetStories(ctx)
	if err != nil {
		return fmt.Errorf("seed demo stories: list: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	return seedStories(ctx, rec, deps)
}

func seedStories(ctx context.Context, rec user.Record, deps SeedDemoDeps) error {
	stories := demoStories()
	// Added oldest first so the list reads newest first afterwards.
	for i := len(stories) - 1; i >= 0; i-- {
		if _, err := deps.Stories.AddStory(ctx, rec.LoginToken, stories[i]); err != nil {
			return fmt.Errorf("seed demo story %q: %w", stories[i].Title, err)
		}
	}
	slog.Info("seed_event", "event", "demo_stories_seeded", "created", len(stories))
	return nil
}
