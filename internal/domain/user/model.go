package user

import (
	"time"

	"snooze/internal/domain/story"
)

// Record is a user as returned by the remote API on login, signup or lookup.
// Favorites and Stories carry full story records, newest first.
type Record struct {
	Username   string
	Name       string
	CreatedAt  time.Time
	LoginToken string
	Favorites  []story.Story
	Stories    []story.Story
}
