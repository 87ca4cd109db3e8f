package orchestrators

import (
	"context"

	"snooze/internal/domain/story"
)

// UserAPI is the remote user collaborator.
type UserAPI interface {
	UserAPIForLogin
	UserAPIForCreate
	UserAPIForRestore
	FavoriteStory(ctx context.Context, token, username, storyID string) error
	UnfavoriteStory(ctx context.Context, token, username, storyID string) error
}

// StoryAPI is the remote story-list collaborator.
type StoryAPI interface {
	GetStories(ctx context.Context) ([]story.Story, error)
	AddStory(ctx context.Context, token string, input story.NewStory) (story.Story, error)
	DeleteStory(ctx context.Context, token, storyID string) error
}

// PageDeps holds the collaborators used by page events.
type PageDeps struct {
	Users   UserAPI
	Stories StoryAPI
	Storage LocalStorage
}
