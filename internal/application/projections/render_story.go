package projections

import (
	"snooze/internal/domain/session"
	"snooze/internal/domain/story"
	"snooze/internal/domain/view"
)

// Favorite icon styles. The filled star marks a favorite.
const (
	FavoriteIconFilled = "fas"
	FavoriteIconEmpty  = "far"
)

// StoryFragment is the view model for one story row.
type StoryFragment struct {
	ID       string
	Title    string
	URL      string
	Author   string
	Username string
	HostName string

	ShowFavorite bool   // only for logged-in viewers
	Favorited    bool
	FavoriteIcon string // FavoriteIconFilled or FavoriteIconEmpty

	ShowDelete bool // only on the viewer's own stories
	DeleteStep view.DeleteStep

	Notice string // one-shot error from the last failed action on this story
}

// Confirming reports whether the delete control is asking "are you sure?".
func (f StoryFragment) Confirming() bool {
	return f.ShowDelete && f.DeleteStep == view.DeleteConfirming
}

// RenderStory builds the row for one story as the given viewer sees it.
// PRE: none
// POST: Pure; the same inputs always give the same fragment. Favorited is
// true iff the story is in the session's favorites, ShowDelete iff the
// viewer owns it
func RenderStory(st story.Story, sess session.Session, deletions view.Deletions) StoryFragment {
	f := StoryFragment{
		ID:       st.ID,
		Title:    st.Title,
		URL:      st.URL,
		Author:   st.Author,
		Username: st.Username,
		HostName: story.HostName(st.URL),
	}

	if sess.IsAuthenticated() {
		f.ShowFavorite = true
		f.Favorited = sess.HasFavorite(st.ID)
		f.FavoriteIcon = FavoriteIconEmpty
		if f.Favorited {
			f.FavoriteIcon = FavoriteIconFilled
		}
	}

	if sess.Owns(st.ID) {
		f.ShowDelete = true
		f.DeleteStep = deletions.Step(st.ID)
	}
	return f
}

// RenderStories renders stories in order.
func RenderStories(stories []story.Story, sess session.Session, deletions view.Deletions) []StoryFragment {
	out := make([]StoryFragment, 0, len(stories))
	for _, st := range stories {
		out = append(out, RenderStory(st, sess, deletions))
	}
	return out
}
