package projections

import (
	"golang.org/x/text/language"

	"snooze/internal/domain/page"
	"snooze/internal/domain/session"
	"snooze/internal/domain/story"
	"snooze/internal/domain/view"
)

// GetFrontPageQuery carries query parameters.
type GetFrontPageQuery struct {
	Locale language.Tag
	// Notices and Banner are the one-shot messages taken from the page
	// before rendering.
	Notices map[string]string
	Banner  string
}

// ProfileView is the logged-in user's profile section.
type ProfileView struct {
	Name      string
	Username  string
	CreatedAt string
}

// StoryListView is a rendered list plus its empty-state placeholder.
type StoryListView struct {
	Stories     []StoryFragment
	Placeholder string // EmptyListMessage when Stories is empty, else ""
}

// GetFrontPageResult carries the query result.
type GetFrontPageResult struct {
	Authenticated bool
	Username      string

	AllStories []StoryFragment
	Favorites  StoryListView
	OwnStories StoryListView
	Profile    ProfileView

	Login  page.FormState
	Signup page.FormState
	Submit page.FormState

	Banner string

	visible map[view.Section]bool
}

// Hidden reports whether a section must carry the hidden attribute.
func (r GetFrontPageResult) Hidden(section string) bool {
	return !r.visible[view.Section(section)]
}

// QueryGetFrontPage builds the whole page as a visitor currently sees it.
// PRE: p is non-nil
// POST: Pure; reads p without modifying it. Favorites and own stories are
// resolved against the loaded list first, then the user's own records
func QueryGetFrontPage(p *page.Page, query GetFrontPageQuery) GetFrontPageResult {
	sess := p.Session
	result := GetFrontPageResult{
		Authenticated: sess.IsAuthenticated(),
		Username:      sess.Username(),
		AllStories:    withNotices(RenderStories(p.Stories.Stories(), sess, p.Deletions), query.Notices),
		Login:         p.Forms[page.FormLogin],
		Signup:        p.Forms[page.FormSignup],
		Submit:        p.Forms[page.FormSubmit],
		Banner:        query.Banner,
		visible:       make(map[view.Section]bool, len(view.Sections)),
	}
	for _, s := range p.Router.VisibleSections() {
		result.visible[s] = true
	}

	if sess.IsAuthenticated() {
		result.Favorites = resolveList(sess.Favorites(), p, query.Notices)
		result.OwnStories = resolveList(sess.OwnStories(), p, query.Notices)
		result.Profile = ProfileView{
			Name:      sess.Name(),
			Username:  sess.Username(),
			CreatedAt: FormatDate(sess.CreatedAt(), query.Locale),
		}
	} else {
		result.Favorites = StoryListView{Placeholder: view.EmptyListMessage}
		result.OwnStories = StoryListView{Placeholder: view.EmptyListMessage}
	}
	return result
}

func resolveList(ids story.IDSet, p *page.Page, notices map[string]string) StoryListView {
	var stories []story.Story
	for _, id := range ids.IDs() {
		if st, ok := p.Session.Lookup(id, p.Stories); ok {
			stories = append(stories, st)
		}
	}
	lv := StoryListView{Stories: withNotices(RenderStories(stories, p.Session, p.Deletions), notices)}
	if len(lv.Stories) == 0 {
		lv.Placeholder = view.EmptyListMessage
	}
	return lv
}

func withNotices(fragments []StoryFragment, notices map[string]string) []StoryFragment {
	for i := range fragments {
		fragments[i].Notice = notices[fragments[i].ID]
	}
	return fragments
}

// SessionView is the nav bar state, used by JSON clients.
type SessionView struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username,omitempty"`
	Favorites     []string `json:"favorites"`
	OwnStories    []string `json:"own_stories"`
}

// QuerySessionView summarises a session for JSON responses.
func QuerySessionView(sess session.Session) SessionView {
	return SessionView{
		Authenticated: sess.IsAuthenticated(),
		Username:      sess.Username(),
		Favorites:     sess.Favorites().IDs(),
		OwnStories:    sess.OwnStories().IDs(),
	}
}
