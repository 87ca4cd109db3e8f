package session

import (
	"time"

	"snooze/internal/domain/story"
	"snooze/internal/domain/user"
)

// Session is the identity of the current viewer. The zero value is Anonymous;
// an Authenticated session is only built from a complete user record.
type Session struct {
	authenticated bool
	username      string
	name          string
	createdAt     time.Time
	token         string
	favorites     story.IDSet
	own           story.IDSet
	known         map[string]story.Story
}

// Anonymous returns the unauthenticated session.
func Anonymous() Session {
	return Session{}
}

// Authenticated builds a fully populated session from a user record.
// PRE: rec.Username and rec.LoginToken are non-empty
// POST: Favorites and OwnStories mirror the record's story ids
func Authenticated(rec user.Record) Session {
	s := Session{
		authenticated: true,
		username:      rec.Username,
		name:          rec.Name,
		createdAt:     rec.CreatedAt,
		token:         rec.LoginToken,
		known:         make(map[string]story.Story, len(rec.Favorites)+len(rec.Stories)),
	}
	for _, st := range rec.Favorites {
		s.favorites = s.favorites.With(st.ID)
		s.known[st.ID] = st
	}
	for _, st := range rec.Stories {
		s.own = s.own.With(st.ID)
		s.known[st.ID] = st
	}
	return s
}

// IsAuthenticated reports whether a user is logged in.
func (s Session) IsAuthenticated() bool { return s.authenticated }

// Username returns the unique user identifier, or "" when anonymous.
func (s Session) Username() string { return s.username }

// Name returns the display name.
func (s Session) Name() string { return s.name }

// CreatedAt returns when the account was created.
func (s Session) CreatedAt() time.Time { return s.createdAt }

// Token returns the opaque login credential.
func (s Session) Token() string { return s.token }

// Favorites returns the ids of favorited stories.
func (s Session) Favorites() story.IDSet { return s.favorites }

// OwnStories returns the ids of stories the user submitted.
func (s Session) OwnStories() story.IDSet { return s.own }

// HasFavorite reports whether id is a favorite. Always false when anonymous.
func (s Session) HasFavorite(id string) bool {
	return s.authenticated && s.favorites.Has(id)
}

// Owns reports whether the user submitted the story. Always false when anonymous.
func (s Session) Owns(id string) bool {
	return s.authenticated && s.own.Has(id)
}

// WithFavorite returns a session with st added to favorites.
// INVARIANT: the receiver is not mutated
func (s Session) WithFavorite(st story.Story) Session {
	if !s.authenticated {
		return s
	}
	next := s.clone()
	next.favorites = s.favorites.WithFirst(st.ID)
	next.known[st.ID] = st
	return next
}

// WithoutFavorite returns a session with id removed from favorites.
// INVARIANT: the receiver is not mutated
func (s Session) WithoutFavorite(id string) Session {
	if !s.authenticated {
		return s
	}
	next := s.clone()
	next.favorites = s.favorites.Without(id)
	return next
}

// WithOwnStory returns a session that owns st.
// INVARIANT: the receiver is not mutated
func (s Session) WithOwnStory(st story.Story) Session {
	if !s.authenticated {
		return s
	}
	next := s.clone()
	next.own = s.own.WithFirst(st.ID)
	next.known[st.ID] = st
	return next
}

// WithoutStory returns a session that no longer references id at all,
// used after the story has been deleted.
// INVARIANT: the receiver is not mutated
func (s Session) WithoutStory(id string) Session {
	if !s.authenticated {
		return s
	}
	next := s.clone()
	next.own = s.own.Without(id)
	next.favorites = s.favorites.Without(id)
	delete(next.known, id)
	return next
}

// Lookup resolves a story id against the loaded list first, then against
// records delivered with the user.
func (s Session) Lookup(id string, list story.List) (story.Story, bool) {
	if st, ok := list.Get(id); ok {
		return st, true
	}
	st, ok := s.known[id]
	return st, ok
}

func (s Session) clone() Session {
	next := s
	next.known = make(map[string]story.Story, len(s.known))
	for k, v := range s.known {
		next.known[k] = v
	}
	return next
}
