package view

import (
	"errors"
	"fmt"
)

// Section names a togglable region of the page.
type Section string

// Section constants
const (
	SectionAllStories       Section = "all-stories"
	SectionFilteredStories  Section = "filtered-stories"
	SectionFavorites        Section = "favorites"
	SectionFavoritesHeader  Section = "favorites-header"
	SectionOwnStories       Section = "own-stories"
	SectionOwnStoriesHeader Section = "own-stories-header"
	SectionSubmitForm       Section = "submit-form"
	SectionLoginForm        Section = "login-form"
	SectionSignupForm       Section = "signup-form"
	SectionProfile          Section = "profile"
)

// Sections lists every tracked section, in page order.
var Sections = []Section{
	SectionSubmitForm,
	SectionAllStories,
	SectionFilteredStories,
	SectionFavoritesHeader,
	SectionFavorites,
	SectionOwnStoriesHeader,
	SectionOwnStories,
	SectionLoginForm,
	SectionSignupForm,
	SectionProfile,
}

// Event is a navigation event from the nav bar.
type Event string

// Event constants
const (
	EventShowAll           Event = "show-all"
	EventShowProfile       Event = "show-profile"
	EventShowSubmitForm    Event = "show-submit-form"
	EventShowFavorites     Event = "show-favorites"
	EventShowOwnStories    Event = "show-own-stories"
	EventToggleLoginSignup Event = "toggle-login-signup"
	EventLogout            Event = "logout"
)

// Events contains all valid navigation events.
var Events = []Event{
	EventShowAll,
	EventShowProfile,
	EventShowSubmitForm,
	EventShowFavorites,
	EventShowOwnStories,
	EventToggleLoginSignup,
	EventLogout,
}

// EmptyListMessage is shown in place of an empty favorites or own-stories list.
const EmptyListMessage = "Nothing to see here!"

// Domain errors
var (
	ErrUnknownEvent  = errors.New("unknown navigation event")
	ErrLoginRequired = errors.New("you must be logged in to view this")
	ErrLoggedIn      = errors.New("you are already logged in")
)

// ParseEvent validates a navigation event identifier.
// PRE: none
// POST: Returns the event or ErrUnknownEvent
func ParseEvent(raw string) (Event, error) {
	for _, e := range Events {
		if string(e) == raw {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEvent, raw)
}

// requiresSession reports whether an event is only available to logged-in users.
func (e Event) requiresSession() bool {
	switch e {
	case EventShowProfile, EventShowSubmitForm, EventShowFavorites, EventShowOwnStories:
		return true
	}
	return false
}

// anonymousOnly reports whether an event is only available to logged-out visitors.
func (e Event) anonymousOnly() bool {
	return e == EventToggleLoginSignup
}

// Router tracks which page sections are visible.
// The zero value has every section hidden; use NewRouter for boot state.
type Router struct {
	visible map[Section]bool
}

// NewRouter returns the router in its boot state: only the front page shown.
func NewRouter() Router {
	r := Router{}
	r.ShowFrontPage()
	return r
}

// Visible reports whether a section is shown.
func (r Router) Visible(s Section) bool {
	return r.visible[s]
}

// VisibleSections returns the shown sections in page order.
func (r Router) VisibleSections() []Section {
	var out []Section
	for _, s := range Sections {
		if r.visible[s] {
			out = append(out, s)
		}
	}
	return out
}

// HideAll hides every tracked section.
func (r *Router) HideAll() {
	r.visible = make(map[Section]bool, len(Sections))
}

// ShowFrontPage hides everything and shows the all-stories list.
func (r *Router) ShowFrontPage() {
	r.show(SectionAllStories)
}

// Apply dispatches a navigation event.
// PRE: e came from ParseEvent
// POST: For every event except toggle-login-signup and logout, all sections
// are hidden and then exactly the event's sections are shown. On error the
// router is unchanged. Member-only events fail with ErrLoginRequired for
// anonymous visitors, and toggle-login-signup fails with ErrLoggedIn for
// authenticated ones.
func (r *Router) Apply(e Event, authenticated bool) error {
	if e.requiresSession() && !authenticated {
		return ErrLoginRequired
	}
	if e.anonymousOnly() && authenticated {
		return ErrLoggedIn
	}
	switch e {
	case EventShowAll:
		r.show(SectionAllStories)
	case EventShowProfile:
		r.show(SectionProfile)
	case EventShowSubmitForm:
		r.show(SectionSubmitForm)
	case EventShowFavorites:
		r.show(SectionFavoritesHeader, SectionFavorites)
	case EventShowOwnStories:
		r.show(SectionOwnStoriesHeader, SectionOwnStories)
	case EventToggleLoginSignup:
		if r.visible == nil {
			r.visible = make(map[Section]bool, len(Sections))
		}
		r.visible[SectionLoginForm] = !r.visible[SectionLoginForm]
		r.visible[SectionSignupForm] = !r.visible[SectionSignupForm]
	case EventLogout:
		*r = NewRouter()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, string(e))
	}
	return nil
}

func (r *Router) show(sections ...Section) {
	r.HideAll()
	for _, s := range sections {
		r.visible[s] = true
	}
}
