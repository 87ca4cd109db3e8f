package page

import (
	"snooze/internal/domain/session"
	"snooze/internal/domain/story"
	"snooze/internal/domain/view"
)

// Form identifiers for inline errors and retained values.
const (
	FormLogin  = "login"
	FormSignup = "signup"
	FormSubmit = "submit"
)

// FormState is what a form shows after a failed submission.
// Password fields are never retained.
type FormState struct {
	Error  string
	Values map[string]string
}

// Page is the state owned by one visitor's page: who they are, what is
// loaded, and what is on screen.
type Page struct {
	Session   session.Session
	Stories   story.List
	Router    view.Router
	Deletions view.Deletions
	// Notices are one-shot messages shown next to a story, keyed by story ID.
	Notices map[string]string
	// Forms holds inline errors and entered values, keyed by form identifier.
	Forms map[string]FormState
	// Banner is a one-shot page-level message.
	Banner string
}

// New returns a page in boot state for the given session.
func New(sess session.Session, stories story.List) *Page {
	return &Page{
		Session: sess,
		Stories: stories,
		Router:  view.NewRouter(),
		Notices: make(map[string]string),
		Forms:   make(map[string]FormState),
	}
}

// SetNotice records a message to show next to a story on the next render.
func (p *Page) SetNotice(storyID, msg string) {
	if p.Notices == nil {
		p.Notices = make(map[string]string)
	}
	p.Notices[storyID] = msg
}

// SetFormError records an inline error and the values to re-populate.
func (p *Page) SetFormError(form, msg string, values map[string]string) {
	if p.Forms == nil {
		p.Forms = make(map[string]FormState)
	}
	p.Forms[form] = FormState{Error: msg, Values: values}
}

// ClearForm forgets errors and values for a form.
func (p *Page) ClearForm(form string) {
	delete(p.Forms, form)
}

// ClearForms forgets every form's state, used after login.
func (p *Page) ClearForms() {
	p.Forms = make(map[string]FormState)
}

// TakeFlash returns and clears the one-shot notices and banner.
// POST: Notices is empty and Banner is ""
func (p *Page) TakeFlash() (map[string]string, string) {
	notices, banner := p.Notices, p.Banner
	p.Notices = make(map[string]string)
	p.Banner = ""
	return notices, banner
}
