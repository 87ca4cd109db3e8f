package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/csrf"

	"snooze/internal/adapters/feed"
	"snooze/internal/adapters/http/middleware"
	"snooze/internal/adapters/http/perf"
	"snooze/internal/application/orchestrators"
	"snooze/internal/application/projections"
	"snooze/internal/domain/page"
	"snooze/internal/domain/story"
	"snooze/internal/domain/view"
)

const siteTitle = "Hack or Snooze"

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var assets embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	// row bundles a story with the form token so the partial can post.
	// list prefixes the element id; a story can appear in several lists.
	"row": func(list string, f projections.StoryFragment, csrfField template.HTML) map[string]any {
		return map[string]any{"List": list, "Story": f, "CSRF": csrfField}
	},
}).ParseFS(templateFS, "templates/*.html"))

// server holds what the handlers share.
type server struct {
	deps      orchestrators.PageDeps
	pages     *pageRegistry
	collector *perf.Collector
	siteURL   string
	now       func() time.Time
}

func newServer(ctx context.Context, cfg Config) *server {
	return &server{
		deps:      cfg.Deps,
		pages:     newPageRegistry(ctx, cfg.Deps, cfg.PageIdle),
		collector: cfg.Collector,
		siteURL:   cfg.SiteURL,
		now:       time.Now,
	}
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(r *http.Request) bool {
	return isJSONBody(r) || strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("internal_error", "error", err.Error())
	}
}

// formBinder is implemented by request types that can be filled from a form post.
type formBinder interface {
	bindForm(v url.Values)
}

// bind fills dst from a JSON body or a form post.
func bind(w http.ResponseWriter, r *http.Request, dst formBinder) error {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if isJSONBody(r) {
		return strictDecode(r, dst)
	}
	if err := r.ParseForm(); err != nil {
		return err
	}
	dst.bindForm(r.PostForm)
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (q *loginRequest) bindForm(v url.Values) {
	q.Username, q.Password = v.Get("username"), v.Get("password")
}

type signupRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (q *signupRequest) bindForm(v url.Values) {
	q.Name, q.Username, q.Password = v.Get("name"), v.Get("username"), v.Get("password")
}

type storyRequest struct {
	Author string `json:"author"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

func (q *storyRequest) bindForm(v url.Values) {
	q.Author, q.Title, q.URL = v.Get("author"), v.Get("title"), v.Get("url")
}

// statusFor maps a page event error to an HTTP status.
func statusFor(err error) int {
	var authErr *orchestrators.AuthError
	var remoteErr *orchestrators.TransientRemoteError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &authErr),
		errors.Is(err, orchestrators.ErrNotLoggedIn),
		errors.Is(err, view.ErrLoginRequired):
		return http.StatusUnauthorized
	case errors.Is(err, orchestrators.ErrRequestInFlight):
		return http.StatusConflict
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	case errors.Is(err, orchestrators.ErrNotOwner),
		errors.Is(err, view.ErrLoggedIn):
		return http.StatusForbidden
	case errors.Is(err, orchestrators.ErrStoryNotFound):
		return http.StatusNotFound
	case isValidationError(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func isValidationError(err error) bool {
	for _, v := range story.ValidationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// messageFor returns the text shown to the user for a page event error.
func messageFor(err error) string {
	var remoteErr *orchestrators.TransientRemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Message
	}
	return err.Error()
}

// bannerWorthy errors are not recorded on the page by the orchestrators.
func bannerWorthy(err error) bool {
	return errors.Is(err, orchestrators.ErrNotLoggedIn) ||
		errors.Is(err, orchestrators.ErrNotOwner) ||
		errors.Is(err, orchestrators.ErrStoryNotFound)
}

// pageEvent runs fn against the requesting visitor's page and answers the way
// the client asked: JSON with a status code, or a redirect back to the page.
func (s *server) pageEvent(w http.ResponseWriter, r *http.Request, guardKey string, fn func(ctx context.Context, visitorID string, p *page.Page) error) {
	visitorID, ok := middleware.GetVisitorFromContext(r.Context())
	if !ok {
		internalError(w, errors.New("visitor id missing from request context"))
		return
	}

	var sessionView projections.SessionView
	err := s.pages.run(r.Context(), visitorID, guardKey, func(p *page.Page) error {
		err := fn(r.Context(), visitorID, p)
		if err != nil && bannerWorthy(err) {
			p.Banner = err.Error()
		}
		sessionView = projections.QuerySessionView(p.Session)
		return err
	})

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		internalError(w, err)
		return
	}
	if errors.Is(err, orchestrators.ErrRequestInFlight) {
		slog.Info("page_event", "event", "duplicate_ignored", "guard", guardKey)
	}

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		writeJSON(w, status, map[string]string{"error": messageFor(err)})
		return
	}
	writeJSON(w, http.StatusOK, sessionView)
}

// frontPageData is what layout.html renders.
type frontPageData struct {
	Page      projections.GetFrontPageResult
	CSRFField template.HTML
	Title     string
}

// frontPageJSON is the front page for JSON clients.
type frontPageJSON struct {
	Session projections.SessionView `json:"session"`
	Visible []string                `json:"visible"`
	Stories []storyJSON             `json:"stories"`
	Banner  string                  `json:"banner,omitempty"`
}

type storyJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Author    string `json:"author"`
	Username  string `json:"username"`
	HostName  string `json:"hostname"`
	Favorited bool   `json:"favorited"`
	Deletable bool   `json:"deletable"`
	Notice    string `json:"notice,omitempty"`
}

// handleFrontPage handles GET /
func (s *server) handleFrontPage(w http.ResponseWriter, r *http.Request) {
	visitorID, ok := middleware.GetVisitorFromContext(r.Context())
	if !ok {
		internalError(w, errors.New("visitor id missing from request context"))
		return
	}
	locale := projections.ParseLocale(r.Header.Get("Accept-Language"))

	var result projections.GetFrontPageResult
	var sessionView projections.SessionView
	_ = s.pages.load(r.Context(), visitorID, func(p *page.Page) error {
		notices, banner := p.TakeFlash()
		result = projections.QueryGetFrontPage(p, projections.GetFrontPageQuery{
			Locale:  locale,
			Notices: notices,
			Banner:  banner,
		})
		sessionView = projections.QuerySessionView(p.Session)
		return nil
	})

	if wantsJSON(r) {
		out := frontPageJSON{Session: sessionView, Visible: []string{}, Stories: []storyJSON{}, Banner: result.Banner}
		for _, sec := range view.Sections {
			if !result.Hidden(string(sec)) {
				out.Visible = append(out.Visible, string(sec))
			}
		}
		for _, f := range result.AllStories {
			out.Stories = append(out.Stories, storyJSON{
				ID: f.ID, Title: f.Title, URL: f.URL, Author: f.Author, Username: f.Username,
				HostName: f.HostName, Favorited: f.Favorited, Deletable: f.ShowDelete, Notice: f.Notice,
			})
		}
		writeJSON(w, http.StatusOK, out)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	data := frontPageData{Page: result, CSRFField: csrf.TemplateField(r), Title: siteTitle}
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		slog.Error("internal_error", "error", err.Error(), "template", "layout.html")
	}
}

// handleNavigate handles POST /nav/{event}
func (s *server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	event, err := view.ParseEvent(r.PathValue("event"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	s.pageEvent(w, r, "", func(ctx context.Context, visitorID string, p *page.Page) error {
		return orchestrators.ExecuteNavigate(ctx, p, visitorID, event, s.deps)
	})
}

// handleLogout handles POST /logout
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.pageEvent(w, r, "", func(ctx context.Context, visitorID string, p *page.Page) error {
		return orchestrators.ExecuteNavigate(ctx, p, visitorID, view.EventLogout, s.deps)
	})
}

// handleLogin handles POST /login
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(w, r, &req); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	s.pageEvent(w, r, orchestrators.GuardLogin, func(ctx context.Context, visitorID string, p *page.Page) error {
		return orchestrators.ExecutePageLogin(ctx, p, visitorID, orchestrators.LoginInput{
			Username: req.Username,
			Password: req.Password,
		}, s.deps)
	})
}

// handleSignup handles POST /signup
func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := bind(w, r, &req); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	s.pageEvent(w, r, orchestrators.GuardSignup, func(ctx context.Context, visitorID string, p *page.Page) error {
		return orchestrators.ExecutePageSignup(ctx, p, visitorID, orchestrators.CreateAccountInput{
			Username: req.Username,
			Password: req.Password,
			Name:     req.Name,
		}, s.deps)
	})
}

// handleSubmitStory handles POST /stories
func (s *server) handleSubmitStory(w http.ResponseWriter, r *http.Request) {
	var req storyRequest
	if err := bind(w, r, &req); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	s.pageEvent(w, r, orchestrators.GuardSubmit, func(ctx context.Context, _ string, p *page.Page) error {
		return orchestrators.ExecuteSubmitStory(ctx, p, story.NewStory{
			Author: req.Author,
			Title:  req.Title,
			URL:    req.URL,
		}, orchestrators.SubmitStoryDeps{Stories: s.deps.Stories})
	})
}

// handleToggleFavorite handles POST /stories/{id}/favorite
func (s *server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	storyID := r.PathValue("id")
	s.pageEvent(w, r, orchestrators.GuardFavorite(storyID), func(ctx context.Context, _ string, p *page.Page) error {
		return orchestrators.ExecuteToggleFavorite(ctx, p, storyID, orchestrators.ToggleFavoriteDeps{Users: s.deps.Users})
	})
}

// handleDeleteStep handles POST /stories/{id}/delete/{action}
func (s *server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	storyID := r.PathValue("id")
	action, err := view.ParseDeleteAction(r.PathValue("action"))
	if err != nil {
		http.Error(w, "Unknown delete action", http.StatusBadRequest)
		return
	}
	s.pageEvent(w, r, orchestrators.GuardDelete(storyID), func(ctx context.Context, _ string, p *page.Page) error {
		return orchestrators.ExecuteDeleteStep(ctx, p, storyID, action, orchestrators.DeleteStepDeps{Stories: s.deps.Stories})
	})
}

// handleFeed handles GET /feed.atom with a fresh copy of the front page.
func (s *server) handleFeed(w http.ResponseWriter, r *http.Request) {
	stories, err := s.deps.Stories.GetStories(r.Context())
	if err != nil {
		slog.Warn("feed_event", "event", "fetch_failed", "error", err.Error())
		http.Error(w, orchestrators.RemoteMessage(err), http.StatusBadGateway)
		return
	}
	out, err := feed.Atom(stories, feed.Options{Title: siteTitle, SiteURL: s.siteURLFor(r), Now: s.now()})
	if err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	_, _ = io.WriteString(w, out)
}

func (s *server) siteURLFor(r *http.Request) string {
	if s.siteURL != "" {
		return s.siteURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/"
}

// handlePerf handles GET /debug/perf
func (s *server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.collector.Snapshot(s.now().Add(-time.Hour), 10))
}
