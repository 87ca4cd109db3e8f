package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/securecookie"

	"snooze/internal/adapters/api"
	"snooze/internal/adapters/http/middleware"
	"snooze/internal/adapters/http/perf"
	"snooze/internal/adapters/storage/localstore"
	"snooze/internal/application/orchestrators"
	"snooze/internal/domain/story"
	"snooze/internal/domain/view"
)

var testCookieSecret = []byte("0123456789abcdef0123456789abcdef")

type testApp struct {
	srv       *httptest.Server
	fake      *api.Fake
	store     *localstore.MemoryStore
	codec     *securecookie.SecureCookie
	collector *perf.Collector
	deps      orchestrators.PageDeps
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	RateLimitPerSecond = 1000

	fake := api.NewFake()
	upstream := httptest.NewServer(fake.Handler())
	t.Cleanup(upstream.Close)

	codec, err := middleware.NewVisitorCodec(testCookieSecret)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	collector := perf.NewCollector(100)
	client := api.NewClient(upstream.URL, 5*time.Second).WithCollector(collector)
	store := localstore.NewMemoryStore()

	app := &testApp{
		fake:      fake,
		store:     store,
		codec:     codec,
		collector: collector,
		deps:      orchestrators.PageDeps{Users: client, Stories: client, Storage: store},
	}
	app.restart(t)
	return app
}

// restart replaces the server with a fresh one sharing storage, keys and
// the upstream API, dropping every in-memory page.
func (a *testApp) restart(t *testing.T) {
	t.Helper()
	if a.srv != nil {
		a.srv.Close()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	a.srv = httptest.NewServer(NewMux(ctx, Config{
		Deps:      a.deps,
		Collector: a.collector,
		CSRFKey:   bytes.Repeat([]byte("k"), 32),
		Codec:     a.codec,
		Debug:     true,
	}))
	t.Cleanup(a.srv.Close)
}

// browser is a cookie-keeping client that posts forms the way the page does.
type browser struct {
	t     *testing.T
	app   *testApp
	http  *http.Client
	token string
}

func (a *testApp) newBrowser(t *testing.T) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("jar: %v", err)
	}
	return &browser{t: t, app: a, http: &http.Client{Jar: jar}}
}

func (b *browser) load(resp *http.Response, err error) *goquery.Document {
	b.t.Helper()
	if err != nil {
		b.t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b.t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		b.t.Fatalf("parse: %v", err)
	}
	b.token, _ = doc.Find(`input[name="gorilla.csrf.Token"]`).First().Attr("value")
	return doc
}

func (b *browser) get() *goquery.Document {
	b.t.Helper()
	return b.load(b.http.Get(b.app.srv.URL + "/"))
}

// post submits a form and follows the redirect back to the page.
func (b *browser) post(path string, form url.Values) *goquery.Document {
	b.t.Helper()
	if b.token == "" {
		b.get()
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set("gorilla.csrf.Token", b.token)
	return b.load(b.http.PostForm(b.app.srv.URL+path, form))
}

func (b *browser) login(username, password string) *goquery.Document {
	b.t.Helper()
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func (b *browser) visitorID() string {
	b.t.Helper()
	u, _ := url.Parse(b.app.srv.URL)
	for _, c := range b.http.Jar.Cookies(u) {
		if c.Name == "snooze_visitor" {
			var id string
			if err := b.app.codec.Decode("snooze_visitor", c.Value, &id); err != nil {
				b.t.Fatalf("decode visitor cookie: %v", err)
			}
			return id
		}
	}
	b.t.Fatal("no visitor cookie")
	return ""
}

func hidden(doc *goquery.Document, section view.Section) bool {
	_, ok := doc.Find(fmt.Sprintf(`[data-section="%s"]`, section)).Attr("hidden")
	return ok
}

func storyRow(doc *goquery.Document, id string) *goquery.Selection {
	return doc.Find(fmt.Sprintf(`#all-stories-list li[data-story-id="%s"]`, id))
}

func TestFrontPage_AnonymousShowsStoriesWithoutControls(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedStory("bob", "Bob", "Older", "http://www.old.org/a")
	newest := app.fake.SeedStory("bob", "Bob", "Newer", "https://example.com/b")

	doc := app.newBrowser(t).get()

	rows := doc.Find("#all-stories-list li")
	if rows.Length() != 2 {
		t.Fatalf("expected 2 stories, got %d", rows.Length())
	}
	if id, _ := rows.First().Attr("data-story-id"); id != newest {
		t.Errorf("expected newest story first, got %s", id)
	}
	if doc.Find(".fav-button").Length() != 0 || doc.Find(".delete-story").Length() != 0 {
		t.Error("anonymous viewers must not see favorite or delete controls")
	}
	if doc.Find(".article-hostname.old\\.org").Length() != 1 {
		t.Error("expected hostname old.org as text and class")
	}
	if hidden(doc, view.SectionAllStories) || !hidden(doc, view.SectionLoginForm) {
		t.Error("expected only the story list visible on boot")
	}
	if doc.Find("#nav-login").Length() != 1 || doc.Find("#nav-logout").Length() != 0 {
		t.Error("expected login link and no user links")
	}
}

func TestLogin_FailureKeepsFormAndUsername(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada Lovelace")
	b := app.newBrowser(t)

	b.post("/nav/toggle-login-signup", nil)
	doc := b.login("ada", "wrong")

	if hidden(doc, view.SectionLoginForm) {
		t.Fatal("expected login form still visible")
	}
	if got := strings.TrimSpace(doc.Find("#login-form .form-error").Text()); got != "Invalid password" {
		t.Errorf("expected remote message, got %q", got)
	}
	if v, _ := doc.Find("#login-username").Attr("value"); v != "ada" {
		t.Errorf("expected username retained, got %q", v)
	}
	if v, _ := doc.Find("#login-password").Attr("value"); v != "" {
		t.Error("password must never be retained")
	}
	if _, ok, _ := app.store.GetItem(context.Background(), b.visitorID(), orchestrators.StorageKeyToken); ok {
		t.Error("expected nothing persisted after a failed login")
	}
}

func TestLogin_SuccessHidesFormsPersistsAndSurvivesRestart(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada Lovelace")
	app.fake.SeedStory("bob", "Bob", "Hello", "https://example.com")
	b := app.newBrowser(t)

	b.post("/nav/toggle-login-signup", nil)
	doc := b.login("ada", "secret")

	if !hidden(doc, view.SectionLoginForm) || !hidden(doc, view.SectionSignupForm) {
		t.Error("expected both account forms hidden")
	}
	if got := doc.Find("#nav-user-profile").Text(); got != "ada" {
		t.Errorf("expected nav username, got %q", got)
	}
	if doc.Find("#all-stories-list .fav-button i.far").Length() != 1 {
		t.Error("expected an empty star on the loaded story")
	}
	if got := doc.Find("#profile-name b").Text(); got != "Ada Lovelace" {
		t.Errorf("expected profile populated, got %q", got)
	}

	tok, ok, _ := app.store.GetItem(context.Background(), b.visitorID(), orchestrators.StorageKeyToken)
	if !ok || tok == "" {
		t.Fatal("expected token persisted")
	}

	app.restart(t)
	doc = b.get()
	if got := doc.Find("#nav-user-profile").Text(); got != "ada" {
		t.Errorf("expected session restored from storage, got nav %q", got)
	}
}

func TestToggleFavorite_FlipsIconAndFavoritesList(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada")
	id := app.fake.SeedStory("bob", "Bob", "Hello", "https://example.com")
	b := app.newBrowser(t)
	b.login("ada", "secret")

	doc := b.post("/stories/"+id+"/favorite", nil)
	if storyRow(doc, id).Find("i.fas.fa-star").Length() != 1 {
		t.Fatal("expected a filled star after favoriting")
	}

	doc = b.post("/nav/show-favorites", nil)
	if hidden(doc, view.SectionFavorites) || !hidden(doc, view.SectionAllStories) {
		t.Error("expected only favorites visible")
	}
	if doc.Find(fmt.Sprintf(`#favorited-articles li[data-story-id="%s"]`, id)).Length() != 1 {
		t.Error("expected the story in the favorites list")
	}
	ids := map[string]bool{}
	doc.Find("[id]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		if ids[id] {
			t.Errorf("duplicate element id %q", id)
		}
		ids[id] = true
	})

	doc = b.post("/stories/"+id+"/favorite", nil)
	if doc.Find("#favorited-articles li.story").Length() != 0 {
		t.Error("expected favorites emptied after unfavoriting")
	}
	if got := doc.Find("#favorited-articles > li.placeholder").Text(); got != view.EmptyListMessage {
		t.Errorf("expected placeholder, got %q", got)
	}
}

func TestToggleFavorite_AnonymousGetsBanner(t *testing.T) {
	app := newTestApp(t)
	id := app.fake.SeedStory("bob", "Bob", "Hello", "https://example.com")
	b := app.newBrowser(t)

	doc := b.post("/stories/"+id+"/favorite", nil)
	if got := doc.Find("#banner").Text(); got != orchestrators.ErrNotLoggedIn.Error() {
		t.Errorf("expected not-logged-in banner, got %q", got)
	}
	if doc = b.get(); doc.Find("#banner").Length() != 0 {
		t.Error("expected banner to be one-shot")
	}
}

func TestDeleteStory_ConfirmationFlow(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada")
	mine := app.fake.SeedStory("ada", "Ada", "Mine", "https://example.com/mine")
	theirs := app.fake.SeedStory("bob", "Bob", "Theirs", "https://example.com/theirs")
	b := app.newBrowser(t)

	doc := b.login("ada", "secret")
	if storyRow(doc, theirs).Find(".delete-story").Length() != 0 {
		t.Error("expected no delete control on another user's story")
	}
	if storyRow(doc, mine).Find(".delete-link").Length() != 1 {
		t.Fatal("expected delete link on own story")
	}

	doc = b.post("/stories/"+mine+"/delete/delete", nil)
	row := storyRow(doc, mine)
	if !strings.Contains(row.Find(".delete-story").Text(), "are you sure?") || row.Find(".delete-yes").Length() != 1 {
		t.Fatal("expected confirmation after delete")
	}

	doc = b.post("/stories/"+mine+"/delete/no", nil)
	if storyRow(doc, mine).Find(".delete-link").Length() != 1 {
		t.Error("expected no to return to the delete link")
	}
	if app.fake.StoryCount() != 2 {
		t.Fatal("no must not send a delete request")
	}

	b.post("/stories/"+mine+"/delete/delete", nil)
	doc = b.post("/stories/"+mine+"/delete/yes", nil)
	if storyRow(doc, mine).Length() != 0 {
		t.Error("expected story removed from the page")
	}
	if app.fake.StoryCount() != 1 {
		t.Errorf("expected 1 story left upstream, got %d", app.fake.StoryCount())
	}
}

func TestDeleteStory_UnknownActionIsBadRequest(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser(t)
	b.get()

	form := url.Values{"gorilla.csrf.Token": {b.token}}
	resp, err := b.http.PostForm(app.srv.URL+"/stories/s1/delete/maybe", form)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitStory_EndToEnd(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada")
	app.fake.SeedStory("bob", "Bob", "Older", "https://old.org")
	b := app.newBrowser(t)
	b.login("ada", "secret")

	doc := b.post("/nav/show-submit-form", nil)
	if hidden(doc, view.SectionSubmitForm) {
		t.Fatal("expected submit form visible")
	}

	doc = b.post("/stories", url.Values{"author": {"Ada"}, "title": {"Notes"}, "url": {"https://www.example.com/notes"}})
	first := doc.Find("#all-stories-list li").First()
	if got := first.Find(".article-link strong").Text(); got != "Notes" {
		t.Fatalf("expected new story first, got %q", got)
	}
	if got := first.Find(".article-username").Text(); got != "posted by ada" {
		t.Errorf("expected posted by ada, got %q", got)
	}
	if first.Find(".article-hostname.example\\.com").Length() != 1 {
		t.Error("expected hostname example.com")
	}
	if first.Find(".delete-link").Length() != 1 {
		t.Error("expected the new story to be deletable by its owner")
	}
	if !hidden(doc, view.SectionSubmitForm) {
		t.Error("expected submit form hidden after success")
	}
	if v, _ := doc.Find("#title").Attr("value"); v != "" {
		t.Errorf("expected form reset, got title %q", v)
	}

	doc = b.post("/nav/show-own-stories", nil)
	if doc.Find("#my-articles li.story").Length() != 1 {
		t.Error("expected the story under my stories")
	}
}

func TestSubmitStory_InvalidKeepsValues(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada")
	b := app.newBrowser(t)
	b.login("ada", "secret")
	b.post("/nav/show-submit-form", nil)

	doc := b.post("/stories", url.Values{"author": {"Ada"}, "title": {"Notes"}, "url": {""}})
	if got := doc.Find("#submit-form .form-error").Text(); got != story.ErrEmptyURL.Error() {
		t.Errorf("expected url error, got %q", got)
	}
	if v, _ := doc.Find("#title").Attr("value"); v != "Notes" {
		t.Errorf("expected title retained, got %q", v)
	}
	if hidden(doc, view.SectionSubmitForm) {
		t.Error("expected submit form still visible")
	}
	if app.fake.StoryCount() != 0 {
		t.Error("expected nothing sent upstream")
	}
}

func TestNavigate(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada")
	b := app.newBrowser(t)

	doc := b.post("/nav/show-favorites", nil)
	if got := doc.Find("#banner").Text(); got != view.ErrLoginRequired.Error() {
		t.Errorf("expected login-required banner, got %q", got)
	}
	if !hidden(doc, view.SectionFavorites) {
		t.Error("anonymous viewers must not see favorites")
	}

	b.login("ada", "secret")
	doc = b.post("/nav/show-profile", nil)
	if hidden(doc, view.SectionProfile) {
		t.Error("expected profile visible")
	}

	doc = b.post("/logout", nil)
	if doc.Find("#nav-login").Length() != 1 || !hidden(doc, view.SectionProfile) {
		t.Error("expected logged-out boot page after logout")
	}
	if _, ok, _ := app.store.GetItem(context.Background(), b.visitorID(), orchestrators.StorageKeyToken); ok {
		t.Error("expected storage cleared on logout")
	}
}

func TestNavigate_UnknownEventIsNotFound(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser(t)
	b.get()

	resp, err := b.http.PostForm(app.srv.URL+"/nav/explode", url.Values{"gorilla.csrf.Token": {b.token}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestCSRF_FormPostWithoutTokenRejected(t *testing.T) {
	app := newTestApp(t)
	b := app.newBrowser(t)
	b.get()

	resp, err := b.http.PostForm(app.srv.URL+"/login", url.Values{"username": {"ada"}, "password": {"x"}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func postJSON(t *testing.T, b *browser, path string, body any) (int, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := b.http.Post(b.app.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestJSON_PageEvents(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada")
	id := app.fake.SeedStory("bob", "Bob", "Hello", "https://example.com")
	b := app.newBrowser(t)

	status, out := postJSON(t, b, "/login", map[string]string{"username": "ada", "password": "wrong"})
	if status != http.StatusUnauthorized || out["error"] != "Invalid password" {
		t.Errorf("expected 401 Invalid password, got %d %v", status, out)
	}

	status, out = postJSON(t, b, "/stories/"+id+"/favorite", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for anonymous favorite, got %d %v", status, out)
	}

	status, out = postJSON(t, b, "/login", map[string]string{"username": "ada", "password": "secret"})
	if status != http.StatusOK || out["authenticated"] != true || out["username"] != "ada" {
		t.Fatalf("expected session view, got %d %v", status, out)
	}

	status, out = postJSON(t, b, "/stories/"+id+"/favorite", nil)
	favs, _ := out["favorites"].([]any)
	if status != http.StatusOK || len(favs) != 1 || favs[0] != id {
		t.Errorf("expected favorite recorded, got %d %v", status, out)
	}

	status, _ = postJSON(t, b, "/stories/missing/favorite", nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for an unloaded story, got %d", status)
	}

	status, _ = postJSON(t, b, "/stories/"+id+"/delete/delete", nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 deleting another user's story, got %d", status)
	}

	status, _ = postJSON(t, b, "/stories", map[string]string{"author": "Ada", "title": "", "url": "https://x.org"})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for an invalid story, got %d", status)
	}

	status, _ = postJSON(t, b, "/login", map[string]string{"username": "ada", "extra": "field"})
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown JSON fields, got %d", status)
	}
}

func TestJSON_FrontPage(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedStory("bob", "Bob", "Hello", "https://www.example.com/x")
	b := app.newBrowser(t)

	req, _ := http.NewRequest(http.MethodGet, app.srv.URL+"/", nil)
	req.Header.Set("Accept", "application/json")
	resp, err := b.http.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var out frontPageJSON
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Session.Authenticated || len(out.Visible) != 1 || out.Visible[0] != string(view.SectionAllStories) {
		t.Errorf("unexpected page state %+v", out)
	}
	if len(out.Stories) != 1 || out.Stories[0].HostName != "example.com" {
		t.Errorf("unexpected stories %+v", out.Stories)
	}
}

func TestFeed(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedStory("bob", "Bob", "Hello feed", "https://example.com")

	resp, err := http.Get(app.srv.URL + "/feed.atom")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/atom+xml") {
		t.Errorf("unexpected content type %q", ct)
	}
	if !strings.Contains(buf.String(), "Hello feed") {
		t.Errorf("expected story in feed:\n%s", buf.String())
	}
}

func TestStaticAndSecurityHeaders(t *testing.T) {
	app := newTestApp(t)

	resp, err := http.Get(app.srv.URL + "/static/site.css")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected stylesheet served, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("expected security headers on static assets")
	}
}

func TestDebugPerf(t *testing.T) {
	app := newTestApp(t)
	app.newBrowser(t).get()

	resp, err := http.Get(app.srv.URL + "/debug/perf")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var snap perf.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.TotalRecorded == 0 || len(snap.SlowestUpstream) == 0 {
		t.Errorf("expected request and upstream timings, got %+v", snap)
	}
}

func TestNavigate_ToggleLoginSignupRejectedWhenLoggedIn(t *testing.T) {
	app := newTestApp(t)
	app.fake.SeedUser("ada", "secret", "Ada")
	b := app.newBrowser(t)
	b.login("ada", "secret")

	doc := b.post("/nav/toggle-login-signup", nil)
	if !hidden(doc, view.SectionLoginForm) || !hidden(doc, view.SectionSignupForm) {
		t.Error("logged-in visitors must not see the account forms")
	}
	if got := doc.Find("#banner").Text(); got != view.ErrLoggedIn.Error() {
		t.Errorf("expected already-logged-in banner, got %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"auth", &orchestrators.AuthError{Message: "Invalid password"}, http.StatusUnauthorized},
		{"not logged in", orchestrators.ErrNotLoggedIn, http.StatusUnauthorized},
		{"login required", fmt.Errorf("nav: %w", view.ErrLoginRequired), http.StatusUnauthorized},
		{"in flight", orchestrators.ErrRequestInFlight, http.StatusConflict},
		{"remote", &orchestrators.TransientRemoteError{Op: "delete story", Message: "Unauthorized"}, http.StatusBadGateway},
		{"not owner", orchestrators.ErrNotOwner, http.StatusForbidden},
		{"already logged in", view.ErrLoggedIn, http.StatusForbidden},
		{"not found", orchestrators.ErrStoryNotFound, http.StatusNotFound},
		{"validation", story.ErrInvalidURL, http.StatusBadRequest},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
