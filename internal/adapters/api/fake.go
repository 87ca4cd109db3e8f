package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fake is an in-memory implementation of the remote API, served over HTTP.
// It is used by tests and by the server's local dev mode.
type Fake struct {
	mu      sync.Mutex
	users   map[string]*fakeUser // username -> user
	tokens  map[string]string    // token -> username
	stories []storyJSON          // newest first
	now     func() time.Time
}

type fakeUser struct {
	password  string
	name      string
	createdAt time.Time
	favorites []string
}

// NewFake returns an empty fake API.
func NewFake() *Fake {
	return &Fake{
		users:  make(map[string]*fakeUser),
		tokens: make(map[string]string),
		now:    time.Now,
	}
}

// SeedUser creates an account and returns its login token.
func (f *Fake) SeedUser(username, password, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createUser(username, password, name)
}

// SeedStory posts a story as username and returns its ID.
func (f *Fake) SeedStory(username, author, title, storyURL string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addStory(username, author, title, storyURL).StoryID
}

// StoryCount returns how many stories the fake holds.
func (f *Fake) StoryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stories)
}

func (f *Fake) createUser(username, password, name string) string {
	f.users[username] = &fakeUser{password: password, name: name, createdAt: f.now().UTC()}
	token := uuid.NewString()
	f.tokens[token] = username
	return token
}

func (f *Fake) addStory(username, author, title, storyURL string) storyJSON {
	st := storyJSON{
		StoryID:   uuid.NewString(),
		Title:     title,
		Author:    author,
		URL:       storyURL,
		Username:  username,
		CreatedAt: f.now().UTC(),
	}
	f.stories = append([]storyJSON{st}, f.stories...)
	return st
}

// Handler returns the HTTP surface of the fake.
func (f *Fake) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", f.handleLogin)
	mux.HandleFunc("POST /signup", f.handleSignup)
	mux.HandleFunc("GET /users/{username}", f.handleGetUser)
	mux.HandleFunc("POST /users/{username}/favorites/{storyID}", f.handleFavorite)
	mux.HandleFunc("DELETE /users/{username}/favorites/{storyID}", f.handleFavorite)
	mux.HandleFunc("GET /stories", f.handleGetStories)
	mux.HandleFunc("POST /stories", f.handleAddStory)
	mux.HandleFunc("DELETE /stories/{storyID}", f.handleDeleteStory)
	return mux
}

func (f *Fake) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User credentialsJSON `json:"user"`
	}
	if !decodeFakeBody(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[body.User.Username]
	if !ok {
		writeFakeError(w, http.StatusNotFound, fmt.Sprintf("No such user: %s", body.User.Username))
		return
	}
	if u.password != body.User.Password {
		writeFakeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	writeFakeJSON(w, http.StatusOK, authResponse{Token: f.tokenFor(body.User.Username), User: f.userJSON(body.User.Username)})
}

func (f *Fake) handleSignup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		User credentialsJSON `json:"user"`
	}
	if !decodeFakeBody(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[body.User.Username]; exists {
		writeFakeError(w, http.StatusConflict, fmt.Sprintf("There is already a user with username '%s'", body.User.Username))
		return
	}
	token := f.createUser(body.User.Username, body.User.Password, body.User.Name)
	writeFakeJSON(w, http.StatusCreated, authResponse{Token: token, User: f.userJSON(body.User.Username)})
}

func (f *Fake) handleGetUser(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	username := r.PathValue("username")
	if !f.authorized(w, r.URL.Query().Get("token"), username) {
		return
	}
	writeFakeJSON(w, http.StatusOK, map[string]userJSON{"user": f.userJSON(username)})
}

func (f *Fake) handleFavorite(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if !decodeFakeBody(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	username, storyID := r.PathValue("username"), r.PathValue("storyID")
	if !f.authorized(w, body.Token, username) {
		return
	}
	if f.storyIndex(storyID) < 0 {
		writeFakeError(w, http.StatusNotFound, fmt.Sprintf("No such story: %s", storyID))
		return
	}
	u := f.users[username]
	u.favorites = removeID(u.favorites, storyID)
	msg := "Favorite Removed!"
	if r.Method == http.MethodPost {
		u.favorites = append([]string{storyID}, u.favorites...)
		msg = "Favorite Added!"
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"message": msg, "user": f.userJSON(username)})
}

func (f *Fake) handleGetStories(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeFakeJSON(w, http.StatusOK, map[string][]storyJSON{"stories": append([]storyJSON{}, f.stories...)})
}

func (f *Fake) handleAddStory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
		Story struct {
			Author string `json:"author"`
			Title  string `json:"title"`
			URL    string `json:"url"`
		} `json:"story"`
	}
	if !decodeFakeBody(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	username, ok := f.tokens[body.Token]
	if !ok {
		writeFakeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}
	if body.Story.Title == "" || body.Story.Author == "" || body.Story.URL == "" {
		writeFakeError(w, http.StatusBadRequest, "story requires author, title and url")
		return
	}
	st := f.addStory(username, body.Story.Author, body.Story.Title, body.Story.URL)
	writeFakeJSON(w, http.StatusCreated, map[string]storyJSON{"story": st})
}

func (f *Fake) handleDeleteStory(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if !decodeFakeBody(w, r, &body) {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	storyID := r.PathValue("storyID")
	idx := f.storyIndex(storyID)
	if idx < 0 {
		writeFakeError(w, http.StatusNotFound, fmt.Sprintf("No such story: %s", storyID))
		return
	}
	if f.tokens[body.Token] != f.stories[idx].Username {
		writeFakeError(w, http.StatusForbidden, "You can only delete your own stories")
		return
	}
	st := f.stories[idx]
	f.stories = append(f.stories[:idx:idx], f.stories[idx+1:]...)
	for _, u := range f.users {
		u.favorites = removeID(u.favorites, storyID)
	}
	writeFakeJSON(w, http.StatusOK, map[string]any{"message": "Deleted!", "story": st})
}

// authorized writes a 401 unless token belongs to username. Caller holds f.mu.
func (f *Fake) authorized(w http.ResponseWriter, token, username string) bool {
	if owner, ok := f.tokens[token]; !ok || owner != username {
		writeFakeError(w, http.StatusUnauthorized, "Invalid token")
		return false
	}
	return true
}

func (f *Fake) tokenFor(username string) string {
	for token, owner := range f.tokens {
		if owner == username {
			return token
		}
	}
	token := uuid.NewString()
	f.tokens[token] = username
	return token
}

func (f *Fake) storyIndex(id string) int {
	for i, st := range f.stories {
		if st.StoryID == id {
			return i
		}
	}
	return -1
}

func (f *Fake) userJSON(username string) userJSON {
	u := f.users[username]
	out := userJSON{
		Username:  username,
		Name:      u.name,
		CreatedAt: u.createdAt,
		Favorites: []storyJSON{},
		Stories:   []storyJSON{},
	}
	for _, id := range u.favorites {
		if i := f.storyIndex(id); i >= 0 {
			out.Favorites = append(out.Favorites, f.stories[i])
		}
	}
	for _, st := range f.stories {
		if st.Username == username {
			out.Stories = append(out.Stories, st)
		}
	}
	return out
}

func removeID(ids []string, id string) []string {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func decodeFakeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFakeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func writeFakeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFakeError(w http.ResponseWriter, status int, message string) {
	var env errorEnvelope
	env.Error.Status = status
	env.Error.Title = http.StatusText(status)
	env.Error.Message = message
	writeFakeJSON(w, status, env)
}
