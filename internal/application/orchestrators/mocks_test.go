package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"snooze/internal/domain/story"
	"snooze/internal/domain/user"
)

// remoteErr mimics a collaborator error carrying an API message.
type remoteErr struct{ msg string }

func (e remoteErr) Error() string       { return "remote: " + e.msg }
func (e remoteErr) UserMessage() string { return e.msg }

// mockUserAPI is an in-memory stand-in for the remote user collaborator.
type mockUserAPI struct {
	mu         sync.Mutex
	users      map[string]mockUser // username -> user
	tokens     map[string]string   // token -> username
	restoreErr error
	favErr     error
	unfavErr   error
	favCalls   []string
	unfavCalls []string
}

type mockUser struct {
	password  string
	rec       user.Record
	favorites []story.Story
}

func newMockUserAPI() *mockUserAPI {
	return &mockUserAPI{users: map[string]mockUser{}, tokens: map[string]string{}}
}

// addUser seeds an account.
func (m *mockUserAPI) addUser(username, password, name string, favorites, own []story.Story) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := "token-" + username
	m.users[username] = mockUser{
		password: password,
		rec: user.Record{
			Username:   username,
			Name:       name,
			CreatedAt:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			LoginToken: token,
			Stories:    own,
		},
		favorites: favorites,
	}
	m.tokens[token] = username
}

func (m *mockUserAPI) record(u mockUser) user.Record {
	rec := u.rec
	rec.Favorites = append([]story.Story(nil), u.favorites...)
	return rec
}

// Login implements UserAPI for testing.
// PRE: valid parameters
// POST: returns the record or an "Invalid credentials" error
func (m *mockUserAPI) Login(ctx context.Context, username, password string) (user.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok || u.password != password {
		return user.Record{}, remoteErr{msg: "Invalid password"}
	}
	return m.record(u), nil
}

// Create implements UserAPI for testing.
// PRE: valid parameters
// POST: returns the new record or a conflict error
func (m *mockUserAPI) Create(ctx context.Context, username, password, name string) (user.Record, error) {
	m.mu.Lock()
	if _, exists := m.users[username]; exists {
		m.mu.Unlock()
		return user.Record{}, remoteErr{msg: fmt.Sprintf("There is already a user with username '%s'", username)}
	}
	m.mu.Unlock()
	m.addUser(username, password, name, nil, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(m.users[username]), nil
}

// GetLoggedInUser implements UserAPI for testing.
// PRE: valid parameters
// POST: returns the record without a token, or an error for a bad token
func (m *mockUserAPI) GetLoggedInUser(ctx context.Context, token, username string) (user.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.restoreErr != nil {
		return user.Record{}, m.restoreErr
	}
	if m.tokens[token] != username {
		return user.Record{}, remoteErr{msg: "Unauthorized"}
	}
	rec := m.record(m.users[username])
	rec.LoginToken = ""
	return rec, nil
}

// FavoriteStory implements UserAPI for testing.
// PRE: valid parameters
// POST: records the call, returns favErr
func (m *mockUserAPI) FavoriteStory(ctx context.Context, token, username, storyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favCalls = append(m.favCalls, storyID)
	return m.favErr
}

// UnfavoriteStory implements UserAPI for testing.
// PRE: valid parameters
// POST: records the call, returns unfavErr
func (m *mockUserAPI) UnfavoriteStory(ctx context.Context, token, username, storyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unfavCalls = append(m.unfavCalls, storyID)
	return m.unfavErr
}

// mockStoryAPI is an in-memory stand-in for the remote story collaborator.
type mockStoryAPI struct {
	mu          sync.Mutex
	stories     []story.Story
	tokens      map[string]string // token -> username
	nextID      int
	getErr      error
	addErr      error
	deleteErr   error
	deleteCalls []string
}

// GetStories implements StoryAPI for testing.
// PRE: none
// POST: returns a copy of the stories or getErr
func (m *mockStoryAPI) GetStories(ctx context.Context) ([]story.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return append([]story.Story(nil), m.stories...), nil
}

// AddStory implements StoryAPI for testing.
// PRE: valid parameters
// POST: prepends and returns the story
func (m *mockStoryAPI) AddStory(ctx context.Context, token string, input story.NewStory) (story.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return story.Story{}, m.addErr
	}
	m.nextID++
	st := story.Story{
		ID:        fmt.Sprintf("new-%d", m.nextID),
		Title:     input.Title,
		URL:       input.URL,
		Author:    input.Author,
		Username:  m.tokens[token],
		CreatedAt: time.Now(),
	}
	m.stories = append([]story.Story{st}, m.stories...)
	return st, nil
}

// DeleteStory implements StoryAPI for testing.
// PRE: valid parameters
// POST: records the call and removes the story unless deleteErr is set
func (m *mockStoryAPI) DeleteStory(ctx context.Context, token, storyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls = append(m.deleteCalls, storyID)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, s := range m.stories {
		if s.ID == storyID {
			m.stories = append(m.stories[:i], m.stories[i+1:]...)
			break
		}
	}
	return nil
}

// mockStorage is an in-memory local storage.
type mockStorage struct {
	mu       sync.Mutex
	items    map[string]map[string]string
	setErr   error
	setCalls int
}

func newMockStorage() *mockStorage {
	return &mockStorage{items: map[string]map[string]string{}}
}

// GetItem implements LocalStorage for testing.
// PRE: valid parameters
// POST: returns the value and whether it was present
func (m *mockStorage) GetItem(ctx context.Context, visitorID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[visitorID][key]
	return v, ok, nil
}

// SetItems implements LocalStorage for testing.
// PRE: valid parameters
// POST: all items stored, or none if setErr is set
func (m *mockStorage) SetItems(ctx context.Context, visitorID string, items map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return m.setErr
	}
	if m.items[visitorID] == nil {
		m.items[visitorID] = map[string]string{}
	}
	for k, v := range items {
		m.items[visitorID][k] = v
	}
	return nil
}

// Clear implements LocalStorage for testing.
// PRE: valid parameters
// POST: all items for visitorID removed
func (m *mockStorage) Clear(ctx context.Context, visitorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, visitorID)
	return nil
}

var errNetwork = errors.New("connection refused")

// fixture wires the three mocks with a seeded user "ada" and two stories.
type fixture struct {
	users   *mockUserAPI
	stories *mockStoryAPI
	storage *mockStorage
}

func newFixture() *fixture {
	own := story.Story{ID: "s2", Title: "Mine", URL: "https://www.example.com/mine", Author: "Ada", Username: "ada"}
	other := story.Story{ID: "s1", Title: "Theirs", URL: "http://other.org/x", Author: "Bob", Username: "bob"}
	users := newMockUserAPI()
	users.addUser("ada", "secret", "Ada Lovelace", nil, []story.Story{own})
	return &fixture{
		users: users,
		stories: &mockStoryAPI{
			stories: []story.Story{own, other},
			tokens:  map[string]string{"token-ada": "ada"},
		},
		storage: newMockStorage(),
	}
}

func (f *fixture) deps() PageDeps {
	return PageDeps{Users: f.users, Stories: f.stories, Storage: f.storage}
}
