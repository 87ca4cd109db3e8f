package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"snooze/internal/adapters/http/perf"
	"snooze/internal/domain/story"
	"snooze/internal/domain/user"
)

// DefaultBaseURL is the public Hack-or-Snooze v3 API.
const DefaultBaseURL = "https://hack-or-snooze-v3.herokuapp.com"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Error is a non-2xx response from the API.
type Error struct {
	Status  int
	Title   string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Title)
	}
	return fmt.Sprintf("api: %d %s: %s", e.Status, e.Title, e.Message)
}

// UserMessage returns the human-readable message sent by the API.
func (e *Error) UserMessage() string { return e.Message }

// Client talks to the remote story and user API.
// It implements the orchestrators' UserAPI and StoryAPI ports.
type Client struct {
	baseURL   string
	http      *http.Client
	collector *perf.Collector
}

// NewClient creates a client for the API at baseURL.
// PRE: baseURL is an absolute URL; timeout > 0
// POST: Returns a ready-to-use client
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithCollector records the timing of every API call to collector.
func (c *Client) WithCollector(collector *perf.Collector) *Client {
	c.collector = collector
	return c
}

func (c *Client) record(method, path string, status int, start time.Time) {
	if c.collector == nil {
		return
	}
	c.collector.Record(perf.Entry{
		Kind:       perf.KindUpstream,
		Path:       method + " " + path,
		StatusCode: status,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}

type storyJSON struct {
	StoryID   string    `json:"storyId"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s storyJSON) toDomain() story.Story {
	return story.Story{
		ID:        s.StoryID,
		Title:     s.Title,
		URL:       s.URL,
		Author:    s.Author,
		Username:  s.Username,
		CreatedAt: s.CreatedAt,
	}
}

func toDomainStories(in []storyJSON) []story.Story {
	out := make([]story.Story, 0, len(in))
	for _, s := range in {
		out = append(out, s.toDomain())
	}
	return out
}

type userJSON struct {
	Username  string      `json:"username"`
	Name      string      `json:"name"`
	CreatedAt time.Time   `json:"createdAt"`
	Favorites []storyJSON `json:"favorites"`
	Stories   []storyJSON `json:"stories"`
}

func (u userJSON) toDomain(token string) user.Record {
	return user.Record{
		Username:   u.Username,
		Name:       u.Name,
		CreatedAt:  u.CreatedAt,
		LoginToken: token,
		Favorites:  toDomainStories(u.Favorites),
		Stories:    toDomainStories(u.Stories),
	}
}

type credentialsJSON struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token string   `json:"token"`
	User  userJSON `json:"user"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type errorEnvelope struct {
	Error struct {
		Status  int    `json:"status"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"error"`
}

// Login authenticates with username and password.
// PRE: username and password are non-empty
// POST: Returns the user record including its login token, or *Error
func (c *Client) Login(ctx context.Context, username, password string) (user.Record, error) {
	var resp authResponse
	body := map[string]credentialsJSON{"user": {Username: username, Password: password}}
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, &resp); err != nil {
		return user.Record{}, err
	}
	return resp.User.toDomain(resp.Token), nil
}

// Create registers a new account.
// PRE: username, password and name are non-empty
// POST: Returns the new user record including its login token, or *Error
func (c *Client) Create(ctx context.Context, username, password, name string) (user.Record, error) {
	var resp authResponse
	body := map[string]credentialsJSON{"user": {Username: username, Password: password, Name: name}}
	if err := c.do(ctx, http.MethodPost, "/signup", nil, body, &resp); err != nil {
		return user.Record{}, err
	}
	return resp.User.toDomain(resp.Token), nil
}

// GetLoggedInUser fetches the user a stored token belongs to.
// The API does not echo the token back, so LoginToken is set from the argument.
func (c *Client) GetLoggedInUser(ctx context.Context, token, username string) (user.Record, error) {
	var resp struct {
		User userJSON `json:"user"`
	}
	q := url.Values{"token": {token}}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(username), q, nil, &resp); err != nil {
		return user.Record{}, err
	}
	return resp.User.toDomain(token), nil
}

// FavoriteStory adds a story to the user's favorites.
func (c *Client) FavoriteStory(ctx context.Context, token, username, storyID string) error {
	return c.do(ctx, http.MethodPost, favoritePath(username, storyID), nil, tokenBody{Token: token}, nil)
}

// UnfavoriteStory removes a story from the user's favorites.
func (c *Client) UnfavoriteStory(ctx context.Context, token, username, storyID string) error {
	return c.do(ctx, http.MethodDelete, favoritePath(username, storyID), nil, tokenBody{Token: token}, nil)
}

func favoritePath(username, storyID string) string {
	return "/users/" + url.PathEscape(username) + "/favorites/" + url.PathEscape(storyID)
}

// GetStories fetches the front page, newest first.
func (c *Client) GetStories(ctx context.Context) ([]story.Story, error) {
	var resp struct {
		Stories []storyJSON `json:"stories"`
	}
	if err := c.do(ctx, http.MethodGet, "/stories", nil, nil, &resp); err != nil {
		return nil, err
	}
	return toDomainStories(resp.Stories), nil
}

// AddStory posts a new story as the token's owner.
// PRE: input passed Validate
// POST: Returns the story as stored by the API
func (c *Client) AddStory(ctx context.Context, token string, input story.NewStory) (story.Story, error) {
	body := struct {
		Token string `json:"token"`
		Story struct {
			Author string `json:"author"`
			Title  string `json:"title"`
			URL    string `json:"url"`
		} `json:"story"`
	}{Token: token}
	body.Story.Author = input.Author
	body.Story.Title = input.Title
	body.Story.URL = input.URL

	var resp struct {
		Story storyJSON `json:"story"`
	}
	if err := c.do(ctx, http.MethodPost, "/stories", nil, body, &resp); err != nil {
		return story.Story{}, err
	}
	return resp.Story.toDomain(), nil
}

// DeleteStory removes a story the token's owner posted.
func (c *Client) DeleteStory(ctx context.Context, token, storyID string) error {
	return c.do(ctx, http.MethodDelete, "/stories/"+url.PathEscape(storyID), nil, tokenBody{Token: token}, nil)
}

// do sends one JSON request and decodes the response into out (if non-nil).
// POST: Non-2xx responses are returned as *Error
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.record(method, path, 0, start)
		slog.Warn("api_event", "event", "request_failed", "method", method, "path", path, "error", err.Error())
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()
	c.record(method, path, res.StatusCode, start)
	slog.Debug("api_event", "event", "response", "method", method, "path", path, "status", res.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	apiErr := &Error{Status: status, Title: http.StatusText(status)}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil {
		if env.Error.Title != "" {
			apiErr.Title = env.Error.Title
		}
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
