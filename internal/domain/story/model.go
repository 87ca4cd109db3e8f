package story

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Max length constants for user-editable fields.
const (
	MaxTitleLength  = 200
	MaxAuthorLength = 100
)

// Domain errors
var (
	ErrEmptyTitle    = errors.New("title cannot be empty")
	ErrEmptyAuthor   = errors.New("author cannot be empty")
	ErrEmptyURL      = errors.New("url cannot be empty")
	ErrInvalidURL    = errors.New("url must be an http or https address")
	ErrTitleTooLong  = errors.New("title cannot exceed 200 characters")
	ErrAuthorTooLong = errors.New("author cannot exceed 100 characters")
)

// ValidationErrors lists every error Validate can return.
var ValidationErrors = []error{ErrEmptyTitle, ErrTitleTooLong, ErrEmptyAuthor, ErrAuthorTooLong, ErrEmptyURL, ErrInvalidURL}

// Story holds state for a single submitted link. Stories are immutable once loaded.
type Story struct {
	ID        string
	Title     string
	URL       string
	Author    string
	Username  string
	CreatedAt time.Time
}

// NewStory carries the fields a user fills in on the submit form.
type NewStory struct {
	Author string
	Title  string
	URL    string
}

// Validate checks if the NewStory has valid data.
// PRE: NewStory struct is populated
// POST: Returns nil if valid, error otherwise
func (n NewStory) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return ErrEmptyTitle
	}
	if len(n.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if strings.TrimSpace(n.Author) == "" {
		return ErrEmptyAuthor
	}
	if len(n.Author) > MaxAuthorLength {
		return ErrAuthorTooLong
	}
	if strings.TrimSpace(n.URL) == "" {
		return ErrEmptyURL
	}
	u, err := url.Parse(strings.TrimSpace(n.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// HostName pulls the display hostname out of a story URL.
// "https://www.example.com/x" and "example.com/x" both yield "example.com".
// INVARIANT: never panics, returns "" for an empty URL
func HostName(rawURL string) string {
	var host string
	parts := strings.Split(rawURL, "/")
	if strings.Contains(rawURL, "://") {
		if len(parts) > 2 {
			host = parts[2]
		}
	} else {
		host = parts[0]
	}
	return strings.TrimPrefix(host, "www.")
}
