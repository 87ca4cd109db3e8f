package feed

import (
	"fmt"
	"html"
	"net/url"
	"time"

	"github.com/gorilla/feeds"

	"snooze/internal/domain/story"
)

// Options describes the feed itself.
type Options struct {
	Title   string
	SiteURL string // absolute URL of the front page
	Now     time.Time
}

// Atom renders stories as an Atom feed, newest first.
// PRE: opts.SiteURL is absolute
// POST: Returns the feed XML; entries keep the order of stories
func Atom(stories []story.Story, opts Options) (string, error) {
	site, err := url.Parse(opts.SiteURL)
	if err != nil || site.Host == "" {
		return "", fmt.Errorf("feed site URL %q must be absolute", opts.SiteURL)
	}

	updated := opts.Now
	if len(stories) > 0 && !stories[0].CreatedAt.IsZero() {
		updated = stories[0].CreatedAt
	}

	f := &feeds.Feed{
		Title:       opts.Title,
		Description: "The latest stories submitted to " + opts.Title,
		Link:        &feeds.Link{Href: site.String(), Rel: "alternate", Type: "text/html"},
		Id:          fmt.Sprintf("tag:%s,2024:feed", site.Host),
		Created:     opts.Now,
		Updated:     updated,
	}

	for _, st := range stories {
		host := story.HostName(st.URL)
		f.Items = append(f.Items, &feeds.Item{
			Id:      fmt.Sprintf("tag:%s,2024:story:%s", site.Host, st.ID),
			Title:   st.Title,
			Link:    &feeds.Link{Href: st.URL},
			Author:  &feeds.Author{Name: st.Author},
			Created: st.CreatedAt,
			Updated: st.CreatedAt,
			Description: fmt.Sprintf("by %s (%s), posted by %s",
				html.EscapeString(st.Author), html.EscapeString(host), html.EscapeString(st.Username)),
		})
	}
	return f.ToAtom()
}
