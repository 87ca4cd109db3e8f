package orchestrators

import (
	"context"
	"log/slog"

	"snooze/internal/domain/page"
	"snooze/internal/domain/view"
)

// ExecuteNavigate dispatches a nav bar event.
// PRE: event came from view.ParseEvent
// POST: show-all refetches the list; logout erases local storage and resets
// the page to boot state; member-only views return view.ErrLoginRequired
// for anonymous viewers without changing anything but the banner
func ExecuteNavigate(ctx context.Context, p *page.Page, visitorID string, event view.Event, deps PageDeps) error {
	if event == view.EventLogout {
		if err := ExecuteClearSession(ctx, visitorID, PersistSessionDeps{Storage: deps.Storage}); err != nil {
			slog.Error("auth_event", "event", "logout_clear_failed", "error", err.Error())
			return err
		}
		slog.Info("auth_event", "event", "logout", "username", p.Session.Username())
		fresh, _ := ExecuteBootPage(ctx, visitorID, deps)
		*p = *fresh
		return nil
	}

	if err := p.Router.Apply(event, p.Session.IsAuthenticated()); err != nil {
		p.Banner = err.Error()
		return err
	}

	if event == view.EventShowAll {
		// The router already shows the list; a failed fetch leaves the old one.
		_ = ExecuteRefreshStories(ctx, p, deps.Stories)
	}
	return nil
}
