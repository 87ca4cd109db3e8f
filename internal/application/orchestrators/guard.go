package orchestrators

import "sync"

// Guard keys for actionable elements.
const (
	GuardLogin  = "login"
	GuardSignup = "signup"
	GuardSubmit = "submit"
)

// GuardFavorite returns the guard key for a story's favorite control.
func GuardFavorite(storyID string) string { return "favorite:" + storyID }

// GuardDelete returns the guard key for a story's delete control.
func GuardDelete(storyID string) string { return "delete:" + storyID }

// Guard tracks which actionable elements have a request in flight.
// The zero value is ready to use and safe for concurrent use.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Begin marks key as in flight.
// POST: Returns false (and changes nothing) if key is already in flight
func (g *Guard) Begin(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inFlight[key]; busy {
		return false
	}
	if g.inFlight == nil {
		g.inFlight = make(map[string]struct{})
	}
	g.inFlight[key] = struct{}{}
	return true
}

// End releases key.
func (g *Guard) End(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, key)
}

