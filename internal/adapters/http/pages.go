package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"snooze/internal/application/orchestrators"
	"snooze/internal/domain/page"
)

// DefaultPageIdle is how long an unused visitor page is kept before it is
// dropped and rebuilt from local storage on the next visit.
const DefaultPageIdle = 30 * time.Minute

// visitorPage is one visitor's page plus what serialises access to it.
type visitorPage struct {
	mu    sync.Mutex // held for the whole of one event
	page  *page.Page // nil until booted
	guard orchestrators.Guard
	// degraded is set when the restore or story fetch failed last time;
	// the next load retries them.
	degraded bool

	// guarded by pageRegistry.mu
	refs     int
	lastUsed time.Time
}

// pageRegistry holds the live page of every recent visitor.
type pageRegistry struct {
	mu    sync.Mutex
	pages map[string]*visitorPage
	deps  orchestrators.PageDeps
	idle  time.Duration
	now   func() time.Time
}

func newPageRegistry(ctx context.Context, deps orchestrators.PageDeps, idle time.Duration) *pageRegistry {
	if idle <= 0 {
		idle = DefaultPageIdle
	}
	r := &pageRegistry{
		pages: make(map[string]*visitorPage),
		deps:  deps,
		idle:  idle,
		now:   time.Now,
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
	return r
}

func (r *pageRegistry) acquire(visitorID string) *visitorPage {
	r.mu.Lock()
	defer r.mu.Unlock()
	vp, ok := r.pages[visitorID]
	if !ok {
		vp = &visitorPage{}
		r.pages[visitorID] = vp
	}
	vp.refs++
	vp.lastUsed = r.now()
	return vp
}

func (r *pageRegistry) release(vp *visitorPage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vp.refs--
	vp.lastUsed = r.now()
}

// sweep drops pages nobody is using that have been idle too long.
func (r *pageRegistry) sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, vp := range r.pages {
		if vp.refs == 0 && r.now().Sub(vp.lastUsed) > r.idle {
			delete(r.pages, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of pages held.
func (r *pageRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// run executes fn against a visitor's page, booting it first if needed.
// A non-empty guardKey is held for the duration of fn.
// PRE: visitorID is non-empty
// POST: Returns orchestrators.ErrRequestInFlight without calling fn if
// guardKey is already in flight; otherwise returns fn's error
// INVARIANT: At most one fn runs per visitor at a time
func (r *pageRegistry) run(ctx context.Context, visitorID, guardKey string, fn func(p *page.Page) error) error {
	return r.do(ctx, visitorID, guardKey, false, fn)
}

// load is run for a page load: a page whose boot degraded retries the
// session restore and story fetch before fn renders it.
func (r *pageRegistry) load(ctx context.Context, visitorID string, fn func(p *page.Page) error) error {
	return r.do(ctx, visitorID, "", true, fn)
}

func (r *pageRegistry) do(ctx context.Context, visitorID, guardKey string, reload bool, fn func(p *page.Page) error) error {
	vp := r.acquire(visitorID)
	defer r.release(vp)

	if guardKey != "" {
		if !vp.guard.Begin(guardKey) {
			return orchestrators.ErrRequestInFlight
		}
		defer vp.guard.End(guardKey)
	}

	vp.mu.Lock()
	defer vp.mu.Unlock()

	// The page outlives this request, so an aborted request must not cut
	// its boot short.
	bootCtx := context.WithoutCancel(ctx)
	var err error
	switch {
	case vp.page == nil:
		vp.page, err = orchestrators.ExecuteBootPage(bootCtx, visitorID, r.deps)
		vp.degraded = err != nil
	case reload && vp.degraded:
		err = orchestrators.ExecuteReloadPage(bootCtx, vp.page, visitorID, r.deps)
		vp.degraded = err != nil
	}
	if err != nil {
		slog.Info("page_event", "event", "boot_degraded", "visitor", visitorID, "error", err.Error())
	}
	return fn(vp.page)
}
