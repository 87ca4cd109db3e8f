package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"snooze/internal/adapters/http/middleware"
	"snooze/internal/adapters/http/perf"
	"snooze/internal/application/orchestrators"
)

// Config wires the web adapter to its collaborators.
type Config struct {
	Deps      orchestrators.PageDeps
	Collector *perf.Collector

	CSRFKey        []byte // 32 bytes
	Codec          *securecookie.SecureCookie
	Secure         bool // HTTPS-only cookies
	TrustedOrigins []string

	// SiteURL is the absolute front page URL used in the feed. Empty means
	// derive it from each request.
	SiteURL string

	SlowRequest time.Duration
	// PageIdle is how long an unused visitor page stays in memory.
	// Zero uses DefaultPageIdle.
	PageIdle time.Duration
	// Debug exposes GET /debug/perf.
	Debug bool
}

// RateLimitPerSecond controls the per-visitor rate limit on posts. Tests can increase this.
var RateLimitPerSecond = 10

// LoadCSRFKey decodes the CSRF secret (hex-encoded, 32 bytes).
// In production the key MUST be set. In development a random key is generated per startup.
func LoadCSRFKey(keyHex string, production bool) ([]byte, error) {
	if keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return nil, errors.New("SNOOZE_CSRF_KEY must be 64 hex characters (32 bytes)")
		}
		return key, nil
	}
	if production {
		return nil, errors.New("SNOOZE_CSRF_KEY is required in production")
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("config_event", "event", "random_csrf_key", "detail", "forms won't survive restart; set SNOOZE_CSRF_KEY")
	return key, nil
}

// NewMux wires HTTP handlers for the app.
// PRE: cfg.Deps collaborators, cfg.Codec and cfg.CSRFKey are set
// POST: Background sweeps stop when ctx is cancelled
func NewMux(ctx context.Context, cfg Config) http.Handler {
	s := newServer(ctx, cfg)

	mux := http.NewServeMux()
	s.registerRoutes(mux, cfg.Debug)

	limiter := middleware.NewRateLimiter(ctx, RateLimitPerSecond, time.Second)

	// Timing sits innermost so it sees the matched route pattern.
	return middleware.Chain(mux,
		middleware.Timing(cfg.Collector, cfg.SlowRequest),
		middleware.RateLimit(limiter),
		middleware.Visitor(cfg.Codec, cfg.Secure),
		middleware.CSRF(cfg.CSRFKey, middleware.CSRFOptions{Secure: cfg.Secure, TrustedOrigins: cfg.TrustedOrigins}),
		middleware.SecurityHeaders,
	)
}

func (s *server) registerRoutes(mux *http.ServeMux, debug bool) {
	mux.HandleFunc("GET /{$}", s.handleFrontPage)
	mux.Handle("GET /static/", http.FileServerFS(assets))
	mux.HandleFunc("GET /feed.atom", s.handleFeed)

	mux.HandleFunc("POST /nav/{event}", s.handleNavigate)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("POST /stories", s.handleSubmitStory)
	mux.HandleFunc("POST /stories/{id}/favorite", s.handleToggleFavorite)
	mux.HandleFunc("POST /stories/{id}/delete/{action}", s.handleDeleteStep)

	if debug {
		mux.HandleFunc("GET /debug/perf", s.handlePerf)
	}
}
