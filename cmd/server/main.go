package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"snooze/internal/adapters/api"
	web "snooze/internal/adapters/http"
	"snooze/internal/adapters/http/middleware"
	"snooze/internal/adapters/http/perf"
	"snooze/internal/adapters/storage"
	"snooze/internal/adapters/storage/localstore"
	"snooze/internal/application/orchestrators"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// staleSessionAge is how long a visitor's stored credentials outlive their last write.
const staleSessionAge = 90 * 24 * time.Hour

func main() {
	env := envOrDefault("SNOOZE_ENV", "development")
	production := env == "production"
	if production {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Local storage lives in sqlite; the busy timeout and WAL are set by InitDB.
	dbPath := envOrDefault("SNOOZE_DB", "snooze.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialise database: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector, envDuration("SNOOZE_SLOW_QUERY_MS", 0))
	store := localstore.NewSQLiteStore(timedDB)

	apiURL := envOrDefault("SNOOZE_API_URL", api.DefaultBaseURL)
	if apiURL == "fake" {
		if production {
			log.Fatal("SNOOZE_API_URL=fake is for development only")
		}
		apiURL = startFakeAPI(ctx)
	}
	timeout, err := time.ParseDuration(envOrDefault("SNOOZE_API_TIMEOUT", "10s"))
	if err != nil {
		log.Fatalf("SNOOZE_API_TIMEOUT: %v", err)
	}
	client := api.NewClient(apiURL, timeout).WithCollector(collector)

	csrfKey, err := web.LoadCSRFKey(os.Getenv("SNOOZE_CSRF_KEY"), production)
	if err != nil {
		log.Fatal(err)
	}
	codec, err := middleware.NewVisitorCodec(loadCookieSecret(production))
	if err != nil {
		log.Fatalf("SNOOZE_COOKIE_KEY: %v", err)
	}

	go sweepStaleSessions(ctx, store)

	handler := web.NewMux(ctx, web.Config{
		Deps:           orchestrators.PageDeps{Users: client, Stories: client, Storage: store},
		Collector:      collector,
		CSRFKey:        csrfKey,
		Codec:          codec,
		Secure:         production,
		TrustedOrigins: splitList(os.Getenv("SNOOZE_TRUSTED_ORIGINS")),
		SiteURL:        os.Getenv("SNOOZE_SITE_URL"),
		SlowRequest:    envDuration("SNOOZE_SLOW_REQUEST_MS", 0),
		Debug:          !production,
	})

	addr := envOrDefault("SNOOZE_ADDR", ":8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_error", "error", err.Error())
		}
	}()

	log.Printf("Snooze %s starting on %s (env=%s, api=%s)", version, addr, env, apiURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// loadCookieSecret reads the visitor cookie secret from SNOOZE_COOKIE_KEY.
// In production it MUST be set. In development a fixed key is used so
// visitors keep their session across restarts.
func loadCookieSecret(production bool) []byte {
	if secret := os.Getenv("SNOOZE_COOKIE_KEY"); secret != "" {
		return []byte(secret)
	}
	if production {
		log.Fatal("SNOOZE_COOKIE_KEY is required in production")
	}
	log.Println("WARNING: using a development cookie key. Set SNOOZE_COOKIE_KEY for production.")
	return []byte("snooze-development-cookie-key-0000")
}

// startFakeAPI serves an in-process fake of the remote API on a loopback
// port, seeded with a demo account, and returns its base URL.
func startFakeAPI(ctx context.Context) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("fake api: %v", err)
	}
	fakeSrv := &http.Server{Handler: api.NewFake().Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := fakeSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("fake_api_error", "error", err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		_ = fakeSrv.Close()
	}()

	baseURL := "http://" + ln.Addr().String()
	seedClient := api.NewClient(baseURL, 5*time.Second)
	if err := orchestrators.ExecuteSeedDemo(ctx, orchestrators.SeedDemoDeps{Users: seedClient, Stories: seedClient}); err != nil {
		log.Fatalf("failed to seed fake api: %v", err)
	}
	log.Printf("Fake API on %s (login %s / %s)", baseURL, orchestrators.DemoAccount.Username, orchestrators.DemoAccount.Password)
	return baseURL
}

// sweepStaleSessions deletes stored credentials nobody has touched in a long time.
func sweepStaleSessions(ctx context.Context, store localstore.Store) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteStale(ctx, time.Now().Add(-staleSessionAge))
			if err != nil {
				slog.Error("storage_event", "event", "sweep_failed", "error", err.Error())
				continue
			}
			if n > 0 {
				slog.Info("storage_event", "event", "stale_sessions_deleted", "count", n)
			}
		}
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envDuration reads a millisecond count. Zero means "use the default".
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		log.Fatalf("%s must be a non-negative number of milliseconds", key)
	}
	return time.Duration(ms) * time.Millisecond
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
