package browser_test

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	_ "modernc.org/sqlite"

	"snooze/internal/adapters/api"
	web "snooze/internal/adapters/http"
	"snooze/internal/adapters/http/middleware"
	"snooze/internal/adapters/http/perf"
	"snooze/internal/adapters/storage"
	"snooze/internal/adapters/storage/localstore"
	"snooze/internal/application/orchestrators"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	DB      *sql.DB
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
	Fake    *api.Fake
}

// newTestApp wires the app against a fake remote API and a temp SQLite DB,
// seeds the demo account, and starts an HTTP server.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		t.Fatalf("failed to initialise test DB: %v", err)
	}

	fake := api.NewFake()
	upstream := httptest.NewServer(fake.Handler())
	t.Cleanup(upstream.Close)

	collector := perf.NewCollector(perf.DefaultRingSize)
	client := api.NewClient(upstream.URL, 5*time.Second).WithCollector(collector)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := orchestrators.ExecuteSeedDemo(ctx, orchestrators.SeedDemoDeps{Users: client, Stories: client}); err != nil {
		t.Fatalf("failed to seed demo data: %v", err)
	}

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	codec, err := middleware.NewVisitorCodec(bytes.Repeat([]byte("c"), 32))
	if err != nil {
		t.Fatalf("failed to create cookie codec: %v", err)
	}
	trusted := []string{fmt.Sprintf("127.0.0.1:%d", port), fmt.Sprintf("localhost:%d", port)}
	store := localstore.NewSQLiteStore(storage.NewTimedDB(db, collector, 0))

	web.RateLimitPerSecond = 1000
	mux := web.NewMux(ctx, web.Config{
		Deps:           orchestrators.PageDeps{Users: client, Stories: client, Storage: store},
		Collector:      collector,
		CSRFKey:        bytes.Repeat([]byte("k"), 32),
		Codec:          codec,
		TrustedOrigins: trusted,
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("test server error: %v", err)
		}
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/static/site.css")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Fatalf("failed to start Playwright: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		t.Fatalf("failed to launch browser: %v", err)
	}

	app := &testApp{
		BaseURL: baseURL,
		DB:      db,
		Server:  srv,
		PW:      pw,
		Browser: browser,
		Fake:    fake,
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		db.Close()
	})

	return app
}

// newPage creates a new browser page (tab) with its own cookies.
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	bctx, err := a.Browser.NewContext()
	if err != nil {
		t.Fatalf("failed to create browser context: %v", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { bctx.Close() })
	return page
}

func (a *testApp) open(t *testing.T, page playwright.Page) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/"); err != nil {
		t.Fatalf("failed to open front page: %v", err)
	}
}

// login opens the account forms and logs in as the demo user.
func (a *testApp) login(t *testing.T, page playwright.Page) {
	t.Helper()
	a.open(t, page)
	click(t, page, "#nav-login")
	fill(t, page, "#login-username", orchestrators.DemoAccount.Username)
	fill(t, page, "#login-password", orchestrators.DemoAccount.Password)
	click(t, page, "#login-form button[type=submit]")
	waitVisible(t, page, "#nav-user-profile")
}

func click(t *testing.T, page playwright.Page, selector string) {
	t.Helper()
	if err := page.Locator(selector).First().Click(); err != nil {
		t.Fatalf("failed to click %s: %v", selector, err)
	}
}

func fill(t *testing.T, page playwright.Page, selector, value string) {
	t.Helper()
	if err := page.Locator(selector).Fill(value); err != nil {
		t.Fatalf("failed to fill %s: %v", selector, err)
	}
}

func waitVisible(t *testing.T, page playwright.Page, selector string) {
	t.Helper()
	err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(5000),
	})
	if err != nil {
		t.Fatalf("%s never became visible: %v", selector, err)
	}
}
