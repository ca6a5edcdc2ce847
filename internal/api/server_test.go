package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeaderSteve84/habitatT-backend/internal/auth"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/config"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/database"
	"github.com/LeaderSteve84/habitatT-backend/internal/infrastructure/logging"
	"github.com/LeaderSteve84/habitatT-backend/migrations"
)

const testCookieName = "access_token_cookie"

// captureNotifier records every notification it is handed.
type captureNotifier struct {
	mu   sync.Mutex
	sent []auth.Notification
}

func (c *captureNotifier) Notify(_ context.Context, n auth.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// lastToken returns the reset token at the end of the most recent link.
func (c *captureNotifier) lastToken(t *testing.T) string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		t.Fatal("no notification sent")
	}
	body := c.sent[len(c.sent)-1].Body
	return body[strings.LastIndex(body, "/")+1:]
}

// testEnv is a fully wired server over a temporary SQLite database.
type testEnv struct {
	srv         *Server
	repo        *auth.SQLitePrincipalRepository
	notifier    *captureNotifier
	revocations *auth.RevocationRegistry
	resets      *auth.ResetTokenStore
}

func newTestEnv(t *testing.T, svcCfg auth.ServiceConfig) *testEnv {
	t.Helper()

	db, err := database.Open(t.Context(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(t.Context(), migrations.FS); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	log := logging.Discard()
	repo := auth.NewPrincipalRepository(db.DB)

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:      []byte("test-secret-key-at-least-32-characters-long"),
		Issuer:      "habitat-test",
		DefaultTTL:  time.Hour,
		ExtendedTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	revocations := auth.NewRevocationRegistry(nil)
	resets := auth.NewResetTokenStore(30*time.Minute, nil)
	guard := auth.NewGuard(issuer, revocations, testCookieName)
	notifier := &captureNotifier{}

	if svcCfg.LinkBaseURL == "" {
		svcCfg.LinkBaseURL = "http://localhost:3000/reset_password/"
	}
	if svcCfg.MinPasswordLength == 0 {
		svcCfg.MinPasswordLength = 8
	}
	svc, err := auth.NewService(auth.ServiceDeps{
		Credentials: auth.NewCredentialStore(repo, log.Logger),
		Tokens:      issuer,
		Guard:       guard,
		Resets:      resets,
		Notifier:    notifier,
		Logger:      log.Logger,
	}, svcCfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Cookie:      config.CookieConfig{Name: testCookieName, Secure: true},
		Logger:      log,
		Auth:        svc,
		Guard:       guard,
		Revocations: revocations,
		Resets:      resets,
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		srv:         srv,
		repo:        repo,
		notifier:    notifier,
		revocations: revocations,
		resets:      resets,
	}
}

// seed creates a principal with the given password.
func (e *testEnv) seed(t *testing.T, role auth.Role, email, password string, active bool) *auth.Principal {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	p := &auth.Principal{Role: role, Email: email, PasswordHash: hash, Active: active}
	if err := e.repo.Create(t.Context(), p); err != nil {
		t.Fatalf("Create(%s): %v", email, err)
	}
	return p
}

type requestOption func(*http.Request)

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(c *http.Cookie) requestOption {
	return func(r *http.Request) { r.AddCookie(c) }
}

func withHeader(key, value string) requestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// do sends a request through the full router. body may be nil, a string
// (sent verbatim) or any JSON-encodable value.
func (e *testEnv) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

// =============================================================================
// Construction and lifecycle
// =============================================================================

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without auth service should fail")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	env := newTestEnv(t, auth.ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := env.srv.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}

	if err := env.srv.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + env.srv.Addr().String() + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	env := newTestEnv(t, auth.ServiceConfig{})
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}

type gaugeRecorder struct {
	mu    sync.Mutex
	calls int
}

func (g *gaugeRecorder) RecordStoreSizes(_, _ int) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
}

func (g *gaugeRecorder) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func TestServer_MaintenanceReportsGauges(t *testing.T) {
	env := newTestEnv(t, auth.ServiceConfig{})
	gauges := &gaugeRecorder{}
	env.srv.gauges = gauges
	env.srv.pruneInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	env.srv.startMaintenance(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for gauges.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	env.srv.wg.Wait()

	if gauges.count() == 0 {
		t.Error("store gauges were never reported")
	}
}

// =============================================================================
// Health
// =============================================================================

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, auth.ServiceConfig{})

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestHandleHealth_Degraded(t *testing.T) {
	env := newTestEnv(t, auth.ServiceConfig{})
	env.srv.health = map[string]HealthChecker{
		"database": stubChecker{},
		"mqtt":     stubChecker{err: context.DeadlineExceeded},
	}

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	decodeBody(t, rec, &body)
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
	if body.Components["database"] != "ok" || body.Components["mqtt"] != "unhealthy" {
		t.Errorf("components = %v", body.Components)
	}
}

func jsonDecode(res *http.Response, v any) error {
	return json.NewDecoder(res.Body).Decode(v)
}
