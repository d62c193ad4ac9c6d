package server

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/profilecard/internal/assets"
	"github.com/nfrund/profilecard/internal/config"
	"github.com/nfrund/profilecard/internal/module"
	"github.com/nfrund/profilecard/internal/modules/health"
	"github.com/nfrund/profilecard/internal/registry"
	"github.com/nfrund/profilecard/internal/rendering"
	ws "github.com/nfrund/profilecard/internal/websocket"
)

func TestHTTPErrorHandler_WithStackTrace(t *testing.T) {
	// --- Setup ---
	e := echo.New()

	// 1. Capture log output
	// We temporarily redirect slog's output to a buffer to inspect it.
	var logBuffer bytes.Buffer
	// Create a new logger that writes to our buffer
	handler := slog.NewTextHandler(&logBuffer, &slog.HandlerOptions{
		AddSource: true,
	})
	logger := slog.New(handler)
	// Store the original default logger and defer its restoration
	originalLogger := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(originalLogger)

	// 2. Set up the error handler we want to test
	setupErrorHandling(e)

	// 3. Define a route that will always produce an unhandled error
	e.GET("/test-unhandled-error", func(c echo.Context) error {
		// This is the kind of error that should trigger our stack trace logging.
		return errors.New("a deliberate unhandled error occurred")
	})

	// --- Act ---
	req := httptest.NewRequest(http.MethodGet, "/test-unhandled-error", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	// --- Assert ---
	// First, check that the HTTP response is correct (a 500 error)
	require.Equal(t, http.StatusInternalServerError, rec.Code, "Expected a 500 Internal Server Error response")

	// Now, check the captured log output
	logOutput := logBuffer.String()

	// Assert that the log contains the key pieces of information
	assert.Contains(t, logOutput, "Internal Server Error (Unhandled)", "Log message should indicate an unhandled error")
	assert.Contains(t, logOutput, "error=\"a deliberate unhandled error occurred\"", "Log should contain the original error message")
	assert.Contains(t, logOutput, "stack_trace=", "Log must contain the stack_trace field")

	// A good stack trace will contain the path to the Go runtime and this test file.
	// This is a strong indicator that a real stack trace was captured.
	assert.Contains(t, logOutput, "runtime/debug/stack.go", "Stack trace should originate from the debug package")
	assert.Contains(t, logOutput, "internal/server/server_test.go", "Stack trace should point back to this test file")
}

// recordingModule logs its lifecycle calls into a shared slice.
type recordingModule struct {
	name    string
	calls   *[]string
	bootErr error
	mu      sync.Mutex
}

func (m *recordingModule) Name() string { return m.name }

func (m *recordingModule) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.calls = append(*m.calls, m.name+"."+call)
}

func (m *recordingModule) Register(reg *registry.Registry) error {
	m.record("register")
	return nil
}

func (m *recordingModule) Boot(ctx context.Context, g *echo.Group, reg *registry.Registry) error {
	m.record("boot")
	if m.bootErr != nil {
		return m.bootErr
	}
	g.GET("/"+m.name, func(c echo.Context) error { return c.String(http.StatusOK, m.name) })
	return nil
}

func (m *recordingModule) Shutdown(ctx context.Context) error {
	m.record("shutdown")
	return nil
}

func TestServer_ModuleLifecycle(t *testing.T) {
	var calls []string
	a := &recordingModule{name: "a", calls: &calls}
	b := &recordingModule{name: "b", calls: &calls}

	s := New(Dependencies{
		Config:  &config.Config{Addr: ":0"},
		Modules: []module.Module{a, b},
	})
	require.NoError(t, s.RegisterRoutes(context.Background()))

	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/b", nil))
	assert.Equal(t, "b", rec.Body.String())

	require.NoError(t, s.Shutdown(context.Background()))

	assert.Equal(t, []string{
		"a.register", "b.register",
		"a.boot", "b.boot",
		"b.shutdown", "a.shutdown",
	}, calls)
}

func TestServer_BootFailureStopsChain(t *testing.T) {
	var calls []string
	a := &recordingModule{name: "a", calls: &calls, bootErr: errors.New("nope")}
	b := &recordingModule{name: "b", calls: &calls}

	s := New(Dependencies{
		Config:  &config.Config{Addr: ":0"},
		Modules: []module.Module{a, b},
	})
	err := s.RegisterRoutes(context.Background())

	assert.ErrorContains(t, err, "boot module a")
	assert.NotContains(t, calls, "b.boot")
}

func TestServer_AssetsAndHealth(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "images/no-image-found.svg", []byte("<svg/>"), 0o644))

	s := New(Dependencies{
		Config:   &config.Config{Addr: ":0"},
		Renderer: rendering.NewUniversalRenderer(),
		Assets:   assets.NewHandler(assets.NewStore(fs)),
		Modules:  []module.Module{health.New(nil)},
	})
	require.NoError(t, s.RegisterRoutes(context.Background()))

	rec := httptest.NewRecorder()
	s.E.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/images/no-image-found.svg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = httptest.NewRecorder()
	s.E.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = httptest.NewRecorder()
	s.E.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartStopsOnCancel(t *testing.T) {
	s := New(Dependencies{
		Config: &config.Config{Addr: "127.0.0.1:0"},
		Bridge: ws.NewBridge(nil),
	})
	require.NoError(t, s.RegisterRoutes(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestHTTPErrorHandler_HTMLErrorPage(t *testing.T) {
	s := New(Dependencies{
		Config:   &config.Config{Addr: ":0"},
		Renderer: rendering.NewUniversalRenderer(),
	})
	s.E.GET("/boom", func(c echo.Context) error {
		return errors.New("database password is hunter2")
	})
	s.E.GET("/gone", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusGone, "card <retired>")
	})

	serve := func(path, accept string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if accept != "" {
			req.Header.Set(echo.HeaderAccept, accept)
		}
		rec := httptest.NewRecorder()
		s.E.ServeHTTP(rec, req)
		return rec
	}

	t.Run("unknown route", func(t *testing.T) {
		rec := serve("/nowhere", "text/html,application/xhtml+xml")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMETextHTML)
		assert.Contains(t, rec.Body.String(), "<title>404 Not Found</title>")
	})

	t.Run("unhandled error hides details", func(t *testing.T) {
		rec := serve("/boom", "text/html")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Internal Server Error")
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})

	t.Run("client error message is escaped", func(t *testing.T) {
		rec := serve("/gone", "text/html")
		assert.Equal(t, http.StatusGone, rec.Code)
		assert.Contains(t, rec.Body.String(), "card &lt;retired&gt;")
	})

	t.Run("api clients keep json", func(t *testing.T) {
		rec := serve("/nowhere", echo.MIMEApplicationJSON)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
		assert.JSONEq(t, `{"message":"Not Found"}`, rec.Body.String())
	})
}
