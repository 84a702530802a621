package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/nowastemate/internal/metrics"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(Logger(logger))
	r.Get("/teapot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	line := buf.String()
	assert.Contains(t, line, `"msg":"request completed"`)
	assert.Contains(t, line, `"status":418`)
	assert.Contains(t, line, `"bytes":15`)
	assert.Contains(t, line, `"path":"/teapot"`)
	assert.NotContains(t, line, `"requestID":""`)
}

func TestLogger_ServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), `"level":"ERROR"`)
}

func TestResponseWriter_KeepsFirstStatus(t *testing.T) {
	rw := wrap(httptest.NewRecorder())
	rw.WriteHeader(http.StatusSeeOther)
	rw.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusSeeOther, rw.statusCode)
	assert.Same(t, rw, wrap(rw))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Post("/donations/claim/{id}/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	})

	before, err := testutil.GatherAndCount(metrics.Registry, "nowastemate_http_requests_total")
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/donations/claim/"+id+"/", nil))
		require.Equal(t, http.StatusSeeOther, rec.Code)
	}
	after, err := testutil.GatherAndCount(metrics.Registry, "nowastemate_http_requests_total")
	require.NoError(t, err)

	// Three requests to three ids add a single labelled series.
	assert.Equal(t, before+1, after)
}

func newTestLimiter(perMinute int) *RateLimiter {
	return NewRateLimiter(perMinute, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRateLimiter(t *testing.T) {
	rl := newTestLimiter(2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader(""))
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, post("10.0.0.1:1111"))
	assert.Equal(t, http.StatusNoContent, post("10.0.0.1:2222"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1:3333"), "same IP, different port")
	assert.Equal(t, http.StatusNoContent, post("10.0.0.2:1111"), "other IPs have their own bucket")

	get := httptest.NewRequest(http.MethodGet, "/login/", nil)
	get.RemoteAddr = "10.0.0.1:1111"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get)
	assert.Equal(t, http.StatusNoContent, rec.Code, "GET is never limited")
}

func TestRateLimiter_CustomDenied(t *testing.T) {
	denied := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
	})
	rl := NewRateLimiter(1, denied, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	for i, want := range []int{http.StatusOK, http.StatusSeeOther} {
		req := httptest.NewRequest(http.MethodPost, "/contact/", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
}

func TestRateLimiter_Sweep(t *testing.T) {
	rl := newTestLimiter(5)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.nowFunc = func() time.Time { return now }

	rl.allow("a")
	now = now.Add(10 * time.Minute)
	rl.allow("b")

	assert.Equal(t, 1, rl.Sweep(5*time.Minute))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "b")
}
