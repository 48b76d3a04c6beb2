package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func TestCorrelationIDMiddleware_GeneratesID(t *testing.T) {
	var ctxID string
	var ctxLogger *zap.Logger
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.NewNop()))
	router.HandleFunc("/probe", func(w http.ResponseWriter, r *http.Request) {
		ctxID, _ = r.Context().Value("correlation_id").(string)
		ctxLogger = requestLogger(r)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	header := w.Header().Get("X-Correlation-ID")
	if header == "" {
		t.Fatal("X-Correlation-ID header missing")
	}
	if ctxID != header {
		t.Errorf("context correlation_id = %q, header = %q", ctxID, header)
	}
	if ctxLogger == nil {
		t.Error("request logger missing from context")
	}
}

func TestCorrelationIDMiddleware_Propagated(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.Header.Set("X-Correlation-ID", "client-provided-id")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
}

func TestGetRoute_UsesTemplate(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/favorites/%EB%B6%80%EC%82%B0", "/api/favorites/{name}"},
		{"/api/favorites/%EB%B6%80%EC%82%B0/toggle", "/api/favorites/{name}/toggle"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var got string
			router := mux.NewRouter()
			router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { got = getRoute(r) })
			api := router.PathPrefix("/api").Subrouter()
			api.HandleFunc("/favorites/{name}", func(w http.ResponseWriter, r *http.Request) { got = getRoute(r) })
			api.HandleFunc("/favorites/{name}/toggle", func(w http.ResponseWriter, r *http.Request) { got = getRoute(r) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))
			if got != tt.want {
				t.Errorf("getRoute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetRoute_Unmatched(t *testing.T) {
	if got := getRoute(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != "unmatched" {
		t.Errorf("getRoute() = %q, want unmatched", got)
	}
}

func TestStatusCodeString(t *testing.T) {
	for code, want := range map[int]string{200: "2xx", 201: "2xx", 404: "4xx", 429: "4xx", 503: "5xx"} {
		if got := statusCodeString(code); got != want {
			t.Errorf("statusCodeString(%d) = %q, want %q", code, got, want)
		}
	}
}

func TestMetricsMiddleware_TracksInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	base := InFlightCount()
	done := make(chan struct{})
	go func() {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))
		close(done)
	}()

	<-entered
	if got := InFlightCount(); got != base+1 {
		t.Errorf("InFlightCount() = %d during request, want %d", got, base+1)
	}
	close(release)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if base == 0 {
		if err := WaitForInFlight(ctx, time.Millisecond); err != nil {
			t.Errorf("WaitForInFlight() error = %v", err)
		}
	}
}

func TestMetricsMiddleware_RecordsNonOK(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	w := env.do(t, http.MethodPost, "/api/dashboard/city", `{"name":"도쿄"}`)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestTimeoutMiddleware_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	handler := TimeoutMiddleware(50 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, hasDeadline = r.Context().Deadline()
	}))

	start := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !hasDeadline {
		t.Fatal("request context has no deadline")
	}
	if d := deadline.Sub(start); d <= 0 || d > time.Second {
		t.Errorf("deadline in %v, want about 50ms", d)
	}
}

func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	handler := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "timed out")
		case <-time.After(time.Second):
			w.WriteHeader(http.StatusOK)
		}
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d (timeout should cancel context)", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.router = NewRouter(env.handler, zap.NewNop(), rate.NewLimiter(1, 2), 0)

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodGet, "/api/cities", "")
		if i < 2 {
			if w.Code != http.StatusOK {
				t.Errorf("request %d: status = %d, want 200", i, w.Code)
			}
			continue
		}
		assertError(t, w, http.StatusTooManyRequests, "RATE_LIMITED")
	}
}

func TestRateLimitMiddleware_HealthNotLimited(t *testing.T) {
	setLifecycle(t, true, false)
	env := newTestEnv(t, nil, nil)
	env.router = NewRouter(env.handler, zap.NewNop(), rate.NewLimiter(rate.Limit(0.001), 1), 0)

	env.do(t, http.MethodGet, "/api/cities", "")
	assertError(t, env.do(t, http.MethodGet, "/api/cities", ""), http.StatusTooManyRequests, "RATE_LIMITED")
	for i := 0; i < 3; i++ {
		if w := env.do(t, http.MethodGet, "/health", ""); w.Code != http.StatusOK {
			t.Errorf("health status = %d, want 200", w.Code)
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := false
	handler := RateLimitMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called || w.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d; nil limiter should allow", called, w.Code)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	w := env.do(t, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/dashboard"},
		{http.MethodGet, "/api/dashboard/city"},
		{http.MethodPost, "/api/favorites"},
		{http.MethodPost, "/health"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			env := newTestEnv(t, nil, nil)
			assertError(t, env.do(t, tt.method, tt.path, ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	for _, path := range []string{"/api/nowhere", "/nowhere"} {
		assertError(t, env.do(t, http.MethodGet, path, ""), http.StatusNotFound, "NOT_FOUND")
	}
}
