package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-forecast-service/internal/models"
	"github.com/kjstillabower/climate-forecast-service/internal/observability"
	"github.com/kjstillabower/climate-forecast-service/internal/traffic"
)

func newTestRouter(t *testing.T, opts RouterOptions) *mux.Router {
	t.Helper()
	h := NewHandler(&mockForecaster{}, newTestRenderer(t), testDefaults, nil, nil, opts.Tracker, zap.NewNop())
	return NewRouter(h, zap.NewNop(), opts)
}

func TestMiddleware_CorrelationIDGenerated(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Header().Get(CorrelationIDHeader) == "" {
		t.Error("X-Correlation-ID header missing")
	}
}

func TestMiddleware_CorrelationIDPropagated(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	var seen string
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(zap.New(core)))
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		seen = CorrelationID(r.Context())
		observability.LoggerFromContext(r.Context(), nil).Info("inside")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "client-provided-id")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get(CorrelationIDHeader); got != "client-provided-id" {
		t.Errorf("X-Correlation-ID = %q, want client-provided-id", got)
	}
	if seen != "client-provided-id" {
		t.Errorf("CorrelationID(ctx) = %q", seen)
	}
	entries := recorded.FilterField(zap.String("correlation_id", "client-provided-id")).All()
	if len(entries) != 1 {
		t.Errorf("entries with correlation_id = %d, want 1", len(entries))
	}
}

func TestMiddleware_RoutesRegistered(t *testing.T) {
	router := newTestRouter(t, RouterOptions{})
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/about", http.StatusOK},
		{http.MethodGet, "/health", http.StatusServiceUnavailable}, // lifecycle still starting
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/predict", http.StatusOK},
		{http.MethodGet, "/predict", http.StatusMethodNotAllowed},
		{http.MethodGet, "/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestGetRoute_Fallback(t *testing.T) {
	tests := map[string]string{
		"/":          "/",
		"/predict":   "/predict",
		"/wp-admin":  "other",
		"/health":    "/health",
		"/about/foo": "other",
	}
	for path, want := range tests {
		if got := getRoute(httptest.NewRequest(http.MethodGet, path, nil)); got != want {
			t.Errorf("getRoute(%s) = %q, want %q", path, got, want)
		}
	}
}

func TestStatusCodeString(t *testing.T) {
	if got := statusCodeString(http.StatusTooManyRequests); got != "4xx" {
		t.Errorf("statusCodeString(429) = %q", got)
	}
	if got := statusCodeString(http.StatusOK); got != "2xx" {
		t.Errorf("statusCodeString(200) = %q", got)
	}
}

func TestMiddleware_MetricsTracksInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	handler := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	}))

	done := make(chan struct{})
	go func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", nil))
		close(done)
	}()

	<-entered
	if got := InFlightCount(); got < 1 {
		t.Errorf("InFlightCount() = %d while request is running, want >= 1", got)
	}
	close(release)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := WaitForInFlight(ctx, time.Millisecond); err != nil {
		t.Errorf("WaitForInFlight() error = %v", err)
	}
}

func TestTimeoutMiddleware_CancelsContextAfterTimeout(t *testing.T) {
	var ctxErr error
	handler := TimeoutMiddleware(10 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		ctxErr = r.Context().Err()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", nil))

	if ctxErr != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v, want DeadlineExceeded", ctxErr)
	}
}

func TestTimeoutMiddleware_ZeroDisabled(t *testing.T) {
	var hasDeadline bool
	handler := TimeoutMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", nil))
	if hasDeadline {
		t.Error("deadline set with zero timeout")
	}
}

// TestRateLimitMiddleware_Returns429WhenExceeded verifies denials answer 429 JSON and are
// recorded as Denied without counting toward the error rate.
func TestRateLimitMiddleware_Returns429WhenExceeded(t *testing.T) {
	tracker := traffic.New(time.Minute)
	router := newTestRouter(t, RouterOptions{
		Limiter: rate.NewLimiter(rate.Every(time.Hour), 1),
		Tracker: tracker,
	})

	codes := make([]int, 3)
	var last *httptest.ResponseRecorder
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("days=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		last = httptest.NewRecorder()
		router.ServeHTTP(last, req)
		codes[i] = last.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [200 429 429]", codes)
	}
	var resp models.ErrorResponse
	if err := json.Unmarshal(last.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if resp.Success || resp.Error != "too many requests" {
		t.Errorf("429 body = %+v", resp)
	}
	c := tracker.Counts(time.Minute)
	if c.Success != 1 || c.Denied != 2 || c.Failure != 0 {
		t.Errorf("counts = %+v, want 1 success 2 denied", c)
	}
	if failures, total := tracker.ErrorRate(time.Minute); failures != 0 || total != 1 {
		t.Errorf("ErrorRate = %d/%d, want 0/1", failures, total)
	}
}

func TestRateLimitMiddleware_OnlyPredict(t *testing.T) {
	router := newTestRouter(t, RouterOptions{Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)})
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/about", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("GET /about #%d = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimitMiddleware_NilLimiterPassesThrough(t *testing.T) {
	called := 0
	handler := RateLimitMiddleware(nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called++
	}))
	for i := 0; i < 5; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/predict", nil))
	}
	if called != 5 {
		t.Errorf("next called %d times, want 5", called)
	}
}
