package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that label dimensions match usage in the http and service packages.
func TestMetrics_Usable(t *testing.T) {
	// Route uses the mux path template, not the raw path
	HTTPRequestsTotal.WithLabelValues("POST", "/predict", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("POST", "/predict").Observe(0.01)
	ModelInferenceDuration.Observe(0.0001)
	ModelInferenceErrorsTotal.Inc()
	ModelTrees.Set(100)
	RateLimitDeniedTotal.Inc()
}

func TestRecordForecast(t *testing.T) {
	RecordForecast(3, nil)
	RecordForecast(0, errors.New("boom"))
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with forecast metrics present.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	RecordForecast(7, nil)

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"forecastRequestsTotal", "forecastDaysServed"} {
		if !strings.Contains(body, name) {
			t.Errorf("MetricsHandler response missing %s", name)
		}
	}
}
