package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-forecast-service/internal/lifecycle"
	"github.com/kjstillabower/climate-forecast-service/internal/model"
	"github.com/kjstillabower/climate-forecast-service/internal/models"
	"github.com/kjstillabower/climate-forecast-service/internal/observability"
	"github.com/kjstillabower/climate-forecast-service/internal/pages"
	"github.com/kjstillabower/climate-forecast-service/internal/traffic"
	"github.com/kjstillabower/climate-forecast-service/internal/validation"
)

// maxFormBytes caps the /predict request body.
const maxFormBytes = 64 << 10

// Forecaster produces daily predictions. Implemented by service.ForecastService.
type Forecaster interface {
	Forecast(ctx context.Context, q models.ForecastQuery) ([]models.Prediction, error)
}

// HealthConfig holds the inputs to the health status computation.
type HealthConfig struct {
	Version          string
	Model            model.Info
	DegradedWindow   time.Duration
	DegradedErrorPct int

	// Overloaded when requests in OverloadWindow exceed OverloadThresholdPct of
	// what RateLimitRPS admits over that window. Disabled when any is zero.
	RateLimitRPS         int
	OverloadWindow       time.Duration
	OverloadThresholdPct int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	forecaster       Forecaster
	pages            *pages.Renderer
	defaults         validation.Defaults
	healthConfig     *HealthConfig
	state            *lifecycle.State
	traffic          *traffic.Tracker
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. healthConfig may be nil, in which case
// only the lifecycle phase affects /health.
func NewHandler(
	forecaster Forecaster,
	renderer *pages.Renderer,
	defaults validation.Defaults,
	healthConfig *HealthConfig,
	state *lifecycle.State,
	tracker *traffic.Tracker,
	logger *zap.Logger,
) *Handler {
	if state == nil {
		state = &lifecycle.State{}
	}
	if tracker == nil {
		tracker = traffic.New(time.Minute)
	}
	return &Handler{
		forecaster:   forecaster,
		pages:        renderer,
		defaults:     defaults,
		healthConfig: healthConfig,
		state:        state,
		traffic:      tracker,
		logger:       logger,
	}
}

// Predict handles POST /predict. Any parse or inference error becomes a 500 with
// {"success": false, "error": ...}; the caller cannot tell bad input from model failure.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	predictions, err := h.predict(r)
	if err != nil {
		h.traffic.Record(traffic.Failure)
		observability.RecordForecast(0, err)
		logger.Error("prediction error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}
	h.traffic.Record(traffic.Success)
	observability.RecordForecast(len(predictions), nil)
	writeJSON(w, http.StatusOK, models.ForecastResponse{
		Success:     true,
		Predictions: predictions,
	})
}

func (h *Handler) predict(r *http.Request) ([]models.Prediction, error) {
	if err := parseForm(r); err != nil {
		return nil, err
	}
	q, err := validation.ParseForecastForm(r.PostForm, h.defaults)
	if err != nil {
		return nil, err
	}
	return h.forecaster.Forecast(r.Context(), q)
}

// parseForm reads urlencoded or multipart bodies into r.PostForm.
func parseForm(r *http.Request) error {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, maxFormBytes)
	}
	err := r.ParseMultipartForm(maxFormBytes)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}
	return nil
}

// Index handles GET /.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, pages.Index)
}

// About handles GET /about.
func (h *Handler) About(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, pages.About)
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, name string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.pages.Render(w, name); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"model": "loaded"}
	if result.status == "degraded" {
		checks["predictions"] = "failing"
	} else {
		checks["predictions"] = "ok"
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil {
		if h.healthConfig.Version != "" {
			resp["version"] = h.healthConfig.Version
		}
		info := h.healthConfig.Model
		modelResp := map[string]interface{}{
			"kind":  info.Kind,
			"trees": info.Trees,
			"nodes": info.Nodes,
		}
		if !info.TrainedAt.IsZero() {
			modelResp["trained_at"] = info.TrainedAt.UTC().Format(time.RFC3339)
		}
		resp["model"] = modelResp
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// starting > shutting-down > overloaded > degraded > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	switch h.state.Phase() {
	case lifecycle.Starting:
		return healthResult{"starting", http.StatusServiceUnavailable, "model_loading"}
	case lifecycle.ShuttingDown:
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.overloaded() {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		failures, total := h.traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(failures) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func (h *Handler) overloaded() bool {
	c := h.healthConfig
	if c == nil || c.RateLimitRPS <= 0 || c.OverloadWindow <= 0 || c.OverloadThresholdPct <= 0 {
		return false
	}
	threshold := float64(c.RateLimitRPS) * c.OverloadWindow.Seconds() * float64(c.OverloadThresholdPct) / 100
	return float64(h.traffic.Counts(c.OverloadWindow).Total()) > threshold
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
