package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-forecast-service/internal/observability"
	"github.com/kjstillabower/climate-forecast-service/internal/traffic"
)

// RouterOptions configures the middleware placed in front of /predict.
type RouterOptions struct {
	Limiter        *rate.Limiter
	Tracker        *traffic.Tracker
	RequestTimeout time.Duration
}

// NewRouter registers all routes on a new mux.Router.
func NewRouter(h *Handler, logger *zap.Logger, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/about", h.About).Methods(http.MethodGet)

	var predict http.Handler = http.HandlerFunc(h.Predict)
	predict = TimeoutMiddleware(opts.RequestTimeout)(predict)
	predict = RateLimitMiddleware(opts.Limiter, opts.Tracker)(predict)
	router.Handle("/predict", predict).Methods(http.MethodPost)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	return router
}
