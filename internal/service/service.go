package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/climate-forecast-service/internal/features"
	"github.com/kjstillabower/climate-forecast-service/internal/model"
	"github.com/kjstillabower/climate-forecast-service/internal/models"
	"github.com/kjstillabower/climate-forecast-service/internal/observability"
)

const (
	// MaxDays is the longest forecast served.
	MaxDays = 7
	// FallbackDays replaces any requested length outside [1, MaxDays].
	FallbackDays = 7
)

// PredictionError reports the forecast day that could not be produced.
type PredictionError struct {
	Date string
	Err  error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predict %s: %v", e.Date, e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// ForecastService turns a location and horizon into daily predictions.
// The regressor is shared read-only across requests.
type ForecastService struct {
	regressor model.Regressor
	now       func() time.Time
}

// Option configures a ForecastService.
type Option func(*ForecastService)

// WithClock overrides the source of the current date.
func WithClock(now func() time.Time) Option {
	return func(s *ForecastService) {
		s.now = now
	}
}

// NewForecastService creates a ForecastService backed by regressor.
func NewForecastService(regressor model.Regressor, opts ...Option) *ForecastService {
	s := &ForecastService{
		regressor: regressor,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampDays applies the horizon policy: any value outside [1, MaxDays] becomes FallbackDays.
func ClampDays(days int) int {
	if days < 1 || days > MaxDays {
		return FallbackDays
	}
	return days
}

// Forecast predicts days current+1 through current+N in order, where N is ClampDays(q.Days).
// Either every day succeeds or an error is returned; partial results are never returned.
func (s *ForecastService) Forecast(ctx context.Context, q models.ForecastQuery) ([]models.Prediction, error) {
	days := ClampDays(q.Days)
	logger := observability.LoggerFromContext(ctx, nil)
	if days != q.Days {
		logger.Debug("days out of range, using fallback", zap.Int("requested", q.Days), zap.Int("days", days))
	}

	now := s.now()
	out := make([]models.Prediction, 0, days)
	for i := 1; i <= days; i++ {
		target := features.TargetDate(now, i)
		date := target.Format(features.DateLayout)
		if err := ctx.Err(); err != nil {
			return nil, &PredictionError{Date: date, Err: err}
		}

		x := features.Build(q.Latitude, q.Longitude, target)
		start := time.Now()
		y, err := s.regressor.Predict(x)
		observability.ModelInferenceDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			observability.ModelInferenceErrorsTotal.Inc()
			return nil, &PredictionError{Date: date, Err: err}
		}
		out = append(out, newPrediction(date, y))
	}

	logger.Debug("forecast served",
		zap.Float64("latitude", q.Latitude),
		zap.Float64("longitude", q.Longitude),
		zap.Int("days", days))
	return out, nil
}

func newPrediction(date string, y models.TargetVector) models.Prediction {
	return models.Prediction{
		Date:          date,
		Temperature:   round(y.Temperature(), 1),
		Humidity:      round(y.Humidity(), 1),
		Precipitation: round(y.Precipitation(), 2),
		WindSpeed:     round(y.WindSpeed(), 1),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
