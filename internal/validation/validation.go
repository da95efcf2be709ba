package validation

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/kjstillabower/climate-forecast-service/internal/models"
)

// DefaultDays is used when the days field is absent.
const DefaultDays = 7

var (
	// ErrInvalidDays is returned when days is present but not an integer.
	ErrInvalidDays = errors.New("invalid days")
	// ErrInvalidLatitude is returned when latitude is present but not a finite number.
	ErrInvalidLatitude = errors.New("invalid latitude")
	// ErrInvalidLongitude is returned when longitude is present but not a finite number.
	ErrInvalidLongitude = errors.New("invalid longitude")
)

// Defaults supplies values for fields missing from the form.
type Defaults struct {
	Latitude  float64
	Longitude float64
}

// ParseForecastForm coerces the days, latitude and longitude form fields.
// Absent fields take their defaults; a present field that is empty or malformed is an error.
// Ranges are not checked: days policy belongs to the service and coordinates are passed through.
func ParseForecastForm(form url.Values, d Defaults) (models.ForecastQuery, error) {
	q := models.ForecastQuery{
		Days:      DefaultDays,
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
	}
	if raw, ok := lookup(form, "days"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return models.ForecastQuery{}, fmt.Errorf("%w: %q is not an integer", ErrInvalidDays, raw)
		}
		q.Days = n
	}
	if raw, ok := lookup(form, "latitude"); ok {
		f, err := parseFinite(raw)
		if err != nil {
			return models.ForecastQuery{}, fmt.Errorf("%w: %q %v", ErrInvalidLatitude, raw, err)
		}
		q.Latitude = f
	}
	if raw, ok := lookup(form, "longitude"); ok {
		f, err := parseFinite(raw)
		if err != nil {
			return models.ForecastQuery{}, fmt.Errorf("%w: %q %v", ErrInvalidLongitude, raw, err)
		}
		q.Longitude = f
	}
	return q, nil
}

func lookup(form url.Values, key string) (string, bool) {
	vs, ok := form[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return strings.TrimSpace(vs[0]), true
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("is not a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("is not finite")
	}
	return f, nil
}
