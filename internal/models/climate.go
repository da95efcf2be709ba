package models

// Feature and target names in the order the regressor was trained on.
var (
	FeatureNames = []string{"latitude", "longitude", "day_of_year", "year"}
	TargetNames  = []string{"temperature", "humidity", "precipitation", "wind_speed"}
)

const (
	NumFeatures = 4
	NumTargets  = 4
)

// FeatureVector is the model input: latitude, longitude, day of year, year.
type FeatureVector [NumFeatures]float64

func (v FeatureVector) Latitude() float64  { return v[0] }
func (v FeatureVector) Longitude() float64 { return v[1] }
func (v FeatureVector) DayOfYear() int     { return int(v[2]) }
func (v FeatureVector) Year() int          { return int(v[3]) }

// TargetVector is the model output in TargetNames order.
type TargetVector [NumTargets]float64

func (t TargetVector) Temperature() float64   { return t[0] }
func (t TargetVector) Humidity() float64      { return t[1] }
func (t TargetVector) Precipitation() float64 { return t[2] }
func (t TargetVector) WindSpeed() float64     { return t[3] }

// ForecastQuery is a coerced /predict request.
type ForecastQuery struct {
	Days      int
	Latitude  float64
	Longitude float64
}

// Prediction is one forecast day as returned to clients.
type Prediction struct {
	Date          string  `json:"date"`
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	WindSpeed     float64 `json:"wind_speed"`
}

// ForecastResponse is the success body of POST /predict.
type ForecastResponse struct {
	Success     bool         `json:"success"`
	Predictions []Prediction `json:"predictions"`
}

// ErrorResponse is the failure body of POST /predict.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
