package models

import (
	"database/sql"
	"time"
)

// WeatherCategory is the closed category set the models were trained on.
// Free-form client input is always reduced to one of these two values.
type WeatherCategory string

const (
	WeatherClear WeatherCategory = "Clear"
	WeatherRain  WeatherCategory = "Rain"
)

// UnknownEvent is the sentinel category for event names absent from the
// training vocabulary.
const UnknownEvent = "Unknown"

// PredictionRequest is the raw client input, one per call. Fields arrive
// free-form and are reconciled against the training metadata before use.
type PredictionRequest struct {
	EventDate          string  `json:"event_date"`
	RegisteredCount    int     `json:"registered_count"`
	WeatherTemperature float64 `json:"weather_temperature"`
	WeatherType        string  `json:"weather_type"`
	SpecialEvent       bool    `json:"special_event"`
	EventName          string  `json:"event_name"`
	SunsetTime         string  `json:"sunset_time"`
}

// NormalizedFeatures is the canonical form of a request: temperature snapped
// to the training vocabulary, weather and event reduced to closed categories,
// day of week derived from the date. Warnings record every approximation made.
type NormalizedFeatures struct {
	EventDate       time.Time
	DayOfWeek       time.Weekday
	RegisteredCount int
	Temperature     float64 // snapped to the nearest trained value
	Weather         WeatherCategory
	SpecialEvent    bool
	EventCategory   string // matched training category or UnknownEvent
	SunsetMinutes   int    // minutes after midnight
	Warnings        []string
}

// EnsembleResult is the outcome of one forecast call.
type EnsembleResult struct {
	Primary    float64  `json:"primary"`
	Secondary  *float64 `json:"secondary,omitempty"`
	Fallback   float64  `json:"fallback"`
	Selected   float64  `json:"selected"`
	LowerBound float64  `json:"lower_bound"`
	UpperBound float64  `json:"upper_bound"`
	Model      string   `json:"model"` // which estimator produced Selected
	Warnings   []string `json:"warnings,omitempty"`
	Insights   []string `json:"insights,omitempty"`
}

// Event is an upcoming event fetched from the registration registry.
type Event struct {
	Name            string
	Date            time.Time
	RegisteredCount int
	InstanceID      string
	SpecialEvent    bool
}

// Weather holds the daily forecast values the digest pipeline feeds into
// a prediction request.
type Weather struct {
	TemperatureFMax  float64
	PrecipitationSum float64
	SunsetTime       string // HH:MM local
	WeatherType      string // "" or "Rain"
}

// PredictionRecord is a served forecast as logged to the store.
type PredictionRecord struct {
	ID              int64
	CreatedAt       time.Time
	EventDate       time.Time
	EventName       string
	RegisteredCount int
	Selected        float64
	LowerBound      float64
	UpperBound      float64
	Model           string
	Warnings        string // joined with "; "
	Actual          sql.NullFloat64
	VerifiedAt      sql.NullTime
}

// AccuracyStats aggregates verification results per model.
type AccuracyStats struct {
	Model    string  `json:"model"`
	Count    int     `json:"count"`
	MeanBias float64 `json:"mean_bias"`
	MAE      float64 `json:"mae"`
}
