package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/panxpan/rsvpcast/internal/models"
)

// CorruptError reports a metadata file that cannot back a running service.
// It is startup-fatal: the process must refuse to serve with a partial model.
type CorruptError struct {
	Field  string
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt model metadata: field %q: %s", e.Field, e.Reason)
}

// Stats is the frozen statistical summary of the training set. It is loaded
// once at process start and never mutated, so concurrent readers need no
// locking.
type Stats struct {
	ModelVersion      string             `json:"model_version"`
	FeatureCols       []string           `json:"feature_cols"`
	ValidTemperatures []float64          `json:"valid_temperatures"`
	KnownEventNames   []string           `json:"known_event_names"`
	DayRatios         map[string]float64 `json:"day_ratios"`
	WeatherImpact     map[string]float64 `json:"weather_impact"` // "clear", "rain"
	EventImpact       map[string]float64 `json:"event_impact"`   // "normal", "special"
	BaseRatio         float64            `json:"base_ratio"`
	MeanAbsoluteError float64            `json:"mean_absolute_error"`
	TempStats         ValueStats         `json:"temp_stats"`
	SunsetStats       ValueStats         `json:"sunset_stats"`
	TrainingStats     TrainingStats      `json:"training_stats"`

	// lowercased event name -> canonical training category
	eventIndex map[string]string
}

type ValueStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

type TrainingStats struct {
	MeanAttendance float64 `json:"mean_attendance"`
	MeanRegistered float64 `json:"mean_registered"`
	TotalEvents    int     `json:"total_events"`
}

// Load reads and validates the training metadata file.
func Load(path string) (*Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a metadata document.
func Parse(data []byte) (*Stats, error) {
	var s Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	sort.Float64s(s.ValidTemperatures)

	s.eventIndex = make(map[string]string, len(s.KnownEventNames))
	for _, name := range s.KnownEventNames {
		s.eventIndex[strings.ToLower(name)] = name
	}
	return &s, nil
}

func (s *Stats) validate() error {
	if len(s.FeatureCols) == 0 {
		return &CorruptError{Field: "feature_cols", Reason: "missing or empty"}
	}
	if len(s.ValidTemperatures) == 0 {
		return &CorruptError{Field: "valid_temperatures", Reason: "missing or empty"}
	}
	for _, t := range s.ValidTemperatures {
		if !isFinite(t) {
			return &CorruptError{Field: "valid_temperatures", Reason: "non-finite value"}
		}
	}
	if len(s.DayRatios) == 0 {
		return &CorruptError{Field: "day_ratios", Reason: "missing or empty"}
	}
	for day, r := range s.DayRatios {
		if !isFinite(r) {
			return &CorruptError{Field: "day_ratios", Reason: fmt.Sprintf("non-finite ratio for %s", day)}
		}
	}
	for _, key := range []string{"clear", "rain"} {
		r, ok := s.WeatherImpact[key]
		if !ok {
			return &CorruptError{Field: "weather_impact", Reason: fmt.Sprintf("missing %q", key)}
		}
		if !isFinite(r) {
			return &CorruptError{Field: "weather_impact", Reason: fmt.Sprintf("non-finite factor for %q", key)}
		}
	}
	for _, key := range []string{"normal", "special"} {
		r, ok := s.EventImpact[key]
		if !ok {
			return &CorruptError{Field: "event_impact", Reason: fmt.Sprintf("missing %q", key)}
		}
		if !isFinite(r) {
			return &CorruptError{Field: "event_impact", Reason: fmt.Sprintf("non-finite factor for %q", key)}
		}
	}
	if !isFinite(s.BaseRatio) || s.BaseRatio <= 0 {
		return &CorruptError{Field: "base_ratio", Reason: "missing, zero, or non-finite"}
	}
	if !isFinite(s.MeanAbsoluteError) || s.MeanAbsoluteError < 0 {
		return &CorruptError{Field: "mean_absolute_error", Reason: "missing or non-finite"}
	}
	if s.TrainingStats.MeanRegistered <= 0 || !isFinite(s.TrainingStats.MeanRegistered) {
		return &CorruptError{Field: "training_stats.mean_registered", Reason: "missing, zero, or non-finite"}
	}
	return nil
}

// NearestTemperature returns the trained temperature closest to t. Ties break
// toward the lower value so snapping is deterministic.
func (s *Stats) NearestTemperature(t float64) float64 {
	best := s.ValidTemperatures[0]
	bestDist := math.Abs(t - best)
	for _, v := range s.ValidTemperatures[1:] {
		if d := math.Abs(t - v); d < bestDist {
			best = v
			bestDist = d
		}
	}
	return best
}

// ClassifyWeather reduces a free-form weather string to the closed category
// set. Any token containing "rain" is Rain; everything else is Clear. Total.
func (s *Stats) ClassifyWeather(raw string) models.WeatherCategory {
	if strings.Contains(strings.ToLower(raw), "rain") {
		return models.WeatherRain
	}
	return models.WeatherClear
}

// ClassifyEvent matches an event name against the training vocabulary.
// Matching is case-insensitive but exact: a near-miss is Unknown, never a
// guess.
func (s *Stats) ClassifyEvent(raw string) string {
	if name, ok := s.eventIndex[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return name
	}
	return models.UnknownEvent
}

// DayRatio returns the historical attendance ratio for a weekday, falling
// back to the global mean for weekdays absent from training.
func (s *Stats) DayRatio(day time.Weekday) float64 {
	if r, ok := s.DayRatios[day.String()]; ok {
		return r
	}
	return s.BaseRatio
}

// WeatherFactor returns the multiplicative attendance factor for a weather
// category.
func (s *Stats) WeatherFactor(w models.WeatherCategory) float64 {
	if w == models.WeatherRain {
		return s.WeatherImpact["rain"]
	}
	return s.WeatherImpact["clear"]
}

// EventTypeFactor returns the multiplicative attendance factor for special
// vs. normal events.
func (s *Stats) EventTypeFactor(special bool) float64 {
	if special {
		return s.EventImpact["special"]
	}
	return s.EventImpact["normal"]
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
