package predict

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/panxpan/rsvpcast/internal/metadata"
	"github.com/panxpan/rsvpcast/internal/models"
)

// Normalize reconciles a raw request against the training metadata, producing
// the canonical feature record. Only structurally invalid input is rejected;
// anything the training vocabulary cannot represent exactly is approximated
// and disclosed via a warning.
func Normalize(stats *metadata.Stats, cfg Config, req models.PredictionRequest) (*models.NormalizedFeatures, error) {
	date, err := parseEventDate(req.EventDate)
	if err != nil {
		return nil, &InvalidDateError{Value: req.EventDate}
	}

	if req.RegisteredCount < 0 {
		return nil, &InvalidRangeError{Field: "registered_count", Value: float64(req.RegisteredCount), Min: 0, Max: math.Inf(1)}
	}

	if req.WeatherTemperature < cfg.TempMin || req.WeatherTemperature > cfg.TempMax {
		return nil, &InvalidRangeError{Field: "weather_temperature", Value: req.WeatherTemperature, Min: cfg.TempMin, Max: cfg.TempMax}
	}

	nf := &models.NormalizedFeatures{
		EventDate:       date,
		DayOfWeek:       date.Weekday(),
		RegisteredCount: req.RegisteredCount,
		SpecialEvent:    req.SpecialEvent,
	}

	nf.Temperature = stats.NearestTemperature(req.WeatherTemperature)
	if nf.Temperature != req.WeatherTemperature {
		nf.Warnings = append(nf.Warnings,
			fmt.Sprintf("Temperature %g rounded to nearest available: %g", req.WeatherTemperature, nf.Temperature))
	}

	nf.Weather = stats.ClassifyWeather(req.WeatherType)

	nf.EventCategory = stats.ClassifyEvent(req.EventName)
	if nf.EventCategory == models.UnknownEvent {
		nf.Warnings = append(nf.Warnings,
			fmt.Sprintf("Event %q not in training data (%d known events); treated as Unknown", req.EventName, len(stats.KnownEventNames)))
	}

	if minutes, ok := parseSunset(req.SunsetTime); ok {
		nf.SunsetMinutes = minutes
	} else {
		nf.SunsetMinutes = int(math.Round(stats.SunsetStats.Mean))
		nf.Warnings = append(nf.Warnings,
			fmt.Sprintf("Sunset time %q not in HH:MM form; using training average", req.SunsetTime))
	}

	return nf, nil
}

func parseEventDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	// Registry exports sometimes carry a full timestamp.
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

func parseSunset(raw string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}
