package predict

import (
	"strings"

	"github.com/panxpan/rsvpcast/internal/metadata"
	"github.com/panxpan/rsvpcast/internal/models"
)

// Thresholds baked into the training features. These must match the offline
// feature engineering exactly or the serialized models see a different
// encoding than they were fit against.
const (
	coldTempF          = 40
	hotTempF           = 75
	earlySunsetMinutes = 19 * 60
	lateSunsetMinutes  = 20 * 60
)

// BuildFeatures expands a normalized record into the numeric vector the
// trained regressors expect. The projection over stats.FeatureCols pins the
// width and order to the training encoding; columns the record does not set
// stay zero.
func BuildFeatures(stats *metadata.Stats, nf *models.NormalizedFeatures) []float64 {
	values := map[string]float64{
		"RegisteredCount": float64(nf.RegisteredCount),
	}

	if nf.Weather == models.WeatherRain {
		values["is_rain"] = 1
	}
	if nf.SpecialEvent {
		values["is_special"] = 1
	}

	if stats.TempStats.Std > 0 {
		values["temp_normalized"] = (nf.Temperature - stats.TempStats.Mean) / stats.TempStats.Std
	}
	if nf.Temperature < coldTempF {
		values["temp_cold"] = 1
	}
	if nf.Temperature > hotTempF {
		values["temp_hot"] = 1
	}

	if stats.SunsetStats.Std > 0 {
		values["sunset_normalized"] = (float64(nf.SunsetMinutes) - stats.SunsetStats.Mean) / stats.SunsetStats.Std
	}
	if nf.SunsetMinutes < earlySunsetMinutes {
		values["sunset_early"] = 1
	}
	if nf.SunsetMinutes > lateSunsetMinutes {
		values["sunset_late"] = 1
	}

	values["is_"+strings.ToLower(nf.DayOfWeek.String())] = 1

	// Unknown events contribute no event column: all one-hots stay zero.
	if nf.EventCategory != models.UnknownEvent {
		values[EventColumn(nf.EventCategory)] = 1
	}

	vec := make([]float64, len(stats.FeatureCols))
	for i, col := range stats.FeatureCols {
		vec[i] = values[col]
	}
	return vec
}

// EventColumn maps a training event category to its one-hot column name.
func EventColumn(category string) string {
	slug := strings.ToLower(strings.TrimSpace(category))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, slug)
	return "event_" + slug
}
