package predict

import (
	"fmt"

	"github.com/panxpan/rsvpcast/internal/metadata"
	"github.com/panxpan/rsvpcast/internal/models"
)

// Insight thresholds. An effect only earns a line when it deviates enough
// from the training-set baseline to matter.
const (
	dayRatioMargin      = 0.05 // vs. global mean ratio
	impactFactorMargin  = 0.02 // vs. neutral 1.0
	coldInsightTempF    = 40
	hotInsightTempF     = 80
	maxInsightsPerReply = 3
)

// Insights produces up to three plain-text explanations of the prediction,
// read directly off the training statistics. Pure and total.
func Insights(stats *metadata.Stats, nf *models.NormalizedFeatures) []string {
	var out []string

	day := nf.DayOfWeek.String()
	dayRatio := stats.DayRatio(nf.DayOfWeek)
	switch {
	case dayRatio > stats.BaseRatio+dayRatioMargin:
		out = append(out, fmt.Sprintf("%s events typically have high attendance (%.1f%% of registered)", day, dayRatio*100))
	case dayRatio < stats.BaseRatio-dayRatioMargin:
		out = append(out, fmt.Sprintf("%s events typically have lower attendance (%.1f%% of registered)", day, dayRatio*100))
	}

	if nf.Weather == models.WeatherRain {
		if factor := stats.WeatherFactor(models.WeatherRain); factor < 1-impactFactorMargin {
			out = append(out, fmt.Sprintf("Rainy weather historically reduces attendance by %.1f%%", (1-factor)*100))
		}
	}

	if nf.SpecialEvent {
		if factor := stats.EventTypeFactor(true); factor < 1-impactFactorMargin {
			out = append(out, fmt.Sprintf("Special events historically have %.1f%% lower attendance", (1-factor)*100))
		}
	}

	switch {
	case nf.Temperature < coldInsightTempF:
		out = append(out, "Cold weather may impact attendance")
	case nf.Temperature > hotInsightTempF:
		out = append(out, "Hot weather may impact attendance")
	}

	if len(out) > maxInsightsPerReply {
		out = out[:maxInsightsPerReply]
	}
	return out
}
