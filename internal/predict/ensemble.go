// Package predict is the prediction engine: it normalizes free-form client
// input against the training vocabulary, evaluates the estimator chain, and
// derives a confidence interval plus explanatory insights.
package predict

import (
	"math"

	"github.com/panxpan/rsvpcast/internal/metadata"
	"github.com/panxpan/rsvpcast/internal/metrics"
	"github.com/panxpan/rsvpcast/internal/models"
	"github.com/panxpan/rsvpcast/internal/regressor"
)

// Config carries the tunable calibration constants. The historical source
// material disagrees on the right values, so these are configuration fit
// against the actual training set rather than design constants.
type Config struct {
	TempMin float64 // °F, sane physical lower bound on input
	TempMax float64 // °F, sane physical upper bound on input

	// Fallback clamp: compounded ratio bounds as a fraction of registered.
	ClampLow  float64
	ClampHigh float64

	// Bounds on the interval half-width fraction derived from training MAE.
	IntervalMin float64
	IntervalMax float64
}

func DefaultConfig() Config {
	return Config{
		TempMin:     -50,
		TempMax:     150,
		ClampLow:    0.5,
		ClampHigh:   1.5,
		IntervalMin: 0.05,
		IntervalMax: 0.5,
	}
}

const (
	modelFallback = "ratio_fallback"
)

// Forecaster evaluates the primary, secondary, and ratio-fallback estimators
// in priority order. It is safe for concurrent use: every field is set at
// construction and read-only afterward.
type Forecaster struct {
	stats     *metadata.Stats
	primary   regressor.Estimator
	secondary regressor.Estimator
	cfg       Config
}

// New builds a Forecaster. primary and secondary may be nil; the ratio
// fallback then carries every request.
func New(stats *metadata.Stats, primary, secondary regressor.Estimator, cfg Config) *Forecaster {
	return &Forecaster{stats: stats, primary: primary, secondary: secondary, cfg: cfg}
}

// Forecast is the single externally meaningful operation of the engine. For
// any syntactically valid request it returns a result; the only errors are
// InvalidDateError and InvalidRangeError from normalization.
func (f *Forecaster) Forecast(req models.PredictionRequest) (*models.EnsembleResult, error) {
	nf, err := Normalize(f.stats, f.cfg, req)
	if err != nil {
		return nil, err
	}

	vec := BuildFeatures(f.stats, nf)

	res := &models.EnsembleResult{
		Warnings: nf.Warnings,
		Insights: Insights(f.stats, nf),
	}

	primary, primaryOK := evaluate(f.primary, vec)
	if primaryOK {
		res.Primary = math.Max(0, math.Round(primary))
	}

	if secondary, ok := evaluate(f.secondary, vec); ok {
		v := math.Max(0, math.Round(secondary))
		res.Secondary = &v
	}

	res.Fallback = f.fallback(nf)

	// A zero or negative primary on sparse categorical data signals
	// extrapolation failure, not a genuine zero-attendance forecast.
	if primaryOK && primary > 0 {
		res.Selected = res.Primary
		res.Model = f.primary.Name()
	} else {
		res.Selected = res.Fallback
		res.Model = modelFallback
		metrics.FallbackActivations.Inc()
	}

	k := f.halfWidth()
	res.LowerBound = math.Max(0, math.Floor(res.Selected*(1-k)))
	res.UpperBound = math.Ceil(res.Selected * (1 + k))

	metrics.PredictionsServed.WithLabelValues(res.Model).Inc()
	return res, nil
}

// fallback is the model-free estimate: registered count scaled by the
// compounded historical ratios, clamped to the configured plausible band.
func (f *Forecaster) fallback(nf *models.NormalizedFeatures) float64 {
	ratio := f.stats.DayRatio(nf.DayOfWeek) *
		f.stats.WeatherFactor(nf.Weather) *
		f.stats.EventTypeFactor(nf.SpecialEvent)

	if !isFinite(ratio) {
		ratio = f.stats.BaseRatio
	}
	if ratio < f.cfg.ClampLow {
		ratio = f.cfg.ClampLow
	}
	if ratio > f.cfg.ClampHigh {
		ratio = f.cfg.ClampHigh
	}

	return math.Round(float64(nf.RegisteredCount) * ratio)
}

// halfWidth derives the fixed interval half-width fraction from the stored
// mean absolute error relative to a typical registered count.
func (f *Forecaster) halfWidth() float64 {
	k := f.stats.MeanAbsoluteError / f.stats.TrainingStats.MeanRegistered
	if !isFinite(k) || k < f.cfg.IntervalMin {
		return f.cfg.IntervalMin
	}
	if k > f.cfg.IntervalMax {
		return f.cfg.IntervalMax
	}
	return k
}

// evaluate runs an estimator, demoting any internal failure (panic, NaN,
// infinity) to "unavailable" so the predictor's contract stays total.
func evaluate(e regressor.Estimator, features []float64) (val float64, ok bool) {
	if e == nil {
		return 0, false
	}
	defer func() {
		if recover() != nil {
			val, ok = 0, false
		}
	}()
	v := e.Predict(features)
	if !isFinite(v) {
		return 0, false
	}
	return v, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
