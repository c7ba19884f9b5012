package predict

import (
	"math"
	"testing"

	"github.com/panxpan/rsvpcast/internal/models"
)

// stubEstimator returns a fixed value, or panics when told to.
type stubEstimator struct {
	name  string
	value float64
	panic bool
}

func (s *stubEstimator) Name() string { return s.name }

func (s *stubEstimator) Predict([]float64) float64 {
	if s.panic {
		panic("model exploded")
	}
	return s.value
}

func validRequest() models.PredictionRequest {
	return models.PredictionRequest{
		EventDate:          "2026-09-03", // Thursday
		RegisteredCount:    200,
		WeatherTemperature: 60,
		WeatherType:        "Clear",
		EventName:          "Weekly Majlis",
		SunsetTime:         "19:30",
	}
}

func TestForecastSelectsPrimary(t *testing.T) {
	stats := testStats(t)
	f := New(stats,
		&stubEstimator{name: "random_forest", value: 183.4},
		&stubEstimator{name: "linear_regression", value: 176.8},
		DefaultConfig())

	res, err := f.Forecast(validRequest())
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}

	if res.Model != "random_forest" {
		t.Errorf("Model = %q", res.Model)
	}
	if res.Selected != 183 {
		t.Errorf("Selected = %v, want 183", res.Selected)
	}
	if res.Secondary == nil || *res.Secondary != 177 {
		t.Errorf("Secondary = %v, want 177", res.Secondary)
	}
	// Thursday clear normal: 200 * 1.15 = 230
	if res.Fallback != 230 {
		t.Errorf("Fallback = %v, want 230", res.Fallback)
	}
}

func TestForecastDeterministic(t *testing.T) {
	stats := testStats(t)
	f := New(stats, &stubEstimator{name: "rf", value: 150}, nil, DefaultConfig())

	first, err := f.Forecast(validRequest())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		res, err := f.Forecast(validRequest())
		if err != nil {
			t.Fatal(err)
		}
		if res.Selected != first.Selected || res.LowerBound != first.LowerBound || res.UpperBound != first.UpperBound {
			t.Fatalf("run %d differs: %+v vs %+v", i, res, first)
		}
	}
}

func TestForecastFallbackChain(t *testing.T) {
	stats := testStats(t)
	tests := []struct {
		name    string
		primary *stubEstimator
	}{
		{"nil primary", nil},
		{"zero prediction", &stubEstimator{name: "rf", value: 0}},
		{"negative prediction", &stubEstimator{name: "rf", value: -40}},
		{"nan prediction", &stubEstimator{name: "rf", value: math.NaN()}},
		{"infinite prediction", &stubEstimator{name: "rf", value: math.Inf(1)}},
		{"panicking model", &stubEstimator{name: "rf", panic: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f *Forecaster
			if tt.primary == nil {
				f = New(stats, nil, nil, DefaultConfig())
			} else {
				f = New(stats, tt.primary, nil, DefaultConfig())
			}

			res, err := f.Forecast(validRequest())
			if err != nil {
				t.Fatalf("Forecast: %v", err)
			}
			if res.Model != "ratio_fallback" {
				t.Errorf("Model = %q, want ratio_fallback", res.Model)
			}
			if res.Selected != res.Fallback {
				t.Errorf("Selected = %v, Fallback = %v", res.Selected, res.Fallback)
			}
		})
	}
}

func TestFallbackRatioClamped(t *testing.T) {
	stats := testStats(t)
	f := New(stats, nil, nil, DefaultConfig())

	// Thursday 1.15, clear 1.0, normal 1.0: within the clamp band.
	req := validRequest()
	res, err := f.Forecast(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback != 230 {
		t.Errorf("Fallback = %v, want 230", res.Fallback)
	}

	// Sunday rain special: 0.85 * 0.9 * 0.92 = 0.7038, still inside the band.
	req.EventDate = "2026-09-06"
	req.WeatherType = "Rain"
	req.SpecialEvent = true
	res, err = f.Forecast(req)
	if err != nil {
		t.Fatal(err)
	}
	if want := math.Round(200 * 0.85 * 0.9 * 0.92); res.Fallback != want {
		t.Errorf("Fallback = %v, want %v", res.Fallback, want)
	}

	// A tight clamp band pins the ratio.
	cfg := DefaultConfig()
	cfg.ClampLow, cfg.ClampHigh = 0.9, 1.1
	tight := New(stats, nil, nil, cfg)
	res, err = tight.Forecast(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback != 180 { // 200 * 0.9
		t.Errorf("Fallback = %v, want clamped 180", res.Fallback)
	}
}

func TestForecastBounds(t *testing.T) {
	stats := testStats(t)
	f := New(stats, &stubEstimator{name: "rf", value: 180}, nil, DefaultConfig())

	res, err := f.Forecast(validRequest())
	if err != nil {
		t.Fatal(err)
	}

	// k = MAE / mean registered = 20 / 200 = 0.1
	if res.LowerBound != 162 { // floor(180 * 0.9)
		t.Errorf("LowerBound = %v, want 162", res.LowerBound)
	}
	if res.UpperBound != 198 { // ceil(180 * 1.1)
		t.Errorf("UpperBound = %v, want 198", res.UpperBound)
	}
	if res.LowerBound > res.Selected || res.Selected > res.UpperBound {
		t.Errorf("selected %v outside [%v, %v]", res.Selected, res.LowerBound, res.UpperBound)
	}
}

func TestForecastBoundsNonNegative(t *testing.T) {
	stats := testStats(t)
	f := New(stats, nil, nil, DefaultConfig())

	req := validRequest()
	req.RegisteredCount = 0
	res, err := f.Forecast(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Selected != 0 || res.LowerBound != 0 || res.UpperBound != 0 {
		t.Errorf("zero registrations gave %v [%v, %v]", res.Selected, res.LowerBound, res.UpperBound)
	}

	req.RegisteredCount = 1
	res, err = f.Forecast(req)
	if err != nil {
		t.Fatal(err)
	}
	if res.LowerBound < 0 {
		t.Errorf("LowerBound = %v, want >= 0", res.LowerBound)
	}
}

func TestHalfWidthClamped(t *testing.T) {
	stats := testStats(t)

	cfg := DefaultConfig()
	f := New(stats, nil, nil, cfg)
	if got := f.halfWidth(); got != 0.1 {
		t.Errorf("halfWidth = %v, want 0.1", got)
	}

	// MAE dwarfing the registered mean clamps high.
	stats.MeanAbsoluteError = 500
	if got := f.halfWidth(); got != cfg.IntervalMax {
		t.Errorf("halfWidth = %v, want %v", got, cfg.IntervalMax)
	}

	// Tiny MAE clamps low.
	stats.MeanAbsoluteError = 0.1
	if got := f.halfWidth(); got != cfg.IntervalMin {
		t.Errorf("halfWidth = %v, want %v", got, cfg.IntervalMin)
	}
}

func TestForecastRejectsInvalidInput(t *testing.T) {
	stats := testStats(t)
	f := New(stats, nil, nil, DefaultConfig())

	req := validRequest()
	req.EventDate = "next friday"
	if _, err := f.Forecast(req); err == nil {
		t.Error("expected error for invalid date")
	}

	req = validRequest()
	req.RegisteredCount = -5
	if _, err := f.Forecast(req); err == nil {
		t.Error("expected error for negative registered count")
	}
}
