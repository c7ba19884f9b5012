package predict

import (
	"testing"
	"time"

	"github.com/panxpan/rsvpcast/internal/models"
)

func featureIndex(t *testing.T, cols []string, name string) int {
	t.Helper()
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	t.Fatalf("column %q not in feature set", name)
	return -1
}

func TestBuildFeatures(t *testing.T) {
	stats := testStats(t)
	nf := &models.NormalizedFeatures{
		EventDate:       time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
		DayOfWeek:       time.Thursday,
		RegisteredCount: 250,
		Temperature:     30,
		Weather:         models.WeatherRain,
		SpecialEvent:    true,
		EventCategory:   "Weekly Majlis",
		SunsetMinutes:   1230,
	}

	vec := BuildFeatures(stats, nf)
	if len(vec) != len(stats.FeatureCols) {
		t.Fatalf("vector length %d, want %d", len(vec), len(stats.FeatureCols))
	}

	at := func(name string) float64 { return vec[featureIndex(t, stats.FeatureCols, name)] }

	if at("RegisteredCount") != 250 {
		t.Errorf("RegisteredCount = %v", at("RegisteredCount"))
	}
	if at("is_rain") != 1 || at("is_special") != 1 {
		t.Errorf("is_rain = %v, is_special = %v", at("is_rain"), at("is_special"))
	}
	if at("temp_cold") != 1 || at("temp_hot") != 0 {
		t.Errorf("temp_cold = %v, temp_hot = %v", at("temp_cold"), at("temp_hot"))
	}
	// (30 - 60) / 15 = -2
	if at("temp_normalized") != -2 {
		t.Errorf("temp_normalized = %v", at("temp_normalized"))
	}
	// 1230 is past 20:00
	if at("sunset_early") != 0 || at("sunset_late") != 1 {
		t.Errorf("sunset_early = %v, sunset_late = %v", at("sunset_early"), at("sunset_late"))
	}
	// (1230 - 1170) / 30 = 2
	if at("sunset_normalized") != 2 {
		t.Errorf("sunset_normalized = %v", at("sunset_normalized"))
	}
	if at("is_thursday") != 1 {
		t.Errorf("is_thursday = %v", at("is_thursday"))
	}
	for _, day := range []string{"is_monday", "is_friday", "is_sunday"} {
		if at(day) != 0 {
			t.Errorf("%s = %v, want 0", day, at(day))
		}
	}
	if at("event_weekly_majlis") != 1 {
		t.Errorf("event_weekly_majlis = %v", at("event_weekly_majlis"))
	}
	if at("event_ashara_night_1") != 0 {
		t.Errorf("event_ashara_night_1 = %v", at("event_ashara_night_1"))
	}
}

func TestBuildFeaturesUnknownEvent(t *testing.T) {
	stats := testStats(t)
	nf := &models.NormalizedFeatures{
		DayOfWeek:       time.Sunday,
		RegisteredCount: 100,
		Temperature:     60,
		Weather:         models.WeatherClear,
		EventCategory:   models.UnknownEvent,
		SunsetMinutes:   1170,
	}

	vec := BuildFeatures(stats, nf)
	at := func(name string) float64 { return vec[featureIndex(t, stats.FeatureCols, name)] }

	// Unknown events leave every event one-hot at zero.
	if at("event_weekly_majlis") != 0 || at("event_ashara_night_1") != 0 {
		t.Errorf("event one-hots = %v, %v, want 0, 0",
			at("event_weekly_majlis"), at("event_ashara_night_1"))
	}
}

func TestEventColumn(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Weekly Majlis", "event_weekly_majlis"},
		{"Ashara Night 1", "event_ashara_night_1"},
		{"Eid-ul-Fitr", "event_eid_ul_fitr"},
		{"  Urs  ", "event_urs"},
	}
	for _, tt := range tests {
		if got := EventColumn(tt.in); got != tt.want {
			t.Errorf("EventColumn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
