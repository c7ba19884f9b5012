package digest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchDaily(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `{
			"daily": {
				"time": ["2026-09-03"],
				"temperature_2m_max": [82.4],
				"precipitation_sum": [3.2],
				"sunset": ["2026-09-03T19:24"]
			}
		}`)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, 41.767, -87.9428, "America/Chicago")
	w, err := c.FetchDaily(time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("FetchDaily: %v", err)
	}

	if gotQuery["temperature_unit"][0] != "fahrenheit" {
		t.Errorf("temperature_unit = %v", gotQuery["temperature_unit"])
	}
	if gotQuery["start_date"][0] != "2026-09-03" || gotQuery["end_date"][0] != "2026-09-03" {
		t.Errorf("date range = %v..%v", gotQuery["start_date"], gotQuery["end_date"])
	}

	if w.TemperatureFMax != 82.4 {
		t.Errorf("TemperatureFMax = %v", w.TemperatureFMax)
	}
	if w.PrecipitationSum != 3.2 {
		t.Errorf("PrecipitationSum = %v", w.PrecipitationSum)
	}
	if w.WeatherType != "Rain" {
		t.Errorf("WeatherType = %q, want Rain", w.WeatherType)
	}
	if w.SunsetTime != "19:24" {
		t.Errorf("SunsetTime = %q", w.SunsetTime)
	}
}

func TestFetchDailyDryDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"daily": {
				"time": ["2026-09-03"],
				"temperature_2m_max": [68],
				"precipitation_sum": [0],
				"sunset": ["2026-09-03T19:24:00"]
			}
		}`)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, 41.767, -87.9428, "UTC")
	w, err := c.FetchDaily(time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if w.WeatherType != "" {
		t.Errorf("WeatherType = %q, want empty for a dry day", w.WeatherType)
	}
}

func TestFetchDailyDefaults(t *testing.T) {
	// Sunset missing and unparseable temperature arrays fall back to safe
	// defaults rather than failing the whole digest.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily": {"time": ["2026-09-03"], "sunset": ["???"]}}`)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, 41.767, -87.9428, "UTC")
	w, err := c.FetchDaily(time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if w.TemperatureFMax != 70 {
		t.Errorf("TemperatureFMax = %v, want default 70", w.TemperatureFMax)
	}
	if w.SunsetTime != defaultSunset {
		t.Errorf("SunsetTime = %q, want %q", w.SunsetTime, defaultSunset)
	}
}

func TestFetchDailyNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"daily": {"time": []}}`)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, 41.767, -87.9428, "UTC")
	if _, err := c.FetchDaily(time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), time.UTC); err == nil {
		t.Fatal("expected error for empty forecast")
	}
}

func TestFetchDailyClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewWeatherClient(srv.URL, 41.767, -87.9428, "UTC")
	if _, err := c.FetchDaily(time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), time.UTC); err == nil {
		t.Fatal("expected error")
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestParseSunsetISO(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-09-03T19:24", "19:24", true},
		{"2026-09-03T19:24:36", "19:24", true},
		{"2026-09-03T19:24:36Z", "19:24", true},
		{"19:24", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := parseSunsetISO(tt.in, time.UTC)
		if tt.ok != (err == nil) {
			t.Errorf("parseSunsetISO(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSunsetISO(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
