package predict

import (
	"strings"
	"testing"
	"time"

	"github.com/panxpan/rsvpcast/internal/models"
)

func TestInsights(t *testing.T) {
	stats := testStats(t)

	tests := []struct {
		name string
		nf   models.NormalizedFeatures
		want []string
	}{
		{
			name: "strong day no other effects",
			nf: models.NormalizedFeatures{
				DayOfWeek:   time.Thursday, // 1.15 vs base 0.95
				Temperature: 60,
				Weather:     models.WeatherClear,
			},
			want: []string{"Thursday events typically have high attendance"},
		},
		{
			name: "weak day",
			nf: models.NormalizedFeatures{
				DayOfWeek:   time.Sunday, // 0.85 vs base 0.95
				Temperature: 60,
				Weather:     models.WeatherClear,
			},
			want: []string{"Sunday events typically have lower attendance"},
		},
		{
			name: "day near baseline stays quiet",
			nf: models.NormalizedFeatures{
				DayOfWeek:   time.Friday, // 1.0, within margin of 0.95
				Temperature: 60,
				Weather:     models.WeatherClear,
			},
			want: nil,
		},
		{
			name: "rain",
			nf: models.NormalizedFeatures{
				DayOfWeek:   time.Friday,
				Temperature: 60,
				Weather:     models.WeatherRain, // 0.9
			},
			want: []string{"Rainy weather historically reduces attendance by 10.0%"},
		},
		{
			name: "special event",
			nf: models.NormalizedFeatures{
				DayOfWeek:    time.Friday,
				Temperature:  60,
				Weather:      models.WeatherClear,
				SpecialEvent: true, // 0.92
			},
			want: []string{"Special events historically have 8.0% lower attendance"},
		},
		{
			name: "cold",
			nf: models.NormalizedFeatures{
				DayOfWeek:   time.Friday,
				Temperature: 30,
				Weather:     models.WeatherClear,
			},
			want: []string{"Cold weather may impact attendance"},
		},
		{
			name: "hot",
			nf: models.NormalizedFeatures{
				DayOfWeek:   time.Friday,
				Temperature: 90,
				Weather:     models.WeatherClear,
			},
			want: []string{"Hot weather may impact attendance"},
		},
		{
			name: "boundary temperatures stay quiet",
			nf: models.NormalizedFeatures{
				DayOfWeek:   time.Friday,
				Temperature: 40,
				Weather:     models.WeatherClear,
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Insights(stats, &tt.nf)
			if len(got) != len(tt.want) {
				t.Fatalf("Insights = %v, want %d entries", got, len(tt.want))
			}
			for i, sub := range tt.want {
				if !strings.Contains(got[i], sub) {
					t.Errorf("insight[%d] = %q, want substring %q", i, got[i], sub)
				}
			}
		})
	}
}

func TestInsightsCapped(t *testing.T) {
	stats := testStats(t)
	// Every trigger at once: day, rain, special, cold. Only three survive.
	nf := &models.NormalizedFeatures{
		DayOfWeek:    time.Sunday,
		Temperature:  30,
		Weather:      models.WeatherRain,
		SpecialEvent: true,
	}
	got := Insights(stats, nf)
	if len(got) != 3 {
		t.Fatalf("Insights returned %d entries, want 3", len(got))
	}
	// Priority order keeps day, weather, event; the temperature line drops.
	for _, s := range got {
		if strings.Contains(s, "Cold weather") {
			t.Errorf("temperature insight should be dropped: %v", got)
		}
	}
}
