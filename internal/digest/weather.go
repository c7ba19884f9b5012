package digest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/panxpan/rsvpcast/internal/metrics"
	"github.com/panxpan/rsvpcast/internal/models"
)

const defaultSunset = "19:00"

// WeatherClient fetches the daily forecast for the venue from Open-Meteo.
type WeatherClient struct {
	baseURL string
	lat     float64
	lon     float64
	tz      string
	client  *http.Client
}

func NewWeatherClient(baseURL string, lat, lon float64, tz string) *WeatherClient {
	return &WeatherClient{
		baseURL: baseURL,
		lat:     lat,
		lon:     lon,
		tz:      tz,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type openMeteoResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		Sunset           []string  `json:"sunset"`
	} `json:"daily"`
}

// FetchDaily returns max temperature (°F), precipitation sum, and sunset time
// for a single date.
func (c *WeatherClient) FetchDaily(date time.Time, loc *time.Location) (*models.Weather, error) {
	dateStr := date.Format("2006-01-02")
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.4f", c.lat))
	params.Set("longitude", fmt.Sprintf("%.4f", c.lon))
	params.Set("daily", "temperature_2m_max,precipitation_sum,sunset")
	params.Set("timezone", c.tz)
	params.Set("temperature_unit", "fahrenheit")
	params.Set("start_date", dateStr)
	params.Set("end_date", dateStr)

	reqURL := c.baseURL + "?" + params.Encode()

	var body []byte
	operation := func() error {
		resp, err := c.client.Get(reqURL)
		if err != nil {
			metrics.IngestAPICalls.WithLabelValues("open-meteo", "error").Inc()
			return fmt.Errorf("fetch weather: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			metrics.IngestAPICalls.WithLabelValues("open-meteo", fmt.Sprint(resp.StatusCode)).Inc()
			return fmt.Errorf("fetch weather: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.IngestAPICalls.WithLabelValues("open-meteo", fmt.Sprint(resp.StatusCode)).Inc()
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch weather: status %d: %s", resp.StatusCode, string(b)))
		}

		metrics.IngestAPICalls.WithLabelValues("open-meteo", "200").Inc()
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	var data openMeteoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal weather: %w", err)
	}

	if len(data.Daily.Time) == 0 {
		return nil, fmt.Errorf("no weather data for %s", dateStr)
	}

	w := &models.Weather{
		TemperatureFMax: 70,
		SunsetTime:      defaultSunset,
	}
	if len(data.Daily.TemperatureMax) > 0 {
		w.TemperatureFMax = data.Daily.TemperatureMax[0]
	}
	if len(data.Daily.PrecipitationSum) > 0 {
		w.PrecipitationSum = data.Daily.PrecipitationSum[0]
	}
	if len(data.Daily.Sunset) > 0 {
		if t, err := parseSunsetISO(data.Daily.Sunset[0], loc); err == nil {
			w.SunsetTime = t
		}
	}
	if w.PrecipitationSum > 0 {
		w.WeatherType = "Rain"
	}
	return w, nil
}

// Open-Meteo returns sunset as local ISO-8601 without an offset when a
// timezone parameter is given, and with one otherwise.
func parseSunsetISO(raw string, loc *time.Location) (string, error) {
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.In(loc).Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("unparseable sunset %q", raw)
}
