package digest

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/panxpan/rsvpcast/internal/metrics"
	"github.com/panxpan/rsvpcast/internal/models"
)

// specialKeywords mark events that historically behave differently from
// regular dinners. Matched case-insensitively against the event name.
var specialKeywords = []string{"ashara", "muharram", "ramadan", "eid", "majlis", "special"}

// EventsClient fetches upcoming event registrations from the community
// registry API.
type EventsClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewEventsClient(baseURL, token string) *EventsClient {
	return &EventsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Registry exports are inconsistent about key casing, so every known variant
// is decoded and the first non-empty one wins.
type eventRegistration struct {
	EventDate          string `json:"event_date"`
	EventDateCamel     string `json:"eventDate"`
	Date               string `json:"date"`
	EventName          string `json:"event_name"`
	EventNameCamel     string `json:"eventName"`
	TotalRegistrations int    `json:"totalRegistrations"`
	TotalSnake         int    `json:"total_registrations"`
	InstanceID         string `json:"instance_id"`
	InstanceIDCamel    string `json:"instanceId"`
}

func (r eventRegistration) date() string {
	for _, v := range []string{r.EventDate, r.EventDateCamel, r.Date} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r eventRegistration) name() string {
	if r.EventName != "" {
		return r.EventName
	}
	return r.EventNameCamel
}

func (r eventRegistration) registrations() int {
	if r.TotalRegistrations != 0 {
		return r.TotalRegistrations
	}
	return r.TotalSnake
}

func (r eventRegistration) instanceID() string {
	if r.InstanceID != "" {
		return r.InstanceID
	}
	return r.InstanceIDCamel
}

// FetchUpcoming returns events falling on today..today+windowDays in local
// time. Duplicate (date, name) rows are merged with registrations summed.
func (c *EventsClient) FetchUpcoming(loc *time.Location, windowDays int) ([]models.Event, error) {
	url := c.baseURL + "/jamaat/event-registrations"

	var body []byte
	operation := func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			metrics.IngestAPICalls.WithLabelValues("events", "error").Inc()
			return fmt.Errorf("fetch events: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			metrics.IngestAPICalls.WithLabelValues("events", fmt.Sprint(resp.StatusCode)).Inc()
			return fmt.Errorf("fetch events: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.IngestAPICalls.WithLabelValues("events", fmt.Sprint(resp.StatusCode)).Inc()
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch events: status %d: %s", resp.StatusCode, string(b)))
		}

		metrics.IngestAPICalls.WithLabelValues("events", "200").Inc()
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

	var registrations []eventRegistration
	if err := json.Unmarshal(body, &registrations); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}

	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	last := today.AddDate(0, 0, windowDays)

	merged := make(map[string]*models.Event)
	var order []string
	for _, reg := range registrations {
		dateStr := reg.date()
		if dateStr == "" {
			continue
		}
		date, err := parseRegistryDate(dateStr)
		if err != nil {
			log.Printf("digest: skipping registration with unparseable date %q", dateStr)
			continue
		}
		if date.Before(today) || date.After(last) {
			continue
		}

		name := reg.name()
		if name == "" {
			name = "Event on " + date.Format("2006-01-02")
		}

		key := date.Format("2006-01-02") + "|" + name
		if ev, ok := merged[key]; ok {
			ev.RegisteredCount += reg.registrations()
			continue
		}
		merged[key] = &models.Event{
			Name:            name,
			Date:            date,
			RegisteredCount: reg.registrations(),
			InstanceID:      reg.instanceID(),
			SpecialEvent:    isSpecialEvent(name),
		}
		order = append(order, key)
	}

	events := make([]models.Event, 0, len(order))
	for _, key := range order {
		events = append(events, *merged[key])
	}
	return events, nil
}

func isSpecialEvent(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range specialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func parseRegistryDate(raw string) (time.Time, error) {
	if strings.Contains(raw, "T") {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", raw)
}
