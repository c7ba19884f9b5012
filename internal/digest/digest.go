// Package digest is the scheduled email pipeline: it pulls upcoming events
// from the registration registry, fetches per-date weather, runs the
// in-process forecaster, and mails an HTML summary.
package digest

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/panxpan/rsvpcast/internal/metrics"
	"github.com/panxpan/rsvpcast/internal/models"
	"github.com/panxpan/rsvpcast/internal/predict"
	"github.com/panxpan/rsvpcast/internal/store"
)

// Entry is one forecast row in the digest.
type Entry struct {
	Event         models.Event
	Weather       models.Weather
	Result        models.EnsembleResult
	FormattedDate string
	Trays         int
	Notes         string
}

type digestData struct {
	DateRange    string
	GeneratedAt  string
	TraysDivisor int
	Entries      []Entry
}

// Pipeline assembles and sends the daily forecast digest.
type Pipeline struct {
	events       *EventsClient
	weather      *WeatherClient
	forecaster   *predict.Forecaster
	store        *store.Store
	mailer       *Mailer
	loc          *time.Location
	windowDays   int
	traysDivisor int
}

func NewPipeline(events *EventsClient, weather *WeatherClient, forecaster *predict.Forecaster,
	st *store.Store, mailer *Mailer, loc *time.Location, windowDays, traysDivisor int) *Pipeline {
	return &Pipeline{
		events:       events,
		weather:      weather,
		forecaster:   forecaster,
		store:        st,
		mailer:       mailer,
		loc:          loc,
		windowDays:   windowDays,
		traysDivisor: traysDivisor,
	}
}

// Run executes one digest cycle. A cycle with no upcoming events or no
// successful forecasts sends nothing and is not an error.
func (p *Pipeline) Run() error {
	events, err := p.events.FetchUpcoming(p.loc, p.windowDays)
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	if len(events) == 0 {
		log.Println("digest: no upcoming events, skipping")
		return nil
	}

	entries := p.buildEntries(events)
	if len(entries) == 0 {
		log.Println("digest: no successful forecasts, skipping")
		return nil
	}

	subject, html, err := Render(entries, p.traysDivisor, p.loc)
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	if err := p.mailer.Send(subject, html); err != nil {
		return err
	}
	metrics.DigestEmailsSent.Inc()

	today := time.Now().In(p.loc)
	if p.store != nil {
		if err := p.store.LogDigest(today, len(entries), p.mailer.To); err != nil {
			log.Printf("digest: log send: %v", err)
		}
	}
	log.Printf("digest: sent forecast for %d events to %s", len(entries), strings.Join(p.mailer.To, ", "))
	return nil
}

func (p *Pipeline) buildEntries(events []models.Event) []Entry {
	var entries []Entry
	for _, ev := range events {
		weather, err := p.weather.FetchDaily(ev.Date, p.loc)
		if err != nil {
			log.Printf("digest: skipping %s, no weather: %v", ev.Name, err)
			continue
		}

		result, err := p.forecaster.Forecast(models.PredictionRequest{
			EventDate:          ev.Date.Format("2006-01-02"),
			RegisteredCount:    ev.RegisteredCount,
			WeatherTemperature: weather.TemperatureFMax,
			WeatherType:        weather.WeatherType,
			SpecialEvent:       ev.SpecialEvent,
			EventName:          ev.Name,
			SunsetTime:         weather.SunsetTime,
		})
		if err != nil {
			log.Printf("digest: skipping %s, forecast failed: %v", ev.Name, err)
			continue
		}

		entries = append(entries, Entry{
			Event:         ev,
			Weather:       *weather,
			Result:        *result,
			FormattedDate: ev.Date.Format("Monday, January 2, 2006"),
			Trays:         int(math.Ceil(result.Selected / float64(p.traysDivisor))),
			Notes:         strings.Join(result.Warnings, "; "),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Event.Date.Before(entries[j].Event.Date)
	})
	return entries
}

// Render produces the email subject and HTML body for a set of entries.
func Render(entries []Entry, traysDivisor int, loc *time.Location) (subject, html string, err error) {
	first := entries[0].Event.Date
	last := entries[len(entries)-1].Event.Date

	dateRange := first.Format("01/02/2006")
	if !last.Equal(first) {
		dateRange = fmt.Sprintf("%s - %s", first.Format("01/02/2006"), last.Format("01/02/2006"))
	}

	data := digestData{
		DateRange:    dateRange,
		GeneratedAt:  time.Now().In(loc).Format("2006-01-02 15:04:05 MST"),
		TraysDivisor: traysDivisor,
		Entries:      entries,
	}

	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	return "Upcoming Event Forecasts: " + dateRange, buf.String(), nil
}
