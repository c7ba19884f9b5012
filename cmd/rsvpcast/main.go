package main

import (
	"context"
	"database/sql"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/panxpan/rsvpcast/internal/api"
	"github.com/panxpan/rsvpcast/internal/digest"
	"github.com/panxpan/rsvpcast/internal/metadata"
	"github.com/panxpan/rsvpcast/internal/predict"
	"github.com/panxpan/rsvpcast/internal/regressor"
	"github.com/panxpan/rsvpcast/internal/store"
)

type cli struct {
	Metadata       string  `help:"Path to model metadata JSON." default:"data/model_metadata.json" env:"RSVPCAST_METADATA"`
	PrimaryModel   string  `help:"Path to the primary regressor artifact." default:"data/rf_model.json" env:"RSVPCAST_PRIMARY_MODEL"`
	SecondaryModel string  `help:"Path to the secondary regressor artifact." default:"data/lr_model.json" env:"RSVPCAST_SECONDARY_MODEL"`
	DB             string  `help:"Path to the SQLite prediction log." default:"data/rsvpcast.db" env:"RSVPCAST_DB"`
	Port           string  `help:"HTTP server port." default:"8080" env:"RSVPCAST_PORT"`
	Timezone       string  `help:"Venue timezone." default:"America/Chicago" env:"RSVPCAST_TZ"`
	TempMin        float64 `help:"Lowest accepted input temperature (F)." default:"-50" env:"RSVPCAST_TEMP_MIN"`
	TempMax        float64 `help:"Highest accepted input temperature (F)." default:"150" env:"RSVPCAST_TEMP_MAX"`

	Digest struct {
		Enabled      bool    `help:"Enable the daily forecast email digest." env:"RSVPCAST_DIGEST_ENABLED"`
		Once         bool    `help:"Run the digest once and exit."`
		EventsURL    string  `help:"Base URL of the event registration registry." default:"https://www.chicagojamaat.org/api" env:"RSVPCAST_EVENTS_URL"`
		EventsToken  string  `help:"Bearer token for the registry API." env:"RSVPCAST_EVENTS_TOKEN"`
		WeatherURL   string  `help:"Open-Meteo forecast endpoint." default:"https://api.open-meteo.com/v1/forecast" env:"RSVPCAST_WEATHER_URL"`
		Latitude     float64 `help:"Venue latitude." default:"41.7670" env:"RSVPCAST_LAT"`
		Longitude    float64 `help:"Venue longitude." default:"-87.9428" env:"RSVPCAST_LON"`
		WindowDays   int     `help:"Days ahead to include in the digest." default:"2" env:"RSVPCAST_WINDOW_DAYS"`
		TraysDivisor int     `help:"Attendees per serving tray." default:"8" env:"RSVPCAST_TRAYS_DIVISOR"`
		SendHour     int     `help:"Local hour to send the digest." default:"7" env:"RSVPCAST_SEND_HOUR"`
	} `embed:"" prefix:"digest."`

	SMTP struct {
		Host     string   `help:"SMTP server host." default:"smtp.zoho.com" env:"SMTP_HOST"`
		Port     int      `help:"SMTP server port." default:"587" env:"SMTP_PORT"`
		Username string   `help:"SMTP username." env:"SMTP_USERNAME"`
		Password string   `help:"SMTP password." env:"SMTP_PASSWORD"`
		From     string   `help:"From address." env:"SMTP_FROM"`
		To       []string `help:"Digest recipients." env:"SMTP_TO"`
	} `embed:"" prefix:"smtp."`
}

func main() {
	var flags cli
	kong.Parse(&flags,
		kong.Name("rsvpcast"),
		kong.Description("RSVP attendance forecasting service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	stats, err := metadata.Load(flags.Metadata)
	if err != nil {
		// A partial model must never serve.
		log.Fatalf("load metadata: %v", err)
	}
	log.Printf("metadata loaded (version %s, %d training events)", stats.ModelVersion, stats.TrainingStats.TotalEvents)

	primary := loadEstimator(flags.PrimaryModel, "primary")
	secondary := loadEstimator(flags.SecondaryModel, "secondary")

	db, err := sql.Open("sqlite", flags.DB)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	loc, err := time.LoadLocation(flags.Timezone)
	if err != nil {
		log.Printf("warning: could not load timezone %s, using UTC: %v", flags.Timezone, err)
		loc = time.UTC
	}

	st := store.New(db, loc)
	if err := st.Migrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("database migrated")

	cfg := predict.DefaultConfig()
	cfg.TempMin = flags.TempMin
	cfg.TempMax = flags.TempMax

	forecaster := predict.New(stats, primary, secondary, cfg)
	server := api.NewServer(forecaster, stats, st, flags.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if flags.Digest.Enabled || flags.Digest.Once {
		events := digest.NewEventsClient(flags.Digest.EventsURL, flags.Digest.EventsToken)
		weather := digest.NewWeatherClient(flags.Digest.WeatherURL, flags.Digest.Latitude, flags.Digest.Longitude, flags.Timezone)
		mailer := &digest.Mailer{
			Host:     flags.SMTP.Host,
			Port:     flags.SMTP.Port,
			Username: flags.SMTP.Username,
			Password: flags.SMTP.Password,
			From:     flags.SMTP.From,
			To:       flags.SMTP.To,
		}
		pipeline := digest.NewPipeline(events, weather, forecaster, st, mailer, loc,
			flags.Digest.WindowDays, flags.Digest.TraysDivisor)

		if flags.Digest.Once {
			log.Println("running single digest cycle")
			if err := pipeline.Run(); err != nil {
				log.Fatalf("digest: %v", err)
			}
			return
		}

		go digest.NewScheduler(pipeline, st, loc, flags.Digest.SendHour).Run(ctx)
	}

	log.Printf("starting server on :%s", flags.Port)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// loadEstimator loads a model artifact, degrading to the ratio fallback when
// the file is absent rather than refusing to start.
func loadEstimator(path, role string) regressor.Estimator {
	est, err := regressor.Load(path)
	if err != nil {
		log.Printf("warning: %s model unavailable, fallback chain covers: %v", role, err)
		return nil
	}
	log.Printf("%s model loaded: %s", role, est.Name())
	return est
}
