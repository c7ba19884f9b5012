package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/panxpan/rsvpcast/internal/metadata"
	"github.com/panxpan/rsvpcast/internal/predict"
	"github.com/panxpan/rsvpcast/internal/store"
)

// Server exposes the prediction engine over HTTP. All state it touches is
// read-only after startup, so handlers need no locking.
type Server struct {
	forecaster *predict.Forecaster
	stats      *metadata.Stats
	store      *store.Store
	port       string
}

func NewServer(forecaster *predict.Forecaster, stats *metadata.Stats, st *store.Store, port string) *Server {
	return &Server{
		forecaster: forecaster,
		stats:      stats,
		store:      st,
		port:       port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/model_info", s.handleModelInfo)
	mux.HandleFunc("/actuals", s.handleActuals)
	mux.HandleFunc("/accuracy", s.handleAccuracy)
	mux.HandleFunc("/predictions", s.handlePredictions)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
