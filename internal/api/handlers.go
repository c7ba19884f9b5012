package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/panxpan/rsvpcast/internal/metrics"
	"github.com/panxpan/rsvpcast/internal/models"
	"github.com/panxpan/rsvpcast/internal/predict"
)

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()
	defer func() {
		metrics.RequestLatency.WithLabelValues("predict").Observe(time.Since(start).Seconds())
	}()

	var req models.PredictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.forecaster.Forecast(req)
	if err != nil {
		var dateErr *predict.InvalidDateError
		var rangeErr *predict.InvalidRangeError
		switch {
		case errors.As(err, &dateErr):
			metrics.PredictionErrors.WithLabelValues("invalid_date").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &rangeErr):
			metrics.PredictionErrors.WithLabelValues("invalid_range").Inc()
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			metrics.PredictionErrors.WithLabelValues("internal").Inc()
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if s.store != nil {
		raw := strings.TrimSpace(req.EventDate)
		date, _ := time.Parse("2006-01-02", raw[:min(10, len(raw))])
		if _, err := s.store.LogPrediction(models.PredictionRecord{
			EventDate:       date,
			EventName:       req.EventName,
			RegisteredCount: req.RegisteredCount,
			Selected:        result.Selected,
			LowerBound:      result.LowerBound,
			UpperBound:      result.UpperBound,
			Model:           result.Model,
			Warnings:        strings.Join(result.Warnings, "; "),
		}); err != nil {
			log.Printf("api: log prediction: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, predictResponse{
		EventDate:       req.EventDate,
		RegisteredCount: req.RegisteredCount,
		EnsembleResult:  result,
		ModelVersion:    s.stats.ModelVersion,
	})
}

type predictResponse struct {
	EventDate       string `json:"event_date"`
	RegisteredCount int    `json:"registered_count"`
	*models.EnsembleResult
	ModelVersion string `json:"model_version,omitempty"`
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	st := s.stats

	info := map[string]any{
		"model_version":          st.ModelVersion,
		"training_events":        st.TrainingStats.TotalEvents,
		"mean_absolute_error":    st.MeanAbsoluteError,
		"base_attendance_ratio":  round3(st.BaseRatio),
		"day_of_week_ratios":     roundMap(st.DayRatios),
		"weather_impact":         roundMap(st.WeatherImpact),
		"event_type_impact":      roundMap(st.EventImpact),
		"available_temperatures": st.ValidTemperatures,
		"available_events":       st.KnownEventNames,
	}
	writeJSON(w, http.StatusOK, info)
}

type actualRequest struct {
	EventDate string  `json:"event_date"`
	EventName string  `json:"event_name"`
	Actual    float64 `json:"actual"`
}

func (s *Server) handleActuals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction log disabled")
		return
	}

	var req actualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", req.EventDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event_date: expected YYYY-MM-DD")
		return
	}
	if req.Actual < 0 {
		writeError(w, http.StatusBadRequest, "actual must be non-negative")
		return
	}

	n, err := s.store.RecordActual(date, req.EventName, req.Actual)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": n})
}

func (s *Server) handleAccuracy(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction log disabled")
		return
	}

	windowDays := 90
	if v := r.URL.Query().Get("window"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			windowDays = n
		}
	}

	stats, err := s.store.GetAccuracyStats(windowDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"window_days": windowDays,
		"models":      stats,
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction log disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := s.store.GetRecentPredictions(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"model_version": s.stats.ModelVersion,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}

func roundMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round3(v)
	}
	return out
}
