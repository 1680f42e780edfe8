package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/analytics"
)

const (
	defaultReadingsWindow   = 24 * time.Hour
	defaultDataPointsWindow = 7 * 24 * time.Hour
	defaultDataPointsBucket = time.Hour
	defaultInsightsLimit    = 20
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	queued, err := s.manager.Offline().QueueLength(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"online": s.manager.Offline().Online(),
		"queued": queued,
	})
}

func (s *Server) handleSubmitReading(w http.ResponseWriter, r *http.Request) {
	var raw models.RawReading
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reading, err := s.manager.Telemetry().Ingest(r.Context(), &raw)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		logger.Error("failed to ingest reading", "meter", raw.MeterID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store reading")
		return
	}
	writeJSON(w, http.StatusAccepted, reading)
}

func (s *Server) handleListMeters(w http.ResponseWriter, r *http.Request) {
	ids, err := s.manager.Database().ListMeterIDs(r.Context())
	if err != nil {
		logger.Error("failed to list meters", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list meters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"meters": ids})
}

func (s *Server) handleGetMeter(w http.ResponseWriter, r *http.Request) {
	meterID := mux.Vars(r)["id"]
	meter, err := s.manager.Database().GetMeter(r.Context(), meterID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "meter not found")
		return
	}
	if err != nil {
		logger.Error("failed to load meter", "meter", meterID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load meter")
		return
	}
	writeJSON(w, http.StatusOK, meter)
}

func (s *Server) handleCurrentReading(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	meterID := mux.Vars(r)["id"]

	meter, err := s.manager.Database().GetMeter(ctx, meterID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "meter not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load meter")
		return
	}

	latest, err := s.manager.Database().LatestReading(ctx, meterID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "meter has no readings")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load reading")
		return
	}

	current := models.MeterReading{
		MeterID:          meterID,
		TotalConsumption: meter.Statistics.TotalConsumption,
		CurrentPower:     latest.Power,
		Quality:          latest.Quality,
		Timestamp:        latest.Timestamp,
	}

	devices, err := s.manager.Database().DevicesForMeter(ctx, meterID)
	if err == nil && len(devices) > 0 {
		current.PerDeviceReadings = make(map[string]float64, len(devices))
		for i := range devices {
			current.PerDeviceReadings[devices[i].ID] = devices[i].Statistics.AveragePower
		}
	}

	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	meterID := mux.Vars(r)["id"]
	from, to, err := parseWindow(r, defaultReadingsWindow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	readings, err := s.manager.Database().ReadingsBetween(r.Context(), meterID, from, to)
	if err != nil {
		logger.Error("failed to load readings", "meter", meterID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"readings": readings})
}

func (s *Server) handleDataPoints(w http.ResponseWriter, r *http.Request) {
	meterID := mux.Vars(r)["id"]
	from, to, err := parseWindow(r, defaultDataPointsWindow)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bucket := defaultDataPointsBucket
	if raw := r.URL.Query().Get("bucket"); raw != "" {
		bucket, err = time.ParseDuration(raw)
		if err != nil || bucket <= 0 {
			writeError(w, http.StatusBadRequest, "invalid bucket duration")
			return
		}
	}

	readings, err := s.manager.Database().ReadingsBetween(r.Context(), meterID, from, to)
	if err != nil {
		logger.Error("failed to load readings", "meter", meterID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	points := analytics.BuildDataPoints(readings, s.manager.References().Tariff, bucket)
	writeJSON(w, http.StatusOK, map[string]any{"dataPoints": points})
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	meterID := mux.Vars(r)["id"]
	patterns, err := s.manager.Database().GetPatterns(r.Context(), meterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load patterns")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	meterID := mux.Vars(r)["id"]
	trends, err := s.manager.Database().GetTrends(r.Context(), meterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trends")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trends": trends})
}

func (s *Server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	meterID := mux.Vars(r)["id"]
	benchmarks, err := s.manager.Database().GetBenchmarks(r.Context(), meterID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load benchmarks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"benchmarks": benchmarks})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	meterID := mux.Vars(r)["id"]

	limit := defaultInsightsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	insights, err := s.manager.Database().RecentInsights(r.Context(), meterID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load insights")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	flushed, err := s.manager.Sync(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"flushed": flushed})
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Online == nil {
		writeError(w, http.StatusBadRequest, "body must be {\"online\": true|false}")
		return
	}

	s.manager.SetOnline(*body.Online)
	writeJSON(w, http.StatusOK, map[string]any{"online": *body.Online})
}

func (s *Server) handleRunAnalytics(w http.ResponseWriter, r *http.Request) {
	s.manager.RunAnalytics(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "completed"})
}

// parseWindow reads the from/to query parameters, defaulting to the trailing
// window ending now.
func parseWindow(r *http.Request, span time.Duration) (from, to time.Time, err error) {
	qs := r.URL.Query()
	if raw := qs.Get("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errors.New("to must be RFC3339")
		}
	} else {
		to = time.Now().UTC()
	}
	if raw := qs.Get("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, errors.New("from must be RFC3339")
		}
	} else {
		from = to.Add(-span)
	}
	if !to.After(from) {
		return from, to, errors.New("from must be before to")
	}
	return from, to, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
