package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"forecast-backtest/backtest"
	"forecast-backtest/database"
)

// handleGetBatchStatus returns snapshot coverage per (model, metric) pair
func (s *Server) handleGetBatchStatus(w http.ResponseWriter, r *http.Request) {
	metricCode := r.URL.Query().Get("metric")

	statuses, err := s.statusDB.GetBacktestStatuses(metricCode)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load backtest statuses", err)
		return
	}
	if statuses == nil {
		statuses = []database.BacktestStatus{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"statuses": statuses,
		"count":    len(statuses),
	})
}

// startBacktestRequest is the JSON body of POST /api/backtest/batch.
type startBacktestRequest struct {
	Model        string `json:"model"`
	Metric       string `json:"metric"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	ForecastDays int    `json:"forecast_days"`
	ExcludeCovid bool   `json:"exclude_covid"`
}

// handleStartBacktest accepts a backtest run and returns 202 with the job
func (s *Server) handleStartBacktest(w http.ResponseWriter, r *http.Request) {
	var body startBacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(dateLayout, body.StartDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
		return
	}
	end, err := time.Parse(dateLayout, body.EndDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD", err)
		return
	}

	job, err := s.runner.StartRun(backtest.RunRequest{
		Model:        body.Model,
		MetricCode:   body.Metric,
		StartDate:    start,
		EndDate:      end,
		ForecastDays: body.ForecastDays,
		ExcludeCovid: body.ExcludeCovid,
	})
	if err != nil {
		switch {
		case errors.Is(err, backtest.ErrRunInFlight):
			respondWithError(w, http.StatusConflict, err.Error(), nil)
		case errors.Is(err, backtest.ErrInvalidRun):
			respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to start backtest", err)
		}
		return
	}

	log.Printf("🔄 Accepted backtest run %s (%s/%s)", job.ID, job.Model, job.MetricCode)
	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Backtest run accepted",
		"job":     job,
	})
}

// handleGetJobs lists recent backtest jobs, optionally filtered by status
func (s *Server) handleGetJobs(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	minLimit, maxLimit := 1, 500
	limit := getIntParam(r, "limit", 50, &minLimit, &maxLimit)

	jobs, err := s.jobsRepo.List(status, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load jobs", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// handleGetJob returns one backtest job by ID
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := s.jobsRepo.GetByID(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load job", err)
		return
	}
	if job == nil {
		respondWithError(w, http.StatusNotFound, "Job not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleBackfillActuals triggers an on-demand actuals backfill pass
func (s *Server) handleBackfillActuals(w http.ResponseWriter, r *http.Request) {
	rows, err := s.backfiller.RunOnce()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Backfill failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Actuals backfill completed",
		"rows_updated": rows,
	})
}

// handleDeleteSnapshots removes every snapshot of one (model, metric) pair
func (s *Server) handleDeleteSnapshots(w http.ResponseWriter, r *http.Request) {
	model := r.PathValue("model")
	metricCode := r.URL.Query().Get("metric")
	if metricCode == "" {
		respondWithError(w, http.StatusBadRequest, "metric query parameter is required", nil)
		return
	}

	if s.runner.IsRunning(model, metricCode) {
		respondWithError(w, http.StatusConflict, "A backtest is running for this model and metric", nil)
		return
	}

	deleted, err := s.snapshots.DeleteByModelMetric(model, metricCode)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to delete snapshots", err)
		return
	}

	s.invalidateAccuracyCache(r.Context())
	log.Printf("🗄️ Deleted %d snapshots for %s/%s", deleted, model, metricCode)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Snapshots deleted",
		"model":         model,
		"metric_code":   metricCode,
		"rows_affected": deleted,
	})
}

// invalidateAccuracyCache drops cached accuracy responses after snapshot data
// changed. Best effort: a cold cache is only a latency cost.
func (s *Server) invalidateAccuracyCache(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.DeleteByPrefix(ctx, accuracyCachePrefix); err != nil {
		log.Printf("⚠️ Failed to invalidate accuracy cache: %v", err)
	}
}
