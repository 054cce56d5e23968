package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"forecast-backtest/accuracy"
	"forecast-backtest/forecaster"
)

// accuracyCachePrefix namespaces cached accuracy responses so snapshot
// mutations can invalidate them in one sweep.
const accuracyCachePrefix = "accuracy:"

// accuracyRow is one aggregated accuracy cell in an API response. The group
// key is serialized under a dimension-specific name by the handlers.
type accuracyRow struct {
	Model string   `json:"model"`
	Group string   `json:"-"`
	N     int      `json:"n"`
	MAE   *float64 `json:"mae"`
	MAPE  *float64 `json:"mape"`
}

// bracketRow, weekdayRow and monthRow rename the group key per dimension.
type bracketRow struct {
	accuracyRow
	LeadBracket string `json:"lead_bracket"`
}

type weekdayRow struct {
	accuracyRow
	DayOfWeek string `json:"day_of_week"`
}

type monthRow struct {
	accuracyRow
	Month string `json:"month"`
}

// handleAccuracyByBracket returns MAE/MAPE per model per lead-time bracket
func (s *Server) handleAccuracyByBracket(w http.ResponseWriter, r *http.Request) {
	s.serveAccuracy(w, r, "bracket", accuracy.ByBracket, func(g accuracy.GroupStats) interface{} {
		return bracketRow{accuracyRow: toRow(g), LeadBracket: g.Group}
	})
}

// handleAccuracyByWeekday returns MAE/MAPE per model per target day of week
func (s *Server) handleAccuracyByWeekday(w http.ResponseWriter, r *http.Request) {
	s.serveAccuracy(w, r, "weekday", accuracy.ByWeekday, func(g accuracy.GroupStats) interface{} {
		return weekdayRow{accuracyRow: toRow(g), DayOfWeek: g.Group}
	})
}

// handleAccuracyByMonth returns MAE/MAPE per model per target month
func (s *Server) handleAccuracyByMonth(w http.ResponseWriter, r *http.Request) {
	s.serveAccuracy(w, r, "month", accuracy.ByMonth, func(g accuracy.GroupStats) interface{} {
		return monthRow{accuracyRow: toRow(g), Month: g.Group}
	})
}

func toRow(g accuracy.GroupStats) accuracyRow {
	return accuracyRow{Model: g.Model, Group: g.Group, N: g.N, MAE: g.MAE, MAPE: g.MAPE}
}

// serveAccuracy loads evaluated snapshots, aggregates them along one
// dimension, and serves the result with a short-lived cache in front.
func (s *Server) serveAccuracy(w http.ResponseWriter, r *http.Request, dimension string,
	aggregate func([]accuracy.Observation) []accuracy.GroupStats,
	shape func(accuracy.GroupStats) interface{}) {

	metricCode := r.URL.Query().Get("metric")
	if metricCode == "" {
		respondWithError(w, http.StatusBadRequest, "metric query parameter is required", nil)
		return
	}
	model := r.URL.Query().Get("model")

	cacheKey := fmt.Sprintf("%s%s:%s:%s", accuracyCachePrefix, dimension, metricCode, model)
	var cached map[string]interface{}
	if err := s.redis.Get(r.Context(), cacheKey, &cached); err == nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	snaps, err := s.snapshots.GetEvaluated(metricCode, model)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load evaluated snapshots", err)
		return
	}

	stats := aggregate(accuracy.FromSnapshots(snaps))
	rows := make([]interface{}, 0, len(stats))
	for _, g := range stats {
		rows = append(rows, shape(g))
	}

	response := map[string]interface{}{
		"metric_code": metricCode,
		"rows":        rows,
		"count":       len(rows),
	}
	s.cacheAccuracy(r.Context(), cacheKey, response)
	respondJSON(w, http.StatusOK, response)
}

// handleModelWeights returns per-bracket inverse-MAPE blend weights
func (s *Server) handleModelWeights(w http.ResponseWriter, r *http.Request) {
	metricCode := r.URL.Query().Get("metric")
	if metricCode == "" {
		respondWithError(w, http.StatusBadRequest, "metric query parameter is required", nil)
		return
	}

	cacheKey := accuracyCachePrefix + "weights:" + metricCode
	var cached map[string]interface{}
	if err := s.redis.Get(r.Context(), cacheKey, &cached); err == nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	snaps, err := s.snapshots.GetEvaluated(metricCode, "")
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load evaluated snapshots", err)
		return
	}

	weights := accuracy.BracketWeights(accuracy.ByBracket(accuracy.FromSnapshots(snaps)))
	if weights == nil {
		weights = []accuracy.ModelWeight{}
	}

	response := map[string]interface{}{
		"metric_code": metricCode,
		"weights":     weights,
		"count":       len(weights),
	}
	s.cacheAccuracy(r.Context(), cacheKey, response)
	respondJSON(w, http.StatusOK, response)
}

// handleProductionWeights returns the single production-wide weight set used
// by the live blended forecaster
func (s *Server) handleProductionWeights(w http.ResponseWriter, r *http.Request) {
	metricCode := r.URL.Query().Get("metric")
	if metricCode == "" {
		respondWithError(w, http.StatusBadRequest, "metric query parameter is required", nil)
		return
	}
	metric, err := forecaster.MetricByCode(metricCode)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	cacheKey := accuracyCachePrefix + "production-weights:" + metricCode
	var cached accuracy.ProductionWeightSet
	if err := s.redis.Get(r.Context(), cacheKey, &cached); err == nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	snaps, err := s.snapshots.GetEvaluated(metricCode, "")
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load evaluated snapshots", err)
		return
	}

	set := accuracy.ProductionWeights(metricCode, metric.IsPace, accuracy.FromSnapshots(snaps))
	s.cacheAccuracy(r.Context(), cacheKey, set)
	respondJSON(w, http.StatusOK, set)
}

func (s *Server) cacheAccuracy(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.cacheTTL); err != nil {
		log.Printf("⚠️ Failed to cache accuracy response: %v", err)
	}
}
