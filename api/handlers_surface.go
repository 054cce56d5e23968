package api

import (
	"net/http"
	"sort"
	"time"

	"forecast-backtest/database"
)

// surfaceSeries is the forecast curve one perception date produced for the
// requested month.
type surfaceSeries struct {
	PerceptionDate string             `json:"perception_date"`
	Points         map[string]float64 `json:"points"` // target date -> forecast
}

// handleMonthlySurface shapes one month of snapshots into the 3D progress
// surface: one series per perception date plus the realized actuals line
func (s *Server) handleMonthlySurface(w http.ResponseWriter, r *http.Request) {
	model := r.URL.Query().Get("model")
	metricCode := r.URL.Query().Get("metric")
	if model == "" || metricCode == "" {
		respondWithError(w, http.StatusBadRequest, "model and metric query parameters are required", nil)
		return
	}
	month, ok := getMonthParam(r, "month")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "month query parameter must be YYYY-MM", nil)
		return
	}

	cells, err := s.statusDB.GetMonthlySurface(model, metricCode, month)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load monthly surface", err)
		return
	}

	series, actuals := shapeSurface(cells)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"model":       model,
		"metric_code": metricCode,
		"month":       month.Format("2006-01"),
		"series":      series,
		"actuals":     actuals,
	})
}

// shapeSurface groups snapshot cells by perception date, ordered oldest
// first, and collects the actuals line once across all cells.
func shapeSurface(cells []database.SurfaceCell) ([]surfaceSeries, map[string]float64) {
	byPerception := make(map[time.Time]map[string]float64)
	actuals := make(map[string]float64)

	for _, c := range cells {
		points, ok := byPerception[c.PerceptionDate]
		if !ok {
			points = make(map[string]float64)
			byPerception[c.PerceptionDate] = points
		}
		target := c.TargetDate.Format(dateLayout)
		points[target] = c.Forecast
		if c.Actual != nil {
			actuals[target] = *c.Actual
		}
	}

	perceptions := make([]time.Time, 0, len(byPerception))
	for p := range byPerception {
		perceptions = append(perceptions, p)
	}
	sort.Slice(perceptions, func(i, j int) bool { return perceptions[i].Before(perceptions[j]) })

	series := make([]surfaceSeries, 0, len(perceptions))
	for _, p := range perceptions {
		series = append(series, surfaceSeries{
			PerceptionDate: p.Format(dateLayout),
			Points:         byPerception[p],
		})
	}
	return series, actuals
}
