package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	models "forecast-backtest/database/models_pkg"
	"forecast-backtest/forecaster"
)

// ingestActualsRequest is the JSON body of POST /api/actuals: realized
// values for one metric, as exported by the property systems.
type ingestActualsRequest struct {
	Metric string `json:"metric"`
	Values []struct {
		StayDate string  `json:"stay_date"`
		Value    float64 `json:"value"`
	} `json:"values"`
}

// handleIngestActuals upserts realized metric values. Snapshots pick them up
// on the next backfill pass.
func (s *Server) handleIngestActuals(w http.ResponseWriter, r *http.Request) {
	var body ingestActualsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if _, err := forecaster.MetricByCode(body.Metric); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if len(body.Values) == 0 {
		respondWithError(w, http.StatusBadRequest, "values must not be empty", nil)
		return
	}

	now := time.Now()
	values := make([]models.ActualValue, 0, len(body.Values))
	for _, v := range body.Values {
		stayDate, err := time.Parse(dateLayout, v.StayDate)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "stay_date must be YYYY-MM-DD", err)
			return
		}
		values = append(values, models.ActualValue{
			MetricCode: body.Metric,
			StayDate:   stayDate,
			Value:      v.Value,
			UpdatedAt:  now,
		})
	}

	if err := s.actuals.UpsertValues(values); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to store actuals", err)
		return
	}

	log.Printf("✅ Ingested %d actuals for %s", len(values), body.Metric)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Actuals stored",
		"metric_code": body.Metric,
		"count":       len(values),
	})
}

// handleGetModels lists the registered model identifiers
func (s *Server) handleGetModels(w http.ResponseWriter, r *http.Request) {
	names := forecaster.ModelNames()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"models": names,
		"count":  len(names),
	})
}
