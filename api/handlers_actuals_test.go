package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	models "forecast-backtest/database/models_pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeActualsWriter struct {
	values []models.ActualValue
	err    error
}

func (f *fakeActualsWriter) UpsertValues(values []models.ActualValue) error {
	if f.err != nil {
		return f.err
	}
	f.values = append(f.values, values...)
	return nil
}

func TestIngestActuals(t *testing.T) {
	writer := &fakeActualsWriter{}
	s := &Server{actuals: writer}

	body := `{"metric":"rooms_sold","values":[
		{"stay_date":"2025-03-01","value":118},
		{"stay_date":"2025-03-02","value":96.5}
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/actuals", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleIngestActuals(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, writer.values, 2)
	assert.Equal(t, "rooms_sold", writer.values[0].MetricCode)
	assert.Equal(t, 118.0, writer.values[0].Value)
	assert.Equal(t, "2025-03-02", writer.values[1].StayDate.Format(dateLayout))
}

func TestIngestActualsValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"metric":`},
		{"unknown metric", `{"metric":"nights","values":[{"stay_date":"2025-03-01","value":1}]}`},
		{"empty values", `{"metric":"rooms_sold","values":[]}`},
		{"bad stay date", `{"metric":"rooms_sold","values":[{"stay_date":"03/01/2025","value":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &fakeActualsWriter{}
			s := &Server{actuals: writer}

			req := httptest.NewRequest(http.MethodPost, "/api/actuals", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.handleIngestActuals(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, writer.values)
		})
	}
}

func TestGetModels(t *testing.T) {
	s := &Server{}
	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	s.handleGetModels(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Models []string `json:"models"`
		Count  int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, len(resp.Models), resp.Count)
	assert.Contains(t, resp.Models, "seasonal_naive")
	assert.Contains(t, resp.Models, "seasonal_naive_postcovid")
	assert.Contains(t, resp.Models, "blended")
}
