package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// getIntParam retrieves an integer query parameter with default value and optional range validation
func getIntParam(r *http.Request, key string, defaultVal int, minVal, maxVal *int) int {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}

	if minVal != nil && val < *minVal {
		return defaultVal
	}
	if maxVal != nil && val > *maxVal {
		return defaultVal
	}

	return val
}

// getMonthParam parses a YYYY-MM query parameter into the first day of the
// month.
func getMonthParam(r *http.Request, key string) (time.Time, bool) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return time.Time{}, false
	}
	val, err := time.Parse("2006-01", valStr)
	if err != nil {
		return time.Time{}, false
	}
	return val, true
}

// respondJSON writes a JSON response body
func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// respondWithError logs the error and sends a JSON error response
// Use this to avoid exposing internal errors while still logging them
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	if err != nil {
		log.Printf("API Error [%d]: %s - %v", code, message, err)
	} else {
		log.Printf("API Error [%d]: %s", code, message)
	}
	respondJSON(w, code, map[string]string{"error": message})
}
