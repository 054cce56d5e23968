package forecaster

import (
	"fmt"
	"time"
)

// Point is one realized value of the training history.
type Point struct {
	Date  time.Time
	Value float64
}

// Forecaster produces values for target stay dates from realized history.
// The history the runner passes in never extends past the perception date,
// so backtests cannot leak future information into a model.
type Forecaster interface {
	Name() string
	Forecast(history []Point, perception time.Time, targets []time.Time) ([]float64, error)
}

// dayKey collapses a timestamp to its calendar date for history lookups.
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// indexHistory builds a date-keyed lookup over the history.
func indexHistory(history []Point) map[string]float64 {
	idx := make(map[string]float64, len(history))
	for _, p := range history {
		idx[dayKey(p.Date)] = p.Value
	}
	return idx
}

// trailingMean averages the last n calendar days of history before the
// perception date. Returns false when no values fall in the window.
func trailingMean(history []Point, perception time.Time, days int) (float64, bool) {
	cutoff := perception.AddDate(0, 0, -days)
	sum, n := 0.0, 0
	for _, p := range history {
		if !p.Date.Before(cutoff) && p.Date.Before(perception) {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func validateInputs(history []Point, targets []time.Time) error {
	if len(history) == 0 {
		return fmt.Errorf("empty training history")
	}
	if len(targets) == 0 {
		return fmt.Errorf("no target dates")
	}
	return nil
}
