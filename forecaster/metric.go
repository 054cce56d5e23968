// Package forecaster holds the demand metric registry and the pluggable
// forecasting models the backtest runner executes.
package forecaster

import "fmt"

// Metric is a demand metric forecasts target. Pace metrics have on-the-books
// booking pace behind them and are the only ones pickup-based models may run
// against.
type Metric struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	IsPace bool   `json:"is_pace_metric"`
}

// Registered demand metrics, in display order.
var Metrics = []Metric{
	{Code: "rooms_sold", Name: "Rooms Sold", IsPace: true},
	{Code: "room_revenue", Name: "Room Revenue", IsPace: true},
	{Code: "adr", Name: "Average Daily Rate", IsPace: false},
	{Code: "occupancy", Name: "Occupancy", IsPace: false},
}

// MetricByCode looks up a metric by its code.
func MetricByCode(code string) (Metric, error) {
	for _, m := range Metrics {
		if m.Code == code {
			return m, nil
		}
	}
	return Metric{}, fmt.Errorf("unknown metric code %q", code)
}
