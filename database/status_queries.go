package database

import (
	"fmt"
	"time"
)

// Read-model data structures

// BacktestStatus summarizes snapshot coverage for one (model, metric) pair.
// It is a progress/health view derived from the snapshot table, not
// authoritative data in its own right.
type BacktestStatus struct {
	Model               string     `json:"model"`
	MetricCode          string     `json:"metric_code"`
	TotalSnapshots      int64      `json:"total_snapshots"`
	WithActuals         int64      `json:"with_actuals"`
	FirstPerceptionDate *time.Time `json:"first_perception_date,omitempty"`
	LastPerceptionDate  *time.Time `json:"last_perception_date,omitempty"`
	PerceptionDates     int64      `json:"perception_dates"`
}

// SurfaceCell is one point of the monthly forecast surface: what one
// perception date predicted for one stay date, with the realized actual
// when the backfill has filled it.
type SurfaceCell struct {
	PerceptionDate time.Time `json:"perception_date"`
	TargetDate     time.Time `json:"target_date"`
	Forecast       float64   `json:"forecast"`
	Actual         *float64  `json:"actual,omitempty"`
}

// GetBacktestStatuses returns coverage summaries per (model, metric) pair,
// optionally filtered to one metric.
func (db *ReadDB) GetBacktestStatuses(metricCode string) ([]BacktestStatus, error) {
	query := `
		SELECT model, metric_code,
		       COUNT(*) AS total_snapshots,
		       COUNT(actual) AS with_actuals,
		       MIN(perception_date) AS first_perception,
		       MAX(perception_date) AS last_perception,
		       COUNT(DISTINCT perception_date) AS perception_dates
		FROM forecast_snapshots
	`
	args := []interface{}{}
	if metricCode != "" {
		query += " WHERE metric_code = $1"
		args = append(args, metricCode)
	}
	query += " GROUP BY model, metric_code ORDER BY model, metric_code"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetBacktestStatuses: %w", err)
	}
	defer rows.Close()

	var statuses []BacktestStatus
	for rows.Next() {
		var s BacktestStatus
		if err := rows.Scan(&s.Model, &s.MetricCode, &s.TotalSnapshots, &s.WithActuals,
			&s.FirstPerceptionDate, &s.LastPerceptionDate, &s.PerceptionDates); err != nil {
			return nil, fmt.Errorf("GetBacktestStatuses scan: %w", err)
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}

// GetMonthlySurface returns every snapshot of one model/metric whose target
// date falls inside the given month, ordered so callers can shape the rows
// into per-perception-date series.
func (db *ReadDB) GetMonthlySurface(model, metricCode string, month time.Time) ([]SurfaceCell, error) {
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	rows, err := db.conn.Query(`
		SELECT perception_date, target_date, forecast, actual
		FROM forecast_snapshots
		WHERE model = $1 AND metric_code = $2
		  AND target_date >= $3 AND target_date < $4
		ORDER BY perception_date, target_date
	`, model, metricCode, monthStart, monthEnd)
	if err != nil {
		return nil, fmt.Errorf("GetMonthlySurface: %w", err)
	}
	defer rows.Close()

	var cells []SurfaceCell
	for rows.Next() {
		var c SurfaceCell
		if err := rows.Scan(&c.PerceptionDate, &c.TargetDate, &c.Forecast, &c.Actual); err != nil {
			return nil, fmt.Errorf("GetMonthlySurface scan: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}
