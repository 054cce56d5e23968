package snapshots

import (
	"fmt"
	"time"

	models "forecast-backtest/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for forecast snapshots
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new snapshots repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UpsertBatch writes a batch of snapshots. Conflicts on the identifying
// tuple overwrite the forecast, so re-running a backtest over the same grid
// refreshes values instead of duplicating rows. Already-filled actuals are
// never touched.
func (r *Repository) UpsertBatch(snaps []models.ForecastSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "model"}, {Name: "metric_code"},
			{Name: "perception_date"}, {Name: "target_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"forecast", "lead_days"}),
	}).CreateInBatches(snaps, 500).Error
	if err != nil {
		return fmt.Errorf("UpsertBatch: %w", err)
	}
	return nil
}

// GetEvaluated returns snapshots with actuals present for a metric,
// optionally filtered to one model. Snapshots without an actual never enter
// accuracy or weight computation, so they are filtered here.
func (r *Repository) GetEvaluated(metricCode, model string) ([]models.ForecastSnapshot, error) {
	var snaps []models.ForecastSnapshot
	query := r.db.Where("metric_code = ? AND actual IS NOT NULL", metricCode)
	if model != "" {
		query = query.Where("model = ?", model)
	}
	if err := query.Find(&snaps).Error; err != nil {
		return nil, fmt.Errorf("GetEvaluated: %w", err)
	}
	return snaps, nil
}

// DeleteByModelMetric removes every snapshot for a (model, metric) pair and
// returns the number of rows deleted.
func (r *Repository) DeleteByModelMetric(model, metricCode string) (int64, error) {
	res := r.db.Where("model = ? AND metric_code = ?", model, metricCode).
		Delete(&models.ForecastSnapshot{})
	if res.Error != nil {
		return 0, fmt.Errorf("DeleteByModelMetric: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// BackfillActuals joins realized values into snapshots whose target date has
// passed and whose actual is still missing. Only NULL actuals are touched,
// which makes the operation idempotent: a second consecutive run matches
// zero rows.
func (r *Repository) BackfillActuals(asOf time.Time) (int64, error) {
	res := r.db.Exec(`
		UPDATE forecast_snapshots s
		SET actual = a.value
		FROM actual_values a
		WHERE s.actual IS NULL
		  AND s.target_date <= ?
		  AND a.metric_code = s.metric_code
		  AND a.stay_date = s.target_date
	`, asOf)
	if res.Error != nil {
		return 0, fmt.Errorf("BackfillActuals: %w", res.Error)
	}
	return res.RowsAffected, nil
}
