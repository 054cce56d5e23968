package actuals

import (
	"fmt"
	"time"

	models "forecast-backtest/database/models_pkg"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository handles database operations for realized metric values
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new actuals repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetSeries returns the realized series for a metric up to (and excluding)
// the given date, oldest first. The runner feeds this to forecasters as
// training history, so the cutoff keeps backtests honest: no model sees
// values past its perception date.
func (r *Repository) GetSeries(metricCode string, before time.Time) ([]models.ActualValue, error) {
	var series []models.ActualValue
	err := r.db.Where("metric_code = ? AND stay_date < ?", metricCode, before).
		Order("stay_date ASC").Find(&series).Error
	if err != nil {
		return nil, fmt.Errorf("GetSeries: %w", err)
	}
	return series, nil
}

// UpsertValues writes realized values, overwriting on conflict. Backs the
// actuals ingest endpoint.
func (r *Repository) UpsertValues(values []models.ActualValue) error {
	if len(values) == 0 {
		return nil
	}
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "metric_code"}, {Name: "stay_date"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).CreateInBatches(values, 500).Error
	if err != nil {
		return fmt.Errorf("UpsertValues: %w", err)
	}
	return nil
}
