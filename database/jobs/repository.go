package jobs

import (
	"fmt"

	models "forecast-backtest/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for backtest jobs
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new jobs repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save persists a new backtest job
func (r *Repository) Save(job *models.BacktestJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Update writes the current state of a job back to the database
func (r *Repository) Update(job *models.BacktestJob) error {
	if err := r.db.Save(job).Error; err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its ID, nil when not found
func (r *Repository) GetByID(id string) (*models.BacktestJob, error) {
	var job models.BacktestJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &job, nil
}

// List retrieves recent jobs, newest first, optionally filtered by status
func (r *Repository) List(status string, limit int) ([]models.BacktestJob, error) {
	var list []models.BacktestJob
	query := r.db.Order("created_at DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&list).Error; err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return list, nil
}

// MarkInterrupted flags jobs still pending or running as failed. Called on
// startup: anything left in flight belongs to a previous process.
func (r *Repository) MarkInterrupted() (int64, error) {
	res := r.db.Model(&models.BacktestJob{}).
		Where("status IN ?", []string{models.JobStatusPending, models.JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": "interrupted by service restart",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("MarkInterrupted: %w", res.Error)
	}
	return res.RowsAffected, nil
}
