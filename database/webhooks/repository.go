package webhooks

import (
	"fmt"

	models "forecast-backtest/database/models_pkg"

	"gorm.io/gorm"
)

// Repository handles database operations for webhook registrations
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new webhooks repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetAll retrieves every registered webhook
func (r *Repository) GetAll() ([]models.ModelWebhook, error) {
	var hooks []models.ModelWebhook
	if err := r.db.Order("id").Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("GetAll: %w", err)
	}
	return hooks, nil
}

// GetActive retrieves enabled webhooks only
func (r *Repository) GetActive() ([]models.ModelWebhook, error) {
	var hooks []models.ModelWebhook
	if err := r.db.Where("enabled = ?", true).Find(&hooks).Error; err != nil {
		return nil, fmt.Errorf("GetActive: %w", err)
	}
	return hooks, nil
}

// GetByID retrieves a webhook by ID, nil when not found
func (r *Repository) GetByID(id int) (*models.ModelWebhook, error) {
	var hook models.ModelWebhook
	err := r.db.First(&hook, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &hook, nil
}

// Save creates or updates a webhook registration
func (r *Repository) Save(hook *models.ModelWebhook) error {
	if err := r.db.Save(hook).Error; err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Delete removes a webhook registration
func (r *Repository) Delete(id int) error {
	res := r.db.Delete(&models.ModelWebhook{}, id)
	if res.Error != nil {
		return fmt.Errorf("Delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("Delete: webhook %d not found", id)
	}
	return nil
}

// SaveLog records a delivery attempt
func (r *Repository) SaveLog(entry *models.ModelWebhookLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("SaveLog: %w", err)
	}
	return nil
}
