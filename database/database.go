// Package database provides database connection management for the
// forecast-backtest accuracy service.
//
// This package includes:
//   - Primary connection management using GORM and PostgreSQL
//   - A raw database/sql read-model connection for heavy aggregate queries
//   - Manual schema bootstrap for the snapshot table plus AutoMigrate for the rest
//
// Data Models:
//
//	All data models (ForecastSnapshot, ActualValue, BacktestJob, etc.) are
//	defined in the models_pkg package to avoid circular import dependencies.
package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	models "forecast-backtest/database/models_pkg"
)

// Database holds the GORM database connection and provides access to the
// underlying DB instance. It serves as the central connection point for all
// write-path database operations in the application.
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance for direct access when needed.
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect establishes database connection using GORM
func Connect(host string, port int, dbname, user, password string) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Silent logging for production
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates the snapshot table manually and auto-migrates the rest.
// The snapshot table is managed by hand so the unique index on the identifying
// tuple and the date column types stay exactly as the upsert path expects.
func (d *Database) InitSchema() error {
	fmt.Println("🔄 Starting database schema initialization...")

	if err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS forecast_snapshots (
			id BIGSERIAL PRIMARY KEY,
			model VARCHAR(50) NOT NULL,
			metric_code VARCHAR(30) NOT NULL,
			perception_date DATE NOT NULL,
			target_date DATE NOT NULL,
			lead_days INT NOT NULL,
			forecast DOUBLE PRECISION NOT NULL,
			actual DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`).Error; err != nil {
		return fmt.Errorf("failed to create forecast_snapshots table: %w", err)
	}

	// Identifying tuple must be unique so re-runs upsert instead of duplicating
	d.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_identity
		ON forecast_snapshots (model, metric_code, perception_date, target_date)
	`)

	// Backfill scans filter on missing actuals for passed target dates
	d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snapshots_pending_actuals
		ON forecast_snapshots (metric_code, target_date)
		WHERE actual IS NULL
	`)

	d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snapshots_model_metric
		ON forecast_snapshots (model, metric_code)
	`)

	// Auto-migrate the remaining tables
	err := d.db.AutoMigrate(
		// &models.ForecastSnapshot{}, // Managed manually above
		&models.ActualValue{},
		&models.BacktestJob{},
		&models.ModelWebhook{},
		&models.ModelWebhookLog{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}

	fmt.Println("✅ Database schema initialized")
	return nil
}

// ============================================================================
// Type Aliases
// ============================================================================

// Core data models - type aliases so callers don't need to import models_pkg
// alongside the repositories.
type ForecastSnapshot = models.ForecastSnapshot
type ActualValue = models.ActualValue
type BacktestJob = models.BacktestJob
type ModelWebhook = models.ModelWebhook
type ModelWebhookLog = models.ModelWebhookLog
